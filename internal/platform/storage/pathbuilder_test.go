package storage

import "testing"

func TestBuildResumePath(t *testing.T) {
	path, err := BuildObjectPath(PurposeResume, PathParams{
		CandidateID:   "cand123",
		ApplicationID: "app789",
		FileName:      "resume.pdf",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "documents/candidates/cand123/resumes/app789/resume.pdf"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildOfferLetterPathUsesLetterNumber(t *testing.T) {
	path, err := BuildObjectPath(PurposeOfferLetter, PathParams{
		OfferID:      "off123",
		LetterNumber: "OFR-202608-000042",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "documents/offers/off123/letters/OFR-202608-000042.pdf"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildObjectPathRejectsInvalidSegment(t *testing.T) {
	_, err := BuildObjectPath(PurposeResume, PathParams{
		CandidateID:   "../bad",
		ApplicationID: "app",
		FileName:      "resume.pdf",
	})
	if err == nil {
		t.Fatalf("expected error for invalid segment")
	}
}
