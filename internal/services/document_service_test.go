package services

import (
	"context"
	"errors"
	"testing"
	"time"

	pstorage "github.com/peoplehub/hr-api/internal/platform/storage"
)

type stubURLIssuer struct {
	bucket string
	object string
	opts   pstorage.SignedURLOptions
	result pstorage.SignedURLResult
	err    error
}

func (s *stubURLIssuer) SignedURL(_ context.Context, bucket, object string, opts pstorage.SignedURLOptions) (pstorage.SignedURLResult, error) {
	s.bucket = bucket
	s.object = object
	s.opts = opts
	if s.err != nil {
		return pstorage.SignedURLResult{}, s.err
	}
	return s.result, nil
}

func newDocumentService(t *testing.T, issuer *stubURLIssuer) DocumentService {
	t.Helper()
	svc, err := NewDocumentService(DocumentServiceDeps{
		URLs:               issuer,
		ResumesBucket:      "resumes-test",
		OfferLettersBucket: "offer-letters-test",
	})
	if err != nil {
		t.Fatalf("new document service: %v", err)
	}
	return svc
}

func TestDocumentServiceIssueSignedUploadResume(t *testing.T) {
	expiry := time.Date(2026, 8, 28, 10, 15, 0, 0, time.UTC)
	issuer := &stubURLIssuer{
		result: pstorage.SignedURLResult{
			URL:       "https://storage.example.com/signed",
			Method:    "PUT",
			ExpiresAt: expiry,
		},
	}
	svc := newDocumentService(t, issuer)

	response, err := svc.IssueSignedUpload(context.Background(), SignedUploadCommand{
		ActorID:     "cand_1",
		Kind:        "resume",
		OwnerRef:    "app_1",
		FileName:    "resume.pdf",
		ContentType: "application/pdf",
		SizeBytes:   2048,
	})
	if err != nil {
		t.Fatalf("issue signed upload: %v", err)
	}

	if issuer.bucket != "resumes-test" {
		t.Fatalf("unexpected bucket %s", issuer.bucket)
	}
	if issuer.object != "documents/candidates/cand_1/resumes/app_1/resume.pdf" {
		t.Fatalf("unexpected object %s", issuer.object)
	}
	if issuer.opts.Upload == nil || issuer.opts.Upload.ContentType != "application/pdf" {
		t.Fatalf("upload options not forwarded: %+v", issuer.opts)
	}
	if response.DocumentRef != "gs://resumes-test/documents/candidates/cand_1/resumes/app_1/resume.pdf" {
		t.Fatalf("unexpected document ref %s", response.DocumentRef)
	}
	if !response.ExpiresAt.Equal(expiry) {
		t.Fatalf("unexpected expiry %v", response.ExpiresAt)
	}
}

func TestDocumentServiceIssueSignedUploadValidatesKind(t *testing.T) {
	svc := newDocumentService(t, &stubURLIssuer{})

	_, err := svc.IssueSignedUpload(context.Background(), SignedUploadCommand{
		ActorID:     "cand_1",
		Kind:        "spreadsheet",
		OwnerRef:    "app_1",
		FileName:    "data.xlsx",
		ContentType: "application/vnd.ms-excel",
		SizeBytes:   2048,
	})
	if !errors.Is(err, ErrDocumentInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDocumentServiceIssueSignedUploadRejectsOversize(t *testing.T) {
	svc := newDocumentService(t, &stubURLIssuer{})

	_, err := svc.IssueSignedUpload(context.Background(), SignedUploadCommand{
		ActorID:     "cand_1",
		Kind:        "resume",
		OwnerRef:    "app_1",
		FileName:    "resume.pdf",
		ContentType: "application/pdf",
		SizeBytes:   maxResumeSize + 1,
	})
	if !errors.Is(err, ErrDocumentInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDocumentServiceIssueSignedDownloadParsesRef(t *testing.T) {
	issuer := &stubURLIssuer{
		result: pstorage.SignedURLResult{URL: "https://storage.example.com/signed", Method: "GET"},
	}
	svc := newDocumentService(t, issuer)

	response, err := svc.IssueSignedDownload(context.Background(), SignedDownloadCommand{
		ActorID:     "hr_1",
		DocumentRef: "gs://offer-letters-test/documents/offers/off_1/letters/OFR-202608-000001.pdf",
	})
	if err != nil {
		t.Fatalf("issue signed download: %v", err)
	}
	if issuer.bucket != "offer-letters-test" {
		t.Fatalf("unexpected bucket %s", issuer.bucket)
	}
	if issuer.object != "documents/offers/off_1/letters/OFR-202608-000001.pdf" {
		t.Fatalf("unexpected object %s", issuer.object)
	}
	if response.Method != "GET" {
		t.Fatalf("unexpected method %s", response.Method)
	}
}

func TestDocumentServiceIssueSignedDownloadRejectsMalformedRef(t *testing.T) {
	svc := newDocumentService(t, &stubURLIssuer{})

	for _, ref := range []string{"", "resumes-test/object", "gs://bucket-only"} {
		_, err := svc.IssueSignedDownload(context.Background(), SignedDownloadCommand{
			ActorID:     "hr_1",
			DocumentRef: ref,
		})
		if !errors.Is(err, ErrDocumentInvalidInput) {
			t.Fatalf("expected invalid input for ref %q, got %v", ref, err)
		}
	}
}

type stubObjectCopier struct {
	srcBucket string
	srcObject string
	dstBucket string
	dstObject string
	err       error
}

func (s *stubObjectCopier) CopyObject(_ context.Context, sourceBucket, sourceObject, destBucket, destObject string) error {
	s.srcBucket = sourceBucket
	s.srcObject = sourceObject
	s.dstBucket = destBucket
	s.dstObject = destObject
	return s.err
}

func TestDocumentServiceArchiveDocument(t *testing.T) {
	copier := &stubObjectCopier{}
	svc, err := NewDocumentService(DocumentServiceDeps{
		URLs:               &stubURLIssuer{},
		Copier:             copier,
		ResumesBucket:      "resumes-test",
		OfferLettersBucket: "offer-letters-test",
		ExportsBucket:      "exports-test",
	})
	if err != nil {
		t.Fatalf("new document service: %v", err)
	}

	archived, err := svc.ArchiveDocument(context.Background(), ArchiveDocumentCommand{
		DocumentRef: "gs://resumes-test/documents/candidates/cand_1/resumes/app_1/resume.pdf",
	})
	if err != nil {
		t.Fatalf("archive document: %v", err)
	}

	if copier.dstBucket != "exports-test" {
		t.Fatalf("unexpected destination bucket %s", copier.dstBucket)
	}
	if copier.dstObject != "resumes-test/documents/candidates/cand_1/resumes/app_1/resume.pdf" {
		t.Fatalf("unexpected destination object %s", copier.dstObject)
	}
	if archived.ArchiveRef != "gs://exports-test/resumes-test/documents/candidates/cand_1/resumes/app_1/resume.pdf" {
		t.Fatalf("unexpected archive ref %s", archived.ArchiveRef)
	}
}

func TestDocumentServiceArchiveDocumentRejectsForeignBucket(t *testing.T) {
	svc, err := NewDocumentService(DocumentServiceDeps{
		URLs:               &stubURLIssuer{},
		Copier:             &stubObjectCopier{},
		ResumesBucket:      "resumes-test",
		OfferLettersBucket: "offer-letters-test",
		ExportsBucket:      "exports-test",
	})
	if err != nil {
		t.Fatalf("new document service: %v", err)
	}

	_, err = svc.ArchiveDocument(context.Background(), ArchiveDocumentCommand{
		DocumentRef: "gs://someone-elses-bucket/object.pdf",
	})
	if !errors.Is(err, ErrDocumentInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDocumentServiceMapsPermissionDenied(t *testing.T) {
	issuer := &stubURLIssuer{err: pstorage.ErrPermissionDenied}
	svc := newDocumentService(t, issuer)

	_, err := svc.IssueSignedDownload(context.Background(), SignedDownloadCommand{
		ActorID:     "cand_1",
		DocumentRef: "gs://resumes-test/documents/candidates/cand_1/resumes/app_1/resume.pdf",
	})
	if !errors.Is(err, ErrDocumentForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
