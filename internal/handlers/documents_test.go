package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/peoplehub/hr-api/internal/platform/auth"
	"github.com/peoplehub/hr-api/internal/services"
)

type stubDocumentService struct {
	uploadFn   func(ctx context.Context, cmd services.SignedUploadCommand) (services.SignedDocumentResponse, error)
	downloadFn func(ctx context.Context, cmd services.SignedDownloadCommand) (services.SignedDocumentResponse, error)
	archiveFn  func(ctx context.Context, cmd services.ArchiveDocumentCommand) (services.ArchivedDocument, error)
}

func (s *stubDocumentService) IssueSignedUpload(ctx context.Context, cmd services.SignedUploadCommand) (services.SignedDocumentResponse, error) {
	if s.uploadFn != nil {
		return s.uploadFn(ctx, cmd)
	}
	return services.SignedDocumentResponse{}, nil
}

func (s *stubDocumentService) IssueSignedDownload(ctx context.Context, cmd services.SignedDownloadCommand) (services.SignedDocumentResponse, error) {
	if s.downloadFn != nil {
		return s.downloadFn(ctx, cmd)
	}
	return services.SignedDocumentResponse{}, nil
}

func (s *stubDocumentService) ArchiveDocument(ctx context.Context, cmd services.ArchiveDocumentCommand) (services.ArchivedDocument, error) {
	if s.archiveFn != nil {
		return s.archiveFn(ctx, cmd)
	}
	return services.ArchivedDocument{}, nil
}

func newDocumentRouter(h *DocumentHandlers) chi.Router {
	r := chi.NewRouter()
	r.Route("/documents", h.Routes)
	return r
}

func TestDocumentHandlersUploadResume(t *testing.T) {
	expiry := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	documents := &stubDocumentService{
		uploadFn: func(_ context.Context, cmd services.SignedUploadCommand) (services.SignedDocumentResponse, error) {
			if cmd.ActorID != "cand-1" {
				t.Fatalf("expected actor cand-1, got %s", cmd.ActorID)
			}
			if cmd.Kind != "resume" {
				t.Fatalf("expected resume kind, got %s", cmd.Kind)
			}
			return services.SignedDocumentResponse{
				DocumentRef: "gs://resumes/documents/candidates/cand-1/resumes/app_1/resume.pdf",
				URL:         "https://storage.example.com/signed",
				Method:      http.MethodPut,
				ExpiresAt:   expiry,
			}, nil
		},
	}

	handlers := NewDocumentHandlers(nil, documents)
	router := newDocumentRouter(handlers)

	body := `{"kind":"resume","owner_ref":"app_1","file_name":"resume.pdf","content_type":"application/pdf","size_bytes":2048}`
	req := httptest.NewRequest(http.MethodPost, "/documents/uploads", strings.NewReader(body))
	req = withTestIdentity(req, "cand-1", auth.RoleCandidate)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response signedDocumentPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Method != http.MethodPut {
		t.Fatalf("expected PUT method, got %s", response.Method)
	}
	if !strings.HasPrefix(response.DocumentRef, "gs://") {
		t.Fatalf("expected gs:// document ref, got %s", response.DocumentRef)
	}
}

func TestDocumentHandlersOfferLetterUploadRequiresStaff(t *testing.T) {
	handlers := NewDocumentHandlers(nil, &stubDocumentService{})
	router := newDocumentRouter(handlers)

	body := `{"kind":"offer_letter","owner_ref":"off_1","file_name":"letter.pdf","content_type":"application/pdf","size_bytes":2048}`
	req := httptest.NewRequest(http.MethodPost, "/documents/uploads", strings.NewReader(body))
	req = withTestIdentity(req, "cand-1", auth.RoleCandidate)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestDocumentHandlersDownloadScopesCandidates(t *testing.T) {
	handlers := NewDocumentHandlers(nil, &stubDocumentService{})
	router := newDocumentRouter(handlers)

	body := `{"document_ref":"gs://resumes/documents/candidates/cand-2/resumes/app_9/resume.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/documents/downloads", strings.NewReader(body))
	req = withTestIdentity(req, "cand-1", auth.RoleCandidate)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestDocumentHandlersDownloadStaffAllowed(t *testing.T) {
	documents := &stubDocumentService{
		downloadFn: func(_ context.Context, cmd services.SignedDownloadCommand) (services.SignedDocumentResponse, error) {
			return services.SignedDocumentResponse{
				DocumentRef: cmd.DocumentRef,
				URL:         "https://storage.example.com/signed",
				Method:      http.MethodGet,
			}, nil
		},
	}

	handlers := NewDocumentHandlers(nil, documents)
	router := newDocumentRouter(handlers)

	body := `{"document_ref":"gs://resumes/documents/candidates/cand-2/resumes/app_9/resume.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/documents/downloads", strings.NewReader(body))
	req = withTestIdentity(req, "hr-1", auth.RoleHR)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestInternalHandlersArchiveDocument(t *testing.T) {
	documents := &stubDocumentService{
		archiveFn: func(_ context.Context, cmd services.ArchiveDocumentCommand) (services.ArchivedDocument, error) {
			return services.ArchivedDocument{
				SourceRef:  cmd.DocumentRef,
				ArchiveRef: "gs://hr-exports/resumes/documents/candidates/cand-1/resumes/app_1/resume.pdf",
			}, nil
		},
	}

	handlers := NewInternalHandlers(&stubOfferService{}, &routerStubSystemService{}, documents)
	r := chi.NewRouter()
	r.Route("/internal", handlers.Routes)

	body := `{"document_ref":"gs://resumes/documents/candidates/cand-1/resumes/app_1/resume.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/documents:archive", strings.NewReader(body))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response archiveDocumentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !strings.HasPrefix(response.ArchiveRef, "gs://hr-exports/") {
		t.Fatalf("expected archive ref in exports bucket, got %s", response.ArchiveRef)
	}
}

func TestInternalHandlersArchiveDocumentRequiresRef(t *testing.T) {
	handlers := NewInternalHandlers(&stubOfferService{}, &routerStubSystemService{}, &stubDocumentService{})
	r := chi.NewRouter()
	r.Route("/internal", handlers.Routes)

	req := httptest.NewRequest(http.MethodPost, "/internal/documents:archive", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

var _ services.DocumentService = (*stubDocumentService)(nil)
