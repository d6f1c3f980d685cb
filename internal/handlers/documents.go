package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/peoplehub/hr-api/internal/platform/auth"
	"github.com/peoplehub/hr-api/internal/platform/httpx"
	"github.com/peoplehub/hr-api/internal/services"
)

const maxDocumentBodySize = 8 * 1024

type signedUploadRequest struct {
	Kind        string `json:"kind"`
	OwnerRef    string `json:"owner_ref"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type signedDownloadRequest struct {
	DocumentRef string `json:"document_ref"`
}

// DocumentHandlers exposes signed URL issuance for resume and offer letter blobs.
type DocumentHandlers struct {
	authn     *auth.Authenticator
	documents services.DocumentService
}

// NewDocumentHandlers constructs a new DocumentHandlers instance.
func NewDocumentHandlers(authn *auth.Authenticator, documents services.DocumentService) *DocumentHandlers {
	return &DocumentHandlers{
		authn:     authn,
		documents: documents,
	}
}

// Routes registers the /documents endpoints.
func (h *DocumentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/uploads", h.issueSignedUpload)
	r.Post("/downloads", h.issueSignedDownload)
}

func (h *DocumentHandlers) issueSignedUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.documents == nil {
		httpx.WriteError(ctx, w, httpx.NewError("document_service_unavailable", "document service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req signedUploadRequest
	body, err := readLimitedBody(r, maxDocumentBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	// Offer letters are produced by HR, resumes by the candidates themselves.
	if strings.EqualFold(strings.TrimSpace(req.Kind), "offer_letter") && !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "offer letter uploads require an HR role", http.StatusForbidden))
		return
	}

	response, err := h.documents.IssueSignedUpload(ctx, services.SignedUploadCommand{
		ActorID:     strings.TrimSpace(identity.UID),
		Kind:        strings.TrimSpace(req.Kind),
		OwnerRef:    strings.TrimSpace(req.OwnerRef),
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		writeDocumentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildSignedDocumentPayload(response))
}

func (h *DocumentHandlers) issueSignedDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.documents == nil {
		httpx.WriteError(ctx, w, httpx.NewError("document_service_unavailable", "document service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req signedDownloadRequest
	body, err := readLimitedBody(r, maxDocumentBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	documentRef := strings.TrimSpace(req.DocumentRef)
	if !canAccessDocument(identity, documentRef) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to access this document", http.StatusForbidden))
		return
	}

	response, err := h.documents.IssueSignedDownload(ctx, services.SignedDownloadCommand{
		ActorID:     strings.TrimSpace(identity.UID),
		DocumentRef: documentRef,
	})
	if err != nil {
		writeDocumentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildSignedDocumentPayload(response))
}

type signedDocumentPayload struct {
	DocumentRef string            `json:"document_ref"`
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	ExpiresAt   string            `json:"expires_at,omitempty"`
}

func buildSignedDocumentPayload(response services.SignedDocumentResponse) signedDocumentPayload {
	return signedDocumentPayload{
		DocumentRef: response.DocumentRef,
		URL:         response.URL,
		Method:      response.Method,
		Headers:     response.Headers,
		ExpiresAt:   formatTime(response.ExpiresAt),
	}
}

// canAccessDocument restricts non-staff callers to documents stored under
// their own candidate prefix.
func canAccessDocument(identity *auth.Identity, documentRef string) bool {
	if isStaff(identity) {
		return true
	}
	if identity == nil {
		return false
	}
	uid := strings.TrimSpace(identity.UID)
	if uid == "" {
		return false
	}
	return strings.Contains(documentRef, "/candidates/"+uid+"/")
}

func writeDocumentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrDocumentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDocumentForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to access this document", http.StatusForbidden))
	case errors.Is(err, services.ErrDocumentSigningFailure):
		httpx.WriteError(ctx, w, httpx.NewError("document_error", "failed to issue signed url", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("document_error", "failed to process document request", http.StatusInternalServerError))
	}
}
