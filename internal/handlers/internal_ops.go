package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/peoplehub/hr-api/internal/platform/httpx"
	"github.com/peoplehub/hr-api/internal/services"
)

const (
	maxInternalBodySize    = 8 * 1024
	defaultExpireSweepSize = 100
	maxExpireSweepSize     = 1000
)

type expireOffersRequest struct {
	AsOf  string `json:"as_of"`
	Limit int    `json:"limit"`
}

type nextCounterRequest struct {
	Step int64 `json:"step"`
}

type archiveDocumentRequest struct {
	DocumentRef string `json:"document_ref"`
}

// InternalHandlers serves scheduler and service-to-service endpoints. The
// router mounts these behind the OIDC middleware, so no Firebase identity is
// present on requests.
type InternalHandlers struct {
	offers    services.OfferService
	system    services.SystemService
	documents services.DocumentService
	clock     func() time.Time
}

// NewInternalHandlers constructs a new InternalHandlers instance.
func NewInternalHandlers(offers services.OfferService, system services.SystemService, documents services.DocumentService) *InternalHandlers {
	return &InternalHandlers{
		offers:    offers,
		system:    system,
		documents: documents,
		clock:     time.Now,
	}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/offers:expire", h.expireOffers)
	r.Post("/counters/{counterID}:next", h.nextCounterValue)
	r.Post("/documents:archive", h.archiveDocument)
}

// expireOffers runs the offer expiry sweep. Cloud Scheduler hits this on a
// fixed cadence; the sweep itself is idempotent.
func (h *InternalHandlers) expireOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req expireOffersRequest
	body, err := readLimitedBody(r, maxInternalBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	now := h.clock().UTC()
	if raw := strings.TrimSpace(req.AsOf); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "as_of must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		now = ts
	}

	limit := req.Limit
	switch {
	case limit <= 0:
		limit = defaultExpireSweepSize
	case limit > maxExpireSweepSize:
		limit = maxExpireSweepSize
	}

	result, err := h.offers.ExpireSweep(ctx, services.ExpireOffersCommand{
		Now:   now,
		Limit: limit,
	})
	if err != nil {
		writeOfferError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, expireSweepResponse{
		ExpiredOfferIDs: result.ExpiredOfferIDs,
		ExpiredCount:    len(result.ExpiredOfferIDs),
		SweptAt:         formatTime(result.SweptAt),
	})
}

func (h *InternalHandlers) nextCounterValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_service_unavailable", "system service unavailable", http.StatusServiceUnavailable))
		return
	}

	counterID := strings.TrimSpace(chi.URLParam(r, "counterID"))
	if counterID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "counter id is required", http.StatusBadRequest))
		return
	}

	var req nextCounterRequest
	body, err := readLimitedBody(r, maxInternalBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	value, err := h.system.NextCounterValue(ctx, services.CounterCommand{
		CounterID: counterID,
		Step:      req.Step,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCounterInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		case errors.Is(err, services.ErrCounterExhausted):
			httpx.WriteError(ctx, w, httpx.NewError("counter_exhausted", err.Error(), http.StatusConflict))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("counter_error", "failed to advance counter", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, counterResponse{
		CounterID: counterID,
		Value:     value,
	})
}

// archiveDocument copies a stored document into the exports bucket. Retention
// jobs call this after offers close out.
func (h *InternalHandlers) archiveDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.documents == nil {
		httpx.WriteError(ctx, w, httpx.NewError("document_service_unavailable", "document service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req archiveDocumentRequest
	body, err := readLimitedBody(r, maxInternalBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.DocumentRef) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "document_ref is required", http.StatusBadRequest))
		return
	}

	archived, err := h.documents.ArchiveDocument(ctx, services.ArchiveDocumentCommand{
		DocumentRef: req.DocumentRef,
	})
	if err != nil {
		writeDocumentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, archiveDocumentResponse{
		SourceRef:  archived.SourceRef,
		ArchiveRef: archived.ArchiveRef,
	})
}

type expireSweepResponse struct {
	ExpiredOfferIDs []string `json:"expired_offer_ids"`
	ExpiredCount    int      `json:"expired_count"`
	SweptAt         string   `json:"swept_at"`
}

type counterResponse struct {
	CounterID string `json:"counter_id"`
	Value     int64  `json:"value"`
}

type archiveDocumentResponse struct {
	SourceRef  string `json:"source_ref"`
	ArchiveRef string `json:"archive_ref"`
}
