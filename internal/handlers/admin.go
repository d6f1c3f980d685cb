package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/platform/auth"
	"github.com/peoplehub/hr-api/internal/platform/httpx"
	"github.com/peoplehub/hr-api/internal/services"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AdminHandlers exposes back-office endpoints restricted to administrators.
type AdminHandlers struct {
	authn  *auth.Authenticator
	system services.SystemService
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(authn *auth.Authenticator, system services.SystemService) *AdminHandlers {
	return &AdminHandlers{
		authn:  authn,
		system: system,
	}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Get("/audit-logs", h.listAuditLogs)
}

func (h *AdminHandlers) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_service_unavailable", "system service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	query := r.URL.Query()

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("occurred_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "occurred_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("occurred_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "occurred_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	pageSize, err := parsePageSizeParam(query.Get("page_size"), defaultAuditPageSize, maxAuditPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
		return
	}

	page, err := h.system.ListAuditLogs(ctx, services.AuditLogFilter{
		TargetRef: strings.TrimSpace(query.Get("target_ref")),
		Actor:     strings.TrimSpace(query.Get("actor")),
		ActorType: strings.TrimSpace(query.Get("actor_type")),
		Action:    strings.TrimSpace(query.Get("action")),
		DateRange: dateRange,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}

	items := make([]auditLogPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, auditLogPayload{
			ID:        strings.TrimSpace(entry.ID),
			Actor:     strings.TrimSpace(entry.Actor),
			ActorType: strings.TrimSpace(entry.ActorType),
			Action:    strings.TrimSpace(entry.Action),
			TargetRef: strings.TrimSpace(entry.TargetRef),
			Metadata:  cloneMap(entry.Metadata),
			Diff:      cloneMap(entry.Diff),
			Severity:  strings.TrimSpace(entry.Severity),
			RequestID: strings.TrimSpace(entry.RequestID),
			CreatedAt: formatTime(entry.CreatedAt),
		})
	}

	writeJSONResponse(w, http.StatusOK, auditLogListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

type auditLogListResponse struct {
	Items         []auditLogPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type auditLogPayload struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	ActorType string         `json:"actor_type,omitempty"`
	Action    string         `json:"action"`
	TargetRef string         `json:"target_ref,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Diff      map[string]any `json:"diff,omitempty"`
	Severity  string         `json:"severity,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func writeAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_timeout", "request canceled", http.StatusRequestTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("admin_error", "failed to process admin request", http.StatusInternalServerError))
	}
}
