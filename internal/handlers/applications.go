package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/platform/auth"
	"github.com/peoplehub/hr-api/internal/platform/httpx"
	"github.com/peoplehub/hr-api/internal/services"
)

const (
	defaultApplicationPageSize = 20
	maxApplicationPageSize     = 100
	maxApplicationBodySize     = 16 * 1024
)

var validApplicationStages = map[domain.ApplicationStage]struct{}{
	domain.StageScreening:           {},
	domain.StageDepartmentInterview: {},
	domain.StageHRInterview:         {},
	domain.StageOffer:               {},
}

var validApplicationStatuses = map[domain.ApplicationStatus]struct{}{
	domain.ApplicationStatusSubmitted: {},
	domain.ApplicationStatusInProcess: {},
	domain.ApplicationStatusOffer:     {},
	domain.ApplicationStatusHired:     {},
	domain.ApplicationStatusRejected:  {},
}

type createApplicationRequest struct {
	CandidateID    string         `json:"candidate_id"`
	RequisitionID  string         `json:"requisition_id"`
	ResumeRef      *string        `json:"resume_ref"`
	ReferralSource *string        `json:"referral_source"`
	Locale         string         `json:"locale"`
	Metadata       map[string]any `json:"metadata"`
}

type transitionApplicationRequest struct {
	TargetStage  string `json:"target_stage"`
	TargetStatus string `json:"target_status"`
	Note         string `json:"note"`
}

// ApplicationHandlers exposes the candidate application pipeline endpoints.
type ApplicationHandlers struct {
	authn        *auth.Authenticator
	lifecycle    services.LifecycleService
	applications services.ApplicationService
}

// NewApplicationHandlers constructs a new ApplicationHandlers instance.
func NewApplicationHandlers(authn *auth.Authenticator, lifecycle services.LifecycleService, applications services.ApplicationService) *ApplicationHandlers {
	return &ApplicationHandlers{
		authn:        authn,
		lifecycle:    lifecycle,
		applications: applications,
	}
}

// Routes registers the /applications endpoints.
func (h *ApplicationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createApplication)
	r.Get("/", h.listApplications)
	r.Get("/{applicationID}", h.getApplication)
	r.Get("/{applicationID}/summary", h.getApplicationSummary)
	r.Get("/{applicationID}/history", h.listApplicationHistory)
	r.Post("/{applicationID}:transition", h.transitionApplication)
}

func (h *ApplicationHandlers) createApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("application_service_unavailable", "application service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req createApplicationRequest
	body, err := readLimitedBody(r, maxApplicationBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	candidateID := strings.TrimSpace(identity.UID)
	if raw := strings.TrimSpace(req.CandidateID); raw != "" && raw != candidateID {
		if !isStaff(identity) {
			httpx.WriteError(ctx, w, httpx.NewError("forbidden", "cannot create applications for another candidate", http.StatusForbidden))
			return
		}
		candidateID = raw
	}

	cmd := services.CreateApplicationCommand{
		CandidateID:    candidateID,
		RequisitionID:  strings.TrimSpace(req.RequisitionID),
		ResumeRef:      cloneStringPointer(req.ResumeRef),
		ReferralSource: cloneStringPointer(req.ReferralSource),
		Locale:         strings.TrimSpace(req.Locale),
		Metadata:       cloneMap(req.Metadata),
		ActorID:        strings.TrimSpace(identity.UID),
	}

	application, err := h.lifecycle.CreateApplication(ctx, cmd)
	if err != nil {
		writeApplicationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, applicationResponse{Application: buildApplicationPayload(application)})
}

func (h *ApplicationHandlers) listApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.applications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("application_service_unavailable", "application service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	query := r.URL.Query()

	candidateID := strings.TrimSpace(query.Get("candidate_id"))
	if !isStaff(identity) {
		// Candidates only ever see their own applications.
		candidateID = strings.TrimSpace(identity.UID)
	}

	var dateRange domain.RangeQuery[time.Time]
	var hasDateRange bool
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
		hasDateRange = true
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
		hasDateRange = true
	}

	pageSize, err := parsePageSizeParam(query.Get("page_size"), defaultApplicationPageSize, maxApplicationPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
		return
	}

	filter := services.ApplicationListFilter{
		CandidateID:   candidateID,
		RequisitionID: strings.TrimSpace(query.Get("requisition_id")),
		Stage:         parseFilterValues(query["stage"]),
		Status:        parseFilterValues(query["status"]),
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}
	if hasDateRange {
		filter.DateRange = dateRange
	}

	page, err := h.applications.List(ctx, filter)
	if err != nil {
		writeApplicationError(ctx, w, err)
		return
	}

	items := make([]applicationPayload, 0, len(page.Items))
	for _, application := range page.Items {
		items = append(items, buildApplicationPayload(application))
	}

	writeJSONResponse(w, http.StatusOK, applicationListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *ApplicationHandlers) getApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.applications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("application_service_unavailable", "application service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, applicationID, ok := h.requireApplicationRequest(w, r)
	if !ok {
		return
	}

	application, err := h.applications.Get(ctx, applicationID)
	if err != nil {
		writeApplicationError(ctx, w, err)
		return
	}

	if !canReadApplication(identity, application) {
		httpx.WriteError(ctx, w, httpx.NewError("application_not_found", "application not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, applicationResponse{Application: buildApplicationPayload(application)})
}

func (h *ApplicationHandlers) getApplicationSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("application_service_unavailable", "application service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, applicationID, ok := h.requireApplicationRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.lifecycle.ApplicationSummary(ctx, applicationID)
	if err != nil {
		writeApplicationError(ctx, w, err)
		return
	}

	if !canReadApplication(identity, summary.Application) {
		httpx.WriteError(ctx, w, httpx.NewError("application_not_found", "application not found", http.StatusNotFound))
		return
	}

	interviews := make([]interviewPayload, 0, len(summary.Interviews))
	for _, interview := range summary.Interviews {
		interviews = append(interviews, buildInterviewPayload(interview))
	}

	response := applicationSummaryResponse{
		Application: buildApplicationPayload(summary.Application),
		Interviews:  interviews,
		Score: interviewAggregatePayload{
			AverageScore:  summary.Score.AverageScore,
			ReviewerCount: summary.Score.ReviewerCount,
		},
	}
	if summary.Offer != nil {
		offer := buildOfferPayload(*summary.Offer)
		response.Offer = &offer
	}

	writeJSONResponse(w, http.StatusOK, response)
}

func (h *ApplicationHandlers) listApplicationHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.applications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("application_service_unavailable", "application service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, applicationID, ok := h.requireApplicationRequest(w, r)
	if !ok {
		return
	}

	application, err := h.applications.Get(ctx, applicationID)
	if err != nil {
		writeApplicationError(ctx, w, err)
		return
	}
	if !canReadApplication(identity, application) {
		httpx.WriteError(ctx, w, httpx.NewError("application_not_found", "application not found", http.StatusNotFound))
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSizeParam(query.Get("page_size"), defaultApplicationPageSize, maxApplicationPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
		return
	}

	page, err := h.applications.History(ctx, applicationID, services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	})
	if err != nil {
		writeApplicationError(ctx, w, err)
		return
	}

	items := make([]statusHistoryPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, statusHistoryPayload{
			ID:         strings.TrimSpace(entry.ID),
			FromStage:  string(entry.FromStage),
			ToStage:    string(entry.ToStage),
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			ActorID:    strings.TrimSpace(entry.ActorID),
			Note:       entry.Note,
			CreatedAt:  formatTime(entry.CreatedAt),
		})
	}

	writeJSONResponse(w, http.StatusOK, statusHistoryListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *ApplicationHandlers) transitionApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("application_service_unavailable", "application service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, applicationID, ok := h.requireApplicationRequest(w, r)
	if !ok {
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "transition requires an HR role", http.StatusForbidden))
		return
	}

	var req transitionApplicationRequest
	body, err := readLimitedBody(r, maxApplicationBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	stage, ok := parseApplicationStage(req.TargetStage)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "target_stage must be a valid stage", http.StatusBadRequest))
		return
	}
	status, ok := parseApplicationStatus(req.TargetStatus)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "target_status must be a valid status", http.StatusBadRequest))
		return
	}

	application, err := h.lifecycle.AdvanceApplication(ctx, services.ApplicationTransitionCommand{
		ApplicationID: applicationID,
		TargetStage:   stage,
		TargetStatus:  status,
		ActorID:       strings.TrimSpace(identity.UID),
		Note:          strings.TrimSpace(req.Note),
	})
	if err != nil {
		writeApplicationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, applicationResponse{Application: buildApplicationPayload(application)})
}

func (h *ApplicationHandlers) requireApplicationRequest(w http.ResponseWriter, r *http.Request) (*auth.Identity, string, bool) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, "", false
	}
	applicationID := strings.TrimSpace(chi.URLParam(r, "applicationID"))
	if applicationID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "application id is required", http.StatusBadRequest))
		return nil, "", false
	}
	return identity, applicationID, true
}

type applicationListResponse struct {
	Items         []applicationPayload `json:"items"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

type applicationResponse struct {
	Application applicationPayload `json:"application"`
}

type applicationSummaryResponse struct {
	Application applicationPayload        `json:"application"`
	Interviews  []interviewPayload        `json:"interviews"`
	Score       interviewAggregatePayload `json:"score"`
	Offer       *offerPayload             `json:"offer,omitempty"`
}

type applicationPayload struct {
	ID             string         `json:"id"`
	CandidateID    string         `json:"candidate_id"`
	RequisitionID  string         `json:"requisition_id"`
	Stage          string         `json:"stage"`
	Status         string         `json:"status"`
	ResumeRef      *string        `json:"resume_ref,omitempty"`
	ReferralSource *string        `json:"referral_source,omitempty"`
	Locale         string         `json:"locale,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
}

type statusHistoryListResponse struct {
	Items         []statusHistoryPayload `json:"items"`
	NextPageToken string                 `json:"next_page_token,omitempty"`
}

type statusHistoryPayload struct {
	ID         string `json:"id"`
	FromStage  string `json:"from_stage,omitempty"`
	ToStage    string `json:"to_stage"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status"`
	ActorID    string `json:"actor_id,omitempty"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func buildApplicationPayload(application services.ApplicationRecord) applicationPayload {
	return applicationPayload{
		ID:             strings.TrimSpace(application.ID),
		CandidateID:    strings.TrimSpace(application.CandidateID),
		RequisitionID:  strings.TrimSpace(application.RequisitionID),
		Stage:          string(application.Stage),
		Status:         string(application.Status),
		ResumeRef:      cloneStringPointer(application.ResumeRef),
		ReferralSource: cloneStringPointer(application.ReferralSource),
		Locale:         strings.TrimSpace(application.Locale),
		Metadata:       cloneMap(application.Metadata),
		CreatedAt:      formatTime(application.CreatedAt),
		UpdatedAt:      formatTime(application.UpdatedAt),
	}
}

func canReadApplication(identity *auth.Identity, application services.ApplicationRecord) bool {
	if isStaff(identity) {
		return true
	}
	return identity != nil && strings.EqualFold(strings.TrimSpace(application.CandidateID), strings.TrimSpace(identity.UID))
}

func parseApplicationStage(raw string) (domain.ApplicationStage, bool) {
	stage := domain.ApplicationStage(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := validApplicationStages[stage]; !ok {
		return "", false
	}
	return stage, true
}

func parseApplicationStatus(raw string) (domain.ApplicationStatus, bool) {
	status := domain.ApplicationStatus(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := validApplicationStatuses[status]; !ok {
		return "", false
	}
	return status, true
}

func parsePageSizeParam(raw string, fallback, max int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}
	size, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, err
	}
	switch {
	case size <= 0:
		return fallback, nil
	case size > max:
		return max, nil
	default:
		return size, nil
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeApplicationError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrApplicationInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrApplicationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("application_not_found", "application not found", http.StatusNotFound))
	case errors.Is(err, services.ErrApplicationConflict):
		httpx.WriteError(ctx, w, httpx.NewError("application_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrApplicationInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("application_invalid_state", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("application_error", "failed to process application request", http.StatusInternalServerError))
	}
}
