package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/platform/auth"
	"github.com/peoplehub/hr-api/internal/platform/httpx"
	"github.com/peoplehub/hr-api/internal/services"
)

const maxInterviewBodySize = 16 * 1024

var validInterviewStatuses = map[domain.InterviewStatus]struct{}{
	domain.InterviewStatusPlanned:   {},
	domain.InterviewStatusCompleted: {},
	domain.InterviewStatusCancelled: {},
	domain.InterviewStatusNoShow:    {},
}

type scheduleInterviewRequest struct {
	ApplicationID  string   `json:"application_id"`
	Stage          string   `json:"stage"`
	Panel          []string `json:"panel"`
	ScheduledStart string   `json:"scheduled_start"`
	ScheduledEnd   string   `json:"scheduled_end"`
	Location       *string  `json:"location"`
}

type submitFeedbackRequest struct {
	Score    int    `json:"score"`
	Comments string `json:"comments"`
}

type interviewStatusRequest struct {
	TargetStatus string `json:"target_status"`
}

// InterviewHandlers exposes interview scheduling and panel feedback endpoints.
type InterviewHandlers struct {
	authn      *auth.Authenticator
	lifecycle  services.LifecycleService
	interviews services.InterviewService
}

// NewInterviewHandlers constructs a new InterviewHandlers instance.
func NewInterviewHandlers(authn *auth.Authenticator, lifecycle services.LifecycleService, interviews services.InterviewService) *InterviewHandlers {
	return &InterviewHandlers{
		authn:      authn,
		lifecycle:  lifecycle,
		interviews: interviews,
	}
}

// Routes registers the /interviews endpoints. Feedback submission is open to
// any authenticated employee; the service enforces panel membership.
func (h *InterviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleEmployee, auth.RoleHR, auth.RoleAdmin))
	}
	r.Post("/", h.scheduleInterview)
	r.Get("/", h.listInterviews)
	r.Get("/{interviewID}", h.getInterview)
	r.Get("/{interviewID}/aggregate", h.getInterviewAggregate)
	r.Post("/{interviewID}/feedback", h.submitFeedback)
	r.Post("/{interviewID}:status", h.updateInterviewStatus)
}

func (h *InterviewHandlers) scheduleInterview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("interview_service_unavailable", "interview service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "scheduling requires an HR role", http.StatusForbidden))
		return
	}

	var req scheduleInterviewRequest
	body, err := readLimitedBody(r, maxInterviewBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	stage, ok := parseApplicationStage(req.Stage)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stage must be a valid pipeline stage", http.StatusBadRequest))
		return
	}

	start, err := parseTimeParam(strings.TrimSpace(req.ScheduledStart))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "scheduled_start must be a valid RFC3339 timestamp", http.StatusBadRequest))
		return
	}
	end, err := parseTimeParam(strings.TrimSpace(req.ScheduledEnd))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "scheduled_end must be a valid RFC3339 timestamp", http.StatusBadRequest))
		return
	}

	interview, err := h.lifecycle.ScheduleInterview(ctx, services.ScheduleInterviewCommand{
		ApplicationID:  strings.TrimSpace(req.ApplicationID),
		Stage:          stage,
		Panel:          trimStringSlice(req.Panel),
		ScheduledStart: start,
		ScheduledEnd:   end,
		Location:       cloneStringPointer(req.Location),
		ActorID:        strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeInterviewError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, interviewResponse{Interview: buildInterviewPayload(interview)})
}

func (h *InterviewHandlers) listInterviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.interviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("interview_service_unavailable", "interview service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	applicationID := strings.TrimSpace(r.URL.Query().Get("application_id"))
	if applicationID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "application_id query parameter is required", http.StatusBadRequest))
		return
	}

	interviews, err := h.interviews.ListByApplication(ctx, applicationID)
	if err != nil {
		writeInterviewError(ctx, w, err)
		return
	}

	items := make([]interviewPayload, 0, len(interviews))
	for _, interview := range interviews {
		payload := buildInterviewPayload(interview)
		if !isStaff(identity) && !isPanelMember(interview, identity.UID) {
			// Reviewers outside the panel never see individual scores.
			payload.Feedback = nil
		}
		items = append(items, payload)
	}

	writeJSONResponse(w, http.StatusOK, interviewListResponse{Items: items})
}

func (h *InterviewHandlers) getInterview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.interviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("interview_service_unavailable", "interview service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, interviewID, ok := h.requireInterviewRequest(w, r)
	if !ok {
		return
	}

	interview, err := h.interviews.Get(ctx, interviewID)
	if err != nil {
		writeInterviewError(ctx, w, err)
		return
	}

	payload := buildInterviewPayload(interview)
	if !isStaff(identity) && !isPanelMember(interview, identity.UID) {
		payload.Feedback = nil
	}

	writeJSONResponse(w, http.StatusOK, interviewResponse{Interview: payload})
}

func (h *InterviewHandlers) getInterviewAggregate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.interviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("interview_service_unavailable", "interview service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, interviewID, ok := h.requireInterviewRequest(w, r)
	if !ok {
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "aggregate requires an HR role", http.StatusForbidden))
		return
	}

	aggregate, err := h.interviews.Aggregate(ctx, interviewID)
	if err != nil {
		writeInterviewError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, interviewAggregatePayload{
		AverageScore:  aggregate.AverageScore,
		ReviewerCount: aggregate.ReviewerCount,
	})
}

func (h *InterviewHandlers) submitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("interview_service_unavailable", "interview service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, interviewID, ok := h.requireInterviewRequest(w, r)
	if !ok {
		return
	}

	var req submitFeedbackRequest
	body, err := readLimitedBody(r, maxInterviewBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	interview, err := h.lifecycle.SubmitFeedback(ctx, services.SubmitFeedbackCommand{
		InterviewID:   interviewID,
		InterviewerID: strings.TrimSpace(identity.UID),
		Score:         req.Score,
		Comments:      req.Comments,
	})
	if err != nil {
		writeInterviewError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, interviewResponse{Interview: buildInterviewPayload(interview)})
}

func (h *InterviewHandlers) updateInterviewStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.interviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("interview_service_unavailable", "interview service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, interviewID, ok := h.requireInterviewRequest(w, r)
	if !ok {
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "status updates require an HR role", http.StatusForbidden))
		return
	}

	var req interviewStatusRequest
	body, err := readLimitedBody(r, maxInterviewBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	status, ok := parseInterviewStatus(req.TargetStatus)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "target_status must be a valid interview status", http.StatusBadRequest))
		return
	}

	interview, err := h.interviews.UpdateStatus(ctx, services.InterviewStatusCommand{
		InterviewID:  interviewID,
		TargetStatus: status,
		ActorID:      strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeInterviewError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, interviewResponse{Interview: buildInterviewPayload(interview)})
}

func (h *InterviewHandlers) requireInterviewRequest(w http.ResponseWriter, r *http.Request) (*auth.Identity, string, bool) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, "", false
	}
	interviewID := strings.TrimSpace(chi.URLParam(r, "interviewID"))
	if interviewID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "interview id is required", http.StatusBadRequest))
		return nil, "", false
	}
	return identity, interviewID, true
}

type interviewListResponse struct {
	Items []interviewPayload `json:"items"`
}

type interviewResponse struct {
	Interview interviewPayload `json:"interview"`
}

type interviewPayload struct {
	ID             string                  `json:"id"`
	ApplicationID  string                  `json:"application_id"`
	Stage          string                  `json:"stage"`
	Panel          []string                `json:"panel"`
	ScheduledStart string                  `json:"scheduled_start"`
	ScheduledEnd   string                  `json:"scheduled_end"`
	Location       *string                 `json:"location,omitempty"`
	Status         string                  `json:"status"`
	Feedback       []panelFeedbackPayload  `json:"feedback,omitempty"`
	CreatedAt      string                  `json:"created_at"`
	UpdatedAt      string                  `json:"updated_at,omitempty"`
}

type panelFeedbackPayload struct {
	InterviewerID string `json:"interviewer_id"`
	OverallScore  int    `json:"overall_score"`
	Comments      string `json:"comments,omitempty"`
	SubmittedAt   string `json:"submitted_at"`
}

type interviewAggregatePayload struct {
	AverageScore  float64 `json:"average_score"`
	ReviewerCount int     `json:"reviewer_count"`
}

func buildInterviewPayload(interview services.Interview) interviewPayload {
	feedback := make([]panelFeedbackPayload, 0, len(interview.Feedback))
	for _, entry := range interview.Feedback {
		feedback = append(feedback, panelFeedbackPayload{
			InterviewerID: strings.TrimSpace(entry.InterviewerID),
			OverallScore:  entry.OverallScore,
			Comments:      entry.Comments,
			SubmittedAt:   formatTime(entry.SubmittedAt),
		})
	}
	if len(feedback) == 0 {
		feedback = nil
	}
	return interviewPayload{
		ID:             strings.TrimSpace(interview.ID),
		ApplicationID:  strings.TrimSpace(interview.ApplicationID),
		Stage:          string(interview.Stage),
		Panel:          trimStringSlice(interview.Panel),
		ScheduledStart: formatTime(interview.ScheduledStart),
		ScheduledEnd:   formatTime(interview.ScheduledEnd),
		Location:       cloneStringPointer(interview.Location),
		Status:         string(interview.Status),
		Feedback:       feedback,
		CreatedAt:      formatTime(interview.CreatedAt),
		UpdatedAt:      formatTime(interview.UpdatedAt),
	}
}

func isPanelMember(interview services.Interview, uid string) bool {
	trimmed := strings.TrimSpace(uid)
	for _, member := range interview.Panel {
		if strings.EqualFold(strings.TrimSpace(member), trimmed) {
			return true
		}
	}
	return false
}

func parseInterviewStatus(raw string) (domain.InterviewStatus, bool) {
	status := domain.InterviewStatus(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := validInterviewStatuses[status]; !ok {
		return "", false
	}
	return status, true
}

func trimStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	if len(trimmed) == 0 {
		return nil
	}
	return trimmed
}

func writeInterviewError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInterviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInterviewNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("interview_not_found", "interview not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInterviewConflict):
		httpx.WriteError(ctx, w, httpx.NewError("interview_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInterviewInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("interview_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrApplicationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("application_not_found", "application not found", http.StatusNotFound))
	case errors.Is(err, services.ErrApplicationInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("application_invalid_state", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("interview_error", "failed to process interview request", http.StatusInternalServerError))
	}
}
