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

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/platform/auth"
	"github.com/peoplehub/hr-api/internal/services"
)

type stubInterviewService struct {
	getFn       func(ctx context.Context, interviewID string) (services.Interview, error)
	listFn      func(ctx context.Context, applicationID string) ([]services.Interview, error)
	statusFn    func(ctx context.Context, cmd services.InterviewStatusCommand) (services.Interview, error)
	aggregateFn func(ctx context.Context, interviewID string) (services.InterviewAggregate, error)
}

func (s *stubInterviewService) Schedule(context.Context, services.ScheduleInterviewCommand) (services.Interview, error) {
	return services.Interview{}, nil
}

func (s *stubInterviewService) Get(ctx context.Context, interviewID string) (services.Interview, error) {
	if s.getFn != nil {
		return s.getFn(ctx, interviewID)
	}
	return services.Interview{}, nil
}

func (s *stubInterviewService) ListByApplication(ctx context.Context, applicationID string) ([]services.Interview, error) {
	if s.listFn != nil {
		return s.listFn(ctx, applicationID)
	}
	return nil, nil
}

func (s *stubInterviewService) SubmitFeedback(context.Context, services.SubmitFeedbackCommand) (services.Interview, error) {
	return services.Interview{}, nil
}

func (s *stubInterviewService) UpdateStatus(ctx context.Context, cmd services.InterviewStatusCommand) (services.Interview, error) {
	if s.statusFn != nil {
		return s.statusFn(ctx, cmd)
	}
	return services.Interview{}, nil
}

func (s *stubInterviewService) Aggregate(ctx context.Context, interviewID string) (services.InterviewAggregate, error) {
	if s.aggregateFn != nil {
		return s.aggregateFn(ctx, interviewID)
	}
	return services.InterviewAggregate{}, nil
}

func (s *stubInterviewService) CalculateApplicationScore(context.Context, string) (services.InterviewAggregate, error) {
	return services.InterviewAggregate{}, nil
}

type interviewStubLifecycle struct {
	stubLifecycleService
	scheduleFn func(ctx context.Context, cmd services.ScheduleInterviewCommand) (services.Interview, error)
	feedbackFn func(ctx context.Context, cmd services.SubmitFeedbackCommand) (services.Interview, error)
}

func (s *interviewStubLifecycle) ScheduleInterview(ctx context.Context, cmd services.ScheduleInterviewCommand) (services.Interview, error) {
	if s.scheduleFn != nil {
		return s.scheduleFn(ctx, cmd)
	}
	return services.Interview{}, nil
}

func (s *interviewStubLifecycle) SubmitFeedback(ctx context.Context, cmd services.SubmitFeedbackCommand) (services.Interview, error) {
	if s.feedbackFn != nil {
		return s.feedbackFn(ctx, cmd)
	}
	return services.Interview{}, nil
}

func newInterviewRouter(h *InterviewHandlers) chi.Router {
	r := chi.NewRouter()
	r.Route("/interviews", h.Routes)
	return r
}

func sampleInterview() services.Interview {
	location := "Room 4B"
	return services.Interview{
		ID:             "int-1",
		ApplicationID:  "app-1",
		Stage:          domain.StageDepartmentInterview,
		Panel:          []string{"emp-1", "emp-2"},
		ScheduledStart: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
		ScheduledEnd:   time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC),
		Location:       &location,
		Status:         domain.InterviewStatusCompleted,
		Feedback: []domain.PanelFeedback{
			{
				InterviewerID: "emp-1",
				OverallScore:  4,
				Comments:      "solid systems answers",
				SubmittedAt:   time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
			},
		},
		CreatedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestInterviewHandlersScheduleSuccess(t *testing.T) {
	lifecycle := &interviewStubLifecycle{
		scheduleFn: func(_ context.Context, cmd services.ScheduleInterviewCommand) (services.Interview, error) {
			if cmd.ApplicationID != "app-1" {
				t.Fatalf("expected application app-1, got %s", cmd.ApplicationID)
			}
			if cmd.Stage != domain.StageDepartmentInterview {
				t.Fatalf("unexpected stage %s", cmd.Stage)
			}
			if len(cmd.Panel) != 2 {
				t.Fatalf("expected 2 panel members, got %d", len(cmd.Panel))
			}
			if cmd.ActorID != "hr-1" {
				t.Fatalf("expected actor hr-1, got %s", cmd.ActorID)
			}
			return sampleInterview(), nil
		},
	}

	handlers := NewInterviewHandlers(nil, lifecycle, &stubInterviewService{})
	router := newInterviewRouter(handlers)

	body := `{"application_id":"app-1","stage":"department_interview","panel":["emp-1","emp-2"],"scheduled_start":"2026-04-02T10:00:00Z","scheduled_end":"2026-04-02T11:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/interviews/", strings.NewReader(body))
	req = withTestIdentity(req, "hr-1", auth.RoleHR)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response interviewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Interview.ID != "int-1" {
		t.Fatalf("unexpected interview id %s", response.Interview.ID)
	}
}

func TestInterviewHandlersScheduleRequiresStaff(t *testing.T) {
	handlers := NewInterviewHandlers(nil, &interviewStubLifecycle{}, &stubInterviewService{})
	router := newInterviewRouter(handlers)

	body := `{"application_id":"app-1","stage":"screening","panel":["emp-1"],"scheduled_start":"2026-04-02T10:00:00Z","scheduled_end":"2026-04-02T11:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/interviews/", strings.NewReader(body))
	req = withTestIdentity(req, "emp-1", auth.RoleEmployee)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestInterviewHandlersListHidesFeedbackFromNonPanel(t *testing.T) {
	interviews := &stubInterviewService{
		listFn: func(_ context.Context, applicationID string) ([]services.Interview, error) {
			if applicationID != "app-1" {
				t.Fatalf("unexpected application id %s", applicationID)
			}
			return []services.Interview{sampleInterview()}, nil
		},
	}

	handlers := NewInterviewHandlers(nil, &interviewStubLifecycle{}, interviews)
	router := newInterviewRouter(handlers)

	req := httptest.NewRequest(http.MethodGet, "/interviews/?application_id=app-1", nil)
	req = withTestIdentity(req, "emp-9", auth.RoleEmployee)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response interviewListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(response.Items) != 1 {
		t.Fatalf("expected 1 interview, got %d", len(response.Items))
	}
	if len(response.Items[0].Feedback) != 0 {
		t.Fatalf("expected feedback to be hidden, got %d entries", len(response.Items[0].Feedback))
	}
}

func TestInterviewHandlersGetShowsFeedbackToPanelMember(t *testing.T) {
	interviews := &stubInterviewService{
		getFn: func(_ context.Context, interviewID string) (services.Interview, error) {
			if interviewID != "int-1" {
				t.Fatalf("unexpected interview id %s", interviewID)
			}
			return sampleInterview(), nil
		},
	}

	handlers := NewInterviewHandlers(nil, &interviewStubLifecycle{}, interviews)
	router := newInterviewRouter(handlers)

	req := httptest.NewRequest(http.MethodGet, "/interviews/int-1", nil)
	req = withTestIdentity(req, "emp-2", auth.RoleEmployee)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response interviewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(response.Interview.Feedback) != 1 {
		t.Fatalf("expected 1 feedback entry, got %d", len(response.Interview.Feedback))
	}
	if response.Interview.Feedback[0].InterviewerID != "emp-1" {
		t.Fatalf("unexpected interviewer %s", response.Interview.Feedback[0].InterviewerID)
	}
}

func TestInterviewHandlersAggregateRequiresStaff(t *testing.T) {
	handlers := NewInterviewHandlers(nil, &interviewStubLifecycle{}, &stubInterviewService{})
	router := newInterviewRouter(handlers)

	req := httptest.NewRequest(http.MethodGet, "/interviews/int-1/aggregate", nil)
	req = withTestIdentity(req, "emp-1", auth.RoleEmployee)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestInterviewHandlersAggregateStaff(t *testing.T) {
	interviews := &stubInterviewService{
		aggregateFn: func(_ context.Context, interviewID string) (services.InterviewAggregate, error) {
			return services.InterviewAggregate{AverageScore: 4.5, ReviewerCount: 2}, nil
		},
	}

	handlers := NewInterviewHandlers(nil, &interviewStubLifecycle{}, interviews)
	router := newInterviewRouter(handlers)

	req := httptest.NewRequest(http.MethodGet, "/interviews/int-1/aggregate", nil)
	req = withTestIdentity(req, "hr-1", auth.RoleHR)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response interviewAggregatePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.AverageScore != 4.5 || response.ReviewerCount != 2 {
		t.Fatalf("unexpected aggregate %+v", response)
	}
}

func TestInterviewHandlersSubmitFeedbackUsesIdentity(t *testing.T) {
	lifecycle := &interviewStubLifecycle{
		feedbackFn: func(_ context.Context, cmd services.SubmitFeedbackCommand) (services.Interview, error) {
			if cmd.InterviewID != "int-1" {
				t.Fatalf("unexpected interview id %s", cmd.InterviewID)
			}
			if cmd.InterviewerID != "emp-1" {
				t.Fatalf("expected interviewer emp-1, got %s", cmd.InterviewerID)
			}
			if cmd.Score != 4 {
				t.Fatalf("unexpected score %d", cmd.Score)
			}
			return sampleInterview(), nil
		},
	}

	handlers := NewInterviewHandlers(nil, lifecycle, &stubInterviewService{})
	router := newInterviewRouter(handlers)

	body := `{"score":4,"comments":"solid systems answers"}`
	req := httptest.NewRequest(http.MethodPost, "/interviews/int-1/feedback", strings.NewReader(body))
	req = withTestIdentity(req, "emp-1", auth.RoleEmployee)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestInterviewHandlersStatusRejectsUnknownTarget(t *testing.T) {
	handlers := NewInterviewHandlers(nil, &interviewStubLifecycle{}, &stubInterviewService{})
	router := newInterviewRouter(handlers)

	body := `{"target_status":"postponed"}`
	req := httptest.NewRequest(http.MethodPost, "/interviews/int-1:status", strings.NewReader(body))
	req = withTestIdentity(req, "hr-1", auth.RoleHR)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

var _ services.InterviewService = (*stubInterviewService)(nil)
