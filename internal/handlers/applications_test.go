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

type stubApplicationService struct {
	getFn        func(ctx context.Context, applicationID string) (services.ApplicationRecord, error)
	listFn       func(ctx context.Context, filter services.ApplicationListFilter) (domain.CursorPage[services.ApplicationRecord], error)
	historyFn    func(ctx context.Context, applicationID string, pager services.Pagination) (domain.CursorPage[services.StatusHistoryEntry], error)
	createFn     func(ctx context.Context, cmd services.CreateApplicationCommand) (services.ApplicationRecord, error)
	transitionFn func(ctx context.Context, cmd services.ApplicationTransitionCommand) (services.ApplicationRecord, error)
}

func (s *stubApplicationService) Create(ctx context.Context, cmd services.CreateApplicationCommand) (services.ApplicationRecord, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.ApplicationRecord{}, nil
}

func (s *stubApplicationService) Get(ctx context.Context, applicationID string) (services.ApplicationRecord, error) {
	if s.getFn != nil {
		return s.getFn(ctx, applicationID)
	}
	return services.ApplicationRecord{}, nil
}

func (s *stubApplicationService) List(ctx context.Context, filter services.ApplicationListFilter) (domain.CursorPage[services.ApplicationRecord], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.ApplicationRecord]{}, nil
}

func (s *stubApplicationService) Transition(ctx context.Context, cmd services.ApplicationTransitionCommand) (services.ApplicationRecord, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.ApplicationRecord{}, nil
}

func (s *stubApplicationService) History(ctx context.Context, applicationID string, pager services.Pagination) (domain.CursorPage[services.StatusHistoryEntry], error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, applicationID, pager)
	}
	return domain.CursorPage[services.StatusHistoryEntry]{}, nil
}

type stubLifecycleService struct {
	createApplicationFn  func(ctx context.Context, cmd services.CreateApplicationCommand) (services.ApplicationRecord, error)
	advanceApplicationFn func(ctx context.Context, cmd services.ApplicationTransitionCommand) (services.ApplicationRecord, error)
	summaryFn            func(ctx context.Context, applicationID string) (services.ApplicationSummary, error)
}

func (s *stubLifecycleService) CreateApplication(ctx context.Context, cmd services.CreateApplicationCommand) (services.ApplicationRecord, error) {
	if s.createApplicationFn != nil {
		return s.createApplicationFn(ctx, cmd)
	}
	return services.ApplicationRecord{}, nil
}

func (s *stubLifecycleService) AdvanceApplication(ctx context.Context, cmd services.ApplicationTransitionCommand) (services.ApplicationRecord, error) {
	if s.advanceApplicationFn != nil {
		return s.advanceApplicationFn(ctx, cmd)
	}
	return services.ApplicationRecord{}, nil
}

func (s *stubLifecycleService) ApplicationSummary(ctx context.Context, applicationID string) (services.ApplicationSummary, error) {
	if s.summaryFn != nil {
		return s.summaryFn(ctx, applicationID)
	}
	return services.ApplicationSummary{}, nil
}

func (s *stubLifecycleService) ScheduleInterview(context.Context, services.ScheduleInterviewCommand) (services.Interview, error) {
	return services.Interview{}, nil
}

func (s *stubLifecycleService) SubmitFeedback(context.Context, services.SubmitFeedbackCommand) (services.Interview, error) {
	return services.Interview{}, nil
}

func (s *stubLifecycleService) CreateOffer(context.Context, services.CreateOfferCommand) (services.Offer, error) {
	return services.Offer{}, nil
}

func (s *stubLifecycleService) ApproveOffer(context.Context, services.RecordApprovalCommand) (services.Offer, error) {
	return services.Offer{}, nil
}

func (s *stubLifecycleService) RespondToOffer(context.Context, services.OfferResponseCommand) (services.Offer, error) {
	return services.Offer{}, nil
}

func (s *stubLifecycleService) InitiateTermination(context.Context, services.CreateTerminationCommand) (services.TerminationRequest, error) {
	return services.TerminationRequest{}, nil
}

func (s *stubLifecycleService) ProcessTermination(context.Context, services.ProcessTerminationCommand) (services.TerminationRequest, error) {
	return services.TerminationRequest{}, nil
}

func (s *stubLifecycleService) FinalizeSettlement(context.Context, services.FinalizeSettlementCommand) (services.TerminationRequest, error) {
	return services.TerminationRequest{}, nil
}

func newApplicationRouter(h *ApplicationHandlers) chi.Router {
	r := chi.NewRouter()
	r.Route("/applications", h.Routes)
	return r
}

func withTestIdentity(req *http.Request, uid string, roles ...string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Roles: roles}))
}

func TestApplicationHandlersCreateSuccess(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lifecycle := &stubLifecycleService{
		createApplicationFn: func(_ context.Context, cmd services.CreateApplicationCommand) (services.ApplicationRecord, error) {
			if cmd.CandidateID != "cand-1" {
				t.Fatalf("expected candidate cand-1, got %s", cmd.CandidateID)
			}
			if cmd.RequisitionID != "req-9" {
				t.Fatalf("expected requisition req-9, got %s", cmd.RequisitionID)
			}
			return services.ApplicationRecord{
				ID:            "app_1",
				CandidateID:   cmd.CandidateID,
				RequisitionID: cmd.RequisitionID,
				Stage:         domain.StageScreening,
				Status:        domain.ApplicationStatusSubmitted,
				CreatedAt:     created,
			}, nil
		},
	}

	handlers := NewApplicationHandlers(nil, lifecycle, &stubApplicationService{})
	router := newApplicationRouter(handlers)

	body := `{"requisition_id":"req-9","locale":"en"}`
	req := httptest.NewRequest(http.MethodPost, "/applications/", strings.NewReader(body))
	req = withTestIdentity(req, "cand-1", auth.RoleCandidate)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response applicationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Application.ID != "app_1" {
		t.Fatalf("expected application app_1, got %s", response.Application.ID)
	}
	if response.Application.Stage != string(domain.StageScreening) {
		t.Fatalf("expected screening stage, got %s", response.Application.Stage)
	}
}

func TestApplicationHandlersCreateForOtherCandidateRequiresStaff(t *testing.T) {
	handlers := NewApplicationHandlers(nil, &stubLifecycleService{}, &stubApplicationService{})
	router := newApplicationRouter(handlers)

	body := `{"candidate_id":"cand-2","requisition_id":"req-9"}`
	req := httptest.NewRequest(http.MethodPost, "/applications/", strings.NewReader(body))
	req = withTestIdentity(req, "cand-1", auth.RoleCandidate)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestApplicationHandlersListScopesCandidates(t *testing.T) {
	applications := &stubApplicationService{
		listFn: func(_ context.Context, filter services.ApplicationListFilter) (domain.CursorPage[services.ApplicationRecord], error) {
			if filter.CandidateID != "cand-1" {
				t.Fatalf("expected list scoped to cand-1, got %q", filter.CandidateID)
			}
			return domain.CursorPage[services.ApplicationRecord]{
				Items: []services.ApplicationRecord{{ID: "app_1", CandidateID: "cand-1"}},
			}, nil
		},
	}

	handlers := NewApplicationHandlers(nil, &stubLifecycleService{}, applications)
	router := newApplicationRouter(handlers)

	// Even with an explicit candidate_id filter, non-staff callers stay scoped to themselves.
	req := httptest.NewRequest(http.MethodGet, "/applications/?candidate_id=cand-2", nil)
	req = withTestIdentity(req, "cand-1", auth.RoleCandidate)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response applicationListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(response.Items) != 1 || response.Items[0].ID != "app_1" {
		t.Fatalf("unexpected items: %+v", response.Items)
	}
}

func TestApplicationHandlersGetEnforcesOwnership(t *testing.T) {
	applications := &stubApplicationService{
		getFn: func(context.Context, string) (services.ApplicationRecord, error) {
			return services.ApplicationRecord{ID: "app_1", CandidateID: "cand-2"}, nil
		},
	}

	handlers := NewApplicationHandlers(nil, &stubLifecycleService{}, applications)
	router := newApplicationRouter(handlers)

	req := httptest.NewRequest(http.MethodGet, "/applications/app_1", nil)
	req = withTestIdentity(req, "cand-1", auth.RoleCandidate)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestApplicationHandlersTransitionRequiresStaff(t *testing.T) {
	handlers := NewApplicationHandlers(nil, &stubLifecycleService{}, &stubApplicationService{})
	router := newApplicationRouter(handlers)

	body := `{"target_stage":"hr_interview","target_status":"in_process"}`
	req := httptest.NewRequest(http.MethodPost, "/applications/app_1:transition", strings.NewReader(body))
	req = withTestIdentity(req, "cand-1", auth.RoleCandidate)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestApplicationHandlersTransitionSuccess(t *testing.T) {
	lifecycle := &stubLifecycleService{
		advanceApplicationFn: func(_ context.Context, cmd services.ApplicationTransitionCommand) (services.ApplicationRecord, error) {
			if cmd.TargetStage != domain.StageHRInterview {
				t.Fatalf("expected hr_interview stage, got %s", cmd.TargetStage)
			}
			if cmd.ActorID != "hr-1" {
				t.Fatalf("expected actor hr-1, got %s", cmd.ActorID)
			}
			return services.ApplicationRecord{
				ID:     cmd.ApplicationID,
				Stage:  cmd.TargetStage,
				Status: cmd.TargetStatus,
			}, nil
		},
	}

	handlers := NewApplicationHandlers(nil, lifecycle, &stubApplicationService{})
	router := newApplicationRouter(handlers)

	body := `{"target_stage":"hr_interview","target_status":"in_process","note":"panel passed"}`
	req := httptest.NewRequest(http.MethodPost, "/applications/app_1:transition", strings.NewReader(body))
	req = withTestIdentity(req, "hr-1", auth.RoleHR)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response applicationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Application.Stage != string(domain.StageHRInterview) {
		t.Fatalf("expected hr_interview stage, got %s", response.Application.Stage)
	}
}

func TestApplicationHandlersTransitionRejectsUnknownStage(t *testing.T) {
	handlers := NewApplicationHandlers(nil, &stubLifecycleService{}, &stubApplicationService{})
	router := newApplicationRouter(handlers)

	body := `{"target_stage":"background_check","target_status":"in_process"}`
	req := httptest.NewRequest(http.MethodPost, "/applications/app_1:transition", strings.NewReader(body))
	req = withTestIdentity(req, "hr-1", auth.RoleHR)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestApplicationHandlersSummary(t *testing.T) {
	location := "Room 4"
	lifecycle := &stubLifecycleService{
		summaryFn: func(_ context.Context, applicationID string) (services.ApplicationSummary, error) {
			offer := services.Offer{ID: "off_1", ApplicationID: applicationID, CandidateID: "cand-1", Status: domain.OfferStatusSent}
			return services.ApplicationSummary{
				Application: services.ApplicationRecord{ID: applicationID, CandidateID: "cand-1", Stage: domain.StageOffer, Status: domain.ApplicationStatusOffer},
				Interviews: []services.Interview{{
					ID:            "itv_1",
					ApplicationID: applicationID,
					Stage:         domain.StageHRInterview,
					Panel:         []string{"emp-1", "emp-2"},
					Location:      &location,
					Status:        domain.InterviewStatusCompleted,
				}},
				Score: services.InterviewAggregate{AverageScore: 4.5, ReviewerCount: 2},
				Offer: &offer,
			}, nil
		},
	}

	handlers := NewApplicationHandlers(nil, lifecycle, &stubApplicationService{})
	router := newApplicationRouter(handlers)

	req := httptest.NewRequest(http.MethodGet, "/applications/app_1/summary", nil)
	req = withTestIdentity(req, "hr-1", auth.RoleHR)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response applicationSummaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Score.ReviewerCount != 2 {
		t.Fatalf("expected 2 reviewers, got %d", response.Score.ReviewerCount)
	}
	if response.Offer == nil || response.Offer.ID != "off_1" {
		t.Fatalf("expected offer off_1, got %+v", response.Offer)
	}
	if len(response.Interviews) != 1 || response.Interviews[0].ID != "itv_1" {
		t.Fatalf("unexpected interviews: %+v", response.Interviews)
	}
}

func TestApplicationHandlersUnauthenticated(t *testing.T) {
	handlers := NewApplicationHandlers(nil, &stubLifecycleService{}, &stubApplicationService{})
	router := newApplicationRouter(handlers)

	req := httptest.NewRequest(http.MethodGet, "/applications/app_1", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

var (
	_ services.ApplicationService = (*stubApplicationService)(nil)
	_ services.LifecycleService   = (*stubLifecycleService)(nil)
)
