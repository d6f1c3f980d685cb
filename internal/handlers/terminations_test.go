package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/platform/auth"
	"github.com/peoplehub/hr-api/internal/services"
)

type stubTerminationService struct {
	getFn           func(ctx context.Context, terminationID string) (services.TerminationRequest, error)
	listFn          func(ctx context.Context, filter services.TerminationListFilter) (domain.CursorPage[services.TerminationRequest], error)
	checklistFn     func(ctx context.Context, checklistID string) (services.ClearanceChecklist, error)
	updateItemFn    func(ctx context.Context, cmd services.UpdateClearanceItemCommand) (services.ClearanceChecklist, error)
	updateCardFn    func(ctx context.Context, cmd services.UpdateCardReturnCommand) (services.ClearanceChecklist, error)
	isCompleteFn    func(ctx context.Context, checklistID string) (bool, error)
	byTerminationFn func(ctx context.Context, terminationID string) (services.ClearanceChecklist, error)
}

func (s *stubTerminationService) Create(context.Context, services.CreateTerminationCommand) (services.TerminationRequest, error) {
	return services.TerminationRequest{}, nil
}

func (s *stubTerminationService) Get(ctx context.Context, terminationID string) (services.TerminationRequest, error) {
	if s.getFn != nil {
		return s.getFn(ctx, terminationID)
	}
	return services.TerminationRequest{}, nil
}

func (s *stubTerminationService) List(ctx context.Context, filter services.TerminationListFilter) (domain.CursorPage[services.TerminationRequest], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.TerminationRequest]{}, nil
}

func (s *stubTerminationService) Process(context.Context, services.ProcessTerminationCommand) (services.TerminationRequest, error) {
	return services.TerminationRequest{}, nil
}

func (s *stubTerminationService) GetChecklist(ctx context.Context, checklistID string) (services.ClearanceChecklist, error) {
	if s.checklistFn != nil {
		return s.checklistFn(ctx, checklistID)
	}
	return services.ClearanceChecklist{}, nil
}

func (s *stubTerminationService) GetChecklistByTermination(ctx context.Context, terminationID string) (services.ClearanceChecklist, error) {
	if s.byTerminationFn != nil {
		return s.byTerminationFn(ctx, terminationID)
	}
	return services.ClearanceChecklist{}, nil
}

func (s *stubTerminationService) UpdateClearanceItem(ctx context.Context, cmd services.UpdateClearanceItemCommand) (services.ClearanceChecklist, error) {
	if s.updateItemFn != nil {
		return s.updateItemFn(ctx, cmd)
	}
	return services.ClearanceChecklist{}, nil
}

func (s *stubTerminationService) UpdateEquipmentReturn(context.Context, services.UpdateEquipmentReturnCommand) (services.ClearanceChecklist, error) {
	return services.ClearanceChecklist{}, nil
}

func (s *stubTerminationService) UpdateCardReturn(ctx context.Context, cmd services.UpdateCardReturnCommand) (services.ClearanceChecklist, error) {
	if s.updateCardFn != nil {
		return s.updateCardFn(ctx, cmd)
	}
	return services.ClearanceChecklist{}, nil
}

func (s *stubTerminationService) IsComplete(ctx context.Context, checklistID string) (bool, error) {
	if s.isCompleteFn != nil {
		return s.isCompleteFn(ctx, checklistID)
	}
	return false, nil
}

func (s *stubTerminationService) FinalizeSettlement(context.Context, services.FinalizeSettlementCommand) (services.TerminationRequest, error) {
	return services.TerminationRequest{}, nil
}

type terminationLifecycleService struct {
	stubLifecycleService
	initiateFn func(ctx context.Context, cmd services.CreateTerminationCommand) (services.TerminationRequest, error)
	settleFn   func(ctx context.Context, cmd services.FinalizeSettlementCommand) (services.TerminationRequest, error)
}

func (s *terminationLifecycleService) InitiateTermination(ctx context.Context, cmd services.CreateTerminationCommand) (services.TerminationRequest, error) {
	if s.initiateFn != nil {
		return s.initiateFn(ctx, cmd)
	}
	return services.TerminationRequest{}, nil
}

func (s *terminationLifecycleService) FinalizeSettlement(ctx context.Context, cmd services.FinalizeSettlementCommand) (services.TerminationRequest, error) {
	if s.settleFn != nil {
		return s.settleFn(ctx, cmd)
	}
	return services.TerminationRequest{}, nil
}

func newTerminationRouter(h *TerminationHandlers) chi.Router {
	r := chi.NewRouter()
	r.Route("/terminations", h.Routes)
	return r
}

func TestTerminationHandlersEmployeeResignation(t *testing.T) {
	lifecycle := &terminationLifecycleService{
		initiateFn: func(_ context.Context, cmd services.CreateTerminationCommand) (services.TerminationRequest, error) {
			if cmd.EmployeeID != "emp-1" {
				t.Fatalf("expected employee emp-1, got %s", cmd.EmployeeID)
			}
			if cmd.Initiator != domain.InitiatorEmployee {
				t.Fatalf("expected employee initiator, got %s", cmd.Initiator)
			}
			return services.TerminationRequest{
				ID:         "trm_1",
				EmployeeID: cmd.EmployeeID,
				Initiator:  cmd.Initiator,
				Status:     domain.TerminationStatusPending,
			}, nil
		},
	}

	handlers := NewTerminationHandlers(nil, lifecycle, &stubTerminationService{})
	router := newTerminationRouter(handlers)

	body := `{"contract_id":"ctr-7","reason":"relocating"}`
	req := httptest.NewRequest(http.MethodPost, "/terminations/", strings.NewReader(body))
	req = withTestIdentity(req, "emp-1", auth.RoleEmployee)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response terminationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Termination.Status != string(domain.TerminationStatusPending) {
		t.Fatalf("expected pending status, got %s", response.Termination.Status)
	}
}

func TestTerminationHandlersEmployeeCannotFileForOthers(t *testing.T) {
	handlers := NewTerminationHandlers(nil, &terminationLifecycleService{}, &stubTerminationService{})
	router := newTerminationRouter(handlers)

	body := `{"employee_id":"emp-2","reason":"performance"}`
	req := httptest.NewRequest(http.MethodPost, "/terminations/", strings.NewReader(body))
	req = withTestIdentity(req, "emp-1", auth.RoleEmployee)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestTerminationHandlersHRInitiatedMarksInitiator(t *testing.T) {
	lifecycle := &terminationLifecycleService{
		initiateFn: func(_ context.Context, cmd services.CreateTerminationCommand) (services.TerminationRequest, error) {
			if cmd.Initiator != domain.InitiatorHR {
				t.Fatalf("expected hr initiator, got %s", cmd.Initiator)
			}
			if cmd.ActorID != "hr-1" {
				t.Fatalf("expected actor hr-1, got %s", cmd.ActorID)
			}
			return services.TerminationRequest{ID: "trm_2", EmployeeID: cmd.EmployeeID, Initiator: cmd.Initiator}, nil
		},
	}

	handlers := NewTerminationHandlers(nil, lifecycle, &stubTerminationService{})
	router := newTerminationRouter(handlers)

	body := `{"employee_id":"emp-2","reason":"performance"}`
	req := httptest.NewRequest(http.MethodPost, "/terminations/", strings.NewReader(body))
	req = withTestIdentity(req, "hr-1", auth.RoleHR)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestTerminationHandlersListScopesEmployees(t *testing.T) {
	terminations := &stubTerminationService{
		listFn: func(_ context.Context, filter services.TerminationListFilter) (domain.CursorPage[services.TerminationRequest], error) {
			if filter.EmployeeID != "emp-1" {
				t.Fatalf("expected list scoped to emp-1, got %q", filter.EmployeeID)
			}
			return domain.CursorPage[services.TerminationRequest]{}, nil
		},
	}

	handlers := NewTerminationHandlers(nil, &terminationLifecycleService{}, terminations)
	router := newTerminationRouter(handlers)

	req := httptest.NewRequest(http.MethodGet, "/terminations/?employee_id=emp-2", nil)
	req = withTestIdentity(req, "emp-1", auth.RoleEmployee)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestTerminationHandlersClearanceItemUpdate(t *testing.T) {
	terminations := &stubTerminationService{
		updateItemFn: func(_ context.Context, cmd services.UpdateClearanceItemCommand) (services.ClearanceChecklist, error) {
			if cmd.ChecklistID != "clr_1" {
				t.Fatalf("expected checklist clr_1, got %s", cmd.ChecklistID)
			}
			if cmd.Department != "IT" {
				t.Fatalf("expected IT department, got %s", cmd.Department)
			}
			if cmd.Status != domain.ClearanceApproved {
				t.Fatalf("expected approved status, got %s", cmd.Status)
			}
			return services.ClearanceChecklist{
				ID:            cmd.ChecklistID,
				TerminationID: "trm_1",
				Items: []services.ClearanceItem{
					{Department: "IT", Status: domain.ClearanceApproved, UpdatedBy: cmd.ActorID},
				},
			}, nil
		},
	}

	handlers := NewTerminationHandlers(nil, &terminationLifecycleService{}, terminations)
	router := newTerminationRouter(handlers)

	body := `{"department":"IT","status":"approved","comments":"laptop wiped"}`
	req := httptest.NewRequest(http.MethodPost, "/terminations/clearances/clr_1/items", strings.NewReader(body))
	req = withTestIdentity(req, "hr-1", auth.RoleHR)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var response clearanceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(response.Checklist.Items) != 1 || response.Checklist.Items[0].Status != string(domain.ClearanceApproved) {
		t.Fatalf("unexpected checklist items: %+v", response.Checklist.Items)
	}
}

func TestTerminationHandlersClearanceRequiresStaff(t *testing.T) {
	handlers := NewTerminationHandlers(nil, &terminationLifecycleService{}, &stubTerminationService{})
	router := newTerminationRouter(handlers)

	body := `{"department":"IT","status":"approved"}`
	req := httptest.NewRequest(http.MethodPost, "/terminations/clearances/clr_1/items", strings.NewReader(body))
	req = withTestIdentity(req, "emp-1", auth.RoleEmployee)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestTerminationHandlersSettleConflictOnIncompleteClearance(t *testing.T) {
	lifecycle := &terminationLifecycleService{
		settleFn: func(context.Context, services.FinalizeSettlementCommand) (services.TerminationRequest, error) {
			return services.TerminationRequest{}, services.ErrTerminationIncompleteClearance
		},
	}

	handlers := NewTerminationHandlers(nil, lifecycle, &stubTerminationService{})
	router := newTerminationRouter(handlers)

	req := httptest.NewRequest(http.MethodPost, "/terminations/trm_1:settle", nil)
	req = withTestIdentity(req, "hr-1", auth.RoleHR)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d (%s)", rr.Code, rr.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "clearance_incomplete" {
		t.Fatalf("expected clearance_incomplete error, got %v", body["error"])
	}
}

var _ services.TerminationService = (*stubTerminationService)(nil)
