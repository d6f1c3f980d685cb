package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/repositories"
)

type stubTerminationRepo struct {
	insertFn func(context.Context, domain.TerminationRequest) error
	updateFn func(context.Context, domain.TerminationRequest) error
	findFn   func(context.Context, string) (domain.TerminationRequest, error)
	listFn   func(context.Context, repositories.TerminationListFilter) (domain.CursorPage[domain.TerminationRequest], error)
}

func (s *stubTerminationRepo) Insert(ctx context.Context, request domain.TerminationRequest) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, request)
	}
	return nil
}

func (s *stubTerminationRepo) Update(ctx context.Context, request domain.TerminationRequest) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, request)
	}
	return nil
}

func (s *stubTerminationRepo) FindByID(ctx context.Context, terminationID string) (domain.TerminationRequest, error) {
	if s.findFn != nil {
		return s.findFn(ctx, terminationID)
	}
	return domain.TerminationRequest{}, errors.New("not implemented")
}

func (s *stubTerminationRepo) List(ctx context.Context, filter repositories.TerminationListFilter) (domain.CursorPage[domain.TerminationRequest], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.TerminationRequest]{}, nil
}

type stubClearanceRepo struct {
	insertFn    func(context.Context, domain.ClearanceChecklist) error
	updateFn    func(context.Context, domain.ClearanceChecklist) error
	findFn      func(context.Context, string) (domain.ClearanceChecklist, error)
	findByTrmFn func(context.Context, string) (domain.ClearanceChecklist, error)
	createFn    func(context.Context, domain.ClearanceChecklist) (domain.ClearanceChecklist, bool, error)
}

func (s *stubClearanceRepo) Insert(ctx context.Context, checklist domain.ClearanceChecklist) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, checklist)
	}
	return nil
}

func (s *stubClearanceRepo) Update(ctx context.Context, checklist domain.ClearanceChecklist) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, checklist)
	}
	return nil
}

func (s *stubClearanceRepo) FindByID(ctx context.Context, checklistID string) (domain.ClearanceChecklist, error) {
	if s.findFn != nil {
		return s.findFn(ctx, checklistID)
	}
	return domain.ClearanceChecklist{}, errors.New("not implemented")
}

func (s *stubClearanceRepo) FindByTermination(ctx context.Context, terminationID string) (domain.ClearanceChecklist, error) {
	if s.findByTrmFn != nil {
		return s.findByTrmFn(ctx, terminationID)
	}
	return domain.ClearanceChecklist{}, appRepoErr{notFound: true}
}

func (s *stubClearanceRepo) CreateForTermination(ctx context.Context, checklist domain.ClearanceChecklist) (domain.ClearanceChecklist, bool, error) {
	if s.createFn != nil {
		return s.createFn(ctx, checklist)
	}
	return checklist, true, nil
}

type captureSettlement struct {
	events []SettlementEvent
	err    error
}

func (c *captureSettlement) PublishSettlementFinalized(_ context.Context, event SettlementEvent) error {
	c.events = append(c.events, event)
	return c.err
}

func completedChecklist() domain.ClearanceChecklist {
	return domain.ClearanceChecklist{
		ID:            "clr_1",
		TerminationID: "trm_1",
		Items: []domain.ClearanceItem{
			{Department: "IT", Status: domain.ClearanceApproved},
			{Department: "Finance", Status: domain.ClearanceApproved},
		},
		Equipment: []domain.EquipmentReturn{
			{EquipmentID: "eq_1", Returned: true},
		},
		CardReturned: true,
	}
}

func TestTerminationServiceCreateDefaults(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var inserted domain.TerminationRequest
	repo := &stubTerminationRepo{
		insertFn: func(_ context.Context, request domain.TerminationRequest) error {
			inserted = request
			return nil
		},
	}

	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: repo,
		Clearances:   &stubClearanceRepo{},
		Clock:        fixedClock(now),
		IDGenerator:  staticID("000TEST"),
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	request, err := svc.Create(context.Background(), CreateTerminationCommand{
		EmployeeID: "emp_1",
		Initiator:  domain.InitiatorEmployee,
		Reason:     "relocating",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if request.ID != "trm_000TEST" {
		t.Fatalf("unexpected id %s", request.ID)
	}
	if request.Status != domain.TerminationStatusPending {
		t.Fatalf("expected pending status, got %s", request.Status)
	}
	if inserted.EmployeeID != "emp_1" {
		t.Fatalf("insert not called with request")
	}
}

func TestTerminationServiceCreateValidatesInitiator(t *testing.T) {
	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: &stubTerminationRepo{},
		Clearances:   &stubClearanceRepo{},
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	_, err = svc.Create(context.Background(), CreateTerminationCommand{
		EmployeeID: "emp_1",
		Initiator:  "finance",
		Reason:     "x",
	})
	if !errors.Is(err, ErrTerminationInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestTerminationServiceProcessApprovalCreatesChecklist(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	var updated domain.TerminationRequest
	terminations := &stubTerminationRepo{
		findFn: func(context.Context, string) (domain.TerminationRequest, error) {
			return domain.TerminationRequest{ID: "trm_1", EmployeeID: "emp_1", Status: domain.TerminationStatusPending}, nil
		},
		updateFn: func(_ context.Context, request domain.TerminationRequest) error {
			updated = request
			return nil
		},
	}
	var seeded domain.ClearanceChecklist
	clearances := &stubClearanceRepo{
		createFn: func(_ context.Context, checklist domain.ClearanceChecklist) (domain.ClearanceChecklist, bool, error) {
			seeded = checklist
			return checklist, true, nil
		},
	}

	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: terminations,
		Clearances:   clearances,
		Clock:        fixedClock(now),
		IDGenerator:  staticID("000TEST"),
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	request, err := svc.Process(context.Background(), ProcessTerminationCommand{
		TerminationID: "trm_1",
		Decision:      domain.TerminationStatusApproved,
		ActorID:       "hr_1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if request.Status != domain.TerminationStatusApproved {
		t.Fatalf("expected approved, got %s", request.Status)
	}
	if request.ProcessedAt == nil || !request.ProcessedAt.Equal(now) {
		t.Fatalf("processedAt not stamped: %v", request.ProcessedAt)
	}
	if request.ProcessedBy == nil || *request.ProcessedBy != "hr_1" {
		t.Fatalf("processedBy not stamped: %v", request.ProcessedBy)
	}
	if request.TerminationDate == nil || !request.TerminationDate.Equal(now) {
		t.Fatalf("missing termination date must default to processing time: %v", request.TerminationDate)
	}
	if request.ChecklistRef == nil || *request.ChecklistRef != "clr_000TEST" {
		t.Fatalf("checklist ref not stored: %v", request.ChecklistRef)
	}
	if len(seeded.Items) != 5 {
		t.Fatalf("expected default five departments, got %d", len(seeded.Items))
	}
	for _, item := range seeded.Items {
		if item.Status != domain.ClearancePending {
			t.Fatalf("seeded item %s not pending: %s", item.Department, item.Status)
		}
	}
	if updated.ID != "trm_1" {
		t.Fatalf("termination not persisted")
	}
}

func TestTerminationServiceProcessReusesExistingChecklist(t *testing.T) {
	terminations := &stubTerminationRepo{
		findFn: func(context.Context, string) (domain.TerminationRequest, error) {
			return domain.TerminationRequest{ID: "trm_1", Status: domain.TerminationStatusPending}, nil
		},
	}
	clearances := &stubClearanceRepo{
		createFn: func(_ context.Context, _ domain.ClearanceChecklist) (domain.ClearanceChecklist, bool, error) {
			return domain.ClearanceChecklist{ID: "clr_existing", TerminationID: "trm_1"}, false, nil
		},
	}

	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: terminations,
		Clearances:   clearances,
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	request, err := svc.Process(context.Background(), ProcessTerminationCommand{
		TerminationID: "trm_1",
		Decision:      domain.TerminationStatusApproved,
		ActorID:       "hr_1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if request.ChecklistRef == nil || *request.ChecklistRef != "clr_existing" {
		t.Fatalf("expected existing checklist ref, got %v", request.ChecklistRef)
	}
}

func TestTerminationServiceProcessRejectedSkipsChecklist(t *testing.T) {
	terminations := &stubTerminationRepo{
		findFn: func(context.Context, string) (domain.TerminationRequest, error) {
			return domain.TerminationRequest{ID: "trm_1", Status: domain.TerminationStatusPending}, nil
		},
	}
	clearances := &stubClearanceRepo{
		createFn: func(context.Context, domain.ClearanceChecklist) (domain.ClearanceChecklist, bool, error) {
			t.Fatalf("rejected termination must not create a checklist")
			return domain.ClearanceChecklist{}, false, nil
		},
	}

	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: terminations,
		Clearances:   clearances,
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	request, err := svc.Process(context.Background(), ProcessTerminationCommand{
		TerminationID: "trm_1",
		Decision:      domain.TerminationStatusRejected,
		ActorID:       "hr_1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if request.ChecklistRef != nil {
		t.Fatalf("rejected termination must not carry a checklist ref")
	}
}

func TestTerminationServiceProcessRejectsAlreadyProcessed(t *testing.T) {
	terminations := &stubTerminationRepo{
		findFn: func(context.Context, string) (domain.TerminationRequest, error) {
			return domain.TerminationRequest{ID: "trm_1", Status: domain.TerminationStatusApproved}, nil
		},
	}

	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: terminations,
		Clearances:   &stubClearanceRepo{},
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	_, err = svc.Process(context.Background(), ProcessTerminationCommand{
		TerminationID: "trm_1",
		Decision:      domain.TerminationStatusRejected,
		ActorID:       "hr_1",
	})
	if !errors.Is(err, ErrTerminationInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestTerminationServiceUpdateClearanceItemUpserts(t *testing.T) {
	now := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)
	stored := domain.ClearanceChecklist{
		ID:            "clr_1",
		TerminationID: "trm_1",
		Items: []domain.ClearanceItem{
			{Department: "IT", Status: domain.ClearancePending},
		},
	}
	var updated domain.ClearanceChecklist
	clearances := &stubClearanceRepo{
		findFn: func(context.Context, string) (domain.ClearanceChecklist, error) { return stored, nil },
		updateFn: func(_ context.Context, checklist domain.ClearanceChecklist) error {
			updated = checklist
			return nil
		},
	}

	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: &stubTerminationRepo{},
		Clearances:   clearances,
		Clock:        fixedClock(now),
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	_, err = svc.UpdateClearanceItem(context.Background(), UpdateClearanceItemCommand{
		ChecklistID: "clr_1",
		Department:  "it",
		Status:      domain.ClearanceApproved,
		ActorID:     "it_lead",
	})
	if err != nil {
		t.Fatalf("update clearance item: %v", err)
	}

	if len(updated.Items) != 1 {
		t.Fatalf("case-insensitive department match must replace, got %d items", len(updated.Items))
	}
	item := updated.Items[0]
	if item.Department != "IT" || item.Status != domain.ClearanceApproved {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.UpdatedBy != "it_lead" || item.UpdatedAt == nil || !item.UpdatedAt.Equal(now) {
		t.Fatalf("item audit not stamped: %+v", item)
	}
}

func TestTerminationServiceIsComplete(t *testing.T) {
	cases := []struct {
		name      string
		checklist domain.ClearanceChecklist
		want      bool
	}{
		{name: "all clear", checklist: completedChecklist(), want: true},
		{
			name: "pending department blocks",
			checklist: func() domain.ClearanceChecklist {
				c := completedChecklist()
				c.Items[1].Status = domain.ClearancePending
				return c
			}(),
		},
		{
			name: "rejected department blocks",
			checklist: func() domain.ClearanceChecklist {
				c := completedChecklist()
				c.Items[0].Status = domain.ClearanceRejected
				return c
			}(),
		},
		{
			name: "unreturned equipment blocks",
			checklist: func() domain.ClearanceChecklist {
				c := completedChecklist()
				c.Equipment[0].Returned = false
				return c
			}(),
		},
		{
			name: "card outstanding blocks",
			checklist: func() domain.ClearanceChecklist {
				c := completedChecklist()
				c.CardReturned = false
				return c
			}(),
		},
		{
			name: "no equipment passes vacuously",
			checklist: func() domain.ClearanceChecklist {
				c := completedChecklist()
				c.Equipment = nil
				return c
			}(),
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearances := &stubClearanceRepo{
				findFn: func(context.Context, string) (domain.ClearanceChecklist, error) {
					return tc.checklist, nil
				},
			}
			svc, err := NewTerminationService(TerminationServiceDeps{
				Terminations: &stubTerminationRepo{},
				Clearances:   clearances,
			})
			if err != nil {
				t.Fatalf("new termination service: %v", err)
			}

			complete, err := svc.IsComplete(context.Background(), "clr_1")
			if err != nil {
				t.Fatalf("is complete: %v", err)
			}
			if complete != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, complete)
			}
		})
	}
}

func TestTerminationServiceFinalizeSettlementGate(t *testing.T) {
	incomplete := completedChecklist()
	incomplete.CardReturned = false

	terminations := &stubTerminationRepo{
		findFn: func(context.Context, string) (domain.TerminationRequest, error) {
			return domain.TerminationRequest{ID: "trm_1", Status: domain.TerminationStatusApproved}, nil
		},
	}
	clearances := &stubClearanceRepo{
		findByTrmFn: func(context.Context, string) (domain.ClearanceChecklist, error) {
			return incomplete, nil
		},
	}
	settlement := &captureSettlement{}

	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: terminations,
		Clearances:   clearances,
		Settlement:   settlement,
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	_, err = svc.FinalizeSettlement(context.Background(), FinalizeSettlementCommand{TerminationID: "trm_1"})
	if !errors.Is(err, ErrTerminationIncompleteClearance) {
		t.Fatalf("expected incomplete clearance, got %v", err)
	}
	if len(settlement.events) != 0 {
		t.Fatalf("settlement must not publish when clearance incomplete")
	}
}

func TestTerminationServiceFinalizeSettlementPublishes(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	var updated domain.TerminationRequest
	terminations := &stubTerminationRepo{
		findFn: func(context.Context, string) (domain.TerminationRequest, error) {
			return domain.TerminationRequest{ID: "trm_1", EmployeeID: "emp_1", Status: domain.TerminationStatusApproved}, nil
		},
		updateFn: func(_ context.Context, request domain.TerminationRequest) error {
			updated = request
			return nil
		},
	}
	clearances := &stubClearanceRepo{
		findByTrmFn: func(context.Context, string) (domain.ClearanceChecklist, error) {
			return completedChecklist(), nil
		},
	}
	settlement := &captureSettlement{}

	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: terminations,
		Clearances:   clearances,
		Settlement:   settlement,
		Clock:        fixedClock(now),
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	request, err := svc.FinalizeSettlement(context.Background(), FinalizeSettlementCommand{
		TerminationID: "trm_1",
		ActorID:       "hr_1",
	})
	if err != nil {
		t.Fatalf("finalize settlement: %v", err)
	}

	if request.SettlementFinalizedAt == nil || !request.SettlementFinalizedAt.Equal(now) {
		t.Fatalf("settlement timestamp not stamped: %v", request.SettlementFinalizedAt)
	}
	if len(settlement.events) != 1 || settlement.events[0].EmployeeID != "emp_1" {
		t.Fatalf("expected one settlement event, got %+v", settlement.events)
	}
	if updated.SettlementFinalizedAt == nil {
		t.Fatalf("settlement not persisted")
	}
}

func TestTerminationServiceFinalizeSettlementPublishFailurePropagates(t *testing.T) {
	terminations := &stubTerminationRepo{
		findFn: func(context.Context, string) (domain.TerminationRequest, error) {
			return domain.TerminationRequest{ID: "trm_1", Status: domain.TerminationStatusApproved}, nil
		},
		updateFn: func(context.Context, domain.TerminationRequest) error {
			t.Fatalf("must not persist when settlement publish fails")
			return nil
		},
	}
	clearances := &stubClearanceRepo{
		findByTrmFn: func(context.Context, string) (domain.ClearanceChecklist, error) {
			return completedChecklist(), nil
		},
	}
	settlement := &captureSettlement{err: errors.New("broker down")}

	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: terminations,
		Clearances:   clearances,
		Settlement:   settlement,
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	if _, err := svc.FinalizeSettlement(context.Background(), FinalizeSettlementCommand{TerminationID: "trm_1"}); err == nil {
		t.Fatalf("expected publish failure to propagate")
	}
}

func TestTerminationServiceFinalizeSettlementIdempotent(t *testing.T) {
	finalized := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	settlement := &captureSettlement{}
	terminations := &stubTerminationRepo{
		findFn: func(context.Context, string) (domain.TerminationRequest, error) {
			return domain.TerminationRequest{
				ID:                    "trm_1",
				Status:                domain.TerminationStatusApproved,
				SettlementFinalizedAt: &finalized,
			}, nil
		},
	}

	svc, err := NewTerminationService(TerminationServiceDeps{
		Terminations: terminations,
		Clearances:   &stubClearanceRepo{},
		Settlement:   settlement,
	})
	if err != nil {
		t.Fatalf("new termination service: %v", err)
	}

	request, err := svc.FinalizeSettlement(context.Background(), FinalizeSettlementCommand{TerminationID: "trm_1"})
	if err != nil {
		t.Fatalf("finalize settlement: %v", err)
	}
	if !request.SettlementFinalizedAt.Equal(finalized) {
		t.Fatalf("existing settlement timestamp must be preserved")
	}
	if len(settlement.events) != 0 {
		t.Fatalf("repeat finalize must not publish again")
	}
}
