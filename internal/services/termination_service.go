package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/repositories"
)

const (
	terminationEventCreated       = "termination.created"
	terminationEventProcessed     = "termination.processed"
	terminationEventSettled       = "termination.settlement.finalized"
	clearanceEventChecklistUpdate = "clearance.checklist.updated"

	terminationIDPrefix = "trm_"
	clearanceIDPrefix   = "clr_"
)

var (
	// ErrTerminationInvalidInput signals the caller provided invalid data.
	ErrTerminationInvalidInput = errors.New("termination: invalid input")
	// ErrTerminationNotFound indicates the termination or checklist could not be located.
	ErrTerminationNotFound = errors.New("termination: not found")
	// ErrTerminationInvalidState indicates the request is not in a state accepting the operation.
	ErrTerminationInvalidState = errors.New("termination: invalid state")
	// ErrTerminationConflict indicates duplicates or concurrent modification.
	ErrTerminationConflict = errors.New("termination: conflict")
	// ErrTerminationIncompleteClearance blocks settlement until clearance completes.
	ErrTerminationIncompleteClearance = errors.New("termination: clearance incomplete")
)

// DefaultClearanceDepartments seeds new checklists when no departments are configured.
func DefaultClearanceDepartments() []string {
	return []string{"IT", "Finance", "Facilities", "HR", "Admin"}
}

// TerminationServiceDeps bundles collaborators required to construct the termination service.
type TerminationServiceDeps struct {
	Terminations repositories.TerminationRepository
	Clearances   repositories.ClearanceRepository
	Departments  []string
	Clock        func() time.Time
	IDGenerator  func() string
	Sanitize     func(string) string
	Settlement   SettlementPublisher
	Events       LifecycleEventPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type terminationService struct {
	terminations repositories.TerminationRepository
	clearances   repositories.ClearanceRepository
	departments  []string
	clock        func() time.Time
	newID        func() string
	sanitize     func(string) string
	settlement   SettlementPublisher
	events       LifecycleEventPublisher
	logger       func(context.Context, string, map[string]any)
}

// NewTerminationService wires dependencies into a concrete TerminationService implementation.
func NewTerminationService(deps TerminationServiceDeps) (TerminationService, error) {
	if deps.Terminations == nil {
		return nil, errors.New("termination service: termination repository is required")
	}
	if deps.Clearances == nil {
		return nil, errors.New("termination service: clearance repository is required")
	}

	departments := make([]string, 0, len(deps.Departments))
	for _, dept := range deps.Departments {
		if trimmed := strings.TrimSpace(dept); trimmed != "" {
			departments = append(departments, trimmed)
		}
	}
	if len(departments) == 0 {
		departments = DefaultClearanceDepartments()
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	sanitize := deps.Sanitize
	if sanitize == nil {
		sanitize = func(v string) string { return v }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &terminationService{
		terminations: deps.Terminations,
		clearances:   deps.Clearances,
		departments:  departments,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:      idGen,
		sanitize:   sanitize,
		settlement: deps.Settlement,
		events:     deps.Events,
		logger:     logger,
	}, nil
}

func (s *terminationService) Create(ctx context.Context, cmd CreateTerminationCommand) (TerminationRequest, error) {
	employeeID := strings.TrimSpace(cmd.EmployeeID)
	if employeeID == "" {
		return TerminationRequest{}, fmt.Errorf("%w: employee id is required", ErrTerminationInvalidInput)
	}
	initiator := domain.TerminationInitiator(strings.TrimSpace(string(cmd.Initiator)))
	if initiator != domain.InitiatorEmployee && initiator != domain.InitiatorHR {
		return TerminationRequest{}, fmt.Errorf("%w: initiator must be employee or hr", ErrTerminationInvalidInput)
	}
	reason := s.sanitize(strings.TrimSpace(cmd.Reason))
	if reason == "" {
		return TerminationRequest{}, fmt.Errorf("%w: reason is required", ErrTerminationInvalidInput)
	}

	now := s.now()
	request := TerminationRequest{
		ID:              terminationIDPrefix + s.newID(),
		EmployeeID:      employeeID,
		ContractID:      strings.TrimSpace(cmd.ContractID),
		Initiator:       initiator,
		Reason:          reason,
		Status:          domain.TerminationStatusPending,
		TerminationDate: cloneTimePtr(cmd.TerminationDate),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if actor := strings.TrimSpace(cmd.ActorID); actor != "" {
		request.Audit.CreatedBy = valuePtr(actor)
		request.Audit.UpdatedBy = valuePtr(actor)
	}

	if err := s.terminations.Insert(ctx, request); err != nil {
		return TerminationRequest{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, LifecycleEvent{
		Type:       terminationEventCreated,
		EntityID:   request.ID,
		EntityKind: "termination",
		Current:    string(request.Status),
		ActorID:    cmd.ActorID,
		OccurredAt: now,
		Metadata: map[string]any{
			"employeeId": employeeID,
			"initiator":  string(initiator),
		},
	})

	return request, nil
}

func (s *terminationService) Get(ctx context.Context, terminationID string) (TerminationRequest, error) {
	terminationID = strings.TrimSpace(terminationID)
	if terminationID == "" {
		return TerminationRequest{}, fmt.Errorf("%w: termination id is required", ErrTerminationInvalidInput)
	}
	request, err := s.terminations.FindByID(ctx, terminationID)
	if err != nil {
		return TerminationRequest{}, s.mapRepositoryError(err)
	}
	return request, nil
}

func (s *terminationService) List(ctx context.Context, filter TerminationListFilter) (domain.CursorPage[TerminationRequest], error) {
	page, err := s.terminations.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[TerminationRequest]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// Process records the HR decision on a pending request. Approval stamps the
// processing audit fields and creates the clearance checklist; the checklist
// create is idempotent so a retried approval never produces a second one.
func (s *terminationService) Process(ctx context.Context, cmd ProcessTerminationCommand) (TerminationRequest, error) {
	terminationID := strings.TrimSpace(cmd.TerminationID)
	if terminationID == "" {
		return TerminationRequest{}, fmt.Errorf("%w: termination id is required", ErrTerminationInvalidInput)
	}
	decision := domain.TerminationStatus(strings.TrimSpace(string(cmd.Decision)))
	if decision != domain.TerminationStatusApproved && decision != domain.TerminationStatusRejected {
		return TerminationRequest{}, fmt.Errorf("%w: decision must be approved or rejected", ErrTerminationInvalidInput)
	}
	actor := strings.TrimSpace(cmd.ActorID)
	if actor == "" {
		return TerminationRequest{}, fmt.Errorf("%w: actor id is required", ErrTerminationInvalidInput)
	}

	request, err := s.terminations.FindByID(ctx, terminationID)
	if err != nil {
		return TerminationRequest{}, s.mapRepositoryError(err)
	}
	if request.Status != domain.TerminationStatusPending {
		return TerminationRequest{}, fmt.Errorf("%w: termination already processed as %q", ErrTerminationInvalidState, request.Status)
	}

	now := s.now()
	prev := request.Status

	request.Status = decision
	request.HRComments = s.sanitize(strings.TrimSpace(cmd.HRComments))
	request.ProcessedAt = &now
	request.ProcessedBy = valuePtr(actor)
	request.UpdatedAt = now
	request.Audit.UpdatedBy = valuePtr(actor)

	if decision == domain.TerminationStatusApproved {
		if date := cloneTimePtr(cmd.TerminationDate); date != nil {
			request.TerminationDate = date
		}
		if request.TerminationDate == nil {
			request.TerminationDate = &now
		}

		checklist, created, err := s.clearances.CreateForTermination(ctx, s.newChecklist(terminationID, now))
		if err != nil {
			return TerminationRequest{}, s.mapRepositoryError(err)
		}
		request.ChecklistRef = valuePtr(checklist.ID)
		if !created {
			s.logger(ctx, "termination.checklist.reused", map[string]any{
				"termination": terminationID,
				"checklist":   checklist.ID,
			})
		}
	}

	if err := s.terminations.Update(ctx, request); err != nil {
		return TerminationRequest{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, LifecycleEvent{
		Type:       terminationEventProcessed,
		EntityID:   request.ID,
		EntityKind: "termination",
		Previous:   string(prev),
		Current:    string(request.Status),
		ActorID:    actor,
		OccurredAt: now,
	})

	return request, nil
}

func (s *terminationService) newChecklist(terminationID string, now time.Time) ClearanceChecklist {
	items := make([]ClearanceItem, 0, len(s.departments))
	for _, dept := range s.departments {
		items = append(items, ClearanceItem{
			Department: dept,
			Status:     domain.ClearancePending,
		})
	}
	return ClearanceChecklist{
		ID:            clearanceIDPrefix + s.newID(),
		TerminationID: terminationID,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *terminationService) GetChecklist(ctx context.Context, checklistID string) (ClearanceChecklist, error) {
	checklistID = strings.TrimSpace(checklistID)
	if checklistID == "" {
		return ClearanceChecklist{}, fmt.Errorf("%w: checklist id is required", ErrTerminationInvalidInput)
	}
	checklist, err := s.clearances.FindByID(ctx, checklistID)
	if err != nil {
		return ClearanceChecklist{}, s.mapRepositoryError(err)
	}
	return checklist, nil
}

func (s *terminationService) GetChecklistByTermination(ctx context.Context, terminationID string) (ClearanceChecklist, error) {
	terminationID = strings.TrimSpace(terminationID)
	if terminationID == "" {
		return ClearanceChecklist{}, fmt.Errorf("%w: termination id is required", ErrTerminationInvalidInput)
	}
	checklist, err := s.clearances.FindByTermination(ctx, terminationID)
	if err != nil {
		return ClearanceChecklist{}, s.mapRepositoryError(err)
	}
	return checklist, nil
}

// UpdateClearanceItem upserts the department entry: an existing entry is
// replaced in place, an unknown department is appended.
func (s *terminationService) UpdateClearanceItem(ctx context.Context, cmd UpdateClearanceItemCommand) (ClearanceChecklist, error) {
	checklistID := strings.TrimSpace(cmd.ChecklistID)
	if checklistID == "" {
		return ClearanceChecklist{}, fmt.Errorf("%w: checklist id is required", ErrTerminationInvalidInput)
	}
	department := strings.TrimSpace(cmd.Department)
	if department == "" {
		return ClearanceChecklist{}, fmt.Errorf("%w: department is required", ErrTerminationInvalidInput)
	}
	status := domain.ClearanceStatus(strings.TrimSpace(string(cmd.Status)))
	switch status {
	case domain.ClearancePending, domain.ClearanceApproved, domain.ClearanceRejected:
	default:
		return ClearanceChecklist{}, fmt.Errorf("%w: unknown clearance status %q", ErrTerminationInvalidInput, cmd.Status)
	}

	checklist, err := s.clearances.FindByID(ctx, checklistID)
	if err != nil {
		return ClearanceChecklist{}, s.mapRepositoryError(err)
	}

	now := s.now()
	item := ClearanceItem{
		Department: department,
		Status:     status,
		Comments:   s.sanitize(strings.TrimSpace(cmd.Comments)),
		UpdatedBy:  strings.TrimSpace(cmd.ActorID),
		UpdatedAt:  &now,
	}

	replaced := false
	for i, existing := range checklist.Items {
		if strings.EqualFold(existing.Department, department) {
			item.Department = existing.Department
			checklist.Items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		checklist.Items = append(checklist.Items, item)
	}
	checklist.UpdatedAt = now

	if err := s.clearances.Update(ctx, checklist); err != nil {
		return ClearanceChecklist{}, s.mapRepositoryError(err)
	}

	s.publishChecklistUpdate(ctx, checklist, cmd.ActorID, now, map[string]any{
		"department": item.Department,
		"status":     string(status),
	})

	return checklist, nil
}

// UpdateEquipmentReturn upserts one tracked asset on the checklist.
func (s *terminationService) UpdateEquipmentReturn(ctx context.Context, cmd UpdateEquipmentReturnCommand) (ClearanceChecklist, error) {
	checklistID := strings.TrimSpace(cmd.ChecklistID)
	if checklistID == "" {
		return ClearanceChecklist{}, fmt.Errorf("%w: checklist id is required", ErrTerminationInvalidInput)
	}
	equipmentID := strings.TrimSpace(cmd.EquipmentID)
	if equipmentID == "" {
		return ClearanceChecklist{}, fmt.Errorf("%w: equipment id is required", ErrTerminationInvalidInput)
	}

	checklist, err := s.clearances.FindByID(ctx, checklistID)
	if err != nil {
		return ClearanceChecklist{}, s.mapRepositoryError(err)
	}

	now := s.now()
	entry := EquipmentReturn{
		EquipmentID: equipmentID,
		Name:        strings.TrimSpace(cmd.Name),
		Returned:    cmd.Returned,
		Condition:   s.sanitize(strings.TrimSpace(cmd.Condition)),
	}

	replaced := false
	for i, existing := range checklist.Equipment {
		if existing.EquipmentID == equipmentID {
			if entry.Name == "" {
				entry.Name = existing.Name
			}
			checklist.Equipment[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		checklist.Equipment = append(checklist.Equipment, entry)
	}
	checklist.UpdatedAt = now

	if err := s.clearances.Update(ctx, checklist); err != nil {
		return ClearanceChecklist{}, s.mapRepositoryError(err)
	}

	s.publishChecklistUpdate(ctx, checklist, cmd.ActorID, now, map[string]any{
		"equipmentId": equipmentID,
		"returned":    cmd.Returned,
	})

	return checklist, nil
}

func (s *terminationService) UpdateCardReturn(ctx context.Context, cmd UpdateCardReturnCommand) (ClearanceChecklist, error) {
	checklistID := strings.TrimSpace(cmd.ChecklistID)
	if checklistID == "" {
		return ClearanceChecklist{}, fmt.Errorf("%w: checklist id is required", ErrTerminationInvalidInput)
	}

	checklist, err := s.clearances.FindByID(ctx, checklistID)
	if err != nil {
		return ClearanceChecklist{}, s.mapRepositoryError(err)
	}

	now := s.now()
	checklist.CardReturned = cmd.Returned
	checklist.UpdatedAt = now

	if err := s.clearances.Update(ctx, checklist); err != nil {
		return ClearanceChecklist{}, s.mapRepositoryError(err)
	}

	s.publishChecklistUpdate(ctx, checklist, cmd.ActorID, now, map[string]any{
		"cardReturned": cmd.Returned,
	})

	return checklist, nil
}

// IsComplete reports whether every department item is approved, every tracked
// asset is returned, and the access card is back. A checklist with no tracked
// equipment passes the equipment condition vacuously.
func (s *terminationService) IsComplete(ctx context.Context, checklistID string) (bool, error) {
	checklist, err := s.GetChecklist(ctx, checklistID)
	if err != nil {
		return false, err
	}
	return clearanceComplete(checklist), nil
}

func clearanceComplete(checklist ClearanceChecklist) bool {
	for _, item := range checklist.Items {
		if item.Status != domain.ClearanceApproved {
			return false
		}
	}
	for _, equipment := range checklist.Equipment {
		if !equipment.Returned {
			return false
		}
	}
	return checklist.CardReturned
}

// FinalizeSettlement marks the termination settled once clearance is complete
// and publishes the settlement event. Publish failures propagate so the caller
// can retry; the finalized stamp is written only after a successful publish.
func (s *terminationService) FinalizeSettlement(ctx context.Context, cmd FinalizeSettlementCommand) (TerminationRequest, error) {
	terminationID := strings.TrimSpace(cmd.TerminationID)
	if terminationID == "" {
		return TerminationRequest{}, fmt.Errorf("%w: termination id is required", ErrTerminationInvalidInput)
	}

	request, err := s.terminations.FindByID(ctx, terminationID)
	if err != nil {
		return TerminationRequest{}, s.mapRepositoryError(err)
	}
	if request.Status != domain.TerminationStatusApproved {
		return TerminationRequest{}, fmt.Errorf("%w: only approved terminations can be settled, got %q", ErrTerminationInvalidState, request.Status)
	}
	if request.SettlementFinalizedAt != nil {
		return request, nil
	}

	checklist, err := s.clearances.FindByTermination(ctx, terminationID)
	if err != nil {
		return TerminationRequest{}, s.mapRepositoryError(err)
	}
	if !clearanceComplete(checklist) {
		return TerminationRequest{}, fmt.Errorf("%w: checklist %s has outstanding items", ErrTerminationIncompleteClearance, checklist.ID)
	}

	now := s.now()
	if s.settlement != nil {
		event := SettlementEvent{
			TerminationID:   request.ID,
			EmployeeID:      request.EmployeeID,
			ContractID:      request.ContractID,
			TerminationDate: cloneTimePtr(request.TerminationDate),
			FinalizedAt:     now,
		}
		if err := s.settlement.PublishSettlementFinalized(ctx, event); err != nil {
			return TerminationRequest{}, fmt.Errorf("termination: settlement publish failed: %w", err)
		}
	}

	request.SettlementFinalizedAt = &now
	request.UpdatedAt = now
	if actor := strings.TrimSpace(cmd.ActorID); actor != "" {
		request.Audit.UpdatedBy = valuePtr(actor)
	}

	if err := s.terminations.Update(ctx, request); err != nil {
		return TerminationRequest{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, LifecycleEvent{
		Type:       terminationEventSettled,
		EntityID:   request.ID,
		EntityKind: "termination",
		Current:    string(request.Status),
		ActorID:    cmd.ActorID,
		OccurredAt: now,
	})

	return request, nil
}

func (s *terminationService) publishChecklistUpdate(ctx context.Context, checklist ClearanceChecklist, actor string, now time.Time, metadata map[string]any) {
	metadata = ensureMap(metadata)
	metadata["terminationId"] = checklist.TerminationID
	s.publishEvent(ctx, LifecycleEvent{
		Type:       clearanceEventChecklistUpdate,
		EntityID:   checklist.ID,
		EntityKind: "clearance",
		ActorID:    actor,
		OccurredAt: now,
		Metadata:   metadata,
	})
}

func (s *terminationService) publishEvent(ctx context.Context, event LifecycleEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLifecycleEvent(ctx, event); err != nil {
		s.logger(ctx, "lifecycle.event.publish.failed", map[string]any{
			"type":   event.Type,
			"entity": event.EntityID,
			"error":  err.Error(),
		})
	}
}

func (s *terminationService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTerminationInvalidInput) || errors.Is(err, ErrTerminationInvalidState) ||
		errors.Is(err, ErrTerminationIncompleteClearance) || errors.Is(err, ErrTerminationConflict) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrTerminationNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrTerminationConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("termination: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *terminationService) now() time.Time {
	return s.clock()
}
