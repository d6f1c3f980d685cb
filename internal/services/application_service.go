package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/platform/textutil"
	"github.com/peoplehub/hr-api/internal/repositories"
)

const (
	applicationEventCreated       = "application.created"
	applicationEventStatusChanged = "application.status.changed"

	applicationIDPrefix = "app_"
	historyIDPrefix     = "his_"
)

var (
	// ErrApplicationInvalidInput signals the caller provided invalid data.
	ErrApplicationInvalidInput = errors.New("application: invalid input")
	// ErrApplicationNotFound indicates the application could not be located.
	ErrApplicationNotFound = errors.New("application: not found")
	// ErrApplicationInvalidState indicates an invalid stage/status transition was attempted.
	ErrApplicationInvalidState = errors.New("application: invalid transition")
	// ErrApplicationConflict indicates duplicates or concurrent modification.
	ErrApplicationConflict = errors.New("application: conflict")
)

// terminalApplicationStatuses may never be exited once reached.
var terminalApplicationStatuses = []domain.ApplicationStatus{
	domain.ApplicationStatusHired,
	domain.ApplicationStatusRejected,
}

var applicationStatusValues = []domain.ApplicationStatus{
	domain.ApplicationStatusSubmitted,
	domain.ApplicationStatusInProcess,
	domain.ApplicationStatusOffer,
	domain.ApplicationStatusHired,
	domain.ApplicationStatusRejected,
}

// statusNotificationTemplates keys candidate-facing message templates by status.
// Unknown statuses fall back to the generic update template.
var statusNotificationTemplates = map[domain.ApplicationStatus]string{
	domain.ApplicationStatusSubmitted: "application.received",
	domain.ApplicationStatusInProcess: "application.in_process",
	domain.ApplicationStatusOffer:     "application.offer",
	domain.ApplicationStatusHired:     "application.hired",
	domain.ApplicationStatusRejected:  "application.rejected",
}

const genericNotificationTemplate = "application.update"

// DefaultStageTemplate is the hiring pipeline used when no template is configured.
func DefaultStageTemplate() domain.StageTemplate {
	return domain.StageTemplate{
		Stages: []domain.ApplicationStage{
			domain.StageScreening,
			domain.StageDepartmentInterview,
			domain.StageHRInterview,
			domain.StageOffer,
		},
	}
}

// ApplicationServiceDeps bundles collaborators required to construct the application service.
type ApplicationServiceDeps struct {
	Applications repositories.ApplicationRepository
	History      repositories.StatusHistoryRepository
	Offers       repositories.OfferRepository
	UnitOfWork   repositories.UnitOfWork
	Stages       domain.StageTemplate
	Clock        func() time.Time
	IDGenerator  func() string
	Notifier     CandidateNotifier
	Events       LifecycleEventPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type applicationService struct {
	applications repositories.ApplicationRepository
	history      repositories.StatusHistoryRepository
	offers       repositories.OfferRepository
	unitOfWork   repositories.UnitOfWork
	stages       domain.StageTemplate
	clock        func() time.Time
	newID        func() string
	notifier     CandidateNotifier
	events       LifecycleEventPublisher
	logger       func(context.Context, string, map[string]any)
}

// NewApplicationService wires dependencies into a concrete ApplicationService implementation.
func NewApplicationService(deps ApplicationServiceDeps) (ApplicationService, error) {
	if deps.Applications == nil {
		return nil, errors.New("application service: application repository is required")
	}
	if deps.History == nil {
		return nil, errors.New("application service: status history repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	stages := deps.Stages
	if len(stages.Stages) == 0 {
		stages = DefaultStageTemplate()
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

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &applicationService{
		applications: deps.Applications,
		history:      deps.History,
		offers:       deps.Offers,
		unitOfWork:   unit,
		stages:       stages,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		notifier: deps.Notifier,
		events:   deps.Events,
		logger:   logger,
	}, nil
}

func (s *applicationService) Create(ctx context.Context, cmd CreateApplicationCommand) (ApplicationRecord, error) {
	candidateID := strings.TrimSpace(cmd.CandidateID)
	if candidateID == "" {
		return ApplicationRecord{}, fmt.Errorf("%w: candidate id is required", ErrApplicationInvalidInput)
	}
	requisitionID := strings.TrimSpace(cmd.RequisitionID)
	if requisitionID == "" {
		return ApplicationRecord{}, fmt.Errorf("%w: requisition id is required", ErrApplicationInvalidInput)
	}

	now := s.now()

	application := ApplicationRecord{
		ID:             applicationIDPrefix + s.newID(),
		CandidateID:    candidateID,
		RequisitionID:  requisitionID,
		Stage:          s.stages.Stages[0],
		Status:         domain.ApplicationStatusSubmitted,
		ResumeRef:      cloneStringPtr(cmd.ResumeRef),
		ReferralSource: cloneStringPtr(cmd.ReferralSource),
		Locale:         textutil.NormalizeLocale(cmd.Locale),
		Metadata:       cloneMap(cmd.Metadata),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if actor := strings.TrimSpace(cmd.ActorID); actor != "" {
		application.Audit.CreatedBy = valuePtr(actor)
		application.Audit.UpdatedBy = valuePtr(actor)
	}

	if err := s.applications.Insert(ctx, application); err != nil {
		return ApplicationRecord{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, LifecycleEvent{
		Type:       applicationEventCreated,
		EntityID:   application.ID,
		EntityKind: "application",
		Current:    string(application.Status),
		ActorID:    cmd.ActorID,
		OccurredAt: now,
		Metadata:   maps.Clone(application.Metadata),
	})

	s.notify(ctx, application, application.Status)

	return application, nil
}

func (s *applicationService) Get(ctx context.Context, applicationID string) (ApplicationRecord, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return ApplicationRecord{}, fmt.Errorf("%w: application id is required", ErrApplicationInvalidInput)
	}
	application, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return ApplicationRecord{}, s.mapRepositoryError(err)
	}
	return application, nil
}

func (s *applicationService) List(ctx context.Context, filter ApplicationListFilter) (domain.CursorPage[ApplicationRecord], error) {
	page, err := s.applications.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[ApplicationRecord]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// Transition moves an application to a new stage/status. Exactly one history
// entry is appended per successful transition.
func (s *applicationService) Transition(ctx context.Context, cmd ApplicationTransitionCommand) (ApplicationRecord, error) {
	applicationID := strings.TrimSpace(cmd.ApplicationID)
	if applicationID == "" {
		return ApplicationRecord{}, fmt.Errorf("%w: application id is required", ErrApplicationInvalidInput)
	}
	targetStage := domain.ApplicationStage(strings.TrimSpace(string(cmd.TargetStage)))
	targetStatus := domain.ApplicationStatus(strings.TrimSpace(string(cmd.TargetStatus)))
	if targetStage == "" && targetStatus == "" {
		return ApplicationRecord{}, fmt.Errorf("%w: target stage or status is required", ErrApplicationInvalidInput)
	}
	if targetStage != "" && !slices.Contains(s.stages.Stages, targetStage) {
		return ApplicationRecord{}, fmt.Errorf("%w: unknown stage %q", ErrApplicationInvalidInput, targetStage)
	}
	if targetStatus != "" && !slices.Contains(applicationStatusValues, targetStatus) {
		return ApplicationRecord{}, fmt.Errorf("%w: unknown status %q", ErrApplicationInvalidInput, targetStatus)
	}

	application, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return ApplicationRecord{}, s.mapRepositoryError(err)
	}

	if slices.Contains(terminalApplicationStatuses, application.Status) {
		return ApplicationRecord{}, fmt.Errorf("%w: status %q is terminal", ErrApplicationInvalidState, application.Status)
	}

	if targetStage == "" {
		targetStage = application.Stage
	}
	if targetStatus == "" {
		targetStatus = application.Status
	}
	if targetStage == application.Stage && targetStatus == application.Status {
		return ApplicationRecord{}, fmt.Errorf("%w: application already at stage %q status %q", ErrApplicationInvalidState, targetStage, targetStatus)
	}

	if targetStatus == domain.ApplicationStatusHired {
		if err := s.ensureOfferAccepted(ctx, applicationID); err != nil {
			return ApplicationRecord{}, err
		}
	}

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()

	entry := StatusHistoryEntry{
		ID:            historyIDPrefix + s.newID(),
		ApplicationID: applicationID,
		FromStage:     application.Stage,
		ToStage:       targetStage,
		FromStatus:    application.Status,
		ToStatus:      targetStatus,
		ActorID:       actor,
		Note:          strings.TrimSpace(cmd.Note),
		CreatedAt:     now,
	}

	prevStatus := application.Status
	application.Stage = targetStage
	application.Status = targetStatus
	application.UpdatedAt = now
	if actor != "" {
		application.Audit.UpdatedBy = valuePtr(actor)
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.applications.Update(txCtx, application); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.history.Append(txCtx, entry); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return ApplicationRecord{}, err
	}

	metadata := map[string]any{
		"fromStage": string(entry.FromStage),
		"toStage":   string(entry.ToStage),
	}
	if entry.Note != "" {
		metadata["note"] = entry.Note
	}

	s.publishEvent(ctx, LifecycleEvent{
		Type:       applicationEventStatusChanged,
		EntityID:   application.ID,
		EntityKind: "application",
		Previous:   string(prevStatus),
		Current:    string(application.Status),
		ActorID:    actor,
		OccurredAt: now,
		Metadata:   metadata,
	})

	s.notify(ctx, application, application.Status)

	return application, nil
}

func (s *applicationService) History(ctx context.Context, applicationID string, pager Pagination) (domain.CursorPage[StatusHistoryEntry], error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return domain.CursorPage[StatusHistoryEntry]{}, fmt.Errorf("%w: application id is required", ErrApplicationInvalidInput)
	}
	page, err := s.history.ListByApplication(ctx, applicationID, pager)
	if err != nil {
		return domain.CursorPage[StatusHistoryEntry]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// ensureOfferAccepted gates the Hired status behind an accepted offer.
func (s *applicationService) ensureOfferAccepted(ctx context.Context, applicationID string) error {
	if s.offers == nil {
		return fmt.Errorf("%w: offer must be accepted before hiring", ErrApplicationInvalidState)
	}
	offer, err := s.offers.FindByApplication(ctx, applicationID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return fmt.Errorf("%w: offer must be accepted before hiring", ErrApplicationInvalidState)
		}
		return s.mapRepositoryError(err)
	}
	if offer.ApplicantResponse != domain.ApplicantResponseAccepted {
		return fmt.Errorf("%w: offer must be accepted before hiring", ErrApplicationInvalidState)
	}
	return nil
}

// notify is fire and forget. A missing template key falls back to the generic
// template and delivery failures are logged, never returned.
func (s *applicationService) notify(ctx context.Context, application ApplicationRecord, status domain.ApplicationStatus) {
	if s.notifier == nil {
		return
	}
	template, ok := statusNotificationTemplates[status]
	if !ok {
		template = genericNotificationTemplate
	}
	notification := CandidateNotification{
		CandidateID:   application.CandidateID,
		ApplicationID: application.ID,
		Template:      template,
		Locale:        application.Locale,
		Fields: map[string]any{
			"stage":  string(application.Stage),
			"status": string(application.Status),
		},
	}
	if err := s.notifier.NotifyCandidate(ctx, notification); err != nil {
		s.logger(ctx, "application.notify.failed", map[string]any{
			"application": application.ID,
			"template":    template,
			"error":       err.Error(),
		})
	}
}

func (s *applicationService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrApplicationNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrApplicationConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("application: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *applicationService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *applicationService) now() time.Time {
	return s.clock()
}

func (s *applicationService) publishEvent(ctx context.Context, event LifecycleEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishLifecycleEvent(ctx, event); err != nil {
		s.logger(ctx, "lifecycle.event.publish.failed", map[string]any{
			"type":   event.Type,
			"entity": event.EntityID,
			"error":  err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	ref := strings.TrimSpace(*value)
	if ref == "" {
		return nil
	}
	return &ref
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	return maps.Clone(src)
}

func ensureMap(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	return src
}

func valuePtr[T any](v T) *T {
	return &v
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	ref := v
	return &ref
}
