package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/repositories"
)

const (
	interviewEventScheduled     = "interview.scheduled"
	interviewEventStatusChanged = "interview.status.changed"

	interviewIDPrefix = "itv_"

	minFeedbackScore = 0
	maxFeedbackScore = 100
)

var (
	// ErrInterviewInvalidInput signals the caller provided invalid data.
	ErrInterviewInvalidInput = errors.New("interview: invalid input")
	// ErrInterviewNotFound indicates the interview could not be located.
	ErrInterviewNotFound = errors.New("interview: not found")
	// ErrInterviewInvalidState indicates an invalid status transition was attempted.
	ErrInterviewInvalidState = errors.New("interview: invalid status transition")
	// ErrInterviewConflict indicates duplicates or concurrent modification.
	ErrInterviewConflict = errors.New("interview: conflict")
)

var interviewStateTransitions = map[domain.InterviewStatus][]domain.InterviewStatus{
	domain.InterviewStatusPlanned: {
		domain.InterviewStatusCompleted,
		domain.InterviewStatusCancelled,
		domain.InterviewStatusNoShow,
	},
}

// InterviewServiceDeps bundles collaborators required to construct the interview service.
type InterviewServiceDeps struct {
	Interviews   repositories.InterviewRepository
	Applications repositories.ApplicationRepository
	Clock        func() time.Time
	IDGenerator  func() string
	Sanitize     func(string) string
	Events       LifecycleEventPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type interviewService struct {
	interviews   repositories.InterviewRepository
	applications repositories.ApplicationRepository
	clock        func() time.Time
	newID        func() string
	sanitize     func(string) string
	events       LifecycleEventPublisher
	logger       func(context.Context, string, map[string]any)
}

// NewInterviewService wires dependencies into a concrete InterviewService implementation.
func NewInterviewService(deps InterviewServiceDeps) (InterviewService, error) {
	if deps.Interviews == nil {
		return nil, errors.New("interview service: interview repository is required")
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

	return &interviewService{
		interviews:   deps.Interviews,
		applications: deps.Applications,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		sanitize: sanitize,
		events:   deps.Events,
		logger:   logger,
	}, nil
}

func (s *interviewService) Schedule(ctx context.Context, cmd ScheduleInterviewCommand) (Interview, error) {
	applicationID := strings.TrimSpace(cmd.ApplicationID)
	if applicationID == "" {
		return Interview{}, fmt.Errorf("%w: application id is required", ErrInterviewInvalidInput)
	}
	panel := normalisePanel(cmd.Panel)
	if len(panel) == 0 {
		return Interview{}, fmt.Errorf("%w: at least one panel member is required", ErrInterviewInvalidInput)
	}
	if cmd.ScheduledStart.IsZero() || cmd.ScheduledEnd.IsZero() {
		return Interview{}, fmt.Errorf("%w: scheduled start and end are required", ErrInterviewInvalidInput)
	}
	if !cmd.ScheduledEnd.After(cmd.ScheduledStart) {
		return Interview{}, fmt.Errorf("%w: scheduled end must be after start", ErrInterviewInvalidInput)
	}

	if s.applications != nil {
		if _, err := s.applications.FindByID(ctx, applicationID); err != nil {
			return Interview{}, s.mapRepositoryError(err)
		}
	}

	now := s.now()

	interview := Interview{
		ID:             interviewIDPrefix + s.newID(),
		ApplicationID:  applicationID,
		Stage:          domain.ApplicationStage(strings.TrimSpace(string(cmd.Stage))),
		Panel:          panel,
		ScheduledStart: cmd.ScheduledStart.UTC(),
		ScheduledEnd:   cmd.ScheduledEnd.UTC(),
		Location:       cloneStringPtr(cmd.Location),
		Status:         domain.InterviewStatusPlanned,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if actor := strings.TrimSpace(cmd.ActorID); actor != "" {
		interview.Audit.CreatedBy = valuePtr(actor)
		interview.Audit.UpdatedBy = valuePtr(actor)
	}

	if err := s.interviews.Insert(ctx, interview); err != nil {
		return Interview{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, LifecycleEvent{
		Type:       interviewEventScheduled,
		EntityID:   interview.ID,
		EntityKind: "interview",
		Current:    string(interview.Status),
		ActorID:    cmd.ActorID,
		OccurredAt: now,
		Metadata: map[string]any{
			"applicationId": applicationID,
			"panelSize":     len(panel),
		},
	})

	return interview, nil
}

func (s *interviewService) Get(ctx context.Context, interviewID string) (Interview, error) {
	interviewID = strings.TrimSpace(interviewID)
	if interviewID == "" {
		return Interview{}, fmt.Errorf("%w: interview id is required", ErrInterviewInvalidInput)
	}
	interview, err := s.interviews.FindByID(ctx, interviewID)
	if err != nil {
		return Interview{}, s.mapRepositoryError(err)
	}
	return interview, nil
}

func (s *interviewService) ListByApplication(ctx context.Context, applicationID string) ([]Interview, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return nil, fmt.Errorf("%w: application id is required", ErrInterviewInvalidInput)
	}
	interviews, err := s.interviews.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return interviews, nil
}

// SubmitFeedback upserts one reviewer's scored assessment. A reviewer re-submitting
// replaces their previous entry rather than adding a second one.
func (s *interviewService) SubmitFeedback(ctx context.Context, cmd SubmitFeedbackCommand) (Interview, error) {
	interviewID := strings.TrimSpace(cmd.InterviewID)
	if interviewID == "" {
		return Interview{}, fmt.Errorf("%w: interview id is required", ErrInterviewInvalidInput)
	}
	interviewerID := strings.TrimSpace(cmd.InterviewerID)
	if interviewerID == "" {
		return Interview{}, fmt.Errorf("%w: interviewer id is required", ErrInterviewInvalidInput)
	}
	if cmd.Score < minFeedbackScore || cmd.Score > maxFeedbackScore {
		return Interview{}, fmt.Errorf("%w: score %d outside range [%d,%d]", ErrInterviewInvalidInput, cmd.Score, minFeedbackScore, maxFeedbackScore)
	}

	interview, err := s.interviews.FindByID(ctx, interviewID)
	if err != nil {
		return Interview{}, s.mapRepositoryError(err)
	}

	now := s.now()
	entry := PanelFeedback{
		InterviewerID: interviewerID,
		OverallScore:  cmd.Score,
		Comments:      s.sanitize(strings.TrimSpace(cmd.Comments)),
		SubmittedAt:   now,
	}

	replaced := false
	for i, existing := range interview.Feedback {
		if existing.InterviewerID == interviewerID {
			interview.Feedback[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		interview.Feedback = append(interview.Feedback, entry)
	}

	interview.UpdatedAt = now
	interview.Audit.UpdatedBy = valuePtr(interviewerID)

	if err := s.interviews.Update(ctx, interview); err != nil {
		return Interview{}, s.mapRepositoryError(err)
	}

	return interview, nil
}

func (s *interviewService) UpdateStatus(ctx context.Context, cmd InterviewStatusCommand) (Interview, error) {
	interviewID := strings.TrimSpace(cmd.InterviewID)
	if interviewID == "" {
		return Interview{}, fmt.Errorf("%w: interview id is required", ErrInterviewInvalidInput)
	}
	target := domain.InterviewStatus(strings.TrimSpace(string(cmd.TargetStatus)))
	if target == "" {
		return Interview{}, fmt.Errorf("%w: target status is required", ErrInterviewInvalidInput)
	}

	interview, err := s.interviews.FindByID(ctx, interviewID)
	if err != nil {
		return Interview{}, s.mapRepositoryError(err)
	}

	allowed, ok := interviewStateTransitions[interview.Status]
	if !ok || !slices.Contains(allowed, target) {
		return Interview{}, fmt.Errorf("%w: %s to %s", ErrInterviewInvalidState, interview.Status, target)
	}

	now := s.now()
	prev := interview.Status
	interview.Status = target
	interview.UpdatedAt = now
	if actor := strings.TrimSpace(cmd.ActorID); actor != "" {
		interview.Audit.UpdatedBy = valuePtr(actor)
	}

	if err := s.interviews.Update(ctx, interview); err != nil {
		return Interview{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, LifecycleEvent{
		Type:       interviewEventStatusChanged,
		EntityID:   interview.ID,
		EntityKind: "interview",
		Previous:   string(prev),
		Current:    string(interview.Status),
		ActorID:    cmd.ActorID,
		OccurredAt: now,
	})

	return interview, nil
}

// Aggregate recomputes the arithmetic mean over submitted feedback on every read.
// An interview without feedback aggregates to zero, not an error.
func (s *interviewService) Aggregate(ctx context.Context, interviewID string) (InterviewAggregate, error) {
	interviewID = strings.TrimSpace(interviewID)
	if interviewID == "" {
		return InterviewAggregate{}, fmt.Errorf("%w: interview id is required", ErrInterviewInvalidInput)
	}
	interview, err := s.interviews.FindByID(ctx, interviewID)
	if err != nil {
		return InterviewAggregate{}, s.mapRepositoryError(err)
	}
	return aggregateFeedback(interview.Feedback), nil
}

// CalculateApplicationScore averages every feedback entry across all interviews
// of the application. No feedback yields zero.
func (s *interviewService) CalculateApplicationScore(ctx context.Context, applicationID string) (InterviewAggregate, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return InterviewAggregate{}, fmt.Errorf("%w: application id is required", ErrInterviewInvalidInput)
	}
	interviews, err := s.interviews.ListByApplication(ctx, applicationID)
	if err != nil {
		return InterviewAggregate{}, s.mapRepositoryError(err)
	}

	var all []PanelFeedback
	for _, interview := range interviews {
		all = append(all, interview.Feedback...)
	}
	return aggregateFeedback(all), nil
}

func aggregateFeedback(entries []PanelFeedback) InterviewAggregate {
	if len(entries) == 0 {
		return InterviewAggregate{}
	}
	var sum int
	for _, entry := range entries {
		sum += entry.OverallScore
	}
	return InterviewAggregate{
		AverageScore:  float64(sum) / float64(len(entries)),
		ReviewerCount: len(entries),
	}
}

func normalisePanel(panel []string) []string {
	if len(panel) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(panel))
	seen := make(map[string]struct{})
	for _, member := range panel {
		trimmed := strings.TrimSpace(member)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func (s *interviewService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrInterviewNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrInterviewConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("interview: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *interviewService) now() time.Time {
	return s.clock()
}

func (s *interviewService) publishEvent(ctx context.Context, event LifecycleEvent) {
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
