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
	offerEventCreated       = "offer.created"
	offerEventStatusChanged = "offer.status.changed"
	offerEventExpired       = "offer.expired"

	offerIDPrefix = "off_"

	defaultMinOfferApprovers = 2
)

var (
	// ErrOfferInvalidInput signals the caller provided invalid data.
	ErrOfferInvalidInput = errors.New("offer: invalid input")
	// ErrOfferNotFound indicates the offer could not be located.
	ErrOfferNotFound = errors.New("offer: not found")
	// ErrOfferInvalidState indicates an invalid status transition was attempted.
	ErrOfferInvalidState = errors.New("offer: invalid status transition")
	// ErrOfferConflict indicates duplicates or concurrent modification.
	ErrOfferConflict = errors.New("offer: conflict")
	// ErrOfferRuleViolation indicates a domain rule blocked the operation.
	ErrOfferRuleViolation = errors.New("offer: domain rule violation")
)

// offerApprovalStatuses accept ledger writes. A late rejection may still flip
// an already approved offer back to rejected.
var offerApprovalStatuses = []domain.OfferStatus{
	domain.OfferStatusPendingApproval,
	domain.OfferStatusApproved,
}

var offerWithdrawableStatuses = []domain.OfferStatus{
	domain.OfferStatusDraft,
	domain.OfferStatusPendingApproval,
	domain.OfferStatusApproved,
	domain.OfferStatusSent,
}

// OfferServiceDeps bundles collaborators required to construct the offer service.
type OfferServiceDeps struct {
	Offers       repositories.OfferRepository
	Applications repositories.ApplicationRepository
	MinApprovers int
	Clock        func() time.Time
	IDGenerator  func() string
	Sanitize     func(string) string
	Notifier     CandidateNotifier
	Onboarding   OnboardingDispatcher
	Events       LifecycleEventPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type offerService struct {
	offers       repositories.OfferRepository
	applications repositories.ApplicationRepository
	minApprovers int
	clock        func() time.Time
	newID        func() string
	sanitize     func(string) string
	notifier     CandidateNotifier
	onboarding   OnboardingDispatcher
	events       LifecycleEventPublisher
	logger       func(context.Context, string, map[string]any)
}

// NewOfferService wires dependencies into a concrete OfferService implementation.
func NewOfferService(deps OfferServiceDeps) (OfferService, error) {
	if deps.Offers == nil {
		return nil, errors.New("offer service: offer repository is required")
	}

	minApprovers := deps.MinApprovers
	if minApprovers <= 0 {
		minApprovers = defaultMinOfferApprovers
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

	return &offerService{
		offers:       deps.Offers,
		applications: deps.Applications,
		minApprovers: minApprovers,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:      idGen,
		sanitize:   sanitize,
		notifier:   deps.Notifier,
		onboarding: deps.Onboarding,
		events:     deps.Events,
		logger:     logger,
	}, nil
}

func (s *offerService) Create(ctx context.Context, cmd CreateOfferCommand) (Offer, error) {
	applicationID := strings.TrimSpace(cmd.ApplicationID)
	if applicationID == "" {
		return Offer{}, fmt.Errorf("%w: application id is required", ErrOfferInvalidInput)
	}
	if strings.TrimSpace(cmd.Terms.Position) == "" {
		return Offer{}, fmt.Errorf("%w: position is required", ErrOfferInvalidInput)
	}
	if cmd.Terms.SalaryAmount <= 0 {
		return Offer{}, fmt.Errorf("%w: salary amount must be positive", ErrOfferInvalidInput)
	}
	if strings.TrimSpace(cmd.Terms.Currency) == "" {
		return Offer{}, fmt.Errorf("%w: currency is required", ErrOfferInvalidInput)
	}

	var application ApplicationRecord
	if s.applications != nil {
		var err error
		application, err = s.applications.FindByID(ctx, applicationID)
		if err != nil {
			return Offer{}, s.mapRepositoryError(err)
		}
	}

	if _, err := s.offers.FindByApplication(ctx, applicationID); err == nil {
		return Offer{}, fmt.Errorf("%w: application %s already has an offer", ErrOfferConflict, applicationID)
	} else if !isRepoNotFound(err) {
		return Offer{}, s.mapRepositoryError(err)
	}

	now := s.now()
	terms := cmd.Terms
	terms.Position = strings.TrimSpace(terms.Position)
	terms.Currency = strings.ToUpper(strings.TrimSpace(terms.Currency))
	terms.Notes = s.sanitize(strings.TrimSpace(terms.Notes))

	offer := Offer{
		ID:                offerIDPrefix + s.newID(),
		ApplicationID:     applicationID,
		CandidateID:       application.CandidateID,
		RequisitionID:     application.RequisitionID,
		Status:            domain.OfferStatusDraft,
		ApplicantResponse: domain.ApplicantResponsePending,
		Terms:             terms,
		Approvers:         nil,
		ExpiryDate:        cloneTimePtr(cmd.ExpiryDate),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if actor := strings.TrimSpace(cmd.ActorID); actor != "" {
		offer.Audit.CreatedBy = valuePtr(actor)
		offer.Audit.UpdatedBy = valuePtr(actor)
	}

	if err := s.offers.Insert(ctx, offer); err != nil {
		return Offer{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, LifecycleEvent{
		Type:       offerEventCreated,
		EntityID:   offer.ID,
		EntityKind: "offer",
		Current:    string(offer.Status),
		ActorID:    cmd.ActorID,
		OccurredAt: now,
		Metadata: map[string]any{
			"applicationId": applicationID,
		},
	})

	return offer, nil
}

func (s *offerService) Get(ctx context.Context, offerID string) (Offer, error) {
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return Offer{}, fmt.Errorf("%w: offer id is required", ErrOfferInvalidInput)
	}
	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		return Offer{}, s.mapRepositoryError(err)
	}
	return offer, nil
}

func (s *offerService) GetByApplication(ctx context.Context, applicationID string) (Offer, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return Offer{}, fmt.Errorf("%w: application id is required", ErrOfferInvalidInput)
	}
	offer, err := s.offers.FindByApplication(ctx, applicationID)
	if err != nil {
		return Offer{}, s.mapRepositoryError(err)
	}
	return offer, nil
}

func (s *offerService) SubmitForApproval(ctx context.Context, cmd OfferActionCommand) (Offer, error) {
	offerID := strings.TrimSpace(cmd.OfferID)
	if offerID == "" {
		return Offer{}, fmt.Errorf("%w: offer id is required", ErrOfferInvalidInput)
	}

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()
	var prev domain.OfferStatus

	offer, err := s.offers.UpdateInTx(ctx, offerID, func(current Offer) (Offer, error) {
		if current.Status != domain.OfferStatusDraft {
			return Offer{}, fmt.Errorf("%w: cannot submit offer in status %q", ErrOfferInvalidState, current.Status)
		}
		prev = current.Status
		current.Status = domain.OfferStatusPendingApproval
		current.UpdatedAt = now
		if actor != "" {
			current.Audit.UpdatedBy = valuePtr(actor)
		}
		return current, nil
	})
	if err != nil {
		return Offer{}, s.mapRepositoryError(err)
	}

	s.publishStatusChange(ctx, offer, prev, actor, now, nil)
	return offer, nil
}

// RecordApproval upserts the approver's ledger entry and recomputes the offer
// status from the full ledger inside the offer transaction:
//
//   - Rejected if any ledger entry is Rejected, regardless of order.
//   - Approved if all entries are Approved and the ledger holds at least the
//     configured minimum of approvers.
//   - PendingApproval otherwise.
//
// The recomputation is idempotent, so duplicate submissions are safe.
func (s *offerService) RecordApproval(ctx context.Context, cmd RecordApprovalCommand) (Offer, error) {
	offerID := strings.TrimSpace(cmd.OfferID)
	if offerID == "" {
		return Offer{}, fmt.Errorf("%w: offer id is required", ErrOfferInvalidInput)
	}
	approverID := strings.TrimSpace(cmd.ApproverID)
	if approverID == "" {
		return Offer{}, fmt.Errorf("%w: approver id is required", ErrOfferInvalidInput)
	}
	decision := domain.ApprovalDecision(strings.TrimSpace(string(cmd.Decision)))
	if decision != domain.ApprovalApproved && decision != domain.ApprovalRejected {
		return Offer{}, fmt.Errorf("%w: decision must be approved or rejected", ErrOfferInvalidInput)
	}

	now := s.now()
	var prev domain.OfferStatus

	offer, err := s.offers.UpdateInTx(ctx, offerID, func(current Offer) (Offer, error) {
		if !slices.Contains(offerApprovalStatuses, current.Status) {
			return Offer{}, fmt.Errorf("%w: cannot record approval in status %q", ErrOfferInvalidState, current.Status)
		}
		prev = current.Status

		entry := OfferApproval{
			ApproverID: approverID,
			Role:       strings.TrimSpace(cmd.Role),
			Decision:   decision,
			Comment:    s.sanitize(strings.TrimSpace(cmd.Comment)),
			DecidedAt:  now,
		}

		replaced := false
		for i, existing := range current.Approvers {
			if existing.ApproverID == approverID {
				current.Approvers[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			current.Approvers = append(current.Approvers, entry)
		}

		current.Status = deriveOfferStatus(current.Approvers, s.minApprovers)
		current.UpdatedAt = now
		current.Audit.UpdatedBy = valuePtr(approverID)
		return current, nil
	})
	if err != nil {
		return Offer{}, s.mapRepositoryError(err)
	}

	if offer.Status != prev {
		s.publishStatusChange(ctx, offer, prev, approverID, now, map[string]any{
			"decision": string(decision),
		})
	}

	return offer, nil
}

func (s *offerService) Send(ctx context.Context, cmd SendOfferCommand) (Offer, error) {
	offerID := strings.TrimSpace(cmd.OfferID)
	if offerID == "" {
		return Offer{}, fmt.Errorf("%w: offer id is required", ErrOfferInvalidInput)
	}

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()
	var prev domain.OfferStatus

	offer, err := s.offers.UpdateInTx(ctx, offerID, func(current Offer) (Offer, error) {
		if current.Status != domain.OfferStatusApproved {
			return Offer{}, fmt.Errorf("%w: only approved offers can be sent, got %q", ErrOfferInvalidState, current.Status)
		}
		prev = current.Status
		current.Status = domain.OfferStatusSent
		current.SentAt = &now
		if ref := cloneStringPtr(cmd.LetterRef); ref != nil {
			current.LetterRef = ref
		}
		if expiry := cloneTimePtr(cmd.ExpiryDate); expiry != nil {
			current.ExpiryDate = expiry
		}
		current.UpdatedAt = now
		if actor != "" {
			current.Audit.UpdatedBy = valuePtr(actor)
		}
		return current, nil
	})
	if err != nil {
		return Offer{}, s.mapRepositoryError(err)
	}

	s.publishStatusChange(ctx, offer, prev, actor, now, nil)
	s.notify(ctx, offer, "offer.sent")

	return offer, nil
}

// Respond records the candidate decision. An Accepted response stamps the
// signature timestamp and triggers onboarding checklist creation exactly once,
// guarded by the onboardingTriggered flag.
func (s *offerService) Respond(ctx context.Context, cmd OfferResponseCommand) (Offer, error) {
	offerID := strings.TrimSpace(cmd.OfferID)
	if offerID == "" {
		return Offer{}, fmt.Errorf("%w: offer id is required", ErrOfferInvalidInput)
	}
	response := domain.ApplicantResponse(strings.TrimSpace(string(cmd.Response)))
	if response != domain.ApplicantResponseAccepted && response != domain.ApplicantResponseRejected {
		return Offer{}, fmt.Errorf("%w: response must be accepted or rejected", ErrOfferInvalidInput)
	}

	candidateID := strings.TrimSpace(cmd.CandidateID)
	now := s.now()
	var prev domain.OfferStatus

	offer, err := s.offers.UpdateInTx(ctx, offerID, func(current Offer) (Offer, error) {
		if candidateID != "" && current.CandidateID != candidateID {
			return Offer{}, fmt.Errorf("%w: candidate %s does not own offer %s", ErrOfferRuleViolation, candidateID, offerID)
		}
		if current.Status != domain.OfferStatusSent &&
			!(current.Status == domain.OfferStatusAccepted && response == domain.ApplicantResponseAccepted) {
			return Offer{}, fmt.Errorf("%w: offer in status %q cannot accept a response", ErrOfferInvalidState, current.Status)
		}
		prev = current.Status

		current.ApplicantResponse = response
		if current.RespondedAt == nil {
			current.RespondedAt = &now
		}
		switch response {
		case domain.ApplicantResponseAccepted:
			current.Status = domain.OfferStatusAccepted
			if current.CandidateSignedAt == nil {
				current.CandidateSignedAt = &now
			}
		case domain.ApplicantResponseRejected:
			current.Status = domain.OfferStatusRejected
		}
		current.UpdatedAt = now
		return current, nil
	})
	if err != nil {
		return Offer{}, s.mapRepositoryError(err)
	}

	if offer.Status != prev {
		s.publishStatusChange(ctx, offer, prev, candidateID, now, map[string]any{
			"applicantResponse": string(response),
		})
	}

	if response == domain.ApplicantResponseAccepted && !offer.OnboardingTriggered {
		offer, err = s.triggerOnboarding(ctx, offer)
		if err != nil {
			return offer, err
		}
	}

	return offer, nil
}

// triggerOnboarding requests checklist creation and flips the one-shot guard.
// The flag is set only after the dispatcher succeeds, so a failed dispatch can
// be retried by a subsequent Accepted response.
func (s *offerService) triggerOnboarding(ctx context.Context, offer Offer) (Offer, error) {
	if s.onboarding == nil {
		return offer, nil
	}

	ref, err := s.onboarding.RequestOnboardingChecklist(ctx, OnboardingChecklistRequest{
		OfferID:       offer.ID,
		ApplicationID: offer.ApplicationID,
		CandidateID:   offer.CandidateID,
		StartDate:     cloneTimePtr(offer.Terms.StartDate),
	})
	if err != nil {
		s.logger(ctx, "offer.onboarding.dispatch.failed", map[string]any{
			"offer": offer.ID,
			"error": err.Error(),
		})
		return offer, fmt.Errorf("offer: onboarding dispatch failed: %w", err)
	}

	now := s.now()
	updated, err := s.offers.UpdateInTx(ctx, offer.ID, func(current Offer) (Offer, error) {
		if current.OnboardingTriggered {
			return current, nil
		}
		current.OnboardingTriggered = true
		if ref != "" {
			current.OnboardingChecklistRef = valuePtr(ref)
		}
		current.UpdatedAt = now
		return current, nil
	})
	if err != nil {
		return offer, s.mapRepositoryError(err)
	}
	return updated, nil
}

func (s *offerService) Withdraw(ctx context.Context, cmd OfferActionCommand) (Offer, error) {
	offerID := strings.TrimSpace(cmd.OfferID)
	if offerID == "" {
		return Offer{}, fmt.Errorf("%w: offer id is required", ErrOfferInvalidInput)
	}

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()
	var prev domain.OfferStatus

	offer, err := s.offers.UpdateInTx(ctx, offerID, func(current Offer) (Offer, error) {
		if !slices.Contains(offerWithdrawableStatuses, current.Status) {
			return Offer{}, fmt.Errorf("%w: offer in status %q cannot be withdrawn", ErrOfferInvalidState, current.Status)
		}
		prev = current.Status
		current.Status = domain.OfferStatusWithdrawn
		current.UpdatedAt = now
		if actor != "" {
			current.Audit.UpdatedBy = valuePtr(actor)
		}
		return current, nil
	})
	if err != nil {
		return Offer{}, s.mapRepositoryError(err)
	}

	metadata := map[string]any{}
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		metadata["reason"] = reason
	}
	s.publishStatusChange(ctx, offer, prev, actor, now, metadata)

	return offer, nil
}

// ExpireSweep transitions sent offers past their expiry date with a pending
// applicant response to Expired. Driven by the external scheduler.
func (s *offerService) ExpireSweep(ctx context.Context, cmd ExpireOffersCommand) (ExpireSweepResult, error) {
	now := cmd.Now
	if now.IsZero() {
		now = s.now()
	}
	now = now.UTC()

	candidates, err := s.offers.ListExpiring(ctx, now, cmd.Limit)
	if err != nil {
		return ExpireSweepResult{}, s.mapRepositoryError(err)
	}

	result := ExpireSweepResult{SweptAt: now}
	for _, candidate := range candidates {
		offer, err := s.offers.UpdateInTx(ctx, candidate.ID, func(current Offer) (Offer, error) {
			// Re-check inside the transaction; a response may have landed since the query.
			if current.Status != domain.OfferStatusSent ||
				current.ApplicantResponse != domain.ApplicantResponsePending ||
				current.ExpiryDate == nil || !current.ExpiryDate.Before(now) {
				return current, nil
			}
			current.Status = domain.OfferStatusExpired
			current.UpdatedAt = now
			return current, nil
		})
		if err != nil {
			s.logger(ctx, "offer.expire.failed", map[string]any{
				"offer": candidate.ID,
				"error": err.Error(),
			})
			continue
		}
		if offer.Status != domain.OfferStatusExpired {
			continue
		}
		result.ExpiredOfferIDs = append(result.ExpiredOfferIDs, offer.ID)
		s.publishEvent(ctx, LifecycleEvent{
			Type:       offerEventExpired,
			EntityID:   offer.ID,
			EntityKind: "offer",
			Previous:   string(domain.OfferStatusSent),
			Current:    string(offer.Status),
			OccurredAt: now,
		})
	}

	return result, nil
}

// deriveOfferStatus recomputes the workflow status from the full approval ledger.
func deriveOfferStatus(ledger []OfferApproval, minApprovers int) domain.OfferStatus {
	approved := 0
	for _, entry := range ledger {
		switch entry.Decision {
		case domain.ApprovalRejected:
			return domain.OfferStatusRejected
		case domain.ApprovalApproved:
			approved++
		}
	}
	if approved == len(ledger) && approved >= minApprovers {
		return domain.OfferStatusApproved
	}
	return domain.OfferStatusPendingApproval
}

func (s *offerService) notify(ctx context.Context, offer Offer, template string) {
	if s.notifier == nil {
		return
	}
	notification := CandidateNotification{
		CandidateID:   offer.CandidateID,
		ApplicationID: offer.ApplicationID,
		Template:      template,
		Fields: map[string]any{
			"offerId":  offer.ID,
			"position": offer.Terms.Position,
		},
	}
	if err := s.notifier.NotifyCandidate(ctx, notification); err != nil {
		s.logger(ctx, "offer.notify.failed", map[string]any{
			"offer":    offer.ID,
			"template": template,
			"error":    err.Error(),
		})
	}
}

func (s *offerService) publishStatusChange(ctx context.Context, offer Offer, prev domain.OfferStatus, actor string, now time.Time, metadata map[string]any) {
	s.publishEvent(ctx, LifecycleEvent{
		Type:       offerEventStatusChanged,
		EntityID:   offer.ID,
		EntityKind: "offer",
		Previous:   string(prev),
		Current:    string(offer.Status),
		ActorID:    actor,
		OccurredAt: now,
		Metadata:   metadata,
	})
}

func (s *offerService) publishEvent(ctx context.Context, event LifecycleEvent) {
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

func (s *offerService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrOfferInvalidInput) || errors.Is(err, ErrOfferInvalidState) ||
		errors.Is(err, ErrOfferRuleViolation) || errors.Is(err, ErrOfferConflict) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOfferNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOfferConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("offer: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *offerService) now() time.Time {
	return s.clock()
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func cloneTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	ts := value.UTC()
	return &ts
}
