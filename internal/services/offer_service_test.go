package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/peoplehub/hr-api/internal/domain"
)

// memOfferRepo keeps one offer in memory so UpdateInTx round-trips mutations.
type memOfferRepo struct {
	stubOfferRepo
	offer domain.Offer
}

func newMemOfferRepo(offer domain.Offer) *memOfferRepo {
	repo := &memOfferRepo{offer: offer}
	repo.findFn = func(_ context.Context, offerID string) (domain.Offer, error) {
		if repo.offer.ID != offerID {
			return domain.Offer{}, appRepoErr{notFound: true}
		}
		return repo.offer, nil
	}
	repo.updateInTxFn = func(_ context.Context, offerID string, mutate func(domain.Offer) (domain.Offer, error)) (domain.Offer, error) {
		if repo.offer.ID != offerID {
			return domain.Offer{}, appRepoErr{notFound: true}
		}
		next, err := mutate(repo.offer)
		if err != nil {
			return domain.Offer{}, err
		}
		repo.offer = next
		return next, nil
	}
	return repo
}

type captureOnboarding struct {
	requests []OnboardingChecklistRequest
	ref      string
	err      error
}

func (c *captureOnboarding) RequestOnboardingChecklist(_ context.Context, req OnboardingChecklistRequest) (string, error) {
	c.requests = append(c.requests, req)
	return c.ref, c.err
}

func validOfferTerms() domain.OfferTerms {
	return domain.OfferTerms{
		Position:     "Backend Engineer",
		SalaryAmount: 9_000_000,
		Currency:     "jpy",
	}
}

func TestOfferServiceCreateDefaults(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	var inserted domain.Offer
	repo := &stubOfferRepo{
		insertFn: func(_ context.Context, offer domain.Offer) error {
			inserted = offer
			return nil
		},
	}
	apps := &stubApplicationRepo{
		findFn: func(context.Context, string) (domain.ApplicationRecord, error) {
			return domain.ApplicationRecord{ID: "app_1", CandidateID: "cand_1", RequisitionID: "req_1"}, nil
		},
	}

	svc, err := NewOfferService(OfferServiceDeps{
		Offers:       repo,
		Applications: apps,
		Clock:        fixedClock(now),
		IDGenerator:  staticID("000TEST"),
	})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	offer, err := svc.Create(context.Background(), CreateOfferCommand{
		ApplicationID: "app_1",
		Terms:         validOfferTerms(),
		ActorID:       "hr_1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if offer.ID != "off_000TEST" {
		t.Fatalf("unexpected id %s", offer.ID)
	}
	if offer.Status != domain.OfferStatusDraft {
		t.Fatalf("expected draft status, got %s", offer.Status)
	}
	if offer.ApplicantResponse != domain.ApplicantResponsePending {
		t.Fatalf("expected pending response, got %s", offer.ApplicantResponse)
	}
	if offer.CandidateID != "cand_1" || offer.RequisitionID != "req_1" {
		t.Fatalf("candidate/requisition not copied from application: %+v", offer)
	}
	if inserted.Terms.Currency != "JPY" {
		t.Fatalf("currency not upper-cased: %s", inserted.Terms.Currency)
	}
	if len(inserted.Approvers) != 0 {
		t.Fatalf("expected empty ledger, got %d entries", len(inserted.Approvers))
	}
}

func TestOfferServiceCreateRejectsSecondOffer(t *testing.T) {
	repo := &stubOfferRepo{
		findByAppFn: func(context.Context, string) (domain.Offer, error) {
			return domain.Offer{ID: "off_existing"}, nil
		},
	}

	svc, err := NewOfferService(OfferServiceDeps{Offers: repo})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	_, err = svc.Create(context.Background(), CreateOfferCommand{
		ApplicationID: "app_1",
		Terms:         validOfferTerms(),
	})
	if !errors.Is(err, ErrOfferConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestOfferServiceApprovalRequiresQuorum(t *testing.T) {
	repo := newMemOfferRepo(domain.Offer{ID: "off_1", Status: domain.OfferStatusPendingApproval})

	svc, err := NewOfferService(OfferServiceDeps{Offers: repo})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	offer, err := svc.RecordApproval(context.Background(), RecordApprovalCommand{
		OfferID:    "off_1",
		ApproverID: "mgr_1",
		Decision:   domain.ApprovalApproved,
	})
	if err != nil {
		t.Fatalf("record approval: %v", err)
	}
	if offer.Status != domain.OfferStatusPendingApproval {
		t.Fatalf("one approval below quorum should stay pending, got %s", offer.Status)
	}

	offer, err = svc.RecordApproval(context.Background(), RecordApprovalCommand{
		OfferID:    "off_1",
		ApproverID: "dir_1",
		Decision:   domain.ApprovalApproved,
	})
	if err != nil {
		t.Fatalf("record approval: %v", err)
	}
	if offer.Status != domain.OfferStatusApproved {
		t.Fatalf("expected approved after quorum, got %s", offer.Status)
	}
}

func TestOfferServiceApprovalUpsertsByApprover(t *testing.T) {
	repo := newMemOfferRepo(domain.Offer{ID: "off_1", Status: domain.OfferStatusPendingApproval})

	svc, err := NewOfferService(OfferServiceDeps{Offers: repo})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.RecordApproval(context.Background(), RecordApprovalCommand{
			OfferID:    "off_1",
			ApproverID: "mgr_1",
			Decision:   domain.ApprovalApproved,
		}); err != nil {
			t.Fatalf("record approval: %v", err)
		}
	}

	if len(repo.offer.Approvers) != 1 {
		t.Fatalf("duplicate submissions must not grow the ledger, got %d entries", len(repo.offer.Approvers))
	}
	if repo.offer.Status != domain.OfferStatusPendingApproval {
		t.Fatalf("one distinct approver cannot satisfy quorum, got %s", repo.offer.Status)
	}
}

func TestOfferServiceRejectionWinsRegardlessOfOrder(t *testing.T) {
	sequences := [][]RecordApprovalCommand{
		{
			{OfferID: "off_1", ApproverID: "mgr_1", Decision: domain.ApprovalRejected},
			{OfferID: "off_1", ApproverID: "dir_1", Decision: domain.ApprovalApproved},
		},
		{
			{OfferID: "off_1", ApproverID: "dir_1", Decision: domain.ApprovalApproved},
			{OfferID: "off_1", ApproverID: "mgr_1", Decision: domain.ApprovalRejected},
		},
	}

	for i, sequence := range sequences {
		repo := newMemOfferRepo(domain.Offer{ID: "off_1", Status: domain.OfferStatusPendingApproval})
		svc, err := NewOfferService(OfferServiceDeps{Offers: repo})
		if err != nil {
			t.Fatalf("new offer service: %v", err)
		}

		for _, cmd := range sequence {
			if _, err := svc.RecordApproval(context.Background(), cmd); err != nil {
				t.Fatalf("sequence %d: record approval: %v", i, err)
			}
		}
		if repo.offer.Status != domain.OfferStatusRejected {
			t.Fatalf("sequence %d: expected rejected, got %s", i, repo.offer.Status)
		}
	}
}

func TestOfferServiceLateRejectionFlipsApproved(t *testing.T) {
	repo := newMemOfferRepo(domain.Offer{
		ID:     "off_1",
		Status: domain.OfferStatusApproved,
		Approvers: []domain.OfferApproval{
			{ApproverID: "mgr_1", Decision: domain.ApprovalApproved},
			{ApproverID: "dir_1", Decision: domain.ApprovalApproved},
		},
	})

	svc, err := NewOfferService(OfferServiceDeps{Offers: repo})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	offer, err := svc.RecordApproval(context.Background(), RecordApprovalCommand{
		OfferID:    "off_1",
		ApproverID: "cfo_1",
		Decision:   domain.ApprovalRejected,
	})
	if err != nil {
		t.Fatalf("record approval: %v", err)
	}
	if offer.Status != domain.OfferStatusRejected {
		t.Fatalf("late rejection must flip approved offer, got %s", offer.Status)
	}
}

func TestOfferServiceSendRequiresApproved(t *testing.T) {
	repo := newMemOfferRepo(domain.Offer{ID: "off_1", Status: domain.OfferStatusDraft})

	svc, err := NewOfferService(OfferServiceDeps{Offers: repo})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	if _, err := svc.Send(context.Background(), SendOfferCommand{OfferID: "off_1"}); !errors.Is(err, ErrOfferInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestOfferServiceSendStampsAndNotifies(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	expiry := now.Add(7 * 24 * time.Hour)
	repo := newMemOfferRepo(domain.Offer{
		ID:            "off_1",
		ApplicationID: "app_1",
		CandidateID:   "cand_1",
		Status:        domain.OfferStatusApproved,
	})
	notifier := &captureNotifier{}

	svc, err := NewOfferService(OfferServiceDeps{
		Offers:   repo,
		Clock:    fixedClock(now),
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	letter := "documents/offers/off_1.pdf"
	offer, err := svc.Send(context.Background(), SendOfferCommand{
		OfferID:    "off_1",
		LetterRef:  &letter,
		ExpiryDate: &expiry,
		ActorID:    "hr_1",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if offer.Status != domain.OfferStatusSent {
		t.Fatalf("expected sent, got %s", offer.Status)
	}
	if offer.SentAt == nil || !offer.SentAt.Equal(now) {
		t.Fatalf("sentAt not stamped: %v", offer.SentAt)
	}
	if offer.LetterRef == nil || *offer.LetterRef != letter {
		t.Fatalf("letter ref not attached: %v", offer.LetterRef)
	}
	if len(notifier.notifications) != 1 || notifier.notifications[0].Template != "offer.sent" {
		t.Fatalf("expected offer.sent notification, got %+v", notifier.notifications)
	}
}

func TestOfferServiceRespondAcceptedTriggersOnboardingOnce(t *testing.T) {
	now := time.Date(2026, 4, 3, 9, 0, 0, 0, time.UTC)
	repo := newMemOfferRepo(domain.Offer{
		ID:            "off_1",
		ApplicationID: "app_1",
		CandidateID:   "cand_1",
		Status:        domain.OfferStatusSent,
	})
	onboarding := &captureOnboarding{ref: "checklists/onb_1"}

	svc, err := NewOfferService(OfferServiceDeps{
		Offers:     repo,
		Clock:      fixedClock(now),
		Onboarding: onboarding,
	})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	offer, err := svc.Respond(context.Background(), OfferResponseCommand{
		OfferID:     "off_1",
		CandidateID: "cand_1",
		Response:    domain.ApplicantResponseAccepted,
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}

	if offer.Status != domain.OfferStatusAccepted {
		t.Fatalf("expected accepted, got %s", offer.Status)
	}
	if offer.CandidateSignedAt == nil || !offer.CandidateSignedAt.Equal(now) {
		t.Fatalf("candidateSignedAt not stamped: %v", offer.CandidateSignedAt)
	}
	if !offer.OnboardingTriggered {
		t.Fatalf("onboarding flag not set")
	}
	if offer.OnboardingChecklistRef == nil || *offer.OnboardingChecklistRef != "checklists/onb_1" {
		t.Fatalf("checklist ref not stored: %v", offer.OnboardingChecklistRef)
	}
	if len(onboarding.requests) != 1 {
		t.Fatalf("expected one onboarding request, got %d", len(onboarding.requests))
	}

	// A repeat accepted response must not dispatch onboarding again.
	if _, err := svc.Respond(context.Background(), OfferResponseCommand{
		OfferID:     "off_1",
		CandidateID: "cand_1",
		Response:    domain.ApplicantResponseAccepted,
	}); err != nil {
		t.Fatalf("repeat respond: %v", err)
	}
	if len(onboarding.requests) != 1 {
		t.Fatalf("repeat accept re-dispatched onboarding: %d requests", len(onboarding.requests))
	}
}

func TestOfferServiceRespondRejectsWrongCandidate(t *testing.T) {
	repo := newMemOfferRepo(domain.Offer{
		ID:          "off_1",
		CandidateID: "cand_1",
		Status:      domain.OfferStatusSent,
	})

	svc, err := NewOfferService(OfferServiceDeps{Offers: repo})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	_, err = svc.Respond(context.Background(), OfferResponseCommand{
		OfferID:     "off_1",
		CandidateID: "cand_other",
		Response:    domain.ApplicantResponseRejected,
	})
	if !errors.Is(err, ErrOfferRuleViolation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
}

func TestOfferServiceRespondRequiresSentStatus(t *testing.T) {
	repo := newMemOfferRepo(domain.Offer{ID: "off_1", Status: domain.OfferStatusDraft})

	svc, err := NewOfferService(OfferServiceDeps{Offers: repo})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	_, err = svc.Respond(context.Background(), OfferResponseCommand{
		OfferID:  "off_1",
		Response: domain.ApplicantResponseAccepted,
	})
	if !errors.Is(err, ErrOfferInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestOfferServiceExpireSweep(t *testing.T) {
	now := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	stale := domain.Offer{
		ID:                "off_stale",
		Status:            domain.OfferStatusSent,
		ApplicantResponse: domain.ApplicantResponsePending,
		ExpiryDate:        &past,
	}
	responded := domain.Offer{
		ID:                "off_responded",
		Status:            domain.OfferStatusAccepted,
		ApplicantResponse: domain.ApplicantResponseAccepted,
		ExpiryDate:        &past,
	}

	offers := map[string]domain.Offer{stale.ID: stale, responded.ID: responded}
	repo := &stubOfferRepo{
		expiringFn: func(context.Context, time.Time, int) ([]domain.Offer, error) {
			// The query snapshot includes one offer that got a response since.
			return []domain.Offer{stale, responded}, nil
		},
		updateInTxFn: func(_ context.Context, offerID string, mutate func(domain.Offer) (domain.Offer, error)) (domain.Offer, error) {
			current, ok := offers[offerID]
			if !ok {
				return domain.Offer{}, appRepoErr{notFound: true}
			}
			next, err := mutate(current)
			if err != nil {
				return domain.Offer{}, err
			}
			offers[offerID] = next
			return next, nil
		},
	}

	svc, err := NewOfferService(OfferServiceDeps{Offers: repo, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("new offer service: %v", err)
	}

	result, err := svc.ExpireSweep(context.Background(), ExpireOffersCommand{Now: now})
	if err != nil {
		t.Fatalf("expire sweep: %v", err)
	}

	if len(result.ExpiredOfferIDs) != 1 || result.ExpiredOfferIDs[0] != "off_stale" {
		t.Fatalf("expected only off_stale to expire, got %v", result.ExpiredOfferIDs)
	}
	if offers["off_stale"].Status != domain.OfferStatusExpired {
		t.Fatalf("stale offer not expired: %s", offers["off_stale"].Status)
	}
	if offers["off_responded"].Status != domain.OfferStatusAccepted {
		t.Fatalf("responded offer must not be touched: %s", offers["off_responded"].Status)
	}
}

func TestOfferServiceWithdrawTerminalStates(t *testing.T) {
	for _, status := range []domain.OfferStatus{
		domain.OfferStatusAccepted,
		domain.OfferStatusRejected,
		domain.OfferStatusExpired,
		domain.OfferStatusWithdrawn,
	} {
		repo := newMemOfferRepo(domain.Offer{ID: "off_1", Status: status})
		svc, err := NewOfferService(OfferServiceDeps{Offers: repo})
		if err != nil {
			t.Fatalf("new offer service: %v", err)
		}
		if _, err := svc.Withdraw(context.Background(), OfferActionCommand{OfferID: "off_1"}); !errors.Is(err, ErrOfferInvalidState) {
			t.Fatalf("status %s: expected invalid state, got %v", status, err)
		}
	}
}
