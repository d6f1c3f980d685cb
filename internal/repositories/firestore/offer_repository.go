package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/peoplehub/hr-api/internal/domain"
	pfirestore "github.com/peoplehub/hr-api/internal/platform/firestore"
	"github.com/peoplehub/hr-api/internal/repositories"
)

const offersCollection = "offers"

// OfferRepository persists offers together with their approval ledgers.
type OfferRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[offerDocument]
}

// NewOfferRepository constructs a Firestore-backed offer repository.
func NewOfferRepository(provider *pfirestore.Provider) (*OfferRepository, error) {
	if provider == nil {
		return nil, errors.New("offer repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[offerDocument](provider, offersCollection, nil, nil)
	return &OfferRepository{provider: provider, base: base}, nil
}

// Insert stores a new offer document. The ID must be unique.
func (r *OfferRepository) Insert(ctx context.Context, offer domain.Offer) error {
	if r == nil || r.base == nil {
		return errors.New("offer repository not initialised")
	}
	offerID := strings.TrimSpace(offer.ID)
	if offerID == "" {
		return errors.New("offer repository: offer id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, offerID)
	if err != nil {
		return err
	}
	doc := encodeOfferDocument(offer)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("offers.insert", err)
	}
	return nil
}

// Update replaces the persisted offer state with the provided snapshot.
func (r *OfferRepository) Update(ctx context.Context, offer domain.Offer) error {
	if r == nil || r.base == nil {
		return errors.New("offer repository not initialised")
	}
	offerID := strings.TrimSpace(offer.ID)
	if offerID == "" {
		return errors.New("offer repository: offer id is required")
	}
	doc := encodeOfferDocument(offer)
	if _, err := r.base.Set(ctx, offerID, doc); err != nil {
		return err
	}
	return nil
}

// FindByID fetches a single offer.
func (r *OfferRepository) FindByID(ctx context.Context, offerID string) (domain.Offer, error) {
	if r == nil || r.base == nil {
		return domain.Offer{}, errors.New("offer repository not initialised")
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return domain.Offer{}, errors.New("offer repository: offer id is required")
	}
	doc, err := r.base.Get(ctx, offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	return decodeOfferDocument(offerID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// FindByApplication resolves the offer linked to an application. At most one
// offer exists per application.
func (r *OfferRepository) FindByApplication(ctx context.Context, applicationID string) (domain.Offer, error) {
	if r == nil || r.base == nil {
		return domain.Offer{}, errors.New("offer repository not initialised")
	}
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return domain.Offer{}, errors.New("offer repository: application id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("applicationId", "==", applicationID).Limit(1)
	})
	if err != nil {
		return domain.Offer{}, err
	}
	if len(docs) == 0 {
		return domain.Offer{}, pfirestore.WrapError("offers.find_by_application", status.Error(codes.NotFound, "offer not found"))
	}
	doc := docs[0]
	return decodeOfferDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// UpdateInTx applies mutate to the current offer snapshot and persists the result
// in a single transaction, so concurrent approval writes serialise.
func (r *OfferRepository) UpdateInTx(ctx context.Context, offerID string, mutate func(domain.Offer) (domain.Offer, error)) (domain.Offer, error) {
	if r == nil || r.provider == nil || r.base == nil {
		return domain.Offer{}, errors.New("offer repository not initialised")
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return domain.Offer{}, errors.New("offer repository: offer id is required")
	}
	if mutate == nil {
		return domain.Offer{}, errors.New("offer repository: mutate function is required")
	}

	var result domain.Offer
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, offerID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc offerDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode offer %s: %w", offerID, err)
		}
		current := decodeOfferDocument(offerID, doc, snap.CreateTime, snap.UpdateTime)
		mutated, err := mutate(current)
		if err != nil {
			return err
		}
		if err := tx.Set(ref, encodeOfferDocument(mutated)); err != nil {
			return err
		}
		result = mutated
		return nil
	})
	if err != nil {
		return domain.Offer{}, pfirestore.WrapError("offers.update_in_tx", err)
	}
	return result, nil
}

// ListExpiring returns sent offers past their expiry date that are still awaiting
// a candidate response.
func (r *OfferRepository) ListExpiring(ctx context.Context, cutoff time.Time, limit int) ([]domain.Offer, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("offer repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("status", "==", string(domain.OfferStatusSent)).
			Where("applicantResponse", "==", string(domain.ApplicantResponsePending)).
			Where("expiryDate", "<", cutoff.UTC()).
			OrderBy("expiryDate", firestore.Asc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.Offer, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeOfferDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}
	return items, nil
}

type offerDocument struct {
	ApplicationID          string             `firestore:"applicationId"`
	CandidateRef           string             `firestore:"candidateRef"`
	CandidateUID           string             `firestore:"candidateUid"`
	RequisitionID          string             `firestore:"requisitionId"`
	Status                 string             `firestore:"status"`
	ApplicantResponse      string             `firestore:"applicantResponse"`
	Terms                  offerTermsDocument `firestore:"terms"`
	Approvers              []approvalDocument `firestore:"approvers"`
	LetterRef              string             `firestore:"letterRef,omitempty"`
	ExpiryDate             *time.Time         `firestore:"expiryDate,omitempty"`
	SentAt                 *time.Time         `firestore:"sentAt,omitempty"`
	RespondedAt            *time.Time         `firestore:"respondedAt,omitempty"`
	CandidateSignedAt      *time.Time         `firestore:"candidateSignedAt,omitempty"`
	OnboardingTriggered    bool               `firestore:"onboardingTriggered"`
	OnboardingChecklistRef string             `firestore:"onboardingChecklistRef,omitempty"`
	CreatedBy              string             `firestore:"createdBy,omitempty"`
	UpdatedBy              string             `firestore:"updatedBy,omitempty"`
	CreatedAt              time.Time          `firestore:"createdAt"`
	UpdatedAt              time.Time          `firestore:"updatedAt"`
}

type offerTermsDocument struct {
	Position     string     `firestore:"position"`
	SalaryAmount int64      `firestore:"salaryAmount"`
	Currency     string     `firestore:"currency"`
	StartDate    *time.Time `firestore:"startDate,omitempty"`
	Notes        string     `firestore:"notes,omitempty"`
}

type approvalDocument struct {
	ApproverID string    `firestore:"approverId"`
	Role       string    `firestore:"role,omitempty"`
	Decision   string    `firestore:"decision"`
	Comment    string    `firestore:"comment,omitempty"`
	DecidedAt  time.Time `firestore:"decidedAt"`
}

func encodeOfferDocument(offer domain.Offer) offerDocument {
	approvers := make([]approvalDocument, 0, len(offer.Approvers))
	for _, approval := range offer.Approvers {
		approvers = append(approvers, approvalDocument{
			ApproverID: strings.TrimSpace(approval.ApproverID),
			Role:       strings.TrimSpace(approval.Role),
			Decision:   strings.TrimSpace(string(approval.Decision)),
			Comment:    approval.Comment,
			DecidedAt:  approval.DecidedAt.UTC(),
		})
	}
	return offerDocument{
		ApplicationID: strings.TrimSpace(offer.ApplicationID),
		CandidateRef:  candidateDocPath(offer.CandidateID),
		CandidateUID:  strings.TrimSpace(offer.CandidateID),
		RequisitionID: strings.TrimSpace(offer.RequisitionID),
		Status:        strings.TrimSpace(string(offer.Status)),
		ApplicantResponse: strings.TrimSpace(string(offer.ApplicantResponse)),
		Terms: offerTermsDocument{
			Position:     strings.TrimSpace(offer.Terms.Position),
			SalaryAmount: offer.Terms.SalaryAmount,
			Currency:     strings.TrimSpace(offer.Terms.Currency),
			StartDate:    normalizeTimePointer(offer.Terms.StartDate),
			Notes:        offer.Terms.Notes,
		},
		Approvers:              approvers,
		LetterRef:              optionalDocString(offer.LetterRef),
		ExpiryDate:             normalizeTimePointer(offer.ExpiryDate),
		SentAt:                 normalizeTimePointer(offer.SentAt),
		RespondedAt:            normalizeTimePointer(offer.RespondedAt),
		CandidateSignedAt:      normalizeTimePointer(offer.CandidateSignedAt),
		OnboardingTriggered:    offer.OnboardingTriggered,
		OnboardingChecklistRef: optionalDocString(offer.OnboardingChecklistRef),
		CreatedBy:              optionalDocString(offer.Audit.CreatedBy),
		UpdatedBy:              optionalDocString(offer.Audit.UpdatedBy),
		CreatedAt:              offer.CreatedAt.UTC(),
		UpdatedAt:              offer.UpdatedAt.UTC(),
	}
}

func decodeOfferDocument(id string, doc offerDocument, createdAt, updatedAt time.Time) domain.Offer {
	approvers := make([]domain.OfferApproval, 0, len(doc.Approvers))
	for _, approval := range doc.Approvers {
		approvers = append(approvers, domain.OfferApproval{
			ApproverID: strings.TrimSpace(approval.ApproverID),
			Role:       strings.TrimSpace(approval.Role),
			Decision:   domain.ApprovalDecision(strings.TrimSpace(approval.Decision)),
			Comment:    approval.Comment,
			DecidedAt:  approval.DecidedAt.UTC(),
		})
	}
	return domain.Offer{
		ID:                strings.TrimSpace(id),
		ApplicationID:     strings.TrimSpace(doc.ApplicationID),
		CandidateID:       extractCandidateID(doc.CandidateRef, doc.CandidateUID),
		RequisitionID:     strings.TrimSpace(doc.RequisitionID),
		Status:            domain.OfferStatus(strings.TrimSpace(doc.Status)),
		ApplicantResponse: domain.ApplicantResponse(strings.TrimSpace(doc.ApplicantResponse)),
		Terms: domain.OfferTerms{
			Position:     strings.TrimSpace(doc.Terms.Position),
			SalaryAmount: doc.Terms.SalaryAmount,
			Currency:     strings.TrimSpace(doc.Terms.Currency),
			StartDate:    normalizeTimePointer(doc.Terms.StartDate),
			Notes:        doc.Terms.Notes,
		},
		Approvers:              approvers,
		LetterRef:              docStringPointer(doc.LetterRef),
		ExpiryDate:             normalizeTimePointer(doc.ExpiryDate),
		SentAt:                 normalizeTimePointer(doc.SentAt),
		RespondedAt:            normalizeTimePointer(doc.RespondedAt),
		CandidateSignedAt:      normalizeTimePointer(doc.CandidateSignedAt),
		OnboardingTriggered:    doc.OnboardingTriggered,
		OnboardingChecklistRef: docStringPointer(doc.OnboardingChecklistRef),
		Audit: domain.RecordAudit{
			CreatedBy: docStringPointer(doc.CreatedBy),
			UpdatedBy: docStringPointer(doc.UpdatedBy),
		},
		CreatedAt: chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt: chooseTime(doc.UpdatedAt, updatedAt),
	}
}

// Ensure interface compliance.
var _ repositories.OfferRepository = (*OfferRepository)(nil)
