package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/peoplehub/hr-api/internal/domain"
	pfirestore "github.com/peoplehub/hr-api/internal/platform/firestore"
	"github.com/peoplehub/hr-api/internal/repositories"
)

const terminationsCollection = "terminations"

// TerminationRepository persists termination requests.
type TerminationRepository struct {
	base *pfirestore.BaseRepository[terminationDocument]
}

// NewTerminationRepository constructs a Firestore-backed termination repository.
func NewTerminationRepository(provider *pfirestore.Provider) (*TerminationRepository, error) {
	if provider == nil {
		return nil, errors.New("termination repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[terminationDocument](provider, terminationsCollection, nil, nil)
	return &TerminationRepository{base: base}, nil
}

// Insert stores a new termination request. The ID must be unique.
func (r *TerminationRepository) Insert(ctx context.Context, request domain.TerminationRequest) error {
	if r == nil || r.base == nil {
		return errors.New("termination repository not initialised")
	}
	terminationID := strings.TrimSpace(request.ID)
	if terminationID == "" {
		return errors.New("termination repository: termination id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, terminationID)
	if err != nil {
		return err
	}
	doc := encodeTerminationDocument(request)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("terminations.insert", err)
	}
	return nil
}

// Update replaces the persisted termination state with the provided snapshot.
func (r *TerminationRepository) Update(ctx context.Context, request domain.TerminationRequest) error {
	if r == nil || r.base == nil {
		return errors.New("termination repository not initialised")
	}
	terminationID := strings.TrimSpace(request.ID)
	if terminationID == "" {
		return errors.New("termination repository: termination id is required")
	}
	doc := encodeTerminationDocument(request)
	if _, err := r.base.Set(ctx, terminationID, doc); err != nil {
		return err
	}
	return nil
}

// FindByID fetches a single termination request.
func (r *TerminationRepository) FindByID(ctx context.Context, terminationID string) (domain.TerminationRequest, error) {
	if r == nil || r.base == nil {
		return domain.TerminationRequest{}, errors.New("termination repository not initialised")
	}
	terminationID = strings.TrimSpace(terminationID)
	if terminationID == "" {
		return domain.TerminationRequest{}, errors.New("termination repository: termination id is required")
	}
	doc, err := r.base.Get(ctx, terminationID)
	if err != nil {
		return domain.TerminationRequest{}, err
	}
	return decodeTerminationDocument(terminationID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns termination requests ordered by most recent creation.
func (r *TerminationRepository) List(ctx context.Context, filter repositories.TerminationListFilter) (domain.CursorPage[domain.TerminationRequest], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.TerminationRequest]{}, errors.New("termination repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeCursorToken(token)
		if err != nil {
			return domain.CursorPage[domain.TerminationRequest]{}, fmt.Errorf("termination repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	statusFilters := normaliseFilterValues(filter.Status)
	employeeID := strings.TrimSpace(filter.EmployeeID)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if employeeID != "" {
			q = q.Where("employeeId", "==", employeeID)
		}
		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			q = q.Where("status", "in", statusFilters)
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.TerminationRequest]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeCursorToken(tokenTime, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.TerminationRequest, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeTerminationDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.TerminationRequest]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type terminationDocument struct {
	EmployeeID            string     `firestore:"employeeId"`
	ContractID            string     `firestore:"contractId"`
	Initiator             string     `firestore:"initiator"`
	Reason                string     `firestore:"reason"`
	Status                string     `firestore:"status"`
	TerminationDate       *time.Time `firestore:"terminationDate,omitempty"`
	HRComments            string     `firestore:"hrComments,omitempty"`
	ProcessedAt           *time.Time `firestore:"processedAt,omitempty"`
	ProcessedBy           string     `firestore:"processedBy,omitempty"`
	ChecklistRef          string     `firestore:"checklistRef,omitempty"`
	SettlementFinalizedAt *time.Time `firestore:"settlementFinalizedAt,omitempty"`
	CreatedBy             string     `firestore:"createdBy,omitempty"`
	UpdatedBy             string     `firestore:"updatedBy,omitempty"`
	CreatedAt             time.Time  `firestore:"createdAt"`
	UpdatedAt             time.Time  `firestore:"updatedAt"`
}

func encodeTerminationDocument(request domain.TerminationRequest) terminationDocument {
	return terminationDocument{
		EmployeeID:            strings.TrimSpace(request.EmployeeID),
		ContractID:            strings.TrimSpace(request.ContractID),
		Initiator:             strings.TrimSpace(string(request.Initiator)),
		Reason:                request.Reason,
		Status:                strings.TrimSpace(string(request.Status)),
		TerminationDate:       normalizeTimePointer(request.TerminationDate),
		HRComments:            request.HRComments,
		ProcessedAt:           normalizeTimePointer(request.ProcessedAt),
		ProcessedBy:           optionalDocString(request.ProcessedBy),
		ChecklistRef:          optionalDocString(request.ChecklistRef),
		SettlementFinalizedAt: normalizeTimePointer(request.SettlementFinalizedAt),
		CreatedBy:             optionalDocString(request.Audit.CreatedBy),
		UpdatedBy:             optionalDocString(request.Audit.UpdatedBy),
		CreatedAt:             request.CreatedAt.UTC(),
		UpdatedAt:             request.UpdatedAt.UTC(),
	}
}

func decodeTerminationDocument(id string, doc terminationDocument, createdAt, updatedAt time.Time) domain.TerminationRequest {
	return domain.TerminationRequest{
		ID:                    strings.TrimSpace(id),
		EmployeeID:            strings.TrimSpace(doc.EmployeeID),
		ContractID:            strings.TrimSpace(doc.ContractID),
		Initiator:             domain.TerminationInitiator(strings.TrimSpace(doc.Initiator)),
		Reason:                doc.Reason,
		Status:                domain.TerminationStatus(strings.TrimSpace(doc.Status)),
		TerminationDate:       normalizeTimePointer(doc.TerminationDate),
		HRComments:            doc.HRComments,
		ProcessedAt:           normalizeTimePointer(doc.ProcessedAt),
		ProcessedBy:           docStringPointer(doc.ProcessedBy),
		ChecklistRef:          docStringPointer(doc.ChecklistRef),
		SettlementFinalizedAt: normalizeTimePointer(doc.SettlementFinalizedAt),
		Audit: domain.RecordAudit{
			CreatedBy: docStringPointer(doc.CreatedBy),
			UpdatedBy: docStringPointer(doc.UpdatedBy),
		},
		CreatedAt: chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt: chooseTime(doc.UpdatedAt, updatedAt),
	}
}

// Ensure interface compliance.
var _ repositories.TerminationRepository = (*TerminationRepository)(nil)
