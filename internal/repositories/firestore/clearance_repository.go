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

const clearancesCollection = "clearances"

// ClearanceRepository persists clearance checklists.
type ClearanceRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[clearanceDocument]
}

// NewClearanceRepository constructs a Firestore-backed clearance repository.
func NewClearanceRepository(provider *pfirestore.Provider) (*ClearanceRepository, error) {
	if provider == nil {
		return nil, errors.New("clearance repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[clearanceDocument](provider, clearancesCollection, nil, nil)
	return &ClearanceRepository{provider: provider, base: base}, nil
}

// Insert stores a new clearance checklist. The ID must be unique.
func (r *ClearanceRepository) Insert(ctx context.Context, checklist domain.ClearanceChecklist) error {
	if r == nil || r.base == nil {
		return errors.New("clearance repository not initialised")
	}
	checklistID := strings.TrimSpace(checklist.ID)
	if checklistID == "" {
		return errors.New("clearance repository: checklist id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, checklistID)
	if err != nil {
		return err
	}
	doc := encodeClearanceDocument(checklist)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("clearances.insert", err)
	}
	return nil
}

// Update replaces the persisted checklist state with the provided snapshot.
func (r *ClearanceRepository) Update(ctx context.Context, checklist domain.ClearanceChecklist) error {
	if r == nil || r.base == nil {
		return errors.New("clearance repository not initialised")
	}
	checklistID := strings.TrimSpace(checklist.ID)
	if checklistID == "" {
		return errors.New("clearance repository: checklist id is required")
	}
	doc := encodeClearanceDocument(checklist)
	if _, err := r.base.Set(ctx, checklistID, doc); err != nil {
		return err
	}
	return nil
}

// FindByID fetches a single checklist.
func (r *ClearanceRepository) FindByID(ctx context.Context, checklistID string) (domain.ClearanceChecklist, error) {
	if r == nil || r.base == nil {
		return domain.ClearanceChecklist{}, errors.New("clearance repository not initialised")
	}
	checklistID = strings.TrimSpace(checklistID)
	if checklistID == "" {
		return domain.ClearanceChecklist{}, errors.New("clearance repository: checklist id is required")
	}
	doc, err := r.base.Get(ctx, checklistID)
	if err != nil {
		return domain.ClearanceChecklist{}, err
	}
	return decodeClearanceDocument(checklistID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// FindByTermination resolves the checklist through its termination back reference.
func (r *ClearanceRepository) FindByTermination(ctx context.Context, terminationID string) (domain.ClearanceChecklist, error) {
	if r == nil || r.base == nil {
		return domain.ClearanceChecklist{}, errors.New("clearance repository not initialised")
	}
	terminationID = strings.TrimSpace(terminationID)
	if terminationID == "" {
		return domain.ClearanceChecklist{}, errors.New("clearance repository: termination id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("terminationId", "==", terminationID).Limit(1)
	})
	if err != nil {
		return domain.ClearanceChecklist{}, err
	}
	if len(docs) == 0 {
		return domain.ClearanceChecklist{}, pfirestore.WrapError("clearances.find_by_termination", status.Error(codes.NotFound, "clearance checklist not found"))
	}
	doc := docs[0]
	return decodeClearanceDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// CreateForTermination creates the checklist unless one already exists for the
// termination. Existence check and create run inside one transaction so the
// one-checklist-per-termination invariant holds under retries.
func (r *ClearanceRepository) CreateForTermination(ctx context.Context, checklist domain.ClearanceChecklist) (domain.ClearanceChecklist, bool, error) {
	if r == nil || r.provider == nil || r.base == nil {
		return domain.ClearanceChecklist{}, false, errors.New("clearance repository not initialised")
	}
	checklistID := strings.TrimSpace(checklist.ID)
	if checklistID == "" {
		return domain.ClearanceChecklist{}, false, errors.New("clearance repository: checklist id is required")
	}
	terminationID := strings.TrimSpace(checklist.TerminationID)
	if terminationID == "" {
		return domain.ClearanceChecklist{}, false, errors.New("clearance repository: termination id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.ClearanceChecklist{}, false, err
	}

	result := checklist
	created := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := client.Collection(clearancesCollection).Where("terminationId", "==", terminationID).Limit(1)
		snaps, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}
		if len(snaps) > 0 {
			snap := snaps[0]
			var doc clearanceDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode clearance checklist %s: %w", snap.Ref.ID, err)
			}
			result = decodeClearanceDocument(snap.Ref.ID, doc, snap.CreateTime, snap.UpdateTime)
			created = false
			return nil
		}

		ref, err := r.base.DocumentRef(ctx, checklistID)
		if err != nil {
			return err
		}
		if err := tx.Create(ref, encodeClearanceDocument(checklist)); err != nil {
			return err
		}
		result = checklist
		created = true
		return nil
	})
	if err != nil {
		return domain.ClearanceChecklist{}, false, pfirestore.WrapError("clearances.create_for_termination", err)
	}
	return result, created, nil
}

type clearanceDocument struct {
	TerminationID string                    `firestore:"terminationId"`
	Items         []clearanceItemDocument   `firestore:"items"`
	Equipment     []equipmentReturnDocument `firestore:"equipment"`
	CardReturned  bool                      `firestore:"cardReturned"`
	CreatedAt     time.Time                 `firestore:"createdAt"`
	UpdatedAt     time.Time                 `firestore:"updatedAt"`
}

type clearanceItemDocument struct {
	Department string     `firestore:"department"`
	Status     string     `firestore:"status"`
	Comments   string     `firestore:"comments,omitempty"`
	UpdatedBy  string     `firestore:"updatedBy,omitempty"`
	UpdatedAt  *time.Time `firestore:"updatedAt,omitempty"`
}

type equipmentReturnDocument struct {
	EquipmentID string `firestore:"equipmentId"`
	Name        string `firestore:"name"`
	Returned    bool   `firestore:"returned"`
	Condition   string `firestore:"condition,omitempty"`
}

func encodeClearanceDocument(checklist domain.ClearanceChecklist) clearanceDocument {
	items := make([]clearanceItemDocument, 0, len(checklist.Items))
	for _, item := range checklist.Items {
		items = append(items, clearanceItemDocument{
			Department: strings.TrimSpace(item.Department),
			Status:     strings.TrimSpace(string(item.Status)),
			Comments:   item.Comments,
			UpdatedBy:  strings.TrimSpace(item.UpdatedBy),
			UpdatedAt:  normalizeTimePointer(item.UpdatedAt),
		})
	}
	equipment := make([]equipmentReturnDocument, 0, len(checklist.Equipment))
	for _, entry := range checklist.Equipment {
		equipment = append(equipment, equipmentReturnDocument{
			EquipmentID: strings.TrimSpace(entry.EquipmentID),
			Name:        strings.TrimSpace(entry.Name),
			Returned:    entry.Returned,
			Condition:   entry.Condition,
		})
	}
	return clearanceDocument{
		TerminationID: strings.TrimSpace(checklist.TerminationID),
		Items:         items,
		Equipment:     equipment,
		CardReturned:  checklist.CardReturned,
		CreatedAt:     checklist.CreatedAt.UTC(),
		UpdatedAt:     checklist.UpdatedAt.UTC(),
	}
}

func decodeClearanceDocument(id string, doc clearanceDocument, createdAt, updatedAt time.Time) domain.ClearanceChecklist {
	items := make([]domain.ClearanceItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.ClearanceItem{
			Department: strings.TrimSpace(item.Department),
			Status:     domain.ClearanceStatus(strings.TrimSpace(item.Status)),
			Comments:   item.Comments,
			UpdatedBy:  strings.TrimSpace(item.UpdatedBy),
			UpdatedAt:  normalizeTimePointer(item.UpdatedAt),
		})
	}
	equipment := make([]domain.EquipmentReturn, 0, len(doc.Equipment))
	for _, entry := range doc.Equipment {
		equipment = append(equipment, domain.EquipmentReturn{
			EquipmentID: strings.TrimSpace(entry.EquipmentID),
			Name:        strings.TrimSpace(entry.Name),
			Returned:    entry.Returned,
			Condition:   entry.Condition,
		})
	}
	return domain.ClearanceChecklist{
		ID:            strings.TrimSpace(id),
		TerminationID: strings.TrimSpace(doc.TerminationID),
		Items:         items,
		Equipment:     equipment,
		CardReturned:  doc.CardReturned,
		CreatedAt:     chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt:     chooseTime(doc.UpdatedAt, updatedAt),
	}
}

// Ensure interface compliance.
var _ repositories.ClearanceRepository = (*ClearanceRepository)(nil)
