package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/peoplehub/hr-api/internal/domain"
	pfirestore "github.com/peoplehub/hr-api/internal/platform/firestore"
	"github.com/peoplehub/hr-api/internal/repositories"
)

const historyCollectionPattern = "applications/%s/history"

// StatusHistoryRepository persists stage/status transition entries as a subcollection
// under the owning application document.
type StatusHistoryRepository struct {
	provider *pfirestore.Provider
}

// NewStatusHistoryRepository constructs a Firestore-backed status history repository.
func NewStatusHistoryRepository(provider *pfirestore.Provider) (*StatusHistoryRepository, error) {
	if provider == nil {
		return nil, errors.New("status history repository requires firestore provider")
	}
	return &StatusHistoryRepository{provider: provider}, nil
}

// Append stores a new history entry. Entries are never updated or removed.
func (r *StatusHistoryRepository) Append(ctx context.Context, entry domain.StatusHistoryEntry) error {
	coll, err := r.collection(ctx, entry.ApplicationID)
	if err != nil {
		return err
	}
	entryID := strings.TrimSpace(entry.ID)
	if entryID == "" {
		return errors.New("status history repository: entry id is required")
	}
	doc := encodeHistoryDocument(entry)
	if _, err := coll.Doc(entryID).Create(ctx, doc); err != nil {
		return pfirestore.WrapError("history.append", err)
	}
	return nil
}

// ListByApplication returns history entries ordered newest first.
func (r *StatusHistoryRepository) ListByApplication(ctx context.Context, applicationID string, pager domain.Pagination) (domain.CursorPage[domain.StatusHistoryEntry], error) {
	coll, err := r.collection(ctx, applicationID)
	if err != nil {
		return domain.CursorPage[domain.StatusHistoryEntry]{}, err
	}

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}

	query := coll.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	var fetchLimit int
	if limit > 0 {
		fetchLimit = limit + 1
		query = query.Limit(fetchLimit)
	}

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		tokenTime, tokenID, err := decodeCursorToken(token)
		if err != nil {
			return domain.CursorPage[domain.StatusHistoryEntry]{}, fmt.Errorf("history.list: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenTime, tokenID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	type historyRow struct {
		data  domain.StatusHistoryEntry
		docID string
	}

	var rows []historyRow
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.StatusHistoryEntry]{}, pfirestore.WrapError("history.list", err)
		}
		var doc historyDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.StatusHistoryEntry]{}, fmt.Errorf("decode history entry %s: %w", snap.Ref.ID, err)
		}
		rows = append(rows, historyRow{
			data:  decodeHistoryDocument(snap.Ref.ID, strings.TrimSpace(applicationID), doc),
			docID: snap.Ref.ID,
		})
	}

	nextToken := ""
	if limit > 0 && len(rows) == fetchLimit {
		last := rows[len(rows)-1]
		nextToken = encodeCursorToken(last.data.CreatedAt, last.docID)
		rows = rows[:len(rows)-1]
	}

	items := make([]domain.StatusHistoryEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.data)
	}

	return domain.CursorPage[domain.StatusHistoryEntry]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

func (r *StatusHistoryRepository) collection(ctx context.Context, applicationID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("status history repository not initialised")
	}
	id := strings.TrimSpace(applicationID)
	if id == "" {
		return nil, errors.New("status history repository: application id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf(historyCollectionPattern, id)
	return client.Collection(path), nil
}

type historyDocument struct {
	FromStage  string    `firestore:"fromStage"`
	ToStage    string    `firestore:"toStage"`
	FromStatus string    `firestore:"fromStatus"`
	ToStatus   string    `firestore:"toStatus"`
	ActorID    string    `firestore:"actorId"`
	Note       string    `firestore:"note,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func encodeHistoryDocument(entry domain.StatusHistoryEntry) historyDocument {
	return historyDocument{
		FromStage:  strings.TrimSpace(string(entry.FromStage)),
		ToStage:    strings.TrimSpace(string(entry.ToStage)),
		FromStatus: strings.TrimSpace(string(entry.FromStatus)),
		ToStatus:   strings.TrimSpace(string(entry.ToStatus)),
		ActorID:    strings.TrimSpace(entry.ActorID),
		Note:       strings.TrimSpace(entry.Note),
		CreatedAt:  entry.CreatedAt.UTC(),
	}
}

func decodeHistoryDocument(id string, applicationID string, doc historyDocument) domain.StatusHistoryEntry {
	return domain.StatusHistoryEntry{
		ID:            strings.TrimSpace(id),
		ApplicationID: applicationID,
		FromStage:     domain.ApplicationStage(strings.TrimSpace(doc.FromStage)),
		ToStage:       domain.ApplicationStage(strings.TrimSpace(doc.ToStage)),
		FromStatus:    domain.ApplicationStatus(strings.TrimSpace(doc.FromStatus)),
		ToStatus:      domain.ApplicationStatus(strings.TrimSpace(doc.ToStatus)),
		ActorID:       strings.TrimSpace(doc.ActorID),
		Note:          strings.TrimSpace(doc.Note),
		CreatedAt:     doc.CreatedAt.UTC(),
	}
}

// Ensure interface compliance.
var _ repositories.StatusHistoryRepository = (*StatusHistoryRepository)(nil)
