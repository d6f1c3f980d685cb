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

const auditLogsCollection = "auditLogs"

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository struct {
	base *pfirestore.BaseRepository[auditLogDocument]
}

// NewAuditLogRepository constructs a Firestore-backed audit log repository.
func NewAuditLogRepository(provider *pfirestore.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("audit log repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[auditLogDocument](provider, auditLogsCollection, nil, nil)
	return &AuditLogRepository{base: base}, nil
}

// Append stores a new audit entry. Entries are never updated or removed.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	if r == nil || r.base == nil {
		return errors.New("audit log repository not initialised")
	}
	entryID := strings.TrimSpace(entry.ID)
	if entryID == "" {
		return errors.New("audit log repository: entry id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, entryID)
	if err != nil {
		return err
	}
	doc := encodeAuditLogDocument(entry)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("audit_logs.append", err)
	}
	return nil
}

// List returns audit entries ordered newest first, filtered and paged.
func (r *AuditLogRepository) List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, errors.New("audit log repository not initialised")
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
			return domain.CursorPage[domain.AuditLogEntry]{}, fmt.Errorf("audit log repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	targetRef := strings.TrimSpace(filter.TargetRef)
	actor := strings.TrimSpace(filter.Actor)
	actorType := strings.TrimSpace(filter.ActorType)
	action := strings.TrimSpace(filter.Action)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if targetRef != "" {
			q = q.Where("targetRef", "==", targetRef)
		}
		if actor != "" {
			q = q.Where("actor", "==", actor)
		}
		if actorType != "" {
			q = q.Where("actorType", "==", actorType)
		}
		if action != "" {
			q = q.Where("action", "==", action)
		}
		if filter.DateRange.From != nil && !filter.DateRange.From.IsZero() {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil && !filter.DateRange.To.IsZero() {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
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
		return domain.CursorPage[domain.AuditLogEntry]{}, err
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

	items := make([]domain.AuditLogEntry, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeAuditLogDocument(doc.ID, doc.Data, doc.CreateTime))
	}

	return domain.CursorPage[domain.AuditLogEntry]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type auditLogDocument struct {
	Actor     string         `firestore:"actor"`
	ActorType string         `firestore:"actorType"`
	Action    string         `firestore:"action"`
	TargetRef string         `firestore:"targetRef"`
	Metadata  map[string]any `firestore:"metadata,omitempty"`
	Diff      map[string]any `firestore:"diff,omitempty"`
	IPHash    string         `firestore:"ipHash,omitempty"`
	UserAgent string         `firestore:"userAgent,omitempty"`
	Severity  string         `firestore:"severity,omitempty"`
	RequestID string         `firestore:"requestId,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

func encodeAuditLogDocument(entry domain.AuditLogEntry) auditLogDocument {
	return auditLogDocument{
		Actor:     strings.TrimSpace(entry.Actor),
		ActorType: strings.TrimSpace(entry.ActorType),
		Action:    strings.TrimSpace(entry.Action),
		TargetRef: strings.TrimSpace(entry.TargetRef),
		Metadata:  cloneMap(entry.Metadata),
		Diff:      cloneMap(entry.Diff),
		IPHash:    strings.TrimSpace(entry.IPHash),
		UserAgent: strings.TrimSpace(entry.UserAgent),
		Severity:  strings.TrimSpace(entry.Severity),
		RequestID: strings.TrimSpace(entry.RequestID),
		CreatedAt: entry.CreatedAt.UTC(),
	}
}

func decodeAuditLogDocument(id string, doc auditLogDocument, createdAt time.Time) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		ID:        strings.TrimSpace(id),
		Actor:     strings.TrimSpace(doc.Actor),
		ActorType: strings.TrimSpace(doc.ActorType),
		Action:    strings.TrimSpace(doc.Action),
		TargetRef: strings.TrimSpace(doc.TargetRef),
		Metadata:  cloneMap(doc.Metadata),
		Diff:      cloneMap(doc.Diff),
		IPHash:    strings.TrimSpace(doc.IPHash),
		UserAgent: strings.TrimSpace(doc.UserAgent),
		Severity:  strings.TrimSpace(doc.Severity),
		RequestID: strings.TrimSpace(doc.RequestID),
		CreatedAt: chooseTime(doc.CreatedAt, createdAt),
	}
}

// Ensure interface compliance.
var _ repositories.AuditLogRepository = (*AuditLogRepository)(nil)
