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

const applicationsCollection = "applications"

// ApplicationRepository persists candidate application records.
type ApplicationRepository struct {
	base *pfirestore.BaseRepository[applicationDocument]
}

// NewApplicationRepository constructs a Firestore-backed application repository.
func NewApplicationRepository(provider *pfirestore.Provider) (*ApplicationRepository, error) {
	if provider == nil {
		return nil, errors.New("application repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[applicationDocument](provider, applicationsCollection, nil, nil)
	return &ApplicationRepository{base: base}, nil
}

// Insert stores a new application document. The ID must be unique.
func (r *ApplicationRepository) Insert(ctx context.Context, application domain.ApplicationRecord) error {
	if r == nil || r.base == nil {
		return errors.New("application repository not initialised")
	}
	applicationID := strings.TrimSpace(application.ID)
	if applicationID == "" {
		return errors.New("application repository: application id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, applicationID)
	if err != nil {
		return err
	}
	doc := encodeApplicationDocument(application)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("applications.insert", err)
	}
	return nil
}

// Update replaces the persisted application state with the provided snapshot.
func (r *ApplicationRepository) Update(ctx context.Context, application domain.ApplicationRecord) error {
	if r == nil || r.base == nil {
		return errors.New("application repository not initialised")
	}
	applicationID := strings.TrimSpace(application.ID)
	if applicationID == "" {
		return errors.New("application repository: application id is required")
	}
	doc := encodeApplicationDocument(application)
	if _, err := r.base.Set(ctx, applicationID, doc); err != nil {
		return err
	}
	return nil
}

// FindByID fetches a single application.
func (r *ApplicationRepository) FindByID(ctx context.Context, applicationID string) (domain.ApplicationRecord, error) {
	if r == nil || r.base == nil {
		return domain.ApplicationRecord{}, errors.New("application repository not initialised")
	}
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return domain.ApplicationRecord{}, errors.New("application repository: application id is required")
	}
	doc, err := r.base.Get(ctx, applicationID)
	if err != nil {
		return domain.ApplicationRecord{}, err
	}
	return decodeApplicationDocument(applicationID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns applications ordered by most recent creation, filtered and paged.
func (r *ApplicationRepository) List(ctx context.Context, filter repositories.ApplicationListFilter) (domain.CursorPage[domain.ApplicationRecord], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.ApplicationRecord]{}, errors.New("application repository not initialised")
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
			return domain.CursorPage[domain.ApplicationRecord]{}, fmt.Errorf("application repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	stageFilters := normaliseFilterValues(filter.Stage)
	statusFilters := normaliseFilterValues(filter.Status)
	candidateID := strings.TrimSpace(filter.CandidateID)
	requisitionID := strings.TrimSpace(filter.RequisitionID)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if candidateID != "" {
			q = q.Where("candidateUid", "==", candidateID)
		}
		if requisitionID != "" {
			q = q.Where("requisitionId", "==", requisitionID)
		}
		if len(stageFilters) == 1 {
			q = q.Where("stage", "==", stageFilters[0])
		} else if len(stageFilters) > 1 {
			q = q.Where("stage", "in", stageFilters)
		}
		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			q = q.Where("status", "in", statusFilters)
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
		return domain.CursorPage[domain.ApplicationRecord]{}, err
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

	items := make([]domain.ApplicationRecord, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeApplicationDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.ApplicationRecord]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type applicationDocument struct {
	CandidateRef   string         `firestore:"candidateRef"`
	CandidateUID   string         `firestore:"candidateUid"`
	RequisitionID  string         `firestore:"requisitionId"`
	Stage          string         `firestore:"stage"`
	Status         string         `firestore:"status"`
	ResumeRef      string         `firestore:"resumeRef,omitempty"`
	ReferralSource string         `firestore:"referralSource,omitempty"`
	Locale         string         `firestore:"locale,omitempty"`
	Metadata       map[string]any `firestore:"metadata,omitempty"`
	CreatedBy      string         `firestore:"createdBy,omitempty"`
	UpdatedBy      string         `firestore:"updatedBy,omitempty"`
	CreatedAt      time.Time      `firestore:"createdAt"`
	UpdatedAt      time.Time      `firestore:"updatedAt"`
}

func encodeApplicationDocument(application domain.ApplicationRecord) applicationDocument {
	return applicationDocument{
		CandidateRef:   candidateDocPath(application.CandidateID),
		CandidateUID:   strings.TrimSpace(application.CandidateID),
		RequisitionID:  strings.TrimSpace(application.RequisitionID),
		Stage:          strings.TrimSpace(string(application.Stage)),
		Status:         strings.TrimSpace(string(application.Status)),
		ResumeRef:      optionalDocString(application.ResumeRef),
		ReferralSource: optionalDocString(application.ReferralSource),
		Locale:         strings.TrimSpace(application.Locale),
		Metadata:       cloneMap(application.Metadata),
		CreatedBy:      optionalDocString(application.Audit.CreatedBy),
		UpdatedBy:      optionalDocString(application.Audit.UpdatedBy),
		CreatedAt:      application.CreatedAt.UTC(),
		UpdatedAt:      application.UpdatedAt.UTC(),
	}
}

func decodeApplicationDocument(id string, doc applicationDocument, createdAt, updatedAt time.Time) domain.ApplicationRecord {
	return domain.ApplicationRecord{
		ID:             strings.TrimSpace(id),
		CandidateID:    extractCandidateID(doc.CandidateRef, doc.CandidateUID),
		RequisitionID:  strings.TrimSpace(doc.RequisitionID),
		Stage:          domain.ApplicationStage(strings.TrimSpace(doc.Stage)),
		Status:         domain.ApplicationStatus(strings.TrimSpace(doc.Status)),
		ResumeRef:      docStringPointer(doc.ResumeRef),
		ReferralSource: docStringPointer(doc.ReferralSource),
		Locale:         strings.TrimSpace(doc.Locale),
		Metadata:       cloneMap(doc.Metadata),
		Audit: domain.RecordAudit{
			CreatedBy: docStringPointer(doc.CreatedBy),
			UpdatedBy: docStringPointer(doc.UpdatedBy),
		},
		CreatedAt: chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt: chooseTime(doc.UpdatedAt, updatedAt),
	}
}

// Ensure interface compliance.
var _ repositories.ApplicationRepository = (*ApplicationRepository)(nil)
