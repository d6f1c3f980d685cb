package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/peoplehub/hr-api/internal/domain"
	pfirestore "github.com/peoplehub/hr-api/internal/platform/firestore"
	"github.com/peoplehub/hr-api/internal/repositories"
)

const interviewsCollection = "interviews"

// InterviewRepository persists interviews with their embedded panel feedback.
type InterviewRepository struct {
	base *pfirestore.BaseRepository[interviewDocument]
}

// NewInterviewRepository constructs a Firestore-backed interview repository.
func NewInterviewRepository(provider *pfirestore.Provider) (*InterviewRepository, error) {
	if provider == nil {
		return nil, errors.New("interview repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[interviewDocument](provider, interviewsCollection, nil, nil)
	return &InterviewRepository{base: base}, nil
}

// Insert stores a new interview document. The ID must be unique.
func (r *InterviewRepository) Insert(ctx context.Context, interview domain.Interview) error {
	if r == nil || r.base == nil {
		return errors.New("interview repository not initialised")
	}
	interviewID := strings.TrimSpace(interview.ID)
	if interviewID == "" {
		return errors.New("interview repository: interview id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, interviewID)
	if err != nil {
		return err
	}
	doc := encodeInterviewDocument(interview)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("interviews.insert", err)
	}
	return nil
}

// Update replaces the persisted interview state with the provided snapshot.
func (r *InterviewRepository) Update(ctx context.Context, interview domain.Interview) error {
	if r == nil || r.base == nil {
		return errors.New("interview repository not initialised")
	}
	interviewID := strings.TrimSpace(interview.ID)
	if interviewID == "" {
		return errors.New("interview repository: interview id is required")
	}
	doc := encodeInterviewDocument(interview)
	if _, err := r.base.Set(ctx, interviewID, doc); err != nil {
		return err
	}
	return nil
}

// FindByID fetches a single interview.
func (r *InterviewRepository) FindByID(ctx context.Context, interviewID string) (domain.Interview, error) {
	if r == nil || r.base == nil {
		return domain.Interview{}, errors.New("interview repository not initialised")
	}
	interviewID = strings.TrimSpace(interviewID)
	if interviewID == "" {
		return domain.Interview{}, errors.New("interview repository: interview id is required")
	}
	doc, err := r.base.Get(ctx, interviewID)
	if err != nil {
		return domain.Interview{}, err
	}
	return decodeInterviewDocument(interviewID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// ListByApplication returns every interview for an application ordered by scheduled start.
func (r *InterviewRepository) ListByApplication(ctx context.Context, applicationID string) ([]domain.Interview, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("interview repository not initialised")
	}
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return nil, errors.New("interview repository: application id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("applicationId", "==", applicationID).
			OrderBy("scheduledStart", firestore.Asc).
			OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.Interview, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeInterviewDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}
	return items, nil
}

type interviewDocument struct {
	ApplicationID  string             `firestore:"applicationId"`
	Stage          string             `firestore:"stage"`
	Panel          []string           `firestore:"panel"`
	ScheduledStart time.Time          `firestore:"scheduledStart"`
	ScheduledEnd   time.Time          `firestore:"scheduledEnd"`
	Location       string             `firestore:"location,omitempty"`
	Status         string             `firestore:"status"`
	Feedback       []feedbackDocument `firestore:"feedback"`
	CreatedBy      string             `firestore:"createdBy,omitempty"`
	UpdatedBy      string             `firestore:"updatedBy,omitempty"`
	CreatedAt      time.Time          `firestore:"createdAt"`
	UpdatedAt      time.Time          `firestore:"updatedAt"`
}

type feedbackDocument struct {
	InterviewerID string    `firestore:"interviewerId"`
	OverallScore  int       `firestore:"overallScore"`
	Comments      string    `firestore:"comments,omitempty"`
	SubmittedAt   time.Time `firestore:"submittedAt"`
}

func encodeInterviewDocument(interview domain.Interview) interviewDocument {
	feedback := make([]feedbackDocument, 0, len(interview.Feedback))
	for _, entry := range interview.Feedback {
		feedback = append(feedback, feedbackDocument{
			InterviewerID: strings.TrimSpace(entry.InterviewerID),
			OverallScore:  entry.OverallScore,
			Comments:      entry.Comments,
			SubmittedAt:   entry.SubmittedAt.UTC(),
		})
	}
	return interviewDocument{
		ApplicationID:  strings.TrimSpace(interview.ApplicationID),
		Stage:          strings.TrimSpace(string(interview.Stage)),
		Panel:          cloneStrings(interview.Panel),
		ScheduledStart: interview.ScheduledStart.UTC(),
		ScheduledEnd:   interview.ScheduledEnd.UTC(),
		Location:       optionalDocString(interview.Location),
		Status:         strings.TrimSpace(string(interview.Status)),
		Feedback:       feedback,
		CreatedBy:      optionalDocString(interview.Audit.CreatedBy),
		UpdatedBy:      optionalDocString(interview.Audit.UpdatedBy),
		CreatedAt:      interview.CreatedAt.UTC(),
		UpdatedAt:      interview.UpdatedAt.UTC(),
	}
}

func decodeInterviewDocument(id string, doc interviewDocument, createdAt, updatedAt time.Time) domain.Interview {
	feedback := make([]domain.PanelFeedback, 0, len(doc.Feedback))
	for _, entry := range doc.Feedback {
		feedback = append(feedback, domain.PanelFeedback{
			InterviewerID: strings.TrimSpace(entry.InterviewerID),
			OverallScore:  entry.OverallScore,
			Comments:      entry.Comments,
			SubmittedAt:   entry.SubmittedAt.UTC(),
		})
	}
	return domain.Interview{
		ID:             strings.TrimSpace(id),
		ApplicationID:  strings.TrimSpace(doc.ApplicationID),
		Stage:          domain.ApplicationStage(strings.TrimSpace(doc.Stage)),
		Panel:          cloneStrings(doc.Panel),
		ScheduledStart: doc.ScheduledStart.UTC(),
		ScheduledEnd:   doc.ScheduledEnd.UTC(),
		Location:       docStringPointer(doc.Location),
		Status:         domain.InterviewStatus(strings.TrimSpace(doc.Status)),
		Feedback:       feedback,
		Audit: domain.RecordAudit{
			CreatedBy: docStringPointer(doc.CreatedBy),
			UpdatedBy: docStringPointer(doc.UpdatedBy),
		},
		CreatedAt: chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt: chooseTime(doc.UpdatedAt, updatedAt),
	}
}

// Ensure interface compliance.
var _ repositories.InterviewRepository = (*InterviewRepository)(nil)
