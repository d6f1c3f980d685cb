package repositories

import (
	"context"
	"time"

	domain "github.com/peoplehub/hr-api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Applications() ApplicationRepository
	StatusHistory() StatusHistoryRepository
	Interviews() InterviewRepository
	Offers() OfferRepository
	Terminations() TerminationRepository
	Clearances() ClearanceRepository
	Counters() CounterRepository
	AuditLogs() AuditLogRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ApplicationRepository persists candidate application records.
type ApplicationRepository interface {
	Insert(ctx context.Context, application domain.ApplicationRecord) error
	Update(ctx context.Context, application domain.ApplicationRecord) error
	FindByID(ctx context.Context, applicationID string) (domain.ApplicationRecord, error)
	List(ctx context.Context, filter ApplicationListFilter) (domain.CursorPage[domain.ApplicationRecord], error)
}

// StatusHistoryRepository stores the append-only transition trail per application.
type StatusHistoryRepository interface {
	Append(ctx context.Context, entry domain.StatusHistoryEntry) error
	ListByApplication(ctx context.Context, applicationID string, pager domain.Pagination) (domain.CursorPage[domain.StatusHistoryEntry], error)
}

// InterviewRepository persists interviews and their embedded panel feedback.
type InterviewRepository interface {
	Insert(ctx context.Context, interview domain.Interview) error
	Update(ctx context.Context, interview domain.Interview) error
	FindByID(ctx context.Context, interviewID string) (domain.Interview, error)
	ListByApplication(ctx context.Context, applicationID string) ([]domain.Interview, error)
}

// OfferRepository persists offers together with their approval ledgers.
type OfferRepository interface {
	Insert(ctx context.Context, offer domain.Offer) error
	Update(ctx context.Context, offer domain.Offer) error
	FindByID(ctx context.Context, offerID string) (domain.Offer, error)
	FindByApplication(ctx context.Context, applicationID string) (domain.Offer, error)
	// UpdateInTx reads the offer, applies mutate, and persists the result within
	// a single transaction. Used for approval ledger recomputation.
	UpdateInTx(ctx context.Context, offerID string, mutate func(domain.Offer) (domain.Offer, error)) (domain.Offer, error)
	// ListExpiring returns sent offers whose expiry date falls strictly before
	// the cutoff and whose applicant response is still pending.
	ListExpiring(ctx context.Context, cutoff time.Time, limit int) ([]domain.Offer, error)
}

// TerminationRepository persists termination requests.
type TerminationRepository interface {
	Insert(ctx context.Context, request domain.TerminationRequest) error
	Update(ctx context.Context, request domain.TerminationRequest) error
	FindByID(ctx context.Context, terminationID string) (domain.TerminationRequest, error)
	List(ctx context.Context, filter TerminationListFilter) (domain.CursorPage[domain.TerminationRequest], error)
}

// ClearanceRepository persists clearance checklists, one per approved termination.
type ClearanceRepository interface {
	Insert(ctx context.Context, checklist domain.ClearanceChecklist) error
	Update(ctx context.Context, checklist domain.ClearanceChecklist) error
	FindByID(ctx context.Context, checklistID string) (domain.ClearanceChecklist, error)
	// FindByTermination resolves the checklist through its termination back
	// reference. Absence surfaces as a RepositoryError with IsNotFound.
	FindByTermination(ctx context.Context, terminationID string) (domain.ClearanceChecklist, error)
	// CreateForTermination creates the checklist unless one already exists for
	// the termination. The existence check and create run in one transaction.
	// Returns the live checklist and whether this call created it.
	CreateForTermination(ctx context.Context, checklist domain.ClearanceChecklist) (domain.ClearanceChecklist, bool, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// ApplicationListFilter narrows application listings.
type ApplicationListFilter struct {
	CandidateID   string
	RequisitionID string
	Stage         []string
	Status        []string
	DateRange     domain.RangeQuery[time.Time]
	Pagination    domain.Pagination
}

// TerminationListFilter narrows termination listings.
type TerminationListFilter struct {
	EmployeeID string
	Status     []string
	Pagination domain.Pagination
}

// AuditLogFilter narrows audit trail queries.
type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	ActorType  string
	Action     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
