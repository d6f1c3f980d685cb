package services

import (
	"context"
	"time"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination           = domain.Pagination
	SortOrder            = domain.SortOrder
	ApplicationRecord    = domain.ApplicationRecord
	ApplicationStage     = domain.ApplicationStage
	ApplicationStatus    = domain.ApplicationStatus
	StatusHistoryEntry   = domain.StatusHistoryEntry
	Interview            = domain.Interview
	InterviewStatus      = domain.InterviewStatus
	PanelFeedback        = domain.PanelFeedback
	InterviewAggregate   = domain.InterviewAggregate
	Offer                = domain.Offer
	OfferStatus          = domain.OfferStatus
	OfferTerms           = domain.OfferTerms
	OfferApproval        = domain.OfferApproval
	ApprovalDecision     = domain.ApprovalDecision
	ApplicantResponse    = domain.ApplicantResponse
	TerminationRequest   = domain.TerminationRequest
	TerminationStatus    = domain.TerminationStatus
	TerminationInitiator = domain.TerminationInitiator
	ClearanceChecklist   = domain.ClearanceChecklist
	ClearanceItem        = domain.ClearanceItem
	ClearanceStatus      = domain.ClearanceStatus
	EquipmentReturn      = domain.EquipmentReturn
	SystemHealthReport   = domain.SystemHealthReport
	AuditLogEntry        = domain.AuditLogEntry
)

// ApplicationService owns the stage/status state machine for candidate applications.
type ApplicationService interface {
	Create(ctx context.Context, cmd CreateApplicationCommand) (ApplicationRecord, error)
	Get(ctx context.Context, applicationID string) (ApplicationRecord, error)
	List(ctx context.Context, filter ApplicationListFilter) (domain.CursorPage[ApplicationRecord], error)
	Transition(ctx context.Context, cmd ApplicationTransitionCommand) (ApplicationRecord, error)
	History(ctx context.Context, applicationID string, pager Pagination) (domain.CursorPage[StatusHistoryEntry], error)
}

// InterviewService schedules interviews and aggregates panel feedback.
type InterviewService interface {
	Schedule(ctx context.Context, cmd ScheduleInterviewCommand) (Interview, error)
	Get(ctx context.Context, interviewID string) (Interview, error)
	ListByApplication(ctx context.Context, applicationID string) ([]Interview, error)
	SubmitFeedback(ctx context.Context, cmd SubmitFeedbackCommand) (Interview, error)
	UpdateStatus(ctx context.Context, cmd InterviewStatusCommand) (Interview, error)
	Aggregate(ctx context.Context, interviewID string) (InterviewAggregate, error)
	CalculateApplicationScore(ctx context.Context, applicationID string) (InterviewAggregate, error)
}

// OfferService drives the multi-approver offer workflow through to the candidate response.
type OfferService interface {
	Create(ctx context.Context, cmd CreateOfferCommand) (Offer, error)
	Get(ctx context.Context, offerID string) (Offer, error)
	GetByApplication(ctx context.Context, applicationID string) (Offer, error)
	SubmitForApproval(ctx context.Context, cmd OfferActionCommand) (Offer, error)
	RecordApproval(ctx context.Context, cmd RecordApprovalCommand) (Offer, error)
	Send(ctx context.Context, cmd SendOfferCommand) (Offer, error)
	Respond(ctx context.Context, cmd OfferResponseCommand) (Offer, error)
	Withdraw(ctx context.Context, cmd OfferActionCommand) (Offer, error)
	ExpireSweep(ctx context.Context, cmd ExpireOffersCommand) (ExpireSweepResult, error)
}

// TerminationService manages termination requests, clearance checklists, and final settlement.
type TerminationService interface {
	Create(ctx context.Context, cmd CreateTerminationCommand) (TerminationRequest, error)
	Get(ctx context.Context, terminationID string) (TerminationRequest, error)
	List(ctx context.Context, filter TerminationListFilter) (domain.CursorPage[TerminationRequest], error)
	Process(ctx context.Context, cmd ProcessTerminationCommand) (TerminationRequest, error)
	GetChecklist(ctx context.Context, checklistID string) (ClearanceChecklist, error)
	GetChecklistByTermination(ctx context.Context, terminationID string) (ClearanceChecklist, error)
	UpdateClearanceItem(ctx context.Context, cmd UpdateClearanceItemCommand) (ClearanceChecklist, error)
	UpdateEquipmentReturn(ctx context.Context, cmd UpdateEquipmentReturnCommand) (ClearanceChecklist, error)
	UpdateCardReturn(ctx context.Context, cmd UpdateCardReturnCommand) (ClearanceChecklist, error)
	IsComplete(ctx context.Context, checklistID string) (bool, error)
	FinalizeSettlement(ctx context.Context, cmd FinalizeSettlementCommand) (TerminationRequest, error)
}

// LifecycleService is a thin façade composing the workflow services for handler use.
// It owns no state of its own.
type LifecycleService interface {
	CreateApplication(ctx context.Context, cmd CreateApplicationCommand) (ApplicationRecord, error)
	AdvanceApplication(ctx context.Context, cmd ApplicationTransitionCommand) (ApplicationRecord, error)
	ApplicationSummary(ctx context.Context, applicationID string) (ApplicationSummary, error)
	ScheduleInterview(ctx context.Context, cmd ScheduleInterviewCommand) (Interview, error)
	SubmitFeedback(ctx context.Context, cmd SubmitFeedbackCommand) (Interview, error)
	CreateOffer(ctx context.Context, cmd CreateOfferCommand) (Offer, error)
	ApproveOffer(ctx context.Context, cmd RecordApprovalCommand) (Offer, error)
	RespondToOffer(ctx context.Context, cmd OfferResponseCommand) (Offer, error)
	InitiateTermination(ctx context.Context, cmd CreateTerminationCommand) (TerminationRequest, error)
	ProcessTermination(ctx context.Context, cmd ProcessTerminationCommand) (TerminationRequest, error)
	FinalizeSettlement(ctx context.Context, cmd FinalizeSettlementCommand) (TerminationRequest, error)
}

// DocumentService issues signed URLs for CV and offer letter blobs. The workflow
// core stores document handles only.
type DocumentService interface {
	IssueSignedUpload(ctx context.Context, cmd SignedUploadCommand) (SignedDocumentResponse, error)
	IssueSignedDownload(ctx context.Context, cmd SignedDownloadCommand) (SignedDocumentResponse, error)
	// ArchiveDocument copies a stored document into the long-term exports
	// bucket for retention. Invoked by scheduled internal jobs only.
	ArchiveDocument(ctx context.Context, cmd ArchiveDocumentCommand) (ArchivedDocument, error)
}

// SystemService aggregates utility endpoints (health checks, audit logs, counters).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	ListAuditLogs(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLogEntry], error)
	NextCounterValue(ctx context.Context, cmd CounterCommand) (int64, error)
}

// AuditLogService centralizes immutable audit log persistence and retrieval.
type AuditLogService interface {
	Record(ctx context.Context, record AuditLogRecord)
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[AuditLogEntry], error)
}

// CandidateNotifier delivers status-keyed notifications to candidates. Delivery
// mechanics live outside the workflow core; failures are logged, never surfaced.
type CandidateNotifier interface {
	NotifyCandidate(ctx context.Context, notification CandidateNotification) error
}

// CandidateNotification carries the template key and substitution fields for one message.
type CandidateNotification struct {
	CandidateID   string
	ApplicationID string
	Template      string
	Locale        string
	Fields        map[string]any
}

// LifecycleEventPublisher publishes workflow domain events for downstream consumers.
type LifecycleEventPublisher interface {
	PublishLifecycleEvent(ctx context.Context, event LifecycleEvent) error
}

// LifecycleEvent captures metadata for emitted workflow domain events.
type LifecycleEvent struct {
	Type       string
	EntityID   string
	EntityKind string
	Previous   string
	Current    string
	ActorID    string
	OccurredAt time.Time
	Metadata   map[string]any
}

// OnboardingDispatcher requests onboarding checklist creation when an offer is
// accepted. Returns a handle to the created checklist.
type OnboardingDispatcher interface {
	RequestOnboardingChecklist(ctx context.Context, req OnboardingChecklistRequest) (string, error)
}

// OnboardingChecklistRequest identifies the hire the checklist is for.
type OnboardingChecklistRequest struct {
	OfferID       string
	ApplicationID string
	CandidateID   string
	StartDate     *time.Time
}

// SettlementPublisher emits the benefits/payroll finalization event. Unlike
// notifications this is correctness relevant, so failures propagate.
type SettlementPublisher interface {
	PublishSettlementFinalized(ctx context.Context, event SettlementEvent) error
}

// SettlementEvent signals downstream payroll/benefits systems to finalize.
type SettlementEvent struct {
	TerminationID   string
	EmployeeID      string
	ContractID      string
	TerminationDate *time.Time
	FinalizedAt     time.Time
}

// DomainError represents a structured error with stable codes for transport across layers.
type DomainError interface {
	error
	Code() string
	SafeMessage() string
}

// Command and DTO definitions ------------------------------------------------

type CreateApplicationCommand struct {
	CandidateID    string
	RequisitionID  string
	ResumeRef      *string
	ReferralSource *string
	Locale         string
	Metadata       map[string]any
	ActorID        string
}

type ApplicationTransitionCommand struct {
	ApplicationID string
	TargetStage   ApplicationStage
	TargetStatus  ApplicationStatus
	ActorID       string
	Note          string
}

type ApplicationListFilter = repositories.ApplicationListFilter

// ApplicationSummary bundles the read surface for one application.
type ApplicationSummary struct {
	Application ApplicationRecord
	Interviews  []Interview
	Score       InterviewAggregate
	Offer       *Offer
}

type ScheduleInterviewCommand struct {
	ApplicationID  string
	Stage          ApplicationStage
	Panel          []string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	Location       *string
	ActorID        string
}

type SubmitFeedbackCommand struct {
	InterviewID   string
	InterviewerID string
	Score         int
	Comments      string
}

type InterviewStatusCommand struct {
	InterviewID  string
	TargetStatus InterviewStatus
	ActorID      string
}

type CreateOfferCommand struct {
	ApplicationID string
	Terms         OfferTerms
	ExpiryDate    *time.Time
	ActorID       string
}

type OfferActionCommand struct {
	OfferID string
	ActorID string
	Reason  string
}

type RecordApprovalCommand struct {
	OfferID    string
	ApproverID string
	Role       string
	Decision   ApprovalDecision
	Comment    string
}

type SendOfferCommand struct {
	OfferID    string
	LetterRef  *string
	ExpiryDate *time.Time
	ActorID    string
}

type OfferResponseCommand struct {
	OfferID     string
	CandidateID string
	Response    ApplicantResponse
}

type ExpireOffersCommand struct {
	Now   time.Time
	Limit int
}

// ExpireSweepResult reports the offers transitioned to Expired by a sweep run.
type ExpireSweepResult struct {
	ExpiredOfferIDs []string
	SweptAt         time.Time
}

type CreateTerminationCommand struct {
	EmployeeID      string
	ContractID      string
	Initiator       TerminationInitiator
	Reason          string
	TerminationDate *time.Time
	ActorID         string
}

type TerminationListFilter = repositories.TerminationListFilter

type ProcessTerminationCommand struct {
	TerminationID   string
	Decision        TerminationStatus
	HRComments      string
	TerminationDate *time.Time
	ActorID         string
}

type UpdateClearanceItemCommand struct {
	ChecklistID string
	Department  string
	Status      ClearanceStatus
	Comments    string
	ActorID     string
}

type UpdateEquipmentReturnCommand struct {
	ChecklistID string
	EquipmentID string
	Name        string
	Returned    bool
	Condition   string
	ActorID     string
}

type UpdateCardReturnCommand struct {
	ChecklistID string
	Returned    bool
	ActorID     string
}

type FinalizeSettlementCommand struct {
	TerminationID string
	ActorID       string
}

type SignedUploadCommand struct {
	ActorID     string
	Kind        string
	OwnerRef    string
	FileName    string
	ContentType string
	SizeBytes   int64
}

type SignedDownloadCommand struct {
	ActorID     string
	DocumentRef string
}

type ArchiveDocumentCommand struct {
	DocumentRef string
}

// ArchivedDocument records where a retained copy of a document landed.
type ArchivedDocument struct {
	SourceRef  string
	ArchiveRef string
}

// SignedDocumentResponse carries a time-limited URL plus the stored handle.
type SignedDocumentResponse struct {
	DocumentRef string
	URL         string
	Method      string
	Headers     map[string]string
	ExpiresAt   time.Time
}

// AuditLogRecord defines the payload accepted by the audit writer service.
type AuditLogRecord struct {
	Actor                 string
	ActorType             string
	Action                string
	TargetRef             string
	Severity              string
	RequestID             string
	OccurredAt            time.Time
	Metadata              map[string]any
	Diff                  map[string]AuditLogDiff
	SensitiveMetadataKeys []string
	SensitiveDiffKeys     []string
	IPAddress             string
	UserAgent             string
}

// AuditLogDiff captures before/after values for tracked fields.
type AuditLogDiff struct {
	Before any
	After  any
}

type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	ActorType  string
	Action     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination Pagination
}

type CounterCommand struct {
	CounterID string
	Step      int64
}
