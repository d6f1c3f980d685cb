package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ApplicationStage marks the position of an application within the hiring pipeline.
type ApplicationStage string

const (
	// StageScreening is the initial CV/phone screening stage.
	StageScreening ApplicationStage = "screening"
	// StageDepartmentInterview covers interviews run by the hiring department.
	StageDepartmentInterview ApplicationStage = "department_interview"
	// StageHRInterview covers the HR-led interview round.
	StageHRInterview ApplicationStage = "hr_interview"
	// StageOffer indicates the application has reached offer preparation.
	StageOffer ApplicationStage = "offer"
)

// ApplicationStatus is the lifecycle marker orthogonal to the pipeline stage.
type ApplicationStatus string

const (
	// ApplicationStatusSubmitted indicates the candidate submitted and awaits triage.
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
	// ApplicationStatusInProcess indicates the application is actively moving through stages.
	ApplicationStatusInProcess ApplicationStatus = "in_process"
	// ApplicationStatusOffer indicates an offer is being prepared or negotiated.
	ApplicationStatusOffer ApplicationStatus = "offer"
	// ApplicationStatusHired is terminal; only reachable after an accepted offer.
	ApplicationStatusHired ApplicationStatus = "hired"
	// ApplicationStatusRejected is terminal and reachable from any non-terminal state.
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// StageTemplate describes the ordered stage list configured per requisition process.
type StageTemplate struct {
	Stages   []ApplicationStage
	Terminal map[ApplicationStage]bool
}

// RecordAudit records the actors responsible for creating/updating a document.
type RecordAudit struct {
	CreatedBy *string
	UpdatedBy *string
}

// ApplicationRecord captures a candidate's application against one requisition.
type ApplicationRecord struct {
	ID             string
	CandidateID    string
	RequisitionID  string
	Stage          ApplicationStage
	Status         ApplicationStatus
	ResumeRef      *string
	ReferralSource *string
	Locale         string
	Metadata       map[string]any
	Audit          RecordAudit
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StatusHistoryEntry is an immutable snapshot appended on every stage/status transition.
type StatusHistoryEntry struct {
	ID            string
	ApplicationID string
	FromStage     ApplicationStage
	ToStage       ApplicationStage
	FromStatus    ApplicationStatus
	ToStatus      ApplicationStatus
	ActorID       string
	Note          string
	CreatedAt     time.Time
}

// InterviewStatus enumerates scheduling outcomes for an interview.
type InterviewStatus string

const (
	// InterviewStatusPlanned indicates the interview is scheduled but not held yet.
	InterviewStatusPlanned InterviewStatus = "planned"
	// InterviewStatusCompleted indicates the interview took place.
	InterviewStatusCompleted InterviewStatus = "completed"
	// InterviewStatusCancelled indicates the interview was called off.
	InterviewStatusCancelled InterviewStatus = "cancelled"
	// InterviewStatusNoShow indicates the candidate did not attend.
	InterviewStatusNoShow InterviewStatus = "no_show"
)

// PanelFeedback stores one reviewer's scored assessment for an interview.
type PanelFeedback struct {
	InterviewerID string
	OverallScore  int
	Comments      string
	SubmittedAt   time.Time
}

// Interview belongs to one application and carries an ordered reviewer panel.
type Interview struct {
	ID             string
	ApplicationID  string
	Stage          ApplicationStage
	Panel          []string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	Location       *string
	Status         InterviewStatus
	Feedback       []PanelFeedback
	Audit          RecordAudit
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InterviewAggregate reports the arithmetic-mean score over submitted feedback.
type InterviewAggregate struct {
	AverageScore  float64
	ReviewerCount int
}

// OfferStatus drives the internal offer approval workflow.
type OfferStatus string

const (
	// OfferStatusDraft is the initial state created by HR.
	OfferStatusDraft OfferStatus = "draft"
	// OfferStatusPendingApproval indicates the offer awaits approver sign-off.
	OfferStatusPendingApproval OfferStatus = "pending_approval"
	// OfferStatusApproved indicates every recorded approver signed off.
	OfferStatusApproved OfferStatus = "approved"
	// OfferStatusSent indicates the offer letter went out to the candidate.
	OfferStatusSent OfferStatus = "sent"
	// OfferStatusAccepted is terminal; the candidate accepted.
	OfferStatusAccepted OfferStatus = "accepted"
	// OfferStatusRejected is terminal; an approver or the candidate rejected.
	OfferStatusRejected OfferStatus = "rejected"
	// OfferStatusWithdrawn is terminal; HR withdrew the offer.
	OfferStatusWithdrawn OfferStatus = "withdrawn"
	// OfferStatusExpired is terminal; the deadline passed without a response.
	OfferStatusExpired OfferStatus = "expired"
)

// ApplicantResponse is the candidate-side decision, independent of internal approval.
type ApplicantResponse string

const (
	// ApplicantResponsePending indicates no candidate decision yet.
	ApplicantResponsePending ApplicantResponse = "pending"
	// ApplicantResponseAccepted indicates the candidate accepted the offer.
	ApplicantResponseAccepted ApplicantResponse = "accepted"
	// ApplicantResponseRejected indicates the candidate declined the offer.
	ApplicantResponseRejected ApplicantResponse = "rejected"
)

// ApprovalDecision enumerates ledger decisions recorded by approvers.
type ApprovalDecision string

const (
	// ApprovalPending indicates the approver has not decided yet.
	ApprovalPending ApprovalDecision = "pending"
	// ApprovalApproved records a positive sign-off.
	ApprovalApproved ApprovalDecision = "approved"
	// ApprovalRejected records a veto; a single rejection rejects the offer.
	ApprovalRejected ApprovalDecision = "rejected"
)

// OfferApproval is one entry in an offer's approval ledger.
type OfferApproval struct {
	ApproverID string
	Role       string
	Decision   ApprovalDecision
	Comment    string
	DecidedAt  time.Time
}

// OfferTerms captures the compensation package presented to the candidate.
type OfferTerms struct {
	Position     string
	SalaryAmount int64
	Currency     string
	StartDate    *time.Time
	Notes        string
}

// Offer belongs to one application/candidate/requisition triple.
type Offer struct {
	ID                     string
	ApplicationID          string
	CandidateID            string
	RequisitionID          string
	Status                 OfferStatus
	ApplicantResponse      ApplicantResponse
	Terms                  OfferTerms
	Approvers              []OfferApproval
	LetterRef              *string
	ExpiryDate             *time.Time
	SentAt                 *time.Time
	RespondedAt            *time.Time
	CandidateSignedAt      *time.Time
	OnboardingTriggered    bool
	OnboardingChecklistRef *string
	Audit                  RecordAudit
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// TerminationStatus is the HR decision state on a termination request.
type TerminationStatus string

const (
	// TerminationStatusPending awaits HR processing.
	TerminationStatusPending TerminationStatus = "pending"
	// TerminationStatusApproved is terminal and triggers clearance creation.
	TerminationStatusApproved TerminationStatus = "approved"
	// TerminationStatusRejected is terminal; no clearance is created.
	TerminationStatusRejected TerminationStatus = "rejected"
)

// TerminationInitiator distinguishes resignations from HR-driven terminations.
type TerminationInitiator string

const (
	// InitiatorEmployee marks a resignation.
	InitiatorEmployee TerminationInitiator = "employee"
	// InitiatorHR marks an HR-driven termination.
	InitiatorHR TerminationInitiator = "hr"
)

// TerminationRequest records a resignation or termination and its HR decision.
type TerminationRequest struct {
	ID                    string
	EmployeeID            string
	ContractID            string
	Initiator             TerminationInitiator
	Reason                string
	Status                TerminationStatus
	TerminationDate       *time.Time
	HRComments            string
	ProcessedAt           *time.Time
	ProcessedBy           *string
	ChecklistRef          *string
	SettlementFinalizedAt *time.Time
	Audit                 RecordAudit
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ClearanceStatus enumerates per-department clearance item decisions.
type ClearanceStatus string

const (
	// ClearancePending awaits the department owner's decision.
	ClearancePending ClearanceStatus = "pending"
	// ClearanceApproved marks the department as cleared.
	ClearanceApproved ClearanceStatus = "approved"
	// ClearanceRejected marks an outstanding obligation blocking settlement.
	ClearanceRejected ClearanceStatus = "rejected"
)

// ClearanceItem is one department's entry on the clearance checklist.
type ClearanceItem struct {
	Department string
	Status     ClearanceStatus
	Comments   string
	UpdatedBy  string
	UpdatedAt  *time.Time
}

// EquipmentReturn tracks a single company asset to be handed back.
type EquipmentReturn struct {
	EquipmentID string
	Name        string
	Returned    bool
	Condition   string
}

// ClearanceChecklist is the 1:1 companion of an approved termination request.
type ClearanceChecklist struct {
	ID            string
	TerminationID string
	Items         []ClearanceItem
	Equipment     []EquipmentReturn
	CardReturned  bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// AuditLogEntry stores normalized audit information for admin use.
type AuditLogEntry struct {
	ID        string
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Metadata  map[string]any
	Diff      map[string]any
	IPHash    string
	UserAgent string
	Severity  string
	RequestID string
	CreatedAt time.Time
}
