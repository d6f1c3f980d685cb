package services

import (
	"context"
	"errors"

	domain "github.com/peoplehub/hr-api/internal/domain"
)

// LifecycleServiceDeps bundles the workflow services the façade composes.
// Audit is optional; when set, every mutation routed through the façade
// leaves an audit trail entry.
type LifecycleServiceDeps struct {
	Applications ApplicationService
	Interviews   InterviewService
	Offers       OfferService
	Terminations TerminationService
	Audit        AuditLogService
}

type lifecycleService struct {
	applications ApplicationService
	interviews   InterviewService
	offers       OfferService
	terminations TerminationService
	audit        AuditLogService
}

// NewLifecycleService wires the workflow services into the façade handlers use.
func NewLifecycleService(deps LifecycleServiceDeps) (LifecycleService, error) {
	if deps.Applications == nil {
		return nil, errors.New("lifecycle service: application service is required")
	}
	if deps.Interviews == nil {
		return nil, errors.New("lifecycle service: interview service is required")
	}
	if deps.Offers == nil {
		return nil, errors.New("lifecycle service: offer service is required")
	}
	if deps.Terminations == nil {
		return nil, errors.New("lifecycle service: termination service is required")
	}
	return &lifecycleService{
		applications: deps.Applications,
		interviews:   deps.Interviews,
		offers:       deps.Offers,
		terminations: deps.Terminations,
		audit:        deps.Audit,
	}, nil
}

func (s *lifecycleService) recordAudit(ctx context.Context, action, actor, targetRef string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditLogRecord{
		Actor:     actor,
		Action:    action,
		TargetRef: targetRef,
		Metadata:  metadata,
	})
}

func (s *lifecycleService) CreateApplication(ctx context.Context, cmd CreateApplicationCommand) (ApplicationRecord, error) {
	application, err := s.applications.Create(ctx, cmd)
	if err != nil {
		return application, err
	}
	s.recordAudit(ctx, "application.create", cmd.ActorID, "/applications/"+application.ID, map[string]any{
		"candidate_id":   application.CandidateID,
		"requisition_id": application.RequisitionID,
	})
	return application, nil
}

func (s *lifecycleService) AdvanceApplication(ctx context.Context, cmd ApplicationTransitionCommand) (ApplicationRecord, error) {
	application, err := s.applications.Transition(ctx, cmd)
	if err != nil {
		return application, err
	}
	s.recordAudit(ctx, "application.transition", cmd.ActorID, "/applications/"+application.ID, map[string]any{
		"stage":  string(application.Stage),
		"status": string(application.Status),
	})
	return application, nil
}

// ApplicationSummary composes the application, its interviews with the
// aggregated score, and the offer when one exists.
func (s *lifecycleService) ApplicationSummary(ctx context.Context, applicationID string) (ApplicationSummary, error) {
	application, err := s.applications.Get(ctx, applicationID)
	if err != nil {
		return ApplicationSummary{}, err
	}

	interviews, err := s.interviews.ListByApplication(ctx, applicationID)
	if err != nil {
		return ApplicationSummary{}, err
	}

	score, err := s.interviews.CalculateApplicationScore(ctx, applicationID)
	if err != nil {
		return ApplicationSummary{}, err
	}

	summary := ApplicationSummary{
		Application: application,
		Interviews:  interviews,
		Score:       score,
	}

	offer, err := s.offers.GetByApplication(ctx, applicationID)
	switch {
	case err == nil:
		summary.Offer = &offer
	case errors.Is(err, ErrOfferNotFound):
	default:
		return ApplicationSummary{}, err
	}

	return summary, nil
}

func (s *lifecycleService) ScheduleInterview(ctx context.Context, cmd ScheduleInterviewCommand) (Interview, error) {
	interview, err := s.interviews.Schedule(ctx, cmd)
	if err != nil {
		return interview, err
	}
	s.recordAudit(ctx, "interview.schedule", cmd.ActorID, "/interviews/"+interview.ID, map[string]any{
		"application_id": interview.ApplicationID,
		"stage":          string(interview.Stage),
	})
	return interview, nil
}

func (s *lifecycleService) SubmitFeedback(ctx context.Context, cmd SubmitFeedbackCommand) (Interview, error) {
	interview, err := s.interviews.SubmitFeedback(ctx, cmd)
	if err != nil {
		return interview, err
	}
	s.recordAudit(ctx, "interview.feedback", cmd.InterviewerID, "/interviews/"+interview.ID, nil)
	return interview, nil
}

func (s *lifecycleService) CreateOffer(ctx context.Context, cmd CreateOfferCommand) (Offer, error) {
	offer, err := s.offers.Create(ctx, cmd)
	if err != nil {
		return offer, err
	}
	s.recordAudit(ctx, "offer.create", cmd.ActorID, "/offers/"+offer.ID, map[string]any{
		"application_id": offer.ApplicationID,
	})
	return offer, nil
}

func (s *lifecycleService) ApproveOffer(ctx context.Context, cmd RecordApprovalCommand) (Offer, error) {
	offer, err := s.offers.RecordApproval(ctx, cmd)
	if err != nil {
		return offer, err
	}
	s.recordAudit(ctx, "offer.approval", cmd.ApproverID, "/offers/"+offer.ID, map[string]any{
		"decision":     string(cmd.Decision),
		"final_status": string(offer.Status),
	})
	return offer, nil
}

// RespondToOffer records the candidate decision and, on acceptance, drives the
// application through the state machine to Hired.
func (s *lifecycleService) RespondToOffer(ctx context.Context, cmd OfferResponseCommand) (Offer, error) {
	offer, err := s.offers.Respond(ctx, cmd)
	if err != nil {
		return offer, err
	}

	if offer.ApplicantResponse == domain.ApplicantResponseAccepted {
		_, err = s.applications.Transition(ctx, ApplicationTransitionCommand{
			ApplicationID: offer.ApplicationID,
			TargetStage:   domain.StageOffer,
			TargetStatus:  domain.ApplicationStatusHired,
			ActorID:       cmd.CandidateID,
			Note:          "offer accepted",
		})
		// An application already moved to Hired by a concurrent accept is fine.
		if err != nil && !errors.Is(err, ErrApplicationInvalidState) {
			return offer, err
		}
	}

	s.recordAudit(ctx, "offer.respond", cmd.CandidateID, "/offers/"+offer.ID, map[string]any{
		"response": string(offer.ApplicantResponse),
	})
	return offer, nil
}

func (s *lifecycleService) InitiateTermination(ctx context.Context, cmd CreateTerminationCommand) (TerminationRequest, error) {
	termination, err := s.terminations.Create(ctx, cmd)
	if err != nil {
		return termination, err
	}
	s.recordAudit(ctx, "termination.create", cmd.ActorID, "/terminations/"+termination.ID, map[string]any{
		"employee_id": termination.EmployeeID,
		"initiator":   string(termination.Initiator),
	})
	return termination, nil
}

func (s *lifecycleService) ProcessTermination(ctx context.Context, cmd ProcessTerminationCommand) (TerminationRequest, error) {
	termination, err := s.terminations.Process(ctx, cmd)
	if err != nil {
		return termination, err
	}
	s.recordAudit(ctx, "termination.process", cmd.ActorID, "/terminations/"+termination.ID, map[string]any{
		"status": string(termination.Status),
	})
	return termination, nil
}

func (s *lifecycleService) FinalizeSettlement(ctx context.Context, cmd FinalizeSettlementCommand) (TerminationRequest, error) {
	termination, err := s.terminations.FinalizeSettlement(ctx, cmd)
	if err != nil {
		return termination, err
	}
	s.recordAudit(ctx, "termination.settle", cmd.ActorID, "/terminations/"+termination.ID, nil)
	return termination, nil
}
