package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/platform/auth"
	"github.com/peoplehub/hr-api/internal/platform/httpx"
	"github.com/peoplehub/hr-api/internal/services"
)

const maxOfferBodySize = 16 * 1024

type createOfferRequest struct {
	ApplicationID string            `json:"application_id"`
	Terms         offerTermsPayload `json:"terms"`
	ExpiryDate    string            `json:"expiry_date"`
}

type offerApprovalRequest struct {
	Role     string `json:"role"`
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

type sendOfferRequest struct {
	LetterRef  *string `json:"letter_ref"`
	ExpiryDate string  `json:"expiry_date"`
}

type offerResponseRequest struct {
	Response string `json:"response"`
}

type withdrawOfferRequest struct {
	Reason string `json:"reason"`
}

// OfferHandlers exposes the offer approval workflow endpoints.
type OfferHandlers struct {
	authn     *auth.Authenticator
	lifecycle services.LifecycleService
	offers    services.OfferService
}

// NewOfferHandlers constructs a new OfferHandlers instance.
func NewOfferHandlers(authn *auth.Authenticator, lifecycle services.LifecycleService, offers services.OfferService) *OfferHandlers {
	return &OfferHandlers{
		authn:     authn,
		lifecycle: lifecycle,
		offers:    offers,
	}
}

// Routes registers the /offers endpoints. The respond action is the only one
// open to candidates; everything else requires staff roles.
func (h *OfferHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createOffer)
	r.Get("/", h.getOfferByApplication)
	r.Get("/{offerID}", h.getOffer)
	r.Post("/{offerID}:submit", h.submitOfferForApproval)
	r.Post("/{offerID}/approvals", h.recordOfferApproval)
	r.Post("/{offerID}:send", h.sendOffer)
	r.Post("/{offerID}:respond", h.respondToOffer)
	r.Post("/{offerID}:withdraw", h.withdrawOffer)
}

func (h *OfferHandlers) createOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireStaffIdentity(ctx, w)
	if !ok {
		return
	}

	var req createOfferRequest
	body, err := readLimitedBody(r, maxOfferBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	terms, err := buildOfferTerms(req.Terms)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	expiry, err := parseOptionalTimeField(req.ExpiryDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expiry_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
		return
	}

	offer, err := h.lifecycle.CreateOffer(ctx, services.CreateOfferCommand{
		ApplicationID: strings.TrimSpace(req.ApplicationID),
		Terms:         terms,
		ExpiryDate:    expiry,
		ActorID:       strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeOfferError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, offerResponse{Offer: buildOfferPayload(offer)})
}

func (h *OfferHandlers) getOfferByApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	applicationID := strings.TrimSpace(r.URL.Query().Get("application_id"))
	if applicationID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "application_id query parameter is required", http.StatusBadRequest))
		return
	}

	offer, err := h.offers.GetByApplication(ctx, applicationID)
	if err != nil {
		writeOfferError(ctx, w, err)
		return
	}

	if !canReadOffer(identity, offer) {
		httpx.WriteError(ctx, w, httpx.NewError("offer_not_found", "offer not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, offerResponse{Offer: buildOfferPayloadFor(identity, offer)})
}

func (h *OfferHandlers) getOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, offerID, ok := h.requireOfferRequest(w, r)
	if !ok {
		return
	}

	offer, err := h.offers.Get(ctx, offerID)
	if err != nil {
		writeOfferError(ctx, w, err)
		return
	}

	if !canReadOffer(identity, offer) {
		httpx.WriteError(ctx, w, httpx.NewError("offer_not_found", "offer not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, offerResponse{Offer: buildOfferPayloadFor(identity, offer)})
}

func (h *OfferHandlers) submitOfferForApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, offerID, ok := h.requireOfferRequest(w, r)
	if !ok {
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "submitting offers requires an HR role", http.StatusForbidden))
		return
	}

	offer, err := h.offers.SubmitForApproval(ctx, services.OfferActionCommand{
		OfferID: offerID,
		ActorID: strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeOfferError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, offerResponse{Offer: buildOfferPayload(offer)})
}

func (h *OfferHandlers) recordOfferApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, offerID, ok := h.requireOfferRequest(w, r)
	if !ok {
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "recording approvals requires an HR role", http.StatusForbidden))
		return
	}

	var req offerApprovalRequest
	body, err := readLimitedBody(r, maxOfferBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	decision, ok := parseApprovalDecision(req.Decision)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "decision must be approved or rejected", http.StatusBadRequest))
		return
	}

	offer, err := h.lifecycle.ApproveOffer(ctx, services.RecordApprovalCommand{
		OfferID:    offerID,
		ApproverID: strings.TrimSpace(identity.UID),
		Role:       strings.TrimSpace(req.Role),
		Decision:   decision,
		Comment:    strings.TrimSpace(req.Comment),
	})
	if err != nil {
		writeOfferError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, offerResponse{Offer: buildOfferPayload(offer)})
}

func (h *OfferHandlers) sendOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, offerID, ok := h.requireOfferRequest(w, r)
	if !ok {
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "sending offers requires an HR role", http.StatusForbidden))
		return
	}

	var req sendOfferRequest
	body, err := readLimitedBody(r, maxOfferBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	expiry, err := parseOptionalTimeField(req.ExpiryDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expiry_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
		return
	}

	offer, err := h.offers.Send(ctx, services.SendOfferCommand{
		OfferID:    offerID,
		LetterRef:  cloneStringPointer(req.LetterRef),
		ExpiryDate: expiry,
		ActorID:    strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeOfferError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, offerResponse{Offer: buildOfferPayload(offer)})
}

func (h *OfferHandlers) respondToOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, offerID, ok := h.requireOfferRequest(w, r)
	if !ok {
		return
	}

	var req offerResponseRequest
	body, err := readLimitedBody(r, maxOfferBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	response, ok := parseApplicantResponse(req.Response)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "response must be accepted or rejected", http.StatusBadRequest))
		return
	}

	offer, err := h.lifecycle.RespondToOffer(ctx, services.OfferResponseCommand{
		OfferID:     offerID,
		CandidateID: strings.TrimSpace(identity.UID),
		Response:    response,
	})
	if err != nil {
		writeOfferError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, offerResponse{Offer: buildOfferPayloadFor(identity, offer)})
}

func (h *OfferHandlers) withdrawOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, offerID, ok := h.requireOfferRequest(w, r)
	if !ok {
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "withdrawing offers requires an HR role", http.StatusForbidden))
		return
	}

	var req withdrawOfferRequest
	body, err := readLimitedBody(r, maxOfferBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	offer, err := h.offers.Withdraw(ctx, services.OfferActionCommand{
		OfferID: offerID,
		ActorID: strings.TrimSpace(identity.UID),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOfferError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, offerResponse{Offer: buildOfferPayload(offer)})
}

func (h *OfferHandlers) requireOfferRequest(w http.ResponseWriter, r *http.Request) (*auth.Identity, string, bool) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, "", false
	}
	offerID := strings.TrimSpace(chi.URLParam(r, "offerID"))
	if offerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "offer id is required", http.StatusBadRequest))
		return nil, "", false
	}
	return identity, offerID, true
}

func requireStaffIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "this action requires an HR role", http.StatusForbidden))
		return nil, false
	}
	return identity, true
}

type offerResponse struct {
	Offer offerPayload `json:"offer"`
}

type offerTermsPayload struct {
	Position     string `json:"position"`
	SalaryAmount int64  `json:"salary_amount"`
	Currency     string `json:"currency"`
	StartDate    string `json:"start_date,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type offerApprovalPayload struct {
	ApproverID string `json:"approver_id"`
	Role       string `json:"role,omitempty"`
	Decision   string `json:"decision"`
	Comment    string `json:"comment,omitempty"`
	DecidedAt  string `json:"decided_at,omitempty"`
}

type offerPayload struct {
	ID                     string                 `json:"id"`
	ApplicationID          string                 `json:"application_id"`
	CandidateID            string                 `json:"candidate_id"`
	RequisitionID          string                 `json:"requisition_id,omitempty"`
	Status                 string                 `json:"status"`
	ApplicantResponse      string                 `json:"applicant_response"`
	Terms                  offerTermsPayload      `json:"terms"`
	Approvers              []offerApprovalPayload `json:"approvers,omitempty"`
	LetterRef              *string                `json:"letter_ref,omitempty"`
	ExpiryDate             string                 `json:"expiry_date,omitempty"`
	SentAt                 string                 `json:"sent_at,omitempty"`
	RespondedAt            string                 `json:"responded_at,omitempty"`
	CandidateSignedAt      string                 `json:"candidate_signed_at,omitempty"`
	OnboardingTriggered    bool                   `json:"onboarding_triggered,omitempty"`
	OnboardingChecklistRef *string                `json:"onboarding_checklist_ref,omitempty"`
	CreatedAt              string                 `json:"created_at"`
	UpdatedAt              string                 `json:"updated_at,omitempty"`
}

func buildOfferPayload(offer services.Offer) offerPayload {
	approvers := make([]offerApprovalPayload, 0, len(offer.Approvers))
	for _, approval := range offer.Approvers {
		approvers = append(approvers, offerApprovalPayload{
			ApproverID: strings.TrimSpace(approval.ApproverID),
			Role:       strings.TrimSpace(approval.Role),
			Decision:   string(approval.Decision),
			Comment:    approval.Comment,
			DecidedAt:  formatTime(approval.DecidedAt),
		})
	}
	if len(approvers) == 0 {
		approvers = nil
	}

	terms := offerTermsPayload{
		Position:     strings.TrimSpace(offer.Terms.Position),
		SalaryAmount: offer.Terms.SalaryAmount,
		Currency:     strings.ToUpper(strings.TrimSpace(offer.Terms.Currency)),
		StartDate:    formatTime(pointerTime(offer.Terms.StartDate)),
		Notes:        offer.Terms.Notes,
	}

	return offerPayload{
		ID:                     strings.TrimSpace(offer.ID),
		ApplicationID:          strings.TrimSpace(offer.ApplicationID),
		CandidateID:            strings.TrimSpace(offer.CandidateID),
		RequisitionID:          strings.TrimSpace(offer.RequisitionID),
		Status:                 string(offer.Status),
		ApplicantResponse:      string(offer.ApplicantResponse),
		Terms:                  terms,
		Approvers:              approvers,
		LetterRef:              cloneStringPointer(offer.LetterRef),
		ExpiryDate:             formatTime(pointerTime(offer.ExpiryDate)),
		SentAt:                 formatTime(pointerTime(offer.SentAt)),
		RespondedAt:            formatTime(pointerTime(offer.RespondedAt)),
		CandidateSignedAt:      formatTime(pointerTime(offer.CandidateSignedAt)),
		OnboardingTriggered:    offer.OnboardingTriggered,
		OnboardingChecklistRef: cloneStringPointer(offer.OnboardingChecklistRef),
		CreatedAt:              formatTime(offer.CreatedAt),
		UpdatedAt:              formatTime(offer.UpdatedAt),
	}
}

// buildOfferPayloadFor hides the internal approval ledger from candidates.
func buildOfferPayloadFor(identity *auth.Identity, offer services.Offer) offerPayload {
	payload := buildOfferPayload(offer)
	if !isStaff(identity) {
		payload.Approvers = nil
	}
	return payload
}

func canReadOffer(identity *auth.Identity, offer services.Offer) bool {
	if isStaff(identity) {
		return true
	}
	if identity == nil {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(offer.CandidateID), strings.TrimSpace(identity.UID)) {
		return false
	}
	// Candidates only learn about an offer once it has actually gone out.
	switch offer.Status {
	case domain.OfferStatusSent, domain.OfferStatusAccepted, domain.OfferStatusRejected, domain.OfferStatusExpired:
		return true
	default:
		return false
	}
}

func buildOfferTerms(payload offerTermsPayload) (services.OfferTerms, error) {
	start, err := parseOptionalTimeField(payload.StartDate)
	if err != nil {
		return services.OfferTerms{}, errors.New("terms.start_date must be a valid RFC3339 timestamp")
	}
	return services.OfferTerms{
		Position:     strings.TrimSpace(payload.Position),
		SalaryAmount: payload.SalaryAmount,
		Currency:     strings.ToUpper(strings.TrimSpace(payload.Currency)),
		StartDate:    start,
		Notes:        payload.Notes,
	}, nil
}

func parseApprovalDecision(raw string) (domain.ApprovalDecision, bool) {
	switch domain.ApprovalDecision(strings.TrimSpace(strings.ToLower(raw))) {
	case domain.ApprovalApproved:
		return domain.ApprovalApproved, true
	case domain.ApprovalRejected:
		return domain.ApprovalRejected, true
	default:
		return "", false
	}
}

func parseApplicantResponse(raw string) (domain.ApplicantResponse, bool) {
	switch domain.ApplicantResponse(strings.TrimSpace(strings.ToLower(raw))) {
	case domain.ApplicantResponseAccepted:
		return domain.ApplicantResponseAccepted, true
	case domain.ApplicantResponseRejected:
		return domain.ApplicantResponseRejected, true
	default:
		return "", false
	}
}

func parseOptionalTimeField(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	ts, err := parseTimeParam(trimmed)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func writeOfferError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOfferInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOfferNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("offer_not_found", "offer not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOfferConflict):
		httpx.WriteError(ctx, w, httpx.NewError("offer_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOfferInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("offer_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOfferRuleViolation):
		httpx.WriteError(ctx, w, httpx.NewError("offer_rule_violation", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrApplicationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("application_not_found", "application not found", http.StatusNotFound))
	case errors.Is(err, services.ErrApplicationInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("application_invalid_state", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("offer_error", "failed to process offer request", http.StatusInternalServerError))
	}
}
