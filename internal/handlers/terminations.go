package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/peoplehub/hr-api/internal/domain"
	"github.com/peoplehub/hr-api/internal/platform/auth"
	"github.com/peoplehub/hr-api/internal/platform/httpx"
	"github.com/peoplehub/hr-api/internal/services"
)

const (
	defaultTerminationPageSize = 20
	maxTerminationPageSize     = 100
	maxTerminationBodySize     = 16 * 1024
)

type createTerminationRequest struct {
	EmployeeID      string `json:"employee_id"`
	ContractID      string `json:"contract_id"`
	Reason          string `json:"reason"`
	TerminationDate string `json:"termination_date"`
}

type processTerminationRequest struct {
	Decision        string `json:"decision"`
	HRComments      string `json:"hr_comments"`
	TerminationDate string `json:"termination_date"`
}

type clearanceItemRequest struct {
	Department string `json:"department"`
	Status     string `json:"status"`
	Comments   string `json:"comments"`
}

type equipmentReturnRequest struct {
	EquipmentID string `json:"equipment_id"`
	Name        string `json:"name"`
	Returned    bool   `json:"returned"`
	Condition   string `json:"condition"`
}

type cardReturnRequest struct {
	Returned bool `json:"returned"`
}

// TerminationHandlers exposes termination, clearance, and settlement endpoints.
type TerminationHandlers struct {
	authn        *auth.Authenticator
	lifecycle    services.LifecycleService
	terminations services.TerminationService
}

// NewTerminationHandlers constructs a new TerminationHandlers instance.
func NewTerminationHandlers(authn *auth.Authenticator, lifecycle services.LifecycleService, terminations services.TerminationService) *TerminationHandlers {
	return &TerminationHandlers{
		authn:        authn,
		lifecycle:    lifecycle,
		terminations: terminations,
	}
}

// Routes registers the /terminations endpoints. Employees may file their own
// resignation and follow its progress; everything else is staff only.
func (h *TerminationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleEmployee, auth.RoleHR, auth.RoleAdmin))
	}
	r.Post("/", h.createTermination)
	r.Get("/", h.listTerminations)
	r.Get("/{terminationID}", h.getTermination)
	r.Post("/{terminationID}:process", h.processTermination)
	r.Get("/{terminationID}/clearance", h.getClearanceByTermination)
	r.Post("/{terminationID}:settle", h.finalizeSettlement)
	r.Get("/clearances/{checklistID}", h.getClearance)
	r.Post("/clearances/{checklistID}/items", h.updateClearanceItem)
	r.Post("/clearances/{checklistID}/equipment", h.updateEquipmentReturn)
	r.Post("/clearances/{checklistID}:card", h.updateCardReturn)
}

func (h *TerminationHandlers) createTermination(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("termination_service_unavailable", "termination service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req createTerminationRequest
	body, err := readLimitedBody(r, maxTerminationBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	// Employees resign on their own behalf; HR may file against any employee.
	employeeID := strings.TrimSpace(identity.UID)
	initiator := domain.InitiatorEmployee
	if raw := strings.TrimSpace(req.EmployeeID); raw != "" && raw != employeeID {
		if !isStaff(identity) {
			httpx.WriteError(ctx, w, httpx.NewError("forbidden", "cannot file a termination for another employee", http.StatusForbidden))
			return
		}
		employeeID = raw
		initiator = domain.InitiatorHR
	}

	date, err := parseOptionalTimeField(req.TerminationDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "termination_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
		return
	}

	termination, err := h.lifecycle.InitiateTermination(ctx, services.CreateTerminationCommand{
		EmployeeID:      employeeID,
		ContractID:      strings.TrimSpace(req.ContractID),
		Initiator:       initiator,
		Reason:          req.Reason,
		TerminationDate: date,
		ActorID:         strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, terminationResponse{Termination: buildTerminationPayload(termination)})
}

func (h *TerminationHandlers) listTerminations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.terminations == nil {
		httpx.WriteError(ctx, w, httpx.NewError("termination_service_unavailable", "termination service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	query := r.URL.Query()
	employeeID := strings.TrimSpace(query.Get("employee_id"))
	if !isStaff(identity) {
		employeeID = strings.TrimSpace(identity.UID)
	}

	pageSize, err := parsePageSizeParam(query.Get("page_size"), defaultTerminationPageSize, maxTerminationPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
		return
	}

	page, err := h.terminations.List(ctx, services.TerminationListFilter{
		EmployeeID: employeeID,
		Status:     parseFilterValues(query["status"]),
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	items := make([]terminationPayload, 0, len(page.Items))
	for _, termination := range page.Items {
		items = append(items, buildTerminationPayload(termination))
	}

	writeJSONResponse(w, http.StatusOK, terminationListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *TerminationHandlers) getTermination(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.terminations == nil {
		httpx.WriteError(ctx, w, httpx.NewError("termination_service_unavailable", "termination service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, terminationID, ok := h.requireTerminationRequest(w, r)
	if !ok {
		return
	}

	termination, err := h.terminations.Get(ctx, terminationID)
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	if !canReadTermination(identity, termination) {
		httpx.WriteError(ctx, w, httpx.NewError("termination_not_found", "termination not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, terminationResponse{Termination: buildTerminationPayload(termination)})
}

func (h *TerminationHandlers) processTermination(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("termination_service_unavailable", "termination service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, terminationID, ok := h.requireTerminationRequest(w, r)
	if !ok {
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "processing requires an HR role", http.StatusForbidden))
		return
	}

	var req processTerminationRequest
	body, err := readLimitedBody(r, maxTerminationBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	decision, ok := parseTerminationDecision(req.Decision)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "decision must be approved or rejected", http.StatusBadRequest))
		return
	}

	date, err := parseOptionalTimeField(req.TerminationDate)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "termination_date must be a valid RFC3339 timestamp", http.StatusBadRequest))
		return
	}

	termination, err := h.lifecycle.ProcessTermination(ctx, services.ProcessTerminationCommand{
		TerminationID:   terminationID,
		Decision:        decision,
		HRComments:      req.HRComments,
		TerminationDate: date,
		ActorID:         strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, terminationResponse{Termination: buildTerminationPayload(termination)})
}

func (h *TerminationHandlers) getClearanceByTermination(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.terminations == nil {
		httpx.WriteError(ctx, w, httpx.NewError("termination_service_unavailable", "termination service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, terminationID, ok := h.requireTerminationRequest(w, r)
	if !ok {
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "clearance access requires an HR role", http.StatusForbidden))
		return
	}

	checklist, err := h.terminations.GetChecklistByTermination(ctx, terminationID)
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	complete, err := h.terminations.IsComplete(ctx, checklist.ID)
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, clearanceResponse{
		Checklist: buildClearancePayload(checklist),
		Complete:  complete,
	})
}

func (h *TerminationHandlers) finalizeSettlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lifecycle == nil {
		httpx.WriteError(ctx, w, httpx.NewError("termination_service_unavailable", "termination service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, terminationID, ok := h.requireTerminationRequest(w, r)
	if !ok {
		return
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "settlement requires an HR role", http.StatusForbidden))
		return
	}

	termination, err := h.lifecycle.FinalizeSettlement(ctx, services.FinalizeSettlementCommand{
		TerminationID: terminationID,
		ActorID:       strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, terminationResponse{Termination: buildTerminationPayload(termination)})
}

func (h *TerminationHandlers) getClearance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.terminations == nil {
		httpx.WriteError(ctx, w, httpx.NewError("termination_service_unavailable", "termination service unavailable", http.StatusServiceUnavailable))
		return
	}

	_, checklistID, ok := h.requireClearanceRequest(w, r)
	if !ok {
		return
	}

	checklist, err := h.terminations.GetChecklist(ctx, checklistID)
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	complete, err := h.terminations.IsComplete(ctx, checklist.ID)
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, clearanceResponse{
		Checklist: buildClearancePayload(checklist),
		Complete:  complete,
	})
}

func (h *TerminationHandlers) updateClearanceItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.terminations == nil {
		httpx.WriteError(ctx, w, httpx.NewError("termination_service_unavailable", "termination service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, checklistID, ok := h.requireClearanceRequest(w, r)
	if !ok {
		return
	}

	var req clearanceItemRequest
	body, err := readLimitedBody(r, maxTerminationBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	status, ok := parseClearanceStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid clearance status", http.StatusBadRequest))
		return
	}

	checklist, err := h.terminations.UpdateClearanceItem(ctx, services.UpdateClearanceItemCommand{
		ChecklistID: checklistID,
		Department:  strings.TrimSpace(req.Department),
		Status:      status,
		Comments:    req.Comments,
		ActorID:     strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, clearanceResponse{Checklist: buildClearancePayload(checklist)})
}

func (h *TerminationHandlers) updateEquipmentReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.terminations == nil {
		httpx.WriteError(ctx, w, httpx.NewError("termination_service_unavailable", "termination service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, checklistID, ok := h.requireClearanceRequest(w, r)
	if !ok {
		return
	}

	var req equipmentReturnRequest
	body, err := readLimitedBody(r, maxTerminationBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	checklist, err := h.terminations.UpdateEquipmentReturn(ctx, services.UpdateEquipmentReturnCommand{
		ChecklistID: checklistID,
		EquipmentID: strings.TrimSpace(req.EquipmentID),
		Name:        strings.TrimSpace(req.Name),
		Returned:    req.Returned,
		Condition:   strings.TrimSpace(req.Condition),
		ActorID:     strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, clearanceResponse{Checklist: buildClearancePayload(checklist)})
}

func (h *TerminationHandlers) updateCardReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.terminations == nil {
		httpx.WriteError(ctx, w, httpx.NewError("termination_service_unavailable", "termination service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, checklistID, ok := h.requireClearanceRequest(w, r)
	if !ok {
		return
	}

	var req cardReturnRequest
	body, err := readLimitedBody(r, maxTerminationBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	checklist, err := h.terminations.UpdateCardReturn(ctx, services.UpdateCardReturnCommand{
		ChecklistID: checklistID,
		Returned:    req.Returned,
		ActorID:     strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeTerminationError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, clearanceResponse{Checklist: buildClearancePayload(checklist)})
}

func (h *TerminationHandlers) requireTerminationRequest(w http.ResponseWriter, r *http.Request) (*auth.Identity, string, bool) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, "", false
	}
	terminationID := strings.TrimSpace(chi.URLParam(r, "terminationID"))
	if terminationID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "termination id is required", http.StatusBadRequest))
		return nil, "", false
	}
	return identity, terminationID, true
}

func (h *TerminationHandlers) requireClearanceRequest(w http.ResponseWriter, r *http.Request) (*auth.Identity, string, bool) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, "", false
	}
	if !isStaff(identity) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "clearance updates require an HR role", http.StatusForbidden))
		return nil, "", false
	}
	checklistID := strings.TrimSpace(chi.URLParam(r, "checklistID"))
	if checklistID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "checklist id is required", http.StatusBadRequest))
		return nil, "", false
	}
	return identity, checklistID, true
}

type terminationListResponse struct {
	Items         []terminationPayload `json:"items"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

type terminationResponse struct {
	Termination terminationPayload `json:"termination"`
}

type terminationPayload struct {
	ID                    string  `json:"id"`
	EmployeeID            string  `json:"employee_id"`
	ContractID            string  `json:"contract_id,omitempty"`
	Initiator             string  `json:"initiator"`
	Reason                string  `json:"reason,omitempty"`
	Status                string  `json:"status"`
	TerminationDate       string  `json:"termination_date,omitempty"`
	HRComments            string  `json:"hr_comments,omitempty"`
	ProcessedAt           string  `json:"processed_at,omitempty"`
	ProcessedBy           *string `json:"processed_by,omitempty"`
	ChecklistRef          *string `json:"checklist_ref,omitempty"`
	SettlementFinalizedAt string  `json:"settlement_finalized_at,omitempty"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at,omitempty"`
}

type clearanceResponse struct {
	Checklist clearancePayload `json:"checklist"`
	Complete  bool             `json:"complete,omitempty"`
}

type clearancePayload struct {
	ID            string                   `json:"id"`
	TerminationID string                   `json:"termination_id"`
	Items         []clearanceItemPayload   `json:"items"`
	Equipment     []equipmentReturnPayload `json:"equipment,omitempty"`
	CardReturned  bool                     `json:"card_returned"`
	CreatedAt     string                   `json:"created_at"`
	UpdatedAt     string                   `json:"updated_at,omitempty"`
}

type clearanceItemPayload struct {
	Department string `json:"department"`
	Status     string `json:"status"`
	Comments   string `json:"comments,omitempty"`
	UpdatedBy  string `json:"updated_by,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

type equipmentReturnPayload struct {
	EquipmentID string `json:"equipment_id"`
	Name        string `json:"name,omitempty"`
	Returned    bool   `json:"returned"`
	Condition   string `json:"condition,omitempty"`
}

func buildTerminationPayload(termination services.TerminationRequest) terminationPayload {
	return terminationPayload{
		ID:                    strings.TrimSpace(termination.ID),
		EmployeeID:            strings.TrimSpace(termination.EmployeeID),
		ContractID:            strings.TrimSpace(termination.ContractID),
		Initiator:             string(termination.Initiator),
		Reason:                termination.Reason,
		Status:                string(termination.Status),
		TerminationDate:       formatTime(pointerTime(termination.TerminationDate)),
		HRComments:            termination.HRComments,
		ProcessedAt:           formatTime(pointerTime(termination.ProcessedAt)),
		ProcessedBy:           cloneStringPointer(termination.ProcessedBy),
		ChecklistRef:          cloneStringPointer(termination.ChecklistRef),
		SettlementFinalizedAt: formatTime(pointerTime(termination.SettlementFinalizedAt)),
		CreatedAt:             formatTime(termination.CreatedAt),
		UpdatedAt:             formatTime(termination.UpdatedAt),
	}
}

func buildClearancePayload(checklist services.ClearanceChecklist) clearancePayload {
	items := make([]clearanceItemPayload, 0, len(checklist.Items))
	for _, item := range checklist.Items {
		items = append(items, clearanceItemPayload{
			Department: strings.TrimSpace(item.Department),
			Status:     string(item.Status),
			Comments:   item.Comments,
			UpdatedBy:  strings.TrimSpace(item.UpdatedBy),
			UpdatedAt:  formatTime(pointerTime(item.UpdatedAt)),
		})
	}

	equipment := make([]equipmentReturnPayload, 0, len(checklist.Equipment))
	for _, entry := range checklist.Equipment {
		equipment = append(equipment, equipmentReturnPayload{
			EquipmentID: strings.TrimSpace(entry.EquipmentID),
			Name:        strings.TrimSpace(entry.Name),
			Returned:    entry.Returned,
			Condition:   strings.TrimSpace(entry.Condition),
		})
	}
	if len(equipment) == 0 {
		equipment = nil
	}

	return clearancePayload{
		ID:            strings.TrimSpace(checklist.ID),
		TerminationID: strings.TrimSpace(checklist.TerminationID),
		Items:         items,
		Equipment:     equipment,
		CardReturned:  checklist.CardReturned,
		CreatedAt:     formatTime(checklist.CreatedAt),
		UpdatedAt:     formatTime(checklist.UpdatedAt),
	}
}

func canReadTermination(identity *auth.Identity, termination services.TerminationRequest) bool {
	if isStaff(identity) {
		return true
	}
	return identity != nil && strings.EqualFold(strings.TrimSpace(termination.EmployeeID), strings.TrimSpace(identity.UID))
}

func parseTerminationDecision(raw string) (domain.TerminationStatus, bool) {
	switch domain.TerminationStatus(strings.TrimSpace(strings.ToLower(raw))) {
	case domain.TerminationStatusApproved:
		return domain.TerminationStatusApproved, true
	case domain.TerminationStatusRejected:
		return domain.TerminationStatusRejected, true
	default:
		return "", false
	}
}

func parseClearanceStatus(raw string) (domain.ClearanceStatus, bool) {
	switch domain.ClearanceStatus(strings.TrimSpace(strings.ToLower(raw))) {
	case domain.ClearancePending:
		return domain.ClearancePending, true
	case domain.ClearanceApproved:
		return domain.ClearanceApproved, true
	case domain.ClearanceRejected:
		return domain.ClearanceRejected, true
	default:
		return "", false
	}
}

func writeTerminationError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrTerminationInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrTerminationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("termination_not_found", "termination not found", http.StatusNotFound))
	case errors.Is(err, services.ErrTerminationConflict):
		httpx.WriteError(ctx, w, httpx.NewError("termination_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrTerminationInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("termination_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrTerminationIncompleteClearance):
		httpx.WriteError(ctx, w, httpx.NewError("clearance_incomplete", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("termination_error", "failed to process termination request", http.StatusInternalServerError))
	}
}
