package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/opsledger/internal/auth"
	"github.com/josh-kwaku/opsledger/internal/domain"
	"github.com/josh-kwaku/opsledger/internal/logging"
	"github.com/josh-kwaku/opsledger/internal/service"
)

type allocationService interface {
	CreateAllocation(ctx context.Context, req service.CreateAllocationRequest) (*domain.Allocation, error)
	RecordPosting(ctx context.Context, req service.RecordPostingRequest) (*domain.Posting, error)
	VoidPosting(ctx context.Context, postingID uuid.UUID, actor, reason string) (*domain.Posting, error)
	SupersedeAllocation(ctx context.Context, req service.SupersedeRequest) (*domain.Allocation, *domain.Allocation, error)
	GetAllocationSummary(ctx context.Context, id uuid.UUID) (*domain.Summary, error)
	GetPosting(ctx context.Context, id uuid.UUID) (*domain.Posting, error)
	Export(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error)
	AuditTrail(ctx context.Context, allocationID uuid.UUID) ([]domain.AuditEvent, error)
}

type AllocationHandler struct {
	allocations allocationService
}

func NewAllocationHandler(allocations allocationService) *AllocationHandler {
	return &AllocationHandler{allocations: allocations}
}

type createAllocationRequest struct {
	ID                 *uuid.UUID `json:"id"`
	Kind               string     `json:"kind"`
	TotalAmount        string     `json:"total_amount"`
	Currency           string     `json:"currency"`
	OwnerRef           string     `json:"owner_ref"`
	Description        string     `json:"description"`
	RequiredApprovalID *uuid.UUID `json:"required_approval_id"`
}

func (r createAllocationRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Kind == "" {
		errs = append(errs, FieldError{Field: "kind", Message: "required"})
	} else if !domain.AllocationKind(r.Kind).IsValid() {
		errs = append(errs, FieldError{Field: "kind", Message: "must be budget, invoice, or cash_advance"})
	}

	errs = append(errs, validateCurrency("currency", r.Currency)...)
	errs = append(errs, validateDecimal("total_amount", r.TotalAmount)...)

	if strings.TrimSpace(r.OwnerRef) == "" {
		errs = append(errs, FieldError{Field: "owner_ref", Message: "required"})
	}

	return errs
}

type recordPostingRequest struct {
	ID         *uuid.UUID `json:"id"`
	Amount     string     `json:"amount"`
	Currency   string     `json:"currency"`
	OccurredAt *time.Time `json:"occurred_at"`
	Reference  string     `json:"reference"`
}

func (r recordPostingRequest) Validate() []FieldError {
	var errs []FieldError
	errs = append(errs, validateCurrency("currency", r.Currency)...)
	errs = append(errs, validateDecimal("amount", r.Amount)...)
	return errs
}

type supersedeRequest struct {
	ReplacementID      *uuid.UUID `json:"replacement_id"`
	Kind               string     `json:"kind"`
	TotalAmount        string     `json:"total_amount"`
	Currency           string     `json:"currency"`
	OwnerRef           string     `json:"owner_ref"`
	Description        string     `json:"description"`
	RequiredApprovalID *uuid.UUID `json:"required_approval_id"`
}

func (r supersedeRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Kind != "" && !domain.AllocationKind(r.Kind).IsValid() {
		errs = append(errs, FieldError{Field: "kind", Message: "must be budget, invoice, or cash_advance"})
	}
	if r.Currency != "" {
		errs = append(errs, validateCurrency("currency", r.Currency)...)
	}
	errs = append(errs, validateDecimal("total_amount", r.TotalAmount)...)
	return errs
}

type voidPostingRequest struct {
	Reason string `json:"reason"`
}

func (r voidPostingRequest) Validate() []FieldError {
	if strings.TrimSpace(r.Reason) == "" {
		return []FieldError{{Field: "reason", Message: "required"}}
	}
	return nil
}

type postingResultDTO struct {
	Posting postingDTO  `json:"posting"`
	Summary *summaryDTO `json:"summary,omitempty"`
}

type supersedeResultDTO struct {
	Superseded  allocationDTO `json:"superseded"`
	Replacement allocationDTO `json:"replacement"`
}

func (h *AllocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	total, err := domain.ParseAmount(req.TotalAmount, domain.Currency(req.Currency))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	a, err := h.allocations.CreateAllocation(r.Context(), service.CreateAllocationRequest{
		ID:                 derefID(req.ID),
		Kind:               domain.AllocationKind(req.Kind),
		TotalAmount:        total,
		Currency:           domain.Currency(req.Currency),
		OwnerRef:           req.OwnerRef,
		Description:        req.Description,
		RequiredApprovalID: req.RequiredApprovalID,
		Actor:              actor,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/allocations/%s", a.ID))
	RespondSuccess(w, http.StatusCreated, toAllocationDTO(a))
}

func (h *AllocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrAllocationNotFound, nil)
		return
	}

	sum, err := h.allocations.GetAllocationSummary(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toSummaryDTO(sum))
}

func (h *AllocationHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrAllocationNotFound, nil)
		return
	}

	snap, err := h.allocations.Export(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="allocation-%s.json"`, id))
	RespondSuccess(w, http.StatusOK, toExportDTO(snap))
}

func (h *AllocationHandler) Audit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrAllocationNotFound, nil)
		return
	}

	events, err := h.allocations.AuditTrail(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toAuditEventDTOs(events))
}

func (h *AllocationHandler) RecordPosting(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}
	allocID, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrAllocationNotFound, nil)
		return
	}

	var req recordPostingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, err := domain.ParseAmount(req.Amount, domain.Currency(req.Currency))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	in := service.RecordPostingRequest{
		ID:           derefID(req.ID),
		AllocationID: allocID,
		Amount:       amount,
		Currency:     domain.Currency(req.Currency),
		Reference:    req.Reference,
		Actor:        actor,
	}
	if req.OccurredAt != nil {
		in.OccurredAt = req.OccurredAt.UTC()
	}

	p, err := h.allocations.RecordPosting(r.Context(), in)
	if err != nil {
		h.respondWithSummary(w, r, allocID, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/allocations/%s", allocID))
	RespondSuccess(w, http.StatusCreated, postingResultDTO{
		Posting: toPostingDTO(p),
		Summary: h.summaryFor(r.Context(), allocID),
	})
}

func (h *AllocationHandler) VoidPosting(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}
	postingID, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrPostingNotFound, nil)
		return
	}

	var req voidPostingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	p, err := h.allocations.VoidPosting(r.Context(), postingID, actor, req.Reason)
	if err != nil {
		if existing, lookupErr := h.allocations.GetPosting(r.Context(), postingID); lookupErr == nil {
			h.respondWithSummary(w, r, existing.AllocationID, err)
			return
		}
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, postingResultDTO{
		Posting: toPostingDTO(p),
		Summary: h.summaryFor(r.Context(), p.AllocationID),
	})
}

func (h *AllocationHandler) Supersede(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}
	allocID, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrAllocationNotFound, nil)
		return
	}

	var req supersedeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	total, err := parseSupersedeTotal(req.TotalAmount, req.Currency)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	old, replacement, err := h.allocations.SupersedeAllocation(r.Context(), service.SupersedeRequest{
		AllocationID:       allocID,
		ReplacementID:      derefID(req.ReplacementID),
		Kind:               domain.AllocationKind(req.Kind),
		TotalAmount:        total,
		Currency:           domain.Currency(req.Currency),
		OwnerRef:           req.OwnerRef,
		Description:        req.Description,
		RequiredApprovalID: req.RequiredApprovalID,
		Actor:              actor,
	})
	if err != nil {
		h.respondWithSummary(w, r, allocID, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/allocations/%s", replacement.ID))
	RespondSuccess(w, http.StatusCreated, supersedeResultDTO{
		Superseded:  toAllocationDTO(old),
		Replacement: toAllocationDTO(replacement),
	})
}

// respondWithSummary maps err and attaches the allocation's current summary
// when the allocation exists.
func (h *AllocationHandler) respondWithSummary(w http.ResponseWriter, r *http.Request, allocID uuid.UUID, err error) {
	if errors.Is(err, domain.ErrAllocationNotFound) {
		RespondDomainError(w, err)
		return
	}
	if sum := h.summaryFor(r.Context(), allocID); sum != nil {
		RespondDomainErrorWithDetails(w, err, map[string]any{"summary": sum})
		return
	}
	RespondDomainError(w, err)
}

func (h *AllocationHandler) summaryFor(ctx context.Context, allocID uuid.UUID) *summaryDTO {
	sum, err := h.allocations.GetAllocationSummary(ctx, allocID)
	if err != nil {
		logging.FromContext(ctx).Warn("summary lookup failed", "allocation_id", allocID, "error", err)
		return nil
	}
	dto := toSummaryDTO(sum)
	return &dto
}

// parseSupersedeTotal defers precision checks to the service when the
// replacement inherits the old allocation's currency.
func parseSupersedeTotal(s, currency string) (decimal.Decimal, error) {
	if currency == "" {
		return domain.ParseDecimal(s)
	}
	return domain.ParseAmount(s, domain.Currency(currency))
}

func validateCurrency(field, c string) []FieldError {
	if c == "" {
		return []FieldError{{Field: field, Message: "required"}}
	}
	if !domain.Currency(c).IsValid() {
		return []FieldError{{Field: field, Message: "must be one of " + supportedCurrencyList()}}
	}
	return nil
}

func supportedCurrencyList() string {
	codes := make([]string, 0, len(domain.SupportedCurrencies()))
	for _, c := range domain.SupportedCurrencies() {
		codes = append(codes, string(c))
	}
	return strings.Join(codes, ", ")
}

// validateDecimal only checks the syntax; sign and precision are domain rules.
func validateDecimal(field, s string) []FieldError {
	if strings.TrimSpace(s) == "" {
		return []FieldError{{Field: field, Message: "required"}}
	}
	if _, err := domain.ParseDecimal(s); err != nil {
		return []FieldError{{Field: field, Message: "must be a decimal string"}}
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}

func derefID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
