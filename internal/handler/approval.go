package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/approval"
	"github.com/josh-kwaku/opsledger/internal/auth"
	"github.com/josh-kwaku/opsledger/internal/domain"
)

type approvalService interface {
	CreateApprovalRequest(ctx context.Context, in approval.CreateRequest) (*domain.ApprovalRequest, error)
	GetApprovalRequest(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error)
	EditApprovalRequest(ctx context.Context, id uuid.UUID, actor string, in approval.EditRequest) (*domain.ApprovalRequest, error)
	SubmitForApproval(ctx context.Context, id uuid.UUID, actor string) (*domain.ApprovalRequest, error)
	Decide(ctx context.Context, id uuid.UUID, actor string, decision domain.Decision, comment string) (*domain.ApprovalRequest, error)
	Withdraw(ctx context.Context, id uuid.UUID, actor string) (*domain.ApprovalRequest, error)
}

type ApprovalHandler struct {
	approvals approvalService
}

func NewApprovalHandler(approvals approvalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

type createApprovalRequest struct {
	ID           *uuid.UUID      `json:"id"`
	Kind         string          `json:"kind"`
	SubjectRef   string          `json:"subject_ref"`
	Title        string          `json:"title"`
	Details      json.RawMessage `json:"details"`
	Approvers    []string        `json:"approvers"`
	SupersedesID *uuid.UUID      `json:"supersedes_id"`
}

func (r createApprovalRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Kind == "" {
		errs = append(errs, FieldError{Field: "kind", Message: "required"})
	} else if !domain.ApprovalKind(r.Kind).IsValid() {
		errs = append(errs, FieldError{Field: "kind", Message: "unknown approval kind"})
	}
	if strings.TrimSpace(r.SubjectRef) == "" {
		errs = append(errs, FieldError{Field: "subject_ref", Message: "required"})
	}
	if len(r.Details) > 0 && string(r.Details) != "null" && !isJSONObject(r.Details) {
		errs = append(errs, FieldError{Field: "details", Message: "must be an object"})
	}
	return errs
}

type editApprovalRequest struct {
	Title     *string         `json:"title"`
	Details   json.RawMessage `json:"details"`
	Approvers []string        `json:"approvers"`
}

func (r editApprovalRequest) Validate() []FieldError {
	if len(r.Details) > 0 && string(r.Details) != "null" && !isJSONObject(r.Details) {
		return []FieldError{{Field: "details", Message: "must be an object"}}
	}
	return nil
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

func (r decisionRequest) Validate() []FieldError {
	if !domain.Decision(r.Decision).IsValid() {
		return []FieldError{{Field: "decision", Message: "must be approve or reject"}}
	}
	return nil
}

func (h *ApprovalHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	created, err := h.approvals.CreateApprovalRequest(r.Context(), approval.CreateRequest{
		ID:           derefID(req.ID),
		Kind:         domain.ApprovalKind(req.Kind),
		SubjectRef:   req.SubjectRef,
		Title:        req.Title,
		Details:      nullToEmpty(req.Details),
		Approvers:    req.Approvers,
		SupersedesID: req.SupersedesID,
		Actor:        actor,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/approvals/%s", created.ID))
	RespondSuccess(w, http.StatusCreated, toApprovalDTO(created))
}

func (h *ApprovalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrApprovalNotFound, nil)
		return
	}
	req, err := h.approvals.GetApprovalRequest(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toApprovalDTO(req))
}

func (h *ApprovalHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndApproval(w, r)
	if !ok {
		return
	}

	var req editApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	updated, err := h.approvals.EditApprovalRequest(r.Context(), id, actor, approval.EditRequest{
		Title:     req.Title,
		Details:   nullToEmpty(req.Details),
		Approvers: req.Approvers,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toApprovalDTO(updated))
}

func (h *ApprovalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndApproval(w, r)
	if !ok {
		return
	}
	req, err := h.approvals.SubmitForApproval(r.Context(), id, actor)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toApprovalDTO(req))
}

func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndApproval(w, r)
	if !ok {
		return
	}

	var body decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := body.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	req, err := h.approvals.Decide(r.Context(), id, actor, domain.Decision(body.Decision), body.Comment)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toApprovalDTO(req))
}

func (h *ApprovalHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndApproval(w, r)
	if !ok {
		return
	}
	req, err := h.approvals.Withdraw(r.Context(), id, actor)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toApprovalDTO(req))
}

func actorAndApproval(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return "", uuid.Nil, false
	}
	id, ok := pathID(r)
	if !ok {
		RespondAppError(w, ErrApprovalNotFound, nil)
		return "", uuid.Nil, false
	}
	return actor, id, true
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]any
	return json.Unmarshal(raw, &obj) == nil
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if string(raw) == "null" {
		return nil
	}
	return raw
}
