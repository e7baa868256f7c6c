package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

// Amounts are rendered as decimal strings with the currency's minor digits.

type allocationDTO struct {
	ID                 uuid.UUID  `json:"id"`
	Kind               string     `json:"kind"`
	TotalAmount        string     `json:"total_amount"`
	Currency           string     `json:"currency"`
	OwnerRef           string     `json:"owner_ref"`
	Description        string     `json:"description,omitempty"`
	RequiredApprovalID *uuid.UUID `json:"required_approval_id,omitempty"`
	SupersedesID       *uuid.UUID `json:"supersedes_id,omitempty"`
	SupersededByID     *uuid.UUID `json:"superseded_by_id,omitempty"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	SupersededAt       *time.Time `json:"superseded_at,omitempty"`
}

func toAllocationDTO(a *domain.Allocation) allocationDTO {
	return allocationDTO{
		ID:                 a.ID,
		Kind:               string(a.Kind),
		TotalAmount:        domain.FormatAmount(a.TotalAmount, a.Currency),
		Currency:           string(a.Currency),
		OwnerRef:           a.OwnerRef,
		Description:        a.Description,
		RequiredApprovalID: a.RequiredApprovalID,
		SupersedesID:       a.SupersedesID,
		SupersededByID:     a.SupersededByID,
		CreatedBy:          a.CreatedBy,
		CreatedAt:          a.CreatedAt,
		SupersededAt:       a.SupersededAt,
	}
}

type postingDTO struct {
	ID           uuid.UUID  `json:"id"`
	AllocationID uuid.UUID  `json:"allocation_id"`
	Amount       string     `json:"amount"`
	Currency     string     `json:"currency"`
	OccurredAt   time.Time  `json:"occurred_at"`
	RecordedAt   time.Time  `json:"recorded_at"`
	Reference    string     `json:"reference,omitempty"`
	RecordedBy   string     `json:"recorded_by"`
	Voided       bool       `json:"voided"`
	VoidedAt     *time.Time `json:"voided_at,omitempty"`
	VoidedBy     *string    `json:"voided_by,omitempty"`
	VoidReason   *string    `json:"void_reason,omitempty"`
}

func toPostingDTO(p *domain.Posting) postingDTO {
	return postingDTO{
		ID:           p.ID,
		AllocationID: p.AllocationID,
		Amount:       domain.FormatAmount(p.Amount, p.Currency),
		Currency:     string(p.Currency),
		OccurredAt:   p.OccurredAt,
		RecordedAt:   p.RecordedAt,
		Reference:    p.Reference,
		RecordedBy:   p.RecordedBy,
		Voided:       p.Voided,
		VoidedAt:     p.VoidedAt,
		VoidedBy:     p.VoidedBy,
		VoidReason:   p.VoidReason,
	}
}

func toPostingDTOs(postings []domain.Posting) []postingDTO {
	out := make([]postingDTO, 0, len(postings))
	for i := range postings {
		out = append(out, toPostingDTO(&postings[i]))
	}
	return out
}

type summaryDTO struct {
	Allocation     allocationDTO `json:"allocation"`
	Consumed       string        `json:"consumed"`
	Remaining      string        `json:"remaining"`
	UtilizationPct int           `json:"utilization_pct"`
	Status         string        `json:"status"`
	ApprovalState  *string       `json:"approval_state,omitempty"`
	Active         bool          `json:"active"`
	PostingCount   int           `json:"posting_count"`
	VoidedCount    int           `json:"voided_count"`
}

func toSummaryDTO(s *domain.Summary) summaryDTO {
	c := s.Allocation.Currency
	dto := summaryDTO{
		Allocation:     toAllocationDTO(&s.Allocation),
		Consumed:       domain.FormatAmount(s.Consumed, c),
		Remaining:      domain.FormatAmount(s.Remaining, c),
		UtilizationPct: s.UtilizationPct,
		Status:         string(s.Status),
		Active:         s.Active,
		PostingCount:   s.PostingCount,
		VoidedCount:    s.VoidedCount,
	}
	if s.ApprovalState != nil {
		st := string(*s.ApprovalState)
		dto.ApprovalState = &st
	}
	return dto
}

type transitionDTO struct {
	Seq       int       `json:"seq"`
	Actor     string    `json:"actor"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Comment   string    `json:"comment,omitempty"`
	At        time.Time `json:"at"`
}

type approvalDTO struct {
	ID           uuid.UUID       `json:"id"`
	Kind         string          `json:"kind"`
	SubjectRef   string          `json:"subject_ref"`
	Title        string          `json:"title"`
	Details      json.RawMessage `json:"details"`
	State        string          `json:"state"`
	CreatedBy    string          `json:"created_by"`
	SubmittedBy  *string         `json:"submitted_by,omitempty"`
	Approvers    []string        `json:"approvers"`
	SupersedesID *uuid.UUID      `json:"supersedes_id,omitempty"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	History      []transitionDTO `json:"history"`
}

func toApprovalDTO(r *domain.ApprovalRequest) approvalDTO {
	history := make([]transitionDTO, 0, len(r.History))
	for _, tr := range r.History {
		history = append(history, transitionDTO{
			Seq:       tr.Seq,
			Actor:     tr.Actor,
			FromState: string(tr.FromState),
			ToState:   string(tr.ToState),
			Comment:   tr.Comment,
			At:        tr.At,
		})
	}
	approvers := r.Approvers
	if approvers == nil {
		approvers = []string{}
	}
	details := r.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	return approvalDTO{
		ID:           r.ID,
		Kind:         string(r.Kind),
		SubjectRef:   r.SubjectRef,
		Title:        r.Title,
		Details:      details,
		State:        string(r.State),
		CreatedBy:    r.CreatedBy,
		SubmittedBy:  r.SubmittedBy,
		Approvers:    approvers,
		SupersedesID: r.SupersedesID,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		History:      history,
	}
}

type auditEventDTO struct {
	ID        uuid.UUID       `json:"id"`
	Action    string          `json:"action"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func toAuditEventDTOs(events []domain.AuditEvent) []auditEventDTO {
	out := make([]auditEventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, auditEventDTO{
			ID:        ev.ID,
			Action:    string(ev.Action),
			Actor:     ev.Actor,
			Payload:   ev.Payload,
			CreatedAt: ev.CreatedAt,
		})
	}
	return out
}

type exportDTO struct {
	Summary  summaryDTO   `json:"summary"`
	Postings []postingDTO `json:"postings"`
	Approval *approvalDTO `json:"approval,omitempty"`
	TakenAt  time.Time    `json:"taken_at"`
}

func toExportDTO(s *domain.Snapshot) exportDTO {
	dto := exportDTO{
		Summary:  toSummaryDTO(&s.Summary),
		Postings: toPostingDTOs(s.Postings),
		TakenAt:  s.TakenAt,
	}
	if s.Approval != nil {
		a := toApprovalDTO(s.Approval)
		dto.Approval = &a
	}
	return dto
}
