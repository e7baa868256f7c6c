package domain

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

type ApprovalKind string

const (
	ApprovalKindPurchaseRequisition ApprovalKind = "purchase_requisition"
	ApprovalKindPurchaseOrder       ApprovalKind = "purchase_order"
	ApprovalKindLeave               ApprovalKind = "leave"
	ApprovalKindDriverTrip          ApprovalKind = "driver_trip"
	ApprovalKindDisposal            ApprovalKind = "disposal"
	ApprovalKindBudgetRelease       ApprovalKind = "budget_release"
	ApprovalKindPaymentRelease      ApprovalKind = "payment_release"
)

func (k ApprovalKind) IsValid() bool {
	switch k {
	case ApprovalKindPurchaseRequisition, ApprovalKindPurchaseOrder, ApprovalKindLeave,
		ApprovalKindDriverTrip, ApprovalKindDisposal, ApprovalKindBudgetRelease, ApprovalKindPaymentRelease:
		return true
	default:
		return false
	}
}

type ApprovalState string

const (
	ApprovalStateDraft     ApprovalState = "draft"
	ApprovalStateSubmitted ApprovalState = "submitted"
	ApprovalStateApproved  ApprovalState = "approved"
	ApprovalStateRejected  ApprovalState = "rejected"
)

func (s ApprovalState) IsTerminal() bool {
	return s == ApprovalStateApproved || s == ApprovalStateRejected
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// ApprovalTransition is one entry of a request's append-only history.
type ApprovalTransition struct {
	Seq       int
	Actor     string
	FromState ApprovalState
	ToState   ApprovalState
	Comment   string
	At        time.Time
}

type ApprovalRequest struct {
	ID           uuid.UUID
	Kind         ApprovalKind
	SubjectRef   string
	Title        string
	Details      json.RawMessage
	State        ApprovalState
	CreatedBy    string
	SubmittedBy  *string
	Approvers    []string
	SupersedesID *uuid.UUID
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	History      []ApprovalTransition
}

// IsOwnRequest reports whether actor created or submitted the request.
func (r *ApprovalRequest) IsOwnRequest(actor string) bool {
	return r.CreatedBy == actor || (r.SubmittedBy != nil && *r.SubmittedBy == actor)
}

func (r *ApprovalRequest) CanBeDecidedBy(actor string) bool {
	if r.IsOwnRequest(actor) {
		return false
	}
	if len(r.Approvers) == 0 {
		return true
	}
	return slices.Contains(r.Approvers, actor)
}
