package approval

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

func PlanSubmit(req *domain.ApprovalRequest, actor string, at time.Time) (domain.ApprovalTransition, error) {
	if req.State != domain.ApprovalStateDraft {
		return domain.ApprovalTransition{}, fmt.Errorf("PlanSubmit: %s is %s: %w", req.ID, req.State, domain.ErrNotInDraft)
	}
	return next(req, actor, domain.ApprovalStateSubmitted, "", at), nil
}

func PlanDecide(req *domain.ApprovalRequest, actor string, decision domain.Decision, comment string, at time.Time) (domain.ApprovalTransition, error) {
	if !decision.IsValid() {
		return domain.ApprovalTransition{}, fmt.Errorf("PlanDecide: decision %q: %w", decision, domain.ErrInvalidRequest)
	}
	if req.State != domain.ApprovalStateSubmitted {
		return domain.ApprovalTransition{}, fmt.Errorf("PlanDecide: %s is %s: %w", req.ID, req.State, domain.ErrNotSubmitted)
	}
	if req.IsOwnRequest(actor) {
		return domain.ApprovalTransition{}, fmt.Errorf("PlanDecide: %s: %w", actor, domain.ErrSelfApproval)
	}
	if !req.CanBeDecidedBy(actor) {
		return domain.ApprovalTransition{}, fmt.Errorf("PlanDecide: %s not among approvers: %w", actor, domain.ErrActorNotAuthorized)
	}

	to := domain.ApprovalStateApproved
	if decision == domain.DecisionReject {
		to = domain.ApprovalStateRejected
	}
	return next(req, actor, to, comment, at), nil
}

func PlanWithdraw(req *domain.ApprovalRequest, actor string, at time.Time) (domain.ApprovalTransition, error) {
	if req.State != domain.ApprovalStateSubmitted {
		return domain.ApprovalTransition{}, fmt.Errorf("PlanWithdraw: %s is %s: %w", req.ID, req.State, domain.ErrNotSubmitted)
	}
	if req.SubmittedBy == nil || *req.SubmittedBy != actor {
		return domain.ApprovalTransition{}, fmt.Errorf("PlanWithdraw: %s: %w", actor, domain.ErrNotOriginalSubmitter)
	}
	return next(req, actor, domain.ApprovalStateDraft, "withdrawn", at), nil
}

// PlanEdit applies in to a draft request in place and bumps its version.
func PlanEdit(req *domain.ApprovalRequest, actor string, in EditRequest, at time.Time) error {
	if req.State != domain.ApprovalStateDraft {
		return fmt.Errorf("PlanEdit: %s is %s: %w", req.ID, req.State, domain.ErrNotInDraft)
	}
	if strings.TrimSpace(actor) == "" {
		return fmt.Errorf("PlanEdit: actor required: %w", domain.ErrInvalidRequest)
	}
	if len(in.Details) > 0 && !json.Valid(in.Details) {
		return fmt.Errorf("PlanEdit: details must be JSON: %w", domain.ErrInvalidRequest)
	}

	if in.Title != nil {
		req.Title = strings.TrimSpace(*in.Title)
	}
	if len(in.Details) > 0 {
		req.Details = in.Details
	}
	if in.Approvers != nil {
		req.Approvers = normalizeActors(in.Approvers)
	}
	req.Version++
	req.UpdatedAt = at
	return nil
}

// Apply moves req to tr.ToState and appends tr to its history.
func Apply(req *domain.ApprovalRequest, tr domain.ApprovalTransition) {
	switch tr.ToState {
	case domain.ApprovalStateSubmitted:
		actor := tr.Actor
		req.SubmittedBy = &actor
	case domain.ApprovalStateDraft:
		req.SubmittedBy = nil
	}
	req.State = tr.ToState
	req.Version++
	req.UpdatedAt = tr.At
	req.History = append(req.History, tr)
}

func next(req *domain.ApprovalRequest, actor string, to domain.ApprovalState, comment string, at time.Time) domain.ApprovalTransition {
	return domain.ApprovalTransition{
		Seq:       len(req.History) + 1,
		Actor:     actor,
		FromState: req.State,
		ToState:   to,
		Comment:   comment,
		At:        at,
	}
}
