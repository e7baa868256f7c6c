// Package approval implements the approval workflow:
//
//	draft -> submitted -> approved | rejected
//	submitted -> draft (withdraw, original submitter only)
//
// approved and rejected are terminal. Transitions are planned by pure
// functions and persisted with a compare-and-swap on (state, version), so
// a concurrent decision on the same request loses with ErrVersionConflict
// instead of overwriting the winner.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/domain"
	"github.com/josh-kwaku/opsledger/internal/logging"
)

type store interface {
	Create(ctx context.Context, req *domain.ApprovalRequest) error
	Get(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error)
	UpdateDraft(ctx context.Context, req *domain.ApprovalRequest) error
	Transition(ctx context.Context, req *domain.ApprovalRequest, tr domain.ApprovalTransition) error
}

type Machine struct {
	store store
	now   func() time.Time
}

func NewMachine(s store, now func() time.Time) *Machine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Machine{store: s, now: now}
}

type CreateRequest struct {
	ID           uuid.UUID
	Kind         domain.ApprovalKind
	SubjectRef   string
	Title        string
	Details      json.RawMessage
	Approvers    []string
	SupersedesID *uuid.UUID
	Actor        string
}

type EditRequest struct {
	Title     *string
	Details   json.RawMessage
	Approvers []string
}

func (m *Machine) Create(ctx context.Context, in CreateRequest) (*domain.ApprovalRequest, error) {
	if err := validateCreate(in); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	if in.SupersedesID != nil {
		prev, err := m.store.Get(ctx, *in.SupersedesID)
		if err != nil {
			return nil, fmt.Errorf("Create: superseded request: %w", err)
		}
		if prev.State != domain.ApprovalStateRejected {
			return nil, fmt.Errorf("Create: can only resubmit a rejected request, %s is %s: %w",
				prev.ID, prev.State, domain.ErrInvalidTransition)
		}
	}

	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	details := in.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	now := m.now()
	req := &domain.ApprovalRequest{
		ID:           id,
		Kind:         in.Kind,
		SubjectRef:   in.SubjectRef,
		Title:        strings.TrimSpace(in.Title),
		Details:      details,
		State:        domain.ApprovalStateDraft,
		CreatedBy:    in.Actor,
		Approvers:    normalizeActors(in.Approvers),
		SupersedesID: in.SupersedesID,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	logging.FromContext(ctx).Info("approval request created",
		"approval_id", req.ID,
		"kind", req.Kind,
		"subject_ref", req.SubjectRef,
	)
	return req, nil
}

func (m *Machine) Get(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	req, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return req, nil
}

// Edit changes a draft's content. It is not a state transition and does
// not add to history.
func (m *Machine) Edit(ctx context.Context, id uuid.UUID, actor string, in EditRequest) (*domain.ApprovalRequest, error) {
	req, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Edit: %w", err)
	}
	if err := PlanEdit(req, actor, in, m.now()); err != nil {
		return nil, fmt.Errorf("Edit: %w", err)
	}
	if err := m.store.UpdateDraft(ctx, req); err != nil {
		return nil, fmt.Errorf("Edit: %w", err)
	}
	return req, nil
}

func (m *Machine) Submit(ctx context.Context, id uuid.UUID, actor string) (*domain.ApprovalRequest, error) {
	return m.transition(ctx, "Submit", id, func(req *domain.ApprovalRequest, at time.Time) (domain.ApprovalTransition, error) {
		return PlanSubmit(req, actor, at)
	})
}

func (m *Machine) Decide(ctx context.Context, id uuid.UUID, actor string, decision domain.Decision, comment string) (*domain.ApprovalRequest, error) {
	return m.transition(ctx, "Decide", id, func(req *domain.ApprovalRequest, at time.Time) (domain.ApprovalTransition, error) {
		return PlanDecide(req, actor, decision, comment, at)
	})
}

func (m *Machine) Withdraw(ctx context.Context, id uuid.UUID, actor string) (*domain.ApprovalRequest, error) {
	return m.transition(ctx, "Withdraw", id, func(req *domain.ApprovalRequest, at time.Time) (domain.ApprovalTransition, error) {
		return PlanWithdraw(req, actor, at)
	})
}

type planFunc func(req *domain.ApprovalRequest, at time.Time) (domain.ApprovalTransition, error)

func (m *Machine) transition(ctx context.Context, op string, id uuid.UUID, plan planFunc) (*domain.ApprovalRequest, error) {
	req, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tr, err := plan(req, m.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	Apply(req, tr)

	if err := m.store.Transition(ctx, req, tr); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			logging.FromContext(ctx).Warn("approval transition lost a race",
				"approval_id", id, "from", tr.FromState, "to", tr.ToState)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logging.FromContext(ctx).Info("approval request transitioned",
		"approval_id", req.ID,
		"from", tr.FromState,
		"to", tr.ToState,
		"actor", tr.Actor,
	)
	return req, nil
}

func validateCreate(in CreateRequest) error {
	if !in.Kind.IsValid() {
		return fmt.Errorf("validateCreate: kind %q: %w", in.Kind, domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(in.SubjectRef) == "" {
		return fmt.Errorf("validateCreate: subject_ref required: %w", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(in.Actor) == "" {
		return fmt.Errorf("validateCreate: actor required: %w", domain.ErrInvalidRequest)
	}
	if len(in.Details) > 0 && !json.Valid(in.Details) {
		return fmt.Errorf("validateCreate: details must be JSON: %w", domain.ErrInvalidRequest)
	}
	return nil
}

func normalizeActors(actors []string) []string {
	out := make([]string, 0, len(actors))
	seen := make(map[string]struct{}, len(actors))
	for _, a := range actors {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
