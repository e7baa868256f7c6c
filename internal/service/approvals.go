package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/approval"
	"github.com/josh-kwaku/opsledger/internal/domain"
)

// Approval commands pass through so every command is tracked the same way.

func (s *Reconciliation) CreateApprovalRequest(ctx context.Context, in approval.CreateRequest) (req *domain.ApprovalRequest, err error) {
	defer s.track(ctx, "create_approval", s.now(), &err)
	return s.approvals.Create(ctx, in)
}

func (s *Reconciliation) GetApprovalRequest(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	return s.approvals.Get(ctx, id)
}

func (s *Reconciliation) EditApprovalRequest(ctx context.Context, id uuid.UUID, actor string, in approval.EditRequest) (req *domain.ApprovalRequest, err error) {
	defer s.track(ctx, "edit_approval", s.now(), &err)
	return s.approvals.Edit(ctx, id, actor, in)
}

func (s *Reconciliation) SubmitForApproval(ctx context.Context, id uuid.UUID, actor string) (req *domain.ApprovalRequest, err error) {
	defer s.track(ctx, "submit_approval", s.now(), &err)
	return s.approvals.Submit(ctx, id, actor)
}

func (s *Reconciliation) Decide(ctx context.Context, id uuid.UUID, actor string, decision domain.Decision, comment string) (req *domain.ApprovalRequest, err error) {
	defer s.track(ctx, "decide_approval", s.now(), &err)
	return s.approvals.Decide(ctx, id, actor, decision, comment)
}

func (s *Reconciliation) Withdraw(ctx context.Context, id uuid.UUID, actor string) (req *domain.ApprovalRequest, err error) {
	defer s.track(ctx, "withdraw_approval", s.now(), &err)
	return s.approvals.Withdraw(ctx, id, actor)
}
