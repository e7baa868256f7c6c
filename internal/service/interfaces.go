package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/approval"
	"github.com/josh-kwaku/opsledger/internal/domain"
)

type ledgerStore interface {
	CreateAllocation(ctx context.Context, a *domain.Allocation) error
	GetAllocation(ctx context.Context, id uuid.UUID) (*domain.Allocation, error)
	GetPosting(ctx context.Context, id uuid.UUID) (*domain.Posting, error)
	RecordPosting(ctx context.Context, p *domain.Posting) error
	VoidPosting(ctx context.Context, postingID uuid.UUID, req domain.VoidRequest) (*domain.Posting, error)
	SupersedeAllocation(ctx context.Context, oldID uuid.UUID, replacement *domain.Allocation, actor string, at time.Time) (*domain.Allocation, error)
	Snapshot(ctx context.Context, id uuid.UUID) (*domain.Allocation, []domain.Posting, error)
	AuditTrail(ctx context.Context, allocationID uuid.UUID) ([]domain.AuditEvent, error)
}

type approvalMachine interface {
	Create(ctx context.Context, in approval.CreateRequest) (*domain.ApprovalRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error)
	Edit(ctx context.Context, id uuid.UUID, actor string, in approval.EditRequest) (*domain.ApprovalRequest, error)
	Submit(ctx context.Context, id uuid.UUID, actor string) (*domain.ApprovalRequest, error)
	Decide(ctx context.Context, id uuid.UUID, actor string, decision domain.Decision, comment string) (*domain.ApprovalRequest, error)
	Withdraw(ctx context.Context, id uuid.UUID, actor string) (*domain.ApprovalRequest, error)
}

// CommandObserver receives one call per finished command.
type CommandObserver interface {
	ObserveCommand(command, outcome string, elapsed time.Duration)
}

type idempotencyCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}
