package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

// T0 is the fixed clock start used across tests.
var T0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// NewAllocation returns a valid IDR budget allocation owned by dept-ops.
func NewAllocation(total string) *domain.Allocation {
	return &domain.Allocation{
		ID:          uuid.New(),
		Kind:        domain.AllocationKindBudget,
		TotalAmount: decimal.RequireFromString(total),
		Currency:    domain.CurrencyIDR,
		OwnerRef:    "dept-ops",
		CreatedBy:   "alice",
		CreatedAt:   T0,
	}
}

func NewPosting(allocationID uuid.UUID, amount string) *domain.Posting {
	return &domain.Posting{
		ID:           uuid.New(),
		AllocationID: allocationID,
		Amount:       decimal.RequireFromString(amount),
		Currency:     domain.CurrencyIDR,
		OccurredAt:   T0,
		RecordedAt:   T0,
		RecordedBy:   "bob",
	}
}

// NewDraft returns a draft approval request created by alice.
func NewDraft(kind domain.ApprovalKind) *domain.ApprovalRequest {
	return &domain.ApprovalRequest{
		ID:         uuid.New(),
		Kind:       kind,
		SubjectRef: "subject-1",
		Title:      "test request",
		Details:    []byte(`{}`),
		State:      domain.ApprovalStateDraft,
		CreatedBy:  "alice",
		Approvers:  []string{},
		Version:    1,
		CreatedAt:  T0,
		UpdatedAt:  T0,
	}
}

// Clock returns a func that advances one second per call, starting at T0.
func Clock() func() time.Time {
	now := T0
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}
