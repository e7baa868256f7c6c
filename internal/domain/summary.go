package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus is derived from posting totals and never stored.
type SettlementStatus string

const (
	SettlementUnconsumed SettlementStatus = "unconsumed"
	SettlementPartial    SettlementStatus = "partial"
	SettlementSettled    SettlementStatus = "settled"
	// SettlementOverAllocated only appears for imported histories that
	// already break the balance invariant; writes never produce it.
	SettlementOverAllocated SettlementStatus = "over_allocated"
)

type Summary struct {
	Allocation     Allocation
	Consumed       decimal.Decimal
	Remaining      decimal.Decimal
	UtilizationPct int
	Status         SettlementStatus
	ApprovalState  *ApprovalState
	Active         bool
	PostingCount   int
	VoidedCount    int
}

// Snapshot is a point-in-time export of one allocation.
type Snapshot struct {
	Summary  Summary
	Postings []Posting
	Approval *ApprovalRequest
	TakenAt  time.Time
}
