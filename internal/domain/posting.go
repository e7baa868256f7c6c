package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Posting is a single consumption or payment event against one Allocation.
// It is never deleted; VoidPosting flips Voided and keeps the row for audit.
type Posting struct {
	ID           uuid.UUID
	AllocationID uuid.UUID
	Amount       decimal.Decimal
	Currency     Currency
	OccurredAt   time.Time
	RecordedAt   time.Time
	Reference    string
	RecordedBy   string
	Voided       bool
	VoidedAt     *time.Time
	VoidedBy     *string
	VoidReason   *string
}

type VoidRequest struct {
	Actor  string
	Reason string
	At     time.Time
}
