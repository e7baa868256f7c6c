package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AllocationKind string

const (
	AllocationKindBudget      AllocationKind = "budget"
	AllocationKindInvoice     AllocationKind = "invoice"
	AllocationKindCashAdvance AllocationKind = "cash_advance"
)

func (k AllocationKind) IsValid() bool {
	switch k {
	case AllocationKindBudget, AllocationKindInvoice, AllocationKindCashAdvance:
		return true
	default:
		return false
	}
}

// Allocation is a bounded monetary ceiling that postings consume.
// TotalAmount and Currency never change after creation.
type Allocation struct {
	ID                 uuid.UUID
	Kind               AllocationKind
	TotalAmount        decimal.Decimal
	Currency           Currency
	OwnerRef           string
	Description        string
	RequiredApprovalID *uuid.UUID
	SupersedesID       *uuid.UUID
	SupersededByID     *uuid.UUID
	CreatedBy          string
	CreatedAt          time.Time
	SupersededAt       *time.Time
}

func (a *Allocation) IsSuperseded() bool {
	return a.SupersededAt != nil
}

func (a *Allocation) IsGated() bool {
	return a.RequiredApprovalID != nil
}
