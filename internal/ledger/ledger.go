// Package ledger holds the write-time rules shared by every Ledger Store
// backend. Backends call these inside the allocation's critical section so
// the check and the write observe the same posting set.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/domain"
	"github.com/josh-kwaku/opsledger/internal/reconcile"
)

// Every ledger audit row is keyed by its allocation so one query returns
// the allocation's whole trail.
const EntityAllocation = "allocation"

func ValidateAllocation(a *domain.Allocation) error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("ValidateAllocation: missing id: %w", domain.ErrInvalidRequest)
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("ValidateAllocation: kind %q: %w", a.Kind, domain.ErrInvalidRequest)
	}
	if !a.Currency.IsValid() {
		return fmt.Errorf("ValidateAllocation: %s: %w", a.Currency, domain.ErrInvalidCurrency)
	}
	if a.TotalAmount.IsNegative() {
		return fmt.Errorf("ValidateAllocation: %w", domain.ErrNegativeAmount)
	}
	if err := domain.CheckPrecision(a.TotalAmount, a.Currency); err != nil {
		return fmt.Errorf("ValidateAllocation: %w", err)
	}
	if a.IsSuperseded() {
		return fmt.Errorf("ValidateAllocation: new allocation cannot be superseded: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// ValidatePostingAmount checks the posting on its own, without the
// allocation's history.
func ValidatePostingAmount(p *domain.Posting) error {
	if !p.Amount.IsPositive() {
		return fmt.Errorf("ValidatePostingAmount: %s: %w", p.Amount, domain.ErrNonPositiveAmount)
	}
	if err := domain.CheckPrecision(p.Amount, p.Currency); err != nil {
		return fmt.Errorf("ValidatePostingAmount: %w", err)
	}
	return nil
}

// CheckPosting must run while the allocation is locked. existing is the
// allocation's full posting set, voided rows included.
func CheckPosting(alloc *domain.Allocation, existing []domain.Posting, p *domain.Posting) error {
	if p.AllocationID != alloc.ID {
		return fmt.Errorf("CheckPosting: posting targets %s: %w", p.AllocationID, domain.ErrInvalidRequest)
	}
	if alloc.IsSuperseded() {
		return fmt.Errorf("CheckPosting: allocation %s superseded: %w", alloc.ID, domain.ErrAllocationInactive)
	}
	if p.Currency != alloc.Currency {
		return fmt.Errorf("CheckPosting: %s into %s allocation: %w", p.Currency, alloc.Currency, domain.ErrCurrencyMismatch)
	}
	if err := ValidatePostingAmount(p); err != nil {
		return fmt.Errorf("CheckPosting: %w", err)
	}

	totals, ok := reconcile.Headroom(alloc.TotalAmount, existing, p.Amount)
	if !ok {
		return fmt.Errorf("CheckPosting: consumed %s + %s exceeds %s: %w",
			totals.Consumed, p.Amount, alloc.TotalAmount, domain.ErrOverBudget)
	}
	return nil
}

func CheckVoid(p *domain.Posting) error {
	if p.Voided {
		return fmt.Errorf("CheckVoid: posting %s: %w", p.ID, domain.ErrAlreadyVoided)
	}
	return nil
}

// ApplyVoid marks p voided in place.
func ApplyVoid(p *domain.Posting, req domain.VoidRequest) {
	at := req.At
	actor := req.Actor
	reason := req.Reason
	p.Voided = true
	p.VoidedAt = &at
	p.VoidedBy = &actor
	p.VoidReason = &reason
}

func CheckSupersede(old, replacement *domain.Allocation) error {
	if old.IsSuperseded() {
		return fmt.Errorf("CheckSupersede: allocation %s: %w", old.ID, domain.ErrAlreadySuperseded)
	}
	if replacement.ID == old.ID {
		return fmt.Errorf("CheckSupersede: replacement reuses id %s: %w", old.ID, domain.ErrDuplicateID)
	}
	if err := ValidateAllocation(replacement); err != nil {
		return fmt.Errorf("CheckSupersede: %w", err)
	}
	return nil
}

// ApplySupersede links old and replacement and stamps the supersession time.
func ApplySupersede(old, replacement *domain.Allocation, at time.Time) {
	oldID, newID := old.ID, replacement.ID
	old.SupersededAt = &at
	old.SupersededByID = &newID
	replacement.SupersedesID = &oldID
}

// NewAuditEvent builds an audit row; payload is marshalled to JSON.
func NewAuditEvent(entityType string, entityID uuid.UUID, action domain.AuditAction, actor string, payload any, at time.Time) (*domain.AuditEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("NewAuditEvent: %w", err)
	}
	return &domain.AuditEvent{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		Payload:    body,
		CreatedAt:  at,
	}, nil
}

func AllocationCreatedEvent(a *domain.Allocation) (*domain.AuditEvent, error) {
	return NewAuditEvent(EntityAllocation, a.ID, domain.AuditAllocationCreated, a.CreatedBy, map[string]any{
		"kind":         a.Kind,
		"total_amount": domain.FormatAmount(a.TotalAmount, a.Currency),
		"currency":     a.Currency,
		"owner_ref":    a.OwnerRef,
	}, a.CreatedAt)
}

func PostingRecordedEvent(p *domain.Posting) (*domain.AuditEvent, error) {
	return NewAuditEvent(EntityAllocation, p.AllocationID, domain.AuditPostingRecorded, p.RecordedBy, map[string]any{
		"posting_id":  p.ID,
		"amount":      domain.FormatAmount(p.Amount, p.Currency),
		"occurred_at": p.OccurredAt,
		"reference":   p.Reference,
	}, p.RecordedAt)
}

func PostingVoidedEvent(p *domain.Posting, req domain.VoidRequest) (*domain.AuditEvent, error) {
	return NewAuditEvent(EntityAllocation, p.AllocationID, domain.AuditPostingVoided, req.Actor, map[string]any{
		"posting_id": p.ID,
		"amount":     domain.FormatAmount(p.Amount, p.Currency),
		"reason":     req.Reason,
	}, req.At)
}

func AllocationSupersededEvent(old, replacement *domain.Allocation, actor string, at time.Time) (*domain.AuditEvent, error) {
	return NewAuditEvent(EntityAllocation, old.ID, domain.AuditAllocationSuperseded, actor, map[string]any{
		"replacement_id": replacement.ID,
		"total_amount":   domain.FormatAmount(replacement.TotalAmount, replacement.Currency),
		"currency":       replacement.Currency,
	}, at)
}
