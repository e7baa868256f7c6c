package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/opsledger/internal/domain"
	"github.com/josh-kwaku/opsledger/internal/logging"
	"github.com/josh-kwaku/opsledger/internal/reconcile"
)

// Reconciliation is the command and query surface over the ledger and the
// approval workflow. It is the only place gating is enforced.
type Reconciliation struct {
	ledger    ledgerStore
	approvals approvalMachine
	observer  CommandObserver
	now       func() time.Time
}

func NewReconciliation(ledger ledgerStore, approvals approvalMachine, observer CommandObserver, now func() time.Time) *Reconciliation {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Reconciliation{
		ledger:    ledger,
		approvals: approvals,
		observer:  observer,
		now:       now,
	}
}

type CreateAllocationRequest struct {
	ID                 uuid.UUID
	Kind               domain.AllocationKind
	TotalAmount        decimal.Decimal
	Currency           domain.Currency
	OwnerRef           string
	Description        string
	RequiredApprovalID *uuid.UUID
	Actor              string
}

type RecordPostingRequest struct {
	ID           uuid.UUID
	AllocationID uuid.UUID
	Amount       decimal.Decimal
	Currency     domain.Currency
	OccurredAt   time.Time
	Reference    string
	Actor        string
}

// SupersedeRequest describes the replacement allocation. Empty Kind,
// Currency and OwnerRef are taken from the allocation being replaced.
type SupersedeRequest struct {
	AllocationID       uuid.UUID
	ReplacementID      uuid.UUID
	Kind               domain.AllocationKind
	TotalAmount        decimal.Decimal
	Currency           domain.Currency
	OwnerRef           string
	Description        string
	RequiredApprovalID *uuid.UUID
	Actor              string
}

func (s *Reconciliation) CreateAllocation(ctx context.Context, req CreateAllocationRequest) (a *domain.Allocation, err error) {
	defer s.track(ctx, "create_allocation", s.now(), &err)

	if strings.TrimSpace(req.OwnerRef) == "" {
		return nil, fmt.Errorf("CreateAllocation: owner_ref required: %w", domain.ErrInvalidRequest)
	}
	if err := s.checkGateExists(ctx, req.RequiredApprovalID); err != nil {
		return nil, fmt.Errorf("CreateAllocation: %w", err)
	}

	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	a = &domain.Allocation{
		ID:                 id,
		Kind:               req.Kind,
		TotalAmount:        req.TotalAmount,
		Currency:           req.Currency,
		OwnerRef:           req.OwnerRef,
		Description:        req.Description,
		RequiredApprovalID: req.RequiredApprovalID,
		CreatedBy:          req.Actor,
		CreatedAt:          s.now(),
	}
	if err := s.ledger.CreateAllocation(ctx, a); err != nil {
		return nil, fmt.Errorf("CreateAllocation: %w", err)
	}

	logging.FromContext(ctx).Info("allocation created",
		"allocation_id", a.ID,
		"kind", a.Kind,
		"total", domain.FormatAmount(a.TotalAmount, a.Currency),
		"currency", a.Currency,
		"gated", a.IsGated(),
	)
	return a, nil
}

func (s *Reconciliation) RecordPosting(ctx context.Context, req RecordPostingRequest) (p *domain.Posting, err error) {
	defer s.track(ctx, "record_posting", s.now(), &err)

	alloc, err := s.ledger.GetAllocation(ctx, req.AllocationID)
	if err != nil {
		return nil, fmt.Errorf("RecordPosting: %w", err)
	}
	if err := s.checkGateApproved(ctx, alloc); err != nil {
		return nil, fmt.Errorf("RecordPosting: %w", err)
	}

	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := s.now()
	occurred := req.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	p = &domain.Posting{
		ID:           id,
		AllocationID: req.AllocationID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		OccurredAt:   occurred,
		RecordedAt:   now,
		Reference:    req.Reference,
		RecordedBy:   req.Actor,
	}
	if err := s.ledger.RecordPosting(ctx, p); err != nil {
		return nil, fmt.Errorf("RecordPosting: %w", err)
	}

	logging.FromContext(ctx).Info("posting recorded",
		"allocation_id", p.AllocationID,
		"posting_id", p.ID,
		"amount", domain.FormatAmount(p.Amount, p.Currency),
	)
	return p, nil
}

func (s *Reconciliation) VoidPosting(ctx context.Context, postingID uuid.UUID, actor, reason string) (p *domain.Posting, err error) {
	defer s.track(ctx, "void_posting", s.now(), &err)

	p, err = s.ledger.VoidPosting(ctx, postingID, domain.VoidRequest{
		Actor:  actor,
		Reason: reason,
		At:     s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("VoidPosting: %w", err)
	}

	logging.FromContext(ctx).Info("posting voided",
		"allocation_id", p.AllocationID,
		"posting_id", p.ID,
		"reason", reason,
	)
	return p, nil
}

// SupersedeAllocation retires an allocation in favour of a new one. It
// returns the retired allocation and its replacement.
func (s *Reconciliation) SupersedeAllocation(ctx context.Context, req SupersedeRequest) (old, replacement *domain.Allocation, err error) {
	defer s.track(ctx, "supersede_allocation", s.now(), &err)

	current, err := s.ledger.GetAllocation(ctx, req.AllocationID)
	if err != nil {
		return nil, nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}
	if err := s.checkGateExists(ctx, req.RequiredApprovalID); err != nil {
		return nil, nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}

	id := req.ReplacementID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := s.now()
	replacement = &domain.Allocation{
		ID:                 id,
		Kind:               firstNonEmpty(req.Kind, current.Kind),
		TotalAmount:        req.TotalAmount,
		Currency:           firstNonEmpty(req.Currency, current.Currency),
		OwnerRef:           firstNonEmpty(req.OwnerRef, current.OwnerRef),
		Description:        req.Description,
		RequiredApprovalID: req.RequiredApprovalID,
		CreatedBy:          req.Actor,
		CreatedAt:          now,
	}

	old, err = s.ledger.SupersedeAllocation(ctx, req.AllocationID, replacement, req.Actor, now)
	if err != nil {
		return nil, nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}

	logging.FromContext(ctx).Info("allocation superseded",
		"allocation_id", old.ID,
		"replacement_id", replacement.ID,
		"total", domain.FormatAmount(replacement.TotalAmount, replacement.Currency),
	)
	return old, replacement, nil
}

func (s *Reconciliation) GetAllocationSummary(ctx context.Context, id uuid.UUID) (*domain.Summary, error) {
	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetAllocationSummary: %w", err)
	}
	return &snap.Summary, nil
}

// Export returns the allocation, its postings and its gating request as
// read from one snapshot of the ledger.
func (s *Reconciliation) Export(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}
	return snap, nil
}

func (s *Reconciliation) AuditTrail(ctx context.Context, allocationID uuid.UUID) ([]domain.AuditEvent, error) {
	events, err := s.ledger.AuditTrail(ctx, allocationID)
	if err != nil {
		return nil, fmt.Errorf("AuditTrail: %w", err)
	}
	return events, nil
}

func (s *Reconciliation) GetPosting(ctx context.Context, id uuid.UUID) (*domain.Posting, error) {
	p, err := s.ledger.GetPosting(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetPosting: %w", err)
	}
	return p, nil
}

func (s *Reconciliation) snapshot(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	alloc, postings, err := s.ledger.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	takenAt := s.now()

	summary := reconcile.Summarize(*alloc, postings)
	var gate *domain.ApprovalRequest
	if alloc.IsGated() {
		gate, err = s.approvals.Get(ctx, *alloc.RequiredApprovalID)
		if err != nil {
			return nil, fmt.Errorf("gate %s: %w", *alloc.RequiredApprovalID, err)
		}
		state := gate.State
		summary.ApprovalState = &state
		summary.Active = summary.Active && state == domain.ApprovalStateApproved
	}

	return &domain.Snapshot{
		Summary:  summary,
		Postings: postings,
		Approval: gate,
		TakenAt:  takenAt,
	}, nil
}

func (s *Reconciliation) checkGateExists(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.approvals.Get(ctx, *id); err != nil {
		return fmt.Errorf("checkGateExists: %w", err)
	}
	return nil
}

// checkGateApproved fails fast before the ledger write path is touched.
func (s *Reconciliation) checkGateApproved(ctx context.Context, alloc *domain.Allocation) error {
	if !alloc.IsGated() {
		return nil
	}
	gate, err := s.approvals.Get(ctx, *alloc.RequiredApprovalID)
	if err != nil {
		return fmt.Errorf("checkGateApproved: %w", err)
	}
	if gate.State != domain.ApprovalStateApproved {
		return fmt.Errorf("checkGateApproved: gate %s is %s: %w", gate.ID, gate.State, domain.ErrAllocationInactive)
	}
	return nil
}

func (s *Reconciliation) track(ctx context.Context, command string, started time.Time, errp *error) {
	err := *errp
	if s.observer != nil {
		s.observer.ObserveCommand(command, Outcome(err), s.now().Sub(started))
	}
	if err == nil {
		return
	}
	log := logging.FromContext(ctx)
	if isRejection(err) {
		log.Warn("command rejected", "command", command, "reason", Outcome(err), "error", err)
		return
	}
	log.Error("command failed", "command", command, "error", err)
}

func firstNonEmpty[T ~string](v, fallback T) T {
	if v == "" {
		return fallback
	}
	return v
}
