package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/domain"
	"github.com/josh-kwaku/opsledger/internal/ledger"
)

// LedgerStore persists allocations and postings. Each write runs in one
// transaction holding the allocation row lock, and writes its audit event
// in the same transaction.
type LedgerStore struct {
	db          *DB
	allocations AllocationRepository
	postings    PostingRepository
	audit       AuditRepository
}

func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) CreateAllocation(ctx context.Context, a *domain.Allocation) error {
	if err := ledger.ValidateAllocation(a); err != nil {
		return fmt.Errorf("CreateAllocation: %w", err)
	}
	ev, err := ledger.AllocationCreatedEvent(a)
	if err != nil {
		return fmt.Errorf("CreateAllocation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("CreateAllocation: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.allocations.Create(ctx, tx, a); err != nil {
		return fmt.Errorf("CreateAllocation: %w", err)
	}
	if err := s.audit.Create(ctx, tx, ev); err != nil {
		return fmt.Errorf("CreateAllocation: audit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("CreateAllocation: commit: %w", err)
	}
	return nil
}

func (s *LedgerStore) GetAllocation(ctx context.Context, id uuid.UUID) (*domain.Allocation, error) {
	a, err := s.allocations.Get(ctx, s.db.Conn(), id)
	if err != nil {
		return nil, fmt.Errorf("GetAllocation: %w", err)
	}
	return a, nil
}

func (s *LedgerStore) GetPosting(ctx context.Context, id uuid.UUID) (*domain.Posting, error) {
	p, err := s.postings.Get(ctx, s.db.Conn(), id)
	if err != nil {
		return nil, fmt.Errorf("GetPosting: %w", err)
	}
	return p, nil
}

func (s *LedgerStore) RecordPosting(ctx context.Context, p *domain.Posting) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("RecordPosting: begin tx: %w", err)
	}
	defer tx.Rollback()

	alloc, err := s.allocations.GetForUpdate(ctx, tx, p.AllocationID)
	if err != nil {
		return fmt.Errorf("RecordPosting: %w", err)
	}
	existing, err := s.postings.ListByAllocation(ctx, tx, alloc.ID)
	if err != nil {
		return fmt.Errorf("RecordPosting: %w", err)
	}
	if err := ledger.CheckPosting(alloc, existing, p); err != nil {
		return fmt.Errorf("RecordPosting: %w", err)
	}

	ev, err := ledger.PostingRecordedEvent(p)
	if err != nil {
		return fmt.Errorf("RecordPosting: %w", err)
	}
	if err := s.postings.Create(ctx, tx, p); err != nil {
		return fmt.Errorf("RecordPosting: %w", err)
	}
	if err := s.audit.Create(ctx, tx, ev); err != nil {
		return fmt.Errorf("RecordPosting: audit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("RecordPosting: commit: %w", err)
	}
	return nil
}

func (s *LedgerStore) VoidPosting(ctx context.Context, postingID uuid.UUID, req domain.VoidRequest) (*domain.Posting, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("VoidPosting: begin tx: %w", err)
	}
	defer tx.Rollback()

	// Lock the owning allocation before re-reading the posting so voids
	// and records on the same allocation never overlap.
	p, err := s.postings.Get(ctx, tx, postingID)
	if err != nil {
		return nil, fmt.Errorf("VoidPosting: %w", err)
	}
	if _, err := s.allocations.GetForUpdate(ctx, tx, p.AllocationID); err != nil {
		return nil, fmt.Errorf("VoidPosting: %w", err)
	}
	p, err = s.postings.Get(ctx, tx, postingID)
	if err != nil {
		return nil, fmt.Errorf("VoidPosting: %w", err)
	}

	if err := ledger.CheckVoid(p); err != nil {
		return nil, fmt.Errorf("VoidPosting: %w", err)
	}
	ledger.ApplyVoid(p, req)
	ev, err := ledger.PostingVoidedEvent(p, req)
	if err != nil {
		return nil, fmt.Errorf("VoidPosting: %w", err)
	}

	if err := s.postings.MarkVoided(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("VoidPosting: %w", err)
	}
	if err := s.audit.Create(ctx, tx, ev); err != nil {
		return nil, fmt.Errorf("VoidPosting: audit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("VoidPosting: commit: %w", err)
	}
	return p, nil
}

func (s *LedgerStore) SupersedeAllocation(ctx context.Context, oldID uuid.UUID, replacement *domain.Allocation, actor string, at time.Time) (*domain.Allocation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: begin tx: %w", err)
	}
	defer tx.Rollback()

	old, err := s.allocations.GetForUpdate(ctx, tx, oldID)
	if err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}
	if err := ledger.CheckSupersede(old, replacement); err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}
	ledger.ApplySupersede(old, replacement, at)

	created, err := ledger.AllocationCreatedEvent(replacement)
	if err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}
	superseded, err := ledger.AllocationSupersededEvent(old, replacement, actor, at)
	if err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}

	// The replacement row must exist before the old row can reference it.
	if err := s.allocations.Create(ctx, tx, replacement); err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}
	if err := s.allocations.MarkSuperseded(ctx, tx, old); err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}
	for _, ev := range []*domain.AuditEvent{created, superseded} {
		if err := s.audit.Create(ctx, tx, ev); err != nil {
			return nil, fmt.Errorf("SupersedeAllocation: audit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: commit: %w", err)
	}
	return old, nil
}

// Snapshot reads the allocation and its postings in one repeatable-read
// transaction.
func (s *LedgerStore) Snapshot(ctx context.Context, id uuid.UUID) (*domain.Allocation, []domain.Posting, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("Snapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	a, err := s.allocations.Get(ctx, tx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("Snapshot: %w", err)
	}
	postings, err := s.postings.ListByAllocation(ctx, tx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("Snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("Snapshot: commit: %w", err)
	}
	return a, postings, nil
}

func (s *LedgerStore) AuditTrail(ctx context.Context, allocationID uuid.UUID) ([]domain.AuditEvent, error) {
	if _, err := s.allocations.Get(ctx, s.db.Conn(), allocationID); err != nil {
		return nil, fmt.Errorf("AuditTrail: %w", err)
	}
	events, err := s.audit.ListByEntity(ctx, s.db.Conn(), ledger.EntityAllocation, allocationID)
	if err != nil {
		return nil, fmt.Errorf("AuditTrail: %w", err)
	}
	return events, nil
}
