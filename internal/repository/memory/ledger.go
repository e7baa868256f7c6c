// Package memory is the in-process storage backend. It keeps the same
// guarantees as the Postgres backend: one mutex per allocation serialises
// every write that can move its balance.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/domain"
	"github.com/josh-kwaku/opsledger/internal/ledger"
)

type allocationEntry struct {
	mu       sync.Mutex
	alloc    domain.Allocation
	postings []domain.Posting
}

type LedgerStore struct {
	mu          sync.RWMutex
	allocations map[uuid.UUID]*allocationEntry
	postingOf   map[uuid.UUID]uuid.UUID
	audit       map[uuid.UUID][]domain.AuditEvent
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		allocations: make(map[uuid.UUID]*allocationEntry),
		postingOf:   make(map[uuid.UUID]uuid.UUID),
		audit:       make(map[uuid.UUID][]domain.AuditEvent),
	}
}

func (s *LedgerStore) CreateAllocation(_ context.Context, a *domain.Allocation) error {
	if err := ledger.ValidateAllocation(a); err != nil {
		return fmt.Errorf("CreateAllocation: %w", err)
	}
	ev, err := ledger.AllocationCreatedEvent(a)
	if err != nil {
		return fmt.Errorf("CreateAllocation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allocations[a.ID]; ok {
		return fmt.Errorf("CreateAllocation: %s: %w", a.ID, domain.ErrDuplicateID)
	}
	s.allocations[a.ID] = &allocationEntry{alloc: *a}
	s.audit[a.ID] = append(s.audit[a.ID], *ev)
	return nil
}

func (s *LedgerStore) GetAllocation(_ context.Context, id uuid.UUID) (*domain.Allocation, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, fmt.Errorf("GetAllocation: %w", err)
	}
	e.mu.Lock()
	a := e.alloc
	e.mu.Unlock()
	return &a, nil
}

func (s *LedgerStore) GetPosting(_ context.Context, id uuid.UUID) (*domain.Posting, error) {
	e, err := s.entryForPosting(id)
	if err != nil {
		return nil, fmt.Errorf("GetPosting: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := indexOfPosting(e.postings, id)
	p := e.postings[i]
	return &p, nil
}

func (s *LedgerStore) RecordPosting(_ context.Context, p *domain.Posting) error {
	e, err := s.entry(p.AllocationID)
	if err != nil {
		return fmt.Errorf("RecordPosting: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ledger.CheckPosting(&e.alloc, e.postings, p); err != nil {
		return fmt.Errorf("RecordPosting: %w", err)
	}
	ev, err := ledger.PostingRecordedEvent(p)
	if err != nil {
		return fmt.Errorf("RecordPosting: %w", err)
	}

	s.mu.Lock()
	if _, dup := s.postingOf[p.ID]; dup {
		s.mu.Unlock()
		return fmt.Errorf("RecordPosting: %s: %w", p.ID, domain.ErrDuplicateID)
	}
	s.postingOf[p.ID] = p.AllocationID
	s.audit[p.AllocationID] = append(s.audit[p.AllocationID], *ev)
	s.mu.Unlock()

	e.postings = append(e.postings, *p)
	return nil
}

func (s *LedgerStore) VoidPosting(_ context.Context, postingID uuid.UUID, req domain.VoidRequest) (*domain.Posting, error) {
	e, err := s.entryForPosting(postingID)
	if err != nil {
		return nil, fmt.Errorf("VoidPosting: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := indexOfPosting(e.postings, postingID)
	p := e.postings[i]
	if err := ledger.CheckVoid(&p); err != nil {
		return nil, fmt.Errorf("VoidPosting: %w", err)
	}
	ledger.ApplyVoid(&p, req)
	ev, err := ledger.PostingVoidedEvent(&p, req)
	if err != nil {
		return nil, fmt.Errorf("VoidPosting: %w", err)
	}

	e.postings[i] = p
	s.appendAudit(p.AllocationID, *ev)
	return &p, nil
}

// SupersedeAllocation retires oldID and registers replacement in one step.
// It returns the retired allocation.
func (s *LedgerStore) SupersedeAllocation(_ context.Context, oldID uuid.UUID, replacement *domain.Allocation, actor string, at time.Time) (*domain.Allocation, error) {
	e, err := s.entry(oldID)
	if err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.alloc
	if err := ledger.CheckSupersede(&old, replacement); err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}
	ledger.ApplySupersede(&old, replacement, at)

	created, err := ledger.AllocationCreatedEvent(replacement)
	if err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}
	superseded, err := ledger.AllocationSupersededEvent(&old, replacement, actor, at)
	if err != nil {
		return nil, fmt.Errorf("SupersedeAllocation: %w", err)
	}

	s.mu.Lock()
	if _, dup := s.allocations[replacement.ID]; dup {
		s.mu.Unlock()
		return nil, fmt.Errorf("SupersedeAllocation: %s: %w", replacement.ID, domain.ErrDuplicateID)
	}
	s.allocations[replacement.ID] = &allocationEntry{alloc: *replacement}
	s.audit[replacement.ID] = append(s.audit[replacement.ID], *created)
	s.audit[old.ID] = append(s.audit[old.ID], *superseded)
	s.mu.Unlock()

	e.alloc = old
	return &old, nil
}

// Snapshot copies the allocation and its postings under the allocation
// lock, so no write can land between the two reads.
func (s *LedgerStore) Snapshot(_ context.Context, id uuid.UUID) (*domain.Allocation, []domain.Posting, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, nil, fmt.Errorf("Snapshot: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.alloc
	return &a, slices.Clone(e.postings), nil
}

func (s *LedgerStore) AuditTrail(_ context.Context, allocationID uuid.UUID) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.allocations[allocationID]; !ok {
		return nil, fmt.Errorf("AuditTrail: %s: %w", allocationID, domain.ErrAllocationNotFound)
	}
	return slices.Clone(s.audit[allocationID]), nil
}

func (s *LedgerStore) entry(id uuid.UUID) (*allocationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.allocations[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrAllocationNotFound)
	}
	return e, nil
}

func (s *LedgerStore) entryForPosting(id uuid.UUID) (*allocationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allocID, ok := s.postingOf[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrPostingNotFound)
	}
	return s.allocations[allocID], nil
}

func (s *LedgerStore) appendAudit(allocationID uuid.UUID, ev domain.AuditEvent) {
	s.mu.Lock()
	s.audit[allocationID] = append(s.audit[allocationID], ev)
	s.mu.Unlock()
}

func indexOfPosting(postings []domain.Posting, id uuid.UUID) int {
	return slices.IndexFunc(postings, func(p domain.Posting) bool { return p.ID == id })
}
