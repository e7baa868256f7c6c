package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

type ApprovalStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]domain.ApprovalRequest
}

func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{requests: make(map[uuid.UUID]domain.ApprovalRequest)}
}

func (s *ApprovalStore) Create(_ context.Context, req *domain.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return fmt.Errorf("Create: %s: %w", req.ID, domain.ErrDuplicateID)
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *ApprovalStore) Get(_ context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("Get: %s: %w", id, domain.ErrApprovalNotFound)
	}
	out := cloneRequest(&req)
	return &out, nil
}

// UpdateDraft stores req if the stored copy is still a draft one version
// behind it.
func (s *ApprovalStore) UpdateDraft(_ context.Context, req *domain.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[req.ID]
	if !ok {
		return fmt.Errorf("UpdateDraft: %s: %w", req.ID, domain.ErrApprovalNotFound)
	}
	if cur.State != domain.ApprovalStateDraft || cur.Version != req.Version-1 {
		return fmt.Errorf("UpdateDraft: %s: %w", req.ID, domain.ErrVersionConflict)
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

// Transition stores req if the stored copy is still in tr.FromState at the
// version req was read at.
func (s *ApprovalStore) Transition(_ context.Context, req *domain.ApprovalRequest, tr domain.ApprovalTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[req.ID]
	if !ok {
		return fmt.Errorf("Transition: %s: %w", req.ID, domain.ErrApprovalNotFound)
	}
	if cur.State != tr.FromState || cur.Version != req.Version-1 {
		return fmt.Errorf("Transition: %s %s->%s: %w", req.ID, tr.FromState, tr.ToState, domain.ErrVersionConflict)
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func cloneRequest(req *domain.ApprovalRequest) domain.ApprovalRequest {
	out := *req
	out.Details = slices.Clone(req.Details)
	out.Approvers = slices.Clone(req.Approvers)
	out.History = slices.Clone(req.History)
	if req.SubmittedBy != nil {
		v := *req.SubmittedBy
		out.SubmittedBy = &v
	}
	return out
}
