package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

func TestApprovalStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewApprovalStore()

	req := &domain.ApprovalRequest{
		ID:         uuid.New(),
		Kind:       domain.ApprovalKindPurchaseOrder,
		SubjectRef: "po-17",
		State:      domain.ApprovalStateDraft,
		CreatedBy:  "alice",
		Version:    1,
	}
	require.NoError(t, s.Create(ctx, req))
	require.ErrorIs(t, s.Create(ctx, req), domain.ErrDuplicateID)

	winner, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	loser, err := s.Get(ctx, req.ID)
	require.NoError(t, err)

	tr := domain.ApprovalTransition{Seq: 1, Actor: "alice", FromState: domain.ApprovalStateDraft, ToState: domain.ApprovalStateSubmitted}
	winner.State = domain.ApprovalStateSubmitted
	winner.Version++
	winner.History = append(winner.History, tr)
	require.NoError(t, s.Transition(ctx, winner, tr))

	loser.State = domain.ApprovalStateSubmitted
	loser.Version++
	err = s.Transition(ctx, loser, tr)
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	got, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStateSubmitted, got.State)
	assert.Len(t, got.History, 1)

	got.Title = "changed"
	got.Version++
	require.ErrorIs(t, s.UpdateDraft(ctx, got), domain.ErrVersionConflict)

	_, err = s.Get(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrApprovalNotFound)
}

func TestApprovalStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewApprovalStore()
	req := &domain.ApprovalRequest{ID: uuid.New(), State: domain.ApprovalStateDraft, Approvers: []string{"bob"}, Version: 1}
	require.NoError(t, s.Create(ctx, req))

	got, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	got.Approvers[0] = "mallory"

	again, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, again.Approvers)
}
