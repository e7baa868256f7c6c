package memory

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/opsledger/internal/domain"
	"github.com/josh-kwaku/opsledger/internal/reconcile"
	"github.com/josh-kwaku/opsledger/internal/testutil"
)

func TestLedgerStore_CreateAllocation(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore()

	a := testutil.NewAllocation("100000")
	require.NoError(t, s.CreateAllocation(ctx, a))

	err := s.CreateAllocation(ctx, a)
	require.ErrorIs(t, err, domain.ErrDuplicateID)

	bad := testutil.NewAllocation("-1")
	require.ErrorIs(t, s.CreateAllocation(ctx, bad), domain.ErrInvalidAmount)

	got, err := s.GetAllocation(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(a.TotalAmount))

	_, err = s.GetAllocation(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrAllocationNotFound)
}

func TestLedgerStore_SettleAndVoid(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore()
	a := testutil.NewAllocation("100000")
	require.NoError(t, s.CreateAllocation(ctx, a))

	first := testutil.NewPosting(a.ID, "60000")
	require.NoError(t, s.RecordPosting(ctx, first))
	require.ErrorIs(t, s.RecordPosting(ctx, testutil.NewPosting(a.ID, "50000")), domain.ErrOverBudget)
	require.NoError(t, s.RecordPosting(ctx, testutil.NewPosting(a.ID, "40000")))

	alloc, postings, err := s.Snapshot(ctx, a.ID)
	require.NoError(t, err)
	totals := reconcile.Compute(alloc.TotalAmount, postings)
	assert.Equal(t, domain.SettlementSettled, totals.Status)

	voided, err := s.VoidPosting(ctx, first.ID, domain.VoidRequest{Actor: "carol", Reason: "duplicate", At: testutil.T0})
	require.NoError(t, err)
	assert.True(t, voided.Voided)
	require.NotNil(t, voided.VoidReason)
	assert.Equal(t, "duplicate", *voided.VoidReason)

	_, err = s.VoidPosting(ctx, first.ID, domain.VoidRequest{Actor: "carol", At: testutil.T0})
	require.ErrorIs(t, err, domain.ErrAlreadyVoided)

	_, err = s.VoidPosting(ctx, uuid.New(), domain.VoidRequest{Actor: "carol", At: testutil.T0})
	require.ErrorIs(t, err, domain.ErrPostingNotFound)

	alloc, postings, err = s.Snapshot(ctx, a.ID)
	require.NoError(t, err)
	totals = reconcile.Compute(alloc.TotalAmount, postings)
	assert.Equal(t, domain.SettlementPartial, totals.Status)
	assert.Equal(t, "40000", totals.Consumed.String())
	assert.Len(t, postings, 3)

	trail, err := s.AuditTrail(ctx, a.ID)
	require.NoError(t, err)
	actions := make([]domain.AuditAction, 0, len(trail))
	for _, ev := range trail {
		actions = append(actions, ev.Action)
	}
	assert.Equal(t, []domain.AuditAction{
		domain.AuditAllocationCreated,
		domain.AuditPostingRecorded,
		domain.AuditPostingRecorded,
		domain.AuditPostingVoided,
	}, actions)
}

func TestLedgerStore_DuplicatePosting(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore()
	a := testutil.NewAllocation("100")
	require.NoError(t, s.CreateAllocation(ctx, a))

	p := testutil.NewPosting(a.ID, "10")
	require.NoError(t, s.RecordPosting(ctx, p))
	require.ErrorIs(t, s.RecordPosting(ctx, p), domain.ErrDuplicateID)
}

func TestLedgerStore_Supersede(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore()
	old := testutil.NewAllocation("100000")
	require.NoError(t, s.CreateAllocation(ctx, old))
	require.NoError(t, s.RecordPosting(ctx, testutil.NewPosting(old.ID, "30000")))

	replacement := testutil.NewAllocation("150000")
	retired, err := s.SupersedeAllocation(ctx, old.ID, replacement, "alice", testutil.T0.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, retired.SupersededByID)
	assert.Equal(t, replacement.ID, *retired.SupersededByID)

	got, err := s.GetAllocation(ctx, replacement.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SupersedesID)
	assert.Equal(t, old.ID, *got.SupersedesID)

	err = s.RecordPosting(ctx, testutil.NewPosting(old.ID, "1"))
	require.ErrorIs(t, err, domain.ErrAllocationInactive)

	_, err = s.SupersedeAllocation(ctx, old.ID, testutil.NewAllocation("1"), "alice", testutil.T0)
	require.ErrorIs(t, err, domain.ErrAlreadySuperseded)

	_, postings, err := s.Snapshot(ctx, replacement.ID)
	require.NoError(t, err)
	assert.Empty(t, postings)
}

// Random concurrent records and voids must never push live consumption
// past the allocation total.
func TestLedgerStore_ConcurrentInterleavings(t *testing.T) {
	ctx := context.Background()

	for round := range 20 {
		t.Run(fmt.Sprintf("round_%d", round), func(t *testing.T) {
			s := NewLedgerStore()
			a := testutil.NewAllocation("1000")
			require.NoError(t, s.CreateAllocation(ctx, a))

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				recorded []uuid.UUID
			)
			for w := range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					rng := rand.New(rand.NewPCG(uint64(round), uint64(w)))
					for range 50 {
						if rng.IntN(4) == 0 {
							mu.Lock()
							if len(recorded) == 0 {
								mu.Unlock()
								continue
							}
							id := recorded[rng.IntN(len(recorded))]
							mu.Unlock()
							_, err := s.VoidPosting(ctx, id, domain.VoidRequest{Actor: "w", At: testutil.T0})
							if err != nil && !errors.Is(err, domain.ErrAlreadyVoided) {
								t.Errorf("void: %v", err)
							}
							continue
						}
						p := testutil.NewPosting(a.ID, fmt.Sprint(1+rng.IntN(200)))
						err := s.RecordPosting(ctx, p)
						switch {
						case err == nil:
							mu.Lock()
							recorded = append(recorded, p.ID)
							mu.Unlock()
						case !errors.Is(err, domain.ErrOverBudget):
							t.Errorf("record: %v", err)
						}
					}
				}()
			}
			wg.Wait()

			alloc, postings, err := s.Snapshot(ctx, a.ID)
			require.NoError(t, err)
			totals := reconcile.Compute(alloc.TotalAmount, postings)
			assert.True(t, totals.Consumed.LessThanOrEqual(alloc.TotalAmount),
				"consumed %s exceeds total %s", totals.Consumed, alloc.TotalAmount)
			assert.False(t, totals.Remaining.IsNegative())
		})
	}
}
