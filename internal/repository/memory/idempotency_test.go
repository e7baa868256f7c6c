package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	rec := &domain.IdempotencyRecord{
		Key: "k1", Actor: "alice", RequestHash: "h1", StatusCode: 201,
		ResponseBody: []byte(`{}`), CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, s.Set(ctx, rec))

	got, err := s.Get(ctx, "k1", "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "h1", got.RequestHash)

	other, err := s.Get(ctx, "k1", "bob")
	require.NoError(t, err)
	assert.Nil(t, other, "keys are scoped per actor")

	second := *rec
	second.RequestHash = "h2"
	require.NoError(t, s.Set(ctx, &second))
	got, err = s.Get(ctx, "k1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.RequestHash, "first write wins")

	now = now.Add(2 * time.Hour)
	got, err = s.Get(ctx, "k1", "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := s.CleanExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
