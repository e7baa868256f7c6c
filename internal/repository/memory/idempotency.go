package memory

import (
	"context"
	"sync"
	"time"

	"github.com/josh-kwaku/opsledger/internal/domain"
)

type idempotencyKey struct {
	key   string
	actor string
}

type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[idempotencyKey]domain.IdempotencyRecord
	now     func() time.Time
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		entries: make(map[idempotencyKey]domain.IdempotencyRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns nil, nil when no live record exists.
func (s *IdempotencyStore) Get(_ context.Context, key, actor string) (*domain.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[idempotencyKey{key, actor}]
	if !ok || rec.Expired(s.now()) {
		return nil, nil
	}
	return &rec, nil
}

// Set keeps the first record for a key, like ON CONFLICT DO NOTHING.
func (s *IdempotencyStore) Set(_ context.Context, rec *domain.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idempotencyKey{rec.Key, rec.Actor}
	if cur, ok := s.entries[k]; ok && !cur.Expired(s.now()) {
		return nil
	}
	s.entries[k] = *rec
	return nil
}

func (s *IdempotencyStore) CleanExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for k, rec := range s.entries {
		if rec.Expired(now) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}
