package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/josh-kwaku/opsledger/internal/auth"
	"github.com/josh-kwaku/opsledger/internal/domain"
	"github.com/josh-kwaku/opsledger/internal/handler"
	"github.com/josh-kwaku/opsledger/internal/logging"
)

const maxCommandBody = 1 << 20

type idempotencyStore interface {
	Get(ctx context.Context, key, actor string) (*domain.IdempotencyRecord, error)
	Set(ctx context.Context, rec *domain.IdempotencyRecord) error
}

type inflightKey struct{ actor, key string }

type idempotency struct {
	store    idempotencyStore
	ttl      time.Duration
	inflight sync.Map
}

// Idempotency makes every mutating request carry an Idempotency-Key. A repeat
// of a completed request from the same actor gets the stored response; the
// same key with a different body, or while the first is still running, is
// rejected. 5xx responses are not stored so the client can retry.
func Idempotency(store idempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	m := &idempotency{store: store, ttl: ttl}
	return m.wrap
}

func (m *idempotency) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
			return
		}
		actor, ok := auth.ActorFromContext(r.Context())
		if !ok {
			handler.RespondAppError(w, handler.ErrMissingToken, nil)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBody))
		if err != nil {
			handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		ik := inflightKey{actor: actor, key: key}
		if _, busy := m.inflight.LoadOrStore(ik, struct{}{}); busy {
			handler.RespondAppError(w, handler.ErrIdempotencyInFlight, nil)
			return
		}
		defer m.inflight.Delete(ik)

		log := logging.FromContext(r.Context()).With("idempotency_key", key)
		hash := requestHash(r.Method, r.URL.Path, body)

		cached, err := m.store.Get(r.Context(), key, actor)
		if err != nil {
			log.Error("idempotency lookup failed", "error", err)
			handler.RespondAppError(w, handler.ErrInternalError, nil)
			return
		}
		if cached != nil {
			if cached.RequestHash != hash {
				handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
				return
			}
			replay(w, cached)
			return
		}

		capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(capture, r)
		if capture.status >= http.StatusInternalServerError {
			return
		}

		now := time.Now().UTC()
		rec := &domain.IdempotencyRecord{
			Key:          key,
			Actor:        actor,
			RequestHash:  hash,
			StatusCode:   capture.status,
			ResponseBody: capture.body.Bytes(),
			CreatedAt:    now,
			ExpiresAt:    now.Add(m.ttl),
		}
		if err := m.store.Set(r.Context(), rec); err != nil {
			log.Error("idempotency store failed", "error", err)
		}
	})
}

func replay(w http.ResponseWriter, rec *domain.IdempotencyRecord) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotent-Replayed", "true")
	w.WriteHeader(rec.StatusCode)
	w.Write(rec.ResponseBody)
}

func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	io.WriteString(h, method)
	io.WriteString(h, " ")
	io.WriteString(h, path)
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// captureWriter tees the response so it can be stored after the handler
// returns.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
