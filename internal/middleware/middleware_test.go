package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/opsledger/internal/auth"
	"github.com/josh-kwaku/opsledger/internal/handler"
	"github.com/josh-kwaku/opsledger/internal/repository/memory"
)

const testSecret = "middleware-secret"

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestAuth(t *testing.T) {
	valid, err := auth.GenerateToken("emp-1", "", testSecret, time.Hour)
	require.NoError(t, err)

	var seen string
	h := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"missing header", "", http.StatusUnauthorized, "MISSING_TOKEN"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"valid", "Bearer " + valid, http.StatusNoContent, ""},
		{"lowercase scheme", "bearer " + valid, http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeError(t, rec))
				return
			}
			assert.Equal(t, "emp-1", seen)
		})
	}
}

func TestIdempotency(t *testing.T) {
	var calls atomic.Int32
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		handler.RespondSuccess(w, http.StatusCreated, map[string]any{"call": n, "echo": string(body)})
	})
	h := Idempotency(memory.NewIdempotencyStore(), time.Hour)(next)

	do := func(actor, key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/allocations", strings.NewReader(body))
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		req = req.WithContext(auth.ContextWithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := do("alice", "k1", `{"a":1}`)
	require.Equal(t, http.StatusCreated, first.Code)

	replay := do("alice", "k1", `{"a":1}`)
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("X-Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, int32(1), calls.Load())

	conflict := do("alice", "k1", `{"a":2}`)
	require.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", decodeError(t, conflict))

	other := do("bob", "k1", `{"a":2}`)
	require.Equal(t, http.StatusCreated, other.Code)
	assert.Equal(t, int32(2), calls.Load())

	missing := do("alice", "", `{}`)
	require.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Equal(t, "MISSING_IDEMPOTENCY_KEY", decodeError(t, missing))
}

func TestIdempotency_DoesNotCacheServerErrors(t *testing.T) {
	var calls atomic.Int32
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			handler.RespondAppError(w, handler.ErrInternalError, nil)
			return
		}
		handler.RespondSuccess(w, http.StatusOK, nil)
	})
	h := Idempotency(memory.NewIdempotencyStore(), time.Hour)(next)

	for i, want := range []int{http.StatusInternalServerError, http.StatusOK} {
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "retry")
		req = req.WithContext(auth.ContextWithActor(req.Context(), "alice"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, fmt.Sprintf("attempt %d", i+1))
	}
}

func TestRecoveryAndTracing(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recovery, Tracing, Logging(slog.Default()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec))
}

func TestIdempotency_RejectsConcurrentDuplicate(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		handler.RespondSuccess(w, http.StatusCreated, nil)
	})
	h := Idempotency(memory.NewIdempotencyStore(), time.Hour)(next)

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "same")
		return req.WithContext(auth.ContextWithActor(req.Context(), "alice"))
	}

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newReq())
		done <- rec.Code
	}()
	<-entered

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newReq())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IDEMPOTENCY_IN_FLIGHT", decodeError(t, rec))

	close(release)
	assert.Equal(t, http.StatusCreated, <-done)
}
