package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/opsledger/internal/approval"
	"github.com/josh-kwaku/opsledger/internal/auth"
	"github.com/josh-kwaku/opsledger/internal/handler"
	"github.com/josh-kwaku/opsledger/internal/metrics"
	"github.com/josh-kwaku/opsledger/internal/repository/memory"
	"github.com/josh-kwaku/opsledger/internal/server"
	"github.com/josh-kwaku/opsledger/internal/service"
)

const secret = "server-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type client struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	recorder := metrics.NewRecorder()
	machine := approval.NewMachine(memory.NewApprovalStore(), nil)
	svc := service.NewReconciliation(memory.NewLedgerStore(), machine, recorder, nil)

	h := server.New(server.Deps{
		Allocations:    handler.NewAllocationHandler(svc),
		Approvals:      handler.NewApprovalHandler(svc),
		Health:         handler.NewHealthHandler(nil, "test"),
		Recorder:       recorder,
		Idempotency:    memory.NewIdempotencyStore(),
		JWTSecret:      secret,
		IdempotencyTTL: time.Hour,
		OpenAPISpec:    []byte("openapi: 3.0.3\n"),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func as(t *testing.T, srv *httptest.Server, actor string) *client {
	t.Helper()
	token, err := auth.GenerateToken(actor, "", secret, time.Hour)
	require.NoError(t, err)
	return &client{t: t, srv: srv, token: token}
}

func (c *client) do(method, path, key string, body any) (int, envelope, http.Header) {
	c.t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, buf)
	require.NoError(c.t, err)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env, resp.Header
}

func (c *client) post(path string, body any) (int, envelope) {
	c.t.Helper()
	status, env, _ := c.do(http.MethodPost, path, uuid.NewString(), body)
	return status, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type allocationView struct {
	ID string `json:"id"`
}

type summaryView struct {
	Consumed       string  `json:"consumed"`
	Remaining      string  `json:"remaining"`
	UtilizationPct int     `json:"utilization_pct"`
	Status         string  `json:"status"`
	ApprovalState  *string `json:"approval_state"`
	Active         bool    `json:"active"`
}

type approvalView struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	Version int64  `json:"version"`
}

func TestPublicRoutes(t *testing.T) {
	srv := newServer(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics", "/docs", "/docs/openapi.yaml"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/api/v1/allocations/" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAllocationLifecycle(t *testing.T) {
	srv := newServer(t)
	alice := as(t, srv, "alice")

	status, env := alice.post("/api/v1/allocations", map[string]any{
		"kind":         "budget",
		"total_amount": "100000",
		"currency":     "IDR",
		"owner_ref":    "dept-ops",
	})
	require.Equal(t, http.StatusCreated, status)
	alloc := decode[allocationView](t, env.Data)

	postings := "/api/v1/allocations/" + alloc.ID + "/postings"
	status, _ = alice.post(postings, map[string]any{"amount": "60000", "currency": "IDR"})
	require.Equal(t, http.StatusCreated, status)

	status, env = alice.post(postings, map[string]any{"amount": "50000", "currency": "IDR"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "OVER_BUDGET", env.Error.Code)

	details := decode[struct {
		Summary summaryView `json:"summary"`
	}](t, env.Error.Details)
	assert.Equal(t, "60000.00", details.Summary.Consumed)
	assert.Equal(t, "40000.00", details.Summary.Remaining)
	assert.Equal(t, 60, details.Summary.UtilizationPct)
	assert.Equal(t, "partial", details.Summary.Status)

	status, env, _ = alice.do(http.MethodGet, "/api/v1/allocations/"+alloc.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "60000.00", decode[summaryView](t, env.Data).Consumed)

	status, env, _ = alice.do(http.MethodGet, "/api/v1/allocations/"+alloc.ID+"/audit", "", nil)
	require.Equal(t, http.StatusOK, status)
	events := decode[[]struct {
		Action string `json:"action"`
	}](t, env.Data)
	require.Len(t, events, 2)
}

func TestIdempotentReplay(t *testing.T) {
	srv := newServer(t)
	alice := as(t, srv, "alice")
	body := map[string]any{
		"kind":         "budget",
		"total_amount": "500",
		"currency":     "USD",
		"owner_ref":    "dept-fleet",
	}

	status, first, _ := alice.do(http.MethodPost, "/api/v1/allocations", "create-1", body)
	require.Equal(t, http.StatusCreated, status)

	status, second, hdr := alice.do(http.MethodPost, "/api/v1/allocations", "create-1", body)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "true", hdr.Get("X-Idempotent-Replayed"))
	assert.Equal(t,
		decode[allocationView](t, first.Data).ID,
		decode[allocationView](t, second.Data).ID)

	body["total_amount"] = "600"
	status, conflict, _ := alice.do(http.MethodPost, "/api/v1/allocations", "create-1", body)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", conflict.Error.Code)
}

func TestAmountsRejectedBeforeReachingStorage(t *testing.T) {
	srv := newServer(t)
	alice := as(t, srv, "alice")

	status, env := alice.post("/api/v1/allocations", map[string]any{
		"kind":         "budget",
		"total_amount": "12345678901234567",
		"currency":     "USD",
		"owner_ref":    "dept-ops",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "AMOUNT_OUT_OF_RANGE", env.Error.Code)

	status, env = alice.post("/api/v1/allocations", map[string]any{
		"kind":         "budget",
		"total_amount": "1000",
		"currency":     "JPY",
		"owner_ref":    "dept-ops",
	})
	require.Equal(t, http.StatusCreated, status)
	alloc := decode[allocationView](t, env.Data)

	status, env = alice.post("/api/v1/allocations/"+alloc.ID+"/postings", map[string]any{"amount": "1e20", "currency": "JPY"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "AMOUNT_OUT_OF_RANGE", env.Error.Code)

	status, env = alice.post("/api/v1/allocations/"+alloc.ID+"/postings", map[string]any{"amount": "10.5", "currency": "JPY"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "AMOUNT_PRECISION", env.Error.Code)

	// Without a currency the replacement inherits JPY and the service checks precision.
	status, env = alice.post("/api/v1/allocations/"+alloc.ID+"/supersede", map[string]any{"total_amount": "2000.5"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "AMOUNT_PRECISION", env.Error.Code)

	status, env = alice.post("/api/v1/allocations/"+alloc.ID+"/supersede", map[string]any{"total_amount": "99999999999999999", "currency": "USD"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "AMOUNT_OUT_OF_RANGE", env.Error.Code)

	status, env, _ = alice.do(http.MethodGet, "/api/v1/allocations/"+alloc.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[summaryView](t, env.Data).Active)
}

func TestGatedAllocationFlow(t *testing.T) {
	srv := newServer(t)
	alice := as(t, srv, "alice")
	bob := as(t, srv, "bob")

	status, env := alice.post("/api/v1/approvals", map[string]any{
		"kind":        "budget_release",
		"subject_ref": "q3-fleet",
		"title":       "Q3 fleet fuel",
		"approvers":   []string{"bob"},
	})
	require.Equal(t, http.StatusCreated, status)
	gate := decode[approvalView](t, env.Data)
	assert.Equal(t, "draft", gate.State)

	status, env = alice.post("/api/v1/allocations", map[string]any{
		"kind":                 "budget",
		"total_amount":         "1000",
		"currency":             "IDR",
		"owner_ref":            "dept-fleet",
		"required_approval_id": gate.ID,
	})
	require.Equal(t, http.StatusCreated, status)
	alloc := decode[allocationView](t, env.Data)
	postings := "/api/v1/allocations/" + alloc.ID + "/postings"

	status, env = alice.post(postings, map[string]any{"amount": "10", "currency": "IDR"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "ALLOCATION_INACTIVE", env.Error.Code)

	status, env = bob.post("/api/v1/approvals/"+gate.ID+"/decision", map[string]any{"decision": "approve"})
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "NOT_SUBMITTED", env.Error.Code)

	status, _ = alice.post("/api/v1/approvals/"+gate.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = alice.post("/api/v1/approvals/"+gate.ID+"/decision", map[string]any{"decision": "approve"})
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "SELF_APPROVAL", env.Error.Code)

	status, env = bob.post("/api/v1/approvals/"+gate.ID+"/decision", map[string]any{"decision": "approve"})
	require.Equal(t, http.StatusOK, status)
	approved := decode[approvalView](t, env.Data)
	assert.Equal(t, "approved", approved.State)
	assert.Equal(t, int64(3), approved.Version)

	status, env = alice.post(postings, map[string]any{"amount": "10", "currency": "IDR"})
	require.Equal(t, http.StatusCreated, status, string(env.Data))

	status, env, _ = alice.do(http.MethodGet, "/api/v1/allocations/"+alloc.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	sum := decode[summaryView](t, env.Data)
	assert.True(t, sum.Active)
	require.NotNil(t, sum.ApprovalState)
	assert.Equal(t, "approved", *sum.ApprovalState)
}

func TestMetricsExposeRoutes(t *testing.T) {
	srv := newServer(t)
	alice := as(t, srv, "alice")

	status, _ := alice.post("/api/v1/allocations/"+uuid.NewString()+"/postings", map[string]any{"amount": "1", "currency": "IDR"})
	require.Equal(t, http.StatusNotFound, status)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `route="/api/v1/allocations/{id}/postings"`), "route label missing")
	assert.True(t, strings.Contains(text, `outcome="not_found"`), "command outcome missing")
}
