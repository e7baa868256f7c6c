package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCommand(t *testing.T) {
	r := NewRecorder()
	r.ObserveCommand("record_posting", "ok", 3*time.Millisecond)
	r.ObserveCommand("record_posting", "over_budget", time.Millisecond)
	r.ObserveCommand("record_posting", "ok", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.commands.WithLabelValues("record_posting", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("record_posting", "over_budget")))
}

func TestMiddlewareLabelsByPattern(t *testing.T) {
	r := NewRecorder()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/allocations/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := r.Middleware(mux)

	for _, path := range []string{"/api/v1/allocations/a", "/api/v1/allocations/b", "/nope"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "/api/v1/allocations/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "unmatched", "404")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "opsledger_http_requests_total")
}
