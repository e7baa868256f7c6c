// Package server assembles the HTTP surface: public health checks and docs at the
// root, and the authenticated ledger API under /api/v1/.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/josh-kwaku/opsledger/internal/domain"
	"github.com/josh-kwaku/opsledger/internal/handler"
	"github.com/josh-kwaku/opsledger/internal/metrics"
	"github.com/josh-kwaku/opsledger/internal/middleware"
)

type idempotencyStore interface {
	Get(ctx context.Context, key, actor string) (*domain.IdempotencyRecord, error)
	Set(ctx context.Context, rec *domain.IdempotencyRecord) error
}

type Deps struct {
	Allocations *handler.AllocationHandler
	Approvals   *handler.ApprovalHandler
	Health      *handler.HealthHandler
	Recorder    *metrics.Recorder
	Idempotency idempotencyStore
	Logger      *slog.Logger

	JWTSecret      string
	IdempotencyTTL time.Duration
	OpenAPISpec    []byte
}

func New(d Deps) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /api/v1/allocations", d.Allocations.Create)
	api.HandleFunc("GET /api/v1/allocations/{id}", d.Allocations.Get)
	api.HandleFunc("GET /api/v1/allocations/{id}/export", d.Allocations.Export)
	api.HandleFunc("GET /api/v1/allocations/{id}/audit", d.Allocations.Audit)
	api.HandleFunc("POST /api/v1/allocations/{id}/postings", d.Allocations.RecordPosting)
	api.HandleFunc("POST /api/v1/allocations/{id}/supersede", d.Allocations.Supersede)
	api.HandleFunc("POST /api/v1/postings/{id}/void", d.Allocations.VoidPosting)

	api.HandleFunc("POST /api/v1/approvals", d.Approvals.Create)
	api.HandleFunc("GET /api/v1/approvals/{id}", d.Approvals.Get)
	api.HandleFunc("PATCH /api/v1/approvals/{id}", d.Approvals.Edit)
	api.HandleFunc("POST /api/v1/approvals/{id}/submit", d.Approvals.Submit)
	api.HandleFunc("POST /api/v1/approvals/{id}/decision", d.Approvals.Decide)
	api.HandleFunc("POST /api/v1/approvals/{id}/withdraw", d.Approvals.Withdraw)

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Metrics sits innermost so it sees the pattern the api mux matched.
	protected := middleware.Chain(api,
		middleware.Recovery,
		middleware.Tracing,
		middleware.Auth(d.JWTSecret),
		middleware.Logging(logger),
		middleware.Idempotency(d.Idempotency, d.IdempotencyTTL),
		d.Recorder.Middleware,
	)

	root := http.NewServeMux()
	root.HandleFunc("GET /health/live", d.Health.Liveness)
	root.HandleFunc("GET /health/ready", d.Health.Readiness)
	root.Handle("GET /metrics", d.Recorder.Handler())
	if len(d.OpenAPISpec) > 0 {
		root.HandleFunc("GET /docs", handler.ServeDocs("/docs/openapi.yaml"))
		root.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(d.OpenAPISpec))
	}
	root.Handle("/api/v1/", protected)

	return middleware.Chain(root, middleware.Recovery)
}
