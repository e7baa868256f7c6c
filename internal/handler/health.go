package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 2 * time.Second

type HealthHandler struct {
	storage pinger
	version string
}

// NewHealthHandler takes the storage backend to ping on readiness. A nil
// storage (in-memory mode) is always ready.
func NewHealthHandler(storage pinger, version string) *HealthHandler {
	return &HealthHandler{storage: storage, version: version}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	storageStatus := "ok"
	httpStatus := http.StatusOK

	if h.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := h.storage.Ping(ctx); err != nil {
			slog.Warn("readiness check failed: storage unreachable", "error", err)
			storageStatus = "down"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": map[string]string{
			"storage": storageStatus,
		},
	})
}
