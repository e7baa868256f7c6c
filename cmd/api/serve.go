package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/opsledger/api"
	"github.com/josh-kwaku/opsledger/internal/approval"
	"github.com/josh-kwaku/opsledger/internal/config"
	"github.com/josh-kwaku/opsledger/internal/domain"
	"github.com/josh-kwaku/opsledger/internal/handler"
	"github.com/josh-kwaku/opsledger/internal/logging"
	"github.com/josh-kwaku/opsledger/internal/metrics"
	"github.com/josh-kwaku/opsledger/internal/repository"
	"github.com/josh-kwaku/opsledger/internal/repository/memory"
	"github.com/josh-kwaku/opsledger/internal/server"
	"github.com/josh-kwaku/opsledger/internal/service"
	"github.com/josh-kwaku/opsledger/migrations"
)

func init() {
	serveCmd.Flags().Bool("migrate", false, "Apply database migrations before serving (postgres only)")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

type idempotencyCache interface {
	Get(ctx context.Context, key, actor string) (*domain.IdempotencyRecord, error)
	Set(ctx context.Context, rec *domain.IdempotencyRecord) error
	CleanExpired(ctx context.Context) (int64, error)
}

type backend struct {
	svc    *service.Reconciliation
	cache  idempotencyCache
	health *handler.HealthHandler
	close  func()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := logging.Init("opsledger", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrate, _ := cmd.Flags().GetBool("migrate")
	recorder := metrics.NewRecorder()

	be, err := openBackend(ctx, cfg, recorder, migrate)
	if err != nil {
		logger.Error("failed to initialise storage", "backend", cfg.StorageBackend, "error", err)
		return err
	}
	defer be.close()

	sweeper := service.NewIdempotencySweeper(be.cache, logger.With("worker", "idempotency_sweeper"), cfg.IdempotencySweepInterval)
	go sweeper.Start(ctx)

	h := server.New(server.Deps{
		Allocations:    handler.NewAllocationHandler(be.svc),
		Approvals:      handler.NewApprovalHandler(be.svc),
		Health:         be.health,
		Recorder:       recorder,
		Idempotency:    be.cache,
		Logger:         logger,
		JWTSecret:      cfg.JWTSecret,
		IdempotencyTTL: cfg.IdempotencyTTL,
		OpenAPISpec:    api.Spec,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr, "storage", cfg.StorageBackend, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, observer service.CommandObserver, migrate bool) (*backend, error) {
	if cfg.StorageBackend == config.StorageMemory {
		approvals := approval.NewMachine(memory.NewApprovalStore(), nil)
		return &backend{
			svc:    service.NewReconciliation(memory.NewLedgerStore(), approvals, observer, nil),
			cache:  memory.NewIdempotencyStore(),
			health: handler.NewHealthHandler(nil, version),
			close:  func() {},
		}, nil
	}

	pool, err := connectDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := migrations.Up(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("openBackend: %w", err)
		}
	}

	db := repository.NewDB(pool)
	approvals := approval.NewMachine(repository.NewApprovalRepository(db), nil)
	return &backend{
		svc:    service.NewReconciliation(repository.NewLedgerStore(db), approvals, observer, nil),
		cache:  repository.NewIdempotencyRepository(pool),
		health: handler.NewHealthHandler(db, version),
		close:  func() { pool.Close() },
	}, nil
}
