package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/josh-kwaku/opsledger/internal/config"
	"github.com/josh-kwaku/opsledger/internal/repository"
)

// Postgres may still be starting when the service boots under compose.
var waitForDB = repository.ConnectOptions{Attempts: 30, Backoff: time.Second}

func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return repository.Connect(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
		ConnMaxIdleTime: cfg.ConnMaxIdleTime(),
	}, waitForDB)
}
