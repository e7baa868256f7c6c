package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/josh-kwaku/opsledger/internal/repository"
	"github.com/josh-kwaku/opsledger/migrations"
)

// SetupTestDB starts a throwaway postgres:16 container with the schema
// applied. Skipped under -short so unit runs need no docker.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("opsledger_test"),
		postgres.WithUsername("ledger"),
		postgres.WithPassword("ledger"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := repository.Connect(ctx, dsn, repository.PoolConfig{
		MaxOpenConns: 20,
		MaxIdleConns: 5,
	}, repository.ConnectOptions{Attempts: 10, Backoff: 500 * time.Millisecond})
	require.NoError(t, err, "connect to test database")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.Up(ctx, db), "apply migrations")
	return db
}
