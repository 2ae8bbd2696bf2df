// Package testutils starts the containers the integration tests run against.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/Black-And-White-Club/beauty-contest/app"
	"github.com/Black-And-White-Club/beauty-contest/integration_tests/containers"
)

// TestEnvironment is a migrated Postgres database.
type TestEnvironment struct {
	Ctx         context.Context
	PgContainer *postgres.PostgresContainer
	DSN         string
	DB          *bun.DB
	Logger      *slog.Logger
}

// appTables are truncated between tests. River's tables are left alone.
var appTables = []string{"ledger_records", "consensus_snapshots"}

// NewTestEnvironment starts Postgres, applies every migration and registers
// cleanup on t. It skips under -short.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("failed to setup postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open sql DB connection: %v", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := app.MigrateAll(ctx, db, dsn, logger); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &TestEnvironment{
		Ctx:         ctx,
		PgContainer: pgContainer,
		DSN:         dsn,
		DB:          db,
		Logger:      logger,
	}
}

// Reset truncates the application tables.
func (env *TestEnvironment) Reset(t *testing.T) {
	t.Helper()
	for _, table := range appTables {
		if _, err := env.DB.ExecContext(env.Ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
	if _, err := env.DB.ExecContext(env.Ctx, "DELETE FROM river_job"); err != nil {
		t.Fatalf("failed to clear river_job: %v", err)
	}
}
