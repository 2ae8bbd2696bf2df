package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	consensusqueue "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/queue"
	consensusmigrations "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/repositories/migrations"
	ledgermigrations "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/repositories/migrations"
)

// ModuleMigrator is one module's migrator.
type ModuleMigrator struct {
	Name     string
	Migrator *migrate.Migrator
}

// Migrators returns the module migrators in apply order. Each module keeps its
// own bookkeeping tables so rollbacks stay per module.
func Migrators(db *bun.DB) []ModuleMigrator {
	newMigrator := func(name string, m *migrate.Migrations) ModuleMigrator {
		return ModuleMigrator{
			Name: name,
			Migrator: migrate.NewMigrator(db, m,
				migrate.WithTableName(name+"_migrations"),
				migrate.WithLocksTableName(name+"_migration_locks"),
			),
		}
	}
	return []ModuleMigrator{
		newMigrator("ledger", ledgermigrations.Migrations),
		newMigrator("consensus", consensusmigrations.Migrations),
	}
}

// MigrateAll runs River's migrations and then every module's.
func MigrateAll(ctx context.Context, db *bun.DB, dsn string, logger *slog.Logger) error {
	if err := consensusqueue.Migrate(ctx, dsn); err != nil {
		return err
	}
	logger.InfoContext(ctx, "River queue migrations completed")

	for _, mm := range Migrators(db) {
		if err := mm.Migrator.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize %s migration tables: %w", mm.Name, err)
		}
		group, err := mm.Migrator.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", mm.Name, err)
		}
		if group.IsZero() {
			logger.InfoContext(ctx, "No new migrations", slog.String("module", mm.Name))
		} else {
			logger.InfoContext(ctx, "Migrated module", slog.String("module", mm.Name), slog.String("group", group.String()))
		}
	}
	return nil
}
