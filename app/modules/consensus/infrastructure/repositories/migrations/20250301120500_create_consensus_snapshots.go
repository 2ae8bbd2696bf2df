package consensusmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	consensusdb "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating consensus_snapshots table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewCreateTable().Model((*consensusdb.Snapshot)(nil)).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create consensus_snapshots: %w", err)
			}
			for _, stmt := range []string{
				`CREATE INDEX IF NOT EXISTS idx_consensus_snapshots_computed_at ON consensus_snapshots(computed_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_consensus_snapshots_finalized ON consensus_snapshots(finalized, computed_at DESC)`,
			} {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to index consensus_snapshots: %w", err)
				}
			}
			fmt.Println("consensus_snapshots table created successfully!")
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping consensus_snapshots table...")

		if _, err := db.NewDropTable().Model((*consensusdb.Snapshot)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}

		fmt.Println("consensus_snapshots table dropped successfully!")
		return nil
	})
}
