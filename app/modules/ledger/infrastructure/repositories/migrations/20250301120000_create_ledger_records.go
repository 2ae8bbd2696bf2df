package ledgermigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	ledgerdb "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating ledger_records table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewCreateTable().Model((*ledgerdb.LedgerRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create ledger_records: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				CREATE INDEX IF NOT EXISTS idx_ledger_records_kind_seq ON ledger_records(kind, seq);
			`); err != nil {
				return fmt.Errorf("failed to index ledger_records: %w", err)
			}
			fmt.Println("ledger_records table created successfully!")
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping ledger_records table...")

		if _, err := db.NewDropTable().Model((*ledgerdb.LedgerRecord)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}

		fmt.Println("ledger_records table dropped successfully!")
		return nil
	})
}
