package ledgerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
)

// Impl is the Postgres ledger.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a Postgres-backed repository. The db handed to each
// call wins over the default, so callers can pass a transaction.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) conn(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.db
}

func (r *Impl) Append(ctx context.Context, db bun.IDB, rec *ledgerdomain.Record) error {
	m := toModel(*rec)
	if _, err := r.conn(db).NewInsert().Model(m).Returning("seq").Exec(ctx); err != nil {
		return fmt.Errorf("ledgerdb.Append: %w", err)
	}
	rec.Seq = m.Seq
	return nil
}

func (r *Impl) List(ctx context.Context, db bun.IDB, kind ledgerdomain.Kind) ([]ledgerdomain.Record, error) {
	var rows []LedgerRecord
	err := r.conn(db).NewSelect().
		Model(&rows).
		Where("kind = ?", string(kind)).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledgerdb.List: %w", err)
	}
	out := make([]ledgerdomain.Record, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *Impl) Get(ctx context.Context, db bun.IDB, id uuid.UUID) (ledgerdomain.Record, error) {
	var row LedgerRecord
	err := r.conn(db).NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledgerdomain.Record{}, ErrNotFound
		}
		return ledgerdomain.Record{}, fmt.Errorf("ledgerdb.Get: %w", err)
	}
	return row.toDomain(), nil
}
