package consensusdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultListLimit applies when List is called with a non-positive limit.
const DefaultListLimit = 50

// Impl is the Postgres snapshot archive.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a Postgres-backed snapshot repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) conn(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.db
}

func (r *Impl) Save(ctx context.Context, db bun.IDB, snap *Snapshot) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	if _, err := r.conn(db).NewInsert().Model(snap).Exec(ctx); err != nil {
		return fmt.Errorf("consensusdb.Save: %w", err)
	}
	return nil
}

func (r *Impl) List(ctx context.Context, db bun.IDB, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var snaps []Snapshot
	err := r.conn(db).NewSelect().
		Model(&snaps).
		ExcludeColumn("leaderboard", "results_text").
		Order("computed_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("consensusdb.List: %w", err)
	}
	return snaps, nil
}

func (r *Impl) Get(ctx context.Context, db bun.IDB, id uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	err := r.conn(db).NewSelect().Model(&snap).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("consensusdb.Get: %w", err)
	}
	return snap, nil
}

func (r *Impl) LatestFinalized(ctx context.Context, db bun.IDB) (Snapshot, error) {
	var snap Snapshot
	err := r.conn(db).NewSelect().
		Model(&snap).
		Where("finalized = ?", true).
		Order("computed_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("consensusdb.LatestFinalized: %w", err)
	}
	return snap, nil
}
