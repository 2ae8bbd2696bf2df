package consensusdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository archives consensus snapshots.
//
// Error semantics:
//   - ErrNotFound: no snapshot matched
//   - Other errors: infrastructure failures
type Repository interface {
	// Save inserts a new snapshot.
	Save(ctx context.Context, db bun.IDB, snap *Snapshot) error

	// List returns up to limit snapshots, newest first, without leaderboards.
	List(ctx context.Context, db bun.IDB, limit int) ([]Snapshot, error)

	// Get returns one full snapshot.
	Get(ctx context.Context, db bun.IDB, id uuid.UUID) (Snapshot, error)

	// LatestFinalized returns the newest finalized snapshot.
	LatestFinalized(ctx context.Context, db bun.IDB) (Snapshot, error)
}
