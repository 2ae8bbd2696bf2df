package ledgerdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
)

// Repository is the append-only ledger store. List returns rows in arrival
// order, which consensus relies on for tie-breaking.
//
// Error semantics:
//   - ErrNotFound: Get found no record with the id
//   - Other errors: infrastructure failures
type Repository interface {
	// Append stores rec and fills in its sequence number.
	Append(ctx context.Context, db bun.IDB, rec *ledgerdomain.Record) error

	// List returns every record of kind in arrival order.
	List(ctx context.Context, db bun.IDB, kind ledgerdomain.Kind) ([]ledgerdomain.Record, error)

	// Get returns one record by id.
	Get(ctx context.Context, db bun.IDB, id uuid.UUID) (ledgerdomain.Record, error)
}
