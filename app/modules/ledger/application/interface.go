package ledgerservice

import (
	"context"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
)

// Service is the append-only ledger.
type Service interface {
	// Submit validates a submission against shape and phase rules, stamps it
	// with the ledger clock and appends it.
	Submit(ctx context.Context, sub ledgerdomain.Submission) (ledgerdomain.Record, error)

	// Table returns every row of a table in arrival order.
	Table(ctx context.Context, table ledgerdomain.Table) ([]ledgerdomain.Record, error)

	// FetchTable returns a table as consensus rows.
	FetchTable(ctx context.Context, table ledgerdomain.Table) ([]consensusdomain.Row, error)

	// Status reports the phase windows at the current instant.
	Status(ctx context.Context) ledgerdomain.Status
}
