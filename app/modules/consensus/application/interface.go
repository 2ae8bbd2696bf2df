package consensusservice

import (
	"context"
	"time"

	"github.com/google/uuid"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	consensusdb "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/repositories"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
)

// LedgerReader reads one ledger table as loose rows in arrival order.
type LedgerReader interface {
	FetchTable(ctx context.Context, table ledgerdomain.Table) ([]consensusdomain.Row, error)
}

// Triggers recorded on reports and snapshots.
const (
	TriggerCLI      = "cli"
	TriggerAPI      = "api"
	TriggerEvent    = "event"
	TriggerAdmin    = "admin"
	TriggerSchedule = "schedule"
)

// RunOptions control one run.
type RunOptions struct {
	Trigger string
	// Archive stores a snapshot of the run.
	Archive bool
	// Announce publishes the computed result.
	Announce bool
	// Finalize archives the run as final and announces it.
	Finalize bool
}

// Report is one computed contest plus its export tables.
type Report struct {
	// SnapshotID is uuid.Nil unless the run was archived.
	SnapshotID uuid.UUID
	ComputedAt time.Time
	Trigger    string
	Finalized  bool
	LedgerURL  string
	Result     consensusdomain.GameResult
	Export     Export
}

// Service computes contests from the ledger.
type Service interface {
	// Run fetches both ledger tables, runs consensus and optionally archives
	// and announces the result. Only the fetch can fail the computation.
	Run(ctx context.Context, opts RunOptions) (*Report, error)

	// Finalize is Run with archiving and the finalized announcement.
	Finalize(ctx context.Context, trigger string) (*Report, error)

	// ListSnapshots returns archived runs, newest first.
	ListSnapshots(ctx context.Context, limit int) ([]consensusdb.Snapshot, error)

	// GetSnapshot returns one archived run.
	GetSnapshot(ctx context.Context, id uuid.UUID) (consensusdb.Snapshot, error)

	// Params returns the contest parameters in use.
	Params() consensusdomain.Params
}
