package consensusqueue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	consensusservice "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/application"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

// Finalizer is the part of the consensus service the worker calls.
type Finalizer interface {
	Finalize(ctx context.Context, trigger string) (*consensusservice.Report, error)
}

// FinalizeWorker runs FinalizeJob.
type FinalizeWorker struct {
	river.WorkerDefaults[FinalizeJob]
	finalizer Finalizer
	logger    *slog.Logger
}

// NewFinalizeWorker creates a FinalizeWorker.
func NewFinalizeWorker(logger *slog.Logger, finalizer Finalizer) *FinalizeWorker {
	return &FinalizeWorker{finalizer: finalizer, logger: logger}
}

// Work archives and announces the final result. A failed ledger fetch is
// returned so River retries the job.
func (w *FinalizeWorker) Work(ctx context.Context, job *river.Job[FinalizeJob]) error {
	logger := w.logger.With(
		attr.Any("job_id", job.ID),
		attr.Time("reveal_close", job.Args.RevealClose),
	)
	logger.InfoContext(ctx, "Finalizing contest")

	report, err := w.finalizer.Finalize(ctx, consensusservice.TriggerSchedule)
	if err != nil {
		logger.ErrorContext(ctx, "Scheduled finalize failed", attr.Error(err))
		return fmt.Errorf("failed to finalize contest: %w", err)
	}

	logger.InfoContext(ctx, "Contest finalized",
		attr.String("snapshot_id", report.SnapshotID.String()),
		attr.Int("winners", len(report.Export.Summary.Winners)),
	)
	return nil
}
