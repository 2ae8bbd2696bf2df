package consensusservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	"github.com/Black-And-White-Club/beauty-contest/app/events"
	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	consensusdb "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/repositories"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

// ConsensusService implements Service.
type ConsensusService struct {
	ledger    LedgerReader
	ledgerURL string
	repo      consensusdb.Repository
	publisher message.Publisher
	clock     clock.Clock
	params    consensusdomain.Params
	logger    *slog.Logger
	metrics   observability.ConsensusMetrics
	tracer    trace.Tracer
	db        bun.IDB
}

// NewConsensusService creates a ConsensusService. repo and publisher may be
// nil, which disables archiving and announcements.
func NewConsensusService(
	ledger LedgerReader,
	ledgerURL string,
	repo consensusdb.Repository,
	publisher message.Publisher,
	clk clock.Clock,
	params consensusdomain.Params,
	logger *slog.Logger,
	metrics observability.ConsensusMetrics,
	tracer trace.Tracer,
	db bun.IDB,
) *ConsensusService {
	return &ConsensusService{
		ledger:    ledger,
		ledgerURL: ledgerURL,
		repo:      repo,
		publisher: publisher,
		clock:     clk,
		params:    params,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		db:        db,
	}
}

// withTelemetry wraps a service operation with tracing, logging, and panic recovery.
func withTelemetry[T any](
	s *ConsensusService,
	ctx context.Context,
	operationName string,
	op func(ctx context.Context) (T, error),
) (result T, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		s.logger.DebugContext(ctx, operationName+" finished",
			attr.String("operation", operationName),
			attr.Duration("duration", time.Since(start)),
			attr.ExtractCorrelationID(ctx),
		)
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.String("operation", operationName),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			span.RecordError(err)
			var zero T
			result = zero
		}
	}()

	result, err = op(ctx)
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("%s: %w", operationName, err)
	}
	return result, nil
}

func (s *ConsensusService) Params() consensusdomain.Params { return s.params }

func (s *ConsensusService) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	return withTelemetry(s, ctx, "Run", func(ctx context.Context) (*Report, error) {
		return s.run(ctx, opts)
	})
}

func (s *ConsensusService) Finalize(ctx context.Context, trigger string) (*Report, error) {
	return withTelemetry(s, ctx, "Finalize", func(ctx context.Context) (*Report, error) {
		return s.run(ctx, RunOptions{Trigger: trigger, Archive: true, Finalize: true})
	})
}

func (s *ConsensusService) run(ctx context.Context, opts RunOptions) (*Report, error) {
	start := time.Now()

	commits, reveals, err := s.fetch(ctx)
	if err != nil {
		s.metrics.RecordRun(ctx, observability.RunFailed, time.Since(start))
		s.logger.ErrorContext(ctx, "Consensus aborted, ledger unavailable",
			attr.String("trigger", opts.Trigger),
			attr.String("ledger_url", s.ledgerURL),
			attr.Error(err),
		)
		return nil, err
	}

	result := consensusdomain.RunConsensus(commits, reveals, s.params)
	report := &Report{
		ComputedAt: s.clock.Now(),
		Trigger:    opts.Trigger,
		Finalized:  opts.Finalize,
		LedgerURL:  s.ledgerURL,
		Result:     result,
		Export:     BuildExport(result),
	}

	outcome := observability.RunEmpty
	if result.Outcome != nil {
		outcome = observability.RunScored
	}
	s.metrics.RecordVerdicts(ctx, VerdictCounts(result))
	s.metrics.RecordParticipants(ctx, report.Export.Summary.Participants)
	s.metrics.RecordRun(ctx, outcome, time.Since(start))

	logAttrs := []any{
		attr.String("trigger", opts.Trigger),
		attr.Int("commit_rows", result.Stats.CommitRows),
		attr.Int("reveal_rows", result.Stats.RevealRows),
		attr.Int("entries", len(result.Entries)),
		attr.Int("valid", report.Export.Summary.Participants),
		attr.ExtractCorrelationID(ctx),
	}
	if result.Outcome != nil {
		logAttrs = append(logAttrs,
			attr.Float64("average", result.Outcome.Average),
			attr.Float64("target", result.Outcome.Target),
			attr.Int("winners", len(result.Outcome.Winners)),
		)
	}
	s.logger.InfoContext(ctx, "Consensus computed", logAttrs...)

	if opts.Archive || opts.Finalize {
		if err := s.archive(ctx, report); err != nil {
			return report, err
		}
	}

	if !opts.Announce && !opts.Finalize {
		return report, nil
	}
	topic := events.ConsensusComputedV1
	if opts.Finalize {
		topic = events.ConsensusFinalizedV1
	}
	if err := s.publish(ctx, topic, report); err != nil {
		if opts.Finalize {
			return report, fmt.Errorf("failed to announce final result: %w", err)
		}
		s.logger.WarnContext(ctx, "Failed to publish consensus event",
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
	return report, nil
}

// fetch reads both tables concurrently. Either failure aborts both.
func (s *ConsensusService) fetch(ctx context.Context) (commits, reveals []consensusdomain.Row, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.ledger.FetchTable(gctx, ledgerdomain.TableCommits)
		if err != nil {
			s.metrics.RecordFetchFailure(ctx, string(ledgerdomain.TableCommits))
			return err
		}
		commits = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.ledger.FetchTable(gctx, ledgerdomain.TableReveals)
		if err != nil {
			s.metrics.RecordFetchFailure(ctx, string(ledgerdomain.TableReveals))
			return err
		}
		reveals = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return commits, reveals, nil
}

func (s *ConsensusService) archive(ctx context.Context, report *Report) error {
	if s.repo == nil {
		return errors.New("no snapshot archive configured")
	}
	snap, err := NewSnapshot(report)
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, s.db, snap); err != nil {
		return fmt.Errorf("failed to archive snapshot: %w", err)
	}
	report.SnapshotID = snap.ID
	s.logger.InfoContext(ctx, "Archived consensus snapshot",
		attr.String("snapshot_id", snap.ID.String()),
		attr.Bool("finalized", snap.Finalized),
	)
	return nil
}

func (s *ConsensusService) publish(ctx context.Context, topic string, report *Report) error {
	if s.publisher == nil {
		return nil
	}
	msg, err := NewConsensusMessage(ctx, topic, report)
	if err != nil {
		return err
	}
	return s.publisher.Publish(topic, msg)
}

func (s *ConsensusService) ListSnapshots(ctx context.Context, limit int) ([]consensusdb.Snapshot, error) {
	return withTelemetry(s, ctx, "ListSnapshots", func(ctx context.Context) ([]consensusdb.Snapshot, error) {
		if s.repo == nil {
			return []consensusdb.Snapshot{}, nil
		}
		return s.repo.List(ctx, s.db, limit)
	})
}

func (s *ConsensusService) GetSnapshot(ctx context.Context, id uuid.UUID) (consensusdb.Snapshot, error) {
	return withTelemetry(s, ctx, "GetSnapshot", func(ctx context.Context) (consensusdb.Snapshot, error) {
		if s.repo == nil {
			return consensusdb.Snapshot{}, consensusdb.ErrNotFound
		}
		return s.repo.Get(ctx, s.db, id)
	})
}

// VerdictCounts tallies entries by reason.
func VerdictCounts(g consensusdomain.GameResult) map[string]int {
	counts := make(map[string]int, len(consensusdomain.Reasons))
	for _, e := range g.Entries {
		counts[string(e.Reason)]++
	}
	return counts
}

// NewSnapshot flattens a report for the archive.
func NewSnapshot(r *Report) (*consensusdb.Snapshot, error) {
	leaderboard, err := json.Marshal(r.Export.Leaderboard)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	sum := r.Export.Summary
	return &consensusdb.Snapshot{
		ID:           uuid.New(),
		ComputedAt:   r.ComputedAt,
		Trigger:      r.Trigger,
		Finalized:    r.Finalized,
		LedgerURL:    r.LedgerURL,
		KFactor:      r.Result.Params.KFactor,
		RangeMin:     r.Result.Params.Range.Min,
		RangeMax:     r.Result.Params.Range.Max,
		Participants: len(r.Result.Entries),
		Valid:        sum.Participants,
		Average:      sum.Average,
		Target:       sum.Target,
		MinDistance:  sum.MinDistance,
		Winners:      sum.Winners,
		Leaderboard:  leaderboard,
		ResultsText:  ResultsText(sum),
	}, nil
}

// NewConsensusMessage wraps the payload of r for topic.
func NewConsensusMessage(ctx context.Context, topic string, r *Report) (*message.Message, error) {
	return events.NewMessage(ctx, topic, NewConsensusPayload(r))
}

// NewConsensusPayload builds the event announcing a report.
func NewConsensusPayload(r *Report) events.ConsensusPayload {
	sum := r.Export.Summary
	p := events.ConsensusPayload{
		ComputedAt:   r.ComputedAt,
		KFactor:      sum.KFactor,
		Participants: len(r.Result.Entries),
		Valid:        sum.Participants,
		Average:      sum.Average,
		Target:       sum.Target,
		MinDistance:  sum.MinDistance,
		Winners:      make([]events.WinnerPayload, 0, len(sum.Winners)),
	}
	if r.SnapshotID != uuid.Nil {
		p.SnapshotID = r.SnapshotID.String()
	}
	for _, w := range sum.Winners {
		p.Winners = append(p.Winners, events.WinnerPayload{UniID: w.Identity, Number: w.Number, Distance: w.Distance})
	}
	return p
}
