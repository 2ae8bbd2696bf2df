package ledgerservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	"github.com/Black-And-White-Club/beauty-contest/app/events"
	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/repositories"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

// Append outcomes recorded in metrics.
const (
	outcomeAccepted = "accepted"
	outcomeInvalid  = "invalid"
	outcomeWindow   = "window_closed"
	outcomeError    = "error"
)

// LedgerService implements Service.
type LedgerService struct {
	repo      ledgerdb.Repository
	publisher message.Publisher
	clock     clock.Clock
	schedule  ledgerdomain.Schedule
	logger    *slog.Logger
	metrics   observability.LedgerMetrics
	tracer    trace.Tracer
	db        bun.IDB

	// mu serializes stamping and appending; lastStamp is the newest stamp
	// handed out.
	mu        sync.Mutex
	lastStamp time.Time
}

// NewLedgerService creates a LedgerService. db may be nil for the in-memory
// repository.
func NewLedgerService(
	repo ledgerdb.Repository,
	publisher message.Publisher,
	clk clock.Clock,
	schedule ledgerdomain.Schedule,
	logger *slog.Logger,
	metrics observability.LedgerMetrics,
	tracer trace.Tracer,
	db bun.IDB,
) *LedgerService {
	return &LedgerService{
		repo:      repo,
		publisher: publisher,
		clock:     clk,
		schedule:  schedule,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		db:        db,
	}
}

// withTelemetry wraps a service operation with tracing, logging, and panic recovery.
func withTelemetry[T any](
	s *LedgerService,
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

func (s *LedgerService) Submit(ctx context.Context, sub ledgerdomain.Submission) (ledgerdomain.Record, error) {
	return withTelemetry(s, ctx, "Submit", func(ctx context.Context) (ledgerdomain.Record, error) {
		sub = sub.Normalize()
		kind := string(sub.Kind)

		if err := sub.Validate(); err != nil {
			s.metrics.RecordAppend(ctx, kind, outcomeInvalid)
			s.logger.InfoContext(ctx, "Rejected invalid submission",
				attr.Identity(sub.Identity),
				attr.String("kind", kind),
				attr.Error(err),
			)
			return ledgerdomain.Record{}, err
		}

		now := s.clock.Now()
		if err := s.schedule.Check(sub.Kind, now); err != nil {
			s.metrics.RecordAppend(ctx, kind, outcomeWindow)
			s.logger.InfoContext(ctx, "Rejected submission outside its window",
				attr.Identity(sub.Identity),
				attr.String("kind", kind),
				attr.Time("now", now),
				attr.Error(err),
			)
			return ledgerdomain.Record{}, err
		}

		s.mu.Lock()
		rec := ledgerdomain.NewRecord(sub, s.nextStamp(now))
		err := s.repo.Append(ctx, s.db, &rec)
		if err == nil {
			s.lastStamp = rec.Timestamp
		}
		s.mu.Unlock()
		if err != nil {
			s.metrics.RecordAppend(ctx, kind, outcomeError)
			return ledgerdomain.Record{}, fmt.Errorf("failed to append record: %w", err)
		}
		s.metrics.RecordAppend(ctx, kind, outcomeAccepted)

		s.logger.InfoContext(ctx, "Appended ledger record",
			attr.String("record_id", rec.ID.String()),
			attr.Identity(rec.Identity),
			attr.String("kind", kind),
			attr.Any("seq", rec.Seq),
			attr.ExtractCorrelationID(ctx),
		)

		// The row is durable at this point; a lost notification only delays
		// reactive recomputes.
		if err := s.publishAppended(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish record appended event",
				attr.String("record_id", rec.ID.String()),
				attr.Error(err),
			)
		}
		return rec, nil
	})
}

// nextStamp returns now at ledger precision, moved past the previous stamp
// when needed. Every row is stamped strictly after the rows appended before
// it, so a commit can never share an instant with an earlier reveal.
func (s *LedgerService) nextStamp(now time.Time) time.Time {
	stamp := now.UTC().Truncate(ledgerdomain.StampPrecision)
	if !stamp.After(s.lastStamp) {
		stamp = s.lastStamp.Add(ledgerdomain.StampPrecision)
	}
	return stamp
}

func (s *LedgerService) publishAppended(ctx context.Context, rec ledgerdomain.Record) error {
	if s.publisher == nil {
		return nil
	}
	msg, err := events.NewMessage(ctx, events.LedgerRecordAppendedV1, events.RecordAppendedPayload{
		RecordID:  rec.ID.String(),
		Seq:       rec.Seq,
		Kind:      string(rec.Kind),
		UniID:     rec.Identity,
		Timestamp: rec.Timestamp,
	})
	if err != nil {
		return err
	}
	return s.publisher.Publish(events.LedgerRecordAppendedV1, msg)
}

func (s *LedgerService) Table(ctx context.Context, table ledgerdomain.Table) ([]ledgerdomain.Record, error) {
	return withTelemetry(s, ctx, "Table", func(ctx context.Context) ([]ledgerdomain.Record, error) {
		if _, err := ledgerdomain.ParseTable(string(table)); err != nil {
			return nil, err
		}
		return s.repo.List(ctx, s.db, table.Kind())
	})
}

// FetchTable returns a table as consensus rows. It lets the consensus service
// read an in-process ledger the same way it reads a remote one.
func (s *LedgerService) FetchTable(ctx context.Context, table ledgerdomain.Table) ([]consensusdomain.Row, error) {
	records, err := s.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	rows := make([]consensusdomain.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.Row())
	}
	return rows, nil
}

func (s *LedgerService) Status(_ context.Context) ledgerdomain.Status {
	return s.schedule.StatusAt(s.clock.Now())
}

// IsClientError reports whether err was caused by the submission itself.
func IsClientError(err error) bool {
	return errors.Is(err, ledgerdomain.ErrInvalidSubmission) ||
		errors.Is(err, ledgerdomain.ErrUnknownTable)
}

// IsWindowError reports whether err is a phase window rejection.
func IsWindowError(err error) bool {
	return errors.Is(err, ledgerdomain.ErrCommitWindowClosed) ||
		errors.Is(err, ledgerdomain.ErrRevealWindowNotOpen) ||
		errors.Is(err, ledgerdomain.ErrRevealWindowClosed)
}
