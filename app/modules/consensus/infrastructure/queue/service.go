package consensusqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

// QueueName is the River queue finalize jobs run on.
const QueueName = "contest"

// Operation outcomes.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeSkipped = "skipped"
)

// QueueService schedules the end-of-contest finalize.
type QueueService interface {
	// ScheduleFinalize queues a finalize at revealClose. Scheduling the same
	// close twice is a no-op.
	ScheduleFinalize(ctx context.Context, revealClose time.Time) error
	// CancelFinalize cancels every pending finalize job.
	CancelFinalize(ctx context.Context) error
	// GetScheduledJobs lists finalize jobs, oldest first.
	GetScheduledJobs(ctx context.Context) ([]JobInfo, error)
	// HealthCheck verifies the queue tables are reachable.
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Service schedules finalize jobs with River.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	db      *bun.DB
	metrics observability.QueueMetrics
	clock   clock.Clock
}

// NewService connects River to dsn and registers the finalize worker.
func NewService(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, metrics observability.QueueMetrics, finalizer Finalizer) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_contest_queue_service"),
		attr.String("component", "river_queue"),
	)
	if metrics == nil {
		metrics = observability.NoOpMetrics{}
	}
	start := time.Now()

	ctxLogger.Info("Initializing contest queue service")

	// River requires pgx, not database/sql
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		metrics.RecordOperation(ctx, "initialize_service", outcomeFailure, time.Since(start))
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		metrics.RecordOperation(ctx, "initialize_service", outcomeFailure, time.Since(start))
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.Error("Failed to ping database for River", attr.Error(err))
		metrics.RecordOperation(ctx, "initialize_service", outcomeFailure, time.Since(start))
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewFinalizeWorker(ctxLogger, finalizer))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 5},
			QueueName:          {MaxWorkers: 1},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		ctxLogger.Error("Failed to create River client", attr.Error(err))
		metrics.RecordOperation(ctx, "initialize_service", outcomeFailure, time.Since(start))
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	metrics.RecordOperation(ctx, "initialize_service", outcomeSuccess, time.Since(start))
	ctxLogger.Info("Contest queue service initialized")

	return &Service{
		client:  riverClient,
		pool:    pool,
		logger:  ctxLogger,
		db:      bunDB,
		metrics: metrics,
		clock:   clock.Real{},
	}, nil
}

// Start starts the River client.
func (s *Service) Start(ctx context.Context) error {
	start := s.clock.Now()
	s.logger.Info("Starting contest queue service")

	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		s.metrics.RecordOperation(ctx, "start_service", outcomeFailure, s.clock.Now().Sub(start))
		return fmt.Errorf("failed to start River client: %w", err)
	}

	s.metrics.RecordOperation(ctx, "start_service", outcomeSuccess, s.clock.Now().Sub(start))
	return nil
}

// Stop stops the River client and releases its pool.
func (s *Service) Stop(ctx context.Context) error {
	start := s.clock.Now()
	s.logger.Info("Stopping contest queue service")

	err := s.client.Stop(ctx)
	s.pool.Close()
	if err != nil {
		s.logger.Error("Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperation(ctx, "stop_service", outcomeFailure, s.clock.Now().Sub(start))
		return fmt.Errorf("failed to stop River client: %w", err)
	}

	s.metrics.RecordOperation(ctx, "stop_service", outcomeSuccess, s.clock.Now().Sub(start))
	return nil
}

// ScheduleFinalize queues FinalizeJob at revealClose. A close already in the
// past is queued to run immediately.
func (s *Service) ScheduleFinalize(ctx context.Context, revealClose time.Time) error {
	start := s.clock.Now()
	ctxLogger := s.logger.With(
		attr.Time("reveal_close", revealClose),
		attr.String("operation", "schedule_finalize"),
	)

	if revealClose.IsZero() {
		ctxLogger.Info("No reveal close configured, finalize stays manual")
		s.metrics.RecordOperation(ctx, "schedule_finalize", outcomeSkipped, s.clock.Now().Sub(start))
		return nil
	}

	result, err := s.client.Insert(ctx, FinalizeJob{RevealClose: revealClose.UTC()}, &river.InsertOpts{
		Queue:       QueueName,
		ScheduledAt: revealClose,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	})
	if err != nil {
		ctxLogger.Error("Failed to schedule finalize job", attr.Error(err))
		s.metrics.RecordOperation(ctx, "schedule_finalize", outcomeFailure, s.clock.Now().Sub(start))
		return fmt.Errorf("failed to schedule finalize job: %w", err)
	}

	if result.UniqueSkippedAsDuplicate {
		ctxLogger.Info("Finalize job already scheduled", attr.Any("job_id", result.Job.ID))
		s.metrics.RecordOperation(ctx, "schedule_finalize", outcomeSkipped, s.clock.Now().Sub(start))
		return nil
	}

	s.metrics.RecordOperation(ctx, "schedule_finalize", outcomeSuccess, s.clock.Now().Sub(start))
	ctxLogger.Info("Finalize job scheduled",
		attr.Duration("delay", revealClose.Sub(start)),
		attr.Any("job_id", result.Job.ID),
	)
	return nil
}

type riverJobRow struct {
	ID          int64      `bun:"id"`
	Kind        string     `bun:"kind"`
	State       string     `bun:"state"`
	ScheduledAt *time.Time `bun:"scheduled_at"`
	CreatedAt   time.Time  `bun:"created_at"`
	Attempt     int16      `bun:"attempt"`
	MaxAttempts int16      `bun:"max_attempts"`
}

// CancelFinalize cancels pending finalize jobs.
func (s *Service) CancelFinalize(ctx context.Context) error {
	start := s.clock.Now()
	ctxLogger := s.logger.With(attr.String("operation", "cancel_finalize"))

	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state").
		Where("kind = ?", FinalizeKind).
		Where("state IN (?, ?)", "available", "scheduled").
		Scan(ctx, &jobs)
	if err != nil {
		ctxLogger.Error("Failed to query jobs for cancellation", attr.Error(err))
		s.metrics.RecordOperation(ctx, "cancel_finalize", outcomeFailure, s.clock.Now().Sub(start))
		return fmt.Errorf("failed to query jobs for cancellation: %w", err)
	}

	cancelled := 0
	for _, job := range jobs {
		if _, err := s.client.JobCancel(ctx, job.ID); err != nil {
			ctxLogger.Warn("Failed to cancel job", attr.Any("job_id", job.ID), attr.Error(err))
			continue
		}
		cancelled++
	}

	outcome := outcomeSuccess
	if cancelled != len(jobs) {
		outcome = outcomeFailure
	}
	s.metrics.RecordOperation(ctx, "cancel_finalize", outcome, s.clock.Now().Sub(start))
	ctxLogger.Info("Finalize cancellation completed",
		attr.Int("total_found", len(jobs)),
		attr.Int("cancelled_count", cancelled),
	)
	return nil
}

// GetScheduledJobs lists every finalize job River knows about.
func (s *Service) GetScheduledJobs(ctx context.Context) ([]JobInfo, error) {
	start := s.clock.Now()

	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "scheduled_at", "created_at", "attempt", "max_attempts").
		Where("kind = ?", FinalizeKind).
		Order("scheduled_at ASC NULLS LAST", "created_at ASC").
		Scan(ctx, &jobs)
	if err != nil {
		s.metrics.RecordOperation(ctx, "get_scheduled_jobs", outcomeFailure, s.clock.Now().Sub(start))
		return nil, fmt.Errorf("failed to query scheduled jobs: %w", err)
	}

	result := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		scheduledAt := ""
		if job.ScheduledAt != nil {
			scheduledAt = job.ScheduledAt.UTC().Format(time.RFC3339)
		}
		result[i] = JobInfo{
			ID:          job.ID,
			Kind:        job.Kind,
			State:       job.State,
			ScheduledAt: scheduledAt,
			CreatedAt:   job.CreatedAt.UTC().Format(time.RFC3339),
			Attempt:     int(job.Attempt),
			MaxAttempts: int(job.MaxAttempts),
		}
	}

	s.metrics.RecordOperation(ctx, "get_scheduled_jobs", outcomeSuccess, s.clock.Now().Sub(start))
	return result, nil
}

// HealthCheck verifies the queue service is healthy
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}

	var count int
	if err := s.db.NewSelect().Table("river_job").ColumnExpr("COUNT(*)").Scan(ctx, &count); err != nil {
		s.logger.Error("Queue service health check failed", attr.Error(err))
		return fmt.Errorf("queue service health check failed: %w", err)
	}

	s.logger.Debug("Queue service health check passed", attr.Int("total_jobs", count))
	return nil
}
