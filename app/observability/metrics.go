package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "beauty_contest"

// ConsensusMetrics records consensus runs.
type ConsensusMetrics interface {
	RecordRun(ctx context.Context, outcome string, d time.Duration)
	RecordFetchFailure(ctx context.Context, table string)
	RecordVerdicts(ctx context.Context, counts map[string]int)
	RecordParticipants(ctx context.Context, valid int)
}

// LedgerMetrics records ledger appends.
type LedgerMetrics interface {
	RecordAppend(ctx context.Context, kind, outcome string)
}

// QueueMetrics records scheduler operations.
type QueueMetrics interface {
	RecordOperation(ctx context.Context, operation, outcome string, d time.Duration)
}

// Run outcomes.
const (
	RunScored = "scored"
	RunEmpty  = "empty"
	RunFailed = "failed"
)

type consensusMetrics struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	fetchFailures *prometheus.CounterVec
	verdicts      *prometheus.CounterVec
	participants  prometheus.Gauge
}

// NewConsensusMetrics registers the consensus collectors on reg.
func NewConsensusMetrics(reg prometheus.Registerer) ConsensusMetrics {
	m := &consensusMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "consensus",
			Name:      "runs_total",
			Help:      "Consensus runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "consensus",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a consensus run including the ledger fetch.",
			Buckets:   prometheus.DefBuckets,
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "consensus",
			Name:      "fetch_failures_total",
			Help:      "Ledger fetch failures by table.",
		}, []string{"table"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "consensus",
			Name:      "verdicts_total",
			Help:      "Verification verdicts by reason.",
		}, []string{"reason"}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "consensus",
			Name:      "valid_participants",
			Help:      "Verified participants in the latest run.",
		}),
	}
	reg.MustRegister(m.runs, m.runDuration, m.fetchFailures, m.verdicts, m.participants)
	return m
}

func (m *consensusMetrics) RecordRun(_ context.Context, outcome string, d time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *consensusMetrics) RecordFetchFailure(_ context.Context, table string) {
	m.fetchFailures.WithLabelValues(table).Inc()
}

func (m *consensusMetrics) RecordVerdicts(_ context.Context, counts map[string]int) {
	for reason, n := range counts {
		m.verdicts.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *consensusMetrics) RecordParticipants(_ context.Context, valid int) {
	m.participants.Set(float64(valid))
}

type ledgerMetrics struct {
	appends *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger collectors on reg.
func NewLedgerMetrics(reg prometheus.Registerer) LedgerMetrics {
	m := &ledgerMetrics{
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ledger",
			Name:      "appends_total",
			Help:      "Ledger append attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(m.appends)
	return m
}

func (m *ledgerMetrics) RecordAppend(_ context.Context, kind, outcome string) {
	m.appends.WithLabelValues(kind, outcome).Inc()
}

type queueMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewQueueMetrics registers the scheduler collectors on reg.
func NewQueueMetrics(reg prometheus.Registerer) QueueMetrics {
	m := &queueMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "operations_total",
			Help:      "Scheduler operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "operation_duration_seconds",
			Help:      "Scheduler operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.operations, m.duration)
	return m
}

func (m *queueMetrics) RecordOperation(_ context.Context, operation, outcome string, d time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// NoOpMetrics satisfies every metrics interface and records nothing.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordRun(context.Context, string, time.Duration) {}
func (NoOpMetrics) RecordFetchFailure(context.Context, string)       {}
func (NoOpMetrics) RecordVerdicts(context.Context, map[string]int)   {}
func (NoOpMetrics) RecordParticipants(context.Context, int)          {}
func (NoOpMetrics) RecordAppend(context.Context, string, string)     {}
func (NoOpMetrics) RecordOperation(context.Context, string, string, time.Duration) {}
