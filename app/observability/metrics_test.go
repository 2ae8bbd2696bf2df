package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestConsensusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConsensusMetrics(reg)
	ctx := context.Background()

	m.RecordRun(ctx, RunScored, 20*time.Millisecond)
	m.RecordRun(ctx, RunEmpty, time.Millisecond)
	m.RecordFetchFailure(ctx, "reveals")
	m.RecordVerdicts(ctx, map[string]int{"ok": 3, "hash_mismatch": 1})
	m.RecordParticipants(ctx, 3)

	expected := `
# HELP beauty_contest_consensus_verdicts_total Verification verdicts by reason.
# TYPE beauty_contest_consensus_verdicts_total counter
beauty_contest_consensus_verdicts_total{reason="hash_mismatch"} 1
beauty_contest_consensus_verdicts_total{reason="ok"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "beauty_contest_consensus_verdicts_total"))
	n, err := testutil.GatherAndCount(reg, "beauty_contest_consensus_runs_total", "beauty_contest_consensus_fetch_failures_total", "beauty_contest_consensus_valid_participants")
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestLedgerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.RecordAppend(context.Background(), "commit", "accepted")
	m.RecordAppend(context.Background(), "commit", "accepted")

	mf, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mf, 1)
	require.Equal(t, 2.0, mf[0].GetMetric()[0].GetCounter().GetValue())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", ParseLevel("debug").String())
	require.Equal(t, "WARN", ParseLevel("Warning").String())
	require.Equal(t, "INFO", ParseLevel("").String())
}

func TestQueueMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewQueueMetrics(reg)

	m.RecordOperation(context.Background(), "schedule_finalize", "success", 5*time.Millisecond)
	m.RecordOperation(context.Background(), "schedule_finalize", "failure", time.Millisecond)

	n, err := testutil.GatherAndCount(reg, "beauty_contest_queue_operations_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
