package consensusservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	"github.com/Black-And-White-Club/beauty-contest/app/events"
	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	consensusdb "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/repositories"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
)

var computedAt = time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)

func commitRow(id, digest, ts string) consensusdomain.Row {
	return consensusdomain.Row{"uni_id": id, "commit": digest, "timestamp_utc": ts}
}

func revealRow(id, number, nonce, ts string) consensusdomain.Row {
	return consensusdomain.Row{"uni_id": id, "number": number, "nonce": nonce, "timestamp_utc": ts}
}

// classRows is a small class: two winners tied on distance, one cheat, one
// late committer.
func classRows() (commits, reveals []consensusdomain.Row) {
	commits = []consensusdomain.Row{
		commitRow("ann", consensusdomain.Commit("ann", 30, "a1"), "2025-05-01T09:00:00Z"),
		commitRow("bea", consensusdomain.Commit("bea", 30, "b1"), "2025-05-01T09:05:00Z"),
		commitRow("cal", consensusdomain.Commit("cal", 90, "c1"), "2025-05-01T09:10:00Z"),
		commitRow("dev", consensusdomain.Commit("dev", 10, "d1"), "2025-05-01T09:15:00Z"),
		commitRow("eli", consensusdomain.Commit("eli", 5, "e1"), "2025-05-01T13:00:00Z"),
	}
	reveals = []consensusdomain.Row{
		revealRow("ann", "30", "a1", "2025-05-01T12:00:00Z"),
		revealRow("bea", "30", "b1", "2025-05-01T12:01:00Z"),
		revealRow("cal", "90", "c1", "2025-05-01T12:02:00Z"),
		revealRow("dev", "11", "d1", "2025-05-01T12:03:00Z"),
		revealRow("eli", "5", "e1", "2025-05-01T12:04:00Z"),
	}
	return commits, reveals
}

type testDeps struct {
	ledger  *FakeLedger
	repo    *consensusdb.Memory
	pub     *FakePublisher
	metrics *FakeMetrics
}

func newTestService(t *testing.T, ledger *FakeLedger) (*ConsensusService, testDeps) {
	t.Helper()
	deps := testDeps{
		ledger:  ledger,
		repo:    consensusdb.NewMemoryRepository(),
		pub:     NewFakePublisher(),
		metrics: NewFakeMetrics(),
	}
	s := NewConsensusService(
		ledger,
		"http://ledger.test/exec",
		deps.repo,
		deps.pub,
		clock.At(computedAt),
		consensusdomain.DefaultParams(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		deps.metrics,
		observability.NopTracer(),
		nil,
	)
	return s, deps
}

func TestConsensusService_Run(t *testing.T) {
	s, deps := newTestService(t, NewFakeLedger(classRows()))

	report, err := s.Run(context.Background(), RunOptions{Trigger: TriggerCLI, Announce: true})
	require.NoError(t, err)

	assert.Equal(t, computedAt, report.ComputedAt)
	assert.Equal(t, uuid.Nil, report.SnapshotID)
	require.NotNil(t, report.Result.Outcome)
	// ann, bea, cal verify: mean 50, target 33.33
	assert.InDelta(t, 50, report.Result.Outcome.Average, 1e-9)
	assert.Equal(t, 3, report.Export.Summary.Participants)

	var winners []string
	for _, w := range report.Export.Summary.Winners {
		winners = append(winners, w.Identity)
	}
	assert.Equal(t, []string{"ann", "bea"}, winners)

	assert.Equal(t, map[string]int{"ok": 3, "hash_mismatch": 1, "no_commit_before_reveal": 1}, deps.metrics.Verdicts)
	assert.Equal(t, 1, deps.metrics.Runs[observability.RunScored])
	assert.Equal(t, 3, deps.metrics.Participants)
	assert.Equal(t, 2, deps.ledger.Fetches)

	require.Len(t, deps.pub.Published[events.ConsensusComputedV1], 1)
	payload, err := events.Decode[events.ConsensusPayload](deps.pub.Published[events.ConsensusComputedV1][0])
	require.NoError(t, err)
	assert.Equal(t, 5, payload.Participants)
	assert.Equal(t, 3, payload.Valid)
	assert.Len(t, payload.Winners, 2)
	assert.Empty(t, payload.SnapshotID)

	snaps, err := s.ListSnapshots(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, snaps, "plain runs are not archived")
}

func TestConsensusService_RunFetchFailure(t *testing.T) {
	ledger := NewFakeLedger(classRows())
	ledger.Errs[ledgerdomain.TableReveals] = errors.New("dial tcp: connection refused")
	s, deps := newTestService(t, ledger)

	report, err := s.Run(context.Background(), RunOptions{Trigger: TriggerCLI, Archive: true})
	require.Nil(t, report)
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorContains(t, err, "connection refused")

	assert.Equal(t, 1, deps.metrics.FetchFailures["reveals"])
	assert.Equal(t, 1, deps.metrics.Runs[observability.RunFailed])
	assert.Empty(t, deps.pub.Published)

	snaps, err := s.ListSnapshots(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestConsensusService_RunEmptyLedger(t *testing.T) {
	s, deps := newTestService(t, NewFakeLedger(nil, nil))

	report, err := s.Run(context.Background(), RunOptions{Trigger: TriggerAPI})
	require.NoError(t, err)
	assert.Nil(t, report.Result.Outcome)
	assert.Empty(t, report.Export.Leaderboard)
	assert.False(t, report.Export.Summary.HasWinners())
	assert.Equal(t, 1, deps.metrics.Runs[observability.RunEmpty])
}

func TestConsensusService_Finalize(t *testing.T) {
	s, deps := newTestService(t, NewFakeLedger(classRows()))
	ctx := context.Background()

	report, err := s.Finalize(ctx, TriggerAdmin)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, report.SnapshotID)
	assert.True(t, report.Finalized)

	require.Len(t, deps.pub.Published[events.ConsensusFinalizedV1], 1)
	assert.Empty(t, deps.pub.Published[events.ConsensusComputedV1])
	payload, err := events.Decode[events.ConsensusPayload](deps.pub.Published[events.ConsensusFinalizedV1][0])
	require.NoError(t, err)
	assert.Equal(t, report.SnapshotID.String(), payload.SnapshotID)

	snap, err := s.GetSnapshot(ctx, report.SnapshotID)
	require.NoError(t, err)
	assert.True(t, snap.Finalized)
	assert.Equal(t, TriggerAdmin, snap.Trigger)
	assert.Equal(t, 5, snap.Participants)
	assert.Equal(t, 3, snap.Valid)
	assert.Contains(t, snap.ResultsText, "  - ann with 30 (distance 3.333333)")

	var rows []LeaderboardRow
	require.NoError(t, json.Unmarshal(snap.Leaderboard, &rows))
	require.Len(t, rows, 5)
	assert.Equal(t, "ann", rows[0].Identity)

	list, err := s.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].ResultsText)

	_, err = s.GetSnapshot(ctx, uuid.New())
	require.ErrorIs(t, err, consensusdb.ErrNotFound)
}

func TestConsensusService_FinalizePublishFailure(t *testing.T) {
	s, deps := newTestService(t, NewFakeLedger(classRows()))
	deps.pub.Err = errors.New("broker down")

	report, err := s.Finalize(context.Background(), TriggerSchedule)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.NotEqual(t, uuid.Nil, report.SnapshotID, "the snapshot is stored before announcing")
}

func TestConsensusService_ComputedPublishFailureIsNotFatal(t *testing.T) {
	s, deps := newTestService(t, NewFakeLedger(classRows()))
	deps.pub.Err = errors.New("broker down")

	_, err := s.Run(context.Background(), RunOptions{Trigger: TriggerCLI, Announce: true})
	require.NoError(t, err)
}

func TestConsensusService_RunWithoutAnnounce(t *testing.T) {
	s, deps := newTestService(t, NewFakeLedger(classRows()))

	_, err := s.Run(context.Background(), RunOptions{Trigger: TriggerAPI})
	require.NoError(t, err)
	assert.Empty(t, deps.pub.Published)
}

func TestConsensusService_ArchiveWithoutRepository(t *testing.T) {
	s := NewConsensusService(
		NewFakeLedger(classRows()), "", nil, nil, clock.At(computedAt), consensusdomain.DefaultParams(),
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NoOpMetrics{}, observability.NopTracer(), nil,
	)

	_, err := s.Run(context.Background(), RunOptions{Archive: true})
	require.ErrorContains(t, err, "no snapshot archive")

	snaps, err := s.ListSnapshots(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestConsensusService_ConcurrentRuns(t *testing.T) {
	s, _ := newTestService(t, NewFakeLedger(classRows()))

	const n = 8
	results := make(chan *Report, n)
	for range n {
		go func() {
			r, err := s.Run(context.Background(), RunOptions{Trigger: TriggerAPI})
			if err != nil {
				results <- nil
				return
			}
			results <- r
		}()
	}
	var first *Report
	for range n {
		r := <-results
		require.NotNil(t, r)
		if first == nil {
			first = r
			continue
		}
		assert.Equal(t, first.Export, r.Export)
	}
}
