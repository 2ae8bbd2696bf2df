package consensus_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	consensusservice "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/application"
	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	consensusqueue "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/queue"
	consensusdb "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/repositories"
	ledgerservice "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/repositories"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
	"github.com/Black-And-White-Club/beauty-contest/integration_tests/testutils"
)

type deps struct {
	env       *testutils.TestEnvironment
	ledger    *ledgerservice.LedgerService
	snapshots consensusdb.Repository
	service   *consensusservice.ConsensusService
}

func setup(t *testing.T) deps {
	t.Helper()
	env := testutils.NewTestEnvironment(t)

	ledger := ledgerservice.NewLedgerService(ledgerdb.NewRepository(env.DB), nil, clock.Real{},
		ledgerdomain.Schedule{}, env.Logger, observability.NoOpMetrics{}, observability.NopTracer(), env.DB)
	snapshots := consensusdb.NewRepository(env.DB)
	svc := consensusservice.NewConsensusService(ledger, "", snapshots, nil, clock.Real{},
		consensusdomain.DefaultParams(), env.Logger, observability.NoOpMetrics{}, observability.NopTracer(), env.DB)

	return deps{env: env, ledger: ledger, snapshots: snapshots, service: svc}
}

func (d deps) play(t *testing.T, id string, number int) {
	t.Helper()
	_, err := d.ledger.Submit(d.env.Ctx, ledgerdomain.Submission{
		Kind:     ledgerdomain.KindCommit,
		Identity: id,
		Commit:   consensusdomain.Commit(id, number, "salt"),
	})
	require.NoError(t, err)
	_, err = d.ledger.Submit(d.env.Ctx, ledgerdomain.Submission{
		Kind:     ledgerdomain.KindReveal,
		Identity: id,
		Number:   ledgerdomain.Number(strconv.Itoa(number)),
		Nonce:    "salt",
	})
	require.NoError(t, err)
}

func TestConsensusWithPostgres(t *testing.T) {
	d := setup(t)

	t.Run("finalize archives the run", func(t *testing.T) {
		d.env.Reset(t)
		d.play(t, "ann", 20)
		d.play(t, "bo", 40)
		d.play(t, "cy", 90)

		report, err := d.service.Finalize(d.env.Ctx, consensusservice.TriggerAdmin)
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, report.SnapshotID)
		require.NotNil(t, report.Result.Outcome)
		require.InDelta(t, 50.0, report.Result.Outcome.Average, 1e-9)

		snap, err := d.snapshots.Get(d.env.Ctx, nil, report.SnapshotID)
		require.NoError(t, err)
		require.True(t, snap.Finalized)
		require.Equal(t, consensusservice.TriggerAdmin, snap.Trigger)
		require.Equal(t, 3, snap.Valid)
		require.Len(t, snap.Winners, 1)
		require.Equal(t, "bo", snap.Winners[0].Identity)
		require.NotEmpty(t, snap.ResultsText)
		require.NotEmpty(t, snap.Leaderboard)

		latest, err := d.snapshots.LatestFinalized(d.env.Ctx, nil)
		require.NoError(t, err)
		require.Equal(t, report.SnapshotID, latest.ID)
	})

	t.Run("list is newest first without bulky columns", func(t *testing.T) {
		d.env.Reset(t)
		base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
		var ids []uuid.UUID
		for i := range 3 {
			snap := &consensusdb.Snapshot{
				ID:          uuid.New(),
				ComputedAt:  base.Add(time.Duration(i) * time.Minute),
				Trigger:     consensusservice.TriggerAPI,
				KFactor:     2.0 / 3.0,
				RangeMax:    100,
				ResultsText: "results",
				Leaderboard: []byte(`[]`),
			}
			require.NoError(t, d.snapshots.Save(d.env.Ctx, nil, snap))
			ids = append(ids, snap.ID)
		}

		got, err := d.snapshots.List(d.env.Ctx, nil, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, ids[2], got[0].ID)
		require.Equal(t, ids[1], got[1].ID)
		require.Empty(t, got[0].ResultsText)
		require.Empty(t, got[0].Leaderboard)

		_, err = d.snapshots.LatestFinalized(d.env.Ctx, nil)
		require.ErrorIs(t, err, consensusdb.ErrNotFound)

		_, err = d.snapshots.Get(d.env.Ctx, nil, uuid.New())
		require.ErrorIs(t, err, consensusdb.ErrNotFound)
	})
}

func TestFinalizeQueue(t *testing.T) {
	d := setup(t)

	newQueue := func(t *testing.T) *consensusqueue.Service {
		t.Helper()
		q, err := consensusqueue.NewService(d.env.Ctx, d.env.DB, d.env.Logger, d.env.DSN, nil, d.service)
		require.NoError(t, err)
		return q
	}

	t.Run("schedule is idempotent and cancellable", func(t *testing.T) {
		d.env.Reset(t)
		q := newQueue(t)
		t.Cleanup(func() { _ = q.Stop(d.env.Ctx) })

		require.NoError(t, q.HealthCheck(d.env.Ctx))

		revealClose := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
		require.NoError(t, q.ScheduleFinalize(d.env.Ctx, revealClose))
		require.NoError(t, q.ScheduleFinalize(d.env.Ctx, revealClose))
		require.NoError(t, q.ScheduleFinalize(d.env.Ctx, time.Time{}))

		jobs, err := q.GetScheduledJobs(d.env.Ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		require.Equal(t, consensusqueue.FinalizeKind, jobs[0].Kind)
		require.Equal(t, "scheduled", jobs[0].State)

		require.NoError(t, q.CancelFinalize(d.env.Ctx))

		jobs, err = q.GetScheduledJobs(d.env.Ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		require.Equal(t, "cancelled", jobs[0].State)
	})

	t.Run("a past close finalizes right away", func(t *testing.T) {
		d.env.Reset(t)
		d.play(t, "ann", 20)
		d.play(t, "bo", 70)

		q := newQueue(t)
		require.NoError(t, q.Start(d.env.Ctx))
		t.Cleanup(func() { _ = q.Stop(d.env.Ctx) })

		require.NoError(t, q.ScheduleFinalize(d.env.Ctx, time.Now().Add(-time.Minute)))

		require.Eventually(t, func() bool {
			snap, err := d.snapshots.LatestFinalized(d.env.Ctx, nil)
			return err == nil && snap.Trigger == consensusservice.TriggerSchedule
		}, 30*time.Second, 250*time.Millisecond)

		snap, err := d.snapshots.LatestFinalized(d.env.Ctx, nil)
		require.NoError(t, err)
		require.Len(t, snap.Winners, 1)
		require.Equal(t, "ann", snap.Winners[0].Identity)
	})
}
