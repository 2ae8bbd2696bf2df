package consensusdb

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SaveListGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	older := &Snapshot{ComputedAt: base, Trigger: "cli", Leaderboard: json.RawMessage(`[]`), ResultsText: "old"}
	newer := &Snapshot{ComputedAt: base.Add(time.Minute), Trigger: "finalize", Finalized: true, ResultsText: "new"}
	newest := &Snapshot{ComputedAt: base.Add(2 * time.Minute), Trigger: "event"}
	for _, s := range []*Snapshot{older, newer, newest} {
		require.NoError(t, repo.Save(ctx, nil, s))
		require.NotEqual(t, uuid.Nil, s.ID)
	}

	list, err := repo.List(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newest.ID, list[0].ID)
	assert.Equal(t, newer.ID, list[1].ID)
	assert.Empty(t, list[1].ResultsText, "listings omit the results text")

	got, err := repo.Get(ctx, nil, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "old", got.ResultsText)

	final, err := repo.LatestFinalized(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, final.ID)

	_, err = repo.Get(ctx, nil, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_LatestFinalizedEmpty(t *testing.T) {
	_, err := NewMemoryRepository().LatestFinalized(context.Background(), nil)
	require.ErrorIs(t, err, ErrNotFound)
}
