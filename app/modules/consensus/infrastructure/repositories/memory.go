package consensusdb

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Memory keeps snapshots in process. The db argument is ignored.
type Memory struct {
	mu    sync.RWMutex
	snaps []Snapshot
}

func NewMemoryRepository() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, _ bun.IDB, snap *Snapshot) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, *snap)
	return nil
}

// newestFirst orders by computed time descending; equal times keep the most
// recently saved first.
func (m *Memory) newestFirst() []Snapshot {
	out := slices.Clone(m.snaps)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b Snapshot) int {
		return b.ComputedAt.Compare(a.ComputedAt)
	})
	return out
}

func (m *Memory) List(_ context.Context, _ bun.IDB, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ordered := m.newestFirst()
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	out := make([]Snapshot, 0, len(ordered))
	for _, s := range ordered {
		out = append(out, s.Summary())
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, _ bun.IDB, id uuid.UUID) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.snaps {
		if s.ID == id {
			return s, nil
		}
	}
	return Snapshot{}, ErrNotFound
}

func (m *Memory) LatestFinalized(_ context.Context, _ bun.IDB) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.newestFirst() {
		if s.Finalized {
			return s, nil
		}
	}
	return Snapshot{}, ErrNotFound
}
