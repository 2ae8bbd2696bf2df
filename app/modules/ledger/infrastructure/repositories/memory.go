package ledgerdb

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
)

// Memory is an in-process ledger for development and tests. The db argument
// is ignored.
type Memory struct {
	mu      sync.RWMutex
	seq     int64
	records []ledgerdomain.Record
}

func NewMemoryRepository() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, _ bun.IDB, rec *ledgerdomain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	rec.Seq = m.seq
	m.records = append(m.records, *rec)
	return nil
}

func (m *Memory) List(_ context.Context, _ bun.IDB, kind ledgerdomain.Kind) ([]ledgerdomain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledgerdomain.Record, 0, len(m.records))
	for _, r := range m.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, _ bun.IDB, id uuid.UUID) (ledgerdomain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return ledgerdomain.Record{}, ErrNotFound
}
