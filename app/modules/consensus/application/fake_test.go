package consensusservice

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
)

// FakeLedger serves fixed tables. A configured error fails that table.
type FakeLedger struct {
	mu      sync.Mutex
	Tables  map[ledgerdomain.Table][]consensusdomain.Row
	Errs    map[ledgerdomain.Table]error
	Fetches int
}

func NewFakeLedger(commits, reveals []consensusdomain.Row) *FakeLedger {
	return &FakeLedger{
		Tables: map[ledgerdomain.Table][]consensusdomain.Row{
			ledgerdomain.TableCommits: commits,
			ledgerdomain.TableReveals: reveals,
		},
		Errs: map[ledgerdomain.Table]error{},
	}
}

func (f *FakeLedger) FetchTable(ctx context.Context, table ledgerdomain.Table) ([]consensusdomain.Row, error) {
	f.mu.Lock()
	f.Fetches++
	err := f.Errs[table]
	rows := f.Tables[table]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// FakePublisher records published messages.
type FakePublisher struct {
	mu        sync.Mutex
	Published map[string][]*message.Message
	Err       error
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Published: map[string][]*message.Message{}}
}

func (f *FakePublisher) Publish(topic string, msgs ...*message.Message) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Published[topic] = append(f.Published[topic], msgs...)
	return nil
}

func (f *FakePublisher) Close() error { return nil }

// FakeMetrics counts what the service reports.
type FakeMetrics struct {
	mu            sync.Mutex
	Runs          map[string]int
	FetchFailures map[string]int
	Verdicts      map[string]int
	Participants  int
}

func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{Runs: map[string]int{}, FetchFailures: map[string]int{}, Verdicts: map[string]int{}}
}

func (f *FakeMetrics) RecordRun(_ context.Context, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Runs[outcome]++
}

func (f *FakeMetrics) RecordFetchFailure(_ context.Context, table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchFailures[table]++
}

func (f *FakeMetrics) RecordVerdicts(_ context.Context, counts map[string]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range counts {
		f.Verdicts[k] += v
	}
}

func (f *FakeMetrics) RecordParticipants(_ context.Context, valid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Participants = valid
}
