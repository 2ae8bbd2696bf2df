package ledgerservice

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
)

// FakePublisher records published messages.
type FakePublisher struct {
	mu        sync.Mutex
	Published map[string][]*message.Message
	PublishFn func(topic string, msgs ...*message.Message) error
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Published: map[string][]*message.Message{}}
}

func (f *FakePublisher) Publish(topic string, msgs ...*message.Message) error {
	if f.PublishFn != nil {
		if err := f.PublishFn(topic, msgs...); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Published[topic] = append(f.Published[topic], msgs...)
	return nil
}

func (f *FakePublisher) Close() error { return nil }

// FakeRepository fails every call that has an error configured.
type FakeRepository struct {
	AppendErr error
	ListErr   error
}

func (f *FakeRepository) Append(context.Context, bun.IDB, *ledgerdomain.Record) error {
	return f.AppendErr
}

func (f *FakeRepository) List(context.Context, bun.IDB, ledgerdomain.Kind) ([]ledgerdomain.Record, error) {
	return nil, f.ListErr
}

func (f *FakeRepository) Get(context.Context, bun.IDB, uuid.UUID) (ledgerdomain.Record, error) {
	return ledgerdomain.Record{}, errors.New("not implemented")
}
