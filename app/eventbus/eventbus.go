// Package eventbus provides the watermill publisher/subscriber pair used by
// every module. Without a NATS URL it falls back to an in-process channel,
// which is what tests and single-binary deployments use.
package eventbus

import (
	"context"
	"fmt"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
)

// StreamName is the JetStream stream carrying every contest topic.
const StreamName = "BEAUTY_CONTEST"

// StreamSubjects are the subject filters of StreamName.
var StreamSubjects = []string{"ledger.>", "consensus.>"}

// EventBus publishes and subscribes to topics.
type EventBus interface {
	message.Publisher
	message.Subscriber
}

type natsBus struct {
	*nats.Publisher
	subscriber *nats.Subscriber
}

func (b *natsBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.subscriber.Subscribe(ctx, topic)
}

func (b *natsBus) Close() error {
	pubErr := b.Publisher.Close()
	subErr := b.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

// NewEventBus connects to NATS when natsURL is set, otherwise it returns an
// in-process bus.
func NewEventBus(natsURL string, logger *slog.Logger) (EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	if natsURL == "" {
		logger.Info("Using in-process event bus")
		return NewInProcess(wmLogger), nil
	}

	natsOptions := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(2 * time.Second),
	}
	if err := ensureStream(natsURL, natsOptions); err != nil {
		logger.Error("Failed to provision JetStream stream", slog.Any("error", err))
		return nil, err
	}

	marshaler := &nats.NATSMarshaler{}
	jsConfig := nats.JetStreamConfig{
		AutoProvision: false,
		DurablePrefix: "beauty-contest",
		// Durable names may not contain dots.
		DurableCalculator: func(prefix, topic string) string {
			return prefix + "-" + strings.ReplaceAll(topic, ".", "-")
		},
	}

	publisher, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:         natsURL,
			Marshaler:   marshaler,
			NatsOptions: natsOptions,
			JetStream:   jsConfig,
		},
		wmLogger,
	)
	if err != nil {
		logger.Error("Failed to create Watermill publisher", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create Watermill publisher: %w", err)
	}

	subscriber, err := nats.NewSubscriber(
		nats.SubscriberConfig{
			URL:            natsURL,
			Unmarshaler:    marshaler,
			NatsOptions:    natsOptions,
			JetStream:      jsConfig,
			CloseTimeout:   10 * time.Second,
			AckWaitTimeout: 30 * time.Second,
		},
		wmLogger,
	)
	if err != nil {
		publisher.Close()
		logger.Error("Failed to create Watermill subscriber", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create Watermill subscriber: %w", err)
	}

	logger.Info("Connected event bus to NATS", slog.String("url", natsURL))
	return &natsBus{Publisher: publisher, subscriber: subscriber}, nil
}

// ensureStream creates StreamName when it does not exist yet. Topics contain
// dots, which JetStream rejects in stream names, so they share one stream.
func ensureStream(natsURL string, opts []nc.Option) error {
	conn, err := nc.Connect(natsURL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer conn.Close()

	js, err := conn.JetStream()
	if err != nil {
		return fmt.Errorf("failed to open JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(StreamName); err == nil {
		return nil
	} else if !errors.Is(err, nc.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", StreamName, err)
	}

	if _, err := js.AddStream(&nc.StreamConfig{
		Name:      StreamName,
		Subjects:  StreamSubjects,
		Retention: nc.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	}); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}
	return nil
}

// NewInProcess returns a gochannel bus that persists nothing.
func NewInProcess(logger watermill.LoggerAdapter) EventBus {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logger)
}
