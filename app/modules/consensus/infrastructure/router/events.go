package consensusrouter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/beauty-contest/app/events"
	consensushandlers "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/handlers"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

// ConsensusRouter wires ledger events to the recompute handler.
type ConsensusRouter struct {
	logger         *slog.Logger
	Router         *message.Router
	subscriber     message.Subscriber
	publisher      message.Publisher
	tracer         trace.Tracer
	metricsBuilder *metrics.PrometheusMetricsBuilder
}

// NewConsensusRouter creates a ConsensusRouter. A nil registry disables the
// router metrics.
func NewConsensusRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	publisher message.Publisher,
	tracer trace.Tracer,
	prometheusRegistry prometheus.Registerer,
) *ConsensusRouter {
	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if prometheusRegistry != nil {
		builder := metrics.NewPrometheusMetricsBuilder(prometheusRegistry, "", "")
		metricsBuilder = &builder
	}
	return &ConsensusRouter{
		logger:         logger,
		Router:         router,
		subscriber:     subscriber,
		publisher:      publisher,
		tracer:         tracer,
		metricsBuilder: metricsBuilder,
	}
}

// Configure adds middleware and registers the handlers.
func (r *ConsensusRouter) Configure(ctx context.Context, handlers consensushandlers.EventHandlers) error {
	if r.metricsBuilder != nil {
		r.logger.Info("Adding Prometheus router metrics middleware")
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
		middleware.Retry{MaxRetries: 3}.Middleware,
	)

	if err := r.RegisterHandlers(ctx, handlers); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}
	return nil
}

// RegisterHandlers subscribes each topic and publishes whatever the handler
// returns to the topic in its metadata.
func (r *ConsensusRouter) RegisterHandlers(ctx context.Context, handlers consensushandlers.EventHandlers) error {
	eventsToHandlers := map[string]message.HandlerFunc{
		events.LedgerRecordAppendedV1: handlers.HandleRecordAppended,
	}

	for topic, handlerFunc := range eventsToHandlers {
		handlerName := fmt.Sprintf("consensus.%s", topic)
		r.Router.AddConsumerHandler(
			handlerName,
			topic,
			r.subscriber,
			func(msg *message.Message) error {
				messages, err := handlerFunc(msg)
				if err != nil {
					r.logger.ErrorContext(ctx, "Error processing message",
						attr.String("handler", handlerName),
						attr.String("message_id", msg.UUID),
						attr.Error(err),
					)
					return err
				}
				for _, m := range messages {
					publishTopic := m.Metadata.Get("topic")
					if publishTopic == "" {
						r.logger.Error("Handler returned a message without a topic, dropping it",
							attr.String("handler", handlerName),
							attr.String("msg_uuid", m.UUID),
						)
						continue
					}
					if err := r.publisher.Publish(publishTopic, m); err != nil {
						return fmt.Errorf("failed to publish to %s: %w", publishTopic, err)
					}
				}
				return nil
			},
		)
	}
	return nil
}

// Close shuts down the router.
func (r *ConsensusRouter) Close() error {
	return r.Router.Close()
}
