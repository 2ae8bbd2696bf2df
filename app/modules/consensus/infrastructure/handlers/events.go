package consensushandlers

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/beauty-contest/app/events"
	consensusservice "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/application"
	ledgerdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

// EventHandlers reacts to ledger events.
type EventHandlers interface {
	HandleRecordAppended(msg *message.Message) ([]*message.Message, error)
}

// ConsensusEventHandlers implements EventHandlers.
type ConsensusEventHandlers struct {
	service consensusservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewConsensusEventHandlers creates a new ConsensusEventHandlers instance.
func NewConsensusEventHandlers(service consensusservice.Service, logger *slog.Logger, tracer trace.Tracer) EventHandlers {
	return &ConsensusEventHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// HandleRecordAppended recomputes after a reveal lands and emits
// consensus.computed.v1. The ledger stamps each row strictly after the rows
// appended before it, so a new commit is later than every existing reveal,
// never binds one and is ignored.
func (h *ConsensusEventHandlers) HandleRecordAppended(msg *message.Message) ([]*message.Message, error) {
	ctx := attr.WithCorrelationID(msg.Context(), msg.Metadata.Get(middleware.CorrelationIDMetadataKey))
	ctx, span := h.tracer.Start(ctx, "consensus.HandleRecordAppended")
	defer span.End()

	payload, err := events.Decode[events.RecordAppendedPayload](msg)
	if err != nil {
		// A malformed payload will never decode; ack it.
		h.logger.ErrorContext(ctx, "Dropping undecodable ledger event",
			attr.String("message_id", msg.UUID),
			attr.Error(err),
		)
		return nil, nil
	}
	if payload.Kind != string(ledgerdomain.KindReveal) {
		return nil, nil
	}

	h.logger.InfoContext(ctx, "Recomputing consensus after reveal",
		attr.Identity(payload.UniID),
		attr.String("record_id", payload.RecordID),
		attr.ExtractCorrelationID(ctx),
	)

	report, err := h.service.Run(ctx, consensusservice.RunOptions{Trigger: consensusservice.TriggerEvent})
	if err != nil {
		return nil, err
	}

	out, err := consensusservice.NewConsensusMessage(ctx, events.ConsensusComputedV1, report)
	if err != nil {
		return nil, err
	}
	return []*message.Message{out}, nil
}
