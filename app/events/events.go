// Package events declares the topics exchanged over the event bus and their
// payloads.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Black-And-White-Club/beauty-contest/app/observability/attr"
)

const (
	// LedgerRecordAppendedV1 is published after every accepted submission.
	LedgerRecordAppendedV1 = "ledger.record.appended.v1"
	// ConsensusComputedV1 is published after a reactive recompute.
	ConsensusComputedV1 = "consensus.computed.v1"
	// ConsensusFinalizedV1 is published once the contest is finalized and archived.
	ConsensusFinalizedV1 = "consensus.finalized.v1"
)

// RecordAppendedPayload announces a new ledger row. Commit and reveal values
// are left out; consumers re-read the ledger.
type RecordAppendedPayload struct {
	RecordID  string    `json:"record_id"`
	Seq       int64     `json:"seq"`
	Kind      string    `json:"kind"`
	UniID     string    `json:"uni_id"`
	Timestamp time.Time `json:"timestamp_utc"`
}

// WinnerPayload is one winner of a computed contest.
type WinnerPayload struct {
	UniID    string  `json:"uni_id"`
	Number   int     `json:"number"`
	Distance float64 `json:"distance"`
}

// ConsensusPayload summarizes a consensus run. Average, Target and
// MinDistance are nil when nobody verified.
type ConsensusPayload struct {
	SnapshotID   string          `json:"snapshot_id,omitempty"`
	ComputedAt   time.Time       `json:"computed_at"`
	KFactor      float64         `json:"k_factor"`
	Participants int             `json:"participants"`
	Valid        int             `json:"valid"`
	Average      *float64        `json:"average,omitempty"`
	Target       *float64        `json:"target,omitempty"`
	MinDistance  *float64        `json:"min_distance,omitempty"`
	Winners      []WinnerPayload `json:"winners"`
}

// NewMessage marshals payload and copies the correlation id from ctx.
func NewMessage(ctx context.Context, topic string, payload any) (*message.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set("topic", topic)
	if id := attr.CorrelationID(ctx); id != "" {
		msg.Metadata.Set(attr.CorrelationIDKey, id)
	}
	msg.SetContext(ctx)
	return msg, nil
}

// Decode unmarshals a message payload into T.
func Decode[T any](msg *message.Message) (T, error) {
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("failed to unmarshal payload of message %s: %w", msg.UUID, err)
	}
	return v, nil
}
