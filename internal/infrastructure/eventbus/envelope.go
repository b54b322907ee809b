package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lllypuk/taskflow/internal/domain/event"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
)

// envelope is the wire form of a task event on a Redis channel.
type envelope struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Version       int             `json:"version"`
	Metadata      wireMetadata    `json:"metadata"`
	Payload       json.RawMessage `json:"payload"`
}

type wireMetadata struct {
	UserID        string    `json:"user_id"`
	CorrelationID string    `json:"correlation_id"`
	CausationID   string    `json:"causation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// encodeEvent wraps evt in an envelope with a fresh delivery id.
func encodeEvent(evt event.DomainEvent) (string, []byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	md := evt.Metadata()
	env := envelope{
		ID:            uuid.NewString(),
		EventType:     evt.EventType(),
		AggregateID:   evt.AggregateID(),
		AggregateType: evt.AggregateType(),
		OccurredAt:    evt.OccurredAt(),
		Version:       evt.Version(),
		Metadata: wireMetadata{
			UserID:        md.UserID,
			CorrelationID: md.CorrelationID,
			CausationID:   md.CausationID,
			Timestamp:     md.Timestamp,
		},
		Payload: payload,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return env.ID, data, nil
}

// decodeEvent restores the concrete task event carried by an envelope.
func decodeEvent(data []byte) (event.DomainEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	base := event.RestoreBaseEvent(
		env.EventType,
		env.AggregateID,
		env.AggregateType,
		env.Version,
		env.OccurredAt,
		event.Metadata{
			UserID:        env.Metadata.UserID,
			CorrelationID: env.Metadata.CorrelationID,
			CausationID:   env.Metadata.CausationID,
			Timestamp:     env.Metadata.Timestamp,
		},
	)

	evt, err := taskdomain.NewEventByType(base)
	if err != nil {
		return nil, err
	}
	if len(env.Payload) > 0 {
		if err = json.Unmarshal(env.Payload, evt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.EventType, err)
		}
	}
	return evt, nil
}
