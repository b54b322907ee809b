package eventstore

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/lllypuk/taskflow/internal/domain/event"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
)

// EventDocument is one stored event. The header is queryable at the top
// level; Data carries only the payload, keyed by the event's json tags.
type EventDocument struct {
	ID bson.ObjectID `bson:"_id,omitempty"`

	AggregateID   string                `bson:"aggregate_id"`
	AggregateType string                `bson:"aggregate_type"`
	EventType     string                `bson:"event_type"`
	Version       int                   `bson:"version"`
	Data          bson.Raw              `bson:"data"`
	Metadata      EventMetadataDocument `bson:"metadata"`
	OccurredAt    time.Time             `bson:"occurred_at"`
	CreatedAt     time.Time             `bson:"created_at"`
}

// EventMetadataDocument is the stored form of event.Metadata.
type EventMetadataDocument struct {
	Timestamp     time.Time `bson:"timestamp"`
	UserID        string    `bson:"user_id,omitempty"`
	CorrelationID string    `bson:"correlation_id"`
	CausationID   string    `bson:"causation_id,omitempty"`
}

func metadataDocument(m event.Metadata) EventMetadataDocument {
	return EventMetadataDocument{
		Timestamp:     m.Timestamp,
		UserID:        m.UserID,
		CorrelationID: m.CorrelationID,
		CausationID:   m.CausationID,
	}
}

func (d EventMetadataDocument) metadata() event.Metadata {
	return event.Metadata{
		Timestamp:     d.Timestamp,
		UserID:        d.UserID,
		CorrelationID: d.CorrelationID,
		CausationID:   d.CausationID,
	}
}

// EventSerializer maps task events to documents and back.
type EventSerializer struct{}

// NewEventSerializer returns a serializer.
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{}
}

// Serialize builds the document for e.
func (s *EventSerializer) Serialize(e event.DomainEvent) (*EventDocument, error) {
	payload, err := payloadToBSON(e)
	if err != nil {
		return nil, err
	}

	return &EventDocument{
		AggregateID:   e.AggregateID(),
		AggregateType: e.AggregateType(),
		EventType:     e.EventType(),
		Version:       e.Version(),
		Data:          payload,
		Metadata:      metadataDocument(e.Metadata()),
		OccurredAt:    e.OccurredAt(),
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// payloadToBSON goes through JSON so the json tags name the stored fields.
func payloadToBSON(e event.DomainEvent) (bson.Raw, error) {
	asJSON, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event to JSON: %w", err)
	}
	var fields map[string]any
	if err = json.Unmarshal(asJSON, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event to map: %w", err)
	}
	raw, err := bson.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload to BSON: %w", err)
	}
	return raw, nil
}

// Deserialize restores the typed event stored in doc.
func (s *EventSerializer) Deserialize(doc *EventDocument) (event.DomainEvent, error) {
	base := event.RestoreBaseEvent(
		doc.EventType,
		doc.AggregateID,
		doc.AggregateType,
		doc.Version,
		doc.OccurredAt,
		doc.Metadata.metadata(),
	)

	evt, err := taskdomain.NewEventByType(base)
	if err != nil || len(doc.Data) == 0 {
		return evt, err
	}

	asJSON, err := bson.MarshalExtJSON(doc.Data, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert event payload to JSON: %w", err)
	}
	if err = json.Unmarshal(asJSON, evt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
	}
	return evt, nil
}

// SerializeMany serializes events in order.
func (s *EventSerializer) SerializeMany(events []event.DomainEvent) ([]*EventDocument, error) {
	return convertAll(events, "serialize", s.Serialize)
}

// DeserializeMany deserializes docs in order.
func (s *EventSerializer) DeserializeMany(docs []*EventDocument) ([]event.DomainEvent, error) {
	return convertAll(docs, "deserialize", s.Deserialize)
}

func convertAll[In, Out any](items []In, verb string, convert func(In) (Out, error)) ([]Out, error) {
	out := make([]Out, 0, len(items))
	for i, item := range items {
		converted, err := convert(item)
		if err != nil {
			return nil, fmt.Errorf("failed to %s event at index %d: %w", verb, i, err)
		}
		out = append(out, converted)
	}
	return out, nil
}
