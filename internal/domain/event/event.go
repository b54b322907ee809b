// Package event описывает доменные события и их метаданные.
package event

import (
	"context"
	"time"
)

// DomainEvent это факт, записанный в поток событий агрегата
type DomainEvent interface {
	EventType() string
	AggregateID() string
	AggregateType() string
	OccurredAt() time.Time
	// Version версия агрегата после применения события, начиная с 1
	Version() int
	Metadata() Metadata
}

// Bus доставляет сохраненные события подписчикам
type Bus interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// Handler обрабатывает одно событие
type Handler func(ctx context.Context, event DomainEvent) error

// Metadata связывает событие с инициатором и запросом
type Metadata struct {
	// UserID username принципала, выполнившего операцию
	UserID        string    `json:"user_id,omitempty"        bson:"user_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"   bson:"causation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"      bson:"timestamp,omitempty"`
}

// NewMetadata проставляет текущее время
func NewMetadata(userID, correlationID, causationID string) Metadata {
	return Metadata{
		UserID:        userID,
		CorrelationID: correlationID,
		CausationID:   causationID,
		Timestamp:     time.Now().UTC(),
	}
}

// BaseEvent хранит заголовок события. Поля не экспортируются, поэтому в
// JSON payload попадают только поля конкретного события.
type BaseEvent struct {
	header header
}

type header struct {
	eventType     string
	aggregateID   string
	aggregateType string
	occurredAt    time.Time
	version       int
	metadata      Metadata
}

// NewBaseEvent создает заголовок нового события
func NewBaseEvent(eventType, aggregateID, aggregateType string, version int, metadata Metadata) BaseEvent {
	return RestoreBaseEvent(eventType, aggregateID, aggregateType, version, time.Now(), metadata)
}

// RestoreBaseEvent собирает заголовок, прочитанный из хранилища
func RestoreBaseEvent(
	eventType, aggregateID, aggregateType string,
	version int,
	occurredAt time.Time,
	metadata Metadata,
) BaseEvent {
	return BaseEvent{header: header{
		eventType:     eventType,
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
		occurredAt:    occurredAt.UTC(),
		version:       version,
		metadata:      metadata,
	}}
}

func (e BaseEvent) EventType() string { return e.header.eventType }
func (e BaseEvent) AggregateID() string { return e.header.aggregateID }
func (e BaseEvent) AggregateType() string { return e.header.aggregateType }
func (e BaseEvent) OccurredAt() time.Time { return e.header.occurredAt }
func (e BaseEvent) Version() int { return e.header.version }
func (e BaseEvent) Metadata() Metadata { return e.header.metadata }
