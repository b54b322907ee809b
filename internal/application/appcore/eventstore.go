package appcore

import (
	"context"
	"errors"

	"github.com/lllypuk/taskflow/internal/domain/event"
)

var (
	// ErrAggregateNotFound is returned when the aggregate is not found
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrConcurrencyConflict is returned on version conflict (optimistic locking)
	ErrConcurrencyConflict = errors.New("concurrency conflict detected")
)

// EventStore defines the interface for saving and loading events.
// The interface is declared on the consumer side (application layer).
type EventStore interface {
	// SaveEvents appends events for an aggregate.
	// expectedVersion is the version the caller loaded (0 for a new aggregate);
	// a mismatch returns ErrConcurrencyConflict and nothing is written.
	SaveEvents(ctx context.Context, aggregateID string, events []event.DomainEvent, expectedVersion int) error

	// LoadEvents loads all events for an aggregate in version order.
	// Returns ErrAggregateNotFound when the aggregate has no events.
	LoadEvents(ctx context.Context, aggregateID string) ([]event.DomainEvent, error)

	// GetVersion returns the current version of an aggregate, 0 if not found.
	GetVersion(ctx context.Context, aggregateID string) (int, error)

	// ListAggregateIDs returns ids of all aggregates of the given type.
	ListAggregateIDs(ctx context.Context, aggregateType string) ([]string, error)
}
