package appcore

import (
	"context"

	"github.com/lllypuk/taskflow/internal/domain/event"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// ReadModelProjector rebuilds and maintains read models from the event store.
type ReadModelProjector interface {
	// RebuildOne rebuilds the read model of a single aggregate from its events.
	// Returns ErrAggregateNotFound if no events exist for the aggregate.
	RebuildOne(ctx context.Context, aggregateID uuid.UUID) error

	// RebuildAll rebuilds read models for all aggregates and returns how many
	// were rebuilt. It continues past individual failures.
	RebuildAll(ctx context.Context) (int, error)

	// ProcessEvent applies a single event to the read model.
	ProcessEvent(ctx context.Context, event event.DomainEvent) error
}
