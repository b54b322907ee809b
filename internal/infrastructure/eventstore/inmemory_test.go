package eventstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	"github.com/lllypuk/taskflow/internal/domain/event"
	"github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
	"github.com/lllypuk/taskflow/internal/infrastructure/eventstore"
)

func createdEvent(taskID uuid.UUID) event.DomainEvent {
	return task.NewTaskCreated(taskID, 1, "group task", "", "doctor", "garth",
		task.StatusCreated, event.NewMetadata("garth", "", ""))
}

func TestInMemoryEventStore_SaveAndLoad(t *testing.T) {
	store := eventstore.NewInMemoryEventStore()
	ctx := context.Background()
	taskID := uuid.NewUUID()

	require.NoError(t, store.SaveEvents(ctx, taskID.String(), []event.DomainEvent{createdEvent(taskID)}, 0))
	require.NoError(t, store.SaveEvents(ctx, taskID.String(), []event.DomainEvent{
		task.NewTaskClaimed(taskID, 2, "garth", event.NewMetadata("garth", "", "")),
	}, 1))

	events, err := store.LoadEvents(ctx, taskID.String())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, task.EventTypeTaskClaimed, events[1].EventType())

	version, err := store.GetVersion(ctx, taskID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestInMemoryEventStore_ConcurrencyConflict(t *testing.T) {
	store := eventstore.NewInMemoryEventStore()
	ctx := context.Background()
	taskID := uuid.NewUUID()
	require.NoError(t, store.SaveEvents(ctx, taskID.String(), []event.DomainEvent{createdEvent(taskID)}, 0))

	claim := task.NewTaskClaimed(taskID, 2, "garth", event.NewMetadata("garth", "", ""))

	// first writer wins
	require.NoError(t, store.SaveEvents(ctx, taskID.String(), []event.DomainEvent{claim}, 1))

	// second writer with the same expected version loses
	err := store.SaveEvents(ctx, taskID.String(), []event.DomainEvent{claim}, 1)
	require.ErrorIs(t, err, appcore.ErrConcurrencyConflict)
}

func TestInMemoryEventStore_LoadEvents_NotFound(t *testing.T) {
	store := eventstore.NewInMemoryEventStore()

	_, err := store.LoadEvents(context.Background(), uuid.NewUUID().String())

	require.ErrorIs(t, err, appcore.ErrAggregateNotFound)
}

func TestInMemoryEventStore_LoadEvents_ReturnsCopy(t *testing.T) {
	store := eventstore.NewInMemoryEventStore()
	ctx := context.Background()
	taskID := uuid.NewUUID()
	require.NoError(t, store.SaveEvents(ctx, taskID.String(), []event.DomainEvent{createdEvent(taskID)}, 0))

	events, err := store.LoadEvents(ctx, taskID.String())
	require.NoError(t, err)
	events[0] = nil

	reloaded, err := store.LoadEvents(ctx, taskID.String())
	require.NoError(t, err)
	assert.NotNil(t, reloaded[0])
}

func TestInMemoryEventStore_ListAggregateIDs(t *testing.T) {
	store := eventstore.NewInMemoryEventStore()
	ctx := context.Background()
	first, second := uuid.NewUUID(), uuid.NewUUID()
	require.NoError(t, store.SaveEvents(ctx, first.String(), []event.DomainEvent{createdEvent(first)}, 0))
	require.NoError(t, store.SaveEvents(ctx, second.String(), []event.DomainEvent{createdEvent(second)}, 0))

	ids, err := store.ListAggregateIDs(ctx, task.AggregateType)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.String(), second.String()}, ids)

	other, err := store.ListAggregateIDs(ctx, "chat")
	require.NoError(t, err)
	assert.Empty(t, other)
}
