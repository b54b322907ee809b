//go:build integration

package eventstore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	"github.com/lllypuk/taskflow/internal/domain/event"
	"github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
	"github.com/lllypuk/taskflow/internal/infrastructure/eventstore"
	"github.com/lllypuk/taskflow/tests/testutil"
)

func TestMongoEventStore_SaveAndLoadEvents(t *testing.T) {
	// Setup
	db := testutil.SetupTestMongoDB(t)
	store := eventstore.NewMongoEventStore(db)
	ctx := context.Background()
	taskID := uuid.NewUUID()
	metadata := event.NewMetadata("garth", "corr-456", "")

	events := []event.DomainEvent{
		task.NewTaskCreated(taskID, 1, "group task", "", "doctor", "garth", task.StatusCreated, metadata),
		task.NewTaskClaimed(taskID, 2, "garth", metadata),
	}

	// Act
	require.NoError(t, store.SaveEvents(ctx, taskID.String(), events, 0))
	loaded, err := store.LoadEvents(ctx, taskID.String())

	// Assert
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	created, ok := loaded[0].(*task.Created)
	require.True(t, ok)
	assert.Equal(t, "doctor", created.Group)
	assert.Equal(t, "corr-456", created.Metadata().CorrelationID)
	assert.Equal(t, 2, loaded[1].Version())

	version, err := store.GetVersion(ctx, taskID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestMongoEventStore_LoadEvents_NotFound(t *testing.T) {
	db := testutil.SetupTestMongoDB(t)
	store := eventstore.NewMongoEventStore(db)

	_, err := store.LoadEvents(context.Background(), uuid.NewUUID().String())

	require.ErrorIs(t, err, appcore.ErrAggregateNotFound)
}

func TestMongoEventStore_GetVersion_Empty(t *testing.T) {
	db := testutil.SetupTestMongoDB(t)
	store := eventstore.NewMongoEventStore(db)

	version, err := store.GetVersion(context.Background(), uuid.NewUUID().String())

	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestMongoEventStore_ConcurrencyConflict(t *testing.T) {
	db := testutil.SetupTestMongoDB(t)
	store := eventstore.NewMongoEventStore(db)
	ctx := context.Background()
	taskID := uuid.NewUUID()
	metadata := event.NewMetadata("garth", "", "")

	require.NoError(t, store.SaveEvents(ctx, taskID.String(), []event.DomainEvent{
		task.NewTaskCreated(taskID, 1, "group task", "", "doctor", "garth", task.StatusCreated, metadata),
	}, 0))

	// stale expected version
	err := store.SaveEvents(ctx, taskID.String(), []event.DomainEvent{
		task.NewTaskClaimed(taskID, 1, "garth", metadata),
	}, 0)

	require.ErrorIs(t, err, appcore.ErrConcurrencyConflict)
}

func TestMongoEventStore_ConcurrentWriters_OneWins(t *testing.T) {
	db := testutil.SetupTestMongoDB(t)
	store := eventstore.NewMongoEventStore(db)
	ctx := context.Background()
	taskID := uuid.NewUUID()

	require.NoError(t, store.SaveEvents(ctx, taskID.String(), []event.DomainEvent{
		task.NewTaskCreated(taskID, 1, "group task", "", "activitiTeam", "garth", task.StatusCreated,
			event.NewMetadata("garth", "", "")),
	}, 0))

	const writers = 8
	results := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claim := task.NewTaskClaimed(taskID, 2, "garth", event.NewMetadata("garth", "", ""))
			results[i] = store.SaveEvents(ctx, taskID.String(), []event.DomainEvent{claim}, 1)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, appcore.ErrConcurrencyConflict)
	}
	assert.Equal(t, 1, succeeded)

	version, err := store.GetVersion(ctx, taskID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestMongoEventStore_ListAggregateIDs(t *testing.T) {
	db := testutil.SetupTestMongoDB(t)
	store := eventstore.NewMongoEventStore(db)
	ctx := context.Background()
	metadata := event.NewMetadata("garth", "", "")

	ids := []uuid.UUID{uuid.NewUUID(), uuid.NewUUID(), uuid.NewUUID()}
	for _, id := range ids {
		require.NoError(t, store.SaveEvents(ctx, id.String(), []event.DomainEvent{
			task.NewTaskCreated(id, 1, "t", "garth", "", "garth", task.StatusAssigned, metadata),
		}, 0))
	}

	listed, err := store.ListAggregateIDs(ctx, task.AggregateType)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ids[0].String(), ids[1].String(), ids[2].String()}, listed)
}
