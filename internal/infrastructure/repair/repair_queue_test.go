package repair_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/domain/uuid"
	"github.com/lllypuk/taskflow/internal/infrastructure/repair"
)

func TestInMemoryQueue_AddDeduplicatesPending(t *testing.T) {
	ctx := context.Background()
	q := repair.NewInMemoryQueue()
	taskID := uuid.NewUUID()

	require.NoError(t, q.Add(ctx, taskID, errors.New("write timeout")))
	require.NoError(t, q.Add(ctx, taskID, errors.New("write timeout")))
	require.NoError(t, q.Add(ctx, uuid.NewUUID(), nil))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(2), stats.Total())
}

func TestInMemoryQueue_PollClaimsEntries(t *testing.T) {
	ctx := context.Background()
	q := repair.NewInMemoryQueue()

	for range 3 {
		require.NoError(t, q.Add(ctx, uuid.NewUUID(), nil))
	}

	first, err := q.Poll(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	for _, e := range first {
		assert.Equal(t, repair.StatusProcessing, e.Status)
		assert.Equal(t, 1, e.Attempts)
		assert.NotNil(t, e.LastTriedAt)
	}

	second, err := q.Poll(ctx, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[1].ID, second[0].ID)

	empty, err := q.Poll(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInMemoryQueue_Transitions(t *testing.T) {
	ctx := context.Background()
	q := repair.NewInMemoryQueue()
	require.NoError(t, q.Add(ctx, uuid.NewUUID(), nil))
	require.NoError(t, q.Add(ctx, uuid.NewUUID(), nil))
	require.NoError(t, q.Add(ctx, uuid.NewUUID(), nil))

	entries, err := q.Poll(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.NoError(t, q.MarkCompleted(ctx, entries[0].ID))
	require.NoError(t, q.MarkFailed(ctx, entries[1].ID, errors.New("events missing")))
	require.NoError(t, q.Retry(ctx, entries[2].ID, errors.New("still down")))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, repair.Stats{Pending: 1, Completed: 1, Failed: 1}, stats)

	retried, err := q.Poll(ctx, 1)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	assert.Equal(t, 2, retried[0].Attempts)
	assert.Equal(t, "still down", retried[0].Error)
}

func TestInMemoryQueue_UnknownEntry(t *testing.T) {
	q := repair.NewInMemoryQueue()

	err := q.MarkCompleted(context.Background(), "missing")

	assert.ErrorIs(t, err, repair.ErrEntryNotFound)
}
