package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/domain/event"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
)

// AssertEventTypes requires exactly the given event types, in order.
func AssertEventTypes(t *testing.T, events []event.DomainEvent, expected ...string) {
	t.Helper()

	actual := make([]string, 0, len(events))
	for _, evt := range events {
		actual = append(actual, evt.EventType())
	}
	assert.Equal(t, expected, actual)
}

// AssertVersionsSequential checks that versions count up from 1.
func AssertVersionsSequential(t *testing.T, events []event.DomainEvent) {
	t.Helper()

	for i, evt := range events {
		assert.Equal(t, i+1, evt.Version(), "event %d (%s)", i, evt.EventType())
	}
}

// RequireTaskState checks status and assignee of a read model.
// An empty assignee means the task must be unassigned.
func RequireTaskState(t *testing.T, rm *taskapp.ReadModel, status taskdomain.Status, assignee string) {
	t.Helper()

	require.NotNil(t, rm)
	require.Equal(t, status, rm.Status, "task %s", rm.ID)
	if assignee == "" {
		require.Nil(t, rm.Assignee, "task %s should be unassigned", rm.ID)
		return
	}
	require.NotNil(t, rm.Assignee, "task %s should be assigned", rm.ID)
	require.Equal(t, assignee, *rm.Assignee)
}
