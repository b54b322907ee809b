package healthcheck_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/domain/uuid"
	"github.com/lllypuk/taskflow/internal/infrastructure/healthcheck"
	"github.com/lllypuk/taskflow/internal/infrastructure/repair"
	"github.com/lllypuk/taskflow/tests/testutil"
)

type fakeQueue struct {
	length int64
	err    error
}

func (q fakeQueue) Len(context.Context) (int64, error) { return q.length, q.err }

type skewedVersions struct {
	skew int
	err  error
}

func (s skewedVersions) GetVersion(context.Context, string) (int, error) {
	return 1 + s.skew, s.err
}

type flag bool

func (f flag) IsRunning() bool { return bool(f) }

func TestDeadLetterProbe(t *testing.T) {
	tests := []struct {
		name      string
		queue     fakeQueue
		threshold int64
		wantErr   string
	}{
		{name: "empty", queue: fakeQueue{}, threshold: 0},
		{name: "within threshold", queue: fakeQueue{length: 3}, threshold: 5},
		{name: "over threshold", queue: fakeQueue{length: 2}, threshold: 0, wantErr: "dead letter queue: 2 events"},
		{name: "redis error", queue: fakeQueue{err: errors.New("boom")}, wantErr: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := healthcheck.DeadLetterProbe(tt.queue, tt.threshold)

			assert.Equal(t, "dead_letter_queue", probe.Name)
			assert.False(t, probe.Critical)

			err := probe.Check(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadModelSyncProbe_InSync(t *testing.T) {
	rt := testutil.NewInMemoryRuntimes(t)
	ctx := testutil.NewTestContext(t)

	created, err := rt.Tasks.Create(ctx, testutil.Garth, testutil.CreateGroupTaskCommandFixture("activitiTeam"))
	require.NoError(t, err)
	_, err = rt.Tasks.Claim(ctx, testutil.Salaboy, created.TaskID)
	require.NoError(t, err)

	probe := healthcheck.ReadModelSyncProbe(rt.Repo, rt.EventStore, 0)

	assert.Equal(t, "readmodel_sync", probe.Name)
	assert.NoError(t, probe.Check(ctx))
}

func TestReadModelSyncProbe_Lagging(t *testing.T) {
	rt := testutil.NewInMemoryRuntimes(t)
	ctx := testutil.NewTestContext(t)

	_, err := rt.Tasks.Create(ctx, testutil.Garth, testutil.CreateTaskCommandFixture("garth"))
	require.NoError(t, err)

	probe := healthcheck.ReadModelSyncProbe(rt.Repo, skewedVersions{skew: 1}, 10)

	err = probe.Check(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 sampled tasks out of sync")
}

func TestReadModelSyncProbe_VersionError(t *testing.T) {
	rt := testutil.NewInMemoryRuntimes(t)
	ctx := testutil.NewTestContext(t)

	_, err := rt.Tasks.Create(ctx, testutil.Garth, testutil.CreateTaskCommandFixture("garth"))
	require.NoError(t, err)

	probe := healthcheck.ReadModelSyncProbe(rt.Repo, skewedVersions{err: errors.New("store down")}, 10)

	err = probe.Check(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}

func TestRunningProbe(t *testing.T) {
	running := healthcheck.RunningProbe("eventbus", flag(true), false)
	assert.NoError(t, running.Check(context.Background()))

	stopped := healthcheck.RunningProbe("eventbus", flag(false), true)
	assert.True(t, stopped.Critical)
	assert.EqualError(t, stopped.Check(context.Background()), "eventbus not running")
}

func TestRepairQueueProbe(t *testing.T) {
	ctx := context.Background()
	queue := repair.NewInMemoryQueue()
	probe := healthcheck.RepairQueueProbe(queue, 1)

	assert.Equal(t, "repair_queue", probe.Name)
	assert.False(t, probe.Critical)
	require.NoError(t, probe.Check(ctx))

	require.NoError(t, queue.Add(ctx, uuid.NewUUID(), nil))
	require.NoError(t, probe.Check(ctx), "within threshold")

	require.NoError(t, queue.Add(ctx, uuid.NewUUID(), nil))
	require.EqualError(t, probe.Check(ctx), "repair queue: 2 pending repairs")

	entries, err := queue.Poll(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, queue.MarkCompleted(ctx, entries[0].ID))
	require.NoError(t, queue.MarkFailed(ctx, entries[1].ID, errors.New("events missing")))

	assert.EqualError(t, probe.Check(ctx), "repair queue: 1 failed repairs")
}
