// Package projector rebuilds task read models from the event store.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/domain/event"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// ReadModelWriter stores task read models. A write older than the stored
// version must be ignored.
type ReadModelWriter interface {
	UpsertReadModel(ctx context.Context, rm *taskapp.ReadModel) error
}

// TaskProjector replays task events into read models.
type TaskProjector struct {
	events appcore.EventStore
	writer ReadModelWriter
	logger *slog.Logger
}

// NewTaskProjector creates a projector. A nil logger means slog.Default.
func NewTaskProjector(events appcore.EventStore, writer ReadModelWriter, logger *slog.Logger) *TaskProjector {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskProjector{events: events, writer: writer, logger: logger}
}

// RebuildOne replays every event of taskID and writes the result. A task
// without events yields appcore.ErrAggregateNotFound unwrapped.
func (p *TaskProjector) RebuildOne(ctx context.Context, taskID uuid.UUID) error {
	history, err := p.events.LoadEvents(ctx, taskID.String())
	switch {
	case errors.Is(err, appcore.ErrAggregateNotFound):
		return err
	case err != nil:
		return fmt.Errorf("failed to load events for task %s: %w", taskID, err)
	}

	task := taskdomain.NewTaskAggregate(taskID)
	task.ReplayEvents(history)

	if err = p.writer.UpsertReadModel(ctx, taskapp.NewReadModel(task)); err != nil {
		return fmt.Errorf("failed to update read model: %w", err)
	}

	p.logger.DebugContext(ctx, "rebuilt task read model",
		slog.String("task_id", taskID.String()),
		slog.Int("version", task.Version()),
	)
	return nil
}

// RebuildAll rebuilds every task in the event store. It keeps going past
// failures and returns the number rebuilt together with the joined errors.
func (p *TaskProjector) RebuildAll(ctx context.Context) (int, error) {
	ids, err := p.events.ListAggregateIDs(ctx, taskdomain.AggregateType)
	if err != nil {
		return 0, fmt.Errorf("failed to get aggregate IDs: %w", err)
	}

	var (
		rebuilt  int
		failures []error
	)
	for _, raw := range ids {
		if err = ctx.Err(); err != nil {
			return rebuilt, err
		}

		taskID, parseErr := uuid.ParseUUID(raw)
		if parseErr == nil {
			parseErr = p.RebuildOne(ctx, taskID)
		}
		if parseErr != nil {
			failures = append(failures, fmt.Errorf("task %s: %w", raw, parseErr))
			continue
		}
		rebuilt++
	}

	p.logger.InfoContext(ctx, "rebuilt task read models",
		slog.Int("total", len(ids)),
		slog.Int("rebuilt", rebuilt),
		slog.Int("failed", len(failures)),
	)

	if len(failures) > 0 {
		return rebuilt, fmt.Errorf("rebuild failed for %d of %d tasks: %w", len(failures), len(ids), errors.Join(failures...))
	}
	return rebuilt, nil
}

// ProcessEvent rebuilds the read model of the event's task from the full
// stream, so a missed event heals on the next one.
func (p *TaskProjector) ProcessEvent(ctx context.Context, evt event.DomainEvent) error {
	if evt.AggregateType() != taskdomain.AggregateType {
		return fmt.Errorf("invalid aggregate type: expected %q, got %q", taskdomain.AggregateType, evt.AggregateType())
	}

	taskID, err := uuid.ParseUUID(evt.AggregateID())
	if err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}
	return p.RebuildOne(ctx, taskID)
}

var _ appcore.ReadModelProjector = (*TaskProjector)(nil)
