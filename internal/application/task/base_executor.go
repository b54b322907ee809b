package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	"github.com/lllypuk/taskflow/internal/domain/errs"
	"github.com/lllypuk/taskflow/internal/domain/event"
	"github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

const defaultMaxAttempts = 3

// AggregateOperation is a function for performing business operations on the aggregate
type AggregateOperation func(aggregate *task.Aggregate) error

// OperationObserver receives the outcome of every lifecycle operation.
type OperationObserver interface {
	ObserveOperation(operation string, err error, duration time.Duration)
}

// ExecutorOption configures a BaseExecutor.
type ExecutorOption func(*BaseExecutor)

// WithEventBus publishes committed events to the bus.
func WithEventBus(bus event.Bus) ExecutorOption {
	return func(e *BaseExecutor) {
		e.eventBus = bus
	}
}

// WithLogger sets the logger for the executor.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *BaseExecutor) {
		e.logger = logger
	}
}

// WithMaxAttempts sets how many times an operation is retried after a version conflict.
func WithMaxAttempts(attempts int) ExecutorOption {
	return func(e *BaseExecutor) {
		if attempts > 0 {
			e.maxAttempts = attempts
		}
	}
}

// WithObserver reports operation outcomes, e.g. to metrics.
func WithObserver(observer OperationObserver) ExecutorOption {
	return func(e *BaseExecutor) {
		e.observer = observer
	}
}

// BaseExecutor contains common logic for executing commands with Event Sourcing.
// Each transition is a compare-and-swap on the aggregate version; on a conflict the
// aggregate is reloaded and the operation is evaluated again against the fresh state.
type BaseExecutor struct {
	taskRepo    CommandRepository
	eventBus    event.Bus
	observer    OperationObserver
	logger      *slog.Logger
	maxAttempts int
}

// NewBaseExecutor creates a new base executor
func NewBaseExecutor(taskRepo CommandRepository, opts ...ExecutorOption) *BaseExecutor {
	e := &BaseExecutor{
		taskRepo:    taskRepo,
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute loads the task, applies operation and saves the produced events.
func (e *BaseExecutor) Execute(
	ctx context.Context,
	name string,
	taskID uuid.UUID,
	operation AggregateOperation,
) (result TaskResult, err error) {
	defer e.observe(name, time.Now(), &err)

	if taskID.IsZero() {
		return TaskResult{}, ErrInvalidTaskID
	}

	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return TaskResult{}, ctxErr
		}

		// 1. Load aggregate from repository
		aggregate, loadErr := e.taskRepo.Load(ctx, taskID)
		if loadErr != nil {
			if errors.Is(loadErr, errs.ErrNotFound) {
				return TaskResult{}, ErrTaskNotFound
			}
			return TaskResult{}, fmt.Errorf("failed to load task: %w", loadErr)
		}
		aggregate.WithCorrelationID(appcore.GetCorrelationID(ctx))

		// 2. Perform business operation
		if opErr := operation(aggregate); opErr != nil {
			return TaskResult{}, mapDomainError(opErr)
		}

		// 3. Idempotent operation, nothing to save
		newEvents := aggregate.UncommittedEvents()
		if len(newEvents) == 0 {
			return newResult(aggregate, newEvents), nil
		}

		// 4. Save via repository (handles EventStore + ReadModel)
		saveErr := e.taskRepo.Save(ctx, aggregate)
		if saveErr == nil {
			e.publish(ctx, newEvents)
			return newResult(aggregate, newEvents), nil
		}

		if !errors.Is(saveErr, errs.ErrConcurrentModification) {
			return TaskResult{}, fmt.Errorf("failed to save task: %w", saveErr)
		}
		if attempt >= e.maxAttempts {
			return TaskResult{}, ErrConcurrentUpdate
		}

		e.logger.DebugContext(ctx, "version conflict, retrying task operation",
			slog.String("operation", name),
			slog.String("task_id", taskID.String()),
			slog.Int("attempt", attempt),
		)
	}
}

// Persist saves a freshly created aggregate and publishes its events.
func (e *BaseExecutor) Persist(ctx context.Context, name string, aggregate *task.Aggregate) (result TaskResult, err error) {
	defer e.observe(name, time.Now(), &err)

	newEvents := aggregate.UncommittedEvents()
	if saveErr := e.taskRepo.Save(ctx, aggregate); saveErr != nil {
		if errors.Is(saveErr, errs.ErrConcurrentModification) {
			return TaskResult{}, ErrConcurrentUpdate
		}
		return TaskResult{}, fmt.Errorf("failed to save task: %w", saveErr)
	}

	e.publish(ctx, newEvents)
	return newResult(aggregate, newEvents), nil
}

// Observe reports the outcome of a read-only operation.
func (e *BaseExecutor) Observe(name string, started time.Time, err error) {
	e.observe(name, started, &err)
}

func (e *BaseExecutor) observe(name string, started time.Time, err *error) {
	if e.observer == nil {
		return
	}
	e.observer.ObserveOperation(name, *err, time.Since(started))
}

// publish is best effort: events are already committed to the event store
func (e *BaseExecutor) publish(ctx context.Context, events []event.DomainEvent) {
	if e.eventBus == nil {
		return
	}

	for _, evt := range events {
		if pubErr := e.eventBus.Publish(ctx, evt); pubErr != nil {
			e.logger.WarnContext(ctx, "failed to publish task event",
				slog.String("event_type", evt.EventType()),
				slog.String("task_id", evt.AggregateID()),
				slog.Int("version", evt.Version()),
				slog.String("error", pubErr.Error()),
			)
		}
	}
}
