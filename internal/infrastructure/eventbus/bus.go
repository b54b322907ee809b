package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lllypuk/taskflow/internal/domain/event"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
)

// Bus is an event bus that both publishes and delivers task events.
type Bus interface {
	event.Bus

	Subscribe(eventType string, handler event.Handler) error
	Start(ctx context.Context) error
	Shutdown() error
}

// TaskEventTypes lists every event the task aggregate emits.
func TaskEventTypes() []string {
	return []string{
		taskdomain.EventTypeTaskCreated,
		taskdomain.EventTypeTaskClaimed,
		taskdomain.EventTypeTaskAssigned,
		taskdomain.EventTypeTaskReleased,
		taskdomain.EventTypeTaskCompleted,
		taskdomain.EventTypeTaskDeleted,
	}
}

// InMemoryEventBus delivers events synchronously inside the publishing
// process. It backs mock mode where no Redis is available.
type InMemoryEventBus struct {
	registry

	logger   *slog.Logger
	shutdown chan struct{}
	once     sync.Once
}

// NewInMemoryEventBus creates an in-process bus.
func NewInMemoryEventBus(logger *slog.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventBus{logger: logger, shutdown: make(chan struct{})}
}

// Publish runs the handlers of the event type in registration order. A
// failing handler is logged and never fails the publisher.
func (b *InMemoryEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	if evt == nil {
		return errNilEvent
	}

	for i, handler := range b.lookup(evt.EventType()) {
		if err := handler(ctx, evt); err != nil {
			b.logger.WarnContext(ctx, "event handler failed",
				slog.String("event_type", evt.EventType()),
				slog.String("aggregate_id", evt.AggregateID()),
				slog.Int("handler_index", i),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Start blocks until ctx is cancelled or Shutdown is called.
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.shutdown:
		return nil
	}
}

// Shutdown releases Start.
func (b *InMemoryEventBus) Shutdown() error {
	b.once.Do(func() { close(b.shutdown) })
	return nil
}

var _ Bus = (*InMemoryEventBus)(nil)
