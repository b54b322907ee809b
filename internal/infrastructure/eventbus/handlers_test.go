package eventbus_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/domain/event"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
	"github.com/lllypuk/taskflow/internal/infrastructure/eventbus"
)

func newCreatedEvent(name string) *taskdomain.Created {
	return taskdomain.NewTaskCreated(uuid.NewUUID(), 1, name, "salaboy", "", "garth",
		taskdomain.StatusAssigned, event.NewMetadata("garth", "corr-789", ""))
}

type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	err       error
}

func (p *fakeProcessor) ProcessEvent(_ context.Context, evt event.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, evt.EventType())
	return p.err
}

// ========== LoggingHandler Tests ==========

func TestLoggingHandler_Handle(t *testing.T) {
	t.Run("logs event details and metadata", func(t *testing.T) {
		var buf bytes.Buffer
		handler := eventbus.NewLoggingHandler(slog.New(slog.NewJSONHandler(&buf, nil)))
		evt := newCreatedEvent("task for salaboy")

		require.NoError(t, handler.Handle(context.Background(), evt))

		logOutput := buf.String()
		assert.Contains(t, logOutput, "domain event")
		assert.Contains(t, logOutput, taskdomain.EventTypeTaskCreated)
		assert.Contains(t, logOutput, evt.AggregateID())
		assert.Contains(t, logOutput, "garth")
		assert.Contains(t, logOutput, "corr-789")
		assert.Contains(t, logOutput, "task for salaboy")
	})

	t.Run("truncates large payloads", func(t *testing.T) {
		var buf bytes.Buffer
		handler := eventbus.NewLoggingHandler(slog.New(slog.NewJSONHandler(&buf, nil)))
		evt := newCreatedEvent(strings.Repeat("x", 1000))

		require.NoError(t, handler.Handle(context.Background(), evt))

		assert.Contains(t, buf.String(), "...")
		assert.NotContains(t, buf.String(), strings.Repeat("x", 600))
	})

	t.Run("works with default logger", func(t *testing.T) {
		handler := eventbus.NewLoggingHandler(nil)

		require.NoError(t, handler.Handle(context.Background(), newCreatedEvent("t")))
	})
}

// ========== ProjectionHandler Tests ==========

func TestProjectionHandler_Handle(t *testing.T) {
	t.Run("forwards event to processor", func(t *testing.T) {
		processor := &fakeProcessor{}
		handler := eventbus.NewProjectionHandler(processor, nil)

		require.NoError(t, handler.Handle(context.Background(), newCreatedEvent("t")))

		assert.Equal(t, []string{taskdomain.EventTypeTaskCreated}, processor.processed)
	})

	t.Run("wraps processor error", func(t *testing.T) {
		processor := &fakeProcessor{err: errors.New("store down")}
		handler := eventbus.NewProjectionHandler(processor, nil)

		err := handler.Handle(context.Background(), newCreatedEvent("t"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "store down")
		assert.Contains(t, err.Error(), taskdomain.EventTypeTaskCreated)
	})
}

// ========== InMemoryEventBus Tests ==========

func TestInMemoryEventBus_PublishDeliversInOrder(t *testing.T) {
	bus := eventbus.NewInMemoryEventBus(nil)
	var calls []string

	require.NoError(t, bus.Subscribe(taskdomain.EventTypeTaskCreated, func(_ context.Context, _ event.DomainEvent) error {
		calls = append(calls, "first")
		return errors.New("ignored")
	}))
	require.NoError(t, bus.Subscribe(taskdomain.EventTypeTaskCreated, func(_ context.Context, _ event.DomainEvent) error {
		calls = append(calls, "second")
		return nil
	}))
	require.NoError(t, bus.Subscribe(taskdomain.EventTypeTaskDeleted, func(_ context.Context, _ event.DomainEvent) error {
		calls = append(calls, "deleted")
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), newCreatedEvent("t")))

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestInMemoryEventBus_Validation(t *testing.T) {
	bus := eventbus.NewInMemoryEventBus(nil)

	require.ErrorContains(t, bus.Publish(context.Background(), nil), "event cannot be nil")
	require.ErrorContains(t, bus.Subscribe("", func(context.Context, event.DomainEvent) error { return nil }),
		"event type cannot be empty")
	require.ErrorContains(t, bus.Subscribe(taskdomain.EventTypeTaskCreated, nil), "handler cannot be nil")
}

func TestInMemoryEventBus_StartStopsOnShutdown(t *testing.T) {
	bus := eventbus.NewInMemoryEventBus(nil)
	done := make(chan error, 1)

	go func() { done <- bus.Start(context.Background()) }()

	require.NoError(t, bus.Shutdown())
	require.NoError(t, bus.Shutdown())
	require.NoError(t, <-done)
}

// ========== Subscription Tests ==========

func TestSubscribeTaskEvents(t *testing.T) {
	bus := eventbus.NewInMemoryEventBus(nil)
	processor := &fakeProcessor{}
	var extraCalls int

	err := eventbus.SubscribeTaskEvents(bus, nil,
		eventbus.NewLoggingHandler(nil).Handle,
		eventbus.NewProjectionHandler(processor, nil).Handle,
		func(_ context.Context, _ event.DomainEvent) error {
			extraCalls++
			return nil
		},
		nil,
	)
	require.NoError(t, err)

	for _, eventType := range eventbus.TaskEventTypes() {
		assert.Equal(t, 3, bus.HandlerCount(eventType), eventType)
	}

	require.NoError(t, bus.Publish(context.Background(), newCreatedEvent("t")))
	assert.Equal(t, 1, extraCalls)
	assert.Len(t, processor.processed, 1)
}

func TestSubscribeTaskEvents_NoHandlers(t *testing.T) {
	bus := eventbus.NewInMemoryEventBus(nil)

	require.NoError(t, eventbus.SubscribeTaskEvents(bus, nil))

	assert.Zero(t, bus.HandlerCount(taskdomain.EventTypeTaskCreated))
}
