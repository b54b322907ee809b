package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lllypuk/taskflow/internal/domain/event"
)

const maxLoggedPayload = 500

// LoggingHandler writes one audit log entry per task event.
type LoggingHandler struct {
	logger *slog.Logger
}

// NewLoggingHandler creates a LoggingHandler.
func NewLoggingHandler(logger *slog.Logger) *LoggingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHandler{logger: logger}
}

// Handle logs evt with its metadata and a truncated payload.
func (h *LoggingHandler) Handle(ctx context.Context, evt event.DomainEvent) error {
	md := evt.Metadata()
	attrs := []slog.Attr{
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID()),
		slog.Int("version", evt.Version()),
		slog.Time("occurred_at", evt.OccurredAt()),
	}
	if md.UserID != "" {
		attrs = append(attrs, slog.String("user_id", md.UserID))
	}
	if md.CorrelationID != "" {
		attrs = append(attrs, slog.String("correlation_id", md.CorrelationID))
	}
	if payload, err := json.Marshal(evt); err == nil {
		attrs = append(attrs, slog.String("payload", truncate(payload, maxLoggedPayload)))
	}

	h.logger.LogAttrs(ctx, slog.LevelInfo, "domain event", attrs...)
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// EventProcessor applies an event to derived state. The task projector satisfies it.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, evt event.DomainEvent) error
}

// ProjectionHandler reprojects the read model of the task an event belongs to.
// It catches up read models whose inline write after save failed.
type ProjectionHandler struct {
	processor EventProcessor
	logger    *slog.Logger
}

// NewProjectionHandler creates a ProjectionHandler.
func NewProjectionHandler(processor EventProcessor, logger *slog.Logger) *ProjectionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectionHandler{processor: processor, logger: logger}
}

// Handle reprojects the task of evt.
func (h *ProjectionHandler) Handle(ctx context.Context, evt event.DomainEvent) error {
	if err := h.processor.ProcessEvent(ctx, evt); err != nil {
		return fmt.Errorf("failed to project %s for %s: %w", evt.EventType(), evt.AggregateID(), err)
	}
	h.logger.DebugContext(ctx, "read model reprojected",
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID()),
	)
	return nil
}

// SubscribeTaskEvents subscribes every handler to every task event type.
// Nil handlers are skipped.
func SubscribeTaskEvents(bus Bus, logger *slog.Logger, handlers ...event.Handler) error {
	if logger == nil {
		logger = slog.Default()
	}

	subscribed := 0
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		for _, eventType := range TaskEventTypes() {
			if err := bus.Subscribe(eventType, handler); err != nil {
				return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
			}
		}
		subscribed++
	}

	logger.Debug("subscribed task event handlers", slog.Int("handlers", subscribed))
	return nil
}
