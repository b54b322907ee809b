package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apptask "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/domain/errs"
	"github.com/lllypuk/taskflow/internal/domain/event"
	"github.com/lllypuk/taskflow/internal/domain/principal"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// EventSubscriber is the part of the event bus the broadcaster needs.
type EventSubscriber interface {
	Subscribe(eventType string, handler event.Handler) error
}

// TaskReader loads the current task state from the read model.
type TaskReader interface {
	FindByID(ctx context.Context, taskID uuid.UUID) (*apptask.ReadModel, error)
}

// OutboundMessage is a task event as sent over WebSocket.
type OutboundMessage struct {
	Type       string      `json:"type"`
	TaskID     string      `json:"task_id"`
	Version    int         `json:"version"`
	Actor      string      `json:"actor,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Task       TaskPayload `json:"task"`
}

// TaskPayload is the task state after the event.
type TaskPayload struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Assignee  *string           `json:"assignee"`
	Group     *string           `json:"group"`
	Status    taskdomain.Status `json:"status"`
	Owner     string            `json:"owner"`
	Variables map[string]any    `json:"variables,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Version   int               `json:"version"`
}

// Broadcaster listens to task events and pushes them to the principals
// allowed to see the task after the change.
type Broadcaster struct {
	hub        *Hub
	subscriber EventSubscriber
	tasks      TaskReader
	logger     *slog.Logger

	eventTypes []string

	running   bool
	runningMu sync.RWMutex
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithBroadcasterLogger sets the logger for the broadcaster.
func WithBroadcasterLogger(logger *slog.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithEventTypes sets which event types to subscribe to.
func WithEventTypes(eventTypes []string) BroadcasterOption {
	return func(b *Broadcaster) {
		b.eventTypes = eventTypes
	}
}

// DefaultEventTypes returns all task lifecycle event types.
func DefaultEventTypes() []string {
	return []string{
		taskdomain.EventTypeTaskCreated,
		taskdomain.EventTypeTaskClaimed,
		taskdomain.EventTypeTaskAssigned,
		taskdomain.EventTypeTaskReleased,
		taskdomain.EventTypeTaskCompleted,
		taskdomain.EventTypeTaskDeleted,
	}
}

// NewBroadcaster creates a new Broadcaster.
func NewBroadcaster(hub *Hub, subscriber EventSubscriber, tasks TaskReader, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		hub:        hub,
		subscriber: subscriber,
		tasks:      tasks,
		logger:     slog.Default(),
		eventTypes: DefaultEventTypes(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Start subscribes to the event bus. It registers handlers and does not block.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()

	if b.running {
		return nil
	}

	for _, eventType := range b.eventTypes {
		if err := b.subscriber.Subscribe(eventType, b.HandleEvent); err != nil {
			b.logger.ErrorContext(ctx, "failed to subscribe to event",
				slog.String("event_type", eventType),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
	}
	b.running = true

	b.logger.InfoContext(ctx, "websocket broadcaster started",
		slog.Int("event_types", len(b.eventTypes)),
	)

	return nil
}

// IsRunning returns whether the broadcaster is running.
func (b *Broadcaster) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

// HandleEvent resolves the task state and delivers the event to its audience.
func (b *Broadcaster) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	if evt.AggregateType() != taskdomain.AggregateType {
		return nil
	}

	taskID, err := uuid.ParseUUID(evt.AggregateID())
	if err != nil {
		b.logger.WarnContext(ctx, "task event with invalid aggregate id",
			slog.String("event_type", evt.EventType()),
			slog.String("aggregate_id", evt.AggregateID()),
		)
		return nil
	}

	rm, err := b.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			b.logger.DebugContext(ctx, "task missing from read model, event not broadcast",
				slog.String("task_id", taskID.String()),
			)
			return nil
		}
		return fmt.Errorf("load task %s: %w", taskID, err)
	}

	if rm.Version < evt.Version() {
		b.logger.DebugContext(ctx, "read model behind event",
			slog.String("task_id", taskID.String()),
			slog.Int("read_model_version", rm.Version),
			slog.Int("event_version", evt.Version()),
		)
	}

	message, err := json.Marshal(newOutboundMessage(evt, rm))
	if err != nil {
		return fmt.Errorf("marshal websocket message: %w", err)
	}

	b.hub.Deliver(message, AudienceOf(rm))

	b.logger.DebugContext(ctx, "task event broadcast",
		slog.String("event_type", evt.EventType()),
		slog.String("task_id", taskID.String()),
	)

	return nil
}

// AudienceOf selects the principals that receive events about rm:
// admins always, the assignee, and candidate group members while the task is CREATED.
func AudienceOf(rm *apptask.ReadModel) RecipientFilter {
	assignee := rm.AssigneeName()
	group := rm.GroupName()
	status := rm.Status

	return func(p principal.Principal) bool {
		switch {
		case p.IsZero():
			return false
		case p.IsAdmin():
			return true
		case assignee != "":
			return p.Is(assignee)
		default:
			return status == taskdomain.StatusCreated && p.InGroup(group)
		}
	}
}

func newOutboundMessage(evt event.DomainEvent, rm *apptask.ReadModel) OutboundMessage {
	return OutboundMessage{
		Type:       evt.EventType(),
		TaskID:     evt.AggregateID(),
		Version:    evt.Version(),
		Actor:      evt.Metadata().UserID,
		OccurredAt: evt.OccurredAt(),
		Task: TaskPayload{
			ID:        rm.ID.String(),
			Name:      rm.Name,
			Assignee:  rm.Assignee,
			Group:     rm.Group,
			Status:    rm.Status,
			Owner:     rm.Owner,
			Variables: rm.Variables,
			CreatedAt: rm.CreatedAt,
			UpdatedAt: rm.UpdatedAt,
			Version:   rm.Version,
		},
	}
}
