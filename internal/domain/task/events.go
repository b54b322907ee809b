package task

import (
	"fmt"

	"github.com/lllypuk/taskflow/internal/domain/event"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// AggregateType тип агрегата задачи в event store
const AggregateType = "task"

// Event types
const (
	EventTypeTaskCreated   = "task.created"
	EventTypeTaskClaimed   = "task.claimed"
	EventTypeTaskAssigned  = "task.assigned"
	EventTypeTaskReleased  = "task.released"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskDeleted   = "task.deleted"
)

// Created событие создания задачи
type Created struct {
	event.BaseEvent
	Name     string `json:"name"`
	Assignee string `json:"assignee,omitempty"`
	Group    string `json:"group,omitempty"`
	Owner    string `json:"owner"`
	Status   Status `json:"status"`
}

// NewTaskCreated создает новое событие TaskCreated
func NewTaskCreated(
	taskID uuid.UUID,
	version int,
	name, assignee, group, owner string,
	status Status,
	metadata event.Metadata,
) *Created {
	return &Created{
		BaseEvent: event.NewBaseEvent(EventTypeTaskCreated, taskID.String(), AggregateType, version, metadata),
		Name:      name,
		Assignee:  assignee,
		Group:     group,
		Owner:     owner,
		Status:    status,
	}
}

// Claimed событие claim групповой задачи пользователем
type Claimed struct {
	event.BaseEvent

	Assignee string `json:"assignee"`
}

// NewTaskClaimed создает новое событие TaskClaimed
func NewTaskClaimed(taskID uuid.UUID, version int, assignee string, metadata event.Metadata) *Claimed {
	return &Claimed{
		BaseEvent: event.NewBaseEvent(EventTypeTaskClaimed, taskID.String(), AggregateType, version, metadata),
		Assignee:  assignee,
	}
}

// Assigned событие назначения задачи администратором
type Assigned struct {
	event.BaseEvent

	Assignee         string `json:"assignee"`
	PreviousAssignee string `json:"previous_assignee,omitempty"`
}

// NewTaskAssigned создает новое событие TaskAssigned
func NewTaskAssigned(
	taskID uuid.UUID,
	version int,
	assignee, previousAssignee string,
	metadata event.Metadata,
) *Assigned {
	return &Assigned{
		BaseEvent:        event.NewBaseEvent(EventTypeTaskAssigned, taskID.String(), AggregateType, version, metadata),
		Assignee:         assignee,
		PreviousAssignee: previousAssignee,
	}
}

// Released событие возврата задачи в группу
type Released struct {
	event.BaseEvent

	PreviousAssignee string `json:"previous_assignee"`
}

// NewTaskReleased создает новое событие TaskReleased
func NewTaskReleased(taskID uuid.UUID, version int, previousAssignee string, metadata event.Metadata) *Released {
	return &Released{
		BaseEvent:        event.NewBaseEvent(EventTypeTaskReleased, taskID.String(), AggregateType, version, metadata),
		PreviousAssignee: previousAssignee,
	}
}

// Completed событие завершения задачи
type Completed struct {
	event.BaseEvent

	CompletedBy string         `json:"completed_by"`
	Variables   map[string]any `json:"variables,omitempty"`
}

// NewTaskCompleted создает новое событие TaskCompleted
func NewTaskCompleted(
	taskID uuid.UUID,
	version int,
	completedBy string,
	variables map[string]any,
	metadata event.Metadata,
) *Completed {
	return &Completed{
		BaseEvent:   event.NewBaseEvent(EventTypeTaskCompleted, taskID.String(), AggregateType, version, metadata),
		CompletedBy: completedBy,
		Variables:   variables,
	}
}

// Deleted событие удаления задачи
type Deleted struct {
	event.BaseEvent

	DeletedBy      string `json:"deleted_by"`
	Reason         string `json:"reason,omitempty"`
	PreviousStatus Status `json:"previous_status"`
}

// NewTaskDeleted создает новое событие TaskDeleted
func NewTaskDeleted(
	taskID uuid.UUID,
	version int,
	deletedBy, reason string,
	previousStatus Status,
	metadata event.Metadata,
) *Deleted {
	return &Deleted{
		BaseEvent:      event.NewBaseEvent(EventTypeTaskDeleted, taskID.String(), AggregateType, version, metadata),
		DeletedBy:      deletedBy,
		Reason:         reason,
		PreviousStatus: previousStatus,
	}
}

// NewEventByType создает пустое событие нужного типа с восстановленным заголовком.
// Payload заполняется вызывающей стороной при десериализации.
func NewEventByType(base event.BaseEvent) (event.DomainEvent, error) {
	switch base.EventType() {
	case EventTypeTaskCreated:
		return &Created{BaseEvent: base}, nil
	case EventTypeTaskClaimed:
		return &Claimed{BaseEvent: base}, nil
	case EventTypeTaskAssigned:
		return &Assigned{BaseEvent: base}, nil
	case EventTypeTaskReleased:
		return &Released{BaseEvent: base}, nil
	case EventTypeTaskCompleted:
		return &Completed{BaseEvent: base}, nil
	case EventTypeTaskDeleted:
		return &Deleted{BaseEvent: base}, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", base.EventType())
	}
}
