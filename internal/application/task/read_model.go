package task

import (
	"time"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// ReadModel денормализованное представление задачи для запросов
type ReadModel struct {
	ID           uuid.UUID
	Name         string
	Assignee     *string
	Group        *string
	Status       taskdomain.Status
	Owner        string
	Variables    map[string]any
	DeleteReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int
}

// NewReadModel строит read model из состояния агрегата
func NewReadModel(aggregate *taskdomain.Aggregate) *ReadModel {
	rm := &ReadModel{
		ID:           aggregate.ID(),
		Name:         aggregate.Name(),
		Status:       aggregate.Status(),
		Owner:        aggregate.Owner(),
		Variables:    aggregate.Variables(),
		DeleteReason: aggregate.DeleteReason(),
		CreatedAt:    aggregate.CreatedAt(),
		UpdatedAt:    aggregate.UpdatedAt(),
		Version:      aggregate.Version(),
	}

	if assignee := aggregate.Assignee(); assignee != "" {
		rm.Assignee = &assignee
	}
	if group := aggregate.Group(); group != "" {
		rm.Group = &group
	}

	return rm
}

// AssigneeName возвращает исполнителя или пустую строку
func (rm *ReadModel) AssigneeName() string {
	if rm.Assignee == nil {
		return ""
	}
	return *rm.Assignee
}

// GroupName возвращает кандидатную группу или пустую строку
func (rm *ReadModel) GroupName() string {
	if rm.Group == nil {
		return ""
	}
	return *rm.Group
}

// IsVisibleTo применяет правило видимости к read model
func (rm *ReadModel) IsVisibleTo(p principal.Principal) bool {
	return taskdomain.IsVisible(p, rm.AssigneeName(), rm.GroupName(), rm.Status)
}
