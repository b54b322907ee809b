package task

import (
	"github.com/lllypuk/taskflow/internal/domain/event"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// TaskResult содержит результат выполнения use case для Task
//
//nolint:revive // имя явно указывает на принадлежность к task
type TaskResult struct {
	// TaskID идентификатор задачи
	TaskID uuid.UUID

	// Version текущая версия агрегата после выполнения операции
	Version int

	// Status статус задачи после операции
	Status taskdomain.Status

	// Assignee исполнитель после операции ("" если не назначен)
	Assignee string

	// Events события, сгенерированные операцией (пусто для идемпотентных вызовов)
	Events []event.DomainEvent
}

// newResult собирает результат из состояния агрегата
func newResult(aggregate *taskdomain.Aggregate, events []event.DomainEvent) TaskResult {
	return TaskResult{
		TaskID:   aggregate.ID(),
		Version:  aggregate.Version(),
		Status:   aggregate.Status(),
		Assignee: aggregate.Assignee(),
		Events:   events,
	}
}

// EventCount возвращает количество сгенерированных событий
func (r TaskResult) EventCount() int {
	return len(r.Events)
}

// PurgeResult результат массового удаления задач
type PurgeResult struct {
	Deleted int
	Failed  int
}
