package task

import (
	"context"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/task"
)

// DeleteTaskUseCase marks a task DELETED. The record is kept.
type DeleteTaskUseCase struct {
	executor *BaseExecutor
}

// NewDeleteTaskUseCase creates a new DeleteTaskUseCase
func NewDeleteTaskUseCase(executor *BaseExecutor) *DeleteTaskUseCase {
	return &DeleteTaskUseCase{executor: executor}
}

// Execute deletes the task.
// Non-admins may delete only tasks assigned to them.
func (uc *DeleteTaskUseCase) Execute(ctx context.Context, p principal.Principal, cmd DeleteTaskCommand) (TaskResult, error) {
	if p.IsZero() {
		return TaskResult{}, ErrUnauthenticated
	}

	return uc.executor.Execute(ctx, "delete", cmd.TaskID, func(a *task.Aggregate) error {
		return a.Delete(p, cmd.Reason)
	})
}
