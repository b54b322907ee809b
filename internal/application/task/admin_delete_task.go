package task

import (
	"context"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/task"
)

// AdminDeleteTaskUseCase deletes any active task (admin only)
type AdminDeleteTaskUseCase struct {
	executor *BaseExecutor
}

// NewAdminDeleteTaskUseCase creates a new AdminDeleteTaskUseCase
func NewAdminDeleteTaskUseCase(executor *BaseExecutor) *AdminDeleteTaskUseCase {
	return &AdminDeleteTaskUseCase{executor: executor}
}

// Execute deletes the task, bypassing visibility
func (uc *AdminDeleteTaskUseCase) Execute(
	ctx context.Context,
	p principal.Principal,
	cmd DeleteTaskCommand,
) (TaskResult, error) {
	if err := requireAdmin(p); err != nil {
		return TaskResult{}, err
	}

	return uc.executor.Execute(ctx, "admin_delete", cmd.TaskID, func(a *task.Aggregate) error {
		return a.ForceDelete(p, cmd.Reason)
	})
}
