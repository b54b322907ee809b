package task

import (
	"context"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/task"
)

// AdminReleaseTaskUseCase clears the assignee of any active task (admin only)
type AdminReleaseTaskUseCase struct {
	executor *BaseExecutor
}

// NewAdminReleaseTaskUseCase creates a new AdminReleaseTaskUseCase
func NewAdminReleaseTaskUseCase(executor *BaseExecutor) *AdminReleaseTaskUseCase {
	return &AdminReleaseTaskUseCase{executor: executor}
}

// Execute releases the task, bypassing visibility
func (uc *AdminReleaseTaskUseCase) Execute(
	ctx context.Context,
	p principal.Principal,
	cmd ReleaseTaskCommand,
) (TaskResult, error) {
	if err := requireAdmin(p); err != nil {
		return TaskResult{}, err
	}

	return uc.executor.Execute(ctx, "admin_release", cmd.TaskID, func(a *task.Aggregate) error {
		return a.ForceRelease(p)
	})
}
