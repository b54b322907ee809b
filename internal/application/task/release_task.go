package task

import (
	"context"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/task"
)

// ReleaseTaskUseCase returns a task assigned to the caller back to CREATED
type ReleaseTaskUseCase struct {
	executor *BaseExecutor
}

// NewReleaseTaskUseCase creates a new ReleaseTaskUseCase
func NewReleaseTaskUseCase(executor *BaseExecutor) *ReleaseTaskUseCase {
	return &ReleaseTaskUseCase{executor: executor}
}

// Execute releases the task
func (uc *ReleaseTaskUseCase) Execute(
	ctx context.Context,
	p principal.Principal,
	cmd ReleaseTaskCommand,
) (TaskResult, error) {
	if p.IsZero() {
		return TaskResult{}, ErrUnauthenticated
	}

	return uc.executor.Execute(ctx, "release", cmd.TaskID, func(a *task.Aggregate) error {
		return a.Release(p)
	})
}
