package task

import (
	"context"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/task"
)

// CompleteTaskUseCase completes a task assigned to the caller
type CompleteTaskUseCase struct {
	executor *BaseExecutor
}

// NewCompleteTaskUseCase creates a new CompleteTaskUseCase
func NewCompleteTaskUseCase(executor *BaseExecutor) *CompleteTaskUseCase {
	return &CompleteTaskUseCase{executor: executor}
}

// Execute completes the task and stores the optional variables on it
func (uc *CompleteTaskUseCase) Execute(
	ctx context.Context,
	p principal.Principal,
	cmd CompleteTaskCommand,
) (TaskResult, error) {
	if p.IsZero() {
		return TaskResult{}, ErrUnauthenticated
	}

	return uc.executor.Execute(ctx, "complete", cmd.TaskID, func(a *task.Aggregate) error {
		return a.Complete(p, cmd.Variables)
	})
}
