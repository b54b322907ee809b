package task

import (
	"context"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/task"
)

// ClaimTaskUseCase assigns an unclaimed group task to the caller
type ClaimTaskUseCase struct {
	executor *BaseExecutor
}

// NewClaimTaskUseCase creates a new ClaimTaskUseCase
func NewClaimTaskUseCase(executor *BaseExecutor) *ClaimTaskUseCase {
	return &ClaimTaskUseCase{executor: executor}
}

// Execute claims the task.
// Of concurrent claims on the same task exactly one succeeds; the others are
// re-evaluated against the stored state and fail with ErrTaskNotFound or ErrIllegalState.
func (uc *ClaimTaskUseCase) Execute(ctx context.Context, p principal.Principal, cmd ClaimTaskCommand) (TaskResult, error) {
	if p.IsZero() {
		return TaskResult{}, ErrUnauthenticated
	}

	return uc.executor.Execute(ctx, "claim", cmd.TaskID, func(a *task.Aggregate) error {
		return a.Claim(p)
	})
}
