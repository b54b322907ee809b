package task

import (
	"context"
	"strings"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/task"
)

// AssignTaskUseCase assigns any active task to a user (admin only)
type AssignTaskUseCase struct {
	executor *BaseExecutor
}

// NewAssignTaskUseCase creates a new AssignTaskUseCase
func NewAssignTaskUseCase(executor *BaseExecutor) *AssignTaskUseCase {
	return &AssignTaskUseCase{executor: executor}
}

// Execute assigns the task, bypassing visibility
func (uc *AssignTaskUseCase) Execute(ctx context.Context, p principal.Principal, cmd AssignTaskCommand) (TaskResult, error) {
	if err := requireAdmin(p); err != nil {
		return TaskResult{}, err
	}

	assignee := strings.TrimSpace(cmd.Assignee)
	if assignee == "" {
		return TaskResult{}, ErrEmptyAssignee
	}

	return uc.executor.Execute(ctx, "admin_assign", cmd.TaskID, func(a *task.Aggregate) error {
		return a.AssignTo(p, assignee)
	})
}

// requireAdmin проверяет наличие административных прав
func requireAdmin(p principal.Principal) error {
	if p.IsZero() {
		return ErrUnauthenticated
	}
	if !p.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}
