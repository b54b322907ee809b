package task

import (
	"context"
	"strings"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// MaxNameLength максимальная длина названия задачи
const MaxNameLength = 255

// CreateTaskUseCase handles creation of new tasks
type CreateTaskUseCase struct {
	executor *BaseExecutor
}

// NewCreateTaskUseCase creates a new CreateTaskUseCase
func NewCreateTaskUseCase(executor *BaseExecutor) *CreateTaskUseCase {
	return &CreateTaskUseCase{
		executor: executor,
	}
}

// Execute creates a task owned by p.
// A task with an assignee starts ASSIGNED, a task with a group starts CREATED.
func (uc *CreateTaskUseCase) Execute(
	ctx context.Context,
	p principal.Principal,
	cmd CreateTaskCommand,
) (TaskResult, error) {
	if p.IsZero() {
		return TaskResult{}, ErrUnauthenticated
	}

	// 1. Validation
	cmd = uc.normalize(cmd)
	if err := uc.validate(cmd); err != nil {
		return TaskResult{}, err
	}

	// 2. Create aggregate
	aggregate := task.NewTaskAggregate(uuid.NewUUID()).
		WithCorrelationID(appcore.GetCorrelationID(ctx))

	if err := aggregate.Create(cmd.Name, cmd.Assignee, cmd.Group, p); err != nil {
		return TaskResult{}, mapDomainError(err)
	}

	// 3. Save events and project read model
	return uc.executor.Persist(ctx, "create", aggregate)
}

func (uc *CreateTaskUseCase) normalize(cmd CreateTaskCommand) CreateTaskCommand {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Assignee = strings.TrimSpace(cmd.Assignee)
	cmd.Group = strings.TrimSpace(cmd.Group)
	return cmd
}

func (uc *CreateTaskUseCase) validate(cmd CreateTaskCommand) error {
	if err := appcore.ValidateRequired("name", cmd.Name); err != nil {
		return ErrEmptyName
	}
	if err := appcore.ValidateMaxLength("name", cmd.Name, MaxNameLength); err != nil {
		return ErrNameTooLong
	}
	if cmd.Assignee == "" && cmd.Group == "" {
		return ErrAssigneeOrGroupRequired
	}
	if cmd.Assignee != "" && cmd.Group != "" {
		return ErrAssigneeAndGroup
	}
	return nil
}
