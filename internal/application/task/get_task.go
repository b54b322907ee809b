package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lllypuk/taskflow/internal/domain/errs"
	"github.com/lllypuk/taskflow/internal/domain/principal"
)

// GetTaskUseCase returns a single task if the caller can see it
type GetTaskUseCase struct {
	queryRepo QueryRepository
	executor  *BaseExecutor
}

// NewGetTaskUseCase creates a new GetTaskUseCase
func NewGetTaskUseCase(queryRepo QueryRepository, executor *BaseExecutor) *GetTaskUseCase {
	return &GetTaskUseCase{
		queryRepo: queryRepo,
		executor:  executor,
	}
}

// Execute loads the task from the read model and applies the visibility rule
func (uc *GetTaskUseCase) Execute(ctx context.Context, p principal.Principal, query GetTaskQuery) (*ReadModel, error) {
	started := time.Now()
	rm, err := uc.execute(ctx, p, query)
	uc.executor.Observe(operationName("get", query.Admin), started, err)
	return rm, err
}

func (uc *GetTaskUseCase) execute(ctx context.Context, p principal.Principal, query GetTaskQuery) (*ReadModel, error) {
	if p.IsZero() {
		return nil, ErrUnauthenticated
	}
	if query.Admin && !p.IsAdmin() {
		return nil, ErrAdminRequired
	}
	if query.TaskID.IsZero() {
		return nil, ErrInvalidTaskID
	}

	rm, err := uc.queryRepo.FindByID(ctx, query.TaskID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if !query.Admin && !rm.IsVisibleTo(p) {
		return nil, ErrTaskNotFound
	}

	return rm, nil
}

func operationName(name string, admin bool) string {
	if admin {
		return "admin_" + name
	}
	return name
}
