package task

import (
	"context"
	"fmt"
	"time"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
)

// ListTasksUseCase returns the tasks visible to the caller, oldest first
type ListTasksUseCase struct {
	queryRepo QueryRepository
	executor  *BaseExecutor
}

// NewListTasksUseCase creates a new ListTasksUseCase
func NewListTasksUseCase(queryRepo QueryRepository, executor *BaseExecutor) *ListTasksUseCase {
	return &ListTasksUseCase{
		queryRepo: queryRepo,
		executor:  executor,
	}
}

// Execute returns one page of tasks ordered by creation time ascending
func (uc *ListTasksUseCase) Execute(
	ctx context.Context,
	p principal.Principal,
	query ListTasksQuery,
) (Page[*ReadModel], error) {
	started := time.Now()
	page, err := uc.execute(ctx, p, query)
	uc.executor.Observe(operationName("list", query.Admin), started, err)
	return page, err
}

func (uc *ListTasksUseCase) execute(
	ctx context.Context,
	p principal.Principal,
	query ListTasksQuery,
) (Page[*ReadModel], error) {
	if p.IsZero() {
		return Page[*ReadModel]{}, ErrUnauthenticated
	}

	visibility := taskdomain.VisibilityFor(p)
	if query.Admin {
		if !p.IsAdmin() {
			return Page[*ReadModel]{}, ErrAdminRequired
		}
		visibility = taskdomain.Everything()
	}

	items, err := uc.queryRepo.Find(ctx, Query{
		Visibility: visibility,
		Page:       query.Page.Normalize(),
	})
	if err != nil {
		return Page[*ReadModel]{}, fmt.Errorf("failed to list tasks: %w", err)
	}

	return NewPage(items), nil
}
