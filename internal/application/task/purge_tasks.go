package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
)

const purgeBatchSize = 100

// PurgeTasksUseCase deletes every active task (admin only).
// Used for bulk cleanup, e.g. between test runs.
type PurgeTasksUseCase struct {
	queryRepo QueryRepository
	deleter   *AdminDeleteTaskUseCase
	logger    *slog.Logger
}

// NewPurgeTasksUseCase creates a new PurgeTasksUseCase
func NewPurgeTasksUseCase(
	queryRepo QueryRepository,
	deleter *AdminDeleteTaskUseCase,
	logger *slog.Logger,
) *PurgeTasksUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeTasksUseCase{
		queryRepo: queryRepo,
		deleter:   deleter,
		logger:    logger,
	}
}

// Execute deletes active tasks batch by batch until none are left.
// Tasks that fail to delete are skipped and counted in PurgeResult.Failed.
func (uc *PurgeTasksUseCase) Execute(ctx context.Context, p principal.Principal, cmd PurgeTasksCommand) (PurgeResult, error) {
	if err := requireAdmin(p); err != nil {
		return PurgeResult{}, err
	}

	var result PurgeResult
	for {
		// deleted tasks drop out of the status filter, failed ones are skipped by offset
		batch, err := uc.queryRepo.Find(ctx, Query{
			Visibility: taskdomain.Everything(),
			Statuses:   []taskdomain.Status{taskdomain.StatusCreated, taskdomain.StatusAssigned},
			Page:       Pageable{Offset: result.Failed, Limit: purgeBatchSize},
		})
		if err != nil {
			return result, fmt.Errorf("failed to list active tasks: %w", err)
		}
		if len(batch) == 0 {
			return result, nil
		}

		for _, rm := range batch {
			_, delErr := uc.deleter.Execute(ctx, p, DeleteTaskCommand{TaskID: rm.ID, Reason: cmd.Reason})
			switch {
			case delErr == nil:
				result.Deleted++
			case errors.Is(delErr, ErrIllegalState), errors.Is(delErr, ErrTaskNotFound):
				// already terminal or gone; the read model lagged behind
				result.Failed++
			case ctx.Err() != nil:
				return result, ctx.Err()
			default:
				uc.logger.WarnContext(ctx, "failed to delete task during purge",
					slog.String("task_id", rm.ID.String()),
					slog.String("error", delErr.Error()),
				)
				result.Failed++
			}
		}
	}
}
