package task

import (
	"context"
	"log/slog"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// TaskRuntime is the lifecycle engine as seen by an ordinary principal.
// Every call takes the acting principal explicitly.
//
//nolint:revive // name mirrors the admin counterpart
type TaskRuntime struct {
	createTask   *CreateTaskUseCase
	claimTask    *ClaimTaskUseCase
	releaseTask  *ReleaseTaskUseCase
	completeTask *CompleteTaskUseCase
	deleteTask   *DeleteTaskUseCase
	getTask      *GetTaskUseCase
	listTasks    *ListTasksUseCase
}

// TaskAdminRuntime exposes the administrative variants that bypass visibility.
//
//nolint:revive // name mirrors TaskRuntime
type TaskAdminRuntime struct {
	assignTask  *AssignTaskUseCase
	releaseTask *AdminReleaseTaskUseCase
	deleteTask  *AdminDeleteTaskUseCase
	purgeTasks  *PurgeTasksUseCase
	getTask     *GetTaskUseCase
	listTasks   *ListTasksUseCase
}

// NewRuntimes wires both runtimes over the same repository and executor options.
func NewRuntimes(repo Repository, logger *slog.Logger, opts ...ExecutorOption) (*TaskRuntime, *TaskAdminRuntime) {
	if logger == nil {
		logger = slog.Default()
	}
	executor := NewBaseExecutor(repo, append([]ExecutorOption{WithLogger(logger)}, opts...)...)

	getTask := NewGetTaskUseCase(repo, executor)
	listTasks := NewListTasksUseCase(repo, executor)
	adminDelete := NewAdminDeleteTaskUseCase(executor)

	runtime := &TaskRuntime{
		createTask:   NewCreateTaskUseCase(executor),
		claimTask:    NewClaimTaskUseCase(executor),
		releaseTask:  NewReleaseTaskUseCase(executor),
		completeTask: NewCompleteTaskUseCase(executor),
		deleteTask:   NewDeleteTaskUseCase(executor),
		getTask:      getTask,
		listTasks:    listTasks,
	}

	adminRuntime := &TaskAdminRuntime{
		assignTask:  NewAssignTaskUseCase(executor),
		releaseTask: NewAdminReleaseTaskUseCase(executor),
		deleteTask:  adminDelete,
		purgeTasks:  NewPurgeTasksUseCase(repo, adminDelete, logger),
		getTask:     getTask,
		listTasks:   listTasks,
	}

	return runtime, adminRuntime
}

// Create creates a task with either an assignee or a candidate group.
func (r *TaskRuntime) Create(ctx context.Context, p principal.Principal, cmd CreateTaskCommand) (TaskResult, error) {
	return r.createTask.Execute(ctx, p, cmd)
}

// Claim assigns a visible CREATED task to p.
func (r *TaskRuntime) Claim(ctx context.Context, p principal.Principal, taskID uuid.UUID) (TaskResult, error) {
	return r.claimTask.Execute(ctx, p, ClaimTaskCommand{TaskID: taskID})
}

// Release returns a task assigned to p back to CREATED.
func (r *TaskRuntime) Release(ctx context.Context, p principal.Principal, taskID uuid.UUID) (TaskResult, error) {
	return r.releaseTask.Execute(ctx, p, ReleaseTaskCommand{TaskID: taskID})
}

// Complete completes a task assigned to p.
func (r *TaskRuntime) Complete(
	ctx context.Context,
	p principal.Principal,
	taskID uuid.UUID,
	variables map[string]any,
) (TaskResult, error) {
	return r.completeTask.Execute(ctx, p, CompleteTaskCommand{TaskID: taskID, Variables: variables})
}

// Delete marks a task DELETED.
func (r *TaskRuntime) Delete(
	ctx context.Context,
	p principal.Principal,
	taskID uuid.UUID,
	reason string,
) (TaskResult, error) {
	return r.deleteTask.Execute(ctx, p, DeleteTaskCommand{TaskID: taskID, Reason: reason})
}

// Task returns a single visible task.
func (r *TaskRuntime) Task(ctx context.Context, p principal.Principal, taskID uuid.UUID) (*ReadModel, error) {
	return r.getTask.Execute(ctx, p, GetTaskQuery{TaskID: taskID})
}

// Tasks returns a page of visible tasks, oldest first.
func (r *TaskRuntime) Tasks(ctx context.Context, p principal.Principal, pageable Pageable) (Page[*ReadModel], error) {
	return r.listTasks.Execute(ctx, p, ListTasksQuery{Page: pageable})
}

// Assign assigns any active task to assignee.
func (r *TaskAdminRuntime) Assign(
	ctx context.Context,
	p principal.Principal,
	taskID uuid.UUID,
	assignee string,
) (TaskResult, error) {
	return r.assignTask.Execute(ctx, p, AssignTaskCommand{TaskID: taskID, Assignee: assignee})
}

// Release clears the assignee of any active task.
func (r *TaskAdminRuntime) Release(ctx context.Context, p principal.Principal, taskID uuid.UUID) (TaskResult, error) {
	return r.releaseTask.Execute(ctx, p, ReleaseTaskCommand{TaskID: taskID})
}

// Delete marks any active task DELETED.
func (r *TaskAdminRuntime) Delete(
	ctx context.Context,
	p principal.Principal,
	taskID uuid.UUID,
	reason string,
) (TaskResult, error) {
	return r.deleteTask.Execute(ctx, p, DeleteTaskCommand{TaskID: taskID, Reason: reason})
}

// DeleteAll marks every active task DELETED.
func (r *TaskAdminRuntime) DeleteAll(ctx context.Context, p principal.Principal, reason string) (PurgeResult, error) {
	return r.purgeTasks.Execute(ctx, p, PurgeTasksCommand{Reason: reason})
}

// Task returns any task regardless of status or visibility.
func (r *TaskAdminRuntime) Task(ctx context.Context, p principal.Principal, taskID uuid.UUID) (*ReadModel, error) {
	return r.getTask.Execute(ctx, p, GetTaskQuery{TaskID: taskID, Admin: true})
}

// Tasks returns a page of all tasks, oldest first.
func (r *TaskAdminRuntime) Tasks(ctx context.Context, p principal.Principal, pageable Pageable) (Page[*ReadModel], error) {
	return r.listTasks.Execute(ctx, p, ListTasksQuery{Page: pageable, Admin: true})
}
