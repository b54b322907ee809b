package task

import (
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// CreateTaskCommand contains data for creating a task.
// Exactly one of Assignee and Group must be set.
type CreateTaskCommand struct {
	Name     string
	Assignee string
	Group    string
}

// ClaimTaskCommand contains data for claiming a group task
type ClaimTaskCommand struct {
	TaskID uuid.UUID
}

// ReleaseTaskCommand contains data for releasing a task back to its group
type ReleaseTaskCommand struct {
	TaskID uuid.UUID
}

// CompleteTaskCommand contains data for completing a task
type CompleteTaskCommand struct {
	TaskID    uuid.UUID
	Variables map[string]any // optional
}

// DeleteTaskCommand contains data for deleting a task
type DeleteTaskCommand struct {
	TaskID uuid.UUID
	Reason string
}

// AssignTaskCommand contains data for assigning a task (admin only)
type AssignTaskCommand struct {
	TaskID   uuid.UUID
	Assignee string
}

// PurgeTasksCommand contains data for deleting every active task (admin only)
type PurgeTasksCommand struct {
	Reason string
}
