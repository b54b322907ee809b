package task

import (
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// GetTaskQuery requests a single task
type GetTaskQuery struct {
	TaskID uuid.UUID

	// Admin bypasses visibility; requires an admin principal
	Admin bool
}

// ListTasksQuery requests a page of tasks
type ListTasksQuery struct {
	Page Pageable

	// Admin bypasses visibility; requires an admin principal
	Admin bool
}
