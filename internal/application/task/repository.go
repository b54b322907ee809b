package task

import (
	"context"

	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// CommandRepository предоставляет методы для работы с агрегатом Task
// через Event Sourcing (запись)
type CommandRepository interface {
	// Load загружает Task из event store путем восстановления состояния из событий
	Load(ctx context.Context, taskID uuid.UUID) (*taskdomain.Aggregate, error)

	// Save сохраняет новые события Task с проверкой ожидаемой версии.
	// При конфликте версий возвращает errs.ErrConcurrentModification.
	Save(ctx context.Context, task *taskdomain.Aggregate) error
}

// Query параметры выборки задач из read model
type Query struct {
	// Visibility ограничивает выборку видимыми задачами
	Visibility taskdomain.Visibility

	// Statuses дополнительно ограничивает статусы (пустой список означает любые)
	Statuses []taskdomain.Status

	// Page окно выборки; порядок всегда created_at по возрастанию, затем ID
	Page Pageable
}

// QueryRepository предоставляет методы для чтения данных Task
// из read model (денормализованное представление)
type QueryRepository interface {
	// FindByID находит задачу по ID (из read model)
	FindByID(ctx context.Context, taskID uuid.UUID) (*ReadModel, error)

	// Find возвращает задачи, подходящие под Query
	Find(ctx context.Context, query Query) ([]*ReadModel, error)
}

// Repository объединяет Command и Query интерфейсы
type Repository interface {
	CommandRepository
	QueryRepository
}
