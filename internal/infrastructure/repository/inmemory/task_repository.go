package inmemory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/domain/errs"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// TaskRepository реализует taskapp.Repository поверх event store
// и read model, хранящейся в памяти процесса
type TaskRepository struct {
	eventStore appcore.EventStore

	mu         sync.RWMutex
	readModels map[uuid.UUID]*taskapp.ReadModel
}

// NewTaskRepository создает новый in-memory Task Repository
func NewTaskRepository(eventStore appcore.EventStore) *TaskRepository {
	return &TaskRepository{
		eventStore: eventStore,
		readModels: make(map[uuid.UUID]*taskapp.ReadModel),
	}
}

// Load восстанавливает Task из событий
func (r *TaskRepository) Load(ctx context.Context, taskID uuid.UUID) (*taskdomain.Aggregate, error) {
	if taskID.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	events, err := r.eventStore.LoadEvents(ctx, taskID.String())
	if err != nil {
		if errors.Is(err, appcore.ErrAggregateNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load events for task %s: %w", taskID, err)
	}

	aggregate := taskdomain.NewTaskAggregate(taskID)
	aggregate.ReplayEvents(events)
	aggregate.MarkEventsAsCommitted()

	return aggregate, nil
}

// Save сохраняет новые события и обновляет read model
func (r *TaskRepository) Save(ctx context.Context, task *taskdomain.Aggregate) error {
	if task == nil {
		return errs.ErrInvalidInput
	}

	uncommitted := task.UncommittedEvents()
	if len(uncommitted) == 0 {
		return nil
	}

	expectedVersion := task.Version() - len(uncommitted)
	if err := r.eventStore.SaveEvents(ctx, task.ID().String(), uncommitted, expectedVersion); err != nil {
		if errors.Is(err, appcore.ErrConcurrencyConflict) {
			return errs.ErrConcurrentModification
		}
		return fmt.Errorf("failed to save events: %w", err)
	}

	task.MarkEventsAsCommitted()

	return r.UpsertReadModel(ctx, taskapp.NewReadModel(task))
}

// UpsertReadModel заменяет read model задачи, если она не новее переданной
func (r *TaskRepository) UpsertReadModel(_ context.Context, rm *taskapp.ReadModel) error {
	if rm == nil || rm.ID.IsZero() {
		return errs.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.readModels[rm.ID]; ok && current.Version > rm.Version {
		return nil
	}
	r.readModels[rm.ID] = cloneReadModel(rm)

	return nil
}

// FindByID возвращает read model задачи
func (r *TaskRepository) FindByID(_ context.Context, taskID uuid.UUID) (*taskapp.ReadModel, error) {
	if taskID.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.readModels[taskID]
	if !ok {
		return nil, errs.ErrNotFound
	}

	return cloneReadModel(rm), nil
}

// Find возвращает задачи по фильтру, от старых к новым
func (r *TaskRepository) Find(_ context.Context, query taskapp.Query) ([]*taskapp.ReadModel, error) {
	r.mu.RLock()
	matched := make([]*taskapp.ReadModel, 0, len(r.readModels))
	for _, rm := range r.readModels {
		if !query.Visibility.Matches(rm.AssigneeName(), rm.GroupName(), rm.Status) {
			continue
		}
		if len(query.Statuses) > 0 && !slices.Contains(query.Statuses, rm.Status) {
			continue
		}
		matched = append(matched, cloneReadModel(rm))
	}
	r.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b *taskapp.ReadModel) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	return taskapp.Paginate(matched, query.Page).Content, nil
}

// Count возвращает количество хранимых read model
func (r *TaskRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.readModels)
}

// Reset очищает read model (event store не затрагивается)
func (r *TaskRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readModels = make(map[uuid.UUID]*taskapp.ReadModel)
}

func cloneReadModel(rm *taskapp.ReadModel) *taskapp.ReadModel {
	c := *rm
	if rm.Assignee != nil {
		assignee := *rm.Assignee
		c.Assignee = &assignee
	}
	if rm.Group != nil {
		group := *rm.Group
		c.Group = &group
	}
	c.Variables = maps.Clone(rm.Variables)
	return &c
}

var _ taskapp.Repository = (*TaskRepository)(nil)
