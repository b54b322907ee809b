package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/domain/errs"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// TasksCollection имя коллекции read model задач
const TasksCollection = "tasks"

// RepairScheduler принимает задачи, read model которых не удалось обновить после сохранения событий
type RepairScheduler interface {
	Add(ctx context.Context, taskID uuid.UUID, cause error) error
}

// MongoTaskRepository реализует taskapp.CommandRepository
type MongoTaskRepository struct {
	eventStore    appcore.EventStore
	readModelColl *mongo.Collection
	logger        *slog.Logger
	repairs       RepairScheduler
}

// RepositoryOption настраивает MongoTaskRepository
type RepositoryOption func(*MongoTaskRepository)

// WithRepairScheduler ставит в очередь ремонта задачи с несохраненной read model
func WithRepairScheduler(s RepairScheduler) RepositoryOption {
	return func(r *MongoTaskRepository) {
		r.repairs = s
	}
}

// NewMongoTaskRepository создает новый MongoDB Task Repository
func NewMongoTaskRepository(
	eventStore appcore.EventStore,
	readModelColl *mongo.Collection,
	logger *slog.Logger,
	opts ...RepositoryOption,
) *MongoTaskRepository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &MongoTaskRepository{
		eventStore:    eventStore,
		readModelColl: readModelColl,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load загружает Task из event store путем восстановления состояния из событий
func (r *MongoTaskRepository) Load(ctx context.Context, taskID uuid.UUID) (*taskdomain.Aggregate, error) {
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

// Save сохраняет новые события Task в event store и обновляет read model
func (r *MongoTaskRepository) Save(ctx context.Context, task *taskdomain.Aggregate) error {
	if task == nil {
		return errs.ErrInvalidInput
	}

	uncommittedEvents := task.UncommittedEvents()
	if len(uncommittedEvents) == 0 {
		return nil
	}

	// 1. Сохраняем события в event store
	expectedVersion := task.Version() - len(uncommittedEvents)
	err := r.eventStore.SaveEvents(ctx, task.ID().String(), uncommittedEvents, expectedVersion)
	if err != nil {
		if errors.Is(err, appcore.ErrConcurrencyConflict) {
			return errs.ErrConcurrentModification
		}
		return fmt.Errorf("failed to save events: %w", err)
	}

	task.MarkEventsAsCommitted()

	// 2. Обновляем read model; при сбое ее можно пересобрать из событий
	if updateErr := r.UpsertReadModel(ctx, taskapp.NewReadModel(task)); updateErr != nil {
		r.logger.ErrorContext(ctx, "failed to update task read model",
			slog.String("task_id", task.ID().String()),
			slog.Int("version", task.Version()),
			slog.String("error", updateErr.Error()),
		)
		r.scheduleRepair(ctx, task.ID(), updateErr)
	}

	return nil
}

func (r *MongoTaskRepository) scheduleRepair(ctx context.Context, taskID uuid.UUID, cause error) {
	if r.repairs == nil {
		return
	}
	// контекст запроса может быть уже отменен
	if err := r.repairs.Add(context.WithoutCancel(ctx), taskID, cause); err != nil {
		r.logger.ErrorContext(ctx, "failed to queue task read model repair",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// UpsertReadModel записывает read model, если сохраненная версия не новее
func (r *MongoTaskRepository) UpsertReadModel(ctx context.Context, rm *taskapp.ReadModel) error {
	if rm == nil || rm.ID.IsZero() {
		return errs.ErrInvalidInput
	}

	doc := readModelToDocument(rm)
	filter := bson.M{
		"task_id": doc.TaskID,
		"version": bson.M{"$lte": doc.Version},
	}
	update := bson.M{"$set": doc}

	_, err := r.readModelColl.UpdateOne(ctx, filter, update, upsert())
	if mongo.IsDuplicateKeyError(err) {
		// документ уже содержит более новую версию
		return nil
	}

	return mongoErr(err, "task read model")
}

// MongoTaskQueryRepository реализует taskapp.QueryRepository
type MongoTaskQueryRepository struct {
	collection *mongo.Collection
}

// NewMongoTaskQueryRepository создает новый MongoDB Task Query Repository
func NewMongoTaskQueryRepository(collection *mongo.Collection) *MongoTaskQueryRepository {
	return &MongoTaskQueryRepository{
		collection: collection,
	}
}

// FindByID находит задачу по ID из read model
func (r *MongoTaskQueryRepository) FindByID(ctx context.Context, taskID uuid.UUID) (*taskapp.ReadModel, error) {
	if taskID.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	var doc taskReadModelDocument
	err := r.collection.FindOne(ctx, bson.M{"task_id": taskID.String()}).Decode(&doc)
	if err != nil {
		return nil, mongoErr(err, "task")
	}

	return documentToReadModel(&doc), nil
}

// Find возвращает задачи по фильтру видимости, от старых к новым
func (r *MongoTaskQueryRepository) Find(ctx context.Context, query taskapp.Query) ([]*taskapp.ReadModel, error) {
	filter, ok := buildFilter(query)
	if !ok {
		return make([]*taskapp.ReadModel, 0), nil
	}

	page := query.Page.Normalize()
	opts := pageOf(page.Offset, page.Limit, bson.D{
		{Key: "created_at", Value: 1},
		{Key: "task_id", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoErr(err, "tasks")
	}
	defer cursor.Close(ctx)

	results := make([]*taskapp.ReadModel, 0, page.Limit)
	for cursor.Next(ctx) {
		var doc taskReadModelDocument
		if decodeErr := cursor.Decode(&doc); decodeErr != nil {
			return nil, fmt.Errorf("failed to decode task: %w", decodeErr)
		}
		results = append(results, documentToReadModel(&doc))
	}

	if err = cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return results, nil
}

// buildFilter транслирует Query в фильтр MongoDB.
// Второе значение false означает, что под фильтр не попадает ни одна задача.
func buildFilter(query taskapp.Query) (bson.M, bool) {
	conditions := bson.A{}

	if len(query.Statuses) > 0 {
		conditions = append(conditions, bson.M{"status": bson.M{"$in": statusValues(query.Statuses)}})
	}

	if !query.Visibility.All {
		visible := bson.A{}
		if query.Visibility.Username != "" {
			visible = append(visible, bson.M{"assignee": query.Visibility.Username})
		}
		if len(query.Visibility.Groups) > 0 {
			visible = append(visible, bson.M{
				"assignee": nil,
				"group":    bson.M{"$in": query.Visibility.Groups},
			})
		}
		if len(visible) == 0 {
			return nil, false
		}

		conditions = append(conditions,
			bson.M{"status": bson.M{"$nin": bson.A{
				string(taskdomain.StatusCompleted),
				string(taskdomain.StatusDeleted),
			}}},
			bson.M{"$or": visible},
		)
	}

	if len(conditions) == 0 {
		return bson.M{}, true
	}

	return bson.M{"$and": conditions}, true
}

func statusValues(statuses []taskdomain.Status) bson.A {
	values := make(bson.A, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return values
}

// taskReadModelDocument структура документа read model
type taskReadModelDocument struct {
	TaskID       string         `bson:"task_id"`
	Name         string         `bson:"name"`
	Assignee     *string        `bson:"assignee"`
	Group        *string        `bson:"group"`
	Status       string         `bson:"status"`
	Owner        string         `bson:"owner"`
	Variables    map[string]any `bson:"variables,omitempty"`
	DeleteReason string         `bson:"delete_reason,omitempty"`
	CreatedAt    time.Time      `bson:"created_at"`
	UpdatedAt    time.Time      `bson:"updated_at"`
	Version      int            `bson:"version"`
}

func readModelToDocument(rm *taskapp.ReadModel) taskReadModelDocument {
	return taskReadModelDocument{
		TaskID:       rm.ID.String(),
		Name:         rm.Name,
		Assignee:     optional(rm.AssigneeName()),
		Group:        optional(rm.GroupName()),
		Status:       string(rm.Status),
		Owner:        rm.Owner,
		Variables:    rm.Variables,
		DeleteReason: rm.DeleteReason,
		CreatedAt:    rm.CreatedAt,
		UpdatedAt:    rm.UpdatedAt,
		Version:      rm.Version,
	}
}

// documentToReadModel преобразует документ в ReadModel
func documentToReadModel(doc *taskReadModelDocument) *taskapp.ReadModel {
	rm := &taskapp.ReadModel{
		ID:           uuid.UUID(doc.TaskID),
		Name:         doc.Name,
		Status:       taskdomain.Status(doc.Status),
		Owner:        doc.Owner,
		Variables:    doc.Variables,
		DeleteReason: doc.DeleteReason,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		Version:      doc.Version,
	}

	if assignee := deref(doc.Assignee); assignee != "" {
		rm.Assignee = &assignee
	}
	if group := deref(doc.Group); group != "" {
		rm.Group = &group
	}

	return rm
}

// MongoTaskFullRepository объединяет Command и Query репозитории
type MongoTaskFullRepository struct {
	*MongoTaskRepository
	*MongoTaskQueryRepository
}

// NewMongoTaskFullRepository создает полный репозиторий
func NewMongoTaskFullRepository(
	eventStore appcore.EventStore,
	readModelColl *mongo.Collection,
	logger *slog.Logger,
	opts ...RepositoryOption,
) *MongoTaskFullRepository {
	return &MongoTaskFullRepository{
		MongoTaskRepository:      NewMongoTaskRepository(eventStore, readModelColl, logger, opts...),
		MongoTaskQueryRepository: NewMongoTaskQueryRepository(readModelColl),
	}
}

// Compile-time interface checks
var (
	_ taskapp.CommandRepository = (*MongoTaskRepository)(nil)
	_ taskapp.QueryRepository   = (*MongoTaskQueryRepository)(nil)
	_ taskapp.Repository        = (*MongoTaskFullRepository)(nil)
)
