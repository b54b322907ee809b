// Package repair queues task read models whose inline update failed so a
// worker can rebuild them from the event store.
package repair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/taskflow/internal/domain/uuid"
)

// Status of a repair entry.
type Status string

// Repair entry statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const defaultPollBatch = 10

// ErrEntryNotFound is returned when a repair entry does not exist.
var ErrEntryNotFound = errors.New("repair entry not found")

// Entry is a task read model waiting to be rebuilt.
type Entry struct {
	ID          string     `bson:"_id"`
	TaskID      string     `bson:"task_id"`
	Error       string     `bson:"error"`
	Status      Status     `bson:"status"`
	Attempts    int        `bson:"attempts"`
	CreatedAt   time.Time  `bson:"created_at"`
	LastTriedAt *time.Time `bson:"last_tried_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
}

// Queue manages read model repairs.
type Queue interface {
	// Add queues a repair for taskID. A pending repair for the same task absorbs it.
	Add(ctx context.Context, taskID uuid.UUID, cause error) error

	// Poll claims up to batchSize pending entries, oldest first, and marks them processing.
	Poll(ctx context.Context, batchSize int) ([]Entry, error)

	// MarkCompleted marks an entry completed.
	MarkCompleted(ctx context.Context, id string) error

	// Retry returns an entry to pending after a failed attempt.
	Retry(ctx context.Context, id string, cause error) error

	// MarkFailed gives up on an entry.
	MarkFailed(ctx context.Context, id string, cause error) error

	// Stats returns entry counts by status.
	Stats(ctx context.Context) (Stats, error)
}

// Stats contains repair queue counters.
type Stats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

// Total returns the number of entries in any status.
func (s Stats) Total() int64 {
	return s.Pending + s.Processing + s.Completed + s.Failed
}

func causeText(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

// MongoQueue implements Queue using MongoDB.
type MongoQueue struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoQueue creates a new MongoDB-based repair queue.
func NewMongoQueue(collection *mongo.Collection, logger *slog.Logger) *MongoQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoQueue{
		collection: collection,
		logger:     logger,
	}
}

// Add queues a repair for taskID.
func (q *MongoQueue) Add(ctx context.Context, taskID uuid.UUID, cause error) error {
	entry := Entry{
		ID:        uuid.NewUUID().String(),
		TaskID:    taskID.String(),
		Error:     causeText(cause),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	_, err := q.collection.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		// the unique partial index allows one pending entry per task
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert repair entry: %w", err)
	}

	q.logger.InfoContext(ctx, "queued task read model repair",
		slog.String("task_id", entry.TaskID),
		slog.String("cause", entry.Error),
	)

	return nil
}

// Poll claims pending entries one at a time so concurrent workers never share an entry.
func (q *MongoQueue) Poll(ctx context.Context, batchSize int) ([]Entry, error) {
	if batchSize <= 0 {
		batchSize = defaultPollBatch
	}

	filter := bson.M{"status": StatusPending}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetReturnDocument(options.After)

	entries := make([]Entry, 0, batchSize)
	for range batchSize {
		update := bson.M{
			"$set": bson.M{"status": StatusProcessing, "last_tried_at": time.Now().UTC()},
			"$inc": bson.M{"attempts": 1},
		}

		var entry Entry
		err := q.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&entry)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return entries, fmt.Errorf("failed to claim repair entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// MarkCompleted marks an entry completed.
func (q *MongoQueue) MarkCompleted(ctx context.Context, id string) error {
	return q.setStatus(ctx, id, bson.M{"status": StatusCompleted, "completed_at": time.Now().UTC()})
}

// Retry returns an entry to pending.
func (q *MongoQueue) Retry(ctx context.Context, id string, cause error) error {
	err := q.setStatus(ctx, id, bson.M{"status": StatusPending, "error": causeText(cause)})
	if mongo.IsDuplicateKeyError(err) {
		// a newer pending entry for the task already exists
		return q.MarkCompleted(ctx, id)
	}
	return err
}

// MarkFailed gives up on an entry.
func (q *MongoQueue) MarkFailed(ctx context.Context, id string, cause error) error {
	if err := q.setStatus(ctx, id, bson.M{"status": StatusFailed, "error": causeText(cause)}); err != nil {
		return err
	}

	q.logger.WarnContext(ctx, "gave up repairing task read model",
		slog.String("entry_id", id),
		slog.String("error", causeText(cause)),
	)
	return nil
}

func (q *MongoQueue) setStatus(ctx context.Context, id string, set bson.M) error {
	result, err := q.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update repair entry: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return nil
}

// Stats returns entry counts by status.
func (q *MongoQueue) Stats(ctx context.Context) (Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := q.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get repair queue stats: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Status Status `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if decodeErr := cursor.All(ctx, &results); decodeErr != nil {
		return Stats{}, fmt.Errorf("failed to decode repair queue stats: %w", decodeErr)
	}

	var stats Stats
	for _, r := range results {
		stats.add(r.Status, r.Count)
	}
	return stats, nil
}

func (s *Stats) add(status Status, n int64) {
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusProcessing:
		s.Processing += n
	case StatusCompleted:
		s.Completed += n
	case StatusFailed:
		s.Failed += n
	}
}

// InMemoryQueue implements Queue in process memory.
type InMemoryQueue struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewInMemoryQueue creates an empty in-memory repair queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{entries: make(map[string]*Entry)}
}

// Add queues a repair for taskID.
func (q *InMemoryQueue) Add(_ context.Context, taskID uuid.UUID, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.TaskID == taskID.String() && e.Status == StatusPending {
			return nil
		}
	}

	id := uuid.NewUUID().String()
	q.entries[id] = &Entry{
		ID:        id,
		TaskID:    taskID.String(),
		Error:     causeText(cause),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// Poll claims up to batchSize pending entries, oldest first.
func (q *InMemoryQueue) Poll(_ context.Context, batchSize int) ([]Entry, error) {
	if batchSize <= 0 {
		batchSize = defaultPollBatch
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pending := make([]*Entry, 0)
	for _, e := range q.entries {
		if e.Status == StatusPending {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	now := time.Now().UTC()
	claimed := make([]Entry, 0, min(batchSize, len(pending)))
	for _, e := range pending[:min(batchSize, len(pending))] {
		e.Status = StatusProcessing
		e.Attempts++
		e.LastTriedAt = &now
		claimed = append(claimed, *e)
	}
	return claimed, nil
}

// MarkCompleted marks an entry completed.
func (q *InMemoryQueue) MarkCompleted(_ context.Context, id string) error {
	return q.update(id, func(e *Entry) {
		now := time.Now().UTC()
		e.Status = StatusCompleted
		e.CompletedAt = &now
	})
}

// Retry returns an entry to pending.
func (q *InMemoryQueue) Retry(_ context.Context, id string, cause error) error {
	return q.update(id, func(e *Entry) {
		e.Status = StatusPending
		e.Error = causeText(cause)
	})
}

// MarkFailed gives up on an entry.
func (q *InMemoryQueue) MarkFailed(_ context.Context, id string, cause error) error {
	return q.update(id, func(e *Entry) {
		e.Status = StatusFailed
		e.Error = causeText(cause)
	})
}

func (q *InMemoryQueue) update(id string, fn func(*Entry)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	fn(e)
	return nil
}

// Stats returns entry counts by status.
func (q *InMemoryQueue) Stats(_ context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stats Stats
	for _, e := range q.entries {
		stats.add(e.Status, 1)
	}
	return stats, nil
}

var (
	_ Queue = (*MongoQueue)(nil)
	_ Queue = (*InMemoryQueue)(nil)
)
