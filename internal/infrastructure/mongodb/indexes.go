// Package mongodb provides MongoDB infrastructure components including index management.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names as constants for consistency.
const (
	CollectionEvents      = "events"
	CollectionTasks       = "tasks"
	CollectionRepairQueue = "repair_queue"
)

// IndexDefinition describes a MongoDB index to be created.
type IndexDefinition struct {
	Collection string
	Name       string
	Keys       bson.D
	Options    *options.IndexOptionsBuilder
}

// CreateAllIndexes creates all necessary indexes for the application.
// This function is idempotent - calling it multiple times is safe.
func CreateAllIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db, GetAllIndexDefinitions())
}

// GetAllIndexDefinitions returns all index definitions for all collections.
func GetAllIndexDefinitions() []IndexDefinition {
	var indexes []IndexDefinition

	indexes = append(indexes, GetEventIndexes()...)
	indexes = append(indexes, GetTaskIndexes()...)
	indexes = append(indexes, GetRepairQueueIndexes()...)

	return indexes
}

// GetEventIndexes returns index definitions for the events collection (Event Store).
func GetEventIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// Optimistic locking: one event per aggregate version
			Collection: CollectionEvents,
			Name:       "idx_events_aggregate_version_unique",
			Keys:       bson.D{{Key: "aggregate_id", Value: 1}, {Key: "version", Value: 1}},
			Options:    options.Index().SetUnique(true),
		},
		{
			// Read-model rebuild enumerates aggregates by type
			Collection: CollectionEvents,
			Name:       "idx_events_aggregate_type_time",
			Keys:       bson.D{{Key: "aggregate_type", Value: 1}, {Key: "occurred_at", Value: -1}},
		},
	}
}

// GetTaskIndexes returns index definitions for the task read model collection.
func GetTaskIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			Collection: CollectionTasks,
			Name:       "idx_tasks_id_unique",
			Keys:       bson.D{{Key: "task_id", Value: 1}},
			Options:    options.Index().SetUnique(true),
		},
		{
			// Stable listing order
			Collection: CollectionTasks,
			Name:       "idx_tasks_created",
			Keys:       bson.D{{Key: "created_at", Value: 1}, {Key: "task_id", Value: 1}},
		},
		{
			// Tasks assigned to a user
			Collection: CollectionTasks,
			Name:       "idx_tasks_assignee_status",
			Keys:       bson.D{{Key: "assignee", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			// Unassigned tasks of candidate groups
			Collection: CollectionTasks,
			Name:       "idx_tasks_group_assignee",
			Keys:       bson.D{{Key: "group", Value: 1}, {Key: "assignee", Value: 1}},
		},
	}
}

// GetRepairQueueIndexes returns index definitions for the read model repair queue.
func GetRepairQueueIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			// At most one pending repair per task
			Collection: CollectionRepairQueue,
			Name:       "idx_repair_task_pending_unique",
			Keys:       bson.D{{Key: "task_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "pending"}),
		},
		{
			// Poll order
			Collection: CollectionRepairQueue,
			Name:       "idx_repair_status_created",
			Keys:       bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
		},
	}
}

// EnsureIndexes is an alias for CreateAllIndexes for semantic clarity.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return CreateAllIndexes(ctx, db)
}

// CreateCollectionIndexes creates indexes for a specific collection only.
func CreateCollectionIndexes(ctx context.Context, db *mongo.Database, collectionName string) error {
	switch collectionName {
	case CollectionEvents:
		return createIndexes(ctx, db, GetEventIndexes())
	case CollectionTasks:
		return createIndexes(ctx, db, GetTaskIndexes())
	case CollectionRepairQueue:
		return createIndexes(ctx, db, GetRepairQueueIndexes())
	default:
		return fmt.Errorf("unknown collection: %s", collectionName)
	}
}

func createIndexes(ctx context.Context, db *mongo.Database, indexes []IndexDefinition) error {
	for _, idx := range indexes {
		opts := idx.Options
		if opts == nil {
			opts = options.Index()
		}

		model := mongo.IndexModel{
			Keys:    idx.Keys,
			Options: opts.SetName(idx.Name),
		}

		if _, err := db.Collection(idx.Collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index %s on collection %s: %w", idx.Name, idx.Collection, err)
		}
	}

	return nil
}
