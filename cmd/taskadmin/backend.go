package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/config"
	"github.com/lllypuk/taskflow/internal/infrastructure/eventbus"
	"github.com/lllypuk/taskflow/internal/infrastructure/eventstore"
	mongodbinfra "github.com/lllypuk/taskflow/internal/infrastructure/mongodb"
	"github.com/lllypuk/taskflow/internal/infrastructure/projector"
	"github.com/lllypuk/taskflow/internal/infrastructure/repository/mongodb"
)

const mongoDisconnectTimeout = 10 * time.Second

// errMockMode is returned when the configuration has no persistent storage to operate on.
var errMockMode = errors.New("taskadmin needs app.mode=real: mock mode keeps tasks in process memory")

// deadLetters is the parked event list of the Redis event bus.
type deadLetters interface {
	List(ctx context.Context, n int64) ([]eventbus.DeadLetter, error)
	Len(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}

// backend is the storage the admin commands operate on.
type backend struct {
	EventStore appcore.EventStore
	Admin      *taskapp.TaskAdminRuntime
	Projector  *projector.TaskProjector

	// DeadLetters is nil unless the Redis event bus parks failed events.
	DeadLetters deadLetters

	close func() error
}

// Close releases the storage connections.
func (b *backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// openFunc opens the backend described by cfg.
type openFunc func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error)

// openMongoBackend connects to the MongoDB event store and task read models.
func openMongoBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	if cfg.App.IsMockMode() {
		return nil, errMockMode
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.MongoDB.URI).
		SetMaxPoolSize(cfg.MongoDB.MaxPoolSize))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	disconnect := func() error {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()
		return client.Disconnect(disconnectCtx)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		_ = disconnect()
		return nil, fmt.Errorf("failed to ping MongoDB: %w", pingErr)
	}

	db := client.Database(cfg.MongoDB.Database)
	store := eventstore.NewMongoEventStore(db, eventstore.WithLogger(logger))
	repo := mongodb.NewMongoTaskFullRepository(store, db.Collection(mongodbinfra.CollectionTasks), logger)

	_, admin := taskapp.NewRuntimes(repo, logger)

	logger.DebugContext(ctx, "connected to MongoDB", slog.String("database", cfg.MongoDB.Database))

	b := &backend{
		EventStore: store,
		Admin:      admin,
		Projector:  projector.NewTaskProjector(store, repo, logger),
		close:      disconnect,
	}

	if cfg.EventBus.Type == config.EventBusRedis && cfg.EventBus.DeadLetter {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.DeadLetters = eventbus.NewDeadLetterQueue(rdb, eventbus.WithDeadLetterLogger(logger))
		b.close = func() error {
			return errors.Join(rdb.Close(), disconnect())
		}
	}

	return b, nil
}
