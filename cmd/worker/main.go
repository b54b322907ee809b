// Package main provides the read model repair worker entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/taskflow/internal/config"
	"github.com/lllypuk/taskflow/internal/infrastructure/eventstore"
	"github.com/lllypuk/taskflow/internal/infrastructure/healthcheck"
	mongodbinfra "github.com/lllypuk/taskflow/internal/infrastructure/mongodb"
	"github.com/lllypuk/taskflow/internal/infrastructure/projector"
	"github.com/lllypuk/taskflow/internal/infrastructure/repair"
	"github.com/lllypuk/taskflow/internal/infrastructure/repository/mongodb"
)

const (
	version                = "0.1.0"
	mongoDisconnectTimeout = 10 * time.Second
)

var errMockMode = errors.New("repair worker needs app.mode=real: mock mode has no persistent read models")

func main() {
	cfg, err := config.Load()
	if err != nil {
		//nolint:sloglint // No context available before logger setup
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := setupLogger(cfg)

	if runErr := run(cfg, logger); runErr != nil {
		logger.Error("worker stopped with error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
}

// run connects to MongoDB and drains the repair queue until SIGINT, SIGTERM or SIGQUIT.
func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.App.IsMockMode() {
		return errMockMode
	}

	logger.Info("starting taskflow repair worker",
		slog.String("version", version),
		slog.String("environment", cfg.App.Environment),
		slog.Bool("enabled", cfg.Repair.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	client, err := connectMongoDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()
		if disconnectErr := client.Disconnect(disconnectCtx); disconnectErr != nil {
			logger.Error("failed to disconnect from MongoDB", slog.String("error", disconnectErr.Error()))
		}
	}()

	db := client.Database(cfg.MongoDB.Database)
	store := eventstore.NewMongoEventStore(db, eventstore.WithLogger(logger))
	repo := mongodb.NewMongoTaskFullRepository(store, db.Collection(mongodbinfra.CollectionTasks), logger)
	queue := repair.NewMongoQueue(db.Collection(mongodbinfra.CollectionRepairQueue), logger)

	svc := newService(cfg, logger, queue, projector.NewTaskProjector(store, repo, logger),
		healthcheck.MongoProbe(client),
	)

	if runErr := svc.Run(ctx); runErr != nil {
		return runErr
	}

	logger.Info("worker shutdown complete")
	return nil
}

// connectMongoDB establishes a connection to MongoDB.
func connectMongoDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.MongoDB.URI).
		SetMaxPoolSize(cfg.MongoDB.MaxPoolSize))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", pingErr)
	}

	logger.InfoContext(ctx, "connected to MongoDB", slog.String("database", cfg.MongoDB.Database))
	return client, nil
}

// setupLogger creates the structured logger described by cfg.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(cfg.Log.Level),
		AddSource: cfg.IsDevelopment(),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Log.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(slog.String("app", cfg.App.Name+"-worker"))
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
