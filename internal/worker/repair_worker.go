// Package worker contains background processes that run beside the API.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
	"github.com/lllypuk/taskflow/internal/infrastructure/metrics"
	"github.com/lllypuk/taskflow/internal/infrastructure/repair"
)

// Default repair worker configuration values.
const (
	defaultRepairPollInterval = 30 * time.Second
	defaultRepairBatchSize    = 10
	defaultRepairMaxRetries   = 3
)

// RepairWorkerConfig contains configuration for the repair worker.
type RepairWorkerConfig struct {
	// PollInterval is the time between polling the repair queue.
	PollInterval time.Duration

	// BatchSize is the maximum number of entries to process in each poll cycle.
	BatchSize int

	// MaxRetries is the number of attempts before an entry is marked failed.
	MaxRetries int

	// Enabled determines if the worker should run.
	Enabled bool
}

// DefaultRepairWorkerConfig returns the default configuration.
func DefaultRepairWorkerConfig() RepairWorkerConfig {
	return RepairWorkerConfig{
		PollInterval: defaultRepairPollInterval,
		BatchSize:    defaultRepairBatchSize,
		MaxRetries:   defaultRepairMaxRetries,
		Enabled:      true,
	}
}

// Rebuilder rebuilds one task read model from its events.
type Rebuilder interface {
	RebuildOne(ctx context.Context, taskID uuid.UUID) error
}

// RepairWorker drains the repair queue and rebuilds the queued read models.
type RepairWorker struct {
	queue     repair.Queue
	rebuilder Rebuilder
	logger    *slog.Logger
	config    RepairWorkerConfig
	metrics   *metrics.RepairMetrics
}

// RepairWorkerOption configures a RepairWorker.
type RepairWorkerOption func(*RepairWorker)

// WithRepairMetrics records repair outcomes in m.
func WithRepairMetrics(m *metrics.RepairMetrics) RepairWorkerOption {
	return func(w *RepairWorker) {
		w.metrics = m
	}
}

// NewRepairWorker creates a new repair worker.
func NewRepairWorker(
	queue repair.Queue,
	rebuilder Rebuilder,
	logger *slog.Logger,
	config RepairWorkerConfig,
	opts ...RepairWorkerOption,
) *RepairWorker {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultRepairWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}

	w := &RepairWorker{
		queue:     queue,
		rebuilder: rebuilder,
		logger:    logger,
		config:    config,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start processes the queue every PollInterval until ctx is cancelled.
func (w *RepairWorker) Start(ctx context.Context) error {
	if !w.config.Enabled {
		w.logger.InfoContext(ctx, "repair worker disabled")
		return nil
	}

	w.logger.InfoContext(ctx, "starting repair worker",
		slog.Duration("poll_interval", w.config.PollInterval),
		slog.Int("batch_size", w.config.BatchSize),
		slog.Int("max_retries", w.config.MaxRetries),
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.ProcessBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "repair worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch claims one batch of entries and rebuilds their read models.
// It returns the number of entries repaired.
func (w *RepairWorker) ProcessBatch(ctx context.Context) int {
	entries, err := w.queue.Poll(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to poll repair queue",
			slog.String("error", err.Error()),
		)
		return 0
	}

	if w.metrics != nil {
		w.metrics.PollBatchSize.Observe(float64(len(entries)))
		defer w.updatePending(ctx)
	}

	if len(entries) == 0 {
		return 0
	}

	w.logger.InfoContext(ctx, "processing repair entries", slog.Int("count", len(entries)))

	repaired := 0
	for _, entry := range entries {
		if processErr := w.processEntry(ctx, entry); processErr != nil {
			w.handleFailure(ctx, entry, processErr)
			continue
		}
		w.observe(metrics.RepairRepaired)

		if completeErr := w.queue.MarkCompleted(ctx, entry.ID); completeErr != nil {
			w.logger.ErrorContext(ctx, "failed to mark repair entry as completed",
				slog.String("entry_id", entry.ID),
				slog.String("error", completeErr.Error()),
			)
		}
		repaired++
	}

	return repaired
}

func (w *RepairWorker) handleFailure(ctx context.Context, entry repair.Entry, cause error) {
	w.logger.ErrorContext(ctx, "failed to repair task read model",
		slog.String("entry_id", entry.ID),
		slog.String("task_id", entry.TaskID),
		slog.Int("attempts", entry.Attempts),
		slog.String("error", cause.Error()),
	)

	// no events means nothing to rebuild from
	permanent := errors.Is(cause, appcore.ErrAggregateNotFound) || errors.Is(cause, errInvalidTaskID)

	var markErr error
	if permanent || entry.Attempts >= w.config.MaxRetries {
		markErr = w.queue.MarkFailed(ctx, entry.ID, cause)
		w.observe(metrics.RepairFailed)
	} else {
		markErr = w.queue.Retry(ctx, entry.ID, cause)
		w.observe(metrics.RepairRetried)
	}
	if markErr != nil {
		w.logger.ErrorContext(ctx, "failed to update repair entry",
			slog.String("entry_id", entry.ID),
			slog.String("error", markErr.Error()),
		)
	}
}

var errInvalidTaskID = errors.New("invalid task id")

func (w *RepairWorker) processEntry(ctx context.Context, entry repair.Entry) error {
	taskID, err := uuid.ParseUUID(entry.TaskID)
	if err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidTaskID, entry.TaskID, err)
	}

	start := time.Now()
	rebuildErr := w.rebuilder.RebuildOne(ctx, taskID)
	if w.metrics != nil {
		w.metrics.RebuildDuration.Observe(time.Since(start).Seconds())
	}
	if rebuildErr != nil {
		return fmt.Errorf("failed to rebuild read model: %w", rebuildErr)
	}

	w.logger.InfoContext(ctx, "repaired task read model",
		slog.String("task_id", entry.TaskID),
		slog.Int("attempts", entry.Attempts),
	)

	return nil
}

func (w *RepairWorker) observe(outcome string) {
	if w.metrics != nil {
		w.metrics.EntriesProcessed.WithLabelValues(outcome).Inc()
	}
}

func (w *RepairWorker) updatePending(ctx context.Context) {
	stats, err := w.queue.Stats(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to read repair queue stats", slog.String("error", err.Error()))
		return
	}
	w.metrics.EntriesPending.Set(float64(stats.Pending))
}

// Stats returns repair queue statistics.
func (w *RepairWorker) Stats(ctx context.Context) (repair.Stats, error) {
	return w.queue.Stats(ctx)
}
