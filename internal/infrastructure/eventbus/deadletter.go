package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lllypuk/taskflow/internal/domain/event"
)

// Dead letter defaults.
const (
	DefaultDeadLetterKey      = "taskflow:events:dead_letter"
	defaultDeadLetterCapacity = 1000
	defaultDeadLetterPage     = 10
)

// DeadLetter is an event a handler kept rejecting.
type DeadLetter struct {
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	Error         string          `json:"error"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	FailedAt      time.Time       `json:"failed_at"`
}

// DeadLetterQueue keeps the newest dead letters in a capped Redis list.
type DeadLetterQueue struct {
	client   redis.Cmdable
	key      string
	capacity int64
	logger   *slog.Logger
}

// DeadLetterOption configures a DeadLetterQueue.
type DeadLetterOption func(*DeadLetterQueue)

// WithDeadLetterKey stores the list under key.
func WithDeadLetterKey(key string) DeadLetterOption {
	return func(q *DeadLetterQueue) {
		q.key = key
	}
}

// WithDeadLetterCapacity keeps at most n entries.
func WithDeadLetterCapacity(n int64) DeadLetterOption {
	return func(q *DeadLetterQueue) {
		q.capacity = n
	}
}

// WithDeadLetterLogger sets the logger.
func WithDeadLetterLogger(logger *slog.Logger) DeadLetterOption {
	return func(q *DeadLetterQueue) {
		q.logger = logger
	}
}

// NewDeadLetterQueue creates a queue on client.
func NewDeadLetterQueue(client redis.Cmdable, opts ...DeadLetterOption) *DeadLetterQueue {
	q := &DeadLetterQueue{
		client:   client,
		key:      DefaultDeadLetterKey,
		capacity: defaultDeadLetterCapacity,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.capacity <= 0 {
		q.capacity = defaultDeadLetterCapacity
	}
	return q
}

// Handle parks evt. Failures are only logged since the event is already lost to its handler.
func (q *DeadLetterQueue) Handle(ctx context.Context, evt event.DomainEvent, cause error) {
	letter := DeadLetter{
		EventType:     evt.EventType(),
		AggregateID:   evt.AggregateID(),
		AggregateType: evt.AggregateType(),
		Version:       evt.Version(),
		Error:         cause.Error(),
		OccurredAt:    evt.OccurredAt(),
		FailedAt:      time.Now().UTC(),
	}
	if payload, err := json.Marshal(evt); err == nil {
		letter.Payload = payload
	}

	data, err := json.Marshal(letter)
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to encode dead letter",
			slog.String("event_type", letter.EventType),
			slog.String("error", err.Error()),
		)
		return
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.key, data)
		pipe.LTrim(ctx, q.key, 0, q.capacity-1)
		return nil
	})
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to park dead letter",
			slog.String("event_type", letter.EventType),
			slog.String("aggregate_id", letter.AggregateID),
			slog.String("error", err.Error()),
		)
		return
	}

	q.logger.ErrorContext(ctx, "event moved to dead letter queue",
		slog.String("event_type", letter.EventType),
		slog.String("aggregate_id", letter.AggregateID),
		slog.String("original_error", letter.Error),
	)
}

// List returns up to n dead letters, newest first. Entries that fail to decode are skipped.
func (q *DeadLetterQueue) List(ctx context.Context, n int64) ([]DeadLetter, error) {
	if n <= 0 {
		n = defaultDeadLetterPage
	}

	raw, err := q.client.LRange(ctx, q.key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}

	letters := make([]DeadLetter, 0, len(raw))
	for _, item := range raw {
		var letter DeadLetter
		if decodeErr := json.Unmarshal([]byte(item), &letter); decodeErr != nil {
			q.logger.WarnContext(ctx, "skipping undecodable dead letter", slog.String("error", decodeErr.Error()))
			continue
		}
		letters = append(letters, letter)
	}
	return letters, nil
}

// Len returns the number of parked events.
func (q *DeadLetterQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}

// Clear drops every parked event.
func (q *DeadLetterQueue) Clear(ctx context.Context) error {
	if err := q.client.Del(ctx, q.key).Err(); err != nil {
		return fmt.Errorf("failed to clear dead letters: %w", err)
	}
	return nil
}

var _ DeadLetterSink = (*DeadLetterQueue)(nil)
