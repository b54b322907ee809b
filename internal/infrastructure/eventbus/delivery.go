package eventbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/lllypuk/taskflow/internal/domain/event"
)

// Default retry configuration constants.
const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultBackoffFactor  = 2.0
)

// DeadLetterSink receives events whose handler kept failing after all retries.
type DeadLetterSink interface {
	Handle(ctx context.Context, evt event.DomainEvent, err error)
}

// RetryConfig configures retry behavior for event handling.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     defaultMaxRetries,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		BackoffFactor:  defaultBackoffFactor,
	}
}

// Backoff returns the wait before the given retry (1-based).
func (c RetryConfig) Backoff(retry int) time.Duration {
	d := c.InitialBackoff
	for i := 1; i < retry; i++ {
		d = time.Duration(float64(d) * c.BackoffFactor)
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return min(d, c.MaxBackoff)
}

// deliverer runs a handler with retries and parks the event once they are exhausted.
type deliverer struct {
	retry  RetryConfig
	sink   DeadLetterSink
	logger *slog.Logger
}

func (d deliverer) deliver(ctx context.Context, handler event.Handler, evt event.DomainEvent, index int) {
	log := d.logger.With(
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID()),
		slog.Int("handler_index", index),
	)

	var err error
	for attempt := 0; attempt <= d.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				log.WarnContext(ctx, "handler retry cancelled", slog.String("error", ctx.Err().Error()))
				return
			case <-time.After(d.retry.Backoff(attempt)):
			}
		}

		if err = handler(ctx, evt); err == nil {
			return
		}
		log.WarnContext(ctx, "event handler failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}

	log.ErrorContext(ctx, "event handler failed after all retries",
		slog.Int("max_retries", d.retry.MaxRetries),
		slog.String("error", err.Error()),
	)
	if d.sink != nil {
		d.sink.Handle(ctx, evt, err)
	}
}
