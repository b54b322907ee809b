// Package eventbus provides event bus implementations for asynchronous event delivery.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/lllypuk/taskflow/internal/domain/event"
)

const defaultChannelPrefix = "taskflow:events:"

// globEscaper escapes the characters Redis treats as pattern syntax.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// RedisEventBus publishes each event type on its own channel and listens with
// one pattern subscription covering the prefix, so handlers added after Start
// still receive events.
type RedisEventBus struct {
	registry

	client        *redis.Client
	channelPrefix string
	delivery      deliverer

	mu     sync.Mutex
	pubsub *redis.PubSub

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup
}

// Option configures a RedisEventBus.
type Option func(*RedisEventBus)

// WithLogger sets the logger for the event bus.
func WithLogger(logger *slog.Logger) Option {
	return func(b *RedisEventBus) {
		b.delivery.logger = logger
	}
}

// WithRetryConfig sets the retry configuration for event handling.
func WithRetryConfig(config RetryConfig) Option {
	return func(b *RedisEventBus) {
		b.delivery.retry = config
	}
}

// WithChannelPrefix sets a prefix for Redis channel names.
func WithChannelPrefix(prefix string) Option {
	return func(b *RedisEventBus) {
		b.channelPrefix = prefix
	}
}

// WithDeadLetterSink stores events that exhausted their retries.
func WithDeadLetterSink(sink DeadLetterSink) Option {
	return func(b *RedisEventBus) {
		b.delivery.sink = sink
	}
}

// NewRedisEventBus creates a new Redis-based event bus.
func NewRedisEventBus(client *redis.Client, opts ...Option) *RedisEventBus {
	b := &RedisEventBus{
		client:        client,
		channelPrefix: defaultChannelPrefix,
		delivery:      deliverer{retry: DefaultRetryConfig(), logger: slog.Default()},
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisEventBus) logger() *slog.Logger { return b.delivery.logger }

// Publish sends evt to the channel of its event type.
func (b *RedisEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	if evt == nil {
		return errNilEvent
	}

	id, data, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	channel := b.channelPrefix + evt.EventType()
	if pubErr := b.client.Publish(ctx, channel, data).Err(); pubErr != nil {
		return fmt.Errorf("failed to publish event to Redis: %w", pubErr)
	}

	b.logger().DebugContext(ctx, "event published",
		slog.String("event_id", id),
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID()),
		slog.String("channel", channel),
	)
	return nil
}

// Start listens until Shutdown is called or ctx is cancelled.
func (b *RedisEventBus) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.New("event bus is already running")
	}

	pattern := globEscaper.Replace(b.channelPrefix) + "*"
	pubsub := b.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		b.running.Store(false)
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}

	b.mu.Lock()
	b.pubsub = pubsub
	b.mu.Unlock()

	defer b.running.Store(false)

	b.logger().InfoContext(ctx, "event bus started", slog.String("pattern", pattern))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stop:
			return nil
		case msg, ok := <-messages:
			if !ok {
				b.logger().WarnContext(ctx, "event bus subscription closed")
				return nil
			}
			b.dispatch(ctx, msg)
		}
	}
}

func (b *RedisEventBus) dispatch(ctx context.Context, msg *redis.Message) {
	evt, err := decodeEvent([]byte(msg.Payload))
	if err != nil {
		b.logger().ErrorContext(ctx, "dropping undecodable event",
			slog.String("channel", msg.Channel),
			slog.String("error", err.Error()),
		)
		return
	}

	for i, handler := range b.lookup(evt.EventType()) {
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			b.delivery.deliver(ctx, handler, evt, i)
		}()
	}
}

// Shutdown stops listening and waits for running handlers to finish.
// The bus cannot be started again afterwards.
func (b *RedisEventBus) Shutdown() error {
	b.stopOnce.Do(func() { close(b.stop) })
	b.running.Store(false)
	b.inflight.Wait()

	b.mu.Lock()
	pubsub := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub: %w", err)
	}
	return nil
}

// IsRunning reports whether Start is listening.
func (b *RedisEventBus) IsRunning() bool {
	return b.running.Load()
}

var _ Bus = (*RedisEventBus)(nil)
