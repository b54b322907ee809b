package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRateLimitKeyPrefix namespaces rate limit counters in Redis.
const DefaultRateLimitKeyPrefix = "taskflow:ratelimit:"

// Usage is the state of a counter right after a hit.
type Usage struct {
	Count   int64
	ResetIn time.Duration
}

// RateLimitStore counts requests in fixed windows.
type RateLimitStore interface {
	// Hit adds one request to key. The window starts with the first hit.
	Hit(ctx context.Context, key string, window time.Duration) (Usage, error)
}

// MemoryRateLimitStore keeps counters in process memory. It backs mock mode.
type MemoryRateLimitStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time
}

type windowCounter struct {
	count   int64
	resetAt time.Time
}

// NewMemoryRateLimitStore creates an empty in-memory store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

// Hit adds one request to key.
func (s *MemoryRateLimitStore) Hit(_ context.Context, key string, window time.Duration) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &windowCounter{resetAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++

	return Usage{Count: c.count, ResetIn: c.resetAt.Sub(now)}, nil
}

// Count returns the requests counted for key in the current window.
func (s *MemoryRateLimitStore) Count(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !s.now().Before(c.resetAt) {
		return 0
	}
	return c.count
}

// hitScript increments the counter, starts the window on the first hit and
// reports the remaining window in one round trip.
var hitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("PTTL", KEYS[1])}
`)

// RedisRateLimitStore shares counters between API instances.
type RedisRateLimitStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisRateLimitStore creates a store whose keys start with prefix.
func NewRedisRateLimitStore(client redis.Scripter, prefix string) *RedisRateLimitStore {
	if prefix == "" {
		prefix = DefaultRateLimitKeyPrefix
	}
	return &RedisRateLimitStore{client: client, prefix: prefix}
}

// Hit adds one request to key.
func (s *RedisRateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (Usage, error) {
	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Usage{}, fmt.Errorf("rate limit hit: %w", err)
	}
	if len(res) != 2 {
		return Usage{}, fmt.Errorf("rate limit hit: unexpected reply %v", res)
	}

	usage := Usage{Count: res[0]}
	if res[1] > 0 {
		usage.ResetIn = time.Duration(res[1]) * time.Millisecond
	}
	return usage, nil
}

var (
	_ RateLimitStore = (*MemoryRateLimitStore)(nil)
	_ RateLimitStore = (*RedisRateLimitStore)(nil)
)
