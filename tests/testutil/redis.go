package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	redisStartupTimeout = 60 * time.Second
	redisMemoryLimit    = 128 * 1024 * 1024
)

var sharedRedis = &sharedContainer{
	name: "redis",
	request: testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Memory = redisMemoryLimit
			hc.MemorySwap = redisMemoryLimit
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections"),
			wait.ForListeningPort("6379/tcp"),
		).WithDeadline(redisStartupTimeout),
	},
	port:     "6379/tcp",
	endpoint: func(hostPort string) string { return hostPort },
	timeout:  redisStartupTimeout,
}

// SetupTestRedis connects to the shared Redis container. Tests share one
// keyspace, so keys should carry TestKeyPrefix.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: sharedRedis.Endpoint(t), PoolSize: 10})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping failed: %v", err)
	}
	return client
}

// TestKeyPrefix returns a key prefix unique to the running test.
func TestKeyPrefix(t *testing.T) string {
	t.Helper()
	return "test:" + strings.ReplaceAll(t.Name(), "/", ":") + ":"
}
