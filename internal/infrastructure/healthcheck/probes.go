// Package healthcheck builds readiness probes for the components the API depends on.
package healthcheck

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
)

// MongoProbe pings MongoDB. The event store lives there, so it is critical.
func MongoProbe(client *mongo.Client) httpserver.Probe {
	return httpserver.Probe{
		Name:     "mongodb",
		Critical: true,
		Check: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
	}
}

// RedisProbe pings Redis.
func RedisProbe(client redis.UniversalClient, critical bool) httpserver.Probe {
	return httpserver.Probe{
		Name:     "redis",
		Critical: critical,
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

// RunningComponent is a background component with a running state.
type RunningComponent interface {
	IsRunning() bool
}

// RunningProbe fails while the component is stopped.
func RunningProbe(name string, component RunningComponent, critical bool) httpserver.Probe {
	return httpserver.Probe{
		Name:     name,
		Critical: critical,
		Check: func(context.Context) error {
			if !component.IsRunning() {
				return errors.New(name + " not running")
			}
			return nil
		},
	}
}
