package healthcheck

import (
	"context"
	"fmt"

	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
)

// DeadLetterQueue reports how many events are parked after failed delivery.
type DeadLetterQueue interface {
	Len(ctx context.Context) (int64, error)
}

// DeadLetterProbe degrades the service once the dead letter queue grows past threshold.
func DeadLetterProbe(queue DeadLetterQueue, threshold int64) httpserver.Probe {
	return httpserver.Probe{
		Name:     "dead_letter_queue",
		Critical: false,
		Check: func(ctx context.Context) error {
			count, err := queue.Len(ctx)
			if err != nil {
				return fmt.Errorf("failed to get dead letter queue length: %w", err)
			}
			if count > threshold {
				return fmt.Errorf("dead letter queue: %d events", count)
			}
			return nil
		},
	}
}
