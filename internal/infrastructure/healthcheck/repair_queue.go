package healthcheck

import (
	"context"
	"fmt"

	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
	"github.com/lllypuk/taskflow/internal/infrastructure/repair"
)

// RepairQueue reports read model repair counters.
type RepairQueue interface {
	Stats(ctx context.Context) (repair.Stats, error)
}

// RepairQueueProbe degrades the service when repairs pile up or have been given up on.
func RepairQueueProbe(queue RepairQueue, pendingThreshold int64) httpserver.Probe {
	return httpserver.Probe{
		Name:     "repair_queue",
		Critical: false,
		Check: func(ctx context.Context) error {
			stats, err := queue.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to get repair queue stats: %w", err)
			}
			if stats.Failed > 0 {
				return fmt.Errorf("repair queue: %d failed repairs", stats.Failed)
			}
			if stats.Pending > pendingThreshold {
				return fmt.Errorf("repair queue: %d pending repairs", stats.Pending)
			}
			return nil
		},
	}
}
