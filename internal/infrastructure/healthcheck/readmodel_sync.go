package healthcheck

import (
	"context"
	"fmt"

	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	taskdomain "github.com/lllypuk/taskflow/internal/domain/task"
	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
)

const defaultSampleSize = 100

// VersionSource returns the latest stored version of an aggregate.
type VersionSource interface {
	GetVersion(ctx context.Context, aggregateID string) (int, error)
}

// ReadModelSyncProbe compares the read model version of the first sampleSize
// tasks with the event store. A lagging read model only degrades the service:
// the next event for the task or a rebuild brings it back in line.
func ReadModelSyncProbe(
	readModels taskapp.QueryRepository,
	events VersionSource,
	sampleSize int,
) httpserver.Probe {
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}

	return httpserver.Probe{
		Name:     "readmodel_sync",
		Critical: false,
		Check: func(ctx context.Context) error {
			sample, err := readModels.Find(ctx, taskapp.Query{
				Visibility: taskdomain.Everything(),
				Page:       taskapp.PageOf(0, sampleSize),
			})
			if err != nil {
				return fmt.Errorf("failed to sample task read model: %w", err)
			}

			lagging := 0
			for _, rm := range sample {
				version, versionErr := events.GetVersion(ctx, rm.ID.String())
				if versionErr != nil {
					return fmt.Errorf("failed to get version of task %s: %w", rm.ID, versionErr)
				}
				if version != rm.Version {
					lagging++
				}
			}

			if lagging > 0 {
				return fmt.Errorf("%d of %d sampled tasks out of sync", lagging, len(sample))
			}
			return nil
		},
	}
}
