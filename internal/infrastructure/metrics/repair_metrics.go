package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Repair outcome labels.
const (
	RepairRepaired = "repaired"
	RepairRetried  = "retried"
	RepairFailed   = "failed"
)

// RepairMetrics contains Prometheus metrics for the read model repair worker.
type RepairMetrics struct {
	EntriesPending   prometheus.Gauge
	EntriesProcessed *prometheus.CounterVec
	RebuildDuration  prometheus.Histogram
	PollBatchSize    prometheus.Histogram
}

// NewRepairMetrics creates and registers repair metrics with the given registerer.
func NewRepairMetrics(registerer prometheus.Registerer) *RepairMetrics {
	metrics := &RepairMetrics{
		EntriesPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskflow_repair_entries_pending",
			Help: "Current number of task read models waiting to be rebuilt",
		}),
		EntriesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_repair_entries_processed_total",
				Help: "Total number of processed repair entries",
			},
			[]string{"outcome"}, // repaired, retried or failed
		),
		RebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskflow_repair_rebuild_duration_seconds",
			Help:    "Time to rebuild one task read model from its events",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		PollBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskflow_repair_poll_batch_size",
			Help:    "Number of repair entries claimed in each poll",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),
	}

	registerer.MustRegister(
		metrics.EntriesPending,
		metrics.EntriesProcessed,
		metrics.RebuildDuration,
		metrics.PollBatchSize,
	)

	return metrics
}
