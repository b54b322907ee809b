package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lllypuk/taskflow/internal/domain/event"
)

// Result labels used when the error carries no code of its own.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// codedError is implemented by application errors that carry a stable code.
type codedError interface {
	HTTPCode() string
}

// TaskMetrics contains Prometheus metrics for the task lifecycle engine.
type TaskMetrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	EventsTotal       *prometheus.CounterVec
	WebsocketClients  prometheus.Gauge
}

// NewTaskMetrics creates and registers task metrics with the given registerer.
func NewTaskMetrics(registerer prometheus.Registerer) *TaskMetrics {
	metrics := &TaskMetrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_task_operations_total",
				Help: "Total number of task lifecycle operations",
			},
			[]string{"operation", "result"}, // result: success or lower-cased error code
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskflow_task_operation_duration_seconds",
				Help:    "Duration of task lifecycle operations including version conflict retries",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_task_events_total",
				Help: "Total number of task events delivered by the event bus",
			},
			[]string{"event_type"},
		),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskflow_websocket_clients",
			Help: "Current number of connected websocket clients",
		}),
	}

	registerer.MustRegister(
		metrics.OperationsTotal,
		metrics.OperationDuration,
		metrics.EventsTotal,
		metrics.WebsocketClients,
	)

	return metrics
}

// ObserveOperation records the outcome and latency of a lifecycle operation.
func (m *TaskMetrics) ObserveOperation(operation string, err error, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// HandleEvent counts an event delivered by the bus.
func (m *TaskMetrics) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	m.EventsTotal.WithLabelValues(evt.EventType()).Inc()
	return nil
}

// ClientConnected increments the live websocket connection gauge.
func (m *TaskMetrics) ClientConnected() { m.WebsocketClients.Inc() }

// ClientDisconnected decrements the live websocket connection gauge.
func (m *TaskMetrics) ClientDisconnected() { m.WebsocketClients.Dec() }

func resultLabel(err error) string {
	if err == nil {
		return ResultSuccess
	}
	var coded codedError
	if errors.As(err, &coded) && coded.HTTPCode() != "" {
		return strings.ToLower(coded.HTTPCode())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return ResultError
}
