package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lllypuk/taskflow/internal/config"
	"github.com/lllypuk/taskflow/internal/infrastructure/healthcheck"
	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
	"github.com/lllypuk/taskflow/internal/infrastructure/metrics"
	"github.com/lllypuk/taskflow/internal/infrastructure/repair"
	"github.com/lllypuk/taskflow/internal/worker"
)

// repairBacklogThreshold is the pending count above which the worker reports degraded.
const repairBacklogThreshold = 100

// service runs the repair worker next to a monitoring server exposing health and metrics.
type service struct {
	worker  *worker.RepairWorker
	monitor *httpserver.Server
	logger  *slog.Logger
}

func newService(
	cfg *config.Config,
	logger *slog.Logger,
	queue repair.Queue,
	rebuilder worker.Rebuilder,
	probes ...httpserver.Probe,
) *service {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	w := worker.NewRepairWorker(queue, rebuilder, logger, worker.RepairWorkerConfig{
		PollInterval: cfg.Repair.PollInterval,
		BatchSize:    cfg.Repair.BatchSize,
		MaxRetries:   cfg.Repair.MaxRetries,
		Enabled:      cfg.Repair.Enabled,
	}, worker.WithRepairMetrics(metrics.NewRepairMetrics(registry)))

	probes = append(probes, healthcheck.RepairQueueProbe(queue, repairBacklogThreshold))

	monitor := httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Repair.MonitorPort,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	e := monitor.Echo()
	httpserver.NewHealthEndpoints(
		httpserver.NewProbeChecker(httpserver.DefaultProbeTimeout, probes...),
	).Register(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return &service{worker: w, monitor: monitor, logger: logger}
}

// Run blocks until ctx is cancelled or either component fails.
func (s *service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.worker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.monitor.Run(gctx)
	})

	return g.Wait()
}
