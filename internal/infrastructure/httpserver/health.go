// Package httpserver provides HTTP server infrastructure components.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// Status values reported by the health endpoints.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	// StatusDegraded means only non-critical probes fail.
	StatusDegraded = "degraded"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// DefaultProbeTimeout bounds a single dependency probe.
const DefaultProbeTimeout = 2 * time.Second

// ComponentStatus is the outcome of one probe.
type ComponentStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of every health endpoint.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components,omitempty"`
}

// HealthChecker reports readiness and per-component status.
type HealthChecker interface {
	IsReady(ctx context.Context) bool
	GetHealthStatus(ctx context.Context) []ComponentStatus
}

// Probe checks one dependency. A failing Critical probe makes the service
// unhealthy; any other failure only degrades it.
type Probe struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

func (p Probe) run(ctx context.Context, timeout time.Duration) ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.Check(ctx)
	switch {
	case err == nil:
		return ComponentStatus{Name: p.Name, Status: StatusHealthy}
	case p.Critical:
		return ComponentStatus{Name: p.Name, Status: StatusUnhealthy, Message: err.Error()}
	default:
		return ComponentStatus{Name: p.Name, Status: StatusDegraded, Message: err.Error()}
	}
}

// ProbeChecker runs a fixed set of probes concurrently.
type ProbeChecker struct {
	probes  []Probe
	timeout time.Duration
}

// NewProbeChecker creates a checker. A non-positive timeout means DefaultProbeTimeout.
func NewProbeChecker(timeout time.Duration, probes ...Probe) *ProbeChecker {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &ProbeChecker{probes: probes, timeout: timeout}
}

// IsReady reports whether no critical probe fails.
func (p *ProbeChecker) IsReady(ctx context.Context) bool {
	status, _ := summarize(p.GetHealthStatus(ctx))
	return status != StatusUnhealthy
}

// GetHealthStatus runs every probe and returns results in registration order.
func (p *ProbeChecker) GetHealthStatus(ctx context.Context) []ComponentStatus {
	results := make([]ComponentStatus, len(p.probes))

	var g errgroup.Group
	for i, probe := range p.probes {
		g.Go(func() error {
			results[i] = probe.run(ctx, p.timeout)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// summarize folds component statuses into the overall status and HTTP code.
func summarize(components []ComponentStatus) (string, int) {
	overall := StatusHealthy
	for _, c := range components {
		switch c.Status {
		case StatusUnhealthy:
			return StatusUnhealthy, http.StatusServiceUnavailable
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall, http.StatusOK
}

// HealthEndpoints serves liveness, readiness and component details.
type HealthEndpoints struct {
	checker HealthChecker
}

// NewHealthEndpoints creates the endpoints. A nil checker is always ready.
func NewHealthEndpoints(checker HealthChecker) *HealthEndpoints {
	return &HealthEndpoints{checker: checker}
}

// Register mounts GET /health (liveness), GET /ready (503 when a critical
// probe fails) and GET /health/details.
func (h *HealthEndpoints) Register(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{Status: StatusHealthy})
	})
	e.GET("/ready", h.ready)
	e.GET("/health/details", h.details)
}

func (h *HealthEndpoints) ready(c echo.Context) error {
	if h.checker != nil && !h.checker.IsReady(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: StatusNotReady})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: StatusReady})
}

func (h *HealthEndpoints) details(c echo.Context) error {
	var components []ComponentStatus
	if h.checker != nil {
		components = h.checker.GetHealthStatus(c.Request().Context())
	}
	status, code := summarize(components)
	return c.JSON(code, HealthResponse{Status: status, Components: components})
}

// RegisterHealthEndpoints registers health endpoints backed by checker.
func (r *Router) RegisterHealthEndpoints(checker HealthChecker) {
	NewHealthEndpoints(checker).Register(r.echo)
}
