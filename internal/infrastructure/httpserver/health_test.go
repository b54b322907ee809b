package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
)

func okProbe(name string, critical bool) httpserver.Probe {
	return httpserver.Probe{Name: name, Critical: critical, Check: func(context.Context) error { return nil }}
}

func failingProbe(name string, critical bool) httpserver.Probe {
	return httpserver.Probe{Name: name, Critical: critical, Check: func(context.Context) error {
		return errors.New(name + " down")
	}}
}

func TestProbeChecker(t *testing.T) {
	tests := []struct {
		name     string
		probes   []httpserver.Probe
		ready    bool
		statuses []string
	}{
		{"no probes", nil, true, []string{}},
		{"all healthy", []httpserver.Probe{okProbe("mongodb", true), okProbe("redis", false)}, true,
			[]string{httpserver.StatusHealthy, httpserver.StatusHealthy}},
		{"optional probe fails", []httpserver.Probe{okProbe("mongodb", true), failingProbe("redis", false)}, true,
			[]string{httpserver.StatusHealthy, httpserver.StatusDegraded}},
		{"critical probe fails", []httpserver.Probe{failingProbe("mongodb", true), okProbe("redis", false)}, false,
			[]string{httpserver.StatusUnhealthy, httpserver.StatusHealthy}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := httpserver.NewProbeChecker(time.Second, tt.probes...)

			assert.Equal(t, tt.ready, checker.IsReady(context.Background()))

			statuses := checker.GetHealthStatus(context.Background())
			got := make([]string, 0, len(statuses))
			for i, s := range statuses {
				assert.Equal(t, tt.probes[i].Name, s.Name)
				got = append(got, s.Status)
			}
			assert.Equal(t, tt.statuses, got)
		})
	}
}

func TestProbeChecker_Timeout(t *testing.T) {
	slow := httpserver.Probe{Name: "mongodb", Critical: true, Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	checker := httpserver.NewProbeChecker(20*time.Millisecond, slow)

	statuses := checker.GetHealthStatus(context.Background())

	require.Len(t, statuses, 1)
	assert.Equal(t, httpserver.StatusUnhealthy, statuses[0].Status)
	assert.Contains(t, statuses[0].Message, "deadline exceeded")
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name          string
		checker       httpserver.HealthChecker
		path          string
		status        int
		overallStatus string
	}{
		{"liveness", nil, "/health", http.StatusOK, httpserver.StatusHealthy},
		{"ready without checker", nil, "/ready", http.StatusOK, httpserver.StatusReady},
		{"ready", httpserver.NewProbeChecker(0, okProbe("mongodb", true)), "/ready",
			http.StatusOK, httpserver.StatusReady},
		{"not ready", httpserver.NewProbeChecker(0, failingProbe("mongodb", true)), "/ready",
			http.StatusServiceUnavailable, httpserver.StatusNotReady},
		{"details degraded", httpserver.NewProbeChecker(0, okProbe("mongodb", true), failingProbe("redis", false)),
			"/health/details", http.StatusOK, httpserver.StatusDegraded},
		{"details unhealthy", httpserver.NewProbeChecker(0, failingProbe("mongodb", true), failingProbe("redis", false)),
			"/health/details", http.StatusServiceUnavailable, httpserver.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			router := httpserver.NewRouter(e, quietRouterConfig())
			router.RegisterHealthEndpoints(tt.checker)

			rec := serve(e, http.MethodGet, tt.path, "")

			assert.Equal(t, tt.status, rec.Code)
			var resp httpserver.HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.overallStatus, resp.Status)
		})
	}
}
