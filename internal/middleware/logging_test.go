package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/middleware"
)

func newLoggingEcho(logBuffer *bytes.Buffer) *echo.Echo {
	logger := slog.New(slog.NewJSONHandler(logBuffer, nil))

	e := echo.New()
	e.Use(middleware.Logging(middleware.LoggingConfig{
		Logger:    logger,
		SkipPaths: []string{"/health", "/ready"},
	}))
	return e
}

func decodeLogEntry(t *testing.T, logBuffer *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(logBuffer.Bytes(), &entry))
	return entry
}

func TestDefaultLoggingConfig(t *testing.T) {
	config := middleware.DefaultLoggingConfig()

	assert.NotNil(t, config.Logger)
	assert.Equal(t, []string{"/health", "/ready"}, config.SkipPaths)
}

func TestLogging_SkipsConfiguredPaths(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		expectLog bool
	}{
		{name: "api request is logged", path: "/api/v1/tasks", expectLog: true},
		{name: "health check is skipped", path: "/health", expectLog: false},
		{name: "ready check is skipped", path: "/ready", expectLog: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuffer bytes.Buffer
			e := newLoggingEcho(&logBuffer)
			e.GET(tt.path, func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			if tt.expectLog {
				assert.Contains(t, logBuffer.String(), tt.path)
			} else {
				assert.Empty(t, logBuffer.String())
			}
		})
	}
}

func TestLogging_RequestAndCorrelationIDs(t *testing.T) {
	tests := []struct {
		name              string
		requestID         string
		correlationID     string
		wantCorrelationID func(requestID string) string
	}{
		{
			name:              "generated request id doubles as correlation id",
			wantCorrelationID: func(requestID string) string { return requestID },
		},
		{
			name:              "provided request id",
			requestID:         "req-123",
			wantCorrelationID: func(string) string { return "req-123" },
		},
		{
			name:              "provided correlation id",
			requestID:         "req-123",
			correlationID:     "flow-9",
			wantCorrelationID: func(string) string { return "flow-9" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuffer bytes.Buffer
			e := newLoggingEcho(&logBuffer)

			var seenCorrelationID string
			e.POST("/api/v1/tasks", func(c echo.Context) error {
				seenCorrelationID = appcore.GetCorrelationID(c.Request().Context())
				return c.NoContent(http.StatusCreated)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil)
			if tt.requestID != "" {
				req.Header.Set(middleware.RequestIDHeader, tt.requestID)
			}
			if tt.correlationID != "" {
				req.Header.Set(middleware.CorrelationIDHeader, tt.correlationID)
			}
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			requestID := rec.Header().Get(middleware.RequestIDHeader)
			require.NotEmpty(t, requestID)
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, requestID)
			}

			want := tt.wantCorrelationID(requestID)
			assert.Equal(t, want, seenCorrelationID)
			assert.Equal(t, want, rec.Header().Get(middleware.CorrelationIDHeader))

			entry := decodeLogEntry(t, &logBuffer)
			assert.Equal(t, requestID, entry["request_id"])
			if want != requestID {
				assert.Equal(t, want, entry["correlation_id"])
			} else {
				assert.NotContains(t, entry, "correlation_id")
			}
		})
	}
}

func TestLogging_Username(t *testing.T) {
	var logBuffer bytes.Buffer
	e := newLoggingEcho(&logBuffer)
	e.GET("/api/v1/tasks", func(c echo.Context) error {
		middleware.SetPrincipal(c, "sub", principal.New("salaboy", nil, false))
		return c.NoContent(http.StatusOK)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))

	entry := decodeLogEntry(t, &logBuffer)
	assert.Equal(t, "salaboy", entry["username"])
}

func TestLogging_StatusCodeLevels(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		expectedLevel string
	}{
		{name: "2xx logs at INFO", statusCode: http.StatusOK, expectedLevel: "INFO"},
		{name: "3xx logs at INFO", statusCode: http.StatusMovedPermanently, expectedLevel: "INFO"},
		{name: "404 logs at WARN", statusCode: http.StatusNotFound, expectedLevel: "WARN"},
		{name: "409 logs at WARN", statusCode: http.StatusConflict, expectedLevel: "WARN"},
		{name: "5xx logs at ERROR", statusCode: http.StatusInternalServerError, expectedLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuffer bytes.Buffer
			e := newLoggingEcho(&logBuffer)
			e.GET("/test", func(c echo.Context) error {
				return c.String(tt.statusCode, "response")
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, tt.statusCode, rec.Code)
			assert.Equal(t, tt.expectedLevel, decodeLogEntry(t, &logBuffer)["level"])
		})
	}
}

func TestLogging_HTTPErrorIsLogged(t *testing.T) {
	var logBuffer bytes.Buffer
	e := newLoggingEcho(&logBuffer)
	e.GET("/error", func(_ echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad request")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/error", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	entry := decodeLogEntry(t, &logBuffer)
	assert.Equal(t, "WARN", entry["level"])
	assert.Contains(t, entry, "error")
}

func TestLogging_LogFormat(t *testing.T) {
	var logBuffer bytes.Buffer
	e := newLoggingEcho(&logBuffer)
	e.GET("/api/v1/tasks", func(c echo.Context) error {
		return c.String(http.StatusOK, `{"content":[]}`)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks?page=0&size=10", nil)
	req.Header.Set("User-Agent", "TestBrowser/1.0")
	e.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogEntry(t, &logBuffer)
	assert.Equal(t, "HTTP request", entry["msg"])
	assert.Equal(t, http.MethodGet, entry["method"])
	assert.Equal(t, "/api/v1/tasks", entry["path"])
	assert.Equal(t, "page=0&size=10", entry["query"])
	assert.Equal(t, "TestBrowser/1.0", entry["user_agent"])
	assert.Contains(t, entry, "latency")
	assert.Contains(t, entry, "remote_ip")
	assert.Contains(t, entry, "response_size")
	assert.NotContains(t, entry, "username")
}

func TestLogging_NilLoggerUsesDefault(t *testing.T) {
	e := echo.New()
	e.Use(middleware.Logging(middleware.LoggingConfig{}))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetRequestID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.Empty(t, middleware.GetRequestID(c))

	c.Set(middleware.RequestIDKey, "req-456")
	assert.Equal(t, "req-456", middleware.GetRequestID(c))
}
