package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/lllypuk/taskflow/internal/application/appcore"
)

// Request tracing headers and context keys.
const (
	RequestIDHeader     = "X-Request-ID"
	RequestIDKey        = "request_id"
	CorrelationIDHeader = "X-Correlation-ID"
)

// LoggingConfig configures Logging.
type LoggingConfig struct {
	Logger *slog.Logger

	// SkipPaths are neither logged nor assigned a request id.
	SkipPaths []string
}

// DefaultLoggingConfig skips the probe endpoints.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Logger:    slog.Default(),
		SkipPaths: []string{"/health", "/ready"},
	}
}

// Logging assigns every request a request id and a correlation id, then logs
// one entry per request once the handler returns. The correlation id comes
// from X-Correlation-ID or falls back to the request id, and ends up in the
// metadata of events the request appends.
func Logging(config LoggingConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger

	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return slices.Contains(config.SkipPaths, c.Request().URL.Path)
		},
		BeforeNextFunc: assignRequestIDs,

		LogLatency:      true,
		LogMethod:       true,
		LogURIPath:      true,
		LogStatus:       true,
		LogRemoteIP:     true,
		LogUserAgent:    true,
		LogResponseSize: true,
		LogError:        true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logRequest(c, logger, v)
			return nil
		},
	})
}

func assignRequestIDs(c echo.Context) {
	req := c.Request()
	header := c.Response().Header()

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	header.Set(RequestIDHeader, requestID)
	c.Set(RequestIDKey, requestID)

	correlationID := req.Header.Get(CorrelationIDHeader)
	if correlationID == "" {
		correlationID = requestID
	}
	header.Set(CorrelationIDHeader, correlationID)
	c.SetRequest(req.WithContext(appcore.WithCorrelationID(req.Context(), correlationID)))
}

func logRequest(c echo.Context, logger *slog.Logger, v echomw.RequestLoggerValues) {
	req := c.Request()
	requestID := GetRequestID(c)

	attrs := []slog.Attr{
		slog.String("request_id", requestID),
		slog.String("method", v.Method),
		slog.String("path", v.URIPath),
		slog.Int("status", v.Status),
		slog.Duration("latency", v.Latency),
		slog.String("remote_ip", v.RemoteIP),
		slog.String("user_agent", v.UserAgent),
		slog.Int64("response_size", v.ResponseSize),
	}
	if username := GetPrincipal(c).Username(); username != "" {
		attrs = append(attrs, slog.String("username", username))
	}
	if correlationID := appcore.GetCorrelationID(req.Context()); correlationID != requestID {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}
	if req.URL.RawQuery != "" {
		attrs = append(attrs, slog.String("query", req.URL.RawQuery))
	}
	if req.ContentLength > 0 {
		attrs = append(attrs, slog.Int64("content_length", req.ContentLength))
	}

	level := statusLevel(v.Status)
	if level > slog.LevelInfo && v.Error != nil {
		attrs = append(attrs, slog.String("error", v.Error.Error()))
	}

	logger.LogAttrs(req.Context(), level, "HTTP request", attrs...)
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetRequestID returns the id Logging assigned to the request.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
