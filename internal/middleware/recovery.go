package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/lllypuk/taskflow/internal/application/appcore"
)

const defaultStackSize = 4 << 10

// RecoveryConfig configures Recovery.
type RecoveryConfig struct {
	Logger *slog.Logger

	// StackSize bounds the captured stack of the panicking goroutine.
	StackSize int

	// OmitStack leaves the stack out of the log entry.
	OmitStack bool
}

// DefaultRecoveryConfig returns a RecoveryConfig logging to slog.Default.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:    slog.Default(),
		StackSize: defaultStackSize,
	}
}

// Recovery turns a handler panic into a logged 500 in the API envelope.
// Responses already committed are left as they are.
func Recovery(config RecoveryConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.StackSize <= 0 {
		config.StackSize = defaultStackSize
	}

	return echomw.RecoverWithConfig(echomw.RecoverConfig{
		StackSize:         config.StackSize,
		DisableStackAll:   true,
		DisablePrintStack: config.OmitStack,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			req := c.Request()
			attrs := []any{
				slog.String("error", err.Error()),
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("remote_ip", c.RealIP()),
			}
			requestID := GetRequestID(c)
			if requestID == "" {
				requestID = req.Header.Get(RequestIDHeader)
			}
			if requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}
			if correlationID := appcore.GetCorrelationID(req.Context()); correlationID != "" {
				attrs = append(attrs, slog.String("correlation_id", correlationID))
			}
			if username := GetPrincipal(c).Username(); username != "" {
				attrs = append(attrs, slog.String("username", username))
			}
			if len(stack) > 0 {
				attrs = append(attrs, slog.String("stack", string(stack)))
			}
			config.Logger.ErrorContext(req.Context(), "panic recovered", attrs...)

			if c.Response().Committed {
				return nil
			}
			return c.JSON(http.StatusInternalServerError, map[string]any{
				"success": false,
				"error": map[string]string{
					"code":    "INTERNAL_ERROR",
					"message": "An internal error occurred",
				},
			})
		},
	})
}
