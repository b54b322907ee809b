package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Rate limit defaults.
const (
	DefaultRateLimit       = 100
	DefaultRateLimitWindow = time.Minute
	DefaultBurstSize       = 10

	defaultRateLimitMessage = "Too many requests. Please try again later."
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	Logger *slog.Logger

	// Store counts requests per key. A nil store disables limiting.
	Store RateLimitStore

	// Limit is the number of requests allowed per Window, BurstSize more are tolerated.
	Limit     int
	Window    time.Duration
	BurstSize int

	// KeyFunc picks the counter a request is charged to. Defaults to KeyByPrincipal.
	KeyFunc func(c echo.Context) string

	// SkipPaths are never limited.
	SkipPaths []string

	// SkipAdmins exempts principals holding the administrative capability.
	SkipAdmins bool

	// Message is returned with 429 responses.
	Message string
}

// DefaultRateLimitConfig returns a RateLimitConfig with sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Logger:    slog.Default(),
		Limit:     DefaultRateLimit,
		Window:    DefaultRateLimitWindow,
		BurstSize: DefaultBurstSize,
		SkipPaths: []string{"/health", "/ready", "/metrics"},
		Message:   defaultRateLimitMessage,
	}
}

// KeyByPrincipal charges authenticated requests to the username and the rest to the client IP.
func KeyByPrincipal(c echo.Context) string {
	if username := GetPrincipal(c).Username(); username != "" {
		return "user:" + username
	}
	return KeyByIP(c)
}

// KeyByIP charges every request to the client IP.
func KeyByIP(c echo.Context) string {
	return "ip:" + c.RealIP()
}

// RateLimit applies a fixed window request limit.
// Store failures let the request through.
func RateLimit(config RateLimitConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Limit <= 0 {
		config.Limit = DefaultRateLimit
	}
	if config.Window <= 0 {
		config.Window = DefaultRateLimitWindow
	}
	if config.Message == "" {
		config.Message = defaultRateLimitMessage
	}
	if config.KeyFunc == nil {
		config.KeyFunc = KeyByPrincipal
	}

	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = struct{}{}
	}
	allowed := int64(config.Limit + config.BurstSize)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Store == nil {
				return next(c)
			}
			if _, ok := skip[c.Request().URL.Path]; ok {
				return next(c)
			}
			if config.SkipAdmins && GetPrincipal(c).IsAdmin() {
				return next(c)
			}

			key := config.KeyFunc(c)
			usage, err := config.Store.Hit(c.Request().Context(), key, config.Window)
			if err != nil {
				config.Logger.Error("rate limit store failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-Ratelimit-Limit", strconv.FormatInt(allowed, 10))
			h.Set("X-Ratelimit-Remaining", strconv.FormatInt(max(allowed-usage.Count, 0), 10))
			if usage.ResetIn > 0 {
				h.Set("X-Ratelimit-Reset", strconv.FormatInt(time.Now().Add(usage.ResetIn).Unix(), 10))
			}

			if usage.Count <= allowed {
				return next(c)
			}

			config.Logger.Warn("rate limit exceeded",
				slog.String("key", key),
				slog.Int64("count", usage.Count),
				slog.Int64("limit", allowed),
				slog.String("path", c.Request().URL.Path),
			)
			return tooManyRequests(c, config.Message, usage.ResetIn)
		}
	}
}

func tooManyRequests(c echo.Context, message string, retryAfter time.Duration) error {
	seconds := int64(retryAfter.Round(time.Second).Seconds())
	if seconds > 0 {
		c.Response().Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	}

	return c.JSON(http.StatusTooManyRequests, map[string]any{
		"success": false,
		"error": map[string]any{
			"code":        "RATE_LIMIT_EXCEEDED",
			"message":     message,
			"retry_after": seconds,
		},
	})
}
