package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/taskflow/internal/domain/principal"
)

type contextKey string

// Echo context keys set by Auth.
const (
	ContextKeyPrincipal contextKey = "principal"
	ContextKeySubject   contextKey = "subject"
)

// Auth errors.
var (
	ErrMissingAuthHeader       = errors.New("missing authorization header")
	ErrInvalidAuthHeader       = errors.New("invalid authorization header format")
	ErrInvalidToken            = errors.New("invalid token")
	ErrTokenExpired            = errors.New("token expired")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// TokenClaims is the identity a validator extracts from a bearer token.
type TokenClaims struct {
	// Subject is the identity provider's stable id.
	Subject string
	// Username is matched against task assignees.
	Username  string
	Email     string
	Groups    []string
	IsAdmin   bool
	ExpiresAt time.Time
}

// Principal converts the claims into the principal the task runtime sees.
func (c *TokenClaims) Principal() principal.Principal {
	return principal.New(c.Username, c.Groups, c.IsAdmin)
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// AuthConfig configures Auth.
type AuthConfig struct {
	Logger         *slog.Logger
	TokenValidator TokenValidator
	// SkipPaths are served without authentication.
	SkipPaths []string
	// QueryTokenPaths also accept the access_token query parameter, since
	// browsers cannot set headers on websocket upgrades.
	QueryTokenPaths []string
}

// DefaultAuthConfig skips the probe endpoints and lets /api/v1/ws pass the
// token in the query string.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Logger:          slog.Default(),
		SkipPaths:       []string{"/health", "/ready", "/health/details", "/metrics"},
		QueryTokenPaths: []string{"/api/v1/ws"},
	}
}

// Auth resolves the bearer token into a principal stored on the context.
// Every failure is answered with 401 before the handler runs.
func Auth(config AuthConfig) echo.MiddlewareFunc {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if slices.Contains(config.SkipPaths, path) {
				return next(c)
			}

			token, err := bearerToken(c, slices.Contains(config.QueryTokenPaths, path))
			if err != nil {
				return denyAuth(c, err)
			}
			if config.TokenValidator == nil {
				logger.Error("token validator not configured")
				return denyAuth(c, ErrInvalidToken)
			}

			claims, err := config.TokenValidator.ValidateToken(c.Request().Context(), token)
			if err != nil {
				logger.Warn("token validation failed",
					slog.String("error", err.Error()),
					slog.String("path", path),
					slog.String("remote_ip", c.RealIP()),
				)
				return denyAuth(c, err)
			}
			if claims.Username == "" {
				return denyAuth(c, ErrInvalidToken)
			}

			SetPrincipal(c, claims.Subject, claims.Principal())
			logger.Debug("user authenticated",
				slog.String("username", claims.Username),
				slog.Any("groups", claims.Groups),
				slog.Bool("admin", claims.IsAdmin),
			)
			return next(c)
		}
	}
}

// bearerToken prefers the Authorization header; allowQuery falls back to
// the access_token query parameter.
func bearerToken(c echo.Context, allowQuery bool) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		if token := c.QueryParam("access_token"); allowQuery && token != "" {
			return token, nil
		}
		return "", ErrMissingAuthHeader
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", ErrInvalidAuthHeader
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", ErrInvalidAuthHeader
	}
	return token, nil
}

// SetPrincipal stores the authenticated principal on the context.
func SetPrincipal(c echo.Context, subject string, p principal.Principal) {
	c.Set(string(ContextKeySubject), subject)
	c.Set(string(ContextKeyPrincipal), p)
}

// GetPrincipal returns the authenticated principal, or the zero principal
// for anonymous requests. The task runtime rejects the zero principal.
func GetPrincipal(c echo.Context) principal.Principal {
	p, _ := c.Get(string(ContextKeyPrincipal)).(principal.Principal)
	return p
}

// GetSubject returns the token subject, empty for anonymous requests.
func GetSubject(c echo.Context) string {
	subject, _ := c.Get(string(ContextKeySubject)).(string)
	return subject
}

// RequireAdmin answers 403 unless the principal holds the admin capability.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !GetPrincipal(c).IsAdmin() {
				return denyAuth(c, ErrInsufficientPermissions)
			}
			return next(c)
		}
	}
}

type authFailure struct {
	target  error
	status  int
	code    string
	message string
}

var authFailures = []authFailure{
	{ErrMissingAuthHeader, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header"},
	{ErrInvalidAuthHeader, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header format"},
	{ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired"},
	{ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token"},
	{ErrInsufficientPermissions, http.StatusForbidden, "ADMIN_REQUIRED", "Administrative capability required"},
}

func denyAuth(c echo.Context, err error) error {
	failure := authFailure{status: http.StatusUnauthorized, code: "UNAUTHORIZED", message: "Authentication required"}
	for _, f := range authFailures {
		if errors.Is(err, f.target) {
			failure = f
			break
		}
	}

	return c.JSON(failure.status, map[string]any{
		"success": false,
		"error":   map[string]string{"code": failure.code, "message": failure.message},
	})
}
