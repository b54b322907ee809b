package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lllypuk/taskflow/internal/middleware"
)

const (
	defaultAPIPrefix   = "/api/v1"
	defaultAdminPrefix = "/admin"
)

// RouterConfig describes the middleware chains of the three route groups.
type RouterConfig struct {
	Logger *slog.Logger

	// AuthMiddleware binds the principal on the auth and admin groups.
	AuthMiddleware echo.MiddlewareFunc

	// AdminMiddleware guards the admin group. Defaults to middleware.RequireAdmin.
	AdminMiddleware echo.MiddlewareFunc

	// RateLimitMiddleware runs after AuthMiddleware so it can key by username.
	RateLimitMiddleware echo.MiddlewareFunc

	// CORSOrigins are the browser origins admitted. Empty admits any.
	CORSOrigins []string

	LoggingConfig  middleware.LoggingConfig
	RecoveryConfig middleware.RecoveryConfig

	APIPrefix   string
	AdminPrefix string
}

// DefaultRouterConfig returns a RouterConfig for /api/v1 with /api/v1/admin.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Logger:         slog.Default(),
		LoggingConfig:  middleware.DefaultLoggingConfig(),
		RecoveryConfig: middleware.DefaultRecoveryConfig(),
		APIPrefix:      defaultAPIPrefix,
		AdminPrefix:    defaultAdminPrefix,
	}
}

// Router splits routes into public, authenticated and admin groups.
type Router struct {
	echo   *echo.Echo
	logger *slog.Logger

	public *echo.Group
	auth   *echo.Group
	admin  *echo.Group
}

// NewRouter installs the global middleware on e and builds the route groups.
func NewRouter(e *echo.Echo, config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.APIPrefix == "" {
		config.APIPrefix = defaultAPIPrefix
	}
	if config.AdminPrefix == "" {
		config.AdminPrefix = defaultAdminPrefix
	}
	if config.AdminMiddleware == nil {
		config.AdminMiddleware = middleware.RequireAdmin()
	}

	// recovery goes first so it sees panics from every other middleware
	e.Use(
		middleware.Recovery(config.RecoveryConfig),
		middleware.CORS(config.CORSOrigins...),
		middleware.Logging(config.LoggingConfig),
	)

	r := &Router{echo: e, logger: config.Logger}
	r.public = e.Group(config.APIPrefix)

	var protected []echo.MiddlewareFunc
	if config.AuthMiddleware != nil {
		protected = append(protected, config.AuthMiddleware)
	} else {
		// handlers see the zero principal and answer 401
		r.logger.Warn("no auth middleware configured, protected routes will reject every request")
	}
	if config.RateLimitMiddleware != nil {
		protected = append(protected, config.RateLimitMiddleware)
	}
	r.auth = r.public.Group("", protected...)
	r.admin = r.auth.Group(config.AdminPrefix, config.AdminMiddleware)

	return r
}

// Echo returns the underlying echo instance.
func (r *Router) Echo() *echo.Echo {
	return r.echo
}

// Public returns the group that needs no principal.
func (r *Router) Public() *echo.Group {
	return r.public
}

// Auth returns the group whose handlers can rely on middleware.GetPrincipal.
func (r *Router) Auth() *echo.Group {
	return r.auth
}

// Admin returns the group restricted to administrators.
func (r *Router) Admin() *echo.Group {
	return r.admin
}

// RouteRegistrar is implemented by handlers that own a set of routes.
type RouteRegistrar interface {
	RegisterRoutes(r *Router)
}

// RegisterAll lets every registrar add its routes.
func (r *Router) RegisterAll(registrars ...RouteRegistrar) {
	for _, registrar := range registrars {
		registrar.RegisterRoutes(r)
	}
}

// PrintRoutes logs the route table at debug level.
func (r *Router) PrintRoutes() {
	for _, route := range r.echo.Routes() {
		r.logger.Debug("registered route",
			slog.String("method", route.Method),
			slog.String("path", route.Path),
		)
	}
}

// RegisterMetricsEndpoint serves gatherer on /metrics, or the default
// registry when gatherer is nil.
func (r *Router) RegisterMetricsEndpoint(gatherer prometheus.Gatherer) {
	handler := promhttp.Handler()
	if gatherer != nil {
		handler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	r.echo.GET("/metrics", echo.WrapHandler(handler))
}
