// Package main provides the API server entry point.
package main

import (
	"github.com/labstack/echo/v4"

	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
	"github.com/lllypuk/taskflow/internal/middleware"
)

// Paths reachable without a bearer token.
var publicPaths = []string{
	"/health",
	"/ready",
	"/health/details",
	"/metrics",
}

// SetupRoutes configures all API routes and middleware chains on e.
func SetupRoutes(e *echo.Echo, c *Container) *httpserver.Router {
	routerConfig := httpserver.DefaultRouterConfig()
	routerConfig.Logger = c.Logger
	routerConfig.AuthMiddleware = middleware.Auth(middleware.AuthConfig{
		Logger:         c.Logger,
		TokenValidator: c.TokenValidator,
		SkipPaths:      publicPaths,
		// Browsers cannot set headers on the WebSocket handshake.
		QueryTokenPaths: []string{routerConfig.APIPrefix + "/ws"},
	})
	routerConfig.AdminMiddleware = middleware.RequireAdmin()
	// One request per WebSocket connection, not per message.
	routerConfig.RateLimitMiddleware = rateLimitMiddleware(c, routerConfig.APIPrefix+"/ws")

	routerConfig.CORSOrigins = c.Config.Server.CORSOrigins
	routerConfig.LoggingConfig.Logger = c.Logger
	routerConfig.LoggingConfig.SkipPaths = publicPaths
	routerConfig.RecoveryConfig.Logger = c.Logger

	router := httpserver.NewRouter(e, routerConfig)

	router.RegisterHealthEndpoints(c.Health)
	router.RegisterMetricsEndpoint(c.Registry)

	router.RegisterAll(
		c.TaskHandler,
		c.AdminHandler,
		c.PrincipalHandler,
	)
	c.WSHandler.RegisterRoutes(router.Auth())

	// Log all registered routes in debug mode
	if c.Config.IsDevelopment() {
		router.PrintRoutes()
	}

	return router
}

// rateLimitMiddleware returns nil when rate limiting is disabled.
func rateLimitMiddleware(c *Container, skipPaths ...string) echo.MiddlewareFunc {
	if c.RateLimitStore == nil {
		return nil
	}

	rl := middleware.DefaultRateLimitConfig()
	rl.Logger = c.Logger
	rl.Store = c.RateLimitStore
	rl.Limit = c.Config.RateLimit.Requests
	rl.Window = c.Config.RateLimit.Window
	rl.SkipAdmins = c.Config.RateLimit.SkipAdmins
	rl.SkipPaths = append(rl.SkipPaths, skipPaths...)

	return middleware.RateLimit(rl)
}
