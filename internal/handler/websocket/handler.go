// Package websocket provides the HTTP endpoint for the live task event stream.
package websocket

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
	ws "github.com/lllypuk/taskflow/internal/infrastructure/websocket"
	"github.com/lllypuk/taskflow/internal/middleware"
)

const defaultBufferSize = 1024

// HandlerConfig configures the upgrade of /ws requests.
type HandlerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	// AllowedOrigins restricts the Origin header. Empty or "*" allows any.
	AllowedOrigins []string
	Logger         *slog.Logger
	ClientConfig   ws.ClientConfig
}

// DefaultHandlerConfig accepts any origin with 1 KiB buffers.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		ReadBufferSize:  defaultBufferSize,
		WriteBufferSize: defaultBufferSize,
		Logger:          slog.Default(),
		ClientConfig:    ws.DefaultClientConfig(),
	}
}

// Handler attaches authenticated connections to the hub.
type Handler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
	client   ws.ClientConfig
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger. Nil keeps the current one.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHandlerConfig applies config. Non-positive buffer sizes keep defaults.
func WithHandlerConfig(config HandlerConfig) HandlerOption {
	return func(h *Handler) {
		if config.ReadBufferSize > 0 {
			h.upgrader.ReadBufferSize = config.ReadBufferSize
		}
		if config.WriteBufferSize > 0 {
			h.upgrader.WriteBufferSize = config.WriteBufferSize
		}
		h.upgrader.CheckOrigin = originChecker(config.AllowedOrigins)
		h.client = config.ClientConfig
		WithHandlerLogger(config.Logger)(h)
	}
}

// NewHandler creates the handler for hub.
func NewHandler(hub *ws.Hub, opts ...HandlerOption) *Handler {
	h := &Handler{hub: hub, logger: slog.Default(), client: ws.DefaultClientConfig()}
	h.upgrader.ReadBufferSize = defaultBufferSize
	h.upgrader.WriteBufferSize = defaultBufferSize
	h.upgrader.CheckOrigin = originChecker(nil)

	for _, opt := range opts {
		opt(h)
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	open := len(allowed) == 0 || slices.Contains(allowed, "*")
	return func(r *http.Request) bool {
		if open {
			return true
		}
		origin := r.Header.Get(echo.HeaderOrigin)
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// HandleWebSocket upgrades the request of the authenticated principal. The
// auth middleware also accepts access_token as a query parameter on this route.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	if p.IsZero() {
		h.logger.Warn("websocket connection rejected: authentication required",
			slog.String("remote_ip", c.RealIP()))
		return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Warn("websocket upgrade failed",
			slog.String("username", p.Username()),
			slog.String("error", err.Error()))
		return nil
	}

	client := ws.NewClient(h.hub, conn, p, ws.WithClientConfig(h.client), ws.WithClientLogger(h.logger))
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("websocket connection established",
		slog.String("username", p.Username()),
		slog.Bool("admin", p.IsAdmin()),
		slog.String("remote_ip", c.RealIP()))
	return nil
}

// RegisterRoutes mounts GET /ws on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleWebSocket)
}
