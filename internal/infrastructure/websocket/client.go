package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lllypuk/taskflow/internal/domain/principal"
)

// ClientConfig tunes the keepalive and buffering of one connection.
type ClientConfig struct {
	// PingInterval must stay below PongWait.
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	// SendBufferSize bounds queued outbound messages; overflow is dropped.
	SendBufferSize int
}

// DefaultClientConfig returns the stock keepalive settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
		SendBufferSize: 256,
	}
}

func (cfg ClientConfig) normalized() ClientConfig {
	def := DefaultClientConfig()
	pick := func(v, fallback time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return fallback
	}
	cfg.PingInterval = pick(cfg.PingInterval, def.PingInterval)
	cfg.PongWait = pick(cfg.PongWait, def.PongWait)
	cfg.WriteWait = pick(cfg.WriteWait, def.WriteWait)
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	return cfg
}

// Client is one websocket connection of an authenticated principal.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	principal principal.Principal
	config    ClientConfig
	logger    *slog.Logger

	// mu guards queue against sends after Close.
	mu     sync.RWMutex
	queue  chan []byte
	closed bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientConfig overrides the keepalive settings. Zero fields keep defaults.
func WithClientConfig(config ClientConfig) ClientOption {
	return func(c *Client) { c.config = config }
}

// WithClientLogger sets the logger. Nil keeps slog.Default.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient wraps conn for p. The caller registers it and starts both pumps.
func NewClient(hub *Hub, conn *websocket.Conn, p principal.Principal, opts ...ClientOption) *Client {
	c := &Client{
		hub:       hub,
		conn:      conn,
		principal: p,
		config:    DefaultClientConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.config = c.config.normalized()
	c.queue = make(chan []byte, c.config.SendBufferSize)
	return c
}

// Principal returns the identity the connection was opened with.
func (c *Client) Principal() principal.Principal {
	return c.principal
}

// IsClosed reports whether Close was called.
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// ReadPump consumes inbound frames until the connection fails, then
// unregisters the client.
func (c *Client) ReadPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	}
	if err := extend(""); err != nil {
		c.logger.Error("failed to set read deadline", slog.String("error", err.Error()))
		return
	}
	c.conn.SetPongHandler(extend)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error",
					slog.String("username", c.principal.Username()),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		c.reply(frame)
	}
}

// WritePump drains the queue and pings the peer. It owns closing conn.
func (c *Client) WritePump() {
	ping := time.NewTicker(c.config.PingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		var (
			kind    int
			payload []byte
		)
		select {
		case msg, ok := <-c.queue:
			if !ok {
				kind = websocket.CloseMessage
			} else {
				kind, payload = websocket.TextMessage, msg
			}
		case <-ping.C:
			kind = websocket.PingMessage
		}

		if err := c.write(kind, payload); err != nil || kind == websocket.CloseMessage {
			return
		}
	}
}

func (c *Client) write(kind int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
		c.logger.Error("failed to set write deadline", slog.String("error", err.Error()))
		return err
	}
	err := c.conn.WriteMessage(kind, payload)
	if err != nil && kind == websocket.TextMessage {
		c.logger.Warn("websocket write error",
			slog.String("username", c.principal.Username()),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// inbound is the only frame shape clients send.
type inbound struct {
	Type string `json:"type"`
}

// reply answers a client frame. The stream is push only; clients may ask
// for a pong or for the identity the server sees.
func (c *Client) reply(frame []byte) {
	var in inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		c.sendJSON(map[string]string{"type": "error", "message": "invalid message format"})
		return
	}

	switch in.Type {
	case "ping":
		c.sendJSON(map[string]string{"type": "pong"})
	case "whoami":
		c.sendJSON(map[string]any{
			"type":     "whoami",
			"username": c.principal.Username(),
			"groups":   c.principal.Groups(),
			"admin":    c.principal.IsAdmin(),
		})
	default:
		c.sendJSON(map[string]string{"type": "error", "message": "unknown message type: " + in.Type})
	}
}

func (c *Client) sendJSON(v any) {
	if data, err := json.Marshal(v); err == nil {
		c.Send(data)
	}
}

// Send queues message without blocking. It reports false when the client is
// closed or its queue is full.
func (c *Client) Send(message []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.queue <- message:
		return true
	default:
		c.logger.Warn("client send buffer full, dropping message",
			slog.String("username", c.principal.Username()),
		)
		return false
	}
}

// Close stops the queue; WritePump then sends a close frame and drops the
// connection. Repeated calls are no-ops.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}
