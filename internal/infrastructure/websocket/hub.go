// Package websocket streams task lifecycle events to connected principals.
package websocket

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lllypuk/taskflow/internal/domain/principal"
)

const outboxSize = 256

// ConnectionObserver is told about every connect and disconnect.
type ConnectionObserver interface {
	ClientConnected()
	ClientDisconnected()
}

// RecipientFilter decides whether a connected principal receives a message.
type RecipientFilter func(p principal.Principal) bool

type delivery struct {
	// username narrows the audience to one user's connections.
	username string
	filter   RecipientFilter
	payload  []byte
}

// Hub tracks open connections by username and fans messages out to them.
// Registration is synchronous; fan-out happens on the Run goroutine so a
// slow publisher never waits on sockets.
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]map[*Client]struct{}
	total  int
	closed bool

	outbox   chan delivery
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	logger   *slog.Logger
	observer ConnectionObserver
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger. Nil keeps slog.Default.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithConnectionObserver reports connection counts, e.g. to metrics.
func WithConnectionObserver(observer ConnectionObserver) HubOption {
	return func(h *Hub) {
		h.observer = observer
	}
}

// NewHub creates a Hub. Nothing is delivered until Run.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		byUser: make(map[string]map[*Client]struct{}),
		outbox: make(chan delivery, outboxSize),
		stop:   make(chan struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run delivers queued messages until ctx ends or Stop is called, then closes
// every connection. A second concurrent Run returns immediately.
func (h *Hub) Run(ctx context.Context) {
	if !h.running.CompareAndSwap(false, true) {
		return
	}
	defer h.running.Store(false)

	h.logger.InfoContext(ctx, "websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-h.stop:
			h.shutdown()
			return
		case d := <-h.outbox:
			h.fanOut(d)
		}
	}
}

// Stop ends a running Run. It is a no-op when the hub is not running.
func (h *Hub) Stop() {
	if h.running.Load() {
		h.closeStop()
	}
}

func (h *Hub) closeStop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) shutdown() {
	// publishers blocked on a full outbox give up
	h.closeStop()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, conns := range h.byUser {
		for c := range conns {
			c.Close()
			h.notify(false)
		}
	}
	h.byUser = make(map[string]map[*Client]struct{})
	h.total = 0

	h.logger.Info("websocket hub stopped")
}

// Register adds client. A stopped hub closes the client instead.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		client.Close()
		return
	}

	username := client.principal.Username()
	conns, ok := h.byUser[username]
	if !ok {
		conns = make(map[*Client]struct{})
		h.byUser[username] = conns
	}
	conns[client] = struct{}{}
	h.total++
	total := h.total
	h.mu.Unlock()

	h.notify(true)
	h.logger.Debug("client registered", slog.String("username", username), slog.Int("total_clients", total))
}

// Unregister removes and closes client. Unknown clients are ignored.
func (h *Hub) Unregister(client *Client) {
	username := client.principal.Username()

	h.mu.Lock()
	conns := h.byUser[username]
	if _, ok := conns[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.byUser, username)
	}
	h.total--
	total := h.total
	h.mu.Unlock()

	client.Close()
	h.notify(false)
	h.logger.Debug("client unregistered", slog.String("username", username), slog.Int("total_clients", total))
}

func (h *Hub) notify(connected bool) {
	if h.observer == nil {
		return
	}
	if connected {
		h.observer.ClientConnected()
	} else {
		h.observer.ClientDisconnected()
	}
}

// Deliver queues payload for every connection whose principal passes filter.
// A nil filter reaches everyone.
func (h *Hub) Deliver(payload []byte, filter RecipientFilter) {
	h.enqueue(delivery{filter: filter, payload: payload})
}

// SendToUser queues payload for every connection of username.
func (h *Hub) SendToUser(username string, payload []byte) {
	if username != "" {
		h.enqueue(delivery{username: username, payload: payload})
	}
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.outbox <- d:
	case <-h.stop:
	}
}

func (h *Hub) fanOut(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	send := func(conns map[*Client]struct{}) {
		for c := range conns {
			if d.filter == nil || d.filter(c.principal) {
				c.Send(d.payload)
			}
		}
	}

	if d.username != "" {
		send(h.byUser[d.username])
		return
	}
	for _, conns := range h.byUser {
		send(conns)
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// UserConnectionCount returns the number of open connections of username.
func (h *Hub) UserConnectionCount(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[username])
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
