package eventbus

import (
	"errors"
	"slices"
	"sync"

	"github.com/lllypuk/taskflow/internal/domain/event"
)

var (
	errNilEvent       = errors.New("event cannot be nil")
	errEmptyEventType = errors.New("event type cannot be empty")
	errNilHandler     = errors.New("handler cannot be nil")
)

// registry holds the handlers of a bus by event type.
type registry struct {
	mu       sync.RWMutex
	handlers map[string][]event.Handler
}

// Subscribe registers handler for eventType.
func (r *registry) Subscribe(eventType string, handler event.Handler) error {
	switch {
	case eventType == "":
		return errEmptyEventType
	case handler == nil:
		return errNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[string][]event.Handler)
	}
	r.handlers[eventType] = append(r.handlers[eventType], handler)
	return nil
}

// HandlerCount returns the number of handlers registered for eventType.
func (r *registry) HandlerCount(eventType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[eventType])
}

// lookup returns a snapshot safe to iterate without the lock.
func (r *registry) lookup(eventType string) []event.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.handlers[eventType])
}
