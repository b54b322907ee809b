package eventstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	"github.com/lllypuk/taskflow/internal/domain/event"
)

// stream это события одного агрегата; версия равна длине
type stream struct {
	aggregateType string
	events        []event.DomainEvent
}

// InMemoryEventStore держит события в памяти процесса (mock режим и тесты)
type InMemoryEventStore struct {
	mu      sync.RWMutex
	streams map[string]*stream
}

// NewInMemoryEventStore создает пустой store
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{streams: make(map[string]*stream)}
}

// SaveEvents сверяет версию и дописывает события под одной блокировкой
func (s *InMemoryEventStore) SaveEvents(
	_ context.Context,
	aggregateID string,
	events []event.DomainEvent,
	expectedVersion int,
) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[aggregateID]
	if !ok {
		st = &stream{aggregateType: events[0].AggregateType()}
	}
	if len(st.events) != expectedVersion {
		return appcore.ErrConcurrencyConflict
	}

	st.events = append(st.events, events...)
	s.streams[aggregateID] = st
	return nil
}

// LoadEvents возвращает копию событий агрегата
func (s *InMemoryEventStore) LoadEvents(_ context.Context, aggregateID string) ([]event.DomainEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.streams[aggregateID]
	if !ok {
		return nil, appcore.ErrAggregateNotFound
	}
	return slices.Clone(st.events), nil
}

// GetVersion возвращает число событий агрегата
func (s *InMemoryEventStore) GetVersion(_ context.Context, aggregateID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.streams[aggregateID]; ok {
		return len(st.events), nil
	}
	return 0, nil
}

// ListAggregateIDs возвращает отсортированные ID агрегатов типа aggregateType
func (s *InMemoryEventStore) ListAggregateIDs(_ context.Context, aggregateType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.streams))
	for _, id := range slices.Sorted(maps.Keys(s.streams)) {
		if s.streams[id].aggregateType == aggregateType {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var _ appcore.EventStore = (*InMemoryEventStore)(nil)
