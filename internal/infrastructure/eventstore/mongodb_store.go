package eventstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	"github.com/lllypuk/taskflow/internal/domain/event"
)

// EventsCollection хранит по одному документу на событие
const EventsCollection = "events"

// MongoEventStore хранит события в MongoDB.
//
// Гонку двух писателей решает уникальный индекс (aggregate_id, version):
// вставка проигравшего падает с duplicate key и превращается в
// ErrConcurrencyConflict. Транзакции не нужны, standalone MongoDB подходит.
type MongoEventStore struct {
	events     *mongo.Collection
	serializer *EventSerializer
	logger     *slog.Logger
}

// Option настраивает MongoEventStore
type Option func(*MongoEventStore)

// WithLogger задает логгер
func WithLogger(logger *slog.Logger) Option {
	return func(s *MongoEventStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewMongoEventStore создает store поверх коллекции events базы db
func NewMongoEventStore(db *mongo.Database, opts ...Option) *MongoEventStore {
	s := &MongoEventStore{
		events:     db.Collection(EventsCollection),
		serializer: NewEventSerializer(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func byAggregate(aggregateID string) bson.D {
	return bson.D{{Key: "aggregate_id", Value: aggregateID}}
}

// SaveEvents дописывает события, если последняя сохраненная версия равна expectedVersion
func (s *MongoEventStore) SaveEvents(
	ctx context.Context,
	aggregateID string,
	events []event.DomainEvent,
	expectedVersion int,
) error {
	if len(events) == 0 {
		return nil
	}

	log := s.logger.With(slog.String("aggregate_id", aggregateID), slog.Int("expected_version", expectedVersion))

	// ранний отказ без сериализации; окончательно решает индекс
	current, err := s.GetVersion(ctx, aggregateID)
	if err != nil {
		return err
	}
	if current != expectedVersion {
		log.WarnContext(ctx, "stale aggregate version", slog.Int("current_version", current))
		return appcore.ErrConcurrencyConflict
	}

	documents, err := s.serializer.SerializeMany(events)
	if err != nil {
		log.ErrorContext(ctx, "failed to serialize events", slog.String("error", err.Error()))
		return err
	}

	batch := make([]any, 0, len(documents))
	for _, doc := range documents {
		batch = append(batch, doc)
	}

	_, err = s.events.InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		log.WarnContext(ctx, "lost append race on aggregate version")
		return appcore.ErrConcurrencyConflict
	default:
		log.ErrorContext(ctx, "failed to append events",
			slog.Int("events_count", len(events)), slog.String("error", err.Error()))
		return fmt.Errorf("failed to insert events: %w", err)
	}
}

// LoadEvents возвращает события агрегата по возрастанию версии
func (s *MongoEventStore) LoadEvents(ctx context.Context, aggregateID string) ([]event.DomainEvent, error) {
	cursor, err := s.events.Find(ctx, byAggregate(aggregateID),
		options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*EventDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	if len(docs) == 0 {
		return nil, appcore.ErrAggregateNotFound
	}

	events, err := s.serializer.DeserializeMany(docs)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored events cannot be decoded",
			slog.String("aggregate_id", aggregateID), slog.String("error", err.Error()))
		return nil, err
	}
	return events, nil
}

// GetVersion возвращает версию последнего события, 0 если событий нет
func (s *MongoEventStore) GetVersion(ctx context.Context, aggregateID string) (int, error) {
	var last struct {
		Version int `bson:"version"`
	}
	err := s.events.FindOne(ctx, byAggregate(aggregateID), options.FindOne().
		SetSort(bson.D{{Key: "version", Value: -1}}).
		SetProjection(bson.D{{Key: "version", Value: 1}}),
	).Decode(&last)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return last.Version, nil
}

// ListAggregateIDs возвращает различные aggregate_id событий типа aggregateType
func (s *MongoEventStore) ListAggregateIDs(ctx context.Context, aggregateType string) ([]string, error) {
	var ids []string
	filter := bson.D{{Key: "aggregate_type", Value: aggregateType}}
	if err := s.events.Distinct(ctx, "aggregate_id", filter).Decode(&ids); err != nil {
		return nil, fmt.Errorf("failed to list aggregate ids: %w", err)
	}
	return ids, nil
}

var _ appcore.EventStore = (*MongoEventStore)(nil)
