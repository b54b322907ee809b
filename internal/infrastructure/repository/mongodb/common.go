package mongodb

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/taskflow/internal/domain/errs"
)

// mongoErr переводит ошибку драйвера в доменную: отсутствие документа в
// errs.ErrNotFound, нарушение уникального индекса в errs.ErrAlreadyExists
func mongoErr(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return errs.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errs.ErrAlreadyExists
	default:
		return fmt.Errorf("failed to operate on %s: %w", resource, err)
	}
}

func upsert() *options.UpdateOneOptionsBuilder {
	return options.UpdateOne().SetUpsert(true)
}

// pageOf ограничивает выборку окном offset/limit в порядке sort
func pageOf(offset, limit int, sort bson.D) *options.FindOptionsBuilder {
	return options.Find().SetSort(sort).SetSkip(int64(offset)).SetLimit(int64(limit))
}

// optional хранит пустую строку как отсутствующее поле
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
