package appcore

import (
	"context"
)

type contextKey string

const correlationIDKey contextKey = "correlationID"

// GetCorrelationID возвращает correlation ID запроса ("" если не задан)
func GetCorrelationID(ctx context.Context) string {
	correlationID, _ := ctx.Value(correlationIDKey).(string)
	return correlationID
}

// WithCorrelationID добавляет correlation ID в контекст
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}
