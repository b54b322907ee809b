package appcore

import (
	"errors"
	"fmt"
)

// ErrValidationFailed оборачивается всеми ошибками валидации входных данных
var ErrValidationFailed = errors.New("validation failed")

// ValidationError описывает невалидное поле
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Unwrap позволяет errors.Is(err, ErrValidationFailed)
func (e ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError создает ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
