package appcore

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateRequired проверяет, что строка не пустая
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, "is required")
	}
	return nil
}

// ValidateMaxLength проверяет длину строки в символах, а не в байтах
func ValidateMaxLength(field, value string, maxLength int) error {
	if utf8.RuneCountInString(value) > maxLength {
		return NewValidationError(field, fmt.Sprintf("must be at most %d characters", maxLength))
	}
	return nil
}
