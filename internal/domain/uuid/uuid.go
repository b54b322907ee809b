package uuid

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNilUUID возвращается при разборе нулевого UUID
var ErrNilUUID = errors.New("nil uuid is not a valid identifier")

// UUID строковый идентификатор агрегата
type UUID string

// NewUUID создает новый случайный UUID (v4)
func NewUUID() UUID {
	return UUID(uuid.New().String())
}

// ParseUUID парсит строку в UUID, приводя ее к канонической форме.
// Нулевой UUID агрегатом не бывает и отклоняется.
func ParseUUID(s string) (UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	if id == uuid.Nil {
		return "", ErrNilUUID
	}
	return UUID(id.String()), nil
}

// MustParseUUID парсит строку в UUID или паникует
func MustParseUUID(s string) UUID {
	id, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String возвращает строковое представление
func (u UUID) String() string {
	return string(u)
}

// IsZero проверяет, является ли UUID пустым
func (u UUID) IsZero() bool {
	return u == ""
}
