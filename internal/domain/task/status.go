package task

import (
	"slices"
)

// Status представляет статус задачи в жизненном цикле
type Status string

const (
	// StatusCreated задача создана для группы и ожидает claim
	StatusCreated Status = "CREATED"
	// StatusAssigned задача назначена конкретному пользователю
	StatusAssigned Status = "ASSIGNED"
	// StatusCompleted задача завершена (терминальный статус)
	StatusCompleted Status = "COMPLETED"
	// StatusDeleted задача удалена (терминальный статус, запись сохраняется)
	StatusDeleted Status = "DELETED"
)

// transitions допустимые переходы между статусами
var transitions = map[Status][]Status{ //nolint:exhaustive // терминальные статусы не имеют переходов
	StatusCreated:  {StatusAssigned, StatusDeleted},
	StatusAssigned: {StatusCompleted, StatusDeleted, StatusCreated},
}

// IsValid проверяет, что статус известен
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusAssigned, StatusCompleted, StatusDeleted:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true для COMPLETED и DELETED
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusDeleted
}

// CanTransitionTo проверяет допустимость перехода
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// String возвращает строковое представление статуса
func (s Status) String() string {
	return string(s)
}
