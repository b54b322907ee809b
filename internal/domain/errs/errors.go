// Package errs содержит доменные ошибки, общие для всех слоев.
package errs

import "errors"

var (
	// ErrNotFound задачи нет или принципал ее не видит; случаи не различаются
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists нарушена уникальность
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput некорректные входные данные команды
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated операция вызвана без принципала
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrConcurrentModification версия агрегата изменилась между загрузкой и сохранением
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidState операция недопустима в текущем состоянии задачи
	ErrInvalidState = errors.New("invalid aggregate state")

	// ErrInvalidTransition недопустимый переход между статусами
	ErrInvalidTransition = errors.New("invalid state transition")
)
