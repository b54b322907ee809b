package task

import (
	"errors"
	"net/http"

	"github.com/lllypuk/taskflow/internal/domain/errs"
)

// appError is a helper type that implements httpserver.HTTPError interface.
type appError struct {
	msg        string
	httpStatus int
	httpCode   string
	httpMsg    string
}

func (e *appError) Error() string       { return e.msg }
func (e *appError) HTTPStatus() int     { return e.httpStatus }
func (e *appError) HTTPCode() string    { return e.httpCode }
func (e *appError) HTTPMessage() string { return e.httpMsg }

var (
	// Validation errors - ошибки валидации входных данных

	// ErrEmptyName возвращается когда название задачи пустое
	ErrEmptyName = &appError{
		msg:        "task name cannot be empty",
		httpStatus: http.StatusBadRequest,
		httpCode:   "EMPTY_NAME",
		httpMsg:    "task name cannot be empty",
	}

	// ErrNameTooLong возвращается когда название задачи слишком длинное
	ErrNameTooLong = &appError{
		msg:        "task name is too long",
		httpStatus: http.StatusBadRequest,
		httpCode:   "NAME_TOO_LONG",
		httpMsg:    "task name is too long",
	}

	// ErrAssigneeOrGroupRequired возвращается когда не указан ни исполнитель, ни группа
	ErrAssigneeOrGroupRequired = &appError{
		msg:        "either assignee or group is required",
		httpStatus: http.StatusBadRequest,
		httpCode:   "ASSIGNEE_OR_GROUP_REQUIRED",
		httpMsg:    "either assignee or group is required",
	}

	// ErrAssigneeAndGroup возвращается когда указаны и исполнитель, и группа
	ErrAssigneeAndGroup = &appError{
		msg:        "assignee and group are mutually exclusive",
		httpStatus: http.StatusBadRequest,
		httpCode:   "ASSIGNEE_AND_GROUP",
		httpMsg:    "assignee and group are mutually exclusive",
	}

	// ErrEmptyAssignee возвращается когда при назначении не указан исполнитель
	ErrEmptyAssignee = &appError{
		msg:        "assignee cannot be empty",
		httpStatus: http.StatusBadRequest,
		httpCode:   "EMPTY_ASSIGNEE",
		httpMsg:    "assignee cannot be empty",
	}

	// ErrInvalidTaskID возвращается когда ID задачи невалиден
	ErrInvalidTaskID = &appError{
		msg:        "invalid task ID",
		httpStatus: http.StatusBadRequest,
		httpCode:   "INVALID_TASK_ID",
		httpMsg:    "invalid task ID",
	}

	// ErrInvalidInput возвращается при прочих ошибках входных данных
	ErrInvalidInput = &appError{
		msg:        "invalid input",
		httpStatus: http.StatusBadRequest,
		httpCode:   "VALIDATION_ERROR",
		httpMsg:    "invalid input",
	}

	// Authentication and authorization errors

	// ErrUnauthenticated возвращается когда операция вызвана без принципала
	ErrUnauthenticated = &appError{
		msg:        "no authenticated principal",
		httpStatus: http.StatusUnauthorized,
		httpCode:   "UNAUTHENTICATED",
		httpMsg:    "authentication required",
	}

	// ErrAdminRequired возвращается когда административную операцию вызывает не администратор
	ErrAdminRequired = &appError{
		msg:        "administrative capability required",
		httpStatus: http.StatusForbidden,
		httpCode:   "ADMIN_REQUIRED",
		httpMsg:    "administrative capability required",
	}

	// Business logic errors - ошибки бизнес-логики

	// ErrTaskNotFound возвращается когда задача не существует или не видна вызывающему.
	// Эти случаи намеренно неразличимы.
	ErrTaskNotFound = &appError{
		msg:        "task not found",
		httpStatus: http.StatusNotFound,
		httpCode:   "TASK_NOT_FOUND",
		httpMsg:    "task not found",
	}

	// ErrIllegalState возвращается когда операция недопустима для текущего статуса задачи
	ErrIllegalState = &appError{
		msg:        "operation not allowed in current task state",
		httpStatus: http.StatusConflict,
		httpCode:   "ILLEGAL_STATE",
		httpMsg:    "operation not allowed in current task state",
	}

	// ErrConcurrentUpdate возвращается при исчерпании повторов после конфликта версий
	ErrConcurrentUpdate = &appError{
		msg:        "concurrent update detected",
		httpStatus: http.StatusConflict,
		httpCode:   "CONCURRENT_UPDATE",
		httpMsg:    "task was modified by another request",
	}
)

// mapDomainError переводит доменные ошибки в ошибки приложения
func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrNotFound):
		return ErrTaskNotFound
	case errors.Is(err, errs.ErrInvalidState), errors.Is(err, errs.ErrInvalidTransition):
		return ErrIllegalState
	case errors.Is(err, errs.ErrUnauthenticated):
		return ErrUnauthenticated
	case errors.Is(err, errs.ErrInvalidInput):
		return ErrInvalidInput
	case errors.Is(err, errs.ErrConcurrentModification):
		return ErrConcurrentUpdate
	default:
		return err
	}
}
