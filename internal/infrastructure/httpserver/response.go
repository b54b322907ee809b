package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	"github.com/lllypuk/taskflow/internal/domain/errs"
)

// Response is the envelope every API endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is the machine readable part of a failed Response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPError is implemented by application errors that choose their own status and code.
type HTTPError interface {
	error
	HTTPStatus() int
	HTTPCode() string
	HTTPMessage() string
}

type errorMapping struct {
	target error
	status int
	body   Error
}

// domainErrors is consulted in order after HTTPError and ValidationError.
var domainErrors = []errorMapping{
	{errs.ErrNotFound, http.StatusNotFound, Error{"NOT_FOUND", "The requested resource was not found"}},
	{errs.ErrAlreadyExists, http.StatusConflict, Error{"ALREADY_EXISTS", "The resource already exists"}},
	{appcore.ErrValidationFailed, http.StatusBadRequest, Error{"INVALID_INPUT", "Invalid input data"}},
	{errs.ErrInvalidInput, http.StatusBadRequest, Error{"INVALID_INPUT", "Invalid input data"}},
	{errs.ErrUnauthenticated, http.StatusUnauthorized, Error{"UNAUTHORIZED", "Authentication required"}},
	{errs.ErrConcurrentModification, http.StatusConflict, Error{"CONCURRENT_MODIFICATION", "Task was modified by another request"}},
	{errs.ErrInvalidState, http.StatusConflict, Error{"ILLEGAL_STATE", "Operation not allowed in the task's current state"}},
	{errs.ErrInvalidTransition, http.StatusConflict, Error{"INVALID_TRANSITION", "State transition not allowed"}},
}

var internalError = Error{"INTERNAL_ERROR", "An internal error occurred"}

// RespondJSON writes data in a successful envelope.
func RespondJSON(c echo.Context, code int, data any) error {
	return c.JSON(code, Response{Success: true, Data: data})
}

// RespondOK writes data with 200.
func RespondOK(c echo.Context, data any) error {
	return RespondJSON(c, http.StatusOK, data)
}

// RespondCreated writes data with 201.
func RespondCreated(c echo.Context, data any) error {
	return RespondJSON(c, http.StatusCreated, data)
}

// RespondNoContent writes an empty 204.
func RespondNoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// RespondError translates err into a failed envelope. Unknown errors become a
// 500 that does not leak err's text.
func RespondError(c echo.Context, err error) error {
	status, body := classify(err)
	return c.JSON(status, Response{Error: &body})
}

// RespondErrorWithCode writes a failed envelope with an explicit status and code.
func RespondErrorWithCode(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Response{Error: &Error{Code: code, Message: message}})
}

func classify(err error) (int, Error) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.HTTPStatus(), Error{httpErr.HTTPCode(), httpErr.HTTPMessage()}
	}

	var validationErr *appcore.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, Error{"VALIDATION_ERROR", validationErr.Error()}
	}

	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			return m.status, m.body
		}
	}
	return http.StatusInternalServerError, internalError
}
