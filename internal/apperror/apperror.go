// Package apperror defines the single error type that crosses the HTTP
// boundary with a status code attached.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// APIError is a domain failure carrying the HTTP status to answer with.
type APIError struct {
	Status  int
	Message string
	stack   error
}

func (e *APIError) Error() string {
	return e.Message
}

// StackTrace renders the call stack captured when the error was created.
func (e *APIError) StackTrace() string {
	if e.stack == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.stack)
}

// New creates an APIError with the given status and message.
func New(status int, message string) *APIError {
	return &APIError{
		Status:  status,
		Message: message,
		stack:   pkgerrors.New(message),
	}
}

func BadRequest(message string) *APIError   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *APIError { return New(http.StatusUnauthorized, message) }
func NotFound(message string) *APIError     { return New(http.StatusNotFound, message) }
func Conflict(message string) *APIError     { return New(http.StatusConflict, message) }

// As reports whether err is, or wraps, an APIError and returns it.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Stack renders the stack recorded where err was created or first wrapped
// through github.com/pkg/errors. It is empty when no stack was recorded.
func Stack(err error) string {
	if apiErr, ok := As(err); ok {
		return apiErr.StackTrace()
	}
	var st stackTracer
	if errors.As(err, &st) {
		return fmt.Sprintf("%+v", st)
	}
	return ""
}
