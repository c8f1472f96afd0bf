package exceptions

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Use errors.Is against these.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// ServiceError is a precondition failure raised before any write.
type ServiceError struct {
	Kind     error
	Resource string
	Id       string
	Message  string
}

func (se *ServiceError) Error() string {
	if se.Message != "" {
		return se.Message
	}
	if se.Id != "" {
		return fmt.Sprintf("%s %s: %s", se.Resource, se.Id, se.Kind)
	}
	return se.Kind.Error()
}

func (se *ServiceError) Unwrap() error {
	return se.Kind
}

// StatusCode maps the error kind to an HTTP status.
func (se *ServiceError) StatusCode() int {
	return StatusCode(se)
}

func NotFound(resource string, id string) *ServiceError {
	return &ServiceError{
		Kind:     ErrNotFound,
		Resource: resource,
		Id:       id,
		Message:  fmt.Sprintf("Could not find %s with id: %s", resource, id),
	}
}

func Forbidden(message string) *ServiceError {
	return &ServiceError{
		Kind:    ErrForbidden,
		Message: message,
	}
}

func Conflict(resource string, id string, message string) *ServiceError {
	return &ServiceError{
		Kind:     ErrConflict,
		Resource: resource,
		Id:       id,
		Message:  message,
	}
}

func InvalidInput(message string) *ServiceError {
	return &ServiceError{
		Kind:    ErrInvalidInput,
		Message: message,
	}
}

// KindOf returns the sentinel kind of err, or nil when err is not a
// ServiceError.
func KindOf(err error) error {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return nil
}

// KindName is a short label for metrics.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	}
	return "internal"
}

func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
