// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services and repositories return *AppError values that wrap one of the
// sentinels below. The HTTP layer maps each sentinel to a status code, so
// nothing beneath the handlers knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// FieldErrors maps a request field name to the messages raised against it.
// Example: {"price": ["Ensure that there are no more than 2 decimal places."]}
type FieldErrors map[string][]string

// Add appends a message for field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// Empty reports whether no field has an error.
func (f FieldErrors) Empty() bool {
	return len(f) == 0
}

type AppError struct {
	Err     error       // actual error
	Message string      // Human-readable error message
	Field   string      // Optional: field causing the error
	Fields  FieldErrors // Optional: every field error, keyed by field name
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound is used for missing rows AND for rows owned by someone else.
// Callers never learn which of the two it was.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  FieldErrors{field: {message}},
	}
}

// Validation bundles several field errors into one AppError.
// The message lists the offending fields in sorted order so it is stable.
func Validation(fields FieldErrors) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	e := &AppError{
		Err:     ErrValidation,
		Message: "invalid fields: " + strings.Join(names, ", "),
		Fields:  fields,
	}
	if len(names) == 1 && len(fields[names[0]]) > 0 {
		e.Field = names[0]
		e.Message = fields[names[0]][0]
	}
	return e
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for a missing or rejected credential.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
