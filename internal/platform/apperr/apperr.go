// Package apperr defines the error taxonomy shared by services and handlers.
// Every outcome a caller can observe maps to exactly one Kind, and every Kind
// maps to exactly one HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Violation describes one failed field constraint.
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// Error is a classified application error.
type Error struct {
	Kind       Kind
	Message    string
	Violations []Violation
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HasField reports whether the error carries a violation for field.
func (e *Error) HasField(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "forbidden"}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Internal wraps a persistence or infrastructure failure. The message is safe
// to show to clients; err is kept for logs.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// Invalid builds a validation error from one or more violations.
func Invalid(violations ...Violation) *Error {
	fields := make([]string, 0, len(violations))
	for _, v := range violations {
		fields = append(fields, v.Field)
	}
	return &Error{
		Kind:       KindValidation,
		Message:    "invalid fields: " + strings.Join(fields, ", "),
		Violations: violations,
	}
}

// Malformed reports a request body that could not be decoded at all.
func Malformed(err error) *Error {
	return &Error{Kind: KindValidation, Message: "malformed request body", Err: err}
}

// InvalidField is shorthand for a single-field validation error.
func InvalidField(field, constraint, message string) *Error {
	return Invalid(Violation{Field: field, Constraint: constraint, Message: message})
}

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool { return err != nil && KindOf(err) == KindNotFound }
func IsConflict(err error) bool { return err != nil && KindOf(err) == KindConflict }
