// Package apperr defines the error taxonomy shared by the stores, the
// transaction engine and the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kinds. Match with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error is a classified failure carrying a human-readable reason.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, reason string) error {
	return &Error{Kind: kind, Reason: reason}
}

func Validation(reason string) error      { return newError(ErrValidation, reason) }
func NotFound(reason string) error        { return newError(ErrNotFound, reason) }
func Conflict(reason string) error        { return newError(ErrConflict, reason) }
func Forbidden(reason string) error       { return newError(ErrForbidden, reason) }
func Unauthenticated(reason string) error { return newError(ErrUnauthenticated, reason) }

func Validationf(format string, args ...any) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return newError(ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return newError(ErrConflict, fmt.Sprintf(format, args...))
}

func Forbiddenf(format string, args ...any) error {
	return newError(ErrForbidden, fmt.Sprintf(format, args...))
}

// KindOf returns the taxonomy kind of err, or nil for unclassified errors.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrUnauthenticated} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Reason returns the human-readable reason carried by err.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
