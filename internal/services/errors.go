package services

import (
	"errors"
	"fmt"

	"github.com/unibvs/bvs-backend/internal/database"
)

// Error kinds. Every error a service returns on purpose wraps exactly one of
// these, so handlers can pick a status code with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("temporarily unavailable")
)

// Error is a categorized service failure with a caller-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error     { return newError(ErrNotFound, format, args...) }
func invalidState(format string, args ...any) error { return newError(ErrInvalidState, format, args...) }
func conflict(format string, args ...any) error     { return newError(ErrConflict, format, args...) }
func forbidden(format string, args ...any) error    { return newError(ErrForbidden, format, args...) }
func badRequest(format string, args ...any) error   { return newError(ErrBadRequest, format, args...) }
func unauthorized(format string, args ...any) error { return newError(ErrUnauthorized, format, args...) }

// storeError wraps an unexpected database failure. Transient failures are
// tagged ErrUnavailable; the rest stay uncategorized and surface as 500s.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	if database.IsTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
