// Package service holds the business rules of the reservation system:
// the reservation lifecycle engine, the event catalog and ticket
// verification.  Services talk to storage through small interfaces and
// report failures as *Error values whose kind can be matched with
// errors.Is.
package service

import (
	"errors"
	"fmt"
)

// Error kinds.  Handlers map each kind to an HTTP status.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

// Error is a business failure carrying a human readable message.  Kind
// is one of the sentinel errors above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Unwrap exposes the kind so errors.Is(err, ErrConflict) works.
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error     { return newError(ErrNotFound, format, args...) }
func invalidState(format string, args ...any) error { return newError(ErrInvalidState, format, args...) }
func conflict(format string, args ...any) error     { return newError(ErrConflict, format, args...) }
func forbidden(format string, args ...any) error    { return newError(ErrForbidden, format, args...) }
func invalidInput(format string, args ...any) error { return newError(ErrInvalidInput, format, args...) }
