// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation service and handlers to distinguish between different
// failure scenarios without inspecting driver specific errors. For
// example, ErrEventFull signals that a conditional capacity update did
// not apply, while ErrStaleReservation indicates that a compare-and-swap
// status update lost a race with a concurrent request.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as shrinking an event's capacity below the
// number of tickets already registered. Handlers should translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

var (
	// ErrEventNotFound indicates that an event was not located in the DB.
	ErrEventNotFound = errors.New("event not found")
	// ErrEventNotPublished is returned by TryIncrement when the event
	// exists but does not accept reservations.
	ErrEventNotPublished = errors.New("event not published")
	// ErrEventFull is returned by TryIncrement when the requested number
	// of tickets does not fit into the remaining capacity.
	ErrEventFull = errors.New("event full")
	// ErrEventClosed is returned when editing an event that has
	// already been canceled.
	ErrEventClosed = errors.New("event is canceled")

	// ErrReservationNotFound indicates that no reservation matched.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrStaleReservation is returned when a status update found the
	// reservation in a different status than expected.
	ErrStaleReservation = errors.New("reservation status changed concurrently")
	// ErrDuplicateActive is returned when inserting a second pending or
	// confirmed reservation for the same user and event.
	ErrDuplicateActive = errors.New("active reservation already exists")
)

// isDuplicate reports whether err is a unique key violation.  MySQL
// reports error 1062; SQLite (used in tests) reports a UNIQUE
// constraint failure.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint failed")
}
