package model

import "time"

// EventStatus is the publication state of an event.  Events start as
// drafts, become bookable once published and may later be canceled.
type EventStatus string

const (
    EventDraft     EventStatus = "draft"
    EventPublished EventStatus = "published"
    EventCanceled  EventStatus = "canceled"
)

// eventTransitions lists every allowed (from, to) pair.  There are no
// reverse transitions and a draft can never be canceled directly.
var eventTransitions = map[EventStatus][]EventStatus{
    EventDraft:     {EventPublished},
    EventPublished: {EventCanceled},
}

// Valid reports whether s is one of the known event statuses.
func (s EventStatus) Valid() bool {
    switch s {
    case EventDraft, EventPublished, EventCanceled:
        return true
    }
    return false
}

// CanTransitionTo reports whether an event in status s may move to next.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
    for _, to := range eventTransitions[s] {
        if to == next {
            return true
        }
    }
    return false
}

// Event is a publishable, time-bounded activity with a ticket capacity.
// It corresponds to a row in the `events` table.
//
// Fields:
//  ID              – primary key identifier.
//  OrganizerID     – user ID of the admin who organizes the event.
//  Title           – display title, copied into reservations at booking time.
//  Description     – optional free text.
//  Location        – venue or address, copied into reservations.
//  Capacity        – maximum number of tickets (positive).
//  RegisteredCount – tickets currently held by non-released reservations.
//  Status          – draft, published or canceled.
//  StartDate       – when the event begins (UTC).
//  EndDate         – when the event ends (UTC).
//  PriceCents      – price of one ticket in cents (never negative).
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Event struct {
    ID              uint64      `json:"id"`
    OrganizerID     uint64      `json:"organizer_id"`
    Title           string      `json:"title"`
    Description     string      `json:"description,omitempty"`
    Location        string      `json:"location"`
    Capacity        int         `json:"capacity"`
    RegisteredCount int         `json:"registered_count"`
    Status          EventStatus `json:"status"`
    StartDate       time.Time   `json:"start_date"`
    EndDate         time.Time   `json:"end_date"`
    PriceCents      int64       `json:"price_cents"`
    CreatedAt       time.Time   `json:"created_at"`
    UpdatedAt       time.Time   `json:"updated_at"`
}

// AvailableSpots returns the number of tickets that can still be sold.
func (e *Event) AvailableSpots() int {
    if n := e.Capacity - e.RegisteredCount; n > 0 {
        return n
    }
    return 0
}

// HasStarted reports whether the event start lies at or before now.
func (e *Event) HasStarted(now time.Time) bool {
    return !e.StartDate.After(now)
}
