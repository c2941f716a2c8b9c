package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
    ReservationPending   ReservationStatus = "pending"
    ReservationConfirmed ReservationStatus = "confirmed"
    ReservationCanceled  ReservationStatus = "canceled"
    ReservationCheckedIn ReservationStatus = "checked_in"
    ReservationNoShow    ReservationStatus = "no_show"
    ReservationRefunded  ReservationStatus = "refunded"
)

// reservationTransitions is the complete table of allowed (from, to)
// pairs.  Anything not listed here is rejected by the lifecycle engine.
// Only canceled and no-show reservations can be refunded; checked-in and
// refunded reservations are terminal.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
    ReservationPending:   {ReservationConfirmed, ReservationCanceled},
    ReservationConfirmed: {ReservationCanceled, ReservationCheckedIn, ReservationNoShow},
    ReservationCanceled:  {ReservationRefunded},
    ReservationNoShow:    {ReservationRefunded},
}

// ParseReservationStatus converts a raw string (e.g. a query parameter)
// into a ReservationStatus.  The boolean is false for unknown values.
func ParseReservationStatus(raw string) (ReservationStatus, bool) {
    s := ReservationStatus(raw)
    return s, s.Valid()
}

// Valid reports whether s is one of the six known statuses.
func (s ReservationStatus) Valid() bool {
    switch s {
    case ReservationPending, ReservationConfirmed, ReservationCanceled,
        ReservationCheckedIn, ReservationNoShow, ReservationRefunded:
        return true
    }
    return false
}

// CanTransitionTo reports whether a reservation in status s may move to next.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
    for _, to := range reservationTransitions[s] {
        if to == next {
            return true
        }
    }
    return false
}

// IsActive reports whether the status still claims a seat for the user,
// i.e. pending or confirmed.  A user holds at most one active
// reservation per event.
func (s ReservationStatus) IsActive() bool {
    return s == ReservationPending || s == ReservationConfirmed
}

// Reservation is one user's claim on one or more tickets for one event.
// The event title, date and location are snapshots taken at creation
// time and intentionally do not follow later edits of the event.
//
// Fields:
//  ID                – primary key identifier.
//  ReservationNumber – unique human-readable number used for support lookups.
//  EventID           – event being reserved (immutable).
//  EventTitle        – snapshot of the event title.
//  EventDate         – snapshot of the event start date.
//  EventLocation     – snapshot of the event location.
//  UserID            – user who made the reservation.
//  UserEmail         – email of the user at booking time.
//  UserName          – display name of the user at booking time.
//  NumberOfTickets   – tickets covered by this reservation (1–10).
//  TotalPriceCents   – event price × tickets, fixed at creation.
//  Status            – lifecycle state.
//  CancelReason      – reason recorded on cancellation (nullable).
//  QRCode            – opaque lookup token scanned at the door.
//  ConfirmedAt       – when capacity was claimed (nullable).
//  CanceledAt        – when the reservation was canceled (nullable).
//  CheckedInAt       – when the holder entered the event (nullable).
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Reservation struct {
    ID                uint64            `json:"id"`
    ReservationNumber string            `json:"reservation_number"`
    EventID           uint64            `json:"event_id"`
    EventTitle        string            `json:"event_title"`
    EventDate         time.Time         `json:"event_date"`
    EventLocation     string            `json:"event_location"`
    UserID            uint64            `json:"user_id"`
    UserEmail         string            `json:"user_email"`
    UserName          string            `json:"user_name"`
    NumberOfTickets   int               `json:"number_of_tickets"`
    TotalPriceCents   int64             `json:"total_price_cents"`
    Status            ReservationStatus `json:"status"`
    CancelReason      *string           `json:"cancel_reason,omitempty"`
    QRCode            string            `json:"qr_code"`
    ConfirmedAt       *time.Time        `json:"confirmed_at,omitempty"`
    CanceledAt        *time.Time        `json:"canceled_at,omitempty"`
    CheckedInAt       *time.Time        `json:"checked_in_at,omitempty"`
    CreatedAt         time.Time         `json:"created_at"`
    UpdatedAt         time.Time         `json:"updated_at"`
}
