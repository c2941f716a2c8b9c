// Package queue defines message payloads exchanged over the message broker
// together with the RabbitMQ publisher and the audit log consumer.
package queue

// LifecycleQueue is the durable queue carrying reservation lifecycle events.
const LifecycleQueue = "reservation.lifecycle"

// ReservationEvent is published after every successful reservation status
// change.  It contains enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary database.
// FromStatus is empty for the initial pending record.
type ReservationEvent struct {
	ReservationID     uint64 `json:"reservation_id"`
	ReservationNumber string `json:"reservation_number"`
	EventID           uint64 `json:"event_id"`
	UserID            uint64 `json:"user_id"`
	ActorID           uint64 `json:"actor_id"`
	Tickets           int    `json:"tickets"`
	TotalPriceCents   int64  `json:"total_price_cents"`
	FromStatus        string `json:"from_status,omitempty"`
	ToStatus          string `json:"to_status"`
	Reason            string `json:"reason,omitempty"`
	OccurredAt        string `json:"occurred_at"`
}
