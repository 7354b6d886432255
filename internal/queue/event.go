// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types published to the reservation.events queue.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationEvicted   = "reservation.evicted"
	EventAdminDayBlock        = "admin.day_block"
)

// ReservationEvent is published on every reservation state change.  It
// carries enough for downstream consumers to log, notify or feed
// analytics without querying the primary database.  StartTime is empty
// for day-wide admin events.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id,omitempty"`
	UserID        uint64 `json:"user_id,omitempty"`
	Room          string `json:"room"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	GroupSize     int    `json:"group_size,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
