package model

import "time"

// Reservation records a booking of a single room slot by one owner,
// possibly shared with a group of participants.  The owner is always
// implicitly part of the group even though no reservation_members row
// exists for them.  Dates are stored as "YYYY-MM-DD" strings and times
// as zero-padded "HH:MM" strings so that lexicographic comparison
// matches chronological order.
//
// Fields:
//  ID        – primary key identifier.
//  OwnerID   – user who created (or inherited) the reservation.
//  Room      – room identifier, e.g. "CC P2 105".
//  DateStr   – slot date as "YYYY-MM-DD".
//  StartTime – slot start as "HH:MM".
//  EndTime   – slot end as "HH:MM"; always later than StartTime and on
//              the same day.
//  CreatedAt – creation timestamp.
type Reservation struct {
	ID        uint64    // reservations.id
	OwnerID   uint64    // reservations.owner_id
	Room      string    // reservations.room
	DateStr   string    // reservations.date_str
	StartTime string    // reservations.start_time
	EndTime   string    // reservations.end_time
	CreatedAt time.Time // reservations.created_at
}

// ReservationMember links a participant to a reservation.  The owner
// never appears here.  Rows are ordered by ID, which is the join order
// used for owner succession when the owner leaves.
//
// Fields:
//  ID            – primary key identifier; ascending join order.
//  ReservationID – reference to the reservation.
//  UserID        – participant user.
type ReservationMember struct {
	ID            uint64 // reservation_members.id
	ReservationID uint64 // reservation_members.reservation_id
	UserID        uint64 // reservation_members.user_id
}

// ReservationCheckin marks that a member (owner or participant) has
// confirmed their presence for the reservation.
type ReservationCheckin struct {
	ReservationID uint64 // reservation_checkins.reservation_id
	UserID        uint64 // reservation_checkins.user_id
}
