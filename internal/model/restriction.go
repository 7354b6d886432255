package model

// RestrictionKind enumerates the admin restriction types stored in the
// restrictions table.  Absence of a row means the slot is unrestricted.
type RestrictionKind string

const (
	// RestrictionNone is never stored; passing it to Set deletes the
	// matching rows (both the hour row and the whole-day sentinel).
	RestrictionNone RestrictionKind = "NONE"
	// RestrictionBlock closes a single hour slot for booking.
	RestrictionBlock RestrictionKind = "BLOCK"
	// RestrictionGroup forces fresh bookings at the slot to start as a
	// group instead of solo.
	RestrictionGroup RestrictionKind = "GROUP"
	// RestrictionDayBlock closes a room for a whole day.  It is stored
	// with the DayHour sentinel and supersedes every hour-level row.
	RestrictionDayBlock RestrictionKind = "DAY_BLOCK"
)

// DayHour is the sentinel hour value marking a whole-day restriction row.
const DayHour = -1

// Restriction scopes an admin restriction to a (room, date, hour) slot.
// Hour is DayHour for whole-day rows.
type Restriction struct {
	Room    string          // restrictions.room
	DateStr string          // restrictions.date_str
	Hour    int             // restrictions.hour (-1 = whole day)
	Kind    RestrictionKind // restrictions.kind
}
