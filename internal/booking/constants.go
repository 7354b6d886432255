package booking

import "time"

// Engine constants.  These are product rules, not deployment knobs,
// so they are compiled in rather than configured.
const (
	// MaxWeeklyQuota caps a user's reservation involvement (owner or
	// participant) per Monday-Sunday week.
	MaxWeeklyQuota = 3

	// MaxBookingHours is the longest a single booking may run.
	MaxBookingHours = 2

	// MinGroupSize is the member count (owner included) at which a
	// group is full and stops accepting joins.
	MinGroupSize = 5

	// MinConfirmRequired is how many members of a group must check in
	// for the reservation to survive the no-show sweep.
	MinConfirmRequired = 4

	// CheckinGrace is how long after the slot start members may still
	// check in before the sweep may evict the reservation.
	CheckinGrace = 15 * time.Minute

	// DayStartHour and DayEndHour bound the bookable day.
	DayStartHour = 8
	DayEndHour   = 20
)

// DateLayout is the wire format for slot dates; ClockLayout for slot
// times.  Both are zero-padded so string comparison is chronological.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Clock formats an hour as "HH:00".
func Clock(hour int) string {
	return time.Date(0, 1, 1, hour, 0, 0, 0, time.UTC).Format(ClockLayout)
}
