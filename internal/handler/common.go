package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-room-booking/internal/booking"
)

// floors are the room-name prefixes the campus groups rooms under.
var floors = []string{"P1", "P2", "P3", "P4"}

// getUserID extracts the authenticated user ID from context.  The JWT
// claim arrives as whatever type the decoder produced, so every
// plausible representation is accepted.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parseDate reads a "YYYY-MM-DD" value, defaulting to today (UTC) when
// empty.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(booking.DateLayout, raw)
}

// validHour reports whether hour is a bookable start hour.
func validHour(hour int) bool {
	return hour >= booking.DayStartHour && hour < booking.DayEndHour
}

// isToday reports whether day is the current UTC date.
func isToday(day time.Time) bool {
	return day.Format(booking.DateLayout) == time.Now().UTC().Format(booking.DateLayout)
}
