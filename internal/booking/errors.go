// Package booking implements the room availability and group
// reservation engine: slot resolution, booking creation, group
// membership lifecycle, weekly quotas and the no-show eviction sweep.
// All mutations run as single database transactions; capacity and
// quota gates are re-checked under row locks so concurrent actors can
// never oversubscribe a group or double-book a slot.
package booking

import "errors"

// Sentinel errors returned by the engine.  All are recoverable at the
// call site: state is left unchanged and each maps to a human-readable
// message in the handlers.
var (
	// ErrNotFound means no reservation covers the requested slot (or
	// the reservation ID does not exist).
	ErrNotFound = errors.New("reservation not found")

	// ErrQuotaExceeded means a join was blocked by the weekly cap.
	ErrQuotaExceeded = errors.New("weekly quota exceeded")

	// ErrSlotLocked means a booking was attempted against an
	// admin-locked slot.
	ErrSlotLocked = errors.New("slot locked by admin")

	// ErrSlotTaken means a concurrent transaction booked the slot
	// first; by definition the other booking already committed.
	ErrSlotTaken = errors.New("slot already taken")

	// ErrCheckinClosed means a check-in was attempted outside the
	// confirmation window around the slot start.
	ErrCheckinClosed = errors.New("check-in window closed")
)
