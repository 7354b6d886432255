package booking

import (
	"fmt"

	"github.com/iliyamo/campus-room-booking/internal/model"
	"github.com/iliyamo/campus-room-booking/internal/repository"
)

// Status is the single authoritative state of a room at a slot.
type Status string

const (
	StatusAdminLock Status = "admin_lock" // restriction BLOCK or DAY_BLOCK
	StatusClass     Status = "class"      // a timetable event covers the hour
	StatusMine      Status = "mine"       // viewer owns or participates in the covering reservation
	StatusJoinable  Status = "joinable"   // covering reservation below MinGroupSize, viewer not in it
	StatusFull      Status = "full"       // covering reservation at or above MinGroupSize
	StatusFree      Status = "free"       // nothing covers the hour
)

// SlotInput is the snapshot a resolution runs over.  Events and
// Reservations must already be filtered to the slot's room and date;
// the resolver itself reads nothing, making it a pure function of its
// inputs.
type SlotInput struct {
	Restriction  model.RestrictionKind
	ForceGroup   bool // global group policy flag
	Events       []model.ScheduleEvent
	Reservations []repository.SlotReservation
	Viewer       uint64
	Hour         int
}

// SlotView is the resolved state of one room/hour for one viewer.
// Until carries the "HH:MM" instant the current state runs to: the
// class end, the reservation end, or for a free slot the next class
// start (capped at the end of the bookable day) - which is also the
// ceiling for effective booking end times.
type SlotView struct {
	Status        Status `json:"status"`
	Label         string `json:"label"`
	Until         string `json:"until"`
	Joinable      bool   `json:"joinable"`
	GroupForced   bool   `json:"group_forced"`
	ReservationID uint64 `json:"reservation_id,omitempty"`
	GroupSize     int    `json:"group_size,omitempty"`
}

// Resolve combines the three sources of truth into one status.  First
// match wins: admin restriction, then class timetable, then live
// reservations, else free.  A day lock or hour block beats everything,
// even when a class and a reservation also cover the hour.
func Resolve(in SlotInput) SlotView {
	clock := Clock(in.Hour)
	dayEnd := Clock(DayEndHour)

	switch in.Restriction {
	case model.RestrictionDayBlock:
		return SlotView{Status: StatusAdminLock, Label: "Closed (day)", Until: dayEnd}
	case model.RestrictionBlock:
		return SlotView{Status: StatusAdminLock, Label: "Closed (slot)", Until: dayEnd}
	}

	for _, ev := range in.Events {
		if ev.StartsAt.Format(ClockLayout) <= clock && clock < ev.EndsAt.Format(ClockLayout) {
			return SlotView{Status: StatusClass, Label: "Class", Until: ev.EndsAt.Format(ClockLayout)}
		}
	}

	for i := range in.Reservations {
		res := &in.Reservations[i]
		if res.StartTime > clock || res.EndTime <= clock {
			continue
		}
		size := res.Size()
		switch {
		case res.OwnerID == in.Viewer:
			return SlotView{Status: StatusMine, Label: "Cancel", Until: res.EndTime,
				ReservationID: res.ID, GroupSize: size}
		case res.IsMember(in.Viewer):
			return SlotView{Status: StatusMine, Label: fmt.Sprintf("Leave (%d/%d)", size, MinGroupSize),
				Until: res.EndTime, ReservationID: res.ID, GroupSize: size}
		case size < MinGroupSize:
			return SlotView{Status: StatusJoinable, Label: fmt.Sprintf("Join (%d/%d)", size, MinGroupSize),
				Until: res.EndTime, Joinable: true, ReservationID: res.ID, GroupSize: size}
		default:
			return SlotView{Status: StatusFull, Label: "Full", Until: res.EndTime,
				ReservationID: res.ID, GroupSize: size}
		}
	}

	// Free: bookable until the next class in this room, or day end.
	until := dayEnd
	for _, ev := range in.Events {
		if start := ev.StartsAt.Format(ClockLayout); start > clock && start < until {
			until = start
		}
	}
	return SlotView{
		Status:      StatusFree,
		Label:       "Free",
		Until:       until,
		Joinable:    true,
		GroupForced: in.Restriction == model.RestrictionGroup || in.ForceGroup,
	}
}

// EffectiveEnd trims a booking starting at hour to the earliest of
// the maximum booking duration, the end of the bookable day and the
// given ceiling ("HH:MM", normally the next class start).  This is
// what keeps a fresh booking from overlapping a later class or
// spilling past closing time.
func EffectiveEnd(hour int, until string) string {
	end := Clock(hour + MaxBookingHours)
	if dayEnd := Clock(DayEndHour); dayEnd < end {
		end = dayEnd
	}
	if until != "" && until < end {
		return until
	}
	return end
}
