package model

import "time"

// ScheduleEvent is a class occupying a room, sourced from the external
// timetable feed.  The booking engine treats these rows as read-only;
// the schedule refresher replaces them wholesale on every refresh.
//
// Fields:
//  ID       – primary key identifier.
//  Room     – room hosting the class.
//  StartsAt – class start (UTC).
//  EndsAt   – class end (UTC).
//  Title    – class summary from the feed; informational only.
type ScheduleEvent struct {
	ID       uint64    // schedule_events.id
	Room     string    // schedule_events.room
	StartsAt time.Time // schedule_events.starts_at
	EndsAt   time.Time // schedule_events.ends_at
	Title    string    // schedule_events.title
}

// RoomEquipment tags a room with an equipment icon (projector, power
// outlets, wheelchair access).  Pure metadata, toggled by admins.
type RoomEquipment struct {
	Room string // room_equipment.room
	Icon string // room_equipment.icon
}
