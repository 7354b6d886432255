package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/campus-room-booking/internal/model"
)

// ScheduleRepo reads and replaces the cached class timetable.  The
// cache is owned by the schedule refresher; the booking engine only
// reads it.  Resolution may transiently see a stale timetable between
// refreshes, which is acceptable.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo bound to the given database.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// EventsOn returns all cached class events starting on the given day,
// ordered by room then start time.
func (r *ScheduleRepo) EventsOn(ctx context.Context, day time.Time) ([]model.ScheduleEvent, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	const q = `SELECT id, room, starts_at, ends_at, title FROM schedule_events
	           WHERE starts_at >= ? AND starts_at < ? ORDER BY room, starts_at`
	rows, err := r.db.QueryContext(ctx, q, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.ScheduleEvent, 0)
	for rows.Next() {
		var ev model.ScheduleEvent
		if err := rows.Scan(&ev.ID, &ev.Room, &ev.StartsAt, &ev.EndsAt, &ev.Title); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// NextStartAfterTx returns the start of the earliest class in the room
// beginning strictly after the given instant on the same day, or nil
// when none exists.  Booking creation uses it to trim the effective
// end time so a reservation never overlaps a later class.
func (r *ScheduleRepo) NextStartAfterTx(ctx context.Context, tx *sql.Tx, room string, after time.Time) (*time.Time, error) {
	dayEnd := time.Date(after.Year(), after.Month(), after.Day(), 23, 59, 59, 0, time.UTC)
	const q = `SELECT starts_at FROM schedule_events
	           WHERE room = ? AND starts_at > ? AND starts_at <= ?
	           ORDER BY starts_at LIMIT 1`
	var start time.Time
	err := tx.QueryRowContext(ctx, q, room, after, dayEnd).Scan(&start)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &start, nil
}

// ReplaceAll swaps the cache contents wholesale inside one transaction.
// A failed refresh upstream never reaches this method, so the previous
// cache survives fetch errors untouched.
func (r *ScheduleRepo) ReplaceAll(ctx context.Context, events []model.ScheduleEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_events`); err != nil {
		return err
	}
	for _, ev := range events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_events (room, starts_at, ends_at, title) VALUES (?, ?, ?, ?)`,
			ev.Room, ev.StartsAt.UTC(), ev.EndsAt.UTC(), ev.Title); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RoomsOn lists the distinct rooms that have classes on the day.  The
// floor grid is derived from the timetable, as rooms have no table of
// their own.
func (r *ScheduleRepo) RoomsOn(ctx context.Context, day time.Time) ([]string, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT room FROM schedule_events WHERE starts_at >= ? AND starts_at < ? ORDER BY room`,
		dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rooms := make([]string, 0)
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// AllRooms lists every distinct room known to the timetable.
func (r *ScheduleRepo) AllRooms(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT room FROM schedule_events ORDER BY room`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rooms := make([]string, 0)
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
