package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/campus-room-booking/internal/model"
)

// RestrictionRepo stores admin restrictions on (room, date, hour)
// slots.  A row with hour = model.DayHour closes the whole day and
// supersedes every hour-level row for that room/date; Get checks it
// first so day locks always win.
type RestrictionRepo struct {
	db *sql.DB
}

// NewRestrictionRepo returns a new RestrictionRepo bound to the given database.
func NewRestrictionRepo(db *sql.DB) *RestrictionRepo { return &RestrictionRepo{db: db} }

// DB exposes the underlying handle for cross-repository transactions.
func (r *RestrictionRepo) DB() *sql.DB { return r.db }

// Get resolves the restriction kind in effect at (room, date, hour).
// The whole-day sentinel takes precedence over hour rows.  Returns
// RestrictionNone when the slot is unrestricted.
func (r *RestrictionRepo) Get(ctx context.Context, room, dateStr string, hour int) (model.RestrictionKind, error) {
	return getRestriction(ctx, r.db, room, dateStr, hour)
}

// GetTx is the transactional variant of Get, used by booking creation
// so the restriction read and the insert share one transaction.
func (r *RestrictionRepo) GetTx(ctx context.Context, tx *sql.Tx, room, dateStr string, hour int) (model.RestrictionKind, error) {
	return getRestriction(ctx, tx, room, dateStr, hour)
}

// queryer abstracts *sql.DB and *sql.Tx for read paths.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getRestriction(ctx context.Context, q queryer, room, dateStr string, hour int) (model.RestrictionKind, error) {
	var kind string
	err := q.QueryRowContext(ctx,
		`SELECT kind FROM restrictions WHERE room = ? AND date_str = ? AND hour = ?`,
		room, dateStr, model.DayHour).Scan(&kind)
	switch {
	case err == nil:
		return model.RestrictionKind(kind), nil
	case err != sql.ErrNoRows:
		return model.RestrictionNone, err
	}
	err = q.QueryRowContext(ctx,
		`SELECT kind FROM restrictions WHERE room = ? AND date_str = ? AND hour = ?`,
		room, dateStr, hour).Scan(&kind)
	if err == sql.ErrNoRows {
		return model.RestrictionNone, nil
	}
	if err != nil {
		return model.RestrictionNone, err
	}
	return model.RestrictionKind(kind), nil
}

// ListForDate returns every restriction row for a date keyed by
// "room#hour", letting the availability handler resolve a whole floor
// without one query per room.  The day sentinel appears under hour -1.
func (r *RestrictionRepo) ListForDate(ctx context.Context, dateStr string) (map[string]model.RestrictionKind, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT room, hour, kind FROM restrictions WHERE date_str = ?`, dateStr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]model.RestrictionKind)
	for rows.Next() {
		var room, kind string
		var hour int
		if err := rows.Scan(&room, &hour, &kind); err != nil {
			return nil, err
		}
		out[RestrictionKey(room, hour)] = model.RestrictionKind(kind)
	}
	return out, rows.Err()
}

// RestrictionKey builds the map key used by ListForDate.
func RestrictionKey(room string, hour int) string {
	return fmt.Sprintf("%s#%d", room, hour)
}

// SetTx applies one restriction mutation inside the given transaction.
// Reservation purges (whole-day lock, hour block) are performed by the
// caller within the same transaction so the restriction row and the
// evicted reservations commit atomically.
//
//   - DAY_BLOCK: delete every row for (room, date), insert the sentinel.
//   - NONE: delete both the hour row and the day sentinel, so clearing
//     an hour also lifts a day lock as observed at that hour.
//   - BLOCK / GROUP: replace the row at (room, date, hour).
func (r *RestrictionRepo) SetTx(ctx context.Context, tx *sql.Tx, room, dateStr string, hour int, kind model.RestrictionKind) error {
	switch kind {
	case model.RestrictionDayBlock:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM restrictions WHERE room = ? AND date_str = ?`, room, dateStr); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO restrictions (room, date_str, hour, kind) VALUES (?, ?, ?, ?)`,
			room, dateStr, model.DayHour, string(model.RestrictionDayBlock))
		return err
	case model.RestrictionNone:
		_, err := tx.ExecContext(ctx,
			`DELETE FROM restrictions WHERE room = ? AND date_str = ? AND (hour = ? OR hour = ?)`,
			room, dateStr, hour, model.DayHour)
		return err
	default:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM restrictions WHERE room = ? AND date_str = ? AND hour = ?`,
			room, dateStr, hour); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO restrictions (room, date_str, hour, kind) VALUES (?, ?, ?, ?)`,
			room, dateStr, hour, string(kind))
		return err
	}
}
