package repository

import (
	"context"
	"database/sql"
)

// EquipmentRepo tags rooms with equipment icons.  Pure metadata with no
// booking invariants; admins toggle icons on and off.
type EquipmentRepo struct {
	db *sql.DB
}

// NewEquipmentRepo returns a new EquipmentRepo bound to the given database.
func NewEquipmentRepo(db *sql.DB) *EquipmentRepo { return &EquipmentRepo{db: db} }

// Toggle adds the icon to the room if absent, removes it if present,
// and reports whether the icon is now set.
func (r *EquipmentRepo) Toggle(ctx context.Context, room, icon string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM room_equipment WHERE room = ? AND icon = ?`, room, icon)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return false, nil
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO room_equipment (room, icon) VALUES (?, ?)`, room, icon)
	return err == nil, err
}

// IconsByRoom returns every room's icon list in one query.
func (r *EquipmentRepo) IconsByRoom(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT room, icon FROM room_equipment ORDER BY room, icon`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var room, icon string
		if err := rows.Scan(&room, &icon); err != nil {
			return nil, err
		}
		out[room] = append(out[room], icon)
	}
	return out, rows.Err()
}
