package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"
)

// Metadata keys.  force_group is the global group policy flag; it is a
// stored row rather than process state so every service instance
// observes the same policy.
const (
	metaForceGroup  = "force_group"
	metaLastRefresh = "last_refresh"
)

// MetadataRepo stores small key/value settings (global group policy,
// schedule refresh bookkeeping).
type MetadataRepo struct {
	db *sql.DB
}

// NewMetadataRepo returns a new MetadataRepo bound to the given database.
func NewMetadataRepo(db *sql.DB) *MetadataRepo { return &MetadataRepo{db: db} }

// ForceGroup reports whether the global "bookings must start as a
// group" policy is on.  A missing row means off.
func (r *MetadataRepo) ForceGroup(ctx context.Context) (bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		`SELECT meta_value FROM metadata WHERE meta_key = ?`, metaForceGroup).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// SetForceGroup flips the global group policy.
func (r *MetadataRepo) SetForceGroup(ctx context.Context, on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	_, err := r.db.ExecContext(ctx,
		`REPLACE INTO metadata (meta_key, meta_value) VALUES (?, ?)`, metaForceGroup, v)
	return err
}

// LastRefresh returns when the schedule cache was last replaced, or the
// zero time when it never was.
func (r *MetadataRepo) LastRefresh(ctx context.Context) (time.Time, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		`SELECT meta_value FROM metadata WHERE meta_key = ?`, metaLastRefresh).Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, nil
	}
	return time.Unix(sec, 0).UTC(), nil
}

// SetLastRefresh records a successful schedule refresh.
func (r *MetadataRepo) SetLastRefresh(ctx context.Context, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`REPLACE INTO metadata (meta_key, meta_value) VALUES (?, ?)`,
		metaLastRefresh, strconv.FormatInt(at.UTC().Unix(), 10))
	return err
}
