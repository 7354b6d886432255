package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/campus-room-booking/internal/model"
)

// ReservationRepo provides CRUD operations for reservations, their
// participant lists and their check-in confirmations.  A reservation
// owns exactly one room slot; participants live in the
// reservation_members table and check-ins in reservation_checkins.
// Member and check-in rows are always mutated together with their
// reservation inside a caller-supplied transaction so the engine's
// invariants (owner never a participant, confirmations only from
// current members) hold at every commit point.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning multiple repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// SlotReservation is a reservation snapshot with its participant list
// populated, as consumed by the availability resolver and the group
// lifecycle.  Participants are ordered by join time (FIFO).
type SlotReservation struct {
	ID           uint64   `json:"id"`
	OwnerID      uint64   `json:"owner_id"`
	Room         string   `json:"room"`
	DateStr      string   `json:"date"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Participants []uint64 `json:"participants"`
}

// Size returns the member count including the owner.
func (s *SlotReservation) Size() int { return 1 + len(s.Participants) }

// IsMember reports whether userID is the owner or a participant.
func (s *SlotReservation) IsMember(userID uint64) bool {
	if s.OwnerID == userID {
		return true
	}
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID on the provided record.
// The UNIQUE KEY on (room, date_str, start_time) turns a concurrent
// create on the same free slot into ErrDuplicate for every transaction
// except the first to commit.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (owner_id, room, date_str, start_time, end_time) VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.OwnerID, res.Room, res.DateStr, res.StartTime, res.EndTime)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.CreatedAt = time.Now().UTC()
	return nil
}

// FindCoveringTx returns the reservation whose [start, end) interval
// contains the given "HH:MM" instant for the room and date, locking the
// row FOR UPDATE so that concurrent joins and leaves serialize on it.
// It returns sql.ErrNoRows when no reservation covers the slot.
func (r *ReservationRepo) FindCoveringTx(ctx context.Context, tx *sql.Tx, room, dateStr, clock string) (*SlotReservation, error) {
	const q = `SELECT id, owner_id, room, date_str, start_time, end_time
	           FROM reservations
	           WHERE room = ? AND date_str = ? AND start_time <= ? AND end_time > ?
	           LIMIT 1 FOR UPDATE`
	var res SlotReservation
	err := tx.QueryRowContext(ctx, q, room, dateStr, clock, clock).Scan(
		&res.ID, &res.OwnerID, &res.Room, &res.DateStr, &res.StartTime, &res.EndTime,
	)
	if err != nil {
		return nil, err
	}
	if err := r.loadParticipantsTx(ctx, tx, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetTx loads a reservation by ID with its participants, locking the
// row FOR UPDATE.  Returns sql.ErrNoRows when it does not exist.
func (r *ReservationRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*SlotReservation, error) {
	const q = `SELECT id, owner_id, room, date_str, start_time, end_time
	           FROM reservations WHERE id = ? FOR UPDATE`
	var res SlotReservation
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.OwnerID, &res.Room, &res.DateStr, &res.StartTime, &res.EndTime,
	)
	if err != nil {
		return nil, err
	}
	if err := r.loadParticipantsTx(ctx, tx, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepo) loadParticipantsTx(ctx context.Context, tx *sql.Tx, res *SlotReservation) error {
	const q = `SELECT user_id FROM reservation_members WHERE reservation_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, res.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	res.Participants = []uint64{}
	for rows.Next() {
		var uid uint64
		if err := rows.Scan(&uid); err != nil {
			return err
		}
		res.Participants = append(res.Participants, uid)
	}
	return rows.Err()
}

// ListByDate returns all reservations for a date with participant lists
// populated.  Used to build the availability snapshot for a whole
// floor; read-only, so no transaction is involved.
func (r *ReservationRepo) ListByDate(ctx context.Context, dateStr string) ([]SlotReservation, error) {
	const q = `SELECT id, owner_id, room, date_str, start_time, end_time
	           FROM reservations WHERE date_str = ? ORDER BY room, start_time`
	rows, err := r.db.QueryContext(ctx, q, dateStr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]SlotReservation, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var res SlotReservation
		if err := rows.Scan(&res.ID, &res.OwnerID, &res.Room, &res.DateStr, &res.StartTime, &res.EndTime); err != nil {
			return nil, err
		}
		res.Participants = []uint64{}
		index[res.ID] = len(list)
		list = append(list, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}
	// Populate participants for all reservations in one query.
	ids := make([]interface{}, 0, len(list))
	placeholders := make([]string, 0, len(list))
	for _, res := range list {
		ids = append(ids, res.ID)
		placeholders = append(placeholders, "?")
	}
	memberQ := `SELECT reservation_id, user_id FROM reservation_members
	            WHERE reservation_id IN (` + strings.Join(placeholders, ",") + `) ORDER BY id`
	mrows, err := r.db.QueryContext(ctx, memberQ, ids...)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var rid, uid uint64
		if err := mrows.Scan(&rid, &uid); err != nil {
			return nil, err
		}
		if idx, ok := index[rid]; ok {
			list[idx].Participants = append(list[idx].Participants, uid)
		}
	}
	return list, mrows.Err()
}

// AddMemberTx appends a participant to a reservation.  Join order is
// preserved by the auto-increment id, which is what owner succession
// walks later.
func (r *ReservationRepo) AddMemberTx(ctx context.Context, tx *sql.Tx, reservationID, userID uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO reservation_members (reservation_id, user_id) VALUES (?, ?)`,
		reservationID, userID)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// RemoveMemberTx removes a participant and their check-in row, keeping
// the confirmed set a subset of the current members.
func (r *ReservationRepo) RemoveMemberTx(ctx context.Context, tx *sql.Tx, reservationID, userID uint64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reservation_members WHERE reservation_id = ? AND user_id = ?`,
		reservationID, userID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`DELETE FROM reservation_checkins WHERE reservation_id = ? AND user_id = ?`,
		reservationID, userID)
	return err
}

// PromoteOwnerTx transfers ownership to newOwner and removes their
// participant row.  The departing owner's check-in row is dropped as
// well since they are no longer a member.
func (r *ReservationRepo) PromoteOwnerTx(ctx context.Context, tx *sql.Tx, reservationID, oldOwner, newOwner uint64) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET owner_id = ? WHERE id = ?`,
		newOwner, reservationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reservation_members WHERE reservation_id = ? AND user_id = ?`,
		reservationID, newOwner); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`DELETE FROM reservation_checkins WHERE reservation_id = ? AND user_id = ?`,
		reservationID, oldOwner)
	return err
}

// DeleteTx removes a reservation.  Member and check-in rows go with it
// via ON DELETE CASCADE.  Deleting an already-deleted row is a no-op,
// which keeps the no-show sweep idempotent under concurrent callers.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	return err
}

// AddCheckinTx records a presence confirmation.  Double confirmations
// are absorbed by INSERT IGNORE; membership is validated by the caller
// against a locked reservation row.
func (r *ReservationRepo) AddCheckinTx(ctx context.Context, tx *sql.Tx, reservationID, userID uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO reservation_checkins (reservation_id, user_id) VALUES (?, ?)`,
		reservationID, userID)
	return err
}

// CheckinsTx returns the confirmed user set for a reservation.
func (r *ReservationRepo) CheckinsTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM reservation_checkins WHERE reservation_id = ?`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []uint64
	for rows.Next() {
		var uid uint64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		users = append(users, uid)
	}
	return users, rows.Err()
}

// WeeklyInvolvementTx counts reservations inside [weekStart, weekEnd]
// (inclusive date strings) where the user is owner or participant.
// The count is computed live on every call; it is a gate, not a
// decrementing counter.
func (r *ReservationRepo) WeeklyInvolvementTx(ctx context.Context, tx *sql.Tx, userID uint64, weekStart, weekEnd string) (int, error) {
	const q = `SELECT COUNT(DISTINCT r.id)
	           FROM reservations r
	           LEFT JOIN reservation_members m ON m.reservation_id = r.id AND m.user_id = ?
	           WHERE r.date_str >= ? AND r.date_str <= ?
	             AND (r.owner_id = ? OR m.user_id IS NOT NULL)`
	var n int
	err := tx.QueryRowContext(ctx, q, userID, weekStart, weekEnd, userID).Scan(&n)
	return n, err
}

// WeeklyInvolvement is the non-transactional variant used by the quota
// endpoint and pre-checks.
func (r *ReservationRepo) WeeklyInvolvement(ctx context.Context, userID uint64, weekStart, weekEnd string) (int, error) {
	const q = `SELECT COUNT(DISTINCT r.id)
	           FROM reservations r
	           LEFT JOIN reservation_members m ON m.reservation_id = r.id AND m.user_id = ?
	           WHERE r.date_str >= ? AND r.date_str <= ?
	             AND (r.owner_id = ? OR m.user_id IS NOT NULL)`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID, weekStart, weekEnd, userID).Scan(&n)
	return n, err
}

// SweepCandidate is a reservation whose start has passed the check-in
// grace window, with the aggregate counts the eviction rules need.
type SweepCandidate struct {
	ID             uint64
	OwnerID        uint64
	Room           string
	StartTime      string
	MemberCount    int // owner + participants
	ConfirmedCount int
}

// SweepCandidatesTx lists today's reservations that started before the
// given "HH:MM" limit, with member and confirmation counts.  Check-in
// rows are guaranteed to reference current members, so a plain count
// per reservation is the confirmed-member intersection.
func (r *ReservationRepo) SweepCandidatesTx(ctx context.Context, tx *sql.Tx, dateStr, limitClock string) ([]SweepCandidate, error) {
	const q = `SELECT r.id, r.owner_id, r.room, r.start_time,
	                  1 + (SELECT COUNT(*) FROM reservation_members m WHERE m.reservation_id = r.id),
	                  (SELECT COUNT(*) FROM reservation_checkins c WHERE c.reservation_id = r.id)
	           FROM reservations r
	           WHERE r.date_str = ? AND r.start_time < ?
	           FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, dateStr, limitClock)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SweepCandidate
	for rows.Next() {
		var sc SweepCandidate
		if err := rows.Scan(&sc.ID, &sc.OwnerID, &sc.Room, &sc.StartTime, &sc.MemberCount, &sc.ConfirmedCount); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// DeleteByRoomDateTx removes every reservation for a room/date and
// returns the deleted IDs.  Used by the whole-day admin lock.
func (r *ReservationRepo) DeleteByRoomDateTx(ctx context.Context, tx *sql.Tx, room, dateStr string) ([]uint64, error) {
	ids, err := r.idsTx(ctx, tx,
		`SELECT id FROM reservations WHERE room = ? AND date_str = ? FOR UPDATE`, room, dateStr)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM reservations WHERE room = ? AND date_str = ?`, room, dateStr)
	return ids, err
}

// DeleteByStartTx removes reservations starting exactly at the given
// "HH:MM" on the room/date and returns the deleted IDs.  Used when an
// hour BLOCK is set; reservations merely straddling the hour survive,
// restrictions are forward-looking.
func (r *ReservationRepo) DeleteByStartTx(ctx context.Context, tx *sql.Tx, room, dateStr, startClock string) ([]uint64, error) {
	ids, err := r.idsTx(ctx, tx,
		`SELECT id FROM reservations WHERE room = ? AND date_str = ? AND start_time = ? FOR UPDATE`,
		room, dateStr, startClock)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM reservations WHERE room = ? AND date_str = ? AND start_time = ?`,
		room, dateStr, startClock)
	return ids, err
}

func (r *ReservationRepo) idsTx(ctx context.Context, tx *sql.Tx, q string, args ...interface{}) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InvolvementDetail is a reservation as listed on the "my reservations"
// screen, including the viewer's confirmation state.
type InvolvementDetail struct {
	ID          uint64   `json:"id"`
	Room        string   `json:"room"`
	DateStr     string   `json:"date"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	OwnerID     uint64   `json:"owner_id"`
	GroupSize   int      `json:"group_size"`
	ConfirmedBy []uint64 `json:"confirmed_by"`
}

// ListInvolvedFrom returns reservations on or after fromDate where the
// user is owner or participant, ordered by date then start time.
func (r *ReservationRepo) ListInvolvedFrom(ctx context.Context, userID uint64, fromDate string) ([]InvolvementDetail, error) {
	const q = `SELECT DISTINCT r.id, r.room, r.date_str, r.start_time, r.end_time, r.owner_id,
	                  1 + (SELECT COUNT(*) FROM reservation_members m2 WHERE m2.reservation_id = r.id)
	           FROM reservations r
	           LEFT JOIN reservation_members m ON m.reservation_id = r.id AND m.user_id = ?
	           WHERE r.date_str >= ? AND (r.owner_id = ? OR m.user_id IS NOT NULL)
	           ORDER BY r.date_str, r.start_time`
	rows, err := r.db.QueryContext(ctx, q, userID, fromDate, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]InvolvementDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var d InvolvementDetail
		if err := rows.Scan(&d.ID, &d.Room, &d.DateStr, &d.StartTime, &d.EndTime, &d.OwnerID, &d.GroupSize); err != nil {
			return nil, err
		}
		d.ConfirmedBy = []uint64{}
		index[d.ID] = len(list)
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}
	ids := make([]interface{}, 0, len(list))
	placeholders := make([]string, 0, len(list))
	for _, d := range list {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	crows, err := r.db.QueryContext(ctx,
		`SELECT reservation_id, user_id FROM reservation_checkins
		 WHERE reservation_id IN (`+strings.Join(placeholders, ",")+`)`, ids...)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var rid, uid uint64
		if err := crows.Scan(&rid, &uid); err != nil {
			return nil, err
		}
		if idx, ok := index[rid]; ok {
			list[idx].ConfirmedBy = append(list[idx].ConfirmedBy, uid)
		}
	}
	return list, crows.Err()
}

// DailyStats aggregates today's bookings for the admin dashboard.
type DailyStats struct {
	Total   int            `json:"total"`
	ByFloor map[string]int `json:"by_floor"`
	ByHour  map[string]int `json:"by_hour"`
}

// StatsOnDate counts reservations on a date, grouped by floor prefix
// and by starting hour.
func (r *ReservationRepo) StatsOnDate(ctx context.Context, dateStr string, floors []string) (*DailyStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT room, start_time FROM reservations WHERE date_str = ?`, dateStr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := &DailyStats{ByFloor: map[string]int{}, ByHour: map[string]int{}}
	for _, f := range floors {
		stats.ByFloor[f] = 0
	}
	for rows.Next() {
		var room, start string
		if err := rows.Scan(&room, &start); err != nil {
			return nil, err
		}
		stats.Total++
		for _, f := range floors {
			if strings.Contains(room, f) {
				stats.ByFloor[f]++
				break
			}
		}
		if len(start) >= 2 {
			stats.ByHour[strings.TrimPrefix(start[:2], "0")+"h"]++
		}
	}
	return stats, rows.Err()
}
