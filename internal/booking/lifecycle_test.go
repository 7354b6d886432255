package booking

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/campus-room-booking/internal/model"
	"github.com/iliyamo/campus-room-booking/internal/repository"
)

func newLifecycleMock(t *testing.T) (*Lifecycle, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	lc := NewLifecycle(db,
		repository.NewReservationRepo(db),
		repository.NewRestrictionRepo(db),
		repository.NewScheduleRepo(db),
		repository.NewMetadataRepo(db))
	return lc, mock, func() { db.Close() }
}

var testDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday

var mysqlDuplicateForTest = mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

// expectNoRestriction mocks the sentinel and hour restriction lookups
// both coming back empty.
func expectNoRestriction(mock sqlmock.Sqlmock, room string, hour int) {
	mock.ExpectQuery(`SELECT kind FROM restrictions`).
		WithArgs(room, "2026-03-02", model.DayHour).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT kind FROM restrictions`).
		WithArgs(room, "2026-03-02", hour).
		WillReturnError(sql.ErrNoRows)
}

func TestCreateBooksFreeSlot(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectNoRestriction(mock, "CC P1.01", 10)
	mock.ExpectQuery(`SELECT starts_at FROM schedule_events`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO reservations`).
		WithArgs(uint64(7), "CC P1.01", "2026-03-02", "10:00", "12:00").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery(`SELECT meta_value FROM metadata`).
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow("0"))
	mock.ExpectCommit()

	res, forced, err := lc.Create(context.Background(), 7, "CC P1.01", testDay, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.ID)
	assert.Equal(t, "12:00", res.EndTime)
	assert.False(t, forced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTrimsEndToNextClass(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectNoRestriction(mock, "CC P1.01", 10)
	mock.ExpectQuery(`SELECT starts_at FROM schedule_events`).
		WillReturnRows(sqlmock.NewRows([]string{"starts_at"}).
			AddRow(time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)))
	mock.ExpectExec(`INSERT INTO reservations`).
		WithArgs(uint64(7), "CC P1.01", "2026-03-02", "10:00", "11:00").
		WillReturnResult(sqlmock.NewResult(43, 1))
	mock.ExpectQuery(`SELECT meta_value FROM metadata`).
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow("0"))
	mock.ExpectCommit()

	res, _, err := lc.Create(context.Background(), 7, "CC P1.01", testDay, 10)
	require.NoError(t, err)
	assert.Equal(t, "11:00", res.EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsLockedSlot(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT kind FROM restrictions`).
		WithArgs("CC P1.01", "2026-03-02", model.DayHour).
		WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("DAY_BLOCK"))
	mock.ExpectRollback()

	_, _, err := lc.Create(context.Background(), 7, "CC P1.01", testDay, 10)
	assert.ErrorIs(t, err, ErrSlotLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Creating a booking never consults the weekly quota; only joining
// does.  A user already holding three bookings this week can still
// book a fourth.
func TestCreateSkipsWeeklyQuota(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectNoRestriction(mock, "CC P1.01", 10)
	mock.ExpectQuery(`SELECT starts_at FROM schedule_events`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO reservations`).
		WillReturnResult(sqlmock.NewResult(44, 1))
	mock.ExpectQuery(`SELECT meta_value FROM metadata`).
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow("0"))
	mock.ExpectCommit()

	res, _, err := lc.Create(context.Background(), 7, "CC P1.01", testDay, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(44), res.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLosesRaceToUniqueKey(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectNoRestriction(mock, "CC P1.01", 10)
	mock.ExpectQuery(`SELECT starts_at FROM schedule_events`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO reservations`).
		WillReturnError(&mysqlDuplicateForTest)
	mock.ExpectRollback()

	_, _, err := lc.Create(context.Background(), 7, "CC P1.01", testDay, 10)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// expectCovering mocks the locked lookup of the reservation covering
// 10:00, owned by owner with the given participants.
func expectCovering(mock sqlmock.Sqlmock, owner uint64, participants ...uint64) {
	mock.ExpectQuery(`SELECT id, owner_id, room, date_str, start_time, end_time`).
		WithArgs("CC P1.01", "2026-03-02", "10:00", "10:00").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "owner_id", "room", "date_str", "start_time", "end_time"}).
			AddRow(42, owner, "CC P1.01", "2026-03-02", "10:00", "12:00"))
	rows := sqlmock.NewRows([]string{"user_id"})
	for _, p := range participants {
		rows.AddRow(p)
	}
	mock.ExpectQuery(`SELECT user_id FROM reservation_members`).
		WithArgs(uint64(42)).
		WillReturnRows(rows)
}

func TestGroupActionJoin(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectCovering(mock, 7, 8)
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT r\.id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO reservation_members`).
		WithArgs(uint64(42), uint64(9)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	out, err := lc.GroupAction(context.Background(), 9, "CC P1.01", testDay, 10, ActionJoin)
	require.NoError(t, err)
	assert.Equal(t, 3, out.GroupSize)
	assert.Equal(t, "joined group (3/5)", out.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupActionJoinFullIsNoop(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectCovering(mock, 7, 2, 3, 4, 5)
	mock.ExpectRollback()

	out, err := lc.GroupAction(context.Background(), 9, "CC P1.01", testDay, 10, ActionJoin)
	require.NoError(t, err)
	assert.Equal(t, "group is full", out.Message)
	assert.False(t, out.Deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupActionJoinBlockedByQuota(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectCovering(mock, 7)
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT r\.id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	_, err := lc.GroupAction(context.Background(), 9, "CC P1.01", testDay, 10, ActionJoin)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupActionOwnerLeaveTransfersOwnership(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectCovering(mock, 7, 8, 9)
	mock.ExpectExec(`UPDATE reservations SET owner_id`).
		WithArgs(uint64(8), uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM reservation_members`).
		WithArgs(uint64(42), uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM reservation_checkins`).
		WithArgs(uint64(42), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	out, err := lc.GroupAction(context.Background(), 7, "CC P1.01", testDay, 10, ActionLeave)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), out.NewOwner) // earliest joiner inherits
	assert.False(t, out.Deleted)
	assert.Equal(t, 2, out.GroupSize)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupActionSoloOwnerLeaveDeletes(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectCovering(mock, 7)
	mock.ExpectExec(`DELETE FROM reservations WHERE id = \?`).
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := lc.GroupAction(context.Background(), 7, "CC P1.01", testDay, 10, ActionLeave)
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupActionParticipantLeave(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectCovering(mock, 7, 8, 9)
	mock.ExpectExec(`DELETE FROM reservation_members`).
		WithArgs(uint64(42), uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM reservation_checkins`).
		WithArgs(uint64(42), uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	out, err := lc.GroupAction(context.Background(), 9, "CC P1.01", testDay, 10, ActionLeave)
	require.NoError(t, err)
	assert.Equal(t, "left group (2/5)", out.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupActionCancelByNonOwnerIsNoop(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectCovering(mock, 7, 9)
	mock.ExpectRollback()

	out, err := lc.GroupAction(context.Background(), 9, "CC P1.01", testDay, 10, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, "only the owner can cancel", out.Message)
	assert.False(t, out.Deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupActionNoCoveringReservation(t *testing.T) {
	lc, mock, cleanup := newLifecycleMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, owner_id, room, date_str, start_time, end_time`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := lc.GroupAction(context.Background(), 9, "CC P1.01", testDay, 10, ActionJoin)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
