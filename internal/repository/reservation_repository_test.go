package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/campus-room-booking/internal/model"
)

func newReservationMock(t *testing.T) (*ReservationRepo, *sql.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewReservationRepo(db), db, mock, func() { db.Close() }
}

func TestCreateTxMapsDuplicateSlot(t *testing.T) {
	repo, db, mock, cleanup := newReservationMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO reservations`).
		WithArgs(uint64(7), "CC P1.01", "2026-03-02", "10:00", "12:00").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.CreateTx(context.Background(), tx, &model.Reservation{
		OwnerID: 7, Room: "CC P1.01", DateStr: "2026-03-02",
		StartTime: "10:00", EndTime: "12:00",
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTxSetsID(t *testing.T) {
	repo, db, mock, cleanup := newReservationMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO reservations`).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	res := &model.Reservation{OwnerID: 7, Room: "CC P1.01", DateStr: "2026-03-02",
		StartTime: "10:00", EndTime: "12:00"}
	require.NoError(t, repo.CreateTx(context.Background(), tx, res))
	require.NoError(t, tx.Commit())
	assert.Equal(t, uint64(42), res.ID)
}

func TestAddMemberTxMapsDuplicate(t *testing.T) {
	repo, db, mock, cleanup := newReservationMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO reservation_members`).
		WithArgs(uint64(42), uint64(9)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.AddMemberTx(context.Background(), tx, 42, 9)
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, tx.Rollback())
}

func TestRemoveMemberTxAlsoDropsCheckin(t *testing.T) {
	repo, db, mock, cleanup := newReservationMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM reservation_members`).
		WithArgs(uint64(42), uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM reservation_checkins`).
		WithArgs(uint64(42), uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.RemoveMemberTx(context.Background(), tx, 42, 9))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByDateLoadsParticipants(t *testing.T) {
	repo, _, mock, cleanup := newReservationMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT id, owner_id, room, date_str, start_time, end_time`).
		WithArgs("2026-03-02").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "owner_id", "room", "date_str", "start_time", "end_time"}).
			AddRow(1, 7, "CC P1.01", "2026-03-02", "10:00", "12:00").
			AddRow(2, 8, "CC P2.03", "2026-03-02", "14:00", "16:00"))
	mock.ExpectQuery(`SELECT reservation_id, user_id FROM reservation_members`).
		WillReturnRows(sqlmock.NewRows([]string{"reservation_id", "user_id"}).
			AddRow(1, 9).
			AddRow(1, 10))

	list, err := repo.ListByDate(context.Background(), "2026-03-02")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []uint64{9, 10}, list[0].Participants)
	assert.Equal(t, 3, list[0].Size())
	assert.Empty(t, list[1].Participants)
	assert.Equal(t, 1, list[1].Size())
}

func TestSlotReservationMembership(t *testing.T) {
	res := SlotReservation{OwnerID: 7, Participants: []uint64{8, 9}}
	assert.True(t, res.IsMember(7))
	assert.True(t, res.IsMember(9))
	assert.False(t, res.IsMember(11))
	assert.Equal(t, 3, res.Size())
}

func TestDeleteByRoomDateTxReturnsIDs(t *testing.T) {
	repo, db, mock, cleanup := newReservationMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM reservations WHERE room = \? AND date_str = \?`).
		WithArgs("CC P1.01", "2026-03-02").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectExec(`DELETE FROM reservations WHERE room = \? AND date_str = \?`).
		WithArgs("CC P1.01", "2026-03-02").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	ids, err := repo.DeleteByRoomDateTx(context.Background(), tx, "CC P1.01", "2026-03-02")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, []uint64{1, 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
