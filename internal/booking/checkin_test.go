package booking

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/campus-room-booking/internal/repository"
)

func TestShouldEvict(t *testing.T) {
	cases := []struct {
		name      string
		members   int
		confirmed int
		evict     bool
	}{
		{"solo unconfirmed", 1, 0, true},
		{"solo confirmed", 1, 1, false},
		{"group below threshold", 5, 3, true},
		{"group at threshold", 5, 4, false},
		{"pair needs four", 2, 2, true},
		{"group fully confirmed", 4, 4, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := shouldEvict(repository.SweepCandidate{
				MemberCount:    tc.members,
				ConfirmedCount: tc.confirmed,
			})
			assert.Equal(t, tc.evict, got)
		})
	}
}

func TestWithinCheckinWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.True(t, withinCheckinWindow("2026-03-02", "10:00", start))
	assert.True(t, withinCheckinWindow("2026-03-02", "10:00", start.Add(-CheckinGrace)))
	assert.True(t, withinCheckinWindow("2026-03-02", "10:00", start.Add(CheckinGrace)))
	assert.False(t, withinCheckinWindow("2026-03-02", "10:00", start.Add(-CheckinGrace-time.Minute)))
	assert.False(t, withinCheckinWindow("2026-03-02", "10:00", start.Add(CheckinGrace+time.Minute)))
	assert.False(t, withinCheckinWindow("bogus", "10:00", start))
}

func TestEvictNoShows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	svc := NewCheckinService(db, repository.NewReservationRepo(db))
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	// Grace limit is 10:15: two candidates started at 09:00 and 10:00.
	mock.ExpectQuery(`SELECT r\.id, r\.owner_id, r\.room, r\.start_time`).
		WithArgs("2026-03-02", "10:15").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "owner_id", "room", "start_time", "members", "confirmed"}).
			AddRow(1, 7, "CC P1.01", "09:00", 1, 0).  // solo, no check-in: evict
			AddRow(2, 8, "CC P2.03", "10:00", 5, 4)) // group at threshold: keep
	mock.ExpectExec(`DELETE FROM reservations WHERE id = \?`).
		WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	evicted, err := svc.EvictNoShows(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.Equal(t, uint64(1), evicted[0].ReservationID)
	assert.Equal(t, uint64(7), evicted[0].OwnerID)
	assert.Equal(t, "CC P1.01", evicted[0].Room)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvictNoShowsNothingToDo(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	svc := NewCheckinService(db, repository.NewReservationRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT r\.id, r\.owner_id, r\.room, r\.start_time`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "owner_id", "room", "start_time", "members", "confirmed"}))
	mock.ExpectCommit()

	evicted, err := svc.EvictNoShows(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, evicted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmOutsideWindow(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	svc := NewCheckinService(db, repository.NewReservationRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, owner_id, room, date_str, start_time, end_time`).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "owner_id", "room", "date_str", "start_time", "end_time"}).
			AddRow(1, 7, "CC P1.01", "2026-03-02", "10:00", "12:00"))
	mock.ExpectQuery(`SELECT user_id FROM reservation_members`).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	_, err = svc.Confirm(context.Background(), 1, 7,
		time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrCheckinClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmRecordsCheckin(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	svc := NewCheckinService(db, repository.NewReservationRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, owner_id, room, date_str, start_time, end_time`).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "owner_id", "room", "date_str", "start_time", "end_time"}).
			AddRow(1, 7, "CC P1.01", "2026-03-02", "10:00", "12:00"))
	mock.ExpectQuery(`SELECT user_id FROM reservation_members`).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(8))
	mock.ExpectExec(`INSERT IGNORE INTO reservation_checkins`).
		WithArgs(uint64(1), uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT user_id FROM reservation_checkins`).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(8))
	mock.ExpectCommit()

	confirmed, err := svc.Confirm(context.Background(), 1, 8,
		time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
