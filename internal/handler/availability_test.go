package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/campus-room-booking/internal/booking"
	"github.com/iliyamo/campus-room-booking/internal/repository"
	"github.com/iliyamo/campus-room-booking/internal/schedule"
)

func newAvailabilityMock(t *testing.T) (*AvailabilityHandler, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	res := repository.NewReservationRepo(db)
	sched := repository.NewScheduleRepo(db)
	meta := repository.NewMetadataRepo(db)
	h := NewAvailabilityHandler(
		res,
		repository.NewRestrictionRepo(db),
		sched,
		meta,
		repository.NewEquipmentRepo(db),
		schedule.NewFeed(nil, 30*time.Minute, sched, meta),
		booking.NewCheckinService(db, res),
	)
	return h, mock, func() { db.Close() }
}

// expectEmptyDay mocks the availability snapshot queries for a date
// with no classes, reservations or restrictions and one known room.
func expectEmptyDay(mock sqlmock.Sqlmock, room string) {
	mock.ExpectQuery(`SELECT id, room, starts_at, ends_at, title FROM schedule_events`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room", "starts_at", "ends_at", "title"}))
	mock.ExpectQuery(`SELECT id, owner_id, room, date_str, start_time, end_time\s+FROM reservations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "room", "date_str", "start_time", "end_time"}))
	mock.ExpectQuery(`SELECT room, hour, kind FROM restrictions`).
		WillReturnRows(sqlmock.NewRows([]string{"room", "hour", "kind"}))
	mock.ExpectQuery(`SELECT room, icon FROM room_equipment`).
		WillReturnRows(sqlmock.NewRows([]string{"room", "icon"}))
	mock.ExpectQuery(`SELECT meta_value FROM metadata`).
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow("0"))
	mock.ExpectQuery(`SELECT DISTINCT room FROM schedule_events`).
		WillReturnRows(sqlmock.NewRows([]string{"room"}).AddRow(room))
}

// A single-slot lookup for today runs the no-show sweep before
// resolving, so a reservation past its check-in grace is evicted and
// the slot comes back free instead of taken.
func TestSlotSweepsNoShowsForToday(t *testing.T) {
	h, mock, cleanup := newAvailabilityMock(t)
	defer cleanup()

	const room = "CC P2 105"

	// Feed is fresh: last_refresh is now, so no fetch happens.
	mock.ExpectQuery(`SELECT meta_value FROM metadata`).
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).
			AddRow(fmt.Sprintf("%d", time.Now().UTC().Unix())))

	// Sweep finds one solo no-show and evicts it.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT r\.id, r\.owner_id, r\.room, r\.start_time`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "owner_id", "room", "start_time", "members", "confirmed"}).
			AddRow(9, 3, room, "08:00", 1, 0))
	mock.ExpectExec(`DELETE FROM reservations WHERE id = \?`).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// The snapshot loaded after the sweep no longer holds it.
	expectEmptyDay(mock, room)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/slot?hour=9", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/rooms/:room/slot")
	c.SetParamNames("room")
	c.SetParamValues(room)
	c.Set("user_id", uint64(3))

	require.NoError(t, h.Slot(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"free"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Lookups for other dates resolve straight from the snapshot with no
// sweep transaction and no feed refresh.
func TestSlotSkipsSweepForOtherDates(t *testing.T) {
	h, mock, cleanup := newAvailabilityMock(t)
	defer cleanup()

	const room = "CC P2 105"
	tomorrow := time.Now().UTC().Add(24 * time.Hour).Format(booking.DateLayout)

	expectEmptyDay(mock, room)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/slot?hour=9&date="+tomorrow, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/rooms/:room/slot")
	c.SetParamNames("room")
	c.SetParamValues(room)
	c.Set("user_id", uint64(3))

	require.NoError(t, h.Slot(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
