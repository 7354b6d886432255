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

func TestWeekWindow(t *testing.T) {
	cases := []struct {
		name   string
		ref    time.Time
		monday string
		sunday string
	}{
		{"midweek", time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC), "2026-03-02", "2026-03-08"},
		{"monday", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "2026-03-02", "2026-03-08"},
		{"sunday", time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC), "2026-03-02", "2026-03-08"},
		{"month boundary", time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC), "2026-03-30", "2026-04-05"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			monday, sunday := WeekWindow(tc.ref)
			assert.Equal(t, tc.monday, monday.Format(DateLayout))
			assert.Equal(t, tc.sunday, sunday.Format(DateLayout))
		})
	}
}

func TestQuotaRemaining(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	q := NewQuotaService(repository.NewReservationRepo(db))
	ref := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT r\.id\)`).
		WithArgs(uint64(7), "2026-03-02", "2026-03-08", uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	ok, used, err := q.Remaining(context.Background(), 7, ref)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, used)

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT r\.id\)`).
		WithArgs(uint64(7), "2026-03-02", "2026-03-08", uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	ok, used, err = q.Remaining(context.Background(), 7, ref)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, used)

	assert.NoError(t, mock.ExpectationsWereMet())
}
