package booking

import (
	"context"
	"time"

	"github.com/iliyamo/campus-room-booking/internal/repository"
)

// WeekWindow returns the Monday and Sunday of the week containing ref.
func WeekWindow(ref time.Time) (time.Time, time.Time) {
	offset := (int(ref.Weekday()) + 6) % 7 // Monday = 0
	monday := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// QuotaService gates booking involvement against the weekly cap.  The
// count is recomputed live on each call.
type QuotaService struct {
	reservations *repository.ReservationRepo
}

// NewQuotaService returns a QuotaService reading through the given repo.
func NewQuotaService(reservations *repository.ReservationRepo) *QuotaService {
	return &QuotaService{reservations: reservations}
}

// Remaining reports whether the user may take on another reservation in
// the week containing ref, and how many they are already involved in.
func (q *QuotaService) Remaining(ctx context.Context, userID uint64, ref time.Time) (bool, int, error) {
	monday, sunday := WeekWindow(ref)
	used, err := q.reservations.WeeklyInvolvement(ctx, userID,
		monday.Format(DateLayout), sunday.Format(DateLayout))
	if err != nil {
		return false, 0, err
	}
	return used < MaxWeeklyQuota, used, nil
}
