package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/campus-room-booking/internal/repository"
)

// CheckinService records member confirmations and evicts no-shows.
type CheckinService struct {
	db           *sql.DB
	reservations *repository.ReservationRepo
}

// NewCheckinService wires a CheckinService over the reservation store.
func NewCheckinService(db *sql.DB, res *repository.ReservationRepo) *CheckinService {
	return &CheckinService{db: db, reservations: res}
}

// Confirm records the actor's check-in on the reservation and returns
// the confirmed count afterwards.  Check-ins are only accepted within
// the grace window on either side of the slot start.  A repeat
// check-in is absorbed silently.  Only current members may confirm;
// anyone else gets ErrNotFound so the endpoint leaks nothing about
// foreign bookings.
func (s *CheckinService) Confirm(ctx context.Context, reservationID, actor uint64, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := s.reservations.GetTx(ctx, tx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if !res.IsMember(actor) {
		return 0, ErrNotFound
	}
	if !withinCheckinWindow(res.DateStr, res.StartTime, now) {
		return 0, ErrCheckinClosed
	}
	if err := s.reservations.AddCheckinTx(ctx, tx, reservationID, actor); err != nil {
		return 0, err
	}
	confirmed, err := s.reservations.CheckinsTx(ctx, tx, reservationID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return len(confirmed), nil
}

// withinCheckinWindow reports whether now falls inside
// [start-grace, start+grace] for the slot.
func withinCheckinWindow(dateStr, startClock string, now time.Time) bool {
	start, err := time.Parse(DateLayout+" "+ClockLayout, dateStr+" "+startClock)
	if err != nil {
		return false
	}
	now = now.UTC()
	return !now.Before(start.Add(-CheckinGrace)) && !now.After(start.Add(CheckinGrace))
}

// Evicted identifies a reservation removed by the no-show sweep.
type Evicted struct {
	ReservationID uint64
	OwnerID       uint64
	Room          string
	DateStr       string
	StartTime     string
}

// shouldEvict applies the no-show rules to one candidate: a solo
// booking must have at least one check-in, a group must reach the
// confirmation threshold.
func shouldEvict(c repository.SweepCandidate) bool {
	if c.MemberCount > 1 {
		return c.ConfirmedCount < MinConfirmRequired
	}
	return c.ConfirmedCount == 0
}

// EvictNoShows removes today's reservations whose grace window has
// passed without enough check-ins, and returns what it removed so the
// caller can publish eviction events.  Candidates are locked FOR
// UPDATE, so concurrent sweeps serialize and the operation is
// idempotent: a second pass finds nothing left to evict.
func (s *CheckinService) EvictNoShows(ctx context.Context, now time.Time) ([]Evicted, error) {
	dateStr := now.Format(DateLayout)
	limit := now.Add(-CheckinGrace).Format(ClockLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	candidates, err := s.reservations.SweepCandidatesTx(ctx, tx, dateStr, limit)
	if err != nil {
		return nil, err
	}

	var evicted []Evicted
	for _, c := range candidates {
		if !shouldEvict(c) {
			continue
		}
		if err := s.reservations.DeleteTx(ctx, tx, c.ID); err != nil {
			return nil, err
		}
		evicted = append(evicted, Evicted{
			ReservationID: c.ID,
			OwnerID:       c.OwnerID,
			Room:          c.Room,
			DateStr:       dateStr,
			StartTime:     c.StartTime,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return evicted, nil
}
