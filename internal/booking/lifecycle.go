package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/campus-room-booking/internal/model"
	"github.com/iliyamo/campus-room-booking/internal/repository"
)

// ActionKind selects a group lifecycle operation.
type ActionKind string

const (
	ActionJoin   ActionKind = "join"
	ActionLeave  ActionKind = "leave"
	ActionCancel ActionKind = "cancel"
)

// ActionResult describes the outcome of a booking or group action.
// Deleted is set when the action removed the reservation entirely;
// NewOwner is non-zero when ownership moved via FIFO succession.
type ActionResult struct {
	Message       string
	ReservationID uint64
	Room          string
	DateStr       string
	StartTime     string
	Deleted       bool
	NewOwner      uint64
	GroupSize     int
}

// Lifecycle owns the transactional booking and group-membership flows.
// Every public method opens one transaction, re-validates the gates
// under row locks and commits or rolls back atomically.
type Lifecycle struct {
	db           *sql.DB
	reservations *repository.ReservationRepo
	restrictions *repository.RestrictionRepo
	schedule     *repository.ScheduleRepo
	meta         *repository.MetadataRepo
}

// NewLifecycle wires a Lifecycle over the given stores.
func NewLifecycle(db *sql.DB, res *repository.ReservationRepo, restr *repository.RestrictionRepo,
	sched *repository.ScheduleRepo, meta *repository.MetadataRepo) *Lifecycle {
	return &Lifecycle{db: db, reservations: res, restrictions: restr, schedule: sched, meta: meta}
}

// Create books a free slot for the actor.  Inside the transaction it
// re-checks the admin restriction, trims the end time to the next
// class in the room (or the end of the bookable day), and relies on
// the unique slot key to lose gracefully against a concurrent booking
// of the same slot.  The weekly quota is deliberately not consulted
// here: creating is always allowed, only joining an existing group is
// quota-gated.  The returned bool reports whether group mode was
// forced on the new reservation.
func (l *Lifecycle) Create(ctx context.Context, actor uint64, room string, day time.Time, hour int) (*model.Reservation, bool, error) {
	dateStr := day.Format(DateLayout)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	kind, err := l.restrictions.GetTx(ctx, tx, room, dateStr, hour)
	if err != nil {
		return nil, false, err
	}
	if kind == model.RestrictionBlock || kind == model.RestrictionDayBlock {
		return nil, false, ErrSlotLocked
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)
	until := ""
	next, err := l.schedule.NextStartAfterTx(ctx, tx, room, start)
	if err != nil {
		return nil, false, err
	}
	if next != nil {
		until = next.Format(ClockLayout)
	}

	res := &model.Reservation{
		OwnerID:   actor,
		Room:      room,
		DateStr:   dateStr,
		StartTime: Clock(hour),
		EndTime:   EffectiveEnd(hour, until),
	}
	if err := l.reservations.CreateTx(ctx, tx, res); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, false, ErrSlotTaken
		}
		return nil, false, err
	}

	forced := kind == model.RestrictionGroup
	if !forced {
		if forced, err = l.meta.ForceGroup(ctx); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	return res, forced, nil
}

// GroupAction applies join, leave or cancel against the reservation
// covering room/day/hour.  The covering row is locked FOR UPDATE for
// the whole transaction, so capacity, membership and succession
// decisions see a consistent group.  Combinations with nothing to do
// (joining a group you are in, leaving a group you are not in,
// cancelling someone else's booking, joining a full group) return a
// nil error with an informational message and change nothing.
func (l *Lifecycle) GroupAction(ctx context.Context, actor uint64, room string, day time.Time, hour int, action ActionKind) (*ActionResult, error) {
	dateStr := day.Format(DateLayout)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := l.reservations.FindCoveringTx(ctx, tx, room, dateStr, Clock(hour))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	out := &ActionResult{
		ReservationID: res.ID,
		Room:          res.Room,
		DateStr:       res.DateStr,
		StartTime:     res.StartTime,
		GroupSize:     res.Size(),
	}

	switch action {
	case ActionJoin:
		if res.IsMember(actor) {
			out.Message = "already in this group"
			return out, nil
		}
		if res.Size() >= MinGroupSize {
			out.Message = "group is full"
			return out, nil
		}
		monday, sunday := WeekWindow(day)
		used, err := l.reservations.WeeklyInvolvementTx(ctx, tx, actor,
			monday.Format(DateLayout), sunday.Format(DateLayout))
		if err != nil {
			return nil, err
		}
		if used >= MaxWeeklyQuota {
			return nil, ErrQuotaExceeded
		}
		if err := l.reservations.AddMemberTx(ctx, tx, res.ID, actor); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				out.Message = "already in this group"
				return out, nil
			}
			return nil, err
		}
		out.GroupSize = res.Size() + 1
		out.Message = fmt.Sprintf("joined group (%d/%d)", out.GroupSize, MinGroupSize)

	case ActionLeave:
		switch {
		case res.OwnerID == actor && len(res.Participants) > 0:
			// FIFO succession: the earliest joiner takes over.
			heir := res.Participants[0]
			if err := l.reservations.PromoteOwnerTx(ctx, tx, res.ID, actor, heir); err != nil {
				return nil, err
			}
			out.NewOwner = heir
			out.GroupSize = res.Size() - 1
			out.Message = "left group, ownership transferred"
		case res.OwnerID == actor:
			if err := l.reservations.DeleteTx(ctx, tx, res.ID); err != nil {
				return nil, err
			}
			out.Deleted = true
			out.GroupSize = 0
			out.Message = "reservation cancelled"
		case res.IsMember(actor):
			if err := l.reservations.RemoveMemberTx(ctx, tx, res.ID, actor); err != nil {
				return nil, err
			}
			out.GroupSize = res.Size() - 1
			out.Message = fmt.Sprintf("left group (%d/%d)", out.GroupSize, MinGroupSize)
		default:
			out.Message = "not a member of this group"
			return out, nil
		}

	case ActionCancel:
		if res.OwnerID != actor {
			out.Message = "only the owner can cancel"
			return out, nil
		}
		if err := l.reservations.DeleteTx(ctx, tx, res.ID); err != nil {
			return nil, err
		}
		out.Deleted = true
		out.GroupSize = 0
		out.Message = "reservation cancelled"

	default:
		out.Message = "unknown action"
		return out, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return out, nil
}
