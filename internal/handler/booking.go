package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-room-booking/internal/booking"
	"github.com/iliyamo/campus-room-booking/internal/queue"
	"github.com/iliyamo/campus-room-booking/internal/repository"
	queue_publisher "github.com/iliyamo/campus-room-booking/internal/service"
)

// BookingHandler exposes booking, group lifecycle, check-in and quota
// endpoints for members.
type BookingHandler struct {
	Lifecycle    *booking.Lifecycle
	Quota        *booking.QuotaService
	Checkins     *booking.CheckinService
	Reservations *repository.ReservationRepo
}

func NewBookingHandler(lc *booking.Lifecycle, q *booking.QuotaService,
	ck *booking.CheckinService, res *repository.ReservationRepo) *BookingHandler {
	return &BookingHandler{Lifecycle: lc, Quota: q, Checkins: ck, Reservations: res}
}

type slotReq struct {
	Room string `json:"room"`
	Date string `json:"date"`
	Hour int    `json:"hour"`
}

type groupActionReq struct {
	slotReq
	Action string `json:"action"` // join | leave | cancel
}

// Create books a free slot for the caller.
func (h *BookingHandler) Create(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req slotReq
	if err := c.Bind(&req); err != nil || req.Room == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "room/date/hour required"})
	}
	if !validHour(req.Hour) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hour"})
	}
	day, err := parseDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, forced, err := h.Lifecycle.Create(ctx, actor, req.Room, day, req.Hour)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSlotLocked):
			return c.JSON(http.StatusLocked, echo.Map{"error": "slot locked by admin"})
		case errors.Is(err, booking.ErrSlotTaken):
			return c.JSON(http.StatusConflict, echo.Map{"error": "slot already taken"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}

	_ = queue_publisher.PublishReservationEvent(ctx, queue.ReservationEvent{
		Type:          queue.EventReservationCreated,
		ReservationID: res.ID,
		UserID:        actor,
		Room:          res.Room,
		Date:          res.DateStr,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		GroupSize:     1,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"reservation": echo.Map{
			"id":         res.ID,
			"owner_id":   res.OwnerID,
			"room":       res.Room,
			"date":       res.DateStr,
			"start_time": res.StartTime,
			"end_time":   res.EndTime,
		},
		"group_forced": forced,
	})
}

// GroupAction joins, leaves or cancels the reservation covering a slot.
func (h *BookingHandler) GroupAction(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req groupActionReq
	if err := c.Bind(&req); err != nil || req.Room == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "room/date/hour/action required"})
	}
	if !validHour(req.Hour) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hour"})
	}
	day, err := parseDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}
	action := booking.ActionKind(strings.ToLower(strings.TrimSpace(req.Action)))
	switch action {
	case booking.ActionJoin, booking.ActionLeave, booking.ActionCancel:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action must be join, leave or cancel"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	out, err := h.Lifecycle.GroupAction(ctx, actor, req.Room, day, req.Hour, action)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no reservation covers this slot"})
		case errors.Is(err, booking.ErrQuotaExceeded):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "weekly quota exceeded"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "group action failed"})
	}

	if out.Deleted {
		_ = queue_publisher.PublishReservationEvent(ctx, queue.ReservationEvent{
			Type:          queue.EventReservationCancelled,
			ReservationID: out.ReservationID,
			UserID:        actor,
			Room:          out.Room,
			Date:          out.DateStr,
			StartTime:     out.StartTime,
			OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":        out.Message,
		"reservation_id": out.ReservationID,
		"group_size":     out.GroupSize,
		"deleted":        out.Deleted,
		"new_owner":      out.NewOwner,
	})
}

// MyReservations lists the caller's upcoming involvement.
func (h *BookingHandler) MyReservations(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	today := time.Now().UTC().Format(booking.DateLayout)
	list, err := h.Reservations.ListInvolvedFrom(ctx, actor, today)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list reservations failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// Checkin confirms the caller's presence on a reservation.
func (h *BookingHandler) Checkin(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	confirmed, err := h.Checkins.Confirm(ctx, id, actor, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, booking.ErrCheckinClosed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "check-in window closed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"confirmed": confirmed})
}

// MyQuota reports the caller's weekly usage.
func (h *BookingHandler) MyQuota(c echo.Context) error {
	actor, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ref, err := parseDate(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, used, err := h.Quota.Remaining(ctx, actor, ref)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "quota lookup failed"})
	}
	remaining := booking.MaxWeeklyQuota - used
	if remaining < 0 {
		remaining = 0
	}
	return c.JSON(http.StatusOK, echo.Map{
		"used":      used,
		"limit":     booking.MaxWeeklyQuota,
		"remaining": remaining,
		"can_book":  ok,
	})
}
