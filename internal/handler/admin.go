package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-room-booking/internal/booking"
	"github.com/iliyamo/campus-room-booking/internal/model"
	"github.com/iliyamo/campus-room-booking/internal/queue"
	"github.com/iliyamo/campus-room-booking/internal/repository"
	queue_publisher "github.com/iliyamo/campus-room-booking/internal/service"
)

// AdminHandler exposes restriction management, the global group policy,
// daily stats and room equipment tagging.
type AdminHandler struct {
	DB           *sql.DB
	Reservations *repository.ReservationRepo
	Restrictions *repository.RestrictionRepo
	Meta         *repository.MetadataRepo
	Equipment    *repository.EquipmentRepo
}

func NewAdminHandler(db *sql.DB, res *repository.ReservationRepo, restr *repository.RestrictionRepo,
	meta *repository.MetadataRepo, equip *repository.EquipmentRepo) *AdminHandler {
	return &AdminHandler{DB: db, Reservations: res, Restrictions: restr, Meta: meta, Equipment: equip}
}

type restrictionReq struct {
	Room string `json:"room"`
	Date string `json:"date"`
	Hour int    `json:"hour"`
	Kind string `json:"kind"` // NONE | BLOCK | GROUP | DAY_BLOCK
}

type massRestrictionReq struct {
	Rooms []string `json:"rooms"`
	Date  string   `json:"date"`
	Hours []int    `json:"hours"`
	Kind  string   `json:"kind"`
}

func parseKind(raw string) (model.RestrictionKind, bool) {
	switch kind := model.RestrictionKind(strings.ToUpper(strings.TrimSpace(raw))); kind {
	case model.RestrictionNone, model.RestrictionBlock, model.RestrictionGroup, model.RestrictionDayBlock:
		return kind, true
	}
	return "", false
}

// SetRestriction applies one restriction.  BLOCK purges reservations
// starting at that hour; DAY_BLOCK wipes the room's whole day and
// replaces every hourly row with the day sentinel.  Purge and
// restriction write commit in one transaction.
func (h *AdminHandler) SetRestriction(c echo.Context) error {
	var req restrictionReq
	if err := c.Bind(&req); err != nil || req.Room == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "room/date/hour/kind required"})
	}
	kind, ok := parseKind(req.Kind)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be NONE, BLOCK, GROUP or DAY_BLOCK"})
	}
	day, err := parseDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}
	if kind != model.RestrictionDayBlock && !validHour(req.Hour) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hour"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	purged, err := h.applyRestrictions(ctx, []string{req.Room}, day, []int{req.Hour}, kind)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "set restriction failed"})
	}
	h.publishRestriction(ctx, req.Room, day, kind, purged)

	return c.JSON(http.StatusOK, echo.Map{
		"room":   req.Room,
		"date":   day.Format(booking.DateLayout),
		"kind":   kind,
		"purged": len(purged),
	})
}

// SetRestrictionsMass applies one restriction kind across many rooms
// and hours, one transaction per room.  A room failing partway leaves
// the rooms already processed restricted, mirroring how a sequence of
// single-room calls would behave.
func (h *AdminHandler) SetRestrictionsMass(c echo.Context) error {
	var req massRestrictionReq
	if err := c.Bind(&req); err != nil || len(req.Rooms) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rooms/date/hours/kind required"})
	}
	kind, ok := parseKind(req.Kind)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be NONE, BLOCK, GROUP or DAY_BLOCK"})
	}
	day, err := parseDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}
	if kind == model.RestrictionDayBlock {
		req.Hours = []int{model.DayHour}
	}
	if len(req.Hours) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hours required"})
	}
	for _, hour := range req.Hours {
		if kind != model.RestrictionDayBlock && !validHour(hour) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hour"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	purged := 0
	for _, room := range req.Rooms {
		ids, err := h.applyRestrictions(ctx, []string{room}, day, req.Hours, kind)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "set restrictions failed"})
		}
		h.publishRestriction(ctx, room, day, kind, ids)
		purged += len(ids)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"rooms":  req.Rooms,
		"date":   day.Format(booking.DateLayout),
		"kind":   kind,
		"purged": purged,
	})
}

// applyRestrictions writes restriction rows and purges displaced
// reservations atomically, returning the purged reservation IDs.
func (h *AdminHandler) applyRestrictions(ctx context.Context, rooms []string, day time.Time, hours []int, kind model.RestrictionKind) ([]uint64, error) {
	dateStr := day.Format(booking.DateLayout)

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var purged []uint64
	for _, room := range rooms {
		switch kind {
		case model.RestrictionDayBlock:
			if err := h.Restrictions.SetTx(ctx, tx, room, dateStr, model.DayHour, kind); err != nil {
				return nil, err
			}
			ids, err := h.Reservations.DeleteByRoomDateTx(ctx, tx, room, dateStr)
			if err != nil {
				return nil, err
			}
			purged = append(purged, ids...)
		case model.RestrictionBlock:
			for _, hour := range hours {
				if err := h.Restrictions.SetTx(ctx, tx, room, dateStr, hour, kind); err != nil {
					return nil, err
				}
				ids, err := h.Reservations.DeleteByStartTx(ctx, tx, room, dateStr, booking.Clock(hour))
				if err != nil {
					return nil, err
				}
				purged = append(purged, ids...)
			}
		default: // NONE clears, GROUP marks; neither displaces bookings
			for _, hour := range hours {
				if err := h.Restrictions.SetTx(ctx, tx, room, dateStr, hour, kind); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return purged, nil
}

// publishRestriction emits events for an applied restriction: one per
// purged reservation, plus a day-block marker when the whole day went
// dark.  Publishing is best effort.
func (h *AdminHandler) publishRestriction(ctx context.Context, room string, day time.Time, kind model.RestrictionKind, purged []uint64) {
	now := time.Now().UTC().Format(time.RFC3339)
	dateStr := day.Format(booking.DateLayout)
	for _, id := range purged {
		_ = queue_publisher.PublishReservationEvent(ctx, queue.ReservationEvent{
			Type:          queue.EventReservationEvicted,
			ReservationID: id,
			Room:          room,
			Date:          dateStr,
			OccurredAt:    now,
		})
	}
	if kind == model.RestrictionDayBlock {
		_ = queue_publisher.PublishReservationEvent(ctx, queue.ReservationEvent{
			Type:       queue.EventAdminDayBlock,
			Room:       room,
			Date:       dateStr,
			OccurredAt: now,
		})
	}
}

type groupPolicyReq struct {
	Enabled bool `json:"enabled"`
}

// SetGroupPolicy flips the global force-group flag.  The flag lives in
// the metadata table so every instance sees the change immediately.
func (h *AdminHandler) SetGroupPolicy(c echo.Context) error {
	var req groupPolicyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Meta.SetForceGroup(ctx, req.Enabled); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update policy failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"force_group": req.Enabled})
}

// Stats returns the day's booking counts grouped by floor and hour.
func (h *AdminHandler) Stats(c echo.Context) error {
	day, err := parseDate(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stats, err := h.Reservations.StatsOnDate(ctx, day.Format(booking.DateLayout), floors)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load stats failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"date":  day.Format(booking.DateLayout),
		"stats": stats,
	})
}

type equipmentReq struct {
	Icon string `json:"icon"`
}

// ToggleEquipment flips one equipment icon on a room.
func (h *AdminHandler) ToggleEquipment(c echo.Context) error {
	room := c.Param("room")
	var req equipmentReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Icon) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "icon required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	set, err := h.Equipment.Toggle(ctx, room, strings.TrimSpace(req.Icon))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "toggle equipment failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"room": room, "icon": req.Icon, "set": set})
}
