package handler

import (
	"context"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-room-booking/internal/booking"
	"github.com/iliyamo/campus-room-booking/internal/model"
	"github.com/iliyamo/campus-room-booking/internal/queue"
	"github.com/iliyamo/campus-room-booking/internal/repository"
	"github.com/iliyamo/campus-room-booking/internal/schedule"
	queue_publisher "github.com/iliyamo/campus-room-booking/internal/service"
)

// AvailabilityHandler serves the room grid and single-slot lookups.
type AvailabilityHandler struct {
	Reservations *repository.ReservationRepo
	Restrictions *repository.RestrictionRepo
	Schedule     *repository.ScheduleRepo
	Meta         *repository.MetadataRepo
	Equipment    *repository.EquipmentRepo
	Feed         *schedule.Feed
	Checkins     *booking.CheckinService
}

func NewAvailabilityHandler(res *repository.ReservationRepo, restr *repository.RestrictionRepo,
	sched *repository.ScheduleRepo, meta *repository.MetadataRepo, equip *repository.EquipmentRepo,
	feed *schedule.Feed, checkins *booking.CheckinService) *AvailabilityHandler {
	return &AvailabilityHandler{
		Reservations: res, Restrictions: restr, Schedule: sched,
		Meta: meta, Equipment: equip, Feed: feed, Checkins: checkins,
	}
}

type roomGrid struct {
	Room      string                      `json:"room"`
	Floor     string                      `json:"floor"`
	Equipment []string                    `json:"equipment"`
	Slots     map[string]booking.SlotView `json:"slots"`
}

// Grid resolves every room and hour of a date for the viewer.  When
// the date is today it first refreshes the timetable feed (TTL-gated)
// and runs the no-show sweep, so the grid never shows a reservation
// that should already have been evicted.
func (h *AvailabilityHandler) Grid(c echo.Context) error {
	viewer, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	day, err := parseDate(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}
	floor := strings.ToUpper(strings.TrimSpace(c.QueryParam("floor")))
	onlyHour := -1
	if raw := c.QueryParam("hour"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || !validHour(h) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hour"})
		}
		onlyHour = h
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if isToday(day) {
		h.Feed.RefreshIfStale(ctx, time.Now().UTC())
		h.runSweep(ctx)
	}

	snap, err := h.loadDay(ctx, day)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load availability failed"})
	}

	grids := make([]roomGrid, 0, len(snap.rooms))
	for _, room := range snap.rooms {
		if floor != "" && floorOf(room) != floor {
			continue
		}
		rg := roomGrid{
			Room:      room,
			Floor:     floorOf(room),
			Equipment: snap.equipment[room],
			Slots:     make(map[string]booking.SlotView, booking.DayEndHour-booking.DayStartHour),
		}
		if rg.Equipment == nil {
			rg.Equipment = []string{}
		}
		for hour := booking.DayStartHour; hour < booking.DayEndHour; hour++ {
			if onlyHour >= 0 && hour != onlyHour {
				continue
			}
			rg.Slots[booking.Clock(hour)] = booking.Resolve(booking.SlotInput{
				Restriction:  snap.restrictions[repository.RestrictionKey(room, hour)],
				ForceGroup:   snap.forceGroup,
				Events:       snap.events[room],
				Reservations: snap.reservations[room],
				Viewer:       viewer,
				Hour:         hour,
			})
		}
		grids = append(grids, rg)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"date":  day.Format(booking.DateLayout),
		"rooms": grids,
	})
}

// Slot resolves one room/hour for the viewer.  Like Grid, a lookup
// for today first refreshes the timetable feed and sweeps no-shows,
// so a reservation past its check-in grace never resolves as taken.
func (h *AvailabilityHandler) Slot(c echo.Context) error {
	viewer, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	room := c.Param("room")
	day, err := parseDate(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}
	hour, err := strconv.Atoi(c.QueryParam("hour"))
	if err != nil || !validHour(hour) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hour"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if isToday(day) {
		h.Feed.RefreshIfStale(ctx, time.Now().UTC())
		h.runSweep(ctx)
	}

	snap, err := h.loadDay(ctx, day)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load availability failed"})
	}

	view := booking.Resolve(booking.SlotInput{
		Restriction:  snap.restrictions[repository.RestrictionKey(room, hour)],
		ForceGroup:   snap.forceGroup,
		Events:       snap.events[room],
		Reservations: snap.reservations[room],
		Viewer:       viewer,
		Hour:         hour,
	})
	equipment := snap.equipment[room]
	if equipment == nil {
		equipment = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"room":      room,
		"date":      day.Format(booking.DateLayout),
		"hour":      booking.Clock(hour),
		"slot":      view,
		"equipment": equipment,
	})
}

// daySnapshot holds everything availability resolution needs for one
// date, loaded once per request.
type daySnapshot struct {
	rooms        []string
	events       map[string][]model.ScheduleEvent
	reservations map[string][]repository.SlotReservation
	restrictions map[string]model.RestrictionKind
	equipment    map[string][]string
	forceGroup   bool
}

func (h *AvailabilityHandler) loadDay(ctx context.Context, day time.Time) (*daySnapshot, error) {
	events, err := h.Schedule.EventsOn(ctx, day)
	if err != nil {
		return nil, err
	}
	reservations, err := h.Reservations.ListByDate(ctx, day.Format(booking.DateLayout))
	if err != nil {
		return nil, err
	}
	restrictions, err := h.Restrictions.ListForDate(ctx, day.Format(booking.DateLayout))
	if err != nil {
		return nil, err
	}
	equipment, err := h.Equipment.IconsByRoom(ctx)
	if err != nil {
		return nil, err
	}
	forceGroup, err := h.Meta.ForceGroup(ctx)
	if err != nil {
		return nil, err
	}

	snap := &daySnapshot{
		events:       make(map[string][]model.ScheduleEvent),
		reservations: make(map[string][]repository.SlotReservation),
		restrictions: restrictions,
		equipment:    equipment,
		forceGroup:   forceGroup,
	}
	seen := map[string]bool{}
	for _, ev := range events {
		snap.events[ev.Room] = append(snap.events[ev.Room], ev)
		seen[ev.Room] = true
	}
	for _, res := range reservations {
		snap.reservations[res.Room] = append(snap.reservations[res.Room], res)
		seen[res.Room] = true
	}
	// Rooms known only from the timetable on other days still belong
	// on the grid.
	allRooms, err := h.Schedule.AllRooms(ctx)
	if err != nil {
		return nil, err
	}
	for _, room := range allRooms {
		seen[room] = true
	}
	for room := range seen {
		snap.rooms = append(snap.rooms, room)
	}
	sort.Strings(snap.rooms)
	return snap, nil
}

// runSweep evicts no-shows and publishes one event per eviction.
// Failures are logged and swallowed: the grid must render regardless.
func (h *AvailabilityHandler) runSweep(ctx context.Context) {
	evicted, err := h.Checkins.EvictNoShows(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("sweep: evict no-shows failed: %v", err)
		return
	}
	for _, ev := range evicted {
		_ = queue_publisher.PublishReservationEvent(ctx, queue.ReservationEvent{
			Type:          queue.EventReservationEvicted,
			ReservationID: ev.ReservationID,
			UserID:        ev.OwnerID,
			Room:          ev.Room,
			Date:          ev.DateStr,
			StartTime:     ev.StartTime,
			OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// floorOf maps a room name to its floor bucket, empty when unknown.
func floorOf(room string) string {
	for _, f := range floors {
		if strings.Contains(room, f) {
			return f
		}
	}
	return ""
}
