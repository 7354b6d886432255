// Package schedule ingests the campus timetable from iCalendar feeds
// and keeps a queryable copy in the database.  The class timetable is
// one of the three inputs to availability resolution; rooms themselves
// are derived from it rather than kept in a separate table.
package schedule

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/campus-room-booking/internal/model"
	"github.com/iliyamo/campus-room-booking/internal/repository"
)

// icalTimeLayout matches DTSTART/DTEND values after stripping a
// trailing Z; the feeds publish naive local timestamps.
const icalTimeLayout = "20060102T150405"

// roomPrefix filters LOCATION entries down to bookable rooms.
const roomPrefix = "CC P"

// Feed refreshes the timetable store from remote iCalendar sources.
type Feed struct {
	urls   []string
	ttl    time.Duration
	client *http.Client
	events *repository.ScheduleRepo
	meta   *repository.MetadataRepo
}

// NewFeed builds a Feed over the given sources.  A zero ttl disables
// the staleness gate, so every RefreshIfStale call refetches.
func NewFeed(urls []string, ttl time.Duration, events *repository.ScheduleRepo, meta *repository.MetadataRepo) *Feed {
	return &Feed{
		urls:   urls,
		ttl:    ttl,
		client: &http.Client{Timeout: 15 * time.Second},
		events: events,
		meta:   meta,
	}
}

// RefreshIfStale refetches the feeds when the last refresh is older
// than the TTL.  Feed failures are logged and swallowed: availability
// must keep answering from the last good timetable when the campus
// calendar server is down.
func (f *Feed) RefreshIfStale(ctx context.Context, now time.Time) {
	if len(f.urls) == 0 {
		return
	}
	last, err := f.meta.LastRefresh(ctx)
	if err != nil {
		log.Printf("schedule: read last refresh: %v", err)
		return
	}
	if !last.IsZero() && now.Sub(last) < f.ttl {
		return
	}
	if err := f.Refresh(ctx); err != nil {
		log.Printf("schedule: refresh failed: %v", err)
		return
	}
	if err := f.meta.SetLastRefresh(ctx, now); err != nil {
		log.Printf("schedule: record refresh: %v", err)
	}
}

// Refresh fetches every configured feed and replaces the stored
// timetable wholesale.  A single failing feed aborts the refresh so a
// partial fetch never shrinks the timetable.
func (f *Feed) Refresh(ctx context.Context) error {
	var events []model.ScheduleEvent
	for _, url := range f.urls {
		got, err := f.fetch(ctx, url)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		events = append(events, got...)
	}
	return f.events.ReplaceAll(ctx, events)
}

func (f *Feed) fetch(ctx context.Context, url string) ([]model.ScheduleEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}

// Parse reads an iCalendar stream and returns one event per bookable
// room in each VEVENT.  LOCATION may list several rooms separated by
// commas; entries that do not look like campus rooms are dropped, and
// trailing parenthesized annotations are stripped from room names.
func Parse(r io.Reader) ([]model.ScheduleEvent, error) {
	var (
		events  []model.ScheduleEvent
		inEvent bool
		start   time.Time
		end     time.Time
		title   string
		rooms   []string
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == "BEGIN:VEVENT":
			inEvent = true
			start, end, title, rooms = time.Time{}, time.Time{}, "", nil
		case line == "END:VEVENT":
			inEvent = false
			if start.IsZero() || end.IsZero() {
				continue
			}
			for _, room := range rooms {
				events = append(events, model.ScheduleEvent{
					Room:     room,
					StartsAt: start,
					EndsAt:   end,
					Title:    title,
				})
			}
		case !inEvent:
			continue
		case strings.HasPrefix(line, "DTSTART"):
			start = parseStamp(line)
		case strings.HasPrefix(line, "DTEND"):
			end = parseStamp(line)
		case strings.HasPrefix(line, "SUMMARY:"):
			title = strings.TrimPrefix(line, "SUMMARY:")
		case strings.HasPrefix(line, "LOCATION:"):
			rooms = splitRooms(strings.TrimPrefix(line, "LOCATION:"))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// parseStamp extracts the timestamp from a DTSTART/DTEND line,
// tolerating property parameters before the colon and a UTC suffix.
func parseStamp(line string) time.Time {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return time.Time{}
	}
	raw := strings.TrimSuffix(strings.TrimSpace(line[idx+1:]), "Z")
	t, err := time.Parse(icalTimeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// splitRooms breaks a LOCATION value into cleaned room names, keeping
// only campus meeting rooms.
func splitRooms(location string) []string {
	var rooms []string
	for _, part := range strings.Split(location, ",") {
		name := CleanRoomName(part)
		if strings.HasPrefix(name, roomPrefix) {
			rooms = append(rooms, name)
		}
	}
	return rooms
}

// CleanRoomName trims whitespace and removes a trailing parenthesized
// annotation ("CC P1.01 (visio)" becomes "CC P1.01").
func CleanRoomName(raw string) string {
	name := strings.TrimSpace(raw)
	if idx := strings.IndexByte(name, '('); idx > 0 {
		name = strings.TrimSpace(name[:idx])
	}
	return name
}
