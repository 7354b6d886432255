package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART:20260302T100000Z\r\n" +
	"DTEND:20260302T120000Z\r\n" +
	"SUMMARY:Distributed Systems\r\n" +
	"LOCATION:CC P1.01 (visio), CC P2.03, Amphi B\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART;TZID=Europe/Paris:20260303T080000\r\n" +
	"DTEND;TZID=Europe/Paris:20260303T100000\r\n" +
	"SUMMARY:Algebra\r\n" +
	"LOCATION:CC P3.12\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART:20260304T090000Z\r\n" +
	"DTEND:20260304T110000Z\r\n" +
	"SUMMARY:No rooms here\r\n" +
	"LOCATION:Gymnasium\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseExpandsRoomsPerEvent(t *testing.T) {
	events, err := Parse(strings.NewReader(sampleICS))
	require.NoError(t, err)
	// First event has two campus rooms, second one, third none.
	require.Len(t, events, 3)

	assert.Equal(t, "CC P1.01", events[0].Room)
	assert.Equal(t, "CC P2.03", events[1].Room)
	assert.Equal(t, "Distributed Systems", events[0].Title)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), events[0].StartsAt)
	assert.Equal(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), events[0].EndsAt)

	assert.Equal(t, "CC P3.12", events[2].Room)
	assert.Equal(t, time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC), events[2].StartsAt)
}

func TestParseSkipsIncompleteEvents(t *testing.T) {
	ics := "BEGIN:VEVENT\r\nSUMMARY:broken\r\nLOCATION:CC P1.01\r\nEND:VEVENT\r\n"
	events, err := Parse(strings.NewReader(ics))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCleanRoomName(t *testing.T) {
	assert.Equal(t, "CC P1.01", CleanRoomName("  CC P1.01 (visio) "))
	assert.Equal(t, "CC P4.20", CleanRoomName("CC P4.20"))
	assert.Equal(t, "", CleanRoomName("   "))
}
