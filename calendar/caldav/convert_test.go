package caldav

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lifeos-tools/attache/internal"
)

func newTestClient(t *testing.T) Client {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	return Client{loc: loc, log: zap.NewNop()}
}

func testSource() *internal.Source {
	return &internal.Source{
		ID:         "family",
		Name:       "Family",
		Kind:       internal.KindAppointment,
		Platform:   internal.PlatformCalDAV,
		ProviderID: "/calendars/me/family/",
	}
}

func parseFixture(t *testing.T, raw string) *ical.Calendar {
	t.Helper()
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "\n", "\r\n") + "\r\n"
	cal, err := ical.NewDecoder(strings.NewReader(raw)).Decode()
	require.NoError(t, err)
	return cal
}

const singleEventICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:ev-1
DTSTAMP:20260401T000000Z
DTSTART:20260406T140000Z
DTEND:20260406T150000Z
SUMMARY:Dentist
LOCATION:12 King St
DESCRIPTION:bring insurance card
ATTENDEE:mailto:ana@example.com
END:VEVENT
END:VCALENDAR`

func TestEventsFromCalendarSingle(t *testing.T) {
	c := newTestClient(t)
	cal := parseFixture(t, singleEventICS)

	from := time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc)
	to := from.AddDate(0, 0, 7)
	events := c.eventsFromCalendar(testSource(), cal, from, to)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "ev-1", ev.ID)
	assert.Equal(t, "family", ev.SourceID)
	assert.Equal(t, "Dentist", ev.Title)
	assert.Equal(t, "12 King St", ev.Location)
	assert.Equal(t, []string{"ana@example.com"}, ev.Attendees)
	assert.False(t, ev.AllDay)
	// 14:00Z is 10:00 in Toronto during DST.
	assert.Equal(t, 10, ev.Start.Hour())
	assert.Equal(t, time.Hour, ev.Duration())
}

func TestEventsFromCalendarOutsideWindow(t *testing.T) {
	c := newTestClient(t)
	cal := parseFixture(t, singleEventICS)

	from := time.Date(2026, time.April, 20, 0, 0, 0, 0, c.loc)
	events := c.eventsFromCalendar(testSource(), cal, from, from.AddDate(0, 0, 7))
	assert.Empty(t, events)
}

func TestEventsFromCalendarAllDay(t *testing.T) {
	c := newTestClient(t)
	cal := parseFixture(t, `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:ad-1
DTSTAMP:20260401T000000Z
DTSTART;VALUE=DATE:20260406
DTEND;VALUE=DATE:20260407
SUMMARY:Moving day
END:VEVENT
END:VCALENDAR`)

	from := time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc)
	events := c.eventsFromCalendar(testSource(), cal, from, from.AddDate(0, 0, 7))

	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)
	assert.Equal(t, time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc), events[0].Start)
	assert.Equal(t, time.Date(2026, time.April, 7, 0, 0, 0, 0, c.loc), events[0].End)
}

func TestEventsFromCalendarMissingEnd(t *testing.T) {
	c := newTestClient(t)
	cal := parseFixture(t, `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:ne-1
DTSTAMP:20260401T000000Z
DTSTART:20260406T140000Z
SUMMARY:Quick check-in
END:VEVENT
END:VCALENDAR`)

	from := time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc)
	events := c.eventsFromCalendar(testSource(), cal, from, from.AddDate(0, 0, 7))

	require.Len(t, events, 1)
	assert.Equal(t, time.Hour, events[0].Duration())
}

const recurringICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:standup
DTSTAMP:20260401T000000Z
DTSTART:20260406T140000Z
DTEND:20260406T141500Z
SUMMARY:Standup
RRULE:FREQ=DAILY;COUNT=5
EXDATE:20260408T140000Z
END:VEVENT
END:VCALENDAR`

func TestExpandRecurring(t *testing.T) {
	c := newTestClient(t)
	cal := parseFixture(t, recurringICS)

	from := time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc)
	to := from.AddDate(0, 0, 7)
	events := c.eventsFromCalendar(testSource(), cal, from, to)

	// Five dailies minus the EXDATE on April 8.
	require.Len(t, events, 4)

	var ids []string
	for _, ev := range events {
		ids = append(ids, ev.ID)
		assert.Equal(t, "Standup", ev.Title)
		assert.Equal(t, 15*time.Minute, ev.Duration())
	}
	assert.Equal(t, []string{
		"standup#2026-04-06T14:00:00Z",
		"standup#2026-04-07T14:00:00Z",
		"standup#2026-04-09T14:00:00Z",
		"standup#2026-04-10T14:00:00Z",
	}, ids)
}

func TestExpandRecurringWindowClamp(t *testing.T) {
	c := newTestClient(t)
	cal := parseFixture(t, recurringICS)

	// A one-day window keeps exactly one instance.
	from := time.Date(2026, time.April, 7, 0, 0, 0, 0, c.loc)
	events := c.eventsFromCalendar(testSource(), cal, from, from.AddDate(0, 0, 1))

	require.Len(t, events, 1)
	assert.Equal(t, "standup#2026-04-07T14:00:00Z", events[0].ID)
}

func TestExpandRecurringOverride(t *testing.T) {
	c := newTestClient(t)
	cal := parseFixture(t, `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:standup
DTSTAMP:20260401T000000Z
DTSTART:20260406T140000Z
DTEND:20260406T141500Z
SUMMARY:Standup
RRULE:FREQ=DAILY;COUNT=3
END:VEVENT
BEGIN:VEVENT
UID:standup
DTSTAMP:20260401T000000Z
RECURRENCE-ID:20260407T140000Z
DTSTART:20260407T180000Z
DTEND:20260407T181500Z
SUMMARY:Standup (moved)
END:VEVENT
END:VCALENDAR`)

	from := time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc)
	events := c.eventsFromCalendar(testSource(), cal, from, from.AddDate(0, 0, 7))

	require.Len(t, events, 3)
	moved := events[1]
	// The instance key stays on the original slot even when the
	// override shifts the time.
	assert.Equal(t, "standup#2026-04-07T14:00:00Z", moved.ID)
	assert.Equal(t, "Standup (moved)", moved.Title)
	assert.Equal(t, 14, moved.Start.Hour()) // 18:00Z in Toronto
}

func TestEventsFromCalendarSkipsCancelled(t *testing.T) {
	c := newTestClient(t)
	cal := parseFixture(t, `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:gone
DTSTAMP:20260401T000000Z
DTSTART:20260406T140000Z
DTEND:20260406T150000Z
SUMMARY:Cancelled thing
STATUS:CANCELLED
END:VEVENT
END:VCALENDAR`)

	from := time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc)
	events := c.eventsFromCalendar(testSource(), cal, from, from.AddDate(0, 0, 7))
	assert.Empty(t, events)
}

func TestNewVEventRoundTrip(t *testing.T) {
	c := newTestClient(t)
	start := time.Date(2026, time.April, 6, 14, 0, 0, 0, c.loc)

	icalEvent := c.newVEvent(&internal.Event{
		Title:     "Dinner",
		Location:  "Casa Loma",
		Start:     start,
		End:       start.Add(2 * time.Hour),
		Attendees: []string{"bruno@example.com"},
	}, "uid-1")

	parsed, err := c.parseComponent(icalEvent.Component)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", parsed.uid)
	assert.Equal(t, "Dinner", parsed.summary)
	assert.Equal(t, "Casa Loma", parsed.location)
	assert.Equal(t, []string{"bruno@example.com"}, parsed.attendees)
	assert.False(t, parsed.allDay)
	assert.True(t, parsed.start.Equal(start))
	assert.Equal(t, 2*time.Hour, parsed.end.Sub(parsed.start))
}

func TestNewVEventAllDay(t *testing.T) {
	c := newTestClient(t)
	start := time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc)

	icalEvent := c.newVEvent(&internal.Event{
		Title:  "Conference",
		Start:  start,
		End:    start.AddDate(0, 0, 1),
		AllDay: true,
	}, "uid-2")

	startProp := icalEvent.Component.Props.Get("DTSTART")
	require.NotNil(t, startProp)
	assert.Equal(t, "20260406", startProp.Value)
	assert.Equal(t, "DATE", startProp.Params.Get("VALUE"))

	parsed, err := c.parseComponent(icalEvent.Component)
	require.NoError(t, err)
	assert.True(t, parsed.allDay)
	assert.True(t, parsed.start.Equal(start))
}

func TestApplyPatch(t *testing.T) {
	c := newTestClient(t)
	cal := parseFixture(t, singleEventICS)
	comp := findVEvent(cal, "ev-1")
	require.NotNil(t, comp)

	newStart := time.Date(2026, time.April, 7, 9, 0, 0, 0, c.loc)
	newEnd := newStart.Add(time.Hour)
	title := "Dentist (rebooked)"
	c.applyPatch(comp, internal.EventPatch{
		Title: &title,
		Start: &newStart,
		End:   &newEnd,
	})

	parsed, err := c.parseComponent(comp)
	require.NoError(t, err)
	assert.Equal(t, "Dentist (rebooked)", parsed.summary)
	assert.True(t, parsed.start.Equal(newStart))
	assert.True(t, parsed.end.Equal(newEnd))
	// Untouched fields survive the patch.
	assert.Equal(t, "12 King St", parsed.location)
}

func TestMasterUID(t *testing.T) {
	assert.Equal(t, "standup", masterUID("standup#2026-04-06T14:00:00Z"))
	assert.Equal(t, "plain", masterUID("plain"))
	assert.Equal(t, "standup#2026-04-06T14:00:00Z",
		instanceID("standup", time.Date(2026, time.April, 6, 14, 0, 0, 0, time.UTC)))
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "/calendars/me/family/uid-1.ics", objectPath("/calendars/me/family/", "uid-1"))
	assert.Equal(t, "/calendars/me/family/uid-1.ics", objectPath("/calendars/me/family", "uid-1"))
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, isNotFound(assert.AnError))
	assert.True(t, isNotFound(&statusError{msg: "HTTP 404 Not Found"}))
	assert.True(t, isNotFound(&statusError{msg: "object not found"}))
}

type statusError struct{ msg string }

func (e *statusError) Error() string { return e.msg }
