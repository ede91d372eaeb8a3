package google

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

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
		ID:         "work",
		Name:       "Work",
		Kind:       internal.KindAppointment,
		Platform:   internal.PlatformGoogle,
		ProviderID: "primary",
	}
}

func TestNewEventTimed(t *testing.T) {
	c := newTestClient(t)

	ev := c.newEvent(testSource(), &calendar.Event{
		Id:          "ev1",
		Summary:     "Design review",
		Description: "bring the mockups",
		Location:    "Room 4",
		HtmlLink:    "https://calendar.google.com/event?eid=ev1",
		Start:       &calendar.EventDateTime{DateTime: "2026-04-06T14:00:00-04:00"},
		End:         &calendar.EventDateTime{DateTime: "2026-04-06T15:00:00-04:00"},
		Attendees: []*calendar.EventAttendee{
			{Email: "ana@example.com"},
			{Email: "room-4@resource.calendar.google.com", Resource: true},
			{DisplayName: "no email"},
			{Email: "bruno@example.com"},
		},
	})

	assert.Equal(t, "work", ev.SourceID)
	assert.Equal(t, "ev1", ev.ID)
	assert.Equal(t, "Design review", ev.Title)
	assert.Equal(t, "Room 4", ev.Location)
	assert.Equal(t, "https://calendar.google.com/event?eid=ev1", ev.Link)
	assert.False(t, ev.AllDay)
	assert.Equal(t, []string{"ana@example.com", "bruno@example.com"}, ev.Attendees)
	assert.Equal(t, time.Hour, ev.Duration())
	assert.Equal(t, 14, ev.Start.In(c.loc).Hour())
}

func TestNewEventAllDay(t *testing.T) {
	c := newTestClient(t)

	ev := c.newEvent(testSource(), &calendar.Event{
		Id:      "d1",
		Summary: "Conference",
		Start:   &calendar.EventDateTime{Date: "2026-04-06"},
		End:     &calendar.EventDateTime{Date: "2026-04-07"},
	})

	assert.True(t, ev.AllDay)
	assert.Equal(t, time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc), ev.Start)
	assert.Equal(t, time.Date(2026, time.April, 7, 0, 0, 0, 0, c.loc), ev.End)
}

func TestNewEventMissingEnd(t *testing.T) {
	c := newTestClient(t)

	timed := c.newEvent(testSource(), &calendar.Event{
		Id:    "t1",
		Start: &calendar.EventDateTime{DateTime: "2026-04-06T09:30:00-04:00"},
	})
	assert.Equal(t, time.Hour, timed.Duration())

	allDay := c.newEvent(testSource(), &calendar.Event{
		Id:    "a1",
		Start: &calendar.EventDateTime{Date: "2026-04-06"},
	})
	assert.True(t, allDay.AllDay)
	assert.Equal(t, time.Date(2026, time.April, 7, 0, 0, 0, 0, c.loc), allDay.End)
}

func TestNewGoogleEvent(t *testing.T) {
	c := newTestClient(t)
	start := time.Date(2026, time.April, 6, 14, 0, 0, 0, c.loc)

	gevent := c.newGoogleEvent(&internal.Event{
		Title:     "Dentist",
		Start:     start,
		End:       start.Add(30 * time.Minute),
		Attendees: []string{"ana@example.com"},
	})

	require.NotNil(t, gevent.Start)
	assert.Equal(t, "2026-04-06T14:00:00-04:00", gevent.Start.DateTime)
	assert.Equal(t, "America/Toronto", gevent.Start.TimeZone)
	assert.Empty(t, gevent.Start.Date)
	require.Len(t, gevent.Attendees, 1)
	assert.Equal(t, "ana@example.com", gevent.Attendees[0].Email)
	require.NotNil(t, gevent.Reminders)
	assert.True(t, gevent.Reminders.UseDefault)
}

func TestNewGoogleEventAllDay(t *testing.T) {
	c := newTestClient(t)
	start := time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc)

	gevent := c.newGoogleEvent(&internal.Event{
		Title:  "Conference",
		Start:  start,
		End:    start.AddDate(0, 0, 1),
		AllDay: true,
	})

	assert.Equal(t, "2026-04-06", gevent.Start.Date)
	assert.Equal(t, "2026-04-07", gevent.End.Date)
	assert.Empty(t, gevent.Start.DateTime)
}

func TestNewGooglePatchSparse(t *testing.T) {
	c := newTestClient(t)
	start := time.Date(2026, time.April, 6, 16, 0, 0, 0, c.loc)
	end := start.Add(time.Hour)

	gevent := c.newGooglePatch(internal.EventPatch{Start: &start, End: &end})

	assert.Empty(t, gevent.Summary)
	assert.Empty(t, gevent.Location)
	require.NotNil(t, gevent.Start)
	assert.Equal(t, "2026-04-06T16:00:00-04:00", gevent.Start.DateTime)
	assert.Nil(t, gevent.Reminders)
}

func TestNewGooglePatchAllDay(t *testing.T) {
	c := newTestClient(t)
	start := time.Date(2026, time.April, 6, 0, 0, 0, 0, c.loc)
	end := start.AddDate(0, 0, 1)
	allDay := true

	gevent := c.newGooglePatch(internal.EventPatch{Start: &start, End: &end, AllDay: &allDay})

	assert.Equal(t, "2026-04-06", gevent.Start.Date)
	assert.Equal(t, "2026-04-07", gevent.End.Date)
	assert.Empty(t, gevent.Start.DateTime)
}

func TestWrapErr(t *testing.T) {
	c := newTestClient(t)
	src := testSource()

	err := c.wrapErr(src, &googleapi.Error{Code: 404, Message: "Not Found"})
	assert.ErrorIs(t, err, internal.ErrNotFound)

	err = c.wrapErr(src, &googleapi.Error{Code: 410, Message: "Gone"})
	assert.ErrorIs(t, err, internal.ErrNotFound)

	err = c.wrapErr(src, &googleapi.Error{Code: 400, Message: "Bad Request"})
	assert.ErrorIs(t, err, internal.ErrValidation)

	err = c.wrapErr(src, &googleapi.Error{Code: 500, Message: "Backend Error"})
	assert.ErrorIs(t, err, internal.ErrSourceUnavailable)

	err = c.wrapErr(src, &googleapi.Error{Code: 403, Message: "Forbidden"})
	assert.ErrorIs(t, err, internal.ErrSourceUnavailable)

	err = c.wrapErr(src, errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, internal.ErrSourceUnavailable)

	err = c.wrapErr(src, context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, internal.ErrSourceUnavailable)
}

func TestAlreadyDeleted(t *testing.T) {
	gErr := &googleapi.Error{
		Code:   410,
		Errors: []googleapi.ErrorItem{{Reason: "deleted"}},
	}
	assert.True(t, alreadyDeleted(gErr))
	assert.False(t, alreadyDeleted(&googleapi.Error{Code: 410}))
	assert.False(t, alreadyDeleted(errors.New("gone")))
}
