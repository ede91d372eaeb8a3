package google

import (
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/lifeos-tools/attache/internal"
)

const dateLayout = "2006-01-02"

func (c Client) newEvent(src *internal.Source, gevent *calendar.Event) internal.Event {
	ev := internal.Event{
		SourceID:    src.ID,
		ID:          gevent.Id,
		Title:       gevent.Summary,
		Description: gevent.Description,
		Location:    gevent.Location,
		Link:        gevent.HtmlLink,
	}
	for _, attendee := range gevent.Attendees {
		if attendee.Email == "" || attendee.Resource {
			continue
		}
		ev.Attendees = append(ev.Attendees, attendee.Email)
	}

	ev.Start, ev.AllDay = c.parseWhen(gevent.Start)
	ev.End, _ = c.parseWhen(gevent.End)
	if ev.End.IsZero() {
		// Google omits the end on some entries; give them an hour, or
		// the civil day for date-only ones.
		if ev.AllDay {
			ev.End = ev.Start.AddDate(0, 0, 1)
		} else {
			ev.End = ev.Start.Add(time.Hour)
		}
	}
	return ev
}

// parseWhen reads either wire form: dateTime for timed events, date for
// all-day ones. Date-only values are anchored at local midnight.
func (c Client) parseWhen(when *calendar.EventDateTime) (time.Time, bool) {
	if when == nil {
		return time.Time{}, false
	}
	if when.DateTime != "" {
		t, err := time.Parse(time.RFC3339, when.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t.In(c.loc), false
	}
	if when.Date != "" {
		t, err := time.ParseInLocation(dateLayout, when.Date, c.loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func (c Client) newGoogleEvent(ev *internal.Event) *calendar.Event {
	gevent := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       c.newWhen(ev.Start, ev.AllDay),
		End:         c.newWhen(ev.End, ev.AllDay),
		Reminders: &calendar.EventReminders{
			UseDefault: true,
		},
	}
	for _, email := range ev.Attendees {
		gevent.Attendees = append(gevent.Attendees, &calendar.EventAttendee{Email: email})
	}
	return gevent
}

func (c Client) newGooglePatch(patch internal.EventPatch) *calendar.Event {
	gevent := new(calendar.Event)
	if patch.Title != nil {
		gevent.Summary = *patch.Title
	}
	if patch.Description != nil {
		gevent.Description = *patch.Description
	}
	if patch.Location != nil {
		gevent.Location = *patch.Location
	}
	if patch.Start != nil {
		gevent.Start = c.newWhen(*patch.Start, patch.IsAllDay())
	}
	if patch.End != nil {
		gevent.End = c.newWhen(*patch.End, patch.IsAllDay())
	}
	return gevent
}

func (c Client) newWhen(t time.Time, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.In(c.loc).Format(dateLayout)}
	}
	return &calendar.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: c.loc.String(),
	}
}
