package caldav

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/lifeos-tools/attache/internal"
)

const (
	icsDateLayout     = "20060102"
	icsDateTimeLayout = "20060102T150405"
	icsUTCStampLayout = "20060102T150405Z"
	calendarProductID = "-//lifeos-tools//attache//EN"
	calendarVersion   = "2.0"
)

// parsedEvent is a VEVENT with its recurrence machinery still attached.
type parsedEvent struct {
	uid         string
	summary     string
	description string
	location    string
	attendees   []string

	start  time.Time
	end    time.Time
	allDay bool

	rawRRule     string
	exDates      []time.Time
	recurrenceID *time.Time

	cancelled bool
}

func (c Client) eventsFromCalendar(src *internal.Source, cal *ical.Calendar, from, to time.Time) []internal.Event {
	if cal == nil {
		return nil
	}

	var masters []parsedEvent
	overrides := make(map[string][]parsedEvent)

	for _, comp := range cal.Component.Children {
		if comp.Name != "VEVENT" {
			continue
		}
		ev, err := c.parseComponent(comp)
		if err != nil {
			c.log.Warn("skipping unparsable vevent",
				zap.String("source", src.ID),
				zap.Error(err))
			continue
		}
		if ev.cancelled {
			continue
		}
		if ev.recurrenceID != nil {
			overrides[ev.uid] = append(overrides[ev.uid], ev)
			continue
		}
		masters = append(masters, ev)
	}

	var out []internal.Event
	for _, ev := range masters {
		out = append(out, c.expand(src, ev, overrides[ev.uid], from, to)...)
	}
	return out
}

func (c Client) parseComponent(comp *ical.Component) (parsedEvent, error) {
	var out parsedEvent

	out.uid = getTextProp(comp.Props, "UID")
	if out.uid == "" {
		return out, errors.New("vevent has no uid")
	}
	out.summary = getTextProp(comp.Props, "SUMMARY")
	out.description = getTextProp(comp.Props, "DESCRIPTION")
	out.location = getTextProp(comp.Props, "LOCATION")
	out.cancelled = strings.EqualFold(getTextProp(comp.Props, "STATUS"), "CANCELLED")

	for _, prop := range comp.Props["ATTENDEE"] {
		email := strings.TrimPrefix(strings.TrimPrefix(prop.Value, "mailto:"), "MAILTO:")
		if email != "" {
			out.attendees = append(out.attendees, email)
		}
	}

	startProp := comp.Props.Get("DTSTART")
	if startProp == nil {
		return out, errors.New("vevent has no dtstart")
	}
	out.allDay = isDateValue(startProp)

	start, err := comp.Props.DateTime("DTSTART", c.loc)
	if err != nil {
		return out, fmt.Errorf("parsing dtstart: %v", err)
	}
	out.start = start

	end, err := comp.Props.DateTime("DTEND", c.loc)
	if err != nil || end.IsZero() {
		if out.allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start.Add(time.Hour)
		}
	}
	out.end = end

	if p := comp.Props.Get("RRULE"); p != nil {
		out.rawRRule = p.Value
	}
	for _, prop := range comp.Props["EXDATE"] {
		for _, part := range strings.Split(prop.Value, ",") {
			if t, err := parseStamp(part, start.Location()); err == nil {
				out.exDates = append(out.exDates, t)
			}
		}
	}
	if p := comp.Props.Get("RECURRENCE-ID"); p != nil {
		if t, err := parseStamp(p.Value, start.Location()); err == nil {
			out.recurrenceID = &t
		}
	}

	return out, nil
}

// expand turns one master VEVENT into the concrete instances that touch
// [from, to), applying RRULE, EXDATE and RECURRENCE-ID overrides.
func (c Client) expand(src *internal.Source, ev parsedEvent, overrides []parsedEvent, from, to time.Time) []internal.Event {
	if ev.rawRRule == "" {
		if !ev.start.Before(to) || !ev.end.After(from) {
			return nil
		}
		return []internal.Event{c.toEvent(src, ev, ev.uid, ev.start, ev.end)}
	}

	rule, err := rrule.StrToRRule(ev.rawRRule)
	if err != nil {
		c.log.Warn("unparsable rrule, keeping master only",
			zap.String("uid", ev.uid),
			zap.Error(err))
		return []internal.Event{c.toEvent(src, ev, ev.uid, ev.start, ev.end)}
	}
	rule.DTStart(ev.start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.exDates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	// Expansion starts one duration early so an instance already running
	// at from is not lost.
	dur := ev.end.Sub(ev.start)
	loc := ev.start.Location()
	lo := from.Add(-dur).In(loc)

	var out []internal.Event
	for _, occStart := range set.Between(lo, to.In(loc), true) {
		occEnd := occStart.Add(dur)
		if ev.allDay {
			day := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, c.loc)
			occStart = day
			occEnd = day.AddDate(0, 0, 1)
		}

		start, end, inst := occStart, occEnd, ev
		if o := overrideFor(overrides, occStart); o != nil {
			start, end, inst = o.start, o.end, *o
		}
		if !start.Before(to) || !end.After(from) {
			continue
		}
		out = append(out, c.toEvent(src, inst, instanceID(ev.uid, occStart), start, end))
	}
	return out
}

func overrideFor(overrides []parsedEvent, start time.Time) *parsedEvent {
	for i := range overrides {
		rid := overrides[i].recurrenceID
		if rid != nil && rid.Equal(start) {
			return &overrides[i]
		}
	}
	return nil
}

func (c Client) toEvent(src *internal.Source, ev parsedEvent, id string, start, end time.Time) internal.Event {
	return internal.Event{
		SourceID:    src.ID,
		ID:          id,
		Title:       ev.summary,
		Description: ev.description,
		Location:    ev.location,
		Start:       start.In(c.loc),
		End:         end.In(c.loc),
		AllDay:      ev.allDay,
		Attendees:   ev.attendees,
	}
}

// instanceID keeps each occurrence of a series addressable; mutations
// strip the suffix and act on the whole series.
func instanceID(uid string, start time.Time) string {
	return uid + "#" + start.UTC().Format(time.RFC3339)
}

func masterUID(id string) string {
	uid, _, _ := strings.Cut(id, "#")
	return uid
}

func (c Client) newVEvent(ev *internal.Event, uid string) *ical.Event {
	icalEvent := ical.NewEvent()
	props := icalEvent.Component.Props

	props.SetText("UID", uid)
	props.SetDateTime("DTSTAMP", time.Now().UTC())
	props.SetText("SUMMARY", ev.Title)
	if ev.Description != "" {
		props.SetText("DESCRIPTION", ev.Description)
	}
	if ev.Location != "" {
		props.SetText("LOCATION", ev.Location)
	}
	c.setWhen(props, "DTSTART", ev.Start, ev.AllDay)
	c.setWhen(props, "DTEND", ev.End, ev.AllDay)
	props.SetText("STATUS", "CONFIRMED")
	for _, email := range ev.Attendees {
		props.Add(&ical.Prop{
			Name:   "ATTENDEE",
			Params: make(ical.Params),
			Value:  "mailto:" + email,
		})
	}

	return icalEvent
}

func (c Client) applyPatch(comp *ical.Component, patch internal.EventPatch) {
	if patch.Title != nil {
		comp.Props.SetText("SUMMARY", *patch.Title)
	}
	if patch.Description != nil {
		comp.Props.SetText("DESCRIPTION", *patch.Description)
	}
	if patch.Location != nil {
		comp.Props.SetText("LOCATION", *patch.Location)
	}
	if patch.Start != nil {
		c.setWhen(comp.Props, "DTSTART", *patch.Start, patch.IsAllDay())
	}
	if patch.End != nil {
		c.setWhen(comp.Props, "DTEND", *patch.End, patch.IsAllDay())
	}
	comp.Props.SetDateTime("DTSTAMP", time.Now().UTC())
}

// setWhen writes timed values in UTC so no VTIMEZONE component is
// needed, and all-day values as bare dates.
func (c Client) setWhen(props ical.Props, name string, t time.Time, allDay bool) {
	if allDay {
		p := &ical.Prop{
			Name:   name,
			Params: make(ical.Params),
			Value:  t.In(c.loc).Format(icsDateLayout),
		}
		p.Params["VALUE"] = []string{"DATE"}
		props.Set(p)
		return
	}
	props.SetDateTime(name, t.UTC())
}

func newCalendarDoc(event *ical.Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText("VERSION", calendarVersion)
	cal.Props.SetText("PRODID", calendarProductID)
	cal.Component.Children = append(cal.Component.Children, event.Component)
	return cal
}

func isDateValue(prop *ical.Prop) bool {
	if strings.EqualFold(prop.Params.Get("VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

func parseStamp(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse(icsUTCStampLayout, v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation(icsDateTimeLayout, v, loc)
	default:
		return time.ParseInLocation(icsDateLayout, v, loc)
	}
}

func getTextProp(props ical.Props, name string) string {
	prop := props.Get(name)
	if prop == nil {
		return ""
	}
	return prop.Value
}
