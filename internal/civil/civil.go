package civil

import (
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-tools/attache/internal"
)

const (
	DateFormat   = "2006-01-02"
	MinuteFormat = "2006-01-02T15:04"
	SecondFormat = "2006-01-02T15:04:05"

	ClockFormat    = "15:04"
	LongDateFormat = "Monday, January 2"
)

// Zone is the one place civil strings become instants and instants become
// display text. Everything outside this package handles UTC only.
type Zone struct {
	loc *time.Location
}

func LoadZone(name string) (*Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", internal.ErrValidation, name)
	}
	return &Zone{loc: loc}, nil
}

func NewZone(loc *time.Location) *Zone {
	return &Zone{loc: loc}
}

func (z *Zone) Location() *time.Location {
	return z.loc
}

func (z *Zone) Name() string {
	return z.loc.String()
}

// ParseInstant converts a civil timestamp in this zone to a UTC instant.
// A bare date parses as local midnight and reports allDay true.
func (z *Zone) ParseInstant(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	var (
		layout string
		allDay bool
	)
	switch len(s) {
	case len(DateFormat):
		layout, allDay = DateFormat, true
	case len(MinuteFormat):
		layout = MinuteFormat
	case len(SecondFormat):
		layout = SecondFormat
	default:
		return time.Time{}, false, fmt.Errorf("%w: %q (want YYYY-MM-DD, optionally THH:MM or THH:MM:SS)", internal.ErrInvalidTime, s)
	}
	t, err := time.ParseInLocation(layout, s, z.loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %q", internal.ErrInvalidTime, s)
	}
	return t.UTC(), allDay, nil
}

// Display is an instant rendered for humans in the zone, 24-hour clock.
type Display struct {
	Date   string
	Clock  string
	Offset string
}

func (z *Zone) Display(t time.Time) Display {
	lt := t.In(z.loc)
	return Display{
		Date:   lt.Format(LongDateFormat),
		Clock:  lt.Format(ClockFormat),
		Offset: lt.Format("-07:00"),
	}
}

func (z *Zone) Clock(t time.Time) string {
	return t.In(z.loc).Format(ClockFormat)
}

func (z *Zone) LongDate(t time.Time) string {
	return t.In(z.loc).Format(LongDateFormat)
}

// DayKey groups instants by local calendar day.
func (z *Zone) DayKey(t time.Time) string {
	return t.In(z.loc).Format(DateFormat)
}

func (z *Zone) Weekday(t time.Time) time.Weekday {
	return t.In(z.loc).Weekday()
}

// DayWindow bounds the local civil day containing t, as UTC instants.
// Days crossing a DST shift come out 23 or 25 hours long.
func (z *Zone) DayWindow(t time.Time) (time.Time, time.Time) {
	lt := t.In(z.loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, z.loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// At places a wall-clock time on the local calendar day containing day.
func (z *Zone) At(day time.Time, hour, min int) time.Time {
	d := day.In(z.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 0, 0, z.loc).UTC()
}

// OnDay keeps the wall clock of timeOf but moves it to the local date of
// day. Date-only reschedules go through here, so a 15:00 appointment
// stays a 15:00 appointment on its new day.
func (z *Zone) OnDay(day, timeOf time.Time) time.Time {
	c := timeOf.In(z.loc)
	return z.At(day, c.Hour(), c.Minute())
}
