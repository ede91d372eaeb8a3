package avail

import (
	"fmt"
	"sort"
	"time"

	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/civil"
)

// Interval is a half-open [Start, End) span in UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// FromEvents projects timed events onto busy intervals. All-day entries
// are context, not blockers, so they are skipped.
func FromEvents(events []internal.Event) []Interval {
	out := make([]Interval, 0, len(events))
	for _, ev := range events {
		if ev.AllDay || !ev.End.After(ev.Start) {
			continue
		}
		out = append(out, Interval{Start: ev.Start, End: ev.End})
	}
	return out
}

// Merge sorts and coalesces overlapping or touching intervals.
func Merge(busy []Interval) []Interval {
	out := append([]Interval(nil), busy...)
	if len(out) < 2 {
		return out
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	merged := out[:1]
	for _, iv := range out[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Bounds narrows the scannable part of a day, e.g. business hours 9 to
// 17. The zero value means the whole civil day.
type Bounds struct {
	StartHour int
	EndHour   int
}

func (b Bounds) orWholeDay() Bounds {
	if b.StartHour == 0 && b.EndHour == 0 {
		return Bounds{StartHour: 0, EndHour: 24}
	}
	return b
}

// FindFreeSlot returns the earliest gap of at least d within the bounded
// civil day containing day. Busy spans may overlap and arrive unsorted.
func FindFreeSlot(zone *civil.Zone, day time.Time, d time.Duration, busy []Interval, b Bounds) (Interval, error) {
	if d <= 0 {
		return Interval{}, fmt.Errorf("%w: duration must be positive", internal.ErrValidation)
	}
	b = b.orWholeDay()
	from := zone.At(day, b.StartHour, 0)
	until := zone.At(day, b.EndHour, 0)

	cursor := from
	for _, iv := range Merge(busy) {
		if !iv.End.After(cursor) {
			continue
		}
		if !iv.Start.Before(until) {
			break
		}
		if iv.Start.Sub(cursor) >= d {
			return Interval{Start: cursor, End: cursor.Add(d)}, nil
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
	}
	if until.Sub(cursor) >= d {
		return Interval{Start: cursor, End: cursor.Add(d)}, nil
	}
	return Interval{}, fmt.Errorf("%w: no free %s on %s", internal.ErrNotFound, d, zone.DayKey(day))
}

// Weekdays filters Search to preferred days. Empty means every day.
type Weekdays []time.Weekday

func (w Weekdays) contains(d time.Weekday) bool {
	if len(w) == 0 {
		return true
	}
	for _, x := range w {
		if x == d {
			return true
		}
	}
	return false
}

// Search collects the earliest free slot per civil day over a horizon of
// days, starting with the day containing from. The first day is scanned
// from `from` onward; time already behind us is not free.
func Search(zone *civil.Zone, from time.Time, days int, d time.Duration, busy []Interval, b Bounds, prefer Weekdays) []Interval {
	loc := zone.Location()
	lt := from.In(loc)

	var out []Interval
	for i := 0; i < days; i++ {
		noon := time.Date(lt.Year(), lt.Month(), lt.Day()+i, 12, 0, 0, 0, loc)
		if !prefer.contains(noon.Weekday()) {
			continue
		}
		dayBusy := busy
		if i == 0 {
			dayStart, _ := zone.DayWindow(from)
			if from.After(dayStart) {
				dayBusy = append(append([]Interval(nil), busy...), Interval{Start: dayStart, End: from})
			}
		}
		slot, err := FindFreeSlot(zone, noon, d, dayBusy, b)
		if err != nil {
			continue
		}
		out = append(out, slot)
	}
	return out
}
