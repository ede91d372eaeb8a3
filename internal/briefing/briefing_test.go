package briefing

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/civil"
	"github.com/lifeos-tools/attache/internal/conflict"
)

func zone(t *testing.T) *civil.Zone {
	t.Helper()
	z, err := civil.LoadZone("America/Toronto")
	require.NoError(t, err)
	return z
}

func utc(h, m int) time.Time {
	return time.Date(2026, 4, 6, h, m, 0, 0, time.UTC)
}

func appt(title string, h, m int) internal.Event {
	return internal.Event{
		Title: title, Kind: internal.KindAppointment,
		Start: utc(h, m), End: utc(h+1, m),
	}
}

func TestComposeSectionsInOrder(t *testing.T) {
	c := NewComposer(zone(t))
	now := utc(11, 0) // 07:00 in Toronto

	today := []internal.Event{appt("Dentist", 14, 0), appt("Board meeting", 15, 0)}
	tomorrow := []internal.Event{appt("Flight", 13, 0)}
	conflicts := conflict.Find([]internal.Event{
		func() internal.Event { e := appt("Dentist", 14, 0); e.SourceID = "a"; return e }(),
		func() internal.Event { e := appt("Standup", 14, 30); e.SourceID = "b"; return e }(),
	})

	out := c.Compose(now, today, tomorrow, conflicts, nil)

	require.Contains(t, out, "Briefing for Monday, April 6")
	header := strings.Index(out, "Briefing for")
	todayAt := strings.Index(out, "**Today**")
	tomorrowAt := strings.Index(out, "**Tomorrow**")
	conflictsAt := strings.Index(out, "**Conflicts**")
	closing := strings.Index(out, "💼")
	require.NotEqual(t, -1, todayAt)
	require.NotEqual(t, -1, tomorrowAt)
	require.NotEqual(t, -1, conflictsAt)
	require.NotEqual(t, -1, closing)
	assert.Less(t, header, todayAt)
	assert.Less(t, todayAt, tomorrowAt)
	assert.Less(t, tomorrowAt, conflictsAt)
	assert.Less(t, conflictsAt, closing)

	assert.Contains(t, out, "2 appointments")
	assert.Contains(t, out, "• 10:00: 📅 Dentist") // 14:00 UTC is 10:00 local
	assert.Contains(t, out, "overlaps")
}

func TestComposeEmptyDay(t *testing.T) {
	c := NewComposer(zone(t))
	out := c.Compose(utc(11, 0), nil, nil, nil, nil)
	assert.Contains(t, out, "nothing scheduled")
	assert.NotContains(t, out, "**Tomorrow**")
	assert.NotContains(t, out, "**Conflicts**")
	assert.Contains(t, out, "deep work")
}

func TestComposeCapsTodayList(t *testing.T) {
	c := NewComposer(zone(t))
	c.MaxToday = 2
	today := []internal.Event{
		appt("One", 12, 0), appt("Two", 13, 0), appt("Three", 14, 0), appt("Four", 15, 0),
	}
	out := c.Compose(utc(11, 0), today, nil, nil, nil)
	assert.Contains(t, out, "...and 2 more")
	assert.NotContains(t, out, "Three")
}

func TestComposeAllDayLine(t *testing.T) {
	c := NewComposer(zone(t))
	ev := internal.Event{Title: "Vacation", Kind: internal.KindTask, AllDay: true,
		Start: utc(4, 0), End: utc(4, 0).Add(24 * time.Hour)}
	out := c.Compose(utc(11, 0), []internal.Event{ev}, nil, nil, nil)
	assert.Contains(t, out, "• All Day: ✅ Vacation")
}

func TestComposeSourceWarnings(t *testing.T) {
	c := NewComposer(zone(t))
	errs := map[string]error{
		"tasks":        errors.New("timeout"),
		"appointments": errors.New("503"),
	}
	out := c.Compose(utc(11, 0), nil, nil, nil, errs)
	assert.Contains(t, out, "Heads up")
	// Deterministic order regardless of map iteration.
	assert.Less(t, strings.Index(out, "appointments"), strings.Index(out, "tasks"))
}

func TestComposeBudgetDropsTomorrowFirst(t *testing.T) {
	c := NewComposer(zone(t))
	today := []internal.Event{appt("Dentist", 14, 0), appt("Board meeting", 15, 0)}
	tomorrow := []internal.Event{appt("Flight to Lisbon", 13, 0), appt("Hotel checkin", 18, 0)}

	full := c.Compose(utc(11, 0), today, tomorrow, nil, nil)
	require.Contains(t, full, "**Tomorrow**")

	c.Budget = utf8.RuneCountInString(full) - 1
	trimmed := c.Compose(utc(11, 0), today, tomorrow, nil, nil)
	assert.NotContains(t, trimmed, "**Tomorrow**")
	assert.Contains(t, trimmed, "**Today**")
	assert.Contains(t, trimmed, "Dentist")
}

func TestComposeNeverExceedsBudget(t *testing.T) {
	c := NewComposer(zone(t))
	c.Budget = 120
	today := []internal.Event{
		appt("A very long meeting title that goes on", 12, 0),
		appt("Another endless appointment description", 13, 0),
		appt("Third one for good measure", 14, 0),
	}
	out := c.Compose(utc(11, 0), today, today, conflict.Find(nil), nil)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), 120)
	assert.NotEmpty(t, out)
}
