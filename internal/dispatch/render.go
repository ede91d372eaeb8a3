package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/avail"
	"github.com/lifeos-tools/attache/internal/civil"
)

const maxSlotLines = 5

func (h *Handler) renderSchedule(day time.Time, events []internal.Event, failed map[string]error) string {
	var blocks []string
	if len(events) == 0 {
		blocks = append(blocks, fmt.Sprintf("📅 Nothing scheduled for %s.", h.zone.LongDate(day)))
	} else {
		lines := []string{fmt.Sprintf("📅 %s — %s", h.zone.LongDate(day), countByKind(events))}
		for _, ev := range events {
			lines = append(lines, h.eventLine(ev))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	if warn := warningBlock(failed); warn != "" {
		blocks = append(blocks, warn)
	}
	return strings.Join(blocks, "\n\n")
}

func (h *Handler) renderUpcoming(from time.Time, days int, events []internal.Event, failed map[string]error) string {
	var blocks []string
	if len(events) == 0 {
		blocks = append(blocks, fmt.Sprintf("🗓 Nothing scheduled in the next %d days.", days))
	} else {
		header := fmt.Sprintf("🗓 Next %d days — %s", days, countByKind(events))
		blocks = append(blocks, header)

		var (
			dayLines []string
			lastKey  string
		)
		flush := func() {
			if len(dayLines) > 0 {
				blocks = append(blocks, strings.Join(dayLines, "\n"))
				dayLines = nil
			}
		}
		for _, ev := range events {
			key := h.zone.DayKey(ev.Start)
			if key != lastKey {
				flush()
				dayLines = []string{fmt.Sprintf("**%s**", h.zone.LongDate(ev.Start))}
				lastKey = key
			}
			dayLines = append(dayLines, h.eventLine(ev))
		}
		flush()
	}
	if warn := warningBlock(failed); warn != "" {
		blocks = append(blocks, warn)
	}
	return strings.Join(blocks, "\n\n")
}

func (h *Handler) renderSlots(d time.Duration, scope string, slots []avail.Interval, failed map[string]error) string {
	lines := []string{fmt.Sprintf("🕐 Free %s slots in %s:", d, scope)}
	for i, slot := range slots {
		if i == maxSlotLines {
			lines = append(lines, fmt.Sprintf("...and %d more days with room", len(slots)-maxSlotLines))
			break
		}
		lines = append(lines, fmt.Sprintf("• %s from %s to %s",
			h.zone.LongDate(slot.Start), h.zone.Clock(slot.Start), h.zone.Clock(slot.End)))
	}
	blocks := []string{strings.Join(lines, "\n")}
	if warn := warningBlock(failed); warn != "" {
		blocks = append(blocks, warn)
	}
	return strings.Join(blocks, "\n\n")
}

func (h *Handler) renderConfirmation(conf internal.Confirmation) string {
	when := h.zone.LongDate(conf.Start)
	if conf.AllDay {
		when += ", all day"
	} else {
		when += fmt.Sprintf(" from %s to %s", h.zone.Clock(conf.Start), h.zone.Clock(conf.End))
	}

	var line string
	switch conf.Action {
	case "create":
		line = fmt.Sprintf("✅ Created %q on %s: %s.", conf.Title, conf.SourceName, when)
	case "reschedule":
		line = fmt.Sprintf("🔁 Rescheduled %q to %s.", conf.Title, when)
	case "move":
		line = fmt.Sprintf("📦 Moved %q to %s: %s.", conf.Title, conf.SourceName, when)
	case "delete":
		line = fmt.Sprintf("🗑 Deleted %q (%s).", conf.Title, when)
	default:
		line = fmt.Sprintf("Done: %s %q.", conf.Action, conf.Title)
	}
	if conf.Note != "" {
		line += " (" + conf.Note + ")"
	}
	if conf.Link != "" {
		line += "\n" + conf.Link
	}
	return line
}

func (h *Handler) eventLine(ev internal.Event) string {
	marker := "📅"
	if ev.Kind == internal.KindTask {
		marker = "✅"
	}
	when := "All Day"
	if !ev.AllDay {
		when = fmt.Sprintf("%s–%s", h.zone.Clock(ev.Start), h.zone.Clock(ev.End))
	}
	line := fmt.Sprintf("• %s %s %s (%s)", when, marker, ev.Title, h.sourceName(ev.SourceID))
	if ev.Location != "" {
		line += " @ " + ev.Location
	}
	return line
}

func countByKind(events []internal.Event) string {
	var appts, tasks, other int
	for _, ev := range events {
		switch ev.Kind {
		case internal.KindTask:
			tasks++
		case internal.KindAppointment:
			appts++
		default:
			other++
		}
	}
	var parts []string
	if appts > 0 {
		parts = append(parts, countWord(appts, "appointment"))
	}
	if tasks > 0 {
		parts = append(parts, countWord(tasks, "task"))
	}
	if other > 0 {
		parts = append(parts, countWord(other, "entry"))
	}
	return strings.Join(parts, ", ")
}

func countWord(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	if word == "entry" {
		return fmt.Sprintf("%d entries", n)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func warningBlock(failed map[string]error) string {
	if len(failed) == 0 {
		return ""
	}
	ids := make([]string, 0, len(failed))
	for id := range failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("⚠️ Calendar %s could not be reached, its events are missing above.", id))
	}
	return strings.Join(lines, "\n")
}

// FormatError renders a failed action for the chat surface. Ambiguous
// matches become a question instead of a bare error.
func FormatError(zone *civil.Zone, err error) string {
	var ambErr *internal.AmbiguousError
	if errors.As(err, &ambErr) {
		lines := []string{fmt.Sprintf("🤔 %q matches %d events. Which one did you mean?",
			ambErr.Search, len(ambErr.Candidates))}
		for i, ev := range ambErr.Candidates {
			if i == maxSlotLines {
				lines = append(lines, fmt.Sprintf("...and %d more", len(ambErr.Candidates)-maxSlotLines))
				break
			}
			when := zone.LongDate(ev.Start)
			if !ev.AllDay {
				when += " " + zone.Clock(ev.Start)
			}
			lines = append(lines, fmt.Sprintf("%d. %s — %s", i+1, ev.Title, when))
		}
		return strings.Join(lines, "\n")
	}

	var moveErr *internal.PartialMoveError
	if errors.As(err, &moveErr) {
		return fmt.Sprintf("⚠️ %q was copied to %s, but deleting the original failed: %v. The event exists on both calendars until the original is removed.",
			moveErr.Created.Title, moveErr.Created.SourceID, moveErr.DeleteErr)
	}

	switch {
	case errors.Is(err, internal.ErrInvalidTime):
		return fmt.Sprintf("🕰 %v", err)
	case errors.Is(err, internal.ErrNotFound):
		return fmt.Sprintf("🔍 %v", err)
	case errors.Is(err, internal.ErrSourceUnavailable):
		return fmt.Sprintf("📡 %v", err)
	default:
		return fmt.Sprintf("❌ %v", err)
	}
}
