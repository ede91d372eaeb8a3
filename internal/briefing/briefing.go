package briefing

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/civil"
	"github.com/lifeos-tools/attache/internal/conflict"
)

const (
	DefaultBudget      = 1200
	DefaultMaxToday    = 10
	DefaultMaxTomorrow = 3
)

// Composer renders the morning briefing as chat-ready text. Output always
// fits Budget characters; whole sections are dropped before any line is
// cut, tomorrow's preview first.
type Composer struct {
	Zone        *civil.Zone
	Budget      int
	MaxToday    int
	MaxTomorrow int
}

func NewComposer(zone *civil.Zone) *Composer {
	return &Composer{
		Zone:        zone,
		Budget:      DefaultBudget,
		MaxToday:    DefaultMaxToday,
		MaxTomorrow: DefaultMaxTomorrow,
	}
}

type view struct {
	todayMax      int
	showTomorrow  bool
	showConflicts bool
	showWarnings  bool
}

func (c *Composer) Compose(now time.Time, today, tomorrow []internal.Event, conflicts []conflict.Pair, sourceErrs map[string]error) string {
	warnings := warningLines(sourceErrs)
	v := view{
		todayMax:      c.MaxToday,
		showTomorrow:  true,
		showConflicts: true,
		showWarnings:  true,
	}
	for {
		out := c.render(now, today, tomorrow, conflicts, warnings, v)
		if utf8.RuneCountInString(out) <= c.Budget {
			return out
		}
		switch {
		case v.showTomorrow:
			v.showTomorrow = false
		case v.showConflicts:
			v.showConflicts = false
		case v.todayMax > 1:
			v.todayMax--
		case v.showWarnings:
			v.showWarnings = false
		default:
			return trimToLine(out, c.Budget)
		}
	}
}

func (c *Composer) render(now time.Time, today, tomorrow []internal.Event, conflicts []conflict.Pair, warnings []string, v view) string {
	blocks := []string{
		fmt.Sprintf("🌅 Good morning! Briefing for %s", c.Zone.LongDate(now)),
		c.todayBlock(today, v.todayMax),
	}
	if v.showTomorrow && len(tomorrow) > 0 {
		blocks = append(blocks, c.tomorrowBlock(tomorrow))
	}
	if v.showConflicts && len(conflicts) > 0 {
		blocks = append(blocks, c.conflictBlock(conflicts))
	}
	if v.showWarnings && len(warnings) > 0 {
		blocks = append(blocks, "⚠️ **Heads up**:\n"+strings.Join(warnings, "\n"))
	}
	blocks = append(blocks, closingLine(today))
	return strings.Join(blocks, "\n\n")
}

func (c *Composer) todayBlock(today []internal.Event, max int) string {
	if len(today) == 0 {
		return "📅 **Today**: nothing scheduled."
	}
	lines := []string{fmt.Sprintf("📅 **Today** (%s):", countSummary(today))}
	for i, ev := range today {
		if i == max {
			lines = append(lines, fmt.Sprintf("...and %d more", len(today)-max))
			break
		}
		lines = append(lines, c.line(ev))
	}
	return strings.Join(lines, "\n")
}

func (c *Composer) tomorrowBlock(tomorrow []internal.Event) string {
	lines := []string{"📆 **Tomorrow**:"}
	for i, ev := range tomorrow {
		if i == c.MaxTomorrow {
			lines = append(lines, fmt.Sprintf("...and %d more", len(tomorrow)-c.MaxTomorrow))
			break
		}
		lines = append(lines, c.line(ev))
	}
	return strings.Join(lines, "\n")
}

func (c *Composer) conflictBlock(conflicts []conflict.Pair) string {
	lines := []string{"⚠️ **Conflicts**:"}
	for _, p := range conflicts {
		lines = append(lines, fmt.Sprintf("• %s (%s) overlaps %s (%s)",
			p.A.Title, c.Zone.Clock(p.A.Start), p.B.Title, c.Zone.Clock(p.B.Start)))
	}
	return strings.Join(lines, "\n")
}

func (c *Composer) line(ev internal.Event) string {
	marker := "📅"
	if ev.Kind == internal.KindTask {
		marker = "✅"
	}
	when := "All Day"
	if !ev.AllDay {
		when = c.Zone.Clock(ev.Start)
	}
	return fmt.Sprintf("• %s: %s %s", when, marker, ev.Title)
}

func warningLines(sourceErrs map[string]error) []string {
	if len(sourceErrs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(sourceErrs))
	for id := range sourceErrs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("• calendar %s could not be reached, its events are missing above", id))
	}
	return lines
}

func closingLine(today []internal.Event) string {
	switch {
	case len(today) == 0:
		return "💼 Clear calendar. Good day for deep work."
	case len(today) >= 6:
		return "💼 Packed day. Guard the gaps."
	default:
		return "💼 Light schedule. Room to move if something comes up."
	}
}

func countSummary(events []internal.Event) string {
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
		parts = append(parts, plural(appts, "appointment"))
	}
	if tasks > 0 {
		parts = append(parts, plural(tasks, "task"))
	}
	if other > 0 {
		parts = append(parts, plural(other, "entry"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	if word == "entry" {
		return fmt.Sprintf("%d entries", n)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// trimToLine is the last resort when even a bare briefing overflows:
// cut at the final line break that fits.
func trimToLine(s string, budget int) string {
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	cut := string(runes[:budget])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		return cut[:i]
	}
	return cut
}
