package classify

import (
	"strings"
	"time"

	"github.com/lifeos-tools/attache/internal"
)

// Heuristic vocabulary for events coming from generic sources. Declared
// source kinds always win; these only decide for Kind "other" sources.
var (
	meetingWords = []string{
		"meeting", "call", "sync", "interview", "appointment",
		"standup", "review", "1:1", "demo", "lunch with",
	}
	taskWords = []string{
		"haircut", "laundry", "errand", "groceries", "clean", "wash",
		"fix", "buy", "pay", "renew", "pick up", "drop off", "workout",
	}
)

// Event tags one canonical event. Same input, same answer, regardless of
// what else is on the calendar.
func Event(src *internal.Source, ev internal.Event, loc *time.Location) internal.Kind {
	if src != nil && src.Kind != internal.KindOther && src.Kind != "" {
		return src.Kind
	}
	return Draft(ev, loc)
}

// Draft guesses a kind from content alone. Create routing uses it when
// the caller gave no explicit kind hint.
func Draft(ev internal.Event, loc *time.Location) internal.Kind {
	if len(ev.Attendees) >= 2 {
		return internal.KindAppointment
	}
	title := strings.ToLower(ev.Title)
	if containsAny(title, meetingWords) && inBusinessHours(ev, loc) {
		return internal.KindAppointment
	}
	if containsAny(title, taskWords) {
		return internal.KindTask
	}
	return internal.KindOther
}

func inBusinessHours(ev internal.Event, loc *time.Location) bool {
	if ev.AllDay {
		return false
	}
	h := ev.Start.In(loc).Hour()
	return h >= 9 && h < 17
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
