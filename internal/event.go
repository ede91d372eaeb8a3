package internal

import (
	"fmt"
	"time"
)

// Event is the canonical shape every adapter converts into. Start and End
// are UTC instants; turning them back into civil time is the normalizer's
// job, never the caller's.
type Event struct {
	SourceID    string
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Attendees   []string
	Link        string
	Kind        Kind
}

// Key is unique across every configured source.
func (e Event) Key() string {
	return e.SourceID + "/" + e.ID
}

func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

func (e Event) Overlaps(o Event) bool {
	return e.Start.Before(o.End) && o.Start.Before(e.End)
}

type Kind string

func (k Kind) String() string {
	return string(k)
}

var (
	KindAppointment Kind = "appointment"
	KindTask        Kind = "task"
	KindOther       Kind = "other"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAppointment, KindTask, KindOther:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrValidation, s)
}

// EventPatch carries only the fields a mutation wants to change. AllDay
// qualifies Start and End so adapters keep the right wire form; on its
// own it changes nothing.
type EventPatch struct {
	Title       *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
	AllDay      *bool
}

func (p EventPatch) IsAllDay() bool {
	return p.AllDay != nil && *p.AllDay
}

func (p EventPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil &&
		p.Start == nil && p.End == nil
}

// Confirmation is what a successful mutation reports back to the caller.
type Confirmation struct {
	Action     string
	Title      string
	Start      time.Time
	End        time.Time
	AllDay     bool
	SourceName string
	Link       string
	Note       string
}
