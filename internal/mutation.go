package internal

import "time"

// Mutation outcomes kept in the journal. Partial means the calendars were
// left in a state the caller must know about, like a move whose delete
// half failed.
const (
	MutationOK      = "ok"
	MutationPartial = "partial"
	MutationFailed  = "failed"
)

// MutationRecord is one dispatched write against a calendar source. The
// journal exists so an outcome can be reported after the fact; it is not
// a second copy of the calendar.
type MutationRecord struct {
	ID       string
	At       time.Time
	Action   string
	SourceID string
	EventID  string
	Title    string
	Status   string
	Detail   string
}
