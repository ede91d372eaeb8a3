package internal

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced across the action boundary. Callers branch on
// these with errors.Is; the wrapped text names the offending input.
var (
	ErrInvalidTime       = errors.New("invalid time")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrAmbiguous         = errors.New("ambiguous reference")
	ErrPartialMutation   = errors.New("partial mutation")
)

// SourceError pins a failure to one calendar source so the rest of the
// schedule can still be served.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// AmbiguousError reports that a fuzzy reference matched more than one
// event. Candidates are ordered best match first so the caller can ask
// the user to pick.
type AmbiguousError struct {
	Search     string
	Candidates []Event
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%q matches %d events", e.Search, len(e.Candidates))
}

func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguous
}

// PartialMoveError means the copy landed on the target calendar but the
// original could not be removed, so the event now exists twice.
type PartialMoveError struct {
	Created   Event
	DeleteErr error
}

func (e *PartialMoveError) Error() string {
	return fmt.Sprintf("event %q copied to %s but the original was not removed: %v",
		e.Created.Title, e.Created.SourceID, e.DeleteErr)
}

func (e *PartialMoveError) Unwrap() error { return e.DeleteErr }

func (e *PartialMoveError) Is(target error) bool {
	return target == ErrPartialMutation
}
