package internal

import (
	"context"
	"time"
)

type Mux interface {
	Get(platform string) (Provider, error)
}

// Provider is implemented once per calendar platform. Listing is always
// windowed; there is no incremental sync here, the sources stay the system
// of record.
type Provider interface {
	List(_ context.Context, _ *Source, from, to time.Time) ([]Event, error)
	CreateEvent(_ context.Context, _ *Source, _ *Event) (*Event, error)
	UpdateEvent(_ context.Context, _ *Source, id string, _ EventPatch) (*Event, error)
	DeleteEvent(_ context.Context, _ *Source, id string) error
}
