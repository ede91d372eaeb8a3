package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/civil"
)

type fakeProvider struct {
	events map[string][]internal.Event
	errs   map[string]error
	delay  time.Duration
}

func (f *fakeProvider) List(ctx context.Context, src *internal.Source, from, to time.Time) ([]internal.Event, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if err := f.errs[src.ID]; err != nil {
		return nil, err
	}
	return f.events[src.ID], nil
}

func (f *fakeProvider) CreateEvent(context.Context, *internal.Source, *internal.Event) (*internal.Event, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) UpdateEvent(context.Context, *internal.Source, string, internal.EventPatch) (*internal.Event, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) DeleteEvent(context.Context, *internal.Source, string) error {
	return errors.New("not implemented")
}

type fakeMux struct {
	provider internal.Provider
}

func (m fakeMux) Get(string) (internal.Provider, error) {
	return m.provider, nil
}

func testZone(t *testing.T) *civil.Zone {
	t.Helper()
	z, err := civil.LoadZone("America/Toronto")
	require.NoError(t, err)
	return z
}

func at(h int) time.Time {
	return time.Date(2026, 4, 6, h, 0, 0, 0, time.UTC)
}

func TestWindowMergesAndSorts(t *testing.T) {
	z := testZone(t)
	sources := []*internal.Source{
		{ID: "appointments", Kind: internal.KindAppointment, Platform: "fake"},
		{ID: "tasks", Kind: internal.KindTask, Platform: "fake"},
	}
	provider := &fakeProvider{events: map[string][]internal.Event{
		"appointments": {
			{ID: "a2", Title: "Later", Start: at(15), End: at(16)},
			{ID: "a1", Title: "Tied", Start: at(10), End: at(11)},
		},
		"tasks": {
			{ID: "t1", Title: "Tied too", Start: at(10), End: at(10).Add(30 * time.Minute)},
		},
	}}

	agg := New(fakeMux{provider}, sources, z, 0, zap.NewNop())
	events, failed := agg.Window(context.Background(), at(0), at(23))

	require.Empty(t, failed)
	require.Len(t, events, 3)
	// Tie at 10:00 resolves by source registration order.
	assert.Equal(t, "a1", events[0].ID)
	assert.Equal(t, "t1", events[1].ID)
	assert.Equal(t, "a2", events[2].ID)
	// Kinds come from the declaring source.
	assert.Equal(t, internal.KindAppointment, events[0].Kind)
	assert.Equal(t, internal.KindTask, events[1].Kind)
	// Every event carries its source.
	for _, ev := range events {
		assert.NotEmpty(t, ev.SourceID)
	}
}

func TestWindowIsolatesFailures(t *testing.T) {
	z := testZone(t)
	sources := []*internal.Source{
		{ID: "healthy", Kind: internal.KindAppointment, Platform: "fake"},
		{ID: "broken", Kind: internal.KindTask, Platform: "fake"},
	}
	provider := &fakeProvider{
		events: map[string][]internal.Event{
			"healthy": {{ID: "e1", Title: "Kept", Start: at(9), End: at(10)}},
		},
		errs: map[string]error{"broken": errors.New("503")},
	}

	agg := New(fakeMux{provider}, sources, z, 0, zap.NewNop())
	events, failed := agg.Window(context.Background(), at(0), at(23))

	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID)
	require.Len(t, failed, 1)
	assert.True(t, errors.Is(failed["broken"], internal.ErrSourceUnavailable))
}

func TestWindowTimesOutSlowSources(t *testing.T) {
	z := testZone(t)
	sources := []*internal.Source{
		{ID: "slow", Kind: internal.KindAppointment, Platform: "fake"},
	}
	provider := &fakeProvider{delay: time.Second}

	agg := New(fakeMux{provider}, sources, z, 20*time.Millisecond, zap.NewNop())
	start := time.Now()
	events, failed := agg.Window(context.Background(), at(0), at(23))

	assert.Empty(t, events)
	require.Contains(t, failed, "slow")
	assert.True(t, errors.Is(failed["slow"], context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWindowIsIdempotent(t *testing.T) {
	z := testZone(t)
	sources := []*internal.Source{
		{ID: "appointments", Kind: internal.KindAppointment, Platform: "fake"},
	}
	provider := &fakeProvider{events: map[string][]internal.Event{
		"appointments": {
			{ID: "a1", Title: "One", Start: at(10), End: at(11)},
			{ID: "a2", Title: "Two", Start: at(9), End: at(10)},
		},
	}}

	agg := New(fakeMux{provider}, sources, z, 0, zap.NewNop())
	first, _ := agg.Window(context.Background(), at(0), at(23))
	second, _ := agg.Window(context.Background(), at(0), at(23))
	assert.Equal(t, first, second)
}
