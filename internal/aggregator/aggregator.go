package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/civil"
	"github.com/lifeos-tools/attache/internal/classify"
)

const DefaultSourceTimeout = 10 * time.Second

// Aggregator fans a window query out to every configured source and
// merges whatever comes back. A slow or broken source costs its own
// events, never the whole answer.
type Aggregator struct {
	mux     internal.Mux
	sources []*internal.Source
	zone    *civil.Zone
	timeout time.Duration
	log     *zap.Logger
}

func New(mux internal.Mux, sources []*internal.Source, zone *civil.Zone, timeout time.Duration, log *zap.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	return &Aggregator{
		mux:     mux,
		sources: sources,
		zone:    zone,
		timeout: timeout,
		log:     log,
	}
}

// Window lists every source concurrently and returns the merged timeline
// plus a per-source error map for whatever failed. Events come back
// sorted by start, then source registration order, then title, so the
// same calendars always produce the same answer.
func (a *Aggregator) Window(ctx context.Context, from, to time.Time) ([]internal.Event, map[string]error) {
	var (
		mu     sync.Mutex
		events []internal.Event
		failed = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range a.sources {
		src := src
		g.Go(func() error {
			fail := func(err error) error {
				a.log.Warn("source listing failed",
					zap.String("source", src.ID),
					zap.Error(err))
				mu.Lock()
				failed[src.ID] = &internal.SourceError{SourceID: src.ID, Err: err}
				mu.Unlock()
				return nil
			}

			provider, err := a.mux.Get(src.Platform)
			if err != nil {
				return fail(err)
			}

			listCtx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()

			got, err := provider.List(listCtx, src, from, to)
			if err != nil {
				return fail(err)
			}

			for i := range got {
				got[i].SourceID = src.ID
				got[i].Kind = classify.Event(src, got[i], a.zone.Location())
			}

			mu.Lock()
			events = append(events, got...)
			mu.Unlock()
			return nil
		})
	}
	// Goroutines report through the map, never through errgroup, so one
	// bad source cannot cancel its siblings.
	_ = g.Wait()

	a.sortEvents(events)
	return events, failed
}

// Day is Window over one local civil day.
func (a *Aggregator) Day(ctx context.Context, day time.Time) ([]internal.Event, map[string]error) {
	from, to := a.zone.DayWindow(day)
	return a.Window(ctx, from, to)
}

func (a *Aggregator) sortEvents(events []internal.Event) {
	rank := make(map[string]int, len(a.sources))
	for i, src := range a.sources {
		rank[src.ID] = i
	}
	sort.SliceStable(events, func(i, j int) bool {
		ei, ej := events[i], events[j]
		if !ei.Start.Equal(ej.Start) {
			return ei.Start.Before(ej.Start)
		}
		if rank[ei.SourceID] != rank[ej.SourceID] {
			return rank[ei.SourceID] < rank[ej.SourceID]
		}
		return ei.Title < ej.Title
	})
}
