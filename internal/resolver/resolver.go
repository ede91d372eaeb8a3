package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/civil"
)

// Fuzzy references search two weeks either side of now unless the caller
// narrows the window.
const defaultSearchDays = 14

// Lister is the slice of the aggregator the resolver needs.
type Lister interface {
	Window(ctx context.Context, from, to time.Time) ([]internal.Event, map[string]error)
}

// Journal records dispatched mutations. Implementations must tolerate
// being called after the remote write already happened.
type Journal interface {
	AppendMutation(ctx context.Context, rec internal.MutationRecord) error
}

// Window bounds a fuzzy search when the caller knows roughly when the
// event happens.
type Window struct {
	From time.Time
	To   time.Time
}

// Resolver turns fuzzy event references into concrete (source, event)
// pairs and applies mutations through the owning adapter.
type Resolver struct {
	lister  Lister
	mux     internal.Mux
	sources []*internal.Source
	zone    *civil.Zone
	journal Journal
	log     *zap.Logger
	now     func() time.Time
}

func New(lister Lister, mux internal.Mux, sources []*internal.Source, zone *civil.Zone, journal Journal, log *zap.Logger) *Resolver {
	return &Resolver{
		lister:  lister,
		mux:     mux,
		sources: sources,
		zone:    zone,
		journal: journal,
		log:     log,
		now:     time.Now,
	}
}

// Find resolves a fuzzy title reference to exactly one event. Zero and
// many matches are both errors; this never guesses on the caller's
// behalf.
func (r *Resolver) Find(ctx context.Context, searchText string, hint *Window) (internal.Event, error) {
	text := strings.TrimSpace(searchText)
	if text == "" {
		return internal.Event{}, fmt.Errorf("%w: search text is required", internal.ErrValidation)
	}

	w := r.window(hint)
	events, failed := r.lister.Window(ctx, w.From, w.To)

	needle := strings.ToLower(text)
	var matches []internal.Event
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Title), needle) {
			matches = append(matches, ev)
		}
	}

	switch len(matches) {
	case 0:
		if len(failed) > 0 {
			return internal.Event{}, fmt.Errorf("%w: no event matching %q, and %d calendars were unreachable",
				internal.ErrNotFound, text, len(failed))
		}
		return internal.Event{}, fmt.Errorf("%w: no event matching %q between %s and %s",
			internal.ErrNotFound, text, r.zone.DayKey(w.From), r.zone.DayKey(w.To))
	case 1:
		return matches[0], nil
	}

	// A single exact-title hit outranks the other substring matches;
	// anything less stays ambiguous.
	var exact []internal.Event
	for _, ev := range matches {
		if strings.EqualFold(strings.TrimSpace(ev.Title), text) {
			exact = append(exact, ev)
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}

	rankByTokenOverlap(matches, needle)
	return internal.Event{}, &internal.AmbiguousError{Search: text, Candidates: matches}
}

func (r *Resolver) window(hint *Window) Window {
	if hint != nil && !hint.From.IsZero() && hint.To.After(hint.From) {
		return *hint
	}
	now := r.now().UTC()
	return Window{
		From: now.AddDate(0, 0, -defaultSearchDays),
		To:   now.AddDate(0, 0, defaultSearchDays),
	}
}

// rankByTokenOverlap orders ambiguous candidates best first: the share of
// search tokens appearing as whole words in the title, ties broken by
// start time.
func rankByTokenOverlap(matches []internal.Event, needle string) {
	tokens := strings.Fields(needle)
	score := func(ev internal.Event) float64 {
		if len(tokens) == 0 {
			return 0
		}
		title := " " + strings.ToLower(ev.Title) + " "
		hits := 0
		for _, tok := range tokens {
			if strings.Contains(title, " "+tok+" ") {
				hits++
			}
		}
		return float64(hits) / float64(len(tokens))
	}
	sort.SliceStable(matches, func(i, j int) bool {
		si, sj := score(matches[i]), score(matches[j])
		if si != sj {
			return si > sj
		}
		return matches[i].Start.Before(matches[j].Start)
	})
}

// ResolveTarget finds the configured source a caller referred to, by ID,
// then display name, then declared kind.
func (r *Resolver) ResolveTarget(ref string) (*internal.Source, error) {
	needle := strings.ToLower(strings.TrimSpace(ref))
	if needle == "" {
		return nil, fmt.Errorf("%w: target calendar is required", internal.ErrValidation)
	}
	for _, src := range r.sources {
		if strings.ToLower(src.ID) == needle {
			return src, nil
		}
	}
	for _, src := range r.sources {
		if strings.ToLower(src.Name) == needle {
			return src, nil
		}
	}
	for _, src := range r.sources {
		kind := src.Kind.String()
		if needle == kind || needle == kind+"s" {
			return src, nil
		}
	}
	return nil, fmt.Errorf("%w: no calendar matches %q", internal.ErrNotFound, ref)
}

func (r *Resolver) sourceByID(id string) (*internal.Source, error) {
	for _, src := range r.sources {
		if src.ID == id {
			return src, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown calendar %q", internal.ErrNotFound, id)
}

func (r *Resolver) provider(src *internal.Source) (internal.Provider, error) {
	return r.mux.Get(src.Platform)
}
