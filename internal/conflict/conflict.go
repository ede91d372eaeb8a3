package conflict

import (
	"sort"

	"github.com/lifeos-tools/attache/internal"
)

// Pair is one cross-source overlap, earlier event first.
type Pair struct {
	A internal.Event
	B internal.Event
}

// Find reports every pair of timed events from different sources whose
// spans overlap. Each pair comes back exactly once, and the result does
// not depend on input order. All-day entries never conflict.
func Find(events []internal.Event) []Pair {
	timed := make([]internal.Event, 0, len(events))
	for _, ev := range events {
		if ev.AllDay || !ev.End.After(ev.Start) {
			continue
		}
		timed = append(timed, ev)
	}
	sort.SliceStable(timed, func(i, j int) bool {
		if !timed[i].Start.Equal(timed[j].Start) {
			return timed[i].Start.Before(timed[j].Start)
		}
		return timed[i].Key() < timed[j].Key()
	})

	var (
		pairs  []Pair
		active []internal.Event
	)
	for _, ev := range timed {
		live := active[:0]
		for _, a := range active {
			if a.End.After(ev.Start) {
				live = append(live, a)
			}
		}
		active = live

		for _, a := range active {
			if a.SourceID == ev.SourceID {
				continue
			}
			if a.Overlaps(ev) {
				pairs = append(pairs, Pair{A: a, B: ev})
			}
		}
		active = append(active, ev)
	}
	return pairs
}
