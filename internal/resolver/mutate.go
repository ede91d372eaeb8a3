package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/classify"
)

type CreateRequest struct {
	Title       string
	Start       time.Time
	End         time.Time // zero keeps one hour, or the whole day when AllDay
	AllDay      bool
	Location    string
	Description string
	Attendees   []string
	KindHint    internal.Kind // empty lets the content decide
	TargetID    string        // explicit calendar reference overrides routing
}

type RescheduleRequest struct {
	Search   string
	Window   *Window
	NewStart time.Time
	DateOnly bool      // NewStart arrived as a bare date; keep the wall clock
	NewEnd   time.Time // zero preserves the duration
}

type MoveRequest struct {
	Search   string
	Window   *Window
	TargetID string
	// A time cue alongside the calendar cue reschedules first, then moves.
	NewStart time.Time
	DateOnly bool
	NewEnd   time.Time
}

type DeleteRequest struct {
	Search string
	Window *Window
}

func (r *Resolver) Create(ctx context.Context, req CreateRequest) (internal.Confirmation, error) {
	if strings.TrimSpace(req.Title) == "" {
		return internal.Confirmation{}, fmt.Errorf("%w: title is required", internal.ErrValidation)
	}
	if req.Start.IsZero() {
		return internal.Confirmation{}, fmt.Errorf("%w: start time is required", internal.ErrValidation)
	}
	end := req.End
	if end.IsZero() {
		if req.AllDay {
			_, end = r.zone.DayWindow(req.Start)
		} else {
			end = req.Start.Add(time.Hour)
		}
	}
	if !end.After(req.Start) {
		return internal.Confirmation{}, fmt.Errorf("%w: end %s is not after start %s",
			internal.ErrValidation, end.Format(time.RFC3339), req.Start.Format(time.RFC3339))
	}

	src, err := r.routeCreate(req)
	if err != nil {
		return internal.Confirmation{}, err
	}
	provider, err := r.provider(src)
	if err != nil {
		return internal.Confirmation{}, err
	}

	draft := &internal.Event{
		SourceID:    src.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		Start:       req.Start,
		End:         end,
		AllDay:      req.AllDay,
		Attendees:   req.Attendees,
	}
	created, err := provider.CreateEvent(ctx, src, draft)
	r.journalize(ctx, "create", src.ID, "", draft.Title, err, "")
	if err != nil {
		return internal.Confirmation{}, fmt.Errorf("create %q on %s: %w", draft.Title, src.ID, err)
	}
	return internal.Confirmation{
		Action:     "create",
		Title:      created.Title,
		Start:      created.Start,
		End:        created.End,
		AllDay:     created.AllDay,
		SourceName: src.Name,
		Link:       created.Link,
	}, nil
}

// routeCreate picks the calendar a new event belongs on: explicit target,
// then kind hint, then content heuristics, then the first appointment
// source.
func (r *Resolver) routeCreate(req CreateRequest) (*internal.Source, error) {
	if req.TargetID != "" {
		return r.ResolveTarget(req.TargetID)
	}
	want := req.KindHint
	if want == "" || want == internal.KindOther {
		want = classify.Draft(internal.Event{
			Title:     req.Title,
			Start:     req.Start,
			AllDay:    req.AllDay,
			Attendees: req.Attendees,
		}, r.zone.Location())
	}
	if want == internal.KindTask {
		for _, src := range r.sources {
			if src.Kind == internal.KindTask {
				return src, nil
			}
		}
	}
	for _, src := range r.sources {
		if src.Kind == internal.KindAppointment {
			return src, nil
		}
	}
	if len(r.sources) > 0 {
		return r.sources[0], nil
	}
	return nil, fmt.Errorf("%w: no calendar sources configured", internal.ErrValidation)
}

func (r *Resolver) Reschedule(ctx context.Context, req RescheduleRequest) (internal.Confirmation, error) {
	if req.NewStart.IsZero() {
		return internal.Confirmation{}, fmt.Errorf("%w: new start time is required", internal.ErrValidation)
	}
	ev, err := r.Find(ctx, req.Search, req.Window)
	if err != nil {
		return internal.Confirmation{}, err
	}
	src, err := r.sourceByID(ev.SourceID)
	if err != nil {
		return internal.Confirmation{}, err
	}
	return r.reschedule(ctx, src, ev, req)
}

func (r *Resolver) reschedule(ctx context.Context, src *internal.Source, ev internal.Event, req RescheduleRequest) (internal.Confirmation, error) {
	newStart := req.NewStart
	if req.DateOnly && !ev.AllDay {
		newStart = r.zone.OnDay(req.NewStart, ev.Start)
	}
	newEnd := req.NewEnd
	if newEnd.IsZero() {
		newEnd = newStart.Add(ev.Duration())
	}
	if !newEnd.After(newStart) {
		return internal.Confirmation{}, fmt.Errorf("%w: end %s is not after start %s",
			internal.ErrValidation, newEnd.Format(time.RFC3339), newStart.Format(time.RFC3339))
	}

	provider, err := r.provider(src)
	if err != nil {
		return internal.Confirmation{}, err
	}
	patch := internal.EventPatch{Start: &newStart, End: &newEnd, AllDay: &ev.AllDay}
	updated, err := provider.UpdateEvent(ctx, src, ev.ID, patch)
	r.journalize(ctx, "reschedule", src.ID, ev.ID, ev.Title, err,
		fmt.Sprintf("to %s", newStart.Format(time.RFC3339)))
	if err != nil {
		return internal.Confirmation{}, fmt.Errorf("reschedule %q on %s: %w", ev.Title, src.ID, err)
	}
	return internal.Confirmation{
		Action:     "reschedule",
		Title:      updated.Title,
		Start:      updated.Start,
		End:        updated.End,
		AllDay:     updated.AllDay,
		SourceName: src.Name,
		Link:       updated.Link,
	}, nil
}

func (r *Resolver) Move(ctx context.Context, req MoveRequest) (internal.Confirmation, error) {
	ev, err := r.Find(ctx, req.Search, req.Window)
	if err != nil {
		return internal.Confirmation{}, err
	}
	target, err := r.ResolveTarget(req.TargetID)
	if err != nil {
		return internal.Confirmation{}, err
	}
	origin, err := r.sourceByID(ev.SourceID)
	if err != nil {
		return internal.Confirmation{}, err
	}

	var note string
	if !req.NewStart.IsZero() {
		conf, err := r.reschedule(ctx, origin, ev, RescheduleRequest{
			NewStart: req.NewStart,
			DateOnly: req.DateOnly,
			NewEnd:   req.NewEnd,
		})
		if err != nil {
			return internal.Confirmation{}, err
		}
		ev.Start, ev.End, ev.AllDay = conf.Start, conf.End, conf.AllDay
		note = "rescheduled first"
	}

	if origin.ID == target.ID {
		sameNote := "already on " + target.Name
		if note != "" {
			sameNote += "; " + note
		}
		return internal.Confirmation{
			Action:     "move",
			Title:      ev.Title,
			Start:      ev.Start,
			End:        ev.End,
			AllDay:     ev.AllDay,
			SourceName: target.Name,
			Link:       ev.Link,
			Note:       sameNote,
		}, nil
	}

	targetProvider, err := r.provider(target)
	if err != nil {
		return internal.Confirmation{}, err
	}
	draft := ev
	draft.ID = ""
	draft.SourceID = target.ID
	draft.Link = ""
	created, err := targetProvider.CreateEvent(ctx, target, &draft)
	r.journalize(ctx, "move:create", target.ID, "", ev.Title, err, "copy from "+origin.ID)
	if err != nil {
		// Nothing changed yet; the original is untouched.
		return internal.Confirmation{}, fmt.Errorf("copy %q to %s: %w", ev.Title, target.ID, err)
	}
	if created == nil || created.ID == "" {
		return internal.Confirmation{}, &internal.SourceError{
			SourceID: target.ID,
			Err:      errors.New("create reported no event id, original left in place"),
		}
	}

	originProvider, err := r.provider(origin)
	if err == nil {
		err = originProvider.DeleteEvent(ctx, origin, ev.ID)
	}
	if err != nil && !errors.Is(err, internal.ErrNotFound) {
		perr := &internal.PartialMoveError{Created: *created, DeleteErr: err}
		r.journalize(ctx, "move:delete", origin.ID, ev.ID, ev.Title, perr, "event now exists on both calendars")
		return internal.Confirmation{}, perr
	}
	r.journalize(ctx, "move:delete", origin.ID, ev.ID, ev.Title, nil, "moved to "+target.ID)

	return internal.Confirmation{
		Action:     "move",
		Title:      created.Title,
		Start:      created.Start,
		End:        created.End,
		AllDay:     created.AllDay,
		SourceName: target.Name,
		Link:       created.Link,
		Note:       note,
	}, nil
}

func (r *Resolver) Delete(ctx context.Context, req DeleteRequest) (internal.Confirmation, error) {
	ev, err := r.Find(ctx, req.Search, req.Window)
	if err != nil {
		return internal.Confirmation{}, err
	}
	src, err := r.sourceByID(ev.SourceID)
	if err != nil {
		return internal.Confirmation{}, err
	}
	provider, err := r.provider(src)
	if err != nil {
		return internal.Confirmation{}, err
	}

	err = provider.DeleteEvent(ctx, src, ev.ID)
	if errors.Is(err, internal.ErrNotFound) {
		// Already gone, which is exactly what the caller wanted.
		err = nil
	}
	r.journalize(ctx, "delete", src.ID, ev.ID, ev.Title, err, "")
	if err != nil {
		return internal.Confirmation{}, fmt.Errorf("delete %q on %s: %w", ev.Title, src.ID, err)
	}
	return internal.Confirmation{
		Action:     "delete",
		Title:      ev.Title,
		Start:      ev.Start,
		End:        ev.End,
		AllDay:     ev.AllDay,
		SourceName: src.Name,
	}, nil
}

func (r *Resolver) journalize(ctx context.Context, action, sourceID, eventID, title string, opErr error, detail string) {
	if r.journal == nil {
		return
	}
	status := internal.MutationOK
	switch {
	case errors.Is(opErr, internal.ErrPartialMutation):
		status = internal.MutationPartial
	case opErr != nil:
		status = internal.MutationFailed
	}
	if opErr != nil && detail == "" {
		detail = opErr.Error()
	}
	rec := internal.MutationRecord{
		ID:       uuid.NewString(),
		At:       r.now().UTC(),
		Action:   action,
		SourceID: sourceID,
		EventID:  eventID,
		Title:    title,
		Status:   status,
		Detail:   detail,
	}
	if err := r.journal.AppendMutation(ctx, rec); err != nil {
		r.log.Warn("mutation journal write failed",
			zap.String("action", action),
			zap.Error(err))
	}
}
