package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/aggregator"
	"github.com/lifeos-tools/attache/internal/avail"
	"github.com/lifeos-tools/attache/internal/briefing"
	"github.com/lifeos-tools/attache/internal/civil"
	"github.com/lifeos-tools/attache/internal/conflict"
	"github.com/lifeos-tools/attache/internal/resolver"
)

// Action names accepted on the wire.
var (
	ActionGetSchedule = "GetSchedule"
	ActionGetUpcoming = "GetUpcoming"
	ActionFindFree    = "FindFreeTime"
	ActionCreate      = "CreateEvent"
	ActionReschedule  = "RescheduleEvent"
	ActionMove        = "MoveEvent"
	ActionDelete      = "DeleteEvent"
	ActionGetBriefing = "GetBriefing"
)

func ActionNames() []string {
	return []string{
		ActionGetSchedule,
		ActionGetUpcoming,
		ActionFindFree,
		ActionCreate,
		ActionReschedule,
		ActionMove,
		ActionDelete,
		ActionGetBriefing,
	}
}

// Request is one inbound action with loosely typed arguments, the shape
// they arrive in from JSON.
type Request struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}

// Lister is the read side, satisfied by aggregator.Aggregator.
type Lister interface {
	Window(ctx context.Context, from, to time.Time) ([]internal.Event, map[string]error)
	Day(ctx context.Context, day time.Time) ([]internal.Event, map[string]error)
}

// Mutator is the write side, satisfied by resolver.Resolver.
type Mutator interface {
	Create(ctx context.Context, req resolver.CreateRequest) (internal.Confirmation, error)
	Reschedule(ctx context.Context, req resolver.RescheduleRequest) (internal.Confirmation, error)
	Move(ctx context.Context, req resolver.MoveRequest) (internal.Confirmation, error)
	Delete(ctx context.Context, req resolver.DeleteRequest) (internal.Confirmation, error)
}

// Handler turns actions into schedule reads and mutations and renders
// the chat-ready reply text.
type Handler struct {
	lister   Lister
	mutator  Mutator
	composer *briefing.Composer
	zone     *civil.Zone
	hours    avail.Bounds
	names    map[string]string
	log      *zap.Logger
	now      func() time.Time
}

func New(lister Lister, mutator Mutator, composer *briefing.Composer, zone *civil.Zone, hours avail.Bounds, sources []*internal.Source, log *zap.Logger) *Handler {
	names := make(map[string]string, len(sources))
	for _, src := range sources {
		names[src.ID] = src.Name
	}
	return &Handler{
		lister:   lister,
		mutator:  mutator,
		composer: composer,
		zone:     zone,
		hours:    hours,
		names:    names,
		log:      log,
		now:      time.Now,
	}
}

var _ Lister = (*aggregator.Aggregator)(nil)
var _ Mutator = (*resolver.Resolver)(nil)

func (h *Handler) Handle(ctx context.Context, req Request) (string, error) {
	h.log.Debug("handling action", zap.String("action", req.Action))
	d := decoder{args: req.Args, zone: h.zone}

	switch req.Action {
	case ActionGetSchedule:
		return h.getSchedule(ctx, d)
	case ActionGetUpcoming:
		return h.getUpcoming(ctx, d)
	case ActionFindFree:
		return h.findFreeTime(ctx, d)
	case ActionCreate:
		return h.createEvent(ctx, d)
	case ActionReschedule:
		return h.rescheduleEvent(ctx, d)
	case ActionMove:
		return h.moveEvent(ctx, d)
	case ActionDelete:
		return h.deleteEvent(ctx, d)
	case ActionGetBriefing:
		return h.getBriefing(ctx)
	default:
		return "", fmt.Errorf("%w: unknown action %q (valid actions: %s)",
			internal.ErrValidation, req.Action, strings.Join(ActionNames(), ", "))
	}
}

func (h *Handler) getSchedule(ctx context.Context, d decoder) (string, error) {
	day := h.now()
	if s, err := d.text("date"); err != nil {
		return "", err
	} else if s != "" {
		t, _, err := h.zone.ParseInstant(s)
		if err != nil {
			return "", err
		}
		day = t
	}

	events, failed := h.lister.Day(ctx, day)
	return h.renderSchedule(day, events, failed), nil
}

func (h *Handler) getUpcoming(ctx context.Context, d decoder) (string, error) {
	days, err := d.count("days", 7)
	if err != nil {
		return "", err
	}
	if days < 1 || days > 60 {
		return "", fmt.Errorf("%w: args.days must be between 1 and 60", internal.ErrValidation)
	}

	from := h.now()
	events, failed := h.lister.Window(ctx, from, h.horizonEnd(from, days))
	return h.renderUpcoming(from, days, events, failed), nil
}

func (h *Handler) findFreeTime(ctx context.Context, d decoder) (string, error) {
	minutes, err := d.count("duration_minutes", 0)
	if err != nil {
		return "", err
	}
	if minutes <= 0 {
		return "", fmt.Errorf("%w: args.duration_minutes is required and must be positive", internal.ErrValidation)
	}
	if minutes > 24*60 {
		return "", fmt.Errorf("%w: args.duration_minutes must fit within a day", internal.ErrValidation)
	}
	dur := time.Duration(minutes) * time.Minute

	days, err := d.count("days", 7)
	if err != nil {
		return "", err
	}
	if days < 1 || days > 60 {
		return "", fmt.Errorf("%w: args.days must be between 1 and 60", internal.ErrValidation)
	}

	from := h.now()
	scope := fmt.Sprintf("the next %d days", days)
	if s, err := d.text("date"); err != nil {
		return "", err
	} else if s != "" {
		t, _, err := h.zone.ParseInstant(s)
		if err != nil {
			return "", err
		}
		days = 1
		scope = h.zone.LongDate(t)
		// Searching today still starts from now; the morning is gone.
		if dayStart, _ := h.zone.DayWindow(t); dayStart.After(from) {
			from = dayStart
		}
	}

	bounds := h.hours
	if within, ok, err := d.flag("within_hours"); err != nil {
		return "", err
	} else if ok && !within {
		bounds = avail.Bounds{}
	}

	events, failed := h.lister.Window(ctx, from, h.horizonEnd(from, days))
	slots := avail.Search(h.zone, from, days, dur, avail.FromEvents(events), bounds, nil)
	if len(slots) == 0 {
		if len(failed) > 0 {
			return "", fmt.Errorf("%w: no free %s found in %s, and %d calendars were unreachable",
				internal.ErrNotFound, dur, scope, len(failed))
		}
		return "", fmt.Errorf("%w: no free %s found in %s", internal.ErrNotFound, dur, scope)
	}
	return h.renderSlots(dur, scope, slots, failed), nil
}

func (h *Handler) createEvent(ctx context.Context, d decoder) (string, error) {
	title, err := d.requireText("title")
	if err != nil {
		return "", err
	}
	start, dateOnly, err := d.requireInstant("start")
	if err != nil {
		return "", err
	}
	end, _, _, err := d.instant("end")
	if err != nil {
		return "", err
	}
	allDay, ok, err := d.flag("all_day")
	if err != nil {
		return "", err
	}
	if !ok {
		allDay = dateOnly
	}
	location, err := d.text("location")
	if err != nil {
		return "", err
	}
	description, err := d.text("description")
	if err != nil {
		return "", err
	}
	attendees, err := d.textList("attendees")
	if err != nil {
		return "", err
	}
	target, err := d.text("calendar")
	if err != nil {
		return "", err
	}

	var kind internal.Kind
	if s, err := d.text("kind"); err != nil {
		return "", err
	} else if s != "" {
		kind, err = internal.ParseKind(s)
		if err != nil {
			return "", err
		}
	}

	conf, err := h.mutator.Create(ctx, resolver.CreateRequest{
		Title:       title,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Location:    location,
		Description: description,
		Attendees:   attendees,
		KindHint:    kind,
		TargetID:    target,
	})
	if err != nil {
		return "", err
	}
	return h.renderConfirmation(conf), nil
}

func (h *Handler) rescheduleEvent(ctx context.Context, d decoder) (string, error) {
	search, err := d.requireText("search")
	if err != nil {
		return "", err
	}
	hint, err := d.windowHint()
	if err != nil {
		return "", err
	}
	newStart, dateOnly, err := d.requireInstant("new_start")
	if err != nil {
		return "", err
	}
	newEnd, _, _, err := d.instant("new_end")
	if err != nil {
		return "", err
	}

	conf, err := h.mutator.Reschedule(ctx, resolver.RescheduleRequest{
		Search:   search,
		Window:   hint,
		NewStart: newStart,
		DateOnly: dateOnly,
		NewEnd:   newEnd,
	})
	if err != nil {
		return "", err
	}
	return h.renderConfirmation(conf), nil
}

func (h *Handler) moveEvent(ctx context.Context, d decoder) (string, error) {
	search, err := d.requireText("search")
	if err != nil {
		return "", err
	}
	target, err := d.requireText("calendar")
	if err != nil {
		return "", err
	}
	hint, err := d.windowHint()
	if err != nil {
		return "", err
	}
	newStart, dateOnly, _, err := d.instant("new_start")
	if err != nil {
		return "", err
	}
	newEnd, _, _, err := d.instant("new_end")
	if err != nil {
		return "", err
	}

	conf, err := h.mutator.Move(ctx, resolver.MoveRequest{
		Search:   search,
		Window:   hint,
		TargetID: target,
		NewStart: newStart,
		DateOnly: dateOnly,
		NewEnd:   newEnd,
	})
	if err != nil {
		return "", err
	}
	return h.renderConfirmation(conf), nil
}

func (h *Handler) deleteEvent(ctx context.Context, d decoder) (string, error) {
	search, err := d.requireText("search")
	if err != nil {
		return "", err
	}
	hint, err := d.windowHint()
	if err != nil {
		return "", err
	}

	conf, err := h.mutator.Delete(ctx, resolver.DeleteRequest{Search: search, Window: hint})
	if err != nil {
		return "", err
	}
	return h.renderConfirmation(conf), nil
}

func (h *Handler) getBriefing(ctx context.Context) (string, error) {
	now := h.now()
	today, failed := h.lister.Day(ctx, now)

	lt := now.In(h.zone.Location())
	tomorrowNoon := time.Date(lt.Year(), lt.Month(), lt.Day()+1, 12, 0, 0, 0, h.zone.Location())
	tomorrow, alsoFailed := h.lister.Day(ctx, tomorrowNoon)
	for id, err := range alsoFailed {
		if _, seen := failed[id]; !seen {
			failed[id] = err
		}
	}

	conflicts := conflict.Find(today)
	return h.composer.Compose(now, today, tomorrow, conflicts, failed), nil
}

// horizonEnd is local midnight after the last day of the horizon.
func (h *Handler) horizonEnd(from time.Time, days int) time.Time {
	lt := from.In(h.zone.Location())
	return time.Date(lt.Year(), lt.Month(), lt.Day()+days, 0, 0, 0, 0, h.zone.Location()).UTC()
}

func (h *Handler) sourceName(id string) string {
	if name, ok := h.names[id]; ok && name != "" {
		return name
	}
	return id
}
