package caldav

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lifeos-tools/attache/internal"
)

type Client struct {
	loc *time.Location
	log *zap.Logger
}

// NewClient builds a CalDAV client. Credentials live per account, so
// construction only needs the display zone.
func NewClient(loc *time.Location, log *zap.Logger) *Client {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{loc: loc, log: log}
}

// authInfo is the JSON stored as account auth for caldav platforms.
type authInfo struct {
	ServerURL string `json:"server_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// AuthJSON encodes caldav credentials in the form this client reads back
// from account storage.
func AuthJSON(serverURL, username, password string) ([]byte, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("%w: server url is required", internal.ErrValidation)
	}
	return json.Marshal(authInfo{
		ServerURL: serverURL,
		Username:  username,
		Password:  password,
	})
}

func (c Client) List(ctx context.Context, src *internal.Source, from, to time.Time) ([]internal.Event, error) {
	client, err := c.davClient(src)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: from.UTC(),
				End:   to.UTC(),
			}},
		},
	}
	objects, err := client.QueryCalendar(ctx, src.ProviderID, query)
	if err != nil {
		return nil, c.wrapErr(src, err)
	}

	var out []internal.Event
	for _, obj := range objects {
		out = append(out, c.eventsFromCalendar(src, obj.Data, from, to)...)
	}

	c.log.Debug("caldav events listed",
		zap.String("source", src.ID),
		zap.Int("count", len(out)))
	return out, nil
}

func (c Client) CreateEvent(ctx context.Context, src *internal.Source, req *internal.Event) (*internal.Event, error) {
	client, err := c.davClient(src)
	if err != nil {
		return nil, err
	}

	uid := uuid.NewString()
	path := objectPath(src.ProviderID, uid)
	_, err = client.PutCalendarObject(ctx, path, newCalendarDoc(c.newVEvent(req, uid)))
	if err != nil {
		return nil, c.wrapErr(src, err)
	}

	c.log.Info("caldav event created",
		zap.String("source", src.ID),
		zap.String("uid", uid),
		zap.String("title", req.Title))

	created := *req
	created.SourceID = src.ID
	created.ID = uid
	created.Link = path
	return &created, nil
}

func (c Client) UpdateEvent(ctx context.Context, src *internal.Source, id string, patch internal.EventPatch) (*internal.Event, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update on event %s", internal.ErrValidation, id)
	}
	client, err := c.davClient(src)
	if err != nil {
		return nil, err
	}

	uid := masterUID(id)
	obj, err := c.findObject(ctx, client, src, uid)
	if err != nil {
		return nil, err
	}
	comp := findVEvent(obj.Data, uid)
	if comp == nil {
		return nil, fmt.Errorf("%w: event %s not on %s", internal.ErrNotFound, uid, src.ID)
	}

	c.applyPatch(comp, patch)
	if _, err := client.PutCalendarObject(ctx, obj.Path, obj.Data); err != nil {
		return nil, c.wrapErr(src, err)
	}

	c.log.Info("caldav event updated",
		zap.String("source", src.ID),
		zap.String("uid", uid))

	parsed, err := c.parseComponent(comp)
	if err != nil {
		return nil, fmt.Errorf("reading back event %s: %v", uid, err)
	}
	ev := c.toEvent(src, parsed, uid, parsed.start, parsed.end)
	ev.Link = obj.Path
	return &ev, nil
}

func (c Client) DeleteEvent(ctx context.Context, src *internal.Source, id string) error {
	client, err := c.davClient(src)
	if err != nil {
		return err
	}

	uid := masterUID(id)
	obj, err := c.findObject(ctx, client, src, uid)
	if err != nil {
		return err
	}
	if err := client.Client.RemoveAll(ctx, obj.Path); err != nil {
		return c.wrapErr(src, err)
	}

	c.log.Info("caldav event deleted",
		zap.String("source", src.ID),
		zap.String("uid", uid))
	return nil
}

// CalendarInfo is what configure prints so the user can fill in
// provider ids.
type CalendarInfo struct {
	Path string
	Name string
}

// Calendars lists what the server exposes, doubling as the connection
// probe during configure.
func (c Client) Calendars(ctx context.Context, authJSON []byte) ([]CalendarInfo, error) {
	client, err := c.davClientFromAuth(authJSON)
	if err != nil {
		return nil, err
	}

	// Empty path means server root.
	cals, err := client.FindCalendars(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internal.ErrSourceUnavailable, err)
	}

	out := make([]CalendarInfo, 0, len(cals))
	for _, cal := range cals {
		out = append(out, CalendarInfo{
			Path: cal.Path,
			Name: cal.Name,
		})
	}
	return out, nil
}

func (c Client) davClient(src *internal.Source) (*caldav.Client, error) {
	if src.Account.Auth == "" {
		return nil, fmt.Errorf("%w: source %s has no stored credentials", internal.ErrValidation, src.ID)
	}
	return c.davClientFromAuth([]byte(src.Account.Auth))
}

func (c Client) davClientFromAuth(authJSON []byte) (*caldav.Client, error) {
	var auth authInfo
	if err := json.Unmarshal(authJSON, &auth); err != nil {
		return nil, fmt.Errorf("%w: parsing stored caldav credentials: %v", internal.ErrSourceUnavailable, err)
	}
	if auth.ServerURL == "" {
		return nil, fmt.Errorf("%w: caldav credentials have no server_url", internal.ErrValidation)
	}

	var httpClient webdav.HTTPClient = http.DefaultClient
	if auth.Username != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, auth.Username, auth.Password)
	}
	client, err := caldav.NewClient(httpClient, auth.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internal.ErrSourceUnavailable, err)
	}
	return client, nil
}

// findObject locates the calendar object holding uid. Some servers
// ignore prop filters, so the result is double-checked.
func (c Client) findObject(ctx context.Context, client *caldav.Client, src *internal.Source, uid string) (*caldav.CalendarObject, error) {
	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name: "VEVENT",
				Props: []caldav.PropFilter{{
					Name:      "UID",
					TextMatch: &caldav.TextMatch{Text: uid},
				}},
			}},
		},
	}
	objects, err := client.QueryCalendar(ctx, src.ProviderID, query)
	if err != nil {
		return nil, c.wrapErr(src, err)
	}

	for i := range objects {
		if findVEvent(objects[i].Data, uid) != nil {
			return &objects[i], nil
		}
	}
	return nil, fmt.Errorf("%w: event %s not on %s", internal.ErrNotFound, uid, src.ID)
}

func findVEvent(cal *ical.Calendar, uid string) *ical.Component {
	if cal == nil {
		return nil
	}
	for _, comp := range cal.Component.Children {
		if comp.Name != "VEVENT" {
			continue
		}
		if getTextProp(comp.Props, "UID") == uid {
			return comp
		}
	}
	return nil
}

func objectPath(calendarPath, uid string) string {
	return strings.TrimSuffix(calendarPath, "/") + "/" + uid + ".ics"
}

// wrapErr translates webdav failures into the error kinds callers
// branch on. go-webdav keeps its HTTP error type internal, so the
// not-found check falls back on the message.
func (c Client) wrapErr(src *internal.Source, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if isNotFound(err) {
		return fmt.Errorf("%w: caldav object missing on %s: %v", internal.ErrNotFound, src.ID, err)
	}
	return fmt.Errorf("%w: %w", internal.ErrSourceUnavailable, err)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "404") || strings.Contains(strings.ToLower(msg), "not found")
}
