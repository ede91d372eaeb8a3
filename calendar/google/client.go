package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/lifeos-tools/attache/internal"
)

const pageSize = 250

type Client struct {
	oauthCfg *oauth2.Config
	loc      *time.Location
	log      *zap.Logger
}

// NewClient builds a Google Calendar client from the OAuth client JSON
// downloaded from the Google Cloud console. loc decides how date-only
// events are anchored and which zone created events carry.
func NewClient(credJSON []byte, loc *time.Location, log *zap.Logger) (*Client, error) {
	oauthCfg, err := google.ConfigFromJSON(credJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("google: parsing credentials file: %v", err)
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		oauthCfg: oauthCfg,
		loc:      loc,
		log:      log,
	}, nil
}

func (c Client) List(ctx context.Context, src *internal.Source, from, to time.Time) ([]internal.Event, error) {
	svc, err := c.calendarSvc(ctx, src)
	if err != nil {
		return nil, err
	}

	var (
		out           []internal.Event
		nextPageToken string
	)
	for {
		events, err := svc.Events.
			List(src.ProviderID).
			Context(ctx).
			ShowDeleted(false).
			SingleEvents(true).
			OrderBy("startTime").
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			MaxResults(pageSize).
			PageToken(nextPageToken).
			Do()
		if err != nil {
			return nil, c.wrapErr(src, err)
		}

		for _, item := range events.Items {
			if item.Status == "cancelled" {
				continue
			}
			out = append(out, c.newEvent(src, item))
		}
		nextPageToken = events.NextPageToken
		if nextPageToken == "" {
			break
		}
	}

	c.log.Debug("google events listed",
		zap.String("source", src.ID),
		zap.Int("count", len(out)))
	return out, nil
}

func (c Client) CreateEvent(ctx context.Context, src *internal.Source, req *internal.Event) (*internal.Event, error) {
	svc, err := c.calendarSvc(ctx, src)
	if err != nil {
		return nil, err
	}

	gevent, err := svc.Events.Insert(src.ProviderID, c.newGoogleEvent(req)).Context(ctx).Do()
	if err != nil {
		return nil, c.wrapErr(src, err)
	}

	c.log.Info("google event created",
		zap.String("source", src.ID),
		zap.String("id", gevent.Id),
		zap.String("title", req.Title))
	ev := c.newEvent(src, gevent)
	return &ev, nil
}

func (c Client) UpdateEvent(ctx context.Context, src *internal.Source, id string, patch internal.EventPatch) (*internal.Event, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update on event %s", internal.ErrValidation, id)
	}
	svc, err := c.calendarSvc(ctx, src)
	if err != nil {
		return nil, err
	}

	gevent, err := svc.Events.Patch(src.ProviderID, id, c.newGooglePatch(patch)).Context(ctx).Do()
	if err != nil {
		return nil, c.wrapErr(src, err)
	}

	c.log.Info("google event updated",
		zap.String("source", src.ID),
		zap.String("id", id))
	ev := c.newEvent(src, gevent)
	return &ev, nil
}

func (c Client) DeleteEvent(ctx context.Context, src *internal.Source, id string) error {
	svc, err := c.calendarSvc(ctx, src)
	if err != nil {
		return err
	}

	err = svc.Events.Delete(src.ProviderID, id).Context(ctx).Do()
	if err != nil {
		if alreadyDeleted(err) {
			return fmt.Errorf("%w: event %s was already deleted", internal.ErrNotFound, id)
		}
		return c.wrapErr(src, err)
	}

	c.log.Info("google event deleted",
		zap.String("source", src.ID),
		zap.String("id", id))
	return nil
}

// Login walks the browser OAuth flow and returns the token as JSON,
// ready to be stored as account auth.
func (c Client) Login(ctx context.Context) ([]byte, error) {
	state := fmt.Sprintf("attache-%d", time.Now().UTC().Nanosecond())
	authURL := c.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(os.Stdout, "\nGo to the following link in your browser\n%s\n", authURL)

	mux := http.NewServeMux()
	server := &http.Server{
		Addr:    ":8080",
		Handler: mux,
	}

	var (
		token   *oauth2.Token
		authErr error
	)

	mux.HandleFunc("/attache", func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			go server.Shutdown(ctx)
		}()

		query := req.URL.Query()
		if query.Get("state") != state {
			authErr = errors.New("oauth link is not valid")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		token, authErr = c.oauthCfg.Exchange(ctx, query.Get("code"))
		if authErr != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "Unable to retrieve token:", authErr)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "All good, you can close this window!")
	})

	serverCh := make(chan struct{})
	var svrErr error
	go func() {
		svrErr = server.ListenAndServe()
		close(serverCh)
	}()

	<-serverCh

	if svrErr != nil && svrErr != http.ErrServerClosed {
		return nil, svrErr
	}

	if authErr != nil {
		return nil, authErr
	}

	return json.Marshal(token)
}

// Email identifies the account a fresh token belongs to, using the id
// of the primary calendar.
func (c Client) Email(ctx context.Context, tokenJSON []byte) (string, error) {
	svc, err := c.svcFromToken(ctx, tokenJSON)
	if err != nil {
		return "", err
	}
	cal, err := svc.CalendarList.Get("primary").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: %v", internal.ErrSourceUnavailable, err)
	}
	return cal.Id, nil
}

// CalendarInfo is what configure prints so the user can fill in
// provider ids.
type CalendarInfo struct {
	ID      string
	Name    string
	Primary bool
}

func (c Client) Calendars(ctx context.Context, tokenJSON []byte) ([]CalendarInfo, error) {
	svc, err := c.svcFromToken(ctx, tokenJSON)
	if err != nil {
		return nil, err
	}
	list, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internal.ErrSourceUnavailable, err)
	}

	out := make([]CalendarInfo, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, CalendarInfo{
			ID:      item.Id,
			Name:    item.Summary,
			Primary: item.Primary,
		})
	}
	return out, nil
}

func (c Client) calendarSvc(ctx context.Context, src *internal.Source) (*calendar.Service, error) {
	if src.Account.Auth == "" {
		return nil, fmt.Errorf("%w: source %s has no stored credentials", internal.ErrValidation, src.ID)
	}
	return c.svcFromToken(ctx, []byte(src.Account.Auth))
}

func (c Client) svcFromToken(ctx context.Context, tokenJSON []byte) (*calendar.Service, error) {
	var tok *oauth2.Token
	err := json.Unmarshal(tokenJSON, &tok)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing stored token: %v", internal.ErrSourceUnavailable, err)
	}
	return calendar.NewService(ctx, option.WithHTTPClient(c.oauthCfg.Client(ctx, tok)))
}

// wrapErr translates googleapi failures into the error kinds callers
// branch on. Context errors pass through untouched so timeouts stay
// recognizable.
func (c Client) wrapErr(src *internal.Source, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%w: google returned %d for %s", internal.ErrNotFound, gErr.Code, src.ProviderID)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: google rejected the request: %s", internal.ErrValidation, gErr.Message)
		}
	}
	return fmt.Errorf("%w: %w", internal.ErrSourceUnavailable, err)
}

func alreadyDeleted(err error) bool {
	return errIsReason(err, "deleted")
}

func errIsReason(err error, reason string) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}

	for _, err := range gErr.Errors {
		switch err.Reason {
		case reason:
			return true
		}
	}
	return false
}
