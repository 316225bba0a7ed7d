// Package caldav persists calendar events on a CalDAV server. It is the
// default storage backend.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"github.com/akarlsen/kal/internal/core"
	"github.com/akarlsen/kal/internal/ics"
)

// basicAuthTransport adds Basic Auth and a client header to every request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "kal/1.0")
	return t.Transport.RoundTrip(req)
}

// Adapter implements core.Storage against a CalDAV endpoint.
type Adapter struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	endpoint     string
	// calendar path -> calendar
	calendars map[string]core.Calendar
}

// New creates an adapter for the given endpoint with basic-auth credentials.
// Call Login before using it.
func New(logger *slog.Logger, endpoint, username, password string) (*Adapter, error) {
	transport := &basicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create webdav client: %w", err)
	}

	return &Adapter{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		endpoint:     strings.TrimSuffix(endpoint, "/"),
		calendars:    make(map[string]core.Calendar),
	}, nil
}

// Login discovers the principal's calendar home set and its calendars.
func (a *Adapter) Login(ctx context.Context) error {
	principal, err := a.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := a.caldavClient.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return fmt.Errorf("find calendar home set: %w", err)
	}
	cals, err := a.caldavClient.FindCalendars(ctx, homeSet)
	if err != nil {
		return fmt.Errorf("find calendars: %w", err)
	}
	for _, c := range cals {
		a.calendars[c.Path] = core.Calendar{
			ID:       c.Path,
			Name:     c.Name,
			Owned:    true,
			Writable: true,
		}
	}
	a.logger.Info("discovered calendars", "count", len(a.calendars))
	return nil
}

// Calendars returns the discovered calendars.
func (a *Adapter) Calendars() []core.Calendar {
	out := make([]core.Calendar, 0, len(a.calendars))
	for _, c := range a.calendars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CreateEvent writes a new .ics object named after the event UID and fills
// in the event's storage ID (the object path).
func (a *Adapter) CreateEvent(ctx context.Context, ev *core.Event) error {
	if ev.CalendarID == "" {
		return fmt.Errorf("event %s has no target calendar", ev.UID)
	}
	objectPath := path.Join(ev.CalendarID, ev.UID+".ics")
	if err := a.put(ctx, objectPath, ev); err != nil {
		return err
	}
	ev.ID = objectPath
	a.logger.Info("created event", "path", objectPath, "summary", ev.Summary)
	return nil
}

// UpdateEvent overwrites the stored revision.
func (a *Adapter) UpdateEvent(ctx context.Context, ev *core.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("event %s was never stored", ev.UID)
	}
	if err := a.put(ctx, ev.ID, ev); err != nil {
		return err
	}
	a.logger.Info("updated event", "path", ev.ID, "sequence", ev.Sequence)
	return nil
}

func (a *Adapter) put(ctx context.Context, objectPath string, ev *core.Event) error {
	cal := ics.EventCalendar(ev, true)

	writer, err := a.webdavClient.Create(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("open %s for writing: %w", objectPath, err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return fmt.Errorf("encode event: %w", err)
	}
	// The writer streams into the PUT request; its result (a non-2xx status
	// or a transport failure) only arrives on Close.
	if err := writer.Close(); err != nil {
		return fmt.Errorf("write %s: %w", objectPath, err)
	}
	return nil
}

// DeleteEvent removes the stored object. An object that is already gone is
// treated as deleted, not as an error.
func (a *Adapter) DeleteEvent(ctx context.Context, ev *core.Event) error {
	if ev.ID == "" {
		return nil
	}
	err := a.webdavClient.RemoveAll(ctx, ev.ID)
	if err != nil {
		if isNotFound(err) {
			a.logger.Debug("event already removed server-side", "path", ev.ID)
			return nil
		}
		return fmt.Errorf("delete %s: %w", ev.ID, err)
	}
	return nil
}

// isNotFound sniffs the HTTP status out of the client error. The webdav
// client does not expose a typed not-found error; its HTTP errors render as
// "<code> <status text>", so the code is matched at the start of the message
// rather than anywhere in it.
func isNotFound(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if strings.HasPrefix(msg, "404 ") || strings.HasPrefix(msg, "410 ") {
			return true
		}
	}
	return false
}

// GetEvent loads one event by its object path.
func (a *Adapter) GetEvent(ctx context.Context, calendarID, id string) (*core.Event, error) {
	obj, err := a.caldavClient.GetCalendarObject(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	ev, err := ics.DecodeEvent(obj.Data, calendarID)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	ev.ID = obj.Path
	return ev, nil
}

// ListEvents runs a time-range query against each requested calendar.
func (a *Adapter) ListEvents(ctx context.Context, filter core.EventFilter) ([]*core.Event, error) {
	calendarIDs := filter.CalendarIDs
	if len(calendarIDs) == 0 {
		for id := range a.calendars {
			calendarIDs = append(calendarIDs, id)
		}
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: filter.Start,
				End:   filter.End,
			}},
		},
	}

	var events []*core.Event
	for _, calID := range calendarIDs {
		objects, err := a.caldavClient.QueryCalendar(ctx, calID, query)
		if err != nil {
			a.logger.Warn("calendar query failed", "calendar", calID, "error", err)
			continue
		}
		for _, obj := range objects {
			ev, err := ics.DecodeEvent(obj.Data, calID)
			if err != nil {
				a.logger.Warn("skipping undecodable object", "path", obj.Path, "error", err)
				continue
			}
			ev.ID = obj.Path
			events = append(events, ev)
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}
