// Package google persists calendar events in Google Calendar. It is the
// alternative storage backend for accounts whose calendar lives with
// Google.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/akarlsen/kal/internal/core"
	"github.com/akarlsen/kal/internal/ics"
)

// Adapter implements core.Storage against the Google Calendar API.
type Adapter struct {
	logger    *slog.Logger
	client    *http.Client
	service   *calendar.Service
	config    *oauth2.Config
	credsFile string
	tokenFile string
	calendars map[string]core.Calendar
}

// New creates an adapter reading OAuth credentials and token from the given
// files. Call Login before using it.
func New(logger *slog.Logger, credsFile, tokenFile string) *Adapter {
	return &Adapter{
		logger:    logger,
		credsFile: credsFile,
		tokenFile: tokenFile,
		calendars: make(map[string]core.Calendar),
	}
}

// Login loads credentials and token, then initializes the Calendar service.
// Run `kal auth` first to generate the token file.
func (g *Adapter) Login(ctx context.Context) error {
	b, err := os.ReadFile(g.credsFile)
	if err != nil {
		return fmt.Errorf("read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return fmt.Errorf("parse credentials: %w", err)
	}
	g.config = config

	tok, err := tokenFromFile(g.tokenFile)
	if err != nil {
		return fmt.Errorf("read token file (run 'kal auth' first): %w", err)
	}

	g.client = g.config.Client(ctx, tok)
	g.service, err = calendar.NewService(ctx, option.WithHTTPClient(g.client))
	if err != nil {
		return err
	}

	return g.loadCalendarList(ctx)
}

func (g *Adapter) loadCalendarList(ctx context.Context) error {
	calList, err := g.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("load calendar list: %w", err)
	}
	for _, c := range calList.Items {
		g.calendars[c.Id] = core.Calendar{
			ID:       c.Id,
			Name:     c.Summary,
			Owned:    c.AccessRole == "owner",
			Writable: c.AccessRole == "owner" || c.AccessRole == "writer",
		}
	}
	return nil
}

// Calendars returns the calendars the account has access to.
func (g *Adapter) Calendars() []core.Calendar {
	out := make([]core.Calendar, 0, len(g.calendars))
	for _, c := range g.calendars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// tokenFromFile reads an OAuth token from a JSON file.
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// CreateEvent inserts the event and fills in its storage ID.
func (g *Adapter) CreateEvent(ctx context.Context, ev *core.Event) error {
	if ev.CalendarID == "" {
		return fmt.Errorf("event %s has no target calendar", ev.UID)
	}
	created, err := g.service.Events.Insert(ev.CalendarID, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	ev.ID = created.Id
	g.logger.Info("created event", "calendar", ev.CalendarID, "id", ev.ID, "summary", ev.Summary)
	return nil
}

// UpdateEvent replaces the stored revision.
func (g *Adapter) UpdateEvent(ctx context.Context, ev *core.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("event %s was never stored", ev.UID)
	}
	_, err := g.service.Events.Update(ev.CalendarID, ev.ID, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	g.logger.Info("updated event", "calendar", ev.CalendarID, "id", ev.ID, "sequence", ev.Sequence)
	return nil
}

// DeleteEvent removes the event. Already-deleted events are not an error.
func (g *Adapter) DeleteEvent(ctx context.Context, ev *core.Event) error {
	if ev.ID == "" {
		return nil
	}
	err := g.service.Events.Delete(ev.CalendarID, ev.ID).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
			g.logger.Debug("event already removed server-side", "id", ev.ID)
			return nil
		}
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// GetEvent loads one event.
func (g *Adapter) GetEvent(ctx context.Context, calendarID, id string) (*core.Event, error) {
	item, err := g.service.Events.Get(calendarID, id).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return fromGoogleEvent(item, calendarID), nil
}

// ListEvents returns events in the requested window, sorted by start time.
func (g *Adapter) ListEvents(ctx context.Context, filter core.EventFilter) ([]*core.Event, error) {
	calendarIDs := filter.CalendarIDs
	if len(calendarIDs) == 0 {
		for id := range g.calendars {
			calendarIDs = append(calendarIDs, id)
		}
	}

	var events []*core.Event
	for _, calID := range calendarIDs {
		pageToken := ""
		for {
			req := g.service.Events.List(calID).
				ShowDeleted(false).
				SingleEvents(false).
				TimeMin(filter.Start.Format(time.RFC3339)).
				TimeMax(filter.End.Format(time.RFC3339)).
				Context(ctx)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			result, err := req.Do()
			if err != nil {
				g.logger.Warn("event list failed", "calendar", calID, "error", err)
				break
			}
			for _, item := range result.Items {
				events = append(events, fromGoogleEvent(item, calID))
			}
			pageToken = result.NextPageToken
			if pageToken == "" {
				break
			}
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

// toGoogleEvent maps the internal model onto the API shape.
func toGoogleEvent(ev *core.Event) *calendar.Event {
	item := &calendar.Event{
		ICalUID:     ev.UID,
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		Sequence:    ev.Sequence,
	}

	if ev.AllDay {
		item.Start = &calendar.EventDateTime{Date: ev.Start.Format("2006-01-02")}
		item.End = &calendar.EventDateTime{Date: ev.End.Format("2006-01-02")}
	} else {
		item.Start = &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.Timezone}
		item.End = &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.Timezone}
	}

	if ev.Organizer != "" {
		item.Organizer = &calendar.EventOrganizer{Email: ev.Organizer}
	}
	for _, a := range ev.Attendees {
		item.Attendees = append(item.Attendees, &calendar.EventAttendee{
			Email:          a.Address,
			DisplayName:    a.Name,
			ResponseStatus: responseStatus(a.Status),
		})
	}
	if ev.Repeat != nil && ev.Repeat.RRule != "" {
		item.Recurrence = []string{"RRULE:" + ev.Repeat.RRule}
	}
	if ev.Confidential {
		item.Visibility = "confidential"
	}
	return item
}

// fromGoogleEvent maps an API event back into the internal model.
func fromGoogleEvent(item *calendar.Event, calendarID string) *core.Event {
	ev := &core.Event{
		ID:          item.Id,
		UID:         item.ICalUID,
		Summary:     item.Summary,
		Location:    item.Location,
		Description: item.Description,
		Sequence:    item.Sequence,
		CalendarID:  calendarID,
	}

	if item.Start != nil {
		if item.Start.DateTime != "" {
			ev.Start, _ = time.Parse(time.RFC3339, item.Start.DateTime)
			ev.End, _ = time.Parse(time.RFC3339, item.End.DateTime)
			ev.Timezone = item.Start.TimeZone
		} else {
			// All-day events carry date-only boundaries
			ev.Start, _ = time.Parse("2006-01-02", item.Start.Date)
			ev.End, _ = time.Parse("2006-01-02", item.End.Date)
			ev.AllDay = true
		}
	}

	if item.Organizer != nil {
		ev.Organizer = item.Organizer.Email
	}
	for _, a := range item.Attendees {
		ev.Attendees = append(ev.Attendees, core.Attendee{
			Address: a.Email,
			Name:    a.DisplayName,
			Status:  statusFromResponse(a.ResponseStatus),
		})
	}
	if ev.Confidential = item.Visibility == "confidential"; !ev.Confidential {
		ev.Confidential = item.Visibility == "private"
	}

	for _, line := range item.Recurrence {
		if text, ok := strings.CutPrefix(line, "RRULE:"); ok {
			if rule, err := ics.DecodeRepeatRule(text, ev.Zone(), ev.AllDay); err == nil {
				ev.Repeat = rule
			}
			break
		}
	}

	return ev
}

func responseStatus(status core.AttendeeStatus) string {
	switch status {
	case core.StatusAccepted:
		return "accepted"
	case core.StatusDeclined:
		return "declined"
	case core.StatusTentative:
		return "tentative"
	default:
		return "needsAction"
	}
}

func statusFromResponse(v string) core.AttendeeStatus {
	switch v {
	case "accepted":
		return core.StatusAccepted
	case "declined":
		return core.StatusDeclined
	case "tentative":
		return core.StatusTentative
	default:
		return core.StatusNeedsAction
	}
}
