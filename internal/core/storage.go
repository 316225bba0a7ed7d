package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by storage backends when an event does not exist.
var ErrNotFound = errors.New("event not found")

// Storage handles the persistence of events. Both backends (CalDAV, Google
// Calendar) implement this interface.
type Storage interface {
	// CreateEvent writes a new event and fills in its storage ID.
	CreateEvent(ctx context.Context, ev *Event) error
	// UpdateEvent replaces the stored revision of an existing event.
	UpdateEvent(ctx context.Context, ev *Event) error
	// DeleteEvent removes an event. Deletion is idempotent: backends
	// swallow not-found and return nil when the event is already gone.
	DeleteEvent(ctx context.Context, ev *Event) error
	// GetEvent loads one event by calendar and storage ID.
	GetEvent(ctx context.Context, calendarID, id string) (*Event, error)
	// ListEvents returns events sorted by start time.
	ListEvents(ctx context.Context, filter EventFilter) ([]*Event, error)
}

// EventFilter defines criteria for querying a storage backend.
type EventFilter struct {
	Start time.Time
	End   time.Time
	// If empty, query all calendars
	CalendarIDs []string
}
