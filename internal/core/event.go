package core

import (
	"strings"
	"time"
)

// AttendeeStatus represents an attendee's reply to an event invitation.
type AttendeeStatus int

const (
	StatusNeedsAction AttendeeStatus = iota
	StatusAccepted
	StatusDeclined
	StatusTentative
	// Added in the editor, invite not sent yet
	StatusAdded
)

// RepeatFrequency is the unit a repeat rule advances by.
type RepeatFrequency int

const (
	FreqDaily RepeatFrequency = iota
	FreqWeekly
	FreqMonthly
	FreqAnnually
)

// RepeatEnd says how a repeat rule terminates.
type RepeatEnd int

const (
	EndNever RepeatEnd = iota
	// Stops after a fixed number of occurrences
	EndCount
	// Stops at a date boundary
	EndUntilDate
)

// RepeatRule is the persisted form of an event's repeat configuration.
//
// Until is an exclusive boundary: the first instant at which no further
// occurrence may start. For timed events it is midnight (in Timezone) of the
// day after the user-chosen end date; for all-day events it is encoded as a
// UTC calendar date instead of a zoned instant, so the boundary does not
// shift across offsets that straddle UTC midnight. Both encodings must
// round-trip through persistence unchanged.
type RepeatRule struct {
	Frequency RepeatFrequency
	Interval  int
	End       RepeatEnd
	// Number of occurrences when End == EndCount
	Count int64
	// Exclusive end boundary when End == EndUntilDate
	Until time.Time
	// Zone the Until boundary was computed in ("UTC" for all-day events)
	Timezone string
	// Canonical RRULE text carried in iCalendar payloads
	RRule string
}

// Attendee is one entry on an event's guest list.
type Attendee struct {
	// Mail address, compared case-insensitively
	Address string
	Name    string
	Status  AttendeeStatus
	// External recipients have no account on this service and receive
	// invitation mails instead of in-service notifications.
	External bool
	// Pre-shared password an external recipient needs to open a
	// confidential invitation. Required before save for such events.
	Password string
}

// Alarm is a reminder relative to the event start.
type Alarm struct {
	// How long before the event start the reminder fires
	Trigger time.Duration
}

// Calendar describes the calendar an event belongs to, including how the
// current user may use it.
type Calendar struct {
	ID   string
	Name string
	// Owned is true for the user's own calendars, false for calendars
	// shared to the user by someone else.
	Owned bool
	// Writable is the share capability on calendars the user does not own.
	Writable bool
}

// Event is the in-memory shape of one calendar event. It round-trips through
// persistence unchanged. Events are never mutated in place once handed out:
// callers clone, edit the clone, and replace, so a dialog holding the
// original reference never sees a half-applied edit.
type Event struct {
	// Storage identifier, assigned by the backend on first save
	ID string
	// iCalendar UID, stable across revisions
	UID string

	Summary     string
	Location    string
	Description string

	Start time.Time
	End   time.Time
	// All-day events have date-only boundaries
	AllDay bool
	// IANA zone name the event times were entered in
	Timezone string

	// Organizer's mail address; empty for events without invitations
	Organizer string
	// Ordered guest list
	Attendees []Attendee

	Repeat *RepeatRule
	Alarms []Alarm

	// Sequence increments on every saved revision. Recipients use it to
	// discard stale notifications.
	Sequence int64

	// Confidential events are encrypted for their recipients
	Confidential bool

	// Owning calendar; empty for events that only exist inside an
	// invitation mail and were never written to a calendar.
	CalendarID string
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	if e.Attendees != nil {
		c.Attendees = make([]Attendee, len(e.Attendees))
		copy(c.Attendees, e.Attendees)
	}
	if e.Alarms != nil {
		c.Alarms = make([]Alarm, len(e.Alarms))
		copy(c.Alarms, e.Alarms)
	}
	if e.Repeat != nil {
		r := *e.Repeat
		c.Repeat = &r
	}
	return &c
}

// Zone resolves the event's time zone, falling back to UTC when the stored
// name is empty or unknown.
func (e *Event) Zone() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Duration returns the length of the event.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// FindAttendee returns the index of the attendee with the given address,
// or -1 when the address is not on the guest list.
func (e *Event) FindAttendee(address string) int {
	for i, a := range e.Attendees {
		if SameAddress(a.Address, address) {
			return i
		}
	}
	return -1
}

// CleanAddress normalizes a mail address for comparison.
func CleanAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SameAddress reports whether two mail addresses are equal after cleaning.
func SameAddress(a, b string) bool {
	return CleanAddress(a) == CleanAddress(b)
}
