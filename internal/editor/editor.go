// Package editor holds the view-model behind the event edit dialog: the
// mutable draft of one calendar event, the permission gates on each edit,
// and the save pipeline that decides which invitation traffic goes out.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/akarlsen/kal/internal/core"
)

// Notifier dispatches invitation traffic for an event snapshot. The notify
// package provides the iTIP implementation; tests substitute fakes.
type Notifier interface {
	SendInvites(ctx context.Context, ev *core.Event, to []core.Attendee) error
	SendUpdates(ctx context.Context, ev *core.Event, to []core.Attendee) error
	SendCancellations(ctx context.Context, ev *core.Event, to []core.Attendee) error
	SendResponse(ctx context.Context, ev *core.Event, attendee core.Attendee, organizer string) error
}

// SaveOptions controls the optional parts of a save.
type SaveOptions struct {
	// ConfirmUpdates is asked once, with the number of recipients, before
	// update notices go out to attendees who were already on the event.
	// Nil means updates are not sent.
	ConfirmUpdates func(recipients int) bool
}

// Outcome reports what a save or reply actually did. Notification failures
// are non-fatal by design: the event was persisted, the messages just did
// not all go out, and the user is told so without the save rolling back.
type Outcome struct {
	Saved bool
	// One entry per notification send that failed
	NotifyFailures []error
}

// Editor is the view-model for one open edit or create dialog. It is only
// ever used from the UI loop: re-entrant saves are dropped via a plain busy
// flag, and no further synchronization exists or is needed.
type Editor struct {
	store    core.Storage
	notifier Notifier
	logger   *slog.Logger

	calendar core.Calendar
	role     core.EditRole
	self     func(string) bool

	// nil while creating; otherwise the revision the dialog was opened on
	original *core.Event
	draft    *core.Event
	repeat   *RepeatConfig

	saving bool
}

// New opens an editor on an existing event. The edit role is classified once
// here and stays fixed for the editor's lifetime.
func New(logger *slog.Logger, store core.Storage, notifier Notifier, cal core.Calendar, ev *core.Event, userAddresses []string) *Editor {
	self := selfMatcher(userAddresses)
	ed := &Editor{
		store:    store,
		notifier: notifier,
		logger:   logger,
		calendar: cal,
		role:     core.ClassifyRole(cal, ev, self),
		self:     self,
		original: ev,
		draft:    ev.Clone(),
	}
	if ev.Repeat != nil {
		ed.repeat = &RepeatConfig{
			Frequency: ev.Repeat.Frequency,
			Interval:  ev.Repeat.Interval,
			End:       ev.Repeat.End,
			Count:     ev.Repeat.Count,
			UntilDate: ev.Repeat.Until.AddDate(0, 0, -1),
		}
	}
	return ed
}

// NewForDate opens an editor on a fresh event: one hour long, starting at
// the next full hour of the given date, owned by the user.
func NewForDate(logger *slog.Logger, store core.Storage, notifier Notifier, cal core.Calendar, date time.Time, userAddresses []string) *Editor {
	self := selfMatcher(userAddresses)
	start := date.Truncate(time.Hour).Add(time.Hour)
	organizer := ""
	if len(userAddresses) > 0 {
		organizer = userAddresses[0]
	}
	draft := &core.Event{
		UID:        uuid.NewString(),
		Start:      start,
		End:        start.Add(time.Hour),
		Timezone:   date.Location().String(),
		Organizer:  organizer,
		CalendarID: cal.ID,
	}
	return &Editor{
		store:    store,
		notifier: notifier,
		logger:   logger,
		calendar: cal,
		role:     core.ClassifyRole(cal, draft, self),
		self:     self,
		draft:    draft,
	}
}

func selfMatcher(addresses []string) func(string) bool {
	set := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		set[core.CleanAddress(a)] = true
	}
	return func(addr string) bool {
		return set[core.CleanAddress(addr)]
	}
}

// Role returns the fixed edit-role classification.
func (ed *Editor) Role() core.EditRole { return ed.role }

// Draft returns the event as currently edited. Callers must not hold on to
// the returned pointer across mutations.
func (ed *Editor) Draft() *core.Event { return ed.draft }

// Repeat returns the current repeat configuration, nil when the event does
// not repeat.
func (ed *Editor) Repeat() *RepeatConfig { return ed.repeat }

// Permission-gated mutators. A denied mutation is silently ignored: these
// gates back disabled UI controls, so a no-op is the correct outcome and
// not an error.

// SetSummary updates the event title.
func (ed *Editor) SetSummary(s string) {
	if !ed.role.CanEditContent() {
		return
	}
	ed.draft.Summary = s
}

// SetLocation updates the event location.
func (ed *Editor) SetLocation(s string) {
	if !ed.role.CanEditContent() {
		return
	}
	ed.draft.Location = s
}

// SetDescription updates the event description.
func (ed *Editor) SetDescription(s string) {
	if !ed.role.CanEditContent() {
		return
	}
	ed.draft.Description = s
}

// SetTimeRange updates start and end together. Validation happens at save
// time so the dialog can pass through intermediate invalid states.
func (ed *Editor) SetTimeRange(start, end time.Time) {
	if !ed.role.CanEditContent() {
		return
	}
	ed.draft.Start = start
	ed.draft.End = end
}

// SetAllDay toggles date-only boundaries.
func (ed *Editor) SetAllDay(allDay bool) {
	if !ed.role.CanEditContent() {
		return
	}
	ed.draft.AllDay = allDay
}

// SetConfidential toggles recipient-side encryption of invitation mails.
func (ed *Editor) SetConfidential(c bool) {
	if !ed.role.CanEditContent() {
		return
	}
	ed.draft.Confidential = c
}

// SetRepeat replaces the repeat configuration. Nil clears it.
func (ed *Editor) SetRepeat(cfg *RepeatConfig) {
	if !ed.role.CanEditContent() {
		return
	}
	ed.repeat = cfg
}

// AddAttendee puts a new guest on the list with status "added". Duplicate
// addresses are ignored.
func (ed *Editor) AddAttendee(a core.Attendee) {
	if !ed.role.CanModifyGuests() {
		return
	}
	if ed.draft.FindAttendee(a.Address) >= 0 {
		return
	}
	a.Status = core.StatusAdded
	ed.draft.Attendees = append(ed.draft.Attendees, a)
}

// RemoveAttendee drops a guest from the list.
func (ed *Editor) RemoveAttendee(address string) {
	if !ed.role.CanModifyGuests() {
		return
	}
	i := ed.draft.FindAttendee(address)
	if i < 0 {
		return
	}
	ed.draft.Attendees = append(ed.draft.Attendees[:i], ed.draft.Attendees[i+1:]...)
}

// SetAttendeePassword sets the pre-shared password on an external guest.
func (ed *Editor) SetAttendeePassword(address, password string) {
	if !ed.role.CanModifyGuests() {
		return
	}
	if i := ed.draft.FindAttendee(address); i >= 0 {
		ed.draft.Attendees[i].Password = password
	}
}

// SetOwnStatus changes the user's own participation. The user must already
// be on the guest list (as invitee) or be the organizer.
func (ed *Editor) SetOwnStatus(status core.AttendeeStatus) {
	if !ed.role.CanModifyOwnAttendance() {
		return
	}
	for i := range ed.draft.Attendees {
		if ed.self(ed.draft.Attendees[i].Address) {
			ed.draft.Attendees[i].Status = status
			return
		}
	}
}

// SetOrganizer changes the organizer address. Allowed only for owners and
// only while no invites have gone out yet: once the original event carries
// attendees, the organizer is pinned.
func (ed *Editor) SetOrganizer(address string) {
	if !ed.canModifyOrganizer() {
		return
	}
	ed.draft.Organizer = address
}

func (ed *Editor) canModifyOrganizer() bool {
	if ed.role != core.RoleOwner {
		return false
	}
	return ed.original == nil || len(ed.original.Attendees) == 0
}

// AddAlarm appends a reminder.
func (ed *Editor) AddAlarm(a core.Alarm) {
	if !ed.role.CanModifyAlarms() {
		return
	}
	ed.draft.Alarms = append(ed.draft.Alarms, a)
}

// RemoveAlarm drops the reminder at the given index.
func (ed *Editor) RemoveAlarm(i int) {
	if !ed.role.CanModifyAlarms() {
		return
	}
	if i < 0 || i >= len(ed.draft.Alarms) {
		return
	}
	ed.draft.Alarms = append(ed.draft.Alarms[:i], ed.draft.Alarms[i+1:]...)
}

// PendingUpdateCount returns how many attendees would receive an update
// notice if the event were saved now. The dialog uses it to decide whether
// to show the "send updates?" prompt before calling Save.
func (ed *Editor) PendingUpdateCount() int {
	var original []core.Attendee
	if ed.original != nil {
		original = ed.original.Attendees
	}
	return len(DiffAttendees(original, ed.draft.Attendees, ed.self).Existing)
}

// Save validates the draft and persists it, dispatching invitation traffic
// in a fixed order: invites to added guests, cancellations to removed
// guests, then the write, then update notices to remaining guests if the
// confirmation callback approves.
//
// A save arriving while another is in flight is dropped: Outcome.Saved is
// false and there is no error and no side effect. Notification failures do
// not fail the save; they are returned in Outcome.NotifyFailures.
func (ed *Editor) Save(ctx context.Context, opts SaveOptions) (Outcome, error) {
	if ed.saving {
		return Outcome{}, nil
	}
	if ed.role == core.RoleSharedReadOnly {
		return Outcome{}, nil
	}
	ed.saving = true
	defer func() { ed.saving = false }()

	draft := ed.draft
	if !draft.End.After(draft.Start) {
		return Outcome{}, ErrInvalidTimeRange
	}
	if draft.Confidential {
		for _, a := range draft.Attendees {
			if ed.self(a.Address) {
				continue
			}
			if a.External && a.Password == "" {
				return Outcome{}, fmt.Errorf("%w: %s", ErrMissingPassword, a.Address)
			}
		}
	}

	if ed.repeat != nil {
		rule, err := BuildRepeatRule(*ed.repeat, draft.Start, draft.Zone(), draft.AllDay)
		if err != nil {
			return Outcome{}, err
		}
		draft.Repeat = rule
	} else {
		draft.Repeat = nil
	}

	var original []core.Attendee
	if ed.original != nil {
		original = ed.original.Attendees
	}
	diff := DiffAttendees(original, draft.Attendees, ed.self)

	draft.Sequence++

	var out Outcome
	if len(diff.Added) > 0 {
		if err := ed.notifier.SendInvites(ctx, draft, diff.Added); err != nil {
			ed.logger.Warn("sending invites failed", "uid", draft.UID, "error", err)
			out.NotifyFailures = append(out.NotifyFailures, fmt.Errorf("send invites: %w", err))
		}
	}
	if len(diff.Removed) > 0 {
		if err := ed.notifier.SendCancellations(ctx, draft, diff.Removed); err != nil {
			ed.logger.Warn("sending cancellations failed", "uid", draft.UID, "error", err)
			out.NotifyFailures = append(out.NotifyFailures, fmt.Errorf("send cancellations: %w", err))
		}
	}

	var err error
	if ed.original == nil {
		err = ed.store.CreateEvent(ctx, draft)
	} else {
		err = ed.store.UpdateEvent(ctx, draft)
	}
	if err != nil {
		draft.Sequence--
		return out, fmt.Errorf("persist event: %w", err)
	}

	if len(diff.Existing) > 0 && opts.ConfirmUpdates != nil && opts.ConfirmUpdates(len(diff.Existing)) {
		if err := ed.notifier.SendUpdates(ctx, draft, diff.Existing); err != nil {
			ed.logger.Warn("sending updates failed", "uid", draft.UID, "error", err)
			out.NotifyFailures = append(out.NotifyFailures, fmt.Errorf("send updates: %w", err))
		}
	}

	ed.original = draft.Clone()
	out.Saved = true
	return out, nil
}

// Delete cancels the event: removed guests get a cancellation, then the
// stored copy is deleted. Deletion is idempotent; an event already removed
// server-side is not an error.
func (ed *Editor) Delete(ctx context.Context) (Outcome, error) {
	if ed.original == nil {
		return Outcome{}, nil
	}
	if ed.role == core.RoleSharedReadOnly {
		return Outcome{}, nil
	}

	var out Outcome
	recipients := DiffAttendees(nil, ed.original.Attendees, ed.self).Added
	if len(recipients) > 0 {
		cancelled := ed.original.Clone()
		cancelled.Sequence++
		if err := ed.notifier.SendCancellations(ctx, cancelled, recipients); err != nil {
			ed.logger.Warn("sending cancellations failed", "uid", cancelled.UID, "error", err)
			out.NotifyFailures = append(out.NotifyFailures, fmt.Errorf("send cancellations: %w", err))
		}
	}

	if err := ed.store.DeleteEvent(ctx, ed.original); err != nil {
		return out, fmt.Errorf("delete event: %w", err)
	}
	out.Saved = true
	return out, nil
}
