package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/akarlsen/kal/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore records storage calls into a shared call log.
type fakeStore struct {
	log       *[]string
	createErr error
	updateErr error
	deleteErr error

	lastWritten *core.Event
}

func (s *fakeStore) CreateEvent(ctx context.Context, ev *core.Event) error {
	*s.log = append(*s.log, "create")
	s.lastWritten = ev.Clone()
	return s.createErr
}

func (s *fakeStore) UpdateEvent(ctx context.Context, ev *core.Event) error {
	*s.log = append(*s.log, "update")
	s.lastWritten = ev.Clone()
	return s.updateErr
}

func (s *fakeStore) DeleteEvent(ctx context.Context, ev *core.Event) error {
	*s.log = append(*s.log, "delete")
	return s.deleteErr
}

func (s *fakeStore) GetEvent(ctx context.Context, calendarID, id string) (*core.Event, error) {
	return nil, core.ErrNotFound
}

func (s *fakeStore) ListEvents(ctx context.Context, filter core.EventFilter) ([]*core.Event, error) {
	return nil, nil
}

// fakeNotifier records notification calls into the same call log, so tests
// can assert ordering across the notifier and the store.
type fakeNotifier struct {
	log        *[]string
	inviteErr  error
	cancelErr  error
	updateErr  error
	replyErr   error
	onSend     func()
	lastEvent  *core.Event
	recipients map[string][]string
}

func newFakeNotifier(log *[]string) *fakeNotifier {
	return &fakeNotifier{log: log, recipients: make(map[string][]string)}
}

func (n *fakeNotifier) record(kind string, ev *core.Event, to []core.Attendee) {
	*n.log = append(*n.log, kind)
	n.lastEvent = ev.Clone()
	for _, a := range to {
		n.recipients[kind] = append(n.recipients[kind], a.Address)
	}
	if n.onSend != nil {
		n.onSend()
	}
}

func (n *fakeNotifier) SendInvites(ctx context.Context, ev *core.Event, to []core.Attendee) error {
	n.record("invites", ev, to)
	return n.inviteErr
}

func (n *fakeNotifier) SendUpdates(ctx context.Context, ev *core.Event, to []core.Attendee) error {
	n.record("updates", ev, to)
	return n.updateErr
}

func (n *fakeNotifier) SendCancellations(ctx context.Context, ev *core.Event, to []core.Attendee) error {
	n.record("cancellations", ev, to)
	return n.cancelErr
}

func (n *fakeNotifier) SendResponse(ctx context.Context, ev *core.Event, attendee core.Attendee, organizer string) error {
	*n.log = append(*n.log, "reply")
	n.lastEvent = ev.Clone()
	n.recipients["reply"] = append(n.recipients["reply"], organizer)
	return n.replyErr
}

func ownedCalendar() core.Calendar {
	return core.Calendar{ID: "/cal/personal/", Name: "Personal", Owned: true, Writable: true}
}

func storedEvent() *core.Event {
	return &core.Event{
		ID:        "/cal/personal/uid-1.ics",
		UID:       "uid-1",
		Summary:   "Team sync",
		Start:     time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
		Organizer: "me@example.org",
		Attendees: []core.Attendee{
			{Address: "stays@example.org", Status: core.StatusAccepted},
			{Address: "leaves@example.org", Status: core.StatusNeedsAction},
		},
		Sequence:   3,
		CalendarID: "/cal/personal/",
	}
}

func TestSaveOrdering(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log}
	notifier := newFakeNotifier(&log)

	ed := New(testLogger(), store, notifier, ownedCalendar(), storedEvent(), []string{"me@example.org"})
	ed.AddAttendee(core.Attendee{Address: "joins@example.org"})
	ed.RemoveAttendee("leaves@example.org")

	out, err := ed.Save(context.Background(), SaveOptions{
		ConfirmUpdates: func(n int) bool {
			if n != 1 {
				t.Errorf("ConfirmUpdates recipients = %d, want 1", n)
			}
			return true
		},
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !out.Saved {
		t.Fatalf("Save() not saved")
	}

	want := []string{"invites", "cancellations", "update", "updates"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}

	if got := notifier.recipients["invites"]; len(got) != 1 || got[0] != "joins@example.org" {
		t.Errorf("invites went to %v", got)
	}
	if got := notifier.recipients["cancellations"]; len(got) != 1 || got[0] != "leaves@example.org" {
		t.Errorf("cancellations went to %v", got)
	}
	if got := notifier.recipients["updates"]; len(got) != 1 || got[0] != "stays@example.org" {
		t.Errorf("updates went to %v", got)
	}

	if store.lastWritten.Sequence != 4 {
		t.Errorf("persisted sequence = %d, want 4", store.lastWritten.Sequence)
	}
}

func TestSaveUpdatesSkippedWithoutConfirmation(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log}
	notifier := newFakeNotifier(&log)

	ed := New(testLogger(), store, notifier, ownedCalendar(), storedEvent(), []string{"me@example.org"})
	ed.SetSummary("Team sync (moved)")

	out, err := ed.Save(context.Background(), SaveOptions{
		ConfirmUpdates: func(int) bool { return false },
	})
	if err != nil || !out.Saved {
		t.Fatalf("Save() = %+v, %v", out, err)
	}

	want := []string{"update"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveInvalidTimeRange(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		start, end time.Time
		wantErr    bool
	}{
		{
			name:    "end before start",
			start:   time.Date(2024, 4, 1, 9, 0, 0, 0, berlin),
			end:     time.Date(2024, 4, 1, 8, 30, 0, 0, berlin),
			wantErr: true,
		},
		{
			name:    "end equals start",
			start:   time.Date(2024, 4, 1, 9, 0, 0, 0, berlin),
			end:     time.Date(2024, 4, 1, 9, 0, 0, 0, berlin),
			wantErr: true,
		},
		{
			name:  "end after start",
			start: time.Date(2024, 4, 1, 9, 0, 0, 0, berlin),
			end:   time.Date(2024, 4, 1, 9, 30, 0, 0, berlin),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var log []string
			store := &fakeStore{log: &log}
			notifier := newFakeNotifier(&log)

			ed := New(testLogger(), store, notifier, ownedCalendar(), storedEvent(), []string{"me@example.org"})
			ed.SetTimeRange(tt.start, tt.end)

			_, err := ed.Save(context.Background(), SaveOptions{})
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTimeRange) {
					t.Errorf("Save() error = %v, want ErrInvalidTimeRange", err)
				}
				if len(log) != 0 {
					t.Errorf("calls happened despite invalid range: %v", log)
				}
			} else if err != nil {
				t.Errorf("Save() error = %v", err)
			}
		})
	}
}

func TestSaveConfidentialRequiresPassword(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log}
	notifier := newFakeNotifier(&log)

	ev := storedEvent()
	ev.Attendees = append(ev.Attendees, core.Attendee{Address: "outside@other.org", External: true})

	ed := New(testLogger(), store, notifier, ownedCalendar(), ev, []string{"me@example.org"})
	ed.SetConfidential(true)

	_, err := ed.Save(context.Background(), SaveOptions{})
	if !errors.Is(err, ErrMissingPassword) {
		t.Fatalf("Save() error = %v, want ErrMissingPassword", err)
	}
	// The validation fires before anything is sent or written.
	if len(log) != 0 {
		t.Errorf("calls happened despite missing password: %v", log)
	}

	ed.SetAttendeePassword("outside@other.org", "hunter2")
	out, err := ed.Save(context.Background(), SaveOptions{})
	if err != nil || !out.Saved {
		t.Fatalf("Save() after setting password = %+v, %v", out, err)
	}
}

func TestSaveBusyFlagDropsReentrantSave(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log}
	notifier := newFakeNotifier(&log)

	ev := storedEvent()
	ed := New(testLogger(), store, notifier, ownedCalendar(), ev, []string{"me@example.org"})
	ed.AddAttendee(core.Attendee{Address: "joins@example.org"})

	var inner Outcome
	var innerErr error
	notifier.onSend = func() {
		notifier.onSend = nil
		inner, innerErr = ed.Save(context.Background(), SaveOptions{})
	}

	out, err := ed.Save(context.Background(), SaveOptions{})
	if err != nil || !out.Saved {
		t.Fatalf("outer Save() = %+v, %v", out, err)
	}
	if innerErr != nil {
		t.Errorf("re-entrant Save() error = %v, want nil", innerErr)
	}
	if inner.Saved {
		t.Errorf("re-entrant Save() reported Saved")
	}

	// Exactly one write despite the nested attempt.
	writes := 0
	for _, call := range log {
		if call == "update" || call == "create" {
			writes++
		}
	}
	if writes != 1 {
		t.Errorf("writes = %d, want 1 (log: %v)", writes, log)
	}
}

func TestSaveNotifyFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log}
	notifier := newFakeNotifier(&log)
	notifier.inviteErr = errors.New("smtp down")

	ed := New(testLogger(), store, notifier, ownedCalendar(), storedEvent(), []string{"me@example.org"})
	ed.AddAttendee(core.Attendee{Address: "joins@example.org"})

	out, err := ed.Save(context.Background(), SaveOptions{})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !out.Saved {
		t.Fatalf("Save() not saved despite non-fatal notify failure")
	}
	if len(out.NotifyFailures) != 1 {
		t.Fatalf("NotifyFailures = %d, want 1", len(out.NotifyFailures))
	}
	if store.lastWritten == nil {
		t.Errorf("event was not persisted")
	}
}

func TestSavePersistFailureRestoresSequence(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log, updateErr: errors.New("server unreachable")}
	notifier := newFakeNotifier(&log)

	ed := New(testLogger(), store, notifier, ownedCalendar(), storedEvent(), []string{"me@example.org"})
	ed.SetSummary("changed")

	_, err := ed.Save(context.Background(), SaveOptions{})
	if err == nil {
		t.Fatalf("Save() succeeded despite store failure")
	}
	if got := ed.Draft().Sequence; got != 3 {
		t.Errorf("draft sequence = %d, want 3 after rollback", got)
	}
}

func TestSaveReadOnlyIsNoOp(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log}
	notifier := newFakeNotifier(&log)

	cal := core.Calendar{ID: "shared", Name: "Shared", Owned: false, Writable: false}
	ed := New(testLogger(), store, notifier, cal, storedEvent(), []string{"me@example.org"})

	out, err := ed.Save(context.Background(), SaveOptions{})
	if err != nil {
		t.Fatalf("Save() error = %v, want nil", err)
	}
	if out.Saved {
		t.Errorf("Save() reported Saved on a read-only calendar")
	}
	if len(log) != 0 {
		t.Errorf("calls happened on a read-only calendar: %v", log)
	}
}

func TestPermissionGates(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log}
	notifier := newFakeNotifier(&log)

	// Invited to someone else's event: content is locked, own attendance
	// and alarms are not.
	ev := storedEvent()
	ev.Organizer = "boss@example.org"
	ev.Attendees = append(ev.Attendees, core.Attendee{Address: "me@example.org"})

	ed := New(testLogger(), store, notifier, ownedCalendar(), ev, []string{"me@example.org"})
	if got := ed.Role(); got != core.RoleInvitee {
		t.Fatalf("Role() = %s, want invitee", got)
	}

	ed.SetSummary("hijacked")
	if ed.Draft().Summary != "Team sync" {
		t.Errorf("invitee changed the summary")
	}

	ed.AddAttendee(core.Attendee{Address: "friend@example.org"})
	if len(ed.Draft().Attendees) != len(ev.Attendees) {
		t.Errorf("invitee changed the guest list")
	}

	ed.SetOwnStatus(core.StatusAccepted)
	i := ed.Draft().FindAttendee("me@example.org")
	if i < 0 || ed.Draft().Attendees[i].Status != core.StatusAccepted {
		t.Errorf("invitee could not set own status")
	}

	ed.AddAlarm(core.Alarm{Trigger: 10 * time.Minute})
	if len(ed.Draft().Alarms) != 1 {
		t.Errorf("invitee could not add an alarm")
	}

	// Write access on a shared calendar covers content but not guests.
	cal := core.Calendar{ID: "shared", Owned: false, Writable: true}
	ed = New(testLogger(), store, notifier, cal, storedEvent(), []string{"me@example.org"})

	ed.SetSummary("rescheduled")
	if ed.Draft().Summary != "rescheduled" {
		t.Errorf("read-write share could not edit content")
	}
	ed.AddAttendee(core.Attendee{Address: "friend@example.org"})
	if len(ed.Draft().Attendees) != 2 {
		t.Errorf("read-write share changed the guest list")
	}
}

func TestOrganizerPinnedOnceInvitesSent(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log}
	notifier := newFakeNotifier(&log)

	// Existing event with attendees: organizer is pinned.
	ed := New(testLogger(), store, notifier, ownedCalendar(), storedEvent(), []string{"me@example.org"})
	ed.SetOrganizer("alias@example.org")
	if got := ed.Draft().Organizer; got != "me@example.org" {
		t.Errorf("organizer changed to %s despite sent invites", got)
	}

	// Fresh event: organizer can still be switched to an alias.
	ed = NewForDate(testLogger(), store, notifier, ownedCalendar(), time.Now(), []string{"me@example.org", "alias@example.org"})
	ed.SetOrganizer("alias@example.org")
	if got := ed.Draft().Organizer; got != "alias@example.org" {
		t.Errorf("organizer = %s, want alias@example.org", got)
	}
}

func TestNewForDateDefaults(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log}
	notifier := newFakeNotifier(&log)

	date := time.Date(2024, 4, 1, 14, 20, 0, 0, time.UTC)
	ed := NewForDate(testLogger(), store, notifier, ownedCalendar(), date, []string{"me@example.org"})

	draft := ed.Draft()
	if draft.UID == "" {
		t.Errorf("new event has no UID")
	}
	wantStart := time.Date(2024, 4, 1, 15, 0, 0, 0, time.UTC)
	if !draft.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want next full hour %v", draft.Start, wantStart)
	}
	if draft.Duration() != time.Hour {
		t.Errorf("Duration = %v, want 1h", draft.Duration())
	}
	if draft.Organizer != "me@example.org" {
		t.Errorf("Organizer = %s", draft.Organizer)
	}

	ed.SetSummary("Lunch")
	out, err := ed.Save(context.Background(), SaveOptions{})
	if err != nil || !out.Saved {
		t.Fatalf("Save() = %+v, %v", out, err)
	}
	if diff := cmp.Diff([]string{"create"}, log); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteSendsCancellations(t *testing.T) {
	t.Parallel()

	var log []string
	store := &fakeStore{log: &log}
	notifier := newFakeNotifier(&log)

	ed := New(testLogger(), store, notifier, ownedCalendar(), storedEvent(), []string{"me@example.org"})

	out, err := ed.Delete(context.Background())
	if err != nil || !out.Saved {
		t.Fatalf("Delete() = %+v, %v", out, err)
	}

	want := []string{"cancellations", "delete"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	if got := notifier.recipients["cancellations"]; len(got) != 2 {
		t.Errorf("cancellations went to %v, want both guests", got)
	}
	// The cancellation snapshot carries a bumped sequence so recipients
	// don't discard it as stale.
	if notifier.lastEvent.Sequence != 4 {
		t.Errorf("cancellation sequence = %d, want 4", notifier.lastEvent.Sequence)
	}
}
