package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/akarlsen/kal/internal/core"
)

// RespondToInvitation applies one attendee's accept/decline/tentative
// decision to an event and notifies the organizer.
//
// The caller's event is never touched: the decision is applied to a clone,
// the clone's sequence is incremented, and the clone is what gets persisted
// and returned. Events that already live in a calendar are updated in place,
// keeping their alarms; an event that so far only existed inside the
// invitation mail is stored as a new copy in the target calendar, without
// alarms. A failed reply send is reported in the outcome but does not stop
// the local mutation.
func RespondToInvitation(ctx context.Context, logger *slog.Logger, store core.Storage, notifier Notifier, target core.Calendar, ev *core.Event, attendeeAddress string, decision core.AttendeeStatus) (*core.Event, Outcome, error) {
	switch decision {
	case core.StatusAccepted, core.StatusDeclined, core.StatusTentative:
	default:
		return nil, Outcome{}, fmt.Errorf("decision must be accept, decline or tentative")
	}

	updated := ev.Clone()
	i := updated.FindAttendee(attendeeAddress)
	if i < 0 {
		return nil, Outcome{}, fmt.Errorf("attendee %s is not invited to this event", attendeeAddress)
	}
	updated.Attendees[i].Status = decision
	updated.Sequence++

	var out Outcome
	if err := notifier.SendResponse(ctx, updated, updated.Attendees[i], updated.Organizer); err != nil {
		logger.Warn("sending reply failed", "uid", updated.UID, "organizer", updated.Organizer, "error", err)
		out.NotifyFailures = append(out.NotifyFailures, fmt.Errorf("send reply: %w", err))
	}

	if updated.CalendarID != "" {
		if err := store.UpdateEvent(ctx, updated); err != nil {
			return nil, out, fmt.Errorf("update event: %w", err)
		}
	} else {
		updated.CalendarID = target.ID
		updated.Alarms = nil
		if err := store.CreateEvent(ctx, updated); err != nil {
			return nil, out, fmt.Errorf("store event: %w", err)
		}
	}

	out.Saved = true
	return updated, out, nil
}
