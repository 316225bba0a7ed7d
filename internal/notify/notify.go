// Package notify builds the invitation traffic for calendar events: invite,
// update and cancellation notices from the organizer side and the single
// reply an attendee sends back. Every message carries the event snapshot as
// an iTIP iCalendar payload; actual delivery is the mail client's sending
// pipeline, abstracted behind Mailer.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-ical"

	"github.com/akarlsen/kal/internal/core"
	"github.com/akarlsen/kal/internal/ics"
)

// iTIP method values (RFC 5546).
const (
	MethodRequest = "REQUEST"
	MethodCancel  = "CANCEL"
	MethodReply   = "REPLY"
)

// Message is one outbound notification handed to the mail transport.
type Message struct {
	To      []string
	Subject string
	// iTIP method of the attached calendar payload
	Method string
	// Encoded VCALENDAR with a single VEVENT snapshot
	Payload []byte
}

// Mailer delivers notification messages. The implementation lives in the
// mail client's sending pipeline, outside this repository.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Service builds and dispatches iTIP notifications.
type Service struct {
	mailer Mailer
	logger *slog.Logger
}

// NewService returns a notification service on top of the given transport.
func NewService(logger *slog.Logger, mailer Mailer) *Service {
	return &Service{mailer: mailer, logger: logger}
}

// SendInvites sends an invitation to newly added attendees.
func (s *Service) SendInvites(ctx context.Context, ev *core.Event, to []core.Attendee) error {
	return s.send(ctx, MethodRequest, "Invitation: "+ev.Summary, ev, to)
}

// SendUpdates sends an updated snapshot to attendees already on the event.
func (s *Service) SendUpdates(ctx context.Context, ev *core.Event, to []core.Attendee) error {
	return s.send(ctx, MethodRequest, "Updated invitation: "+ev.Summary, ev, to)
}

// SendCancellations tells removed attendees the event no longer includes
// them.
func (s *Service) SendCancellations(ctx context.Context, ev *core.Event, to []core.Attendee) error {
	return s.send(ctx, MethodCancel, "Cancelled: "+ev.Summary, ev, to)
}

// SendResponse sends a single attendee's decision back to the organizer.
func (s *Service) SendResponse(ctx context.Context, ev *core.Event, attendee core.Attendee, organizer string) error {
	if organizer == "" {
		return fmt.Errorf("event %s has no organizer to reply to", ev.UID)
	}
	// A REPLY speaks for one attendee only (RFC 5546), so the snapshot is
	// trimmed to the replying guest before encoding.
	snapshot := ev.Clone()
	snapshot.Attendees = []core.Attendee{attendee}
	payload, err := encode(snapshot, MethodReply)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	msg := Message{
		To:      []string{organizer},
		Subject: replySubject(attendee.Status, ev.Summary),
		Method:  MethodReply,
		Payload: payload,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reply to %s: %w", organizer, err)
	}
	s.logger.Info("sent invitation reply", "uid", ev.UID, "to", organizer)
	return nil
}

func replySubject(status core.AttendeeStatus, summary string) string {
	switch status {
	case core.StatusAccepted:
		return "Accepted: " + summary
	case core.StatusDeclined:
		return "Declined: " + summary
	case core.StatusTentative:
		return "Tentative: " + summary
	default:
		return "Re: " + summary
	}
}

func (s *Service) send(ctx context.Context, method, subject string, ev *core.Event, to []core.Attendee) error {
	if len(to) == 0 {
		return nil
	}
	payload, err := encode(ev, method)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	addresses := make([]string, len(to))
	for i, a := range to {
		addresses[i] = a.Address
	}
	msg := Message{To: addresses, Subject: subject, Method: method, Payload: payload}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s to %d recipients: %w", method, len(to), err)
	}
	s.logger.Info("sent event notification", "method", method, "uid", ev.UID, "recipients", len(to), "sequence", ev.Sequence)
	return nil
}

// encode renders the event snapshot with the given iTIP method. Alarms are
// local to the user and never leave the client.
func encode(ev *core.Event, method string) ([]byte, error) {
	cal := ics.EventCalendar(ev, false)
	cal.Props.SetText(ical.PropMethod, method)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
