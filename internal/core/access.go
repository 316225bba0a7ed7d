package core

// EditRole classifies the editing user's relationship to an event. It is
// computed once when an edit dialog opens and stays fixed for the dialog's
// lifetime, even if the underlying share state changes meanwhile.
type EditRole int

const (
	// The event lives in one of the user's own calendars and the user is
	// (or will be) its organizer.
	RoleOwner EditRole = iota
	// The event lives in a calendar shared to the user without write access
	RoleSharedReadOnly
	// The event lives in a calendar shared to the user with write access
	RoleSharedReadWrite
	// Someone else's event the user was invited to
	RoleInvitee
)

// ClassifyRole derives the edit role from calendar ownership, share
// capability and attendee membership. isSelf reports whether an address
// belongs to the local user (any alias).
func ClassifyRole(cal Calendar, ev *Event, isSelf func(string) bool) EditRole {
	if !cal.Owned {
		if cal.Writable {
			return RoleSharedReadWrite
		}
		return RoleSharedReadOnly
	}
	if ev != nil && ev.Organizer != "" && !isSelf(ev.Organizer) {
		return RoleInvitee
	}
	return RoleOwner
}

// CanEditContent reports whether the role may change the event's own fields
// (times, summary, repeat rule). Invitees and read-only shares may not.
func (r EditRole) CanEditContent() bool {
	return r == RoleOwner || r == RoleSharedReadWrite
}

// CanModifyGuests reports whether the role may add or remove attendees.
// Only the organizer side of an event manages its guest list.
func (r EditRole) CanModifyGuests() bool {
	return r == RoleOwner
}

// CanModifyOwnAttendance reports whether the role may change the user's own
// participation status.
func (r EditRole) CanModifyOwnAttendance() bool {
	return r == RoleOwner || r == RoleInvitee
}

// CanModifyAlarms reports whether the role may manage reminders. Alarms are
// local to the user's copy, so everyone but read-only viewers may set them.
func (r EditRole) CanModifyAlarms() bool {
	return r != RoleSharedReadOnly
}

func (r EditRole) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleSharedReadOnly:
		return "shared-read-only"
	case RoleSharedReadWrite:
		return "shared-read-write"
	case RoleInvitee:
		return "invitee"
	default:
		return "unknown"
	}
}
