package editor

import (
	"github.com/akarlsen/kal/internal/core"
)

// AttendeeDiff groups the edited guest list by how it differs from the saved
// one. Added drives invites, Removed drives cancellations, Existing drives
// update notices. Addresses owned by the local user never appear in any
// bucket: self-attendance is not notified, even when the user is also listed
// on the event.
type AttendeeDiff struct {
	Added    []core.Attendee
	Removed  []core.Attendee
	Existing []core.Attendee
}

// DiffAttendees compares the current guest list against the original event's
// list. isSelf reports whether an address belongs to the local user.
func DiffAttendees(original, current []core.Attendee, isSelf func(string) bool) AttendeeDiff {
	var d AttendeeDiff

	origByAddr := make(map[string]core.Attendee, len(original))
	for _, a := range original {
		addr := core.CleanAddress(a.Address)
		if isSelf(addr) {
			continue
		}
		origByAddr[addr] = a
	}

	inCurrent := make(map[string]bool, len(current))
	for _, a := range current {
		addr := core.CleanAddress(a.Address)
		if isSelf(addr) || inCurrent[addr] {
			continue
		}
		inCurrent[addr] = true
		if _, ok := origByAddr[addr]; ok {
			d.Existing = append(d.Existing, a)
		} else {
			d.Added = append(d.Added, a)
		}
	}

	// Keep the original list order for removals.
	for _, a := range original {
		addr := core.CleanAddress(a.Address)
		if isSelf(addr) || inCurrent[addr] {
			continue
		}
		inCurrent[addr] = true
		d.Removed = append(d.Removed, a)
	}

	return d
}
