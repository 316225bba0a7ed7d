package core

import "testing"

func TestClassifyRole(t *testing.T) {
	t.Parallel()

	isSelf := func(addr string) bool { return SameAddress(addr, "me@example.org") }

	tests := []struct {
		name string
		cal  Calendar
		ev   *Event
		want EditRole
	}{
		{
			name: "own calendar, no organizer",
			cal:  Calendar{Owned: true},
			ev:   &Event{},
			want: RoleOwner,
		},
		{
			name: "own calendar, self organizer",
			cal:  Calendar{Owned: true},
			ev:   &Event{Organizer: "Me@Example.org"},
			want: RoleOwner,
		},
		{
			name: "own calendar, foreign organizer",
			cal:  Calendar{Owned: true},
			ev:   &Event{Organizer: "boss@example.org"},
			want: RoleInvitee,
		},
		{
			name: "shared writable calendar",
			cal:  Calendar{Owned: false, Writable: true},
			ev:   &Event{Organizer: "other@example.org"},
			want: RoleSharedReadWrite,
		},
		{
			name: "shared read-only calendar",
			cal:  Calendar{Owned: false, Writable: false},
			ev:   &Event{},
			want: RoleSharedReadOnly,
		},
		{
			name: "nil event on own calendar",
			cal:  Calendar{Owned: true},
			ev:   nil,
			want: RoleOwner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyRole(tt.cal, tt.ev, isSelf); got != tt.want {
				t.Errorf("ClassifyRole() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRolePredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role          EditRole
		editContent   bool
		modifyGuests  bool
		ownAttendance bool
		modifyAlarms  bool
	}{
		{RoleOwner, true, true, true, true},
		{RoleSharedReadOnly, false, false, false, false},
		{RoleSharedReadWrite, true, false, false, true},
		{RoleInvitee, false, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			t.Parallel()
			if got := tt.role.CanEditContent(); got != tt.editContent {
				t.Errorf("CanEditContent() = %v, want %v", got, tt.editContent)
			}
			if got := tt.role.CanModifyGuests(); got != tt.modifyGuests {
				t.Errorf("CanModifyGuests() = %v, want %v", got, tt.modifyGuests)
			}
			if got := tt.role.CanModifyOwnAttendance(); got != tt.ownAttendance {
				t.Errorf("CanModifyOwnAttendance() = %v, want %v", got, tt.ownAttendance)
			}
			if got := tt.role.CanModifyAlarms(); got != tt.modifyAlarms {
				t.Errorf("CanModifyAlarms() = %v, want %v", got, tt.modifyAlarms)
			}
		})
	}
}
