package editor

import "errors"

// User-facing validation errors. These block a save before any network
// effect and are shown as dialogs, not logged as system errors.
var (
	// ErrInvalidTimeRange means the event ends at or before its start.
	ErrInvalidTimeRange = errors.New("event end must be after its start")

	// ErrMissingPassword means a confidential event has an external
	// recipient without a pre-shared password.
	ErrMissingPassword = errors.New("external recipient needs a password for a confidential event")

	// ErrRepeatEndBeforeStart means a repeat rule's end date boundary is
	// not after the event's start.
	ErrRepeatEndBeforeStart = errors.New("repeat end date must be after the event start")
)
