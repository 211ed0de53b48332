package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("domain: not found")
	ErrConflict     = errors.New("domain: conflict")
	ErrUnauthorized = errors.New("domain: unauthorized")
	ErrForbidden    = errors.New("domain: forbidden")
	ErrValidation   = errors.New("domain: validation failed")

	// ErrStaleMove signals a kanban move intent built against a board state
	// that has since changed. The authority corrects the sender with a
	// canonical broadcast instead of surfacing the error to the user.
	ErrStaleMove = errors.New("domain: stale move intent")

	// ErrTimerRunning signals an attempt to start a second concurrent timer
	// for the same user.
	ErrTimerRunning = errors.New("domain: timer already running")
)
