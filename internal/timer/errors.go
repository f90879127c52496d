package timer

import "errors"

var (
	// ErrInvalidDuration is returned when a duration is zero, negative or unparsable.
	ErrInvalidDuration = errors.New("countdown duration must be positive")
	// ErrNoDisplay marks a countdown built without a display; it degrades to a no-op.
	ErrNoDisplay = errors.New("countdown display not configured")
	// ErrNotIdle is returned when Start is called after the countdown left idle.
	ErrNotIdle = errors.New("countdown already started")
	// ErrNotRunning is returned by Pause outside the running state.
	ErrNotRunning = errors.New("countdown is not running")
	// ErrNotPaused is returned by Resume outside the paused state.
	ErrNotPaused = errors.New("countdown is not paused")
	// ErrExpired is returned by operations attempted after the deadline was handled.
	ErrExpired = errors.New("countdown expired")
	// ErrStopped is returned by operations attempted after teardown.
	ErrStopped = errors.New("countdown stopped")
)
