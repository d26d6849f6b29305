package core

import "errors"

// Error kinds returned by every Controller operation. Details are wrapped
// around these with %w, so callers should test with errors.Is.
var (
	// ErrInvalidChannel is returned for channel indexes outside [0, 7].
	// It is always checked before any register is touched.
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrInvalidArgument is returned for malformed domain values: clock
	// source or divider out of range, active cycles above entire cycles,
	// duty percent outside [0, 100].
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNullOutput is returned when the caller supplied no destination.
	ErrNullOutput = errors.New("null output")

	// ErrBusy is returned when capture mode is requested on a channel whose
	// PWM output is enabled.
	ErrBusy = errors.New("channel busy")
)
