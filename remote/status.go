package remote

import (
	"context"
	"errors"
	"fmt"

	"sunpwm/core"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMalformed      = errors.New("malformed request")
	ErrRemote         = errors.New("remote failure")
)

// Reply status codes. Every reply payload starts with one of these.
const (
	StatusOK uint32 = iota
	StatusInvalidChannel
	StatusInvalidArgument
	StatusNullOutput
	StatusBusy
	StatusTimeout
	StatusUnknownCommand
	StatusMalformed
	StatusInternal
)

var statusErrors = []struct {
	status uint32
	err    error
}{
	{StatusInvalidChannel, core.ErrInvalidChannel},
	{StatusInvalidArgument, core.ErrInvalidArgument},
	{StatusNullOutput, core.ErrNullOutput},
	{StatusBusy, core.ErrBusy},
	{StatusTimeout, context.DeadlineExceeded},
	{StatusUnknownCommand, ErrUnknownCommand},
	{StatusMalformed, ErrMalformed},
}

// statusOf maps a handler error to its wire status.
func statusOf(err error) uint32 {
	if err == nil {
		return StatusOK
	}
	for _, se := range statusErrors {
		if errors.Is(err, se.err) {
			return se.status
		}
	}
	return StatusInternal
}

// errorOf maps a wire status back to the error it stands for, so callers
// can test remote failures with errors.Is exactly like local ones.
func errorOf(status uint32) error {
	if status == StatusOK {
		return nil
	}
	for _, se := range statusErrors {
		if se.status == status {
			return fmt.Errorf("remote: %w", se.err)
		}
	}
	return fmt.Errorf("%w: status %d", ErrRemote, status)
}
