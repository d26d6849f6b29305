// Package serial opens the UART carrying the remote control link.
package serial

import (
	"io"
	"time"
)

// Port is an open serial line.
type Port interface {
	io.ReadWriteCloser

	// Flush discards data received but not read and data written but not
	// yet transmitted.
	Flush() error
}

// Config describes the line to open.
type Config struct {
	// Device path, e.g. "/dev/ttyS1" or "/dev/ttyUSB0".
	Device string

	Baud int

	// ReadTimeout bounds a single Read. An expired Read returns (0, nil);
	// zero blocks until data arrives.
	ReadTimeout time.Duration
}

// DefaultBaud is the remote link speed used when none is configured.
const DefaultBaud = 115200

// DefaultConfig returns the configuration used by pwmd and pwmctl.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}
