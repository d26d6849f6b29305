//go:build !linux

package uio

import (
	"errors"

	"sunpwm/mmio"
)

var errUnsupported = errors.New("uio: only supported on linux")

// Device is an open, mapped UIO region.
type Device struct {
	Map Map
}

// Open always fails outside Linux.
func Open(device string, index int, minSize int) (*Device, error) {
	return nil, errUnsupported
}

func (d *Device) Window() *mmio.Mem { return nil }

func (d *Device) Close() error { return errUnsupported }
