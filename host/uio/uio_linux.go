//go:build linux

package uio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"sunpwm/mmio"
)

// Device is an open, mapped UIO region.
type Device struct {
	Map Map

	f   *os.File
	mem []byte
	win *mmio.Mem
}

// Open maps region index of device (e.g. "/dev/uio0"). The region must be at
// least minSize bytes.
func Open(device string, index int, minSize int) (*Device, error) {
	m, err := ReadMap(device, index)
	if err != nil {
		return nil, err
	}
	page := os.Getpagesize()
	length, avail := m.mapping(uint64(page))
	if avail < uint64(minSize) {
		return nil, fmt.Errorf("%w: %s map%d has %d bytes at offset %#x, need %d", ErrTooSmall, device, index, avail, m.Offset, minSize)
	}

	f, err := os.OpenFile(device, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}

	mem, err := unix.Mmap(int(f.Fd()), int64(index*page), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("uio: mmap %s map%d: %w", device, index, err)
	}

	win, err := mmio.MemFromBytes(mem[m.Offset : m.Offset+avail])
	if err != nil {
		unix.Munmap(mem)
		f.Close()
		return nil, err
	}
	return &Device{Map: m, f: f, mem: mem, win: win}, nil
}

// Window returns the mapped registers. It is invalid after Close.
func (d *Device) Window() *mmio.Mem {
	return d.win
}

// Close unmaps the region and closes the device.
func (d *Device) Close() error {
	err := unix.Munmap(d.mem)
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	return err
}
