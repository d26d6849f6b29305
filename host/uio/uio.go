// Package uio maps the register block exported by a Linux UIO driver.
//
// The kernel side registers the PWM controller as /dev/uioN and publishes
// each memory region under /sys/class/uio/uioN/maps/mapM. Map M is mmap'd
// at file offset M pages; the region starts Offset bytes into that page.
package uio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsRoot is where the UIO class directory lives.
var SysfsRoot = "/sys/class/uio"

// ErrTooSmall is returned when a map is smaller than the caller needs.
var ErrTooSmall = errors.New("uio: map too small")

// Map describes one memory region of a UIO device.
type Map struct {
	Index  int
	Name   string
	Addr   uint64 // physical address
	Size   uint64
	Offset uint64 // offset of Addr within its page
}

// ReadMap reads the sysfs description of map index of device, which may be
// given as "uio0" or "/dev/uio0".
func ReadMap(device string, index int) (Map, error) {
	dir := filepath.Join(SysfsRoot, filepath.Base(device), "maps", "map"+strconv.Itoa(index))

	m := Map{Index: index}
	var err error
	if m.Addr, err = readHex(dir, "addr"); err != nil {
		return Map{}, err
	}
	if m.Size, err = readHex(dir, "size"); err != nil {
		return Map{}, err
	}
	if m.Offset, err = readHex(dir, "offset"); err != nil {
		// Kernels before 4.x do not publish the offset
		if !errors.Is(err, os.ErrNotExist) {
			return Map{}, err
		}
		m.Offset = 0
	}
	if name, err := os.ReadFile(filepath.Join(dir, "name")); err == nil {
		m.Name = strings.TrimSpace(string(name))
	}
	if m.Size == 0 {
		return Map{}, fmt.Errorf("uio: %s: empty map", dir)
	}
	return m, nil
}

// mapping returns how many bytes to mmap for m given the system page size,
// and how many register bytes follow Offset within that mapping. The kernel
// refuses lengths beyond the pages the region spans: Addr's position within
// its page plus Size, rounded up to a whole page.
func (m Map) mapping(page uint64) (length, avail uint64) {
	length = (m.Addr&(page-1) + m.Size + page - 1) &^ (page - 1)
	if m.Offset >= length {
		return length, 0
	}
	avail = length - m.Offset
	if avail > m.Size {
		avail = m.Size
	}
	return length, avail &^ 3
}

// BlockAddr returns the physical address of the first byte past Offset in
// the mapping, which is where the registers are. Drivers publish either the
// block address itself or its page base in Addr; both resolve here.
func (m Map) BlockAddr(page uint64) uint64 {
	return m.Addr&^(page-1) + m.Offset
}

func readHex(dir, name string) (uint64, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("uio: %s/%s: %w", dir, name, err)
	}
	return v, nil
}

// DeviceName returns the name the driver registered the device under.
func DeviceName(device string) (string, error) {
	b, err := os.ReadFile(filepath.Join(SysfsRoot, filepath.Base(device), "name"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
