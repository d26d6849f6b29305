// Package mmio provides 32-bit register access over a memory-mapped
// peripheral window.
//
// A Window is addressed by byte offset from the start of the peripheral's
// register block. Every access is a single aligned 32-bit load or store, which
// is what the bus fabric of the sun20i peripherals expects. Read-modify-write
// helpers are NOT atomic with respect to other writers of the same register;
// callers sharing a window must serialize access themselves.
package mmio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

var (
	ErrUnaligned = errors.New("mmio: region is not 32-bit aligned")
	ErrEmpty     = errors.New("mmio: region is empty")
)

// Window is a block of 32-bit registers addressed by byte offset.
type Window interface {
	// Load32 reads the register at byte offset off.
	Load32(off uintptr) uint32

	// Store32 writes the register at byte offset off.
	Store32(off uintptr, value uint32)
}

// SetBit performs a read-modify-write of a single bit. Bit indexes above 31
// are ignored.
func SetBit(w Window, off uintptr, bit uint, value bool) {
	if bit > 31 {
		return
	}
	reg := w.Load32(off)
	if value {
		reg |= 1 << bit
	} else {
		reg &^= 1 << bit
	}
	w.Store32(off, reg)
}

// IsSet reports whether bit is set in reg.
func IsSet(reg uint32, bit uint) bool {
	return bit < 32 && reg&(1<<bit) != 0
}

// Mem is a Window backed by a word slice. It is used both for real mappings
// (wrapping the mmap'd bytes) and as a fake register block in tests.
type Mem struct {
	words []uint32
}

// NewMem allocates a zeroed register block of size bytes, rounded up to a
// whole number of registers.
func NewMem(size int) *Mem {
	return &Mem{words: make([]uint32, (size+3)/4)}
}

// MemFromBytes reinterprets b as a register block without copying. The
// backing memory must stay valid for the lifetime of the returned Mem.
func MemFromBytes(b []byte) (*Mem, error) {
	if len(b) < 4 {
		return nil, ErrEmpty
	}
	p := unsafe.Pointer(unsafe.SliceData(b))
	if uintptr(p)%4 != 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: base %p, length %d", ErrUnaligned, p, len(b))
	}
	return &Mem{words: unsafe.Slice((*uint32)(p), len(b)/4)}, nil
}

// Size returns the size of the block in bytes.
func (m *Mem) Size() int {
	return len(m.words) * 4
}

func (m *Mem) Load32(off uintptr) uint32 {
	return atomic.LoadUint32(&m.words[off/4])
}

func (m *Mem) Store32(off uintptr, value uint32) {
	atomic.StoreUint32(&m.words[off/4], value)
}
