package mmio

import "log"

// traced logs every access before forwarding it.
type traced struct {
	w   Window
	log *log.Logger
}

// Trace wraps w so that every load and store is written to logger. A nil
// logger returns w unchanged.
func Trace(w Window, logger *log.Logger) Window {
	if logger == nil {
		return w
	}
	return &traced{w: w, log: logger}
}

func (t *traced) Load32(off uintptr) uint32 {
	v := t.w.Load32(off)
	t.log.Printf("mmio: load  0x%04x -> 0x%08x", off, v)
	return v
}

func (t *traced) Store32(off uintptr, value uint32) {
	t.log.Printf("mmio: store 0x%04x <- 0x%08x", off, value)
	t.w.Store32(off, value)
}
