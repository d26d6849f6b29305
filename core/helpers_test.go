package core

import (
	"time"

	"github.com/jonboulle/clockwork"

	"sunpwm/mmio"
)

// recordingWindow is a fake register block remembering every store offset.
type recordingWindow struct {
	*mmio.Mem
	stores []uintptr
}

func newRecordingWindow() *recordingWindow {
	return &recordingWindow{Mem: mmio.NewMem(WindowSize)}
}

func (r *recordingWindow) Store32(off uintptr, value uint32) {
	r.stores = append(r.stores, off)
	r.Mem.Store32(off, value)
}

func (r *recordingWindow) reset() {
	r.stores = nil
}

// stepClock never blocks: each Sleep (or After) counts one poll and runs
// onSleep, which tests use to move the fake hardware along.
type stepClock struct {
	clockwork.Clock
	sleeps  int
	onSleep func(n int)
}

func (s *stepClock) Sleep(d time.Duration) {
	s.sleeps++
	if s.onSleep != nil {
		s.onSleep(s.sleeps)
	}
}

func (s *stepClock) After(d time.Duration) <-chan time.Time {
	s.Sleep(d)
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func newTestController() (*Controller, *recordingWindow, *stepClock) {
	win := newRecordingWindow()
	clk := &stepClock{Clock: clockwork.NewFakeClock()}
	return New(win, WithClock(clk)), win, clk
}
