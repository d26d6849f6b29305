// Package core drives the sun20i PWM/capture peripheral through its register
// window.
//
// A Controller borrows a caller-owned mmio.Window and turns intents ("output
// this period and duty", "measure this pulse") into ordered register
// sequences. The registers are the only state: nothing is cached between
// calls, so a Controller may be recreated at any time over the same window.
//
// The Controller is not safe for concurrent use. Two channels of a clock pair
// share one clock configuration register, and every bit update is a plain
// read-modify-write, so all callers of one window must be serialized
// externally.
package core

import (
	"time"

	"github.com/jonboulle/clockwork"

	"sunpwm/mmio"
)

const (
	// DefaultPollInterval is the capture flag polling period.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultSpinInterval is the pulse counter polling period used while
	// waiting for a PWM cycle to finish on disable.
	DefaultSpinInterval = 10 * time.Microsecond
)

// Controller operates the channels of one PWM register window.
type Controller struct {
	win   mmio.Window
	clock clockwork.Clock

	pollInterval time.Duration
	spinInterval time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for polling sleeps and capture deadlines.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithPollInterval sets the capture flag polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.pollInterval = d
	}
}

// WithSpinInterval sets the polling interval of the disable wait.
func WithSpinInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.spinInterval = d
	}
}

// New returns a Controller operating on win.
func New(win mmio.Window, opts ...Option) *Controller {
	c := &Controller{
		win:          win,
		clock:        clockwork.NewRealClock(),
		pollInterval: DefaultPollInterval,
		spinInterval: DefaultSpinInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window returns the register window the controller operates on.
func (c *Controller) Window() mmio.Window {
	return c.win
}

func (c *Controller) load(off uintptr) uint32 {
	return c.win.Load32(off)
}

func (c *Controller) store(off uintptr, value uint32) {
	c.win.Store32(off, value)
}

func (c *Controller) setBit(off uintptr, bit uint, value bool) {
	mmio.SetBit(c.win, off, bit, value)
}
