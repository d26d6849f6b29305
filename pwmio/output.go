// Package pwmio exposes PWM channels through the periph.io pin interfaces
// and capture channels as TinyGo driver sensors.
//
// Both adapters work on a local *core.Controller as well as on a
// *remote.Client.
package pwmio

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"sunpwm/core"
)

// DefaultFrequency is the carrier used by Out when the channel has no
// period programmed yet.
const DefaultFrequency = physic.KiloHertz

// Device is the part of a controller an Output drives.
type Device interface {
	ApplyPwmConfig(ch core.Channel, cfg core.PwmChannelConfig) error
	ReadPwmConfig(ch core.Channel) (core.PwmChannelConfig, error)
	SetEnabled(ch core.Channel, enabled bool) error
}

// Output is a PWM channel seen as a gpio.PinOut.
//
// Programming a channel rewrites the clock register shared with its pair
// sibling; drive both channels of a pair at compatible frequencies.
type Output struct {
	dev      Device
	ch       core.Channel
	polarity core.Polarity

	mu       sync.Mutex
	function string
}

var _ gpio.PinOut = (*Output)(nil)

// NewOutput returns the output of channel ch. With core.ActiveLow the
// channel's active state is low and duties are inverted accordingly, so that
// Duty always means the fraction of time the pin is high.
func NewOutput(dev Device, ch core.Channel, polarity core.Polarity) (*Output, error) {
	if err := ch.Validate(); err != nil {
		return nil, err
	}
	if polarity > core.ActiveHigh {
		return nil, fmt.Errorf("%w: polarity %d", core.ErrInvalidArgument, polarity)
	}
	return &Output{dev: dev, ch: ch, polarity: polarity}, nil
}

func (o *Output) String() string { return o.ch.String() }
func (o *Output) Name() string   { return o.ch.String() }
func (o *Output) Number() int    { return int(o.ch) }

// Function returns "PWM", "Out/High", "Out/Low", or "" when halted.
func (o *Output) Function() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.function
}

// Halt stops the output at the end of the running cycle.
func (o *Output) Halt() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.dev.SetEnabled(o.ch, false); err != nil {
		return err
	}
	o.function = ""
	return nil
}

// Out drives a constant level by running the channel at 0% or 100% duty,
// keeping the current period.
func (o *Output) Out(l gpio.Level) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	cfg, err := o.dev.ReadPwmConfig(o.ch)
	if err != nil {
		return err
	}
	if cfg.Period.Entire == 0 {
		if cfg, err = core.PlanPwm(periodNs(DefaultFrequency), 0); err != nil {
			return err
		}
	}

	cfg.Period.Active = 0
	if bool(l) == (o.polarity == core.ActiveHigh) {
		cfg.Period.Active = cfg.Period.Entire
	}
	cfg.Polarity = o.polarity
	cfg.Enabled = true
	if err := o.dev.ApplyPwmConfig(o.ch, cfg); err != nil {
		return err
	}
	o.function = "Out/" + l.String()
	return nil
}

// PWM outputs duty at frequency f, choosing the finest clock setup able to
// produce f.
func (o *Output) PWM(duty gpio.Duty, f physic.Frequency) error {
	if duty < 0 || duty > gpio.DutyMax {
		return fmt.Errorf("%w: duty %s", core.ErrInvalidArgument, duty)
	}
	if f <= 0 {
		return fmt.Errorf("%w: frequency %s", core.ErrInvalidArgument, f)
	}

	cfg, err := core.PlanPwm(periodNs(f), 0)
	if err != nil {
		return err
	}
	if o.polarity == core.ActiveLow {
		duty = gpio.DutyMax - duty
	}
	cfg.Period.Active = uint16(uint64(cfg.Period.Entire) * uint64(duty) / uint64(gpio.DutyMax))
	cfg.Polarity = o.polarity

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.dev.ApplyPwmConfig(o.ch, cfg); err != nil {
		return err
	}
	o.function = "PWM"
	return nil
}

// periodNs converts f, held in µHz, to a period in nanoseconds.
func periodNs(f physic.Frequency) uint64 {
	return uint64(core.NsPerSecond) * uint64(physic.Hertz) / uint64(f)
}
