package core

import "fmt"

// Polarity is the active state of the PWM output.
type Polarity uint8

const (
	ActiveLow  Polarity = 0
	ActiveHigh Polarity = 1
)

func (p Polarity) String() string {
	if p == ActiveHigh {
		return "high"
	}
	return "low"
}

// Period is a PWM period expressed in channel clock cycles.
type Period struct {
	Entire uint16 // total cycles of one period
	Active uint16 // cycles spent in the active state
}

// Validate rejects an active time longer than the period.
func (p Period) Validate() error {
	if p.Active > p.Entire {
		return fmt.Errorf("%w: active cycles %d exceed entire cycles %d", ErrInvalidArgument, p.Active, p.Entire)
	}
	return nil
}

func (p Period) encode() uint32 {
	return uint32(p.Entire)<<periodEntireShift | uint32(p.Active)
}

func decodePeriod(reg uint32) Period {
	return Period{
		Entire: uint16(reg >> periodEntireShift & periodHalfMask),
		Active: uint16(reg & periodHalfMask),
	}
}

// IsEnabled reports whether ch's PWM output is enabled.
func (c *Controller) IsEnabled(ch Channel) (bool, error) {
	if err := ch.Validate(); err != nil {
		return false, err
	}
	return c.enabled(ch), nil
}

func (c *Controller) enabled(ch Channel) bool {
	return c.load(regEnable)&(1<<uint(ch)) != 0
}

// SetEnabled enables or disables ch's PWM output.
//
// Disabling never cuts a cycle short: it blocks while the channel is still
// enabled and its pulse counter is running, and only then clears the enable
// bit. The wait has no timeout.
func (c *Controller) SetEnabled(ch Channel, enabled bool) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if !enabled {
		c.waitCycleEnd(ch)
	}
	c.setBit(regEnable, uint(ch), enabled)
	return nil
}

func (c *Controller) waitCycleEnd(ch Channel) {
	counter := channelReg(ch, regPulseCount)
	for c.enabled(ch) && c.load(counter)&counterMask != 0 {
		c.clock.Sleep(c.spinInterval)
	}
}

// SetPeriod writes ch's period register.
func (c *Controller) SetPeriod(ch Channel, p Period) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	c.store(channelReg(ch, regPeriod), p.encode())
	return nil
}

// ReadPeriod decodes ch's period register.
func (c *Controller) ReadPeriod(ch Channel) (Period, error) {
	if err := ch.Validate(); err != nil {
		return Period{}, err
	}
	return decodePeriod(c.load(channelReg(ch, regPeriod))), nil
}

// SetPolarity sets ch's active output state.
func (c *Controller) SetPolarity(ch Channel, p Polarity) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if p > ActiveHigh {
		return fmt.Errorf("%w: polarity %d", ErrInvalidArgument, p)
	}
	c.setBit(channelReg(ch, regControl), controlActiveStateBit, p == ActiveHigh)
	return nil
}

// ReadCounter returns the live value of ch's period counter.
func (c *Controller) ReadCounter(ch Channel) (uint16, error) {
	if err := ch.Validate(); err != nil {
		return 0, err
	}
	return uint16(c.load(channelReg(ch, regCount)) & counterMask), nil
}
