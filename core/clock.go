package core

import (
	"fmt"
	"strings"
)

// ClockSource selects the input clock of a channel pair.
type ClockSource uint8

const (
	ClockCrystal ClockSource = 0 // HOSC, 24 MHz crystal oscillator
	ClockBus     ClockSource = 1 // APB0, 100 MHz bus clock
)

const (
	CrystalHz = 24000000
	BusHz     = 100000000
)

// Hz returns the source frequency.
func (s ClockSource) Hz() uint64 {
	if s == ClockBus {
		return BusHz
	}
	return CrystalHz
}

func (s ClockSource) String() string {
	switch s {
	case ClockCrystal:
		return "crystal"
	case ClockBus:
		return "bus"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// ParseClockSource accepts "crystal"/"hosc"/"24m" and "bus"/"apb0"/"100m".
func ParseClockSource(s string) (ClockSource, error) {
	switch strings.ToLower(s) {
	case "crystal", "hosc", "24m", "0":
		return ClockCrystal, nil
	case "bus", "apb0", "100m", "1":
		return ClockBus, nil
	}
	return 0, fmt.Errorf("%w: clock source %q", ErrInvalidArgument, s)
}

// ClockDivider is a power-of-two divider index: the source is divided by
// 1 << index. Valid indexes are 0 (÷1) through 8 (÷256).
type ClockDivider uint8

const (
	Div1 ClockDivider = iota
	Div2
	Div4
	Div8
	Div16
	Div32
	Div64
	Div128
	Div256
)

// Factor returns the division factor, 1 << d.
func (d ClockDivider) Factor() uint64 {
	return 1 << d
}

func (d ClockDivider) String() string {
	if d > Div256 {
		return fmt.Sprintf("div(%d)", uint8(d))
	}
	return fmt.Sprintf("/%d", d.Factor())
}

// DividerFromFactor maps 1, 2, 4, ... 256 to its divider index.
func DividerFromFactor(factor uint64) (ClockDivider, error) {
	for d := Div1; d <= Div256; d++ {
		if d.Factor() == factor {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: clock divider %d is not a power of two in [1, 256]", ErrInvalidArgument, factor)
}

// ClockConfig is the source and divider of a channel pair.
type ClockConfig struct {
	Source  ClockSource
	Divider ClockDivider
}

// Validate checks that source and divider are in range.
func (cc ClockConfig) Validate() error {
	if cc.Source > ClockBus {
		return fmt.Errorf("%w: clock source %d", ErrInvalidArgument, cc.Source)
	}
	if cc.Divider > Div256 {
		return fmt.Errorf("%w: clock divider index %d", ErrInvalidArgument, cc.Divider)
	}
	return nil
}

func (cc ClockConfig) String() string {
	return cc.Source.String() + cc.Divider.String()
}

func (cc ClockConfig) encode() uint32 {
	return uint32(cc.Source)<<clockSourceBit | uint32(cc.Divider)
}

// SetClockGate passes (true) or gates (false) the channel's clock.
func (c *Controller) SetClockGate(ch Channel, pass bool) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	c.setBit(regClockGating, uint(ch), pass)
	return nil
}

// SetClockBypass routes the raw channel clock straight to the output pin,
// skipping period and duty shaping.
func (c *Controller) SetClockBypass(ch Channel, bypass bool) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	c.setBit(regClockGating, clockBypassShift+uint(ch), bypass)
	return nil
}

// ConfigureClock writes the source and divider of ch's clock pair.
//
// The register is shared by ch and PairOf(ch): writing it reconfigures both
// channels at once. Use ConfigureClockPair when both intents are known.
func (c *Controller) ConfigureClock(ch Channel, cc ClockConfig) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if err := cc.Validate(); err != nil {
		return err
	}
	c.store(clockConfigReg(ch), cc.encode())
	return nil
}

// ConfigureClockPair writes the shared clock register of two sibling
// channels. Both intents must agree, since the hardware can only hold one.
func (c *Controller) ConfigureClockPair(a, b Channel, ca, cb ClockConfig) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if PairOf(a) != b {
		return fmt.Errorf("%w: %v and %v do not share a clock", ErrInvalidArgument, a, b)
	}
	if ca != cb {
		return fmt.Errorf("%w: %v wants %v but sibling %v wants %v", ErrInvalidArgument, a, ca, b, cb)
	}
	return c.ConfigureClock(a, ca)
}

// ReadClockConfig decodes the live clock configuration of ch's pair.
func (c *Controller) ReadClockConfig(ch Channel) (ClockConfig, error) {
	if err := ch.Validate(); err != nil {
		return ClockConfig{}, err
	}
	reg := c.load(clockConfigReg(ch))
	cc := ClockConfig{
		Source:  ClockSource(reg >> clockSourceBit & 1),
		Divider: ClockDivider(reg & clockDividerMsk),
	}
	if cc.Divider > Div256 {
		return ClockConfig{}, fmt.Errorf("%w: register holds divider index %d", ErrInvalidArgument, cc.Divider)
	}
	return cc, nil
}

// SetPrescaler sets the per-channel prescaler. The effective clock is
// divided by (1 + pre).
func (c *Controller) SetPrescaler(ch Channel, pre uint8) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	off := channelReg(ch, regControl)
	reg := c.load(off)
	reg = reg&^controlPrescalerMask | uint32(pre)
	c.store(off, reg)
	return nil
}

// ReadPrescaler returns the per-channel prescaler.
func (c *Controller) ReadPrescaler(ch Channel) (uint8, error) {
	if err := ch.Validate(); err != nil {
		return 0, err
	}
	return uint8(c.load(channelReg(ch, regControl)) & controlPrescalerMask), nil
}
