package core

import (
	"context"
	"fmt"
	"time"
)

// PwmChannelConfig is the complete PWM setup of one channel.
type PwmChannelConfig struct {
	Clock     ClockConfig
	Prescaler uint8
	Period    Period
	Polarity  Polarity
	Enabled   bool
}

// CaptureChannelConfig is the capture setup of one channel.
type CaptureChannelConfig struct {
	Clock     ClockConfig
	Prescaler uint8
	Rising    bool
	Falling   bool
}

// CaptureRaw holds the tick counts of the last complete pulse.
type CaptureRaw struct {
	OnCycles  uint16
	OffCycles uint16
}

// CaptureResult is a CaptureRaw scaled to nanoseconds.
type CaptureResult struct {
	OnNs  uint64
	OffNs uint64
}

func (r CaptureResult) On() time.Duration  { return time.Duration(r.OnNs) }
func (r CaptureResult) Off() time.Duration { return time.Duration(r.OffNs) }

// Period returns the length of one full on/off cycle.
func (r CaptureResult) Period() time.Duration { return time.Duration(r.OnNs + r.OffNs) }

// ApplyPwmConfig programs ch from cfg.
//
// When enabling, the clock is passed first so the period and prescaler are
// loaded on a running clock: gate, clock, period, prescaler, polarity,
// enable. When disabling, the same registers are written, the channel is
// disabled (waiting for the running cycle to end) and only then is the clock
// gated. A failure part way is not rolled back.
func (c *Controller) ApplyPwmConfig(ch Channel, cfg PwmChannelConfig) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if err := cfg.Clock.Validate(); err != nil {
		return err
	}
	if err := cfg.Period.Validate(); err != nil {
		return err
	}
	if cfg.Polarity > ActiveHigh {
		return fmt.Errorf("%w: polarity %d", ErrInvalidArgument, cfg.Polarity)
	}

	if cfg.Enabled {
		if err := c.SetClockGate(ch, true); err != nil {
			return err
		}
	}
	if err := c.ConfigureClock(ch, cfg.Clock); err != nil {
		return err
	}
	if err := c.SetPeriod(ch, cfg.Period); err != nil {
		return err
	}
	if err := c.SetPrescaler(ch, cfg.Prescaler); err != nil {
		return err
	}
	if err := c.SetPolarity(ch, cfg.Polarity); err != nil {
		return err
	}
	if err := c.SetEnabled(ch, cfg.Enabled); err != nil {
		return err
	}
	if !cfg.Enabled {
		return c.SetClockGate(ch, false)
	}
	return nil
}

// ReadPwmConfig reads back ch's PWM setup.
//
// Polarity is not read back and is always reported as the zero value.
func (c *Controller) ReadPwmConfig(ch Channel) (PwmChannelConfig, error) {
	var cfg PwmChannelConfig
	err := c.ReadPwmConfigInto(ch, &cfg)
	return cfg, err
}

// ReadPwmConfigInto is ReadPwmConfig writing into dst.
func (c *Controller) ReadPwmConfigInto(ch Channel, dst *PwmChannelConfig) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if dst == nil {
		return fmt.Errorf("%w: no destination for %v config", ErrNullOutput, ch)
	}

	enabled, err := c.IsEnabled(ch)
	if err != nil {
		return err
	}
	period, err := c.ReadPeriod(ch)
	if err != nil {
		return err
	}
	cc, pre, err := c.timebase(ch)
	if err != nil {
		return err
	}

	*dst = PwmChannelConfig{
		Clock:     cc,
		Prescaler: pre,
		Period:    period,
		Enabled:   enabled,
	}
	return nil
}

// SetDutyPercent rewrites only the active cycles of ch's period register as
// floor(entire * percent / 100) of the current entire cycles.
func (c *Controller) SetDutyPercent(ch Channel, percent int) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: duty %d%% outside [0, 100]", ErrInvalidArgument, percent)
	}
	p, err := c.ReadPeriod(ch)
	if err != nil {
		return err
	}
	p.Active = dutyCycles(p.Entire, percent)
	return c.SetPeriod(ch, p)
}

func dutyCycles(entire uint16, percent int) uint16 {
	return uint16(uint32(entire) * uint32(percent) / 100)
}

// ApplyCaptureConfig switches ch to capture mode. It fails with ErrBusy,
// touching nothing, while ch's PWM output is enabled.
//
// The channel clock is only passed when both edges are requested.
func (c *Controller) ApplyCaptureConfig(ch Channel, cfg CaptureChannelConfig) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if err := cfg.Clock.Validate(); err != nil {
		return err
	}
	if c.enabled(ch) {
		return fmt.Errorf("%w: %v is generating PWM", ErrBusy, ch)
	}

	if err := c.SetClockGate(ch, cfg.Rising && cfg.Falling); err != nil {
		return err
	}
	if err := c.ConfigureClock(ch, cfg.Clock); err != nil {
		return err
	}
	if err := c.SetPrescaler(ch, cfg.Prescaler); err != nil {
		return err
	}
	if err := c.SetCaptureEnable(ch, cfg.Rising, cfg.Falling); err != nil {
		return err
	}
	return c.ClearCaptureInterrupt(ch, true, true)
}

// CaptureBlocking waits until both edges of a pulse have been latched on ch,
// reads the counts and re-arms the lock flags. It polls every poll interval
// and never times out.
//
// The fall lock register holds the on time and the rise lock register the
// off time.
func (c *Controller) CaptureBlocking(ch Channel) (CaptureRaw, error) {
	return c.CaptureContext(context.Background(), ch)
}

// CaptureContext is CaptureBlocking returning ctx.Err() once ctx is done.
func (c *Controller) CaptureContext(ctx context.Context, ch Channel) (CaptureRaw, error) {
	if err := ch.Validate(); err != nil {
		return CaptureRaw{}, err
	}
	for !c.bothLatched(ch) {
		if err := c.pollWait(ctx); err != nil {
			return CaptureRaw{}, err
		}
	}

	raw := CaptureRaw{
		OnCycles:  uint16(c.load(channelReg(ch, regFallLock)) & counterMask),
		OffCycles: uint16(c.load(channelReg(ch, regRiseLock)) & counterMask),
	}
	if err := c.ClearCaptureInterrupt(ch, true, true); err != nil {
		return CaptureRaw{}, err
	}
	return raw, nil
}

// CaptureTime captures one pulse on ch and converts it to nanoseconds.
func (c *Controller) CaptureTime(ctx context.Context, ch Channel) (CaptureResult, error) {
	raw, err := c.CaptureContext(ctx, ch)
	if err != nil {
		return CaptureResult{}, err
	}
	return c.RawToNanoseconds(ch, raw)
}

func (c *Controller) bothLatched(ch Channel) bool {
	ccr := c.load(channelReg(ch, regCaptureControl))
	return ccr&(1<<captureFallLockFlag) != 0 && ccr&(1<<captureRiseLockFlag) != 0
}

func (c *Controller) pollWait(ctx context.Context) error {
	done := ctx.Done()
	if done == nil {
		c.clock.Sleep(c.pollInterval)
		return nil
	}
	select {
	case <-done:
		return ctx.Err()
	case <-c.clock.After(c.pollInterval):
		return ctx.Err()
	}
}
