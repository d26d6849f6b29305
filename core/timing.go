package core

// NsPerSecond is the number of nanoseconds in one second.
const NsPerSecond = 1000000000

// MaxCaptureCycles is the ceiling of the 16-bit capture counters.
const MaxCaptureCycles = 0xFFFF

// clockScale is the number of source cycles per channel tick.
func clockScale(cc ClockConfig, pre uint8) uint64 {
	return (1 + uint64(pre)) << cc.Divider
}

// ticksToNs converts channel ticks to nanoseconds, multiplying before
// dividing so that the 41.67 ns crystal period does not truncate. For 16-bit
// tick counts the product stays below 2^63.
func ticksToNs(cc ClockConfig, pre uint8, ticks uint64) uint64 {
	return ticks * NsPerSecond * clockScale(cc, pre) / cc.Source.Hz()
}

// EffectiveClockPeriodNs returns the duration of one channel tick:
// (1e9 / sourceHz) * (1 + pre) * 2^divider, truncated to whole nanoseconds.
//
// The truncated value is for display only. Do not multiply counts by it:
// the crystal tick is 41.67 ns, so use RawToNanoseconds,
// MaxCaptureDurationNs and OutputFrequencyHz, which work from the exact
// source frequency.
func EffectiveClockPeriodNs(cc ClockConfig, pre uint8) (uint64, error) {
	if err := cc.Validate(); err != nil {
		return 0, err
	}
	return ticksToNs(cc, pre, 1), nil
}

// timebase reads the live clock configuration and prescaler of ch.
func (c *Controller) timebase(ch Channel) (ClockConfig, uint8, error) {
	cc, err := c.ReadClockConfig(ch)
	if err != nil {
		return ClockConfig{}, 0, err
	}
	pre, err := c.ReadPrescaler(ch)
	if err != nil {
		return ClockConfig{}, 0, err
	}
	return cc, pre, nil
}

// RawToNanoseconds scales raw capture counts by ch's live tick period.
func (c *Controller) RawToNanoseconds(ch Channel, raw CaptureRaw) (CaptureResult, error) {
	cc, pre, err := c.timebase(ch)
	if err != nil {
		return CaptureResult{}, err
	}
	return CaptureResult{
		OnNs:  ticksToNs(cc, pre, uint64(raw.OnCycles)),
		OffNs: ticksToNs(cc, pre, uint64(raw.OffCycles)),
	}, nil
}

// MaxCaptureDurationNs returns the longest pulse ch's current clock setup
// can measure before the 16-bit counter overflows.
func (c *Controller) MaxCaptureDurationNs(ch Channel) (uint64, error) {
	res, err := c.RawToNanoseconds(ch, CaptureRaw{OnCycles: MaxCaptureCycles})
	if err != nil {
		return 0, err
	}
	return res.OnNs, nil
}

// OutputFrequencyHz returns the PWM output frequency of ch:
// 1e9 / (tickPeriodNs * (entire + 1)), evaluated as
// sourceHz / (scale * (entire + 1)) to stay exact.
func (c *Controller) OutputFrequencyHz(ch Channel) (uint64, error) {
	cc, pre, err := c.timebase(ch)
	if err != nil {
		return 0, err
	}
	p, err := c.ReadPeriod(ch)
	if err != nil {
		return 0, err
	}
	return cc.Source.Hz() / (clockScale(cc, pre) * (uint64(p.Entire) + 1)), nil
}
