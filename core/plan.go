package core

import (
	"fmt"
	"math/bits"
)

const periodSteps = 1 << 16 // entire cycles + 1 ranges over [1, 65536]

// PlanPwm picks a clock, prescaler and period producing periodNs at
// dutyPercent with the finest tick available.
//
// The 100 MHz bus clock is preferred; the crystal is used for periods too
// long for it. Within a source the smallest divider whose prescaler fits is
// chosen. The returned config is enabled and active-high.
func PlanPwm(periodNs uint64, dutyPercent int) (PwmChannelConfig, error) {
	if dutyPercent < 0 || dutyPercent > 100 {
		return PwmChannelConfig{}, fmt.Errorf("%w: duty %d%% outside [0, 100]", ErrInvalidArgument, dutyPercent)
	}

	for _, src := range []ClockSource{ClockBus, ClockCrystal} {
		total, ok := sourceCycles(periodNs, src)
		if !ok || total == 0 {
			continue
		}
		for div := Div1; div <= Div256; div++ {
			steps := uint64(periodSteps) << div
			pre := (total + steps - 1) / steps
			if pre == 0 {
				pre = 1
			}
			if pre > 256 {
				continue
			}
			entire := uint16(total/(pre<<div) - 1)
			return PwmChannelConfig{
				Clock:     ClockConfig{Source: src, Divider: div},
				Prescaler: uint8(pre - 1),
				Period:    Period{Entire: entire, Active: dutyCycles(entire, dutyPercent)},
				Polarity:  ActiveHigh,
				Enabled:   true,
			}, nil
		}
	}
	return PwmChannelConfig{}, fmt.Errorf("%w: period %dns cannot be generated", ErrInvalidArgument, periodNs)
}

// sourceCycles returns periodNs expressed in cycles of src.
func sourceCycles(periodNs uint64, src ClockSource) (uint64, bool) {
	hi, lo := bits.Mul64(periodNs, src.Hz())
	if hi >= NsPerSecond {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, NsPerSecond)
	return q, true
}
