package pwmio

import (
	"context"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"sunpwm/core"
)

// DefaultTimeout bounds one Update of an Input.
const DefaultTimeout = time.Second

// Capturer measures pulses on a capture channel.
type Capturer interface {
	CaptureTime(ctx context.Context, ch core.Channel) (core.CaptureResult, error)
}

// Input is a capture channel seen as a drivers.Sensor measuring
// drivers.Time: each Update times one pulse.
type Input struct {
	dev Capturer
	ch  core.Channel

	// Timeout bounds the wait for a pulse in Update.
	Timeout time.Duration

	mu   sync.Mutex
	last core.CaptureResult
}

var _ drivers.Sensor = (*Input)(nil)

// NewInput returns the sensor of capture channel ch. The channel must have
// been configured for capture with ApplyCaptureConfig.
func NewInput(dev Capturer, ch core.Channel) (*Input, error) {
	if err := ch.Validate(); err != nil {
		return nil, err
	}
	return &Input{dev: dev, ch: ch, Timeout: DefaultTimeout}, nil
}

// Update captures one pulse when which includes drivers.Time.
func (in *Input) Update(which drivers.Measurement) error {
	if which&drivers.Time == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), in.Timeout)
	defer cancel()

	res, err := in.dev.CaptureTime(ctx, in.ch)
	if err != nil {
		return err
	}
	in.mu.Lock()
	in.last = res
	in.mu.Unlock()
	return nil
}

func (in *Input) result() core.CaptureResult {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.last
}

// High returns the on time of the last pulse.
func (in *Input) High() time.Duration { return in.result().On() }

// Low returns the off time of the last pulse.
func (in *Input) Low() time.Duration { return in.result().Off() }

// Period returns the length of the last full cycle.
func (in *Input) Period() time.Duration { return in.result().Period() }

// Frequency returns the frequency of the last cycle, or 0 before the first
// Update.
func (in *Input) Frequency() physic.Frequency {
	p := in.result().Period()
	if p <= 0 {
		return 0
	}
	return physic.Frequency(int64(core.NsPerSecond) * int64(physic.Hertz) / int64(p))
}

// Duty returns the high fraction of the last cycle.
func (in *Input) Duty() gpio.Duty {
	res := in.result()
	total := res.OnNs + res.OffNs
	if total == 0 {
		return 0
	}
	return gpio.Duty(res.OnNs * uint64(gpio.DutyMax) / total)
}
