package config

import (
	"fmt"

	"sunpwm/core"
)

// Device is what Apply programs: a *core.Controller or a *remote.Client.
type Device interface {
	ApplyPwmConfig(ch core.Channel, cfg core.PwmChannelConfig) error
	ApplyCaptureConfig(ch core.Channel, cfg core.CaptureChannelConfig) error
	SetEnabled(ch core.Channel, enabled bool) error
}

// Apply programs every configured channel in file order and stops at the
// first failure.
func (c *Config) Apply(dev Device) error {
	for _, ch := range c.Channels {
		var err error
		switch ch.Mode {
		case ModePWM:
			var cfg core.PwmChannelConfig
			if cfg, err = ch.PwmConfig(); err == nil {
				err = dev.ApplyPwmConfig(core.Channel(ch.Channel), cfg)
			}
		case ModeCapture:
			var cfg core.CaptureChannelConfig
			if cfg, err = ch.CaptureConfig(); err == nil {
				err = dev.ApplyCaptureConfig(core.Channel(ch.Channel), cfg)
			}
		default:
			err = fmt.Errorf("%w: unknown mode %q", core.ErrInvalidArgument, ch.Mode)
		}
		if err != nil {
			return fmt.Errorf("channel %d: %w", ch.Channel, err)
		}
	}
	return nil
}

// PwmChannels returns the channels configured for PWM output.
func (c *Config) PwmChannels() []core.Channel {
	var chans []core.Channel
	for _, ch := range c.Channels {
		if ch.Mode == ModePWM {
			chans = append(chans, core.Channel(ch.Channel))
		}
	}
	return chans
}

// Shutdown disables every configured PWM channel, letting each finish its
// running cycle. All channels are attempted; the first error is returned.
func (c *Config) Shutdown(dev Device) error {
	var first error
	for _, ch := range c.PwmChannels() {
		if err := dev.SetEnabled(ch, false); err != nil && first == nil {
			first = fmt.Errorf("channel %d: %w", ch, err)
		}
	}
	return first
}
