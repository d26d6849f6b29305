// Package config reads the JSON board description used by pwmd and pwmctl.
//
//	{
//	  "uio": {"device": "/dev/uio0"},
//	  "serial": {"device": "/dev/ttyS1", "baud": 115200},
//	  "channels": [
//	    {"channel": 0, "mode": "pwm", "period_ns": 1000000, "duty": 25},
//	    {"channel": 2, "mode": "pwm", "source": "bus", "divider": 2,
//	     "prescaler": 4, "entire": 999, "active": 250, "polarity": "low"},
//	    {"channel": 5, "mode": "capture", "source": "crystal", "divider": 32,
//	     "prescaler": 49, "rising": true, "falling": true}
//	  ]
//	}
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sunpwm/core"
)

// Channel modes.
const (
	ModePWM     = "pwm"
	ModeCapture = "capture"
)

// Defaults filled in by Parse.
const (
	DefaultUIODevice    = "/dev/uio0"
	DefaultBaud         = 115200
	DefaultPollInterval = 100 * time.Millisecond
	DefaultPolarity     = "high"
)

// Config is a board description.
type Config struct {
	UIO      UIOConfig       `json:"uio"`
	Serial   SerialConfig    `json:"serial"`
	Channels []ChannelConfig `json:"channels"`

	// PollIntervalMs is the capture flag polling period.
	PollIntervalMs int `json:"poll_interval_ms"`
}

// UIOConfig locates the register block.
type UIOConfig struct {
	Device string `json:"device"`
	Map    int    `json:"map"`
}

// SerialConfig is the remote control link. An empty Device disables it.
type SerialConfig struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
}

// ChannelConfig sets up one channel. A PWM channel is described either by
// PeriodNs and Duty, resolved with core.PlanPwm, or by raw clock settings
// and cycle counts.
type ChannelConfig struct {
	Channel int    `json:"channel"`
	Mode    string `json:"mode"`

	Source    string `json:"source"`
	Divider   uint64 `json:"divider"` // division factor, 1 to 256
	Prescaler int    `json:"prescaler"`

	// PWM
	PeriodNs uint64 `json:"period_ns"`
	Duty     int    `json:"duty"`
	Entire   int    `json:"entire"`
	Active   int    `json:"active"`
	Polarity string `json:"polarity"`
	Disabled bool   `json:"disabled"`

	// Capture
	Rising  bool `json:"rising"`
	Falling bool `json:"falling"`
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a JSON configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.UIO.Device == "" {
		cfg.UIO.Device = DefaultUIODevice
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = DefaultBaud
	}
	if cfg.PollIntervalMs == 0 {
		cfg.PollIntervalMs = int(DefaultPollInterval / time.Millisecond)
	}

	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		ch.Mode = strings.ToLower(ch.Mode)
		if ch.Mode == "" {
			ch.Mode = ModePWM
		}
		if ch.Source == "" {
			ch.Source = core.ClockCrystal.String()
		}
		if ch.Divider == 0 {
			ch.Divider = 1
		}
		if ch.Polarity == "" {
			ch.Polarity = DefaultPolarity
		}
	}
}

// PollInterval returns the capture polling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Validate checks every channel and the clock pairs they share.
func (c *Config) Validate() error {
	if c.PollIntervalMs < 0 {
		return fmt.Errorf("poll_interval_ms %d is negative", c.PollIntervalMs)
	}
	if c.UIO.Map < 0 {
		return fmt.Errorf("uio map %d is negative", c.UIO.Map)
	}
	if c.Serial.Baud < 0 {
		return fmt.Errorf("serial baud %d is negative", c.Serial.Baud)
	}

	var errs []error
	seen := make(map[int]string)
	clocks := make(map[core.Channel]core.ClockConfig)
	for _, ch := range c.Channels {
		if mode, ok := seen[ch.Channel]; ok {
			if mode != ch.Mode {
				errs = append(errs, fmt.Errorf("channel %d: used for both %s and %s", ch.Channel, mode, ch.Mode))
			} else {
				errs = append(errs, fmt.Errorf("channel %d: configured twice", ch.Channel))
			}
			continue
		}
		seen[ch.Channel] = ch.Mode

		cc, err := ch.clock()
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", ch.Channel, err))
			continue
		}
		id := core.Channel(ch.Channel)
		if other, ok := clocks[core.PairOf(id)]; ok && other != cc {
			errs = append(errs, fmt.Errorf("%w: channels %d and %d share a clock but ask for %v and %v",
				core.ErrInvalidArgument, core.PairOf(id), id, other, cc))
		}
		clocks[id] = cc
	}
	return errors.Join(errs...)
}

// clock validates ch and returns the clock it will program.
func (ch ChannelConfig) clock() (core.ClockConfig, error) {
	switch ch.Mode {
	case ModePWM:
		cfg, err := ch.PwmConfig()
		return cfg.Clock, err
	case ModeCapture:
		cfg, err := ch.CaptureConfig()
		return cfg.Clock, err
	}
	return core.ClockConfig{}, fmt.Errorf("%w: unknown mode %q", core.ErrInvalidArgument, ch.Mode)
}

func (ch ChannelConfig) timebase() (core.ClockConfig, uint8, error) {
	if err := core.Channel(ch.Channel).Validate(); err != nil {
		return core.ClockConfig{}, 0, err
	}
	src, err := core.ParseClockSource(ch.Source)
	if err != nil {
		return core.ClockConfig{}, 0, err
	}
	div, err := core.DividerFromFactor(ch.Divider)
	if err != nil {
		return core.ClockConfig{}, 0, err
	}
	if ch.Prescaler < 0 || ch.Prescaler > 0xFF {
		return core.ClockConfig{}, 0, fmt.Errorf("%w: prescaler %d outside [0, 255]", core.ErrInvalidArgument, ch.Prescaler)
	}
	return core.ClockConfig{Source: src, Divider: div}, uint8(ch.Prescaler), nil
}

// PwmConfig resolves a PWM channel description.
func (ch ChannelConfig) PwmConfig() (core.PwmChannelConfig, error) {
	cc, pre, err := ch.timebase()
	if err != nil {
		return core.PwmChannelConfig{}, err
	}
	polarity, err := parsePolarity(ch.Polarity)
	if err != nil {
		return core.PwmChannelConfig{}, err
	}

	var cfg core.PwmChannelConfig
	if ch.PeriodNs > 0 {
		if cfg, err = core.PlanPwm(ch.PeriodNs, ch.Duty); err != nil {
			return core.PwmChannelConfig{}, err
		}
	} else {
		if ch.Entire < 0 || ch.Entire > 0xFFFF || ch.Active < 0 || ch.Active > 0xFFFF {
			return core.PwmChannelConfig{}, fmt.Errorf("%w: cycles %d/%d outside [0, 65535]", core.ErrInvalidArgument, ch.Active, ch.Entire)
		}
		cfg = core.PwmChannelConfig{
			Clock:     cc,
			Prescaler: pre,
			Period:    core.Period{Entire: uint16(ch.Entire), Active: uint16(ch.Active)},
		}
		if err := cfg.Period.Validate(); err != nil {
			return core.PwmChannelConfig{}, err
		}
	}
	cfg.Polarity = polarity
	cfg.Enabled = !ch.Disabled
	return cfg, nil
}

// CaptureConfig resolves a capture channel description.
func (ch ChannelConfig) CaptureConfig() (core.CaptureChannelConfig, error) {
	cc, pre, err := ch.timebase()
	if err != nil {
		return core.CaptureChannelConfig{}, err
	}
	if !ch.Rising && !ch.Falling {
		return core.CaptureChannelConfig{}, fmt.Errorf("%w: capture without an edge", core.ErrInvalidArgument)
	}
	return core.CaptureChannelConfig{
		Clock:     cc,
		Prescaler: pre,
		Rising:    ch.Rising,
		Falling:   ch.Falling,
	}, nil
}

func parsePolarity(s string) (core.Polarity, error) {
	switch strings.ToLower(s) {
	case "high", "active_high":
		return core.ActiveHigh, nil
	case "low", "active_low":
		return core.ActiveLow, nil
	}
	return 0, fmt.Errorf("%w: polarity %q", core.ErrInvalidArgument, s)
}
