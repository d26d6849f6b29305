package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"sunpwm/core"
	"sunpwm/mmio"
)

const boardJSON = `{
  "serial": {"device": "/dev/ttyS1"},
  "channels": [
    {"channel": 0, "mode": "pwm", "period_ns": 1000000, "duty": 25},
    {"channel": 2, "mode": "pwm", "source": "bus", "divider": 2,
     "prescaler": 4, "entire": 999, "active": 250, "polarity": "low"},
    {"channel": 5, "mode": "capture", "source": "crystal", "divider": 32,
     "prescaler": 49, "rising": true, "falling": true}
  ]
}`

func TestParseDefaults(t *testing.T) {
	c := qt.New(t)
	cfg, err := Parse([]byte(boardJSON))
	c.Assert(err, qt.IsNil)

	c.Assert(cfg.UIO, qt.Equals, UIOConfig{Device: DefaultUIODevice})
	c.Assert(cfg.Serial, qt.Equals, SerialConfig{Device: "/dev/ttyS1", Baud: DefaultBaud})
	c.Assert(cfg.PollInterval(), qt.Equals, 100*time.Millisecond)
	c.Assert(cfg.Channels, qt.HasLen, 3)
	c.Assert(cfg.Channels[0].Polarity, qt.Equals, "high")
	c.Assert(cfg.Channels[0].Divider, qt.Equals, uint64(1))
	c.Assert(cfg.PwmChannels(), qt.DeepEquals, []core.Channel{0, 2})
}

func TestPwmConfigPlanned(t *testing.T) {
	c := qt.New(t)
	cfg, err := Parse([]byte(boardJSON))
	c.Assert(err, qt.IsNil)

	pwm, err := cfg.Channels[0].PwmConfig()
	c.Assert(err, qt.IsNil)
	c.Assert(pwm, qt.Equals, core.PwmChannelConfig{
		Clock:     core.ClockConfig{Source: core.ClockBus, Divider: core.Div1},
		Prescaler: 1,
		Period:    core.Period{Entire: 49999, Active: 12499},
		Polarity:  core.ActiveHigh,
		Enabled:   true,
	})
}

func TestPwmConfigRaw(t *testing.T) {
	c := qt.New(t)
	cfg, err := Parse([]byte(boardJSON))
	c.Assert(err, qt.IsNil)

	pwm, err := cfg.Channels[1].PwmConfig()
	c.Assert(err, qt.IsNil)
	c.Assert(pwm, qt.Equals, core.PwmChannelConfig{
		Clock:     core.ClockConfig{Source: core.ClockBus, Divider: core.Div2},
		Prescaler: 4,
		Period:    core.Period{Entire: 999, Active: 250},
		Polarity:  core.ActiveLow,
		Enabled:   true,
	})

	capture, err := cfg.Channels[2].CaptureConfig()
	c.Assert(err, qt.IsNil)
	c.Assert(capture, qt.Equals, core.CaptureChannelConfig{
		Clock:     core.ClockConfig{Source: core.ClockCrystal, Divider: core.Div32},
		Prescaler: 49,
		Rising:    true,
		Falling:   true,
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name string
		json string
		err  string
	}{
		{
			name: "channel",
			json: `{"channels": [{"channel": 8, "entire": 10}]}`,
			err:  `channel 8: invalid channel: 8 \(valid 0-7\)`,
		},
		{
			name: "duplicate",
			json: `{"channels": [{"channel": 1, "entire": 10}, {"channel": 1, "entire": 20}]}`,
			err:  `channel 1: configured twice`,
		},
		{
			name: "mixed",
			json: `{"channels": [{"channel": 1, "entire": 10}, {"channel": 1, "mode": "capture", "rising": true}]}`,
			err:  `channel 1: used for both pwm and capture`,
		},
		{
			name: "mode",
			json: `{"channels": [{"channel": 3, "mode": "servo"}]}`,
			err:  `channel 3: invalid argument: unknown mode "servo"`,
		},
		{
			name: "divider",
			json: `{"channels": [{"channel": 0, "divider": 3}]}`,
			err:  `channel 0: invalid argument: clock divider 3 .*`,
		},
		{
			name: "source",
			json: `{"channels": [{"channel": 0, "source": "pll"}]}`,
			err:  `channel 0: invalid argument: clock source "pll"`,
		},
		{
			name: "prescaler",
			json: `{"channels": [{"channel": 0, "prescaler": 256}]}`,
			err:  `channel 0: invalid argument: prescaler 256 outside \[0, 255\]`,
		},
		{
			name: "active",
			json: `{"channels": [{"channel": 0, "entire": 10, "active": 11}]}`,
			err:  `channel 0: invalid argument: .*`,
		},
		{
			name: "duty",
			json: `{"channels": [{"channel": 0, "period_ns": 1000, "duty": 120}]}`,
			err:  `channel 0: invalid argument: duty 120% outside \[0, 100\]`,
		},
		{
			name: "polarity",
			json: `{"channels": [{"channel": 0, "polarity": "inverted"}]}`,
			err:  `channel 0: invalid argument: polarity "inverted"`,
		},
		{
			name: "edges",
			json: `{"channels": [{"channel": 4, "mode": "capture"}]}`,
			err:  `channel 4: invalid argument: capture without an edge`,
		},
		{
			name: "pair",
			json: `{"channels": [{"channel": 0, "period_ns": 1000000}, {"channel": 1, "entire": 10}]}`,
			err:  `invalid argument: channels 0 and 1 share a clock but ask for bus/1 and crystal/1`,
		},
		{
			name: "poll",
			json: `{"poll_interval_ms": -1}`,
			err:  `poll_interval_ms -1 is negative`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.json))
			qt.Assert(t, err, qt.ErrorMatches, tc.err)
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte(`{"channels": [`))
	qt.Assert(t, err, qt.IsNotNil)
}

func TestLoad(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "board.json")
	c.Assert(os.WriteFile(path, []byte(boardJSON), 0o644), qt.IsNil)

	cfg, err := Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Channels, qt.HasLen, 3)

	c.Assert(os.WriteFile(path, []byte(`{"channels": [{"channel": 9}]}`), 0o644), qt.IsNil)
	_, err = Load(path)
	c.Assert(err, qt.ErrorMatches, `.*board.json: channel 9: invalid channel.*`)
	c.Assert(err, qt.ErrorIs, core.ErrInvalidChannel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	c.Assert(err, qt.ErrorIs, os.ErrNotExist)
}

func TestApplyAndShutdown(t *testing.T) {
	c := qt.New(t)
	cfg, err := Parse([]byte(boardJSON))
	c.Assert(err, qt.IsNil)

	ctrl := core.New(mmio.NewMem(core.WindowSize))
	c.Assert(cfg.Apply(ctrl), qt.IsNil)

	got, err := ctrl.ReadPwmConfig(2)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Period, qt.Equals, core.Period{Entire: 999, Active: 250})
	c.Assert(got.Clock, qt.Equals, core.ClockConfig{Source: core.ClockBus, Divider: core.Div2})
	c.Assert(got.Enabled, qt.IsTrue)

	hz, err := ctrl.OutputFrequencyHz(0)
	c.Assert(err, qt.IsNil)
	c.Assert(hz, qt.Equals, uint64(1000))

	maxNs, err := ctrl.MaxCaptureDurationNs(5)
	c.Assert(err, qt.IsNil)
	c.Assert(maxNs, qt.Equals, uint64(4369000000))

	c.Assert(cfg.Shutdown(ctrl), qt.IsNil)
	for _, ch := range []core.Channel{0, 2} {
		on, err := ctrl.IsEnabled(ch)
		c.Assert(err, qt.IsNil)
		c.Assert(on, qt.IsFalse, qt.Commentf("channel %d", ch))
	}
}

func TestApplyStopsOnBusyChannel(t *testing.T) {
	c := qt.New(t)
	cfg, err := Parse([]byte(`{"channels": [{"channel": 6, "mode": "capture", "rising": true, "falling": true}]}`))
	c.Assert(err, qt.IsNil)

	ctrl := core.New(mmio.NewMem(core.WindowSize))
	c.Assert(ctrl.SetEnabled(6, true), qt.IsNil)

	err = cfg.Apply(ctrl)
	c.Assert(err, qt.ErrorIs, core.ErrBusy)
	c.Assert(err, qt.ErrorMatches, `channel 6: .*`)
}
