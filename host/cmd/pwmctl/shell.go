package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/marcinbor85/gohex"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"sunpwm/core"
	"sunpwm/host/serial"
	"sunpwm/mmio"
	"sunpwm/pwmio"
	"sunpwm/remote"
)

// device is the controller surface shared by a local *core.Controller and a
// *remote.Client.
type device interface {
	ApplyPwmConfig(ch core.Channel, cfg core.PwmChannelConfig) error
	ReadPwmConfig(ch core.Channel) (core.PwmChannelConfig, error)
	SetDutyPercent(ch core.Channel, percent int) error
	SetEnabled(ch core.Channel, enabled bool) error
	SetClockBypass(ch core.Channel, bypass bool) error
	ApplyCaptureConfig(ch core.Channel, cfg core.CaptureChannelConfig) error
	CaptureTime(ctx context.Context, ch core.Channel) (core.CaptureResult, error)
	OutputFrequencyHz(ch core.Channel) (uint64, error)
	MaxCaptureDurationNs(ch core.Channel) (uint64, error)
}

var errQuit = errors.New("quit")

type command struct {
	usage string
	help  string
	args  int // minimum argument count
	run   func(s *shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":    {"help", "Show this help message", 0, (*shell).help},
		"pwm":     {"pwm CH SRC DIV PRE ENTIRE ACTIVE [high|low]", "Program a PWM channel from raw values", 6, (*shell).pwm},
		"plan":    {"plan CH PERIOD_NS DUTY", "Program a period in ns at a duty in percent", 3, (*shell).plan},
		"out":     {"out CH FREQ DUTY", "Output a frequency (1kHz) at a duty (25%)", 3, (*shell).out},
		"level":   {"level CH high|low", "Hold a channel at a constant level", 2, (*shell).level},
		"duty":    {"duty CH PCT", "Change the duty keeping the period", 2, (*shell).duty},
		"enable":  {"enable CH", "Enable a PWM channel", 1, (*shell).enable},
		"disable": {"disable CH", "Disable a PWM channel at the end of its cycle", 1, (*shell).disable},
		"bypass":  {"bypass CH on|off", "Route the clock straight to the pin", 2, (*shell).bypass},
		"show":    {"show CH", "Show the PWM configuration of a channel", 1, (*shell).show},
		"freq":    {"freq CH", "Show the output frequency", 1, (*shell).freq},
		"capture": {"capture CH SRC DIV PRE [rising] [falling]", "Arm capture on a channel", 4, (*shell).capture},
		"measure": {"measure CH [TIMEOUT]", "Time one pulse (default timeout 1s)", 1, (*shell).measure},
		"max":     {"max CH", "Longest pulse the capture clock can time", 1, (*shell).maxDuration},
		"regs":    {"regs", "Dump all registers (local only)", 0, (*shell).regs},
		"dump":    {"dump FILE", "Save the register block as Intel HEX (local only)", 1, (*shell).dump},
		"dict":    {"dict", "Show the board dictionary (remote only)", 0, (*shell).dict},
		"ports":   {"ports", "List serial ports", 0, (*shell).ports},
		"quit":    {"quit", "Exit", 0, func(*shell, []string) error { return errQuit }},
	}
	commands["exit"] = commands["quit"]
	commands["q"] = commands["quit"]
	commands["?"] = commands["help"]
}

type shell struct {
	dev device
	w   io.Writer

	// base is the physical address of the register block, used by dump.
	base uint32
}

// exec runs one command line. It returns errQuit on quit.
func (s *shell) exec(line string) error {
	words, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(words) == 0 || strings.HasPrefix(words[0], "#") {
		return nil
	}

	cmd, ok := commands[strings.ToLower(words[0])]
	if !ok {
		return fmt.Errorf("unknown command %q (type 'help' for available commands)", words[0])
	}
	if len(words)-1 < cmd.args {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return cmd.run(s, words[1:])
}

// script runs the ';' separated commands of text, stopping at the first
// error.
func (s *shell) script(text string) error {
	for _, line := range strings.Split(text, ";") {
		if err := s.exec(line); err != nil {
			return err
		}
	}
	return nil
}

func (s *shell) help([]string) error {
	names := make([]string, 0, len(commands))
	for name, cmd := range commands {
		if strings.Fields(cmd.usage)[0] == name {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fmt.Fprintln(s.w, "Available commands:")
	for _, name := range names {
		fmt.Fprintf(s.w, "  %-44s %s\n", commands[name].usage, commands[name].help)
	}
	return nil
}

func parseChannel(s string) (core.Channel, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("channel %q: %w", s, err)
	}
	ch := core.Channel(n)
	return ch, ch.Validate()
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidArgument, s)
	}
	return v, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected on or off, got %q", core.ErrInvalidArgument, s)
}

func parsePolarity(s string) (core.Polarity, error) {
	switch strings.ToLower(s) {
	case "high":
		return core.ActiveHigh, nil
	case "low":
		return core.ActiveLow, nil
	}
	return 0, fmt.Errorf("%w: polarity %q", core.ErrInvalidArgument, s)
}

// parseTimebase reads SRC DIV PRE.
func parseTimebase(args []string) (core.ClockConfig, uint8, error) {
	src, err := core.ParseClockSource(args[0])
	if err != nil {
		return core.ClockConfig{}, 0, err
	}
	factor, err := parseUint(args[1], 16)
	if err != nil {
		return core.ClockConfig{}, 0, err
	}
	div, err := core.DividerFromFactor(factor)
	if err != nil {
		return core.ClockConfig{}, 0, err
	}
	pre, err := parseUint(args[2], 8)
	if err != nil {
		return core.ClockConfig{}, 0, err
	}
	return core.ClockConfig{Source: src, Divider: div}, uint8(pre), nil
}

func (s *shell) pwm(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	cc, pre, err := parseTimebase(args[1:4])
	if err != nil {
		return err
	}
	entire, err := parseUint(args[4], 16)
	if err != nil {
		return err
	}
	active, err := parseUint(args[5], 16)
	if err != nil {
		return err
	}
	polarity := core.ActiveHigh
	if len(args) > 6 {
		if polarity, err = parsePolarity(args[6]); err != nil {
			return err
		}
	}

	return s.apply(ch, core.PwmChannelConfig{
		Clock:     cc,
		Prescaler: pre,
		Period:    core.Period{Entire: uint16(entire), Active: uint16(active)},
		Polarity:  polarity,
		Enabled:   true,
	})
}

func (s *shell) plan(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	periodNs, err := parseUint(args[1], 64)
	if err != nil {
		return err
	}
	duty, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%w: duty %q", core.ErrInvalidArgument, args[2])
	}
	cfg, err := core.PlanPwm(periodNs, duty)
	if err != nil {
		return err
	}
	return s.apply(ch, cfg)
}

func (s *shell) apply(ch core.Channel, cfg core.PwmChannelConfig) error {
	if err := s.dev.ApplyPwmConfig(ch, cfg); err != nil {
		return err
	}
	fmt.Fprintf(s.w, "%v: %v pre=%d entire=%d active=%d %v\n",
		ch, cfg.Clock, cfg.Prescaler, cfg.Period.Entire, cfg.Period.Active, cfg.Polarity)
	return s.freq([]string{strconv.Itoa(int(ch))})
}

func (s *shell) out(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	var f physic.Frequency
	if err := f.Set(args[1]); err != nil {
		return fmt.Errorf("%w: frequency %q", core.ErrInvalidArgument, args[1])
	}
	duty, err := gpio.ParseDuty(args[2])
	if err != nil {
		return fmt.Errorf("%w: duty %q", core.ErrInvalidArgument, args[2])
	}
	o, err := pwmio.NewOutput(s.dev, ch, core.ActiveHigh)
	if err != nil {
		return err
	}
	if err := o.PWM(duty, f); err != nil {
		return err
	}
	fmt.Fprintf(s.w, "%v: %v at %v\n", o, duty, f)
	return nil
}

func (s *shell) level(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	var l gpio.Level
	switch strings.ToLower(args[1]) {
	case "high", "1":
		l = gpio.High
	case "low", "0":
		l = gpio.Low
	default:
		return fmt.Errorf("%w: level %q", core.ErrInvalidArgument, args[1])
	}
	o, err := pwmio.NewOutput(s.dev, ch, core.ActiveHigh)
	if err != nil {
		return err
	}
	if err := o.Out(l); err != nil {
		return err
	}
	fmt.Fprintf(s.w, "%v: %s\n", o, o.Function())
	return nil
}

func (s *shell) duty(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
	if err != nil {
		return fmt.Errorf("%w: duty %q", core.ErrInvalidArgument, args[1])
	}
	return s.dev.SetDutyPercent(ch, pct)
}

func (s *shell) enable(args []string) error  { return s.setEnabled(args[0], true) }
func (s *shell) disable(args []string) error { return s.setEnabled(args[0], false) }

func (s *shell) setEnabled(arg string, on bool) error {
	ch, err := parseChannel(arg)
	if err != nil {
		return err
	}
	return s.dev.SetEnabled(ch, on)
}

func (s *shell) bypass(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	on, err := parseOnOff(args[1])
	if err != nil {
		return err
	}
	return s.dev.SetClockBypass(ch, on)
}

func (s *shell) show(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	cfg, err := s.dev.ReadPwmConfig(ch)
	if err != nil {
		return err
	}
	state := "disabled"
	if cfg.Enabled {
		state = "enabled"
	}
	fmt.Fprintf(s.w, "%v: %s clock=%v pre=%d entire=%d active=%d\n",
		ch, state, cfg.Clock, cfg.Prescaler, cfg.Period.Entire, cfg.Period.Active)
	return nil
}

func (s *shell) freq(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	hz, err := s.dev.OutputFrequencyHz(ch)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.w, "%v: %d Hz\n", ch, hz)
	return nil
}

func (s *shell) capture(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	cc, pre, err := parseTimebase(args[1:4])
	if err != nil {
		return err
	}
	cfg := core.CaptureChannelConfig{Clock: cc, Prescaler: pre}
	for _, edge := range args[4:] {
		switch strings.ToLower(edge) {
		case "rising", "rise":
			cfg.Rising = true
		case "falling", "fall":
			cfg.Falling = true
		default:
			return fmt.Errorf("%w: edge %q", core.ErrInvalidArgument, edge)
		}
	}
	if !cfg.Rising && !cfg.Falling {
		cfg.Rising, cfg.Falling = true, true
	}
	if err := s.dev.ApplyCaptureConfig(ch, cfg); err != nil {
		return err
	}
	return s.maxDuration([]string{args[0]})
}

func (s *shell) measure(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	in, err := pwmio.NewInput(s.dev, ch)
	if err != nil {
		return err
	}
	if len(args) > 1 {
		if in.Timeout, err = time.ParseDuration(args[1]); err != nil {
			return fmt.Errorf("%w: timeout %q", core.ErrInvalidArgument, args[1])
		}
	}
	if err := in.Update(drivers.Time); err != nil {
		return err
	}
	fmt.Fprintf(s.w, "%v: high=%v low=%v period=%v freq=%v duty=%v\n",
		ch, in.High(), in.Low(), in.Period(), in.Frequency(), in.Duty())
	return nil
}

func (s *shell) maxDuration(args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	ns, err := s.dev.MaxCaptureDurationNs(ch)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.w, "%v: longest pulse %v\n", ch, time.Duration(ns))
	return nil
}

func (s *shell) regs([]string) error {
	local, ok := s.dev.(interface{ Snapshot() core.Snapshot })
	if !ok {
		return errors.New("regs needs a local register window")
	}
	return local.Snapshot().Format(s.w)
}

func (s *shell) dict([]string) error {
	client, ok := s.dev.(*remote.Client)
	if !ok {
		return errors.New("dict needs a remote board")
	}
	d, err := client.Dictionary(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(s.w, "Version: %s\n", d.Version)
	sigs := make([]string, 0, len(d.Commands))
	for sig := range d.Commands {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return d.Commands[sigs[i]] < d.Commands[sigs[j]] })
	for _, sig := range sigs {
		fmt.Fprintf(s.w, "  %2d: %s\n", d.Commands[sig], sig)
	}
	keys := make([]string, 0, len(d.Config))
	for k := range d.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(s.w, "  %s = %v\n", k, d.Config[k])
	}
	return nil
}

func (s *shell) ports([]string) error {
	ports, err := serial.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(s.w, "No serial ports found")
	}
	for _, p := range ports {
		fmt.Fprintln(s.w, p)
	}
	return nil
}

func (s *shell) dump(args []string) error {
	local, ok := s.dev.(interface{ Window() mmio.Window })
	if !ok {
		return errors.New("dump needs a local register window")
	}
	win := local.Window()
	img := make([]byte, core.WindowSize)
	for off := 0; off < core.WindowSize; off += 4 {
		binary.LittleEndian.PutUint32(img[off:], win.Load32(uintptr(off)))
	}

	mem := gohex.NewMemory()
	if err := mem.AddBinary(s.base, img); err != nil {
		return err
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := mem.DumpIntelHex(f, 16); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(s.w, "Wrote %d bytes at 0x%08x to %s\n", len(img), s.base, args[0])
	return nil
}
