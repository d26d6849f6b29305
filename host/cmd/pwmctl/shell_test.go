package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcinbor85/gohex"

	"sunpwm/core"
	"sunpwm/host/uio"
	"sunpwm/mmio"
	"sunpwm/remote"
)

func newLocalShell() (*shell, *core.Controller, *mmio.Mem, *strings.Builder) {
	mem := mmio.NewMem(core.WindowSize)
	ctrl := core.New(mem, core.WithPollInterval(time.Millisecond))
	var out strings.Builder
	return &shell{dev: ctrl, w: &out}, ctrl, mem, &out
}

func TestShellPwm(t *testing.T) {
	sh, ctrl, _, out := newLocalShell()

	if err := sh.exec("pwm 3 bus 2 4 999 250"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"PWM3: bus/2 pre=4 entire=999 active=250 high\n",
		"PWM3: 10000 Hz\n",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}

	if err := sh.exec("duty 3 50%"); err != nil {
		t.Fatal(err)
	}
	cfg, err := ctrl.ReadPwmConfig(3)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Period != (core.Period{Entire: 999, Active: 499}) || !cfg.Enabled {
		t.Errorf("Unexpected channel 3 config %+v", cfg)
	}

	out.Reset()
	if err := sh.exec("show 3"); err != nil {
		t.Fatal(err)
	}
	if want := "PWM3: enabled clock=bus/2 pre=4 entire=999 active=499\n"; out.String() != want {
		t.Errorf("Expected %q, got %q", want, out)
	}

	if err := sh.exec("disable 3"); err != nil {
		t.Fatal(err)
	}
	if on, _ := ctrl.IsEnabled(3); on {
		t.Error("Channel 3 still enabled")
	}
}

func TestShellPlanAndOutputs(t *testing.T) {
	sh, ctrl, _, out := newLocalShell()

	if err := sh.script("plan 0 1000000 50; out 1 1kHz 25%; level 2 high"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "PWM0: 1000 Hz\n") {
		t.Errorf("plan output:\n%s", out)
	}
	if !strings.Contains(out.String(), "PWM2: Out/High\n") {
		t.Errorf("level output:\n%s", out)
	}

	cfg, err := ctrl.ReadPwmConfig(1)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Period != (core.Period{Entire: 49999, Active: 12499}) {
		t.Errorf("Unexpected channel 1 period %+v", cfg.Period)
	}
}

func TestShellBypass(t *testing.T) {
	sh, ctrl, _, _ := newLocalShell()

	if err := sh.exec("bypass 4 on"); err != nil {
		t.Fatal(err)
	}
	if ctrl.Snapshot().ClockGating != 1<<20 {
		t.Errorf("Expected bypass bit 20, PCGR 0x%x", ctrl.Snapshot().ClockGating)
	}
	if err := sh.exec("bypass 4 maybe"); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestShellCapture(t *testing.T) {
	sh, _, mem, out := newLocalShell()

	if err := sh.exec("capture 5 crystal 32 49"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "PWM5: longest pulse 4.369s\n") {
		t.Errorf("capture output:\n%s", out)
	}

	// 15 ticks on and 30 off of a 66.7us tick
	base := uintptr(0x100 + 0x20*5)
	mem.Store32(base+0x14, 30)
	mem.Store32(base+0x18, 15)
	mem.Store32(base+0x10, mem.Load32(base+0x10)|1<<3|1<<4)

	out.Reset()
	if err := sh.exec("measure 5 100ms"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "PWM5: high=1ms low=2ms period=3ms ") {
		t.Errorf("measure output: %q", out)
	}

	if err := sh.exec("measure 5 10ms"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected a timeout without a new pulse, got %v", err)
	}
	if err := sh.exec("capture 6 bus 1 0 sideways"); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a bad edge, got %v", err)
	}
}

func TestShellErrors(t *testing.T) {
	sh, _, _, _ := newLocalShell()

	testCases := []struct {
		line string
		err  error
		msg  string
	}{
		{"frobnicate", nil, `unknown command "frobnicate" (type 'help' for available commands)`},
		{"pwm 1 bus", nil, "usage: pwm CH SRC DIV PRE ENTIRE ACTIVE [high|low]"},
		{"enable 8", core.ErrInvalidChannel, ""},
		{"pwm 0 pll 1 0 10 5", core.ErrInvalidArgument, ""},
		{"pwm 0 bus 3 0 10 5", core.ErrInvalidArgument, ""},
		{"pwm 0 bus 1 0 10 11", core.ErrInvalidArgument, ""},
		{"plan 0 5 50", core.ErrInvalidArgument, ""},
		{"out 0 fast 50%", core.ErrInvalidArgument, ""},
		{"dict", nil, "dict needs a remote board"},
		{"quit", errQuit, ""},
	}

	for _, tc := range testCases {
		err := sh.exec(tc.line)
		if err == nil {
			t.Errorf("%q: expected an error", tc.line)
			continue
		}
		if tc.err != nil && !errors.Is(err, tc.err) {
			t.Errorf("%q: expected %v, got %v", tc.line, tc.err, err)
		}
		if tc.msg != "" && err.Error() != tc.msg {
			t.Errorf("%q: expected %q, got %q", tc.line, tc.msg, err)
		}
	}
}

func TestShellScript(t *testing.T) {
	sh, ctrl, _, out := newLocalShell()

	if err := sh.script("# setup; enable 1;; enable 2"); err != nil {
		t.Fatal(err)
	}
	for _, ch := range []core.Channel{1, 2} {
		if on, _ := ctrl.IsEnabled(ch); !on {
			t.Errorf("Channel %d not enabled", ch)
		}
	}

	if err := sh.script("enable 3; enable 9; enable 4"); !errors.Is(err, core.ErrInvalidChannel) {
		t.Errorf("Expected ErrInvalidChannel, got %v", err)
	}
	if on, _ := ctrl.IsEnabled(4); on {
		t.Error("Script continued after an error")
	}

	if err := sh.exec(`level 0 "high"`); err != nil {
		t.Errorf("Quoted argument: %v", err)
	}
	if err := sh.exec(`level 0 "high`); err == nil {
		t.Error("Expected an error for an unterminated quote")
	}
	if out.Len() == 0 {
		t.Error("No output")
	}
}

func TestShellHelpAndRegs(t *testing.T) {
	sh, _, _, out := newLocalShell()

	if err := sh.exec("help"); err != nil {
		t.Fatal(err)
	}
	help := out.String()
	if !strings.Contains(help, "  quit ") || strings.Contains(help, "  exit ") {
		t.Errorf("Unexpected help:\n%s", help)
	}
	if n := strings.Count(help, "\n"); n != 20 {
		t.Errorf("Expected 19 commands, got %d lines", n)
	}

	out.Reset()
	if err := sh.exec("regs"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "PER") {
		t.Errorf("regs output:\n%s", out)
	}
}

func TestShellRemote(t *testing.T) {
	mem := mmio.NewMem(core.WindowSize)
	ctrl := core.New(mem, core.WithPollInterval(time.Millisecond))
	srv, err := remote.NewServer(ctrl)
	if err != nil {
		t.Fatal(err)
	}

	a, b := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, a) }()
	client := remote.Dial(b)
	t.Cleanup(func() {
		cancel()
		<-done
		client.Close()
	})

	var out strings.Builder
	sh := &shell{dev: client, w: &out}

	if err := sh.exec("plan 6 1000000 25"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "PWM6: 1000 Hz\n") {
		t.Errorf("plan output:\n%s", out.String())
	}
	if on, _ := ctrl.IsEnabled(6); !on {
		t.Error("Channel 6 not enabled on the board")
	}

	out.Reset()
	if err := sh.exec("dict"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Version: ", " 0: identify offset=%u count=%c\n", "CHANNELS = 8\n"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("dict output missing %q:\n%s", want, out.String())
		}
	}

	if err := sh.exec("regs"); err == nil {
		t.Error("Expected regs to fail over a remote link")
	}
}

func TestShellDump(t *testing.T) {
	sh, ctrl, _, out := newLocalShell()
	sh.base = 0x02000c00
	if err := ctrl.SetEnabled(3, true); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "regs.hex")
	if err := sh.exec("dump " + path); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Wrote 512 bytes at 0x02000c00") {
		t.Errorf("dump output: %q", out)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		t.Fatal(err)
	}
	segs := mem.GetDataSegments()
	if len(segs) != 1 || segs[0].Address != 0x02000c00 || len(segs[0].Data) != core.WindowSize {
		t.Fatalf("Unexpected segments %+v", segs)
	}
	if per := segs[0].Data[0x80:0x84]; !bytes.Equal(per, []byte{0x08, 0, 0, 0}) {
		t.Errorf("Expected PER 0x08 in the image, got % x", per)
	}
}

func TestDumpBaseFollowsMapOffset(t *testing.T) {
	// Page-aligned addr with the registers 0xc00 into the page
	m := uio.Map{Addr: 0x02000000, Size: 0x1000, Offset: 0xc00}
	if got := blockAddr(m, 0x1000); got != 0x02000c00 {
		t.Errorf("Expected 0x02000c00, got 0x%08x", got)
	}
}
