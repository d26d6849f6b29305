// Command pwmctl drives the PWM/capture peripheral interactively, either
// through a local UIO mapping or through pwmd over a serial link.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"sunpwm/config"
	"sunpwm/core"
	"sunpwm/host/serial"
	"sunpwm/host/uio"
	"sunpwm/mmio"
	"sunpwm/remote"
)

var (
	uioDevice  = flag.String("uio", "", "UIO device of the register block (default /dev/uio0)")
	uioMap     = flag.Int("map", 0, "UIO map index")
	serialDev  = flag.String("serial", "", "Talk to pwmd on this serial device instead of mapping the registers")
	baud       = flag.Int("baud", serial.DefaultBaud, "Serial baud rate")
	configFile = flag.String("config", "", "Board configuration to apply on start")
	execute    = flag.String("exec", "", "Run these ';' separated commands and exit")
	list       = flag.Bool("list", false, "List serial ports and exit")
	verbose    = flag.Bool("verbose", false, "Log every register access")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("pwmctl: ")

	if *list {
		sh := &shell{w: os.Stdout}
		if err := sh.ports(nil); err != nil {
			log.Fatal(err)
		}
		return
	}

	var cfg *config.Config
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			log.Fatal(err)
		}
	}

	dev, base, closeDev, err := openDevice(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeDev()

	if cfg != nil {
		if err := cfg.Apply(dev); err != nil {
			log.Fatalf("applying %s: %v", *configFile, err)
		}
	}

	sh := &shell{dev: dev, w: colorable.NewColorableStdout(), base: base}
	if *execute != "" {
		if err := sh.script(*execute); err != nil && err != errQuit {
			log.Fatal(err)
		}
		return
	}
	repl(sh)
}

// blockAddr is the physical address dump images are placed at.
func blockAddr(m uio.Map, page int) uint32 {
	return uint32(m.BlockAddr(uint64(page)))
}

// openDevice connects to pwmd when a serial device is given and maps the
// registers otherwise. base is the physical address of a local mapping.
func openDevice(cfg *config.Config) (dev device, base uint32, closer func(), err error) {
	if *serialDev != "" {
		sc := serial.DefaultConfig(*serialDev)
		sc.Baud = *baud
		port, err := serial.Open(sc)
		if err != nil {
			return nil, 0, nil, err
		}
		if err := port.Flush(); err != nil {
			port.Close()
			return nil, 0, nil, err
		}
		client := remote.Dial(port)
		return client, 0, func() { client.Close() }, nil
	}

	path, index := config.DefaultUIODevice, *uioMap
	if cfg != nil {
		path, index = cfg.UIO.Device, cfg.UIO.Map
	}
	if *uioDevice != "" {
		path, index = *uioDevice, *uioMap
	}
	u, err := uio.Open(path, index, core.WindowSize)
	if err != nil {
		return nil, 0, nil, err
	}

	var win mmio.Window = u.Window()
	if *verbose {
		win = mmio.Trace(win, log.New(os.Stderr, "", log.Lmicroseconds))
	}
	var opts []core.Option
	if cfg != nil {
		opts = append(opts, core.WithPollInterval(cfg.PollInterval()))
	}
	return core.New(win, opts...), blockAddr(u.Map, os.Getpagesize()), func() { u.Close() }, nil
}

func repl(sh *shell) {
	stderr := colorable.NewColorableStderr()
	report := plainError
	if isatty.IsTerminal(os.Stderr.Fd()) {
		report = colorError
	}

	fmt.Fprintln(sh.w, "pwmctl - type 'help' for available commands, 'quit' to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(sh.w, "pwm> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		err := sh.exec(line)
		if err == errQuit {
			return
		}
		if err != nil {
			report(stderr, err)
		}
	}
	if err := scanner.Err(); err != nil {
		report(stderr, fmt.Errorf("reading input: %w", err))
		os.Exit(1)
	}
}

func plainError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}

func colorError(w io.Writer, err error) {
	fmt.Fprintf(w, "\x1b[31mError:\x1b[0m %v\n", err)
}
