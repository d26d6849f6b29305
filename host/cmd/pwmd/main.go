// Command pwmd runs on the board: it maps the PWM registers, applies the
// board configuration and serves the remote protocol on a serial line until
// interrupted. Configured PWM outputs are stopped on exit.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sunpwm/config"
	"sunpwm/core"
	"sunpwm/host/serial"
	"sunpwm/host/uio"
	"sunpwm/mmio"
	"sunpwm/remote"
)

var (
	configFile = flag.String("config", "", "Board configuration (required)")
	serialDev  = flag.String("serial", "", "Serial device, overriding the configuration")
	verbose    = flag.Bool("verbose", false, "Log every register access")
)

func main() {
	flag.Parse()
	log.SetPrefix("pwmd: ")

	if *configFile == "" {
		flag.Usage()
		os.Exit(2)
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	if *serialDev != "" {
		cfg.Serial.Device = *serialDev
	}
	if cfg.Serial.Device == "" {
		log.Fatal("no serial device configured")
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config) error {
	dev, err := uio.Open(cfg.UIO.Device, cfg.UIO.Map, core.WindowSize)
	if err != nil {
		return err
	}
	defer dev.Close()
	log.Printf("mapped %s map%d at 0x%x (%d bytes)", cfg.UIO.Device, dev.Map.Index, dev.Map.Addr, dev.Map.Size)

	var win mmio.Window = dev.Window()
	if *verbose {
		win = mmio.Trace(win, log.Default())
	}
	ctrl := core.New(win, core.WithPollInterval(cfg.PollInterval()))

	if err := cfg.Apply(ctrl); err != nil {
		return err
	}
	log.Printf("applied %d channels", len(cfg.Channels))
	defer func() {
		if err := cfg.Shutdown(ctrl); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	sc := serial.DefaultConfig(cfg.Serial.Device)
	sc.Baud = cfg.Serial.Baud
	port, err := serial.Open(sc)
	if err != nil {
		return err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return err
	}

	var opts []remote.ServerOption
	if *verbose {
		opts = append(opts, remote.WithLogger(log.Default()))
	}
	srv, err := remote.NewServer(ctrl, opts...)
	if err != nil {
		port.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("serving on %s at %d baud", cfg.Serial.Device, cfg.Serial.Baud)
	err = srv.Serve(ctx, port)
	if errors.Is(err, context.Canceled) {
		log.Print("stopping")
		return nil
	}
	return err
}
