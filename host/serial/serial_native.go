//go:build !wasm

package serial

import (
	"errors"
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// NativePort is a Port backed by github.com/tarm/serial.
type NativePort struct {
	port    *serial.Port
	timeout bool
}

// Open opens and configures the line described by cfg.
func Open(cfg *Config) (*NativePort, error) {
	if cfg == nil {
		return nil, errors.New("serial: nil config")
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	return &NativePort{port: port, timeout: cfg.ReadTimeout > 0}, nil
}

// Read reads from the line. With a read timeout an expired Read reports
// (0, nil) rather than io.EOF.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	return readResult(n, err, p.timeout)
}

func readResult(n int, err error, timeout bool) (int, error) {
	if timeout && n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *NativePort) Flush() error {
	return p.port.Flush()
}

func (p *NativePort) Close() error {
	return p.port.Close()
}
