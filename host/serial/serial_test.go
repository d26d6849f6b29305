//go:build !wasm

package serial

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyS1")
	if cfg.Device != "/dev/ttyS1" || cfg.Baud != 115200 || cfg.ReadTimeout != 100*time.Millisecond {
		t.Errorf("Unexpected default config %+v", cfg)
	}
}

func TestReadResult(t *testing.T) {
	failed := errors.New("failed")
	testCases := []struct {
		n       int
		err     error
		timeout bool
		wantN   int
		wantErr error
	}{
		{0, io.EOF, true, 0, nil},
		{0, io.EOF, false, 0, io.EOF},
		{3, nil, true, 3, nil},
		{0, failed, true, 0, failed},
	}

	for _, tc := range testCases {
		n, err := readResult(tc.n, tc.err, tc.timeout)
		if n != tc.wantN || err != tc.wantErr {
			t.Errorf("readResult(%d, %v, %v) = %d, %v; expected %d, %v", tc.n, tc.err, tc.timeout, n, err, tc.wantN, tc.wantErr)
		}
	}
}

func TestOpenNilConfig(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("Expected an error for a nil config")
	}
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(&Config{Device: "/nonexistent/ttyS9"})
	if err == nil {
		t.Fatal("Expected an error opening a missing device")
	}
}
