// Package remote carries controller operations over a serial link.
//
// The board runs a Server that owns the register window and answers
// request frames; the host drives it through a Client whose methods mirror
// core.Controller. Errors cross the link as status codes and come back as
// the same sentinels, so errors.Is(err, core.ErrBusy) works on both sides.
package remote

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"sunpwm/core"
	"sunpwm/protocol"
)

// DefaultCaptureTimeout bounds a capture whose request carries no timeout.
const DefaultCaptureTimeout = 5 * time.Second

// identifyChunk is the largest dictionary slice returned per identify.
const identifyChunk = 40

// Server answers requests against one controller. Requests are executed one
// at a time.
type Server struct {
	ctrl *core.Controller
	reg  *Registry
	dict []byte

	captureTimeout time.Duration
	logger         *log.Logger

	mu sync.Mutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCaptureTimeout sets the capture bound used when a request has none.
func WithCaptureTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.captureTimeout = d
	}
}

// WithLogger logs failed requests to l.
func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer returns a Server operating ctrl.
func NewServer(ctrl *core.Controller, opts ...ServerOption) (*Server, error) {
	s := &Server{
		ctrl:           ctrl,
		reg:            NewRegistry(),
		captureTimeout: DefaultCaptureTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerCommands()

	dict, err := encodeDictionary(&Dictionary{
		Version:  protocol.Version,
		Commands: s.reg.Signatures(),
		Config: map[string]any{
			"CHANNELS":           core.NumChannels,
			"CRYSTAL_HZ":         core.CrystalHz,
			"BUS_HZ":             core.BusHz,
			"MAX_CAPTURE_CYCLES": core.MaxCaptureCycles,
		},
	})
	if err != nil {
		return nil, err
	}
	s.dict = dict
	return s, nil
}

// Registry returns the server's command registry.
func (s *Server) Registry() *Registry {
	return s.reg
}

// Serve answers request frames read from rw until the stream ends or ctx is
// done. A cleanly closed stream returns nil.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriteCloser) error {
	conn := protocol.NewConn(rw)
	defer conn.Close()

	for {
		f, err := conn.Recv(ctx)
		if err == protocol.ErrClosed {
			return nil
		}
		if err != nil {
			return err
		}
		if err := conn.Send(f.Seq, s.Handle(ctx, f.Payload)); err != nil {
			return err
		}
	}
}

// Handle executes one request payload and returns the reply payload.
func (s *Server) Handle(ctx context.Context, payload []byte) []byte {
	args := protocol.NewDecoder(payload)
	id := args.Uint()
	reply := protocol.NewEncoder(StatusOK)

	err := args.Err()
	switch {
	case err != nil:
		err = malformed(err)
	case id > 0xFFFF:
		err = ErrUnknownCommand
	default:
		s.mu.Lock()
		err = s.reg.Dispatch(ctx, uint16(id), args, reply)
		s.mu.Unlock()
	}

	if err == nil {
		var out []byte
		if out, err = reply.Payload(); err == nil {
			return out
		}
	}
	if s.logger != nil {
		s.logger.Printf("remote: command %d: %v", id, err)
	}
	out, _ := protocol.NewEncoder(statusOf(err)).Payload()
	return out
}
