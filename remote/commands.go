package remote

import (
	"context"
	"fmt"
	"time"

	"sunpwm/core"
	"sunpwm/protocol"
)

// Command ids, in registration order.
const (
	cmdIdentify uint32 = iota
	cmdPwmApply
	cmdPwmRead
	cmdPwmDuty
	cmdPwmEnable
	cmdClockBypass
	cmdCaptureApply
	cmdCaptureRead
	cmdCaptureTime
	cmdPwmFreq
	cmdCaptureMax
)

func (s *Server) registerCommands() {
	s.reg.Register("identify", "offset=%u count=%c", s.identify)
	s.reg.Register("pwm_apply", "ch=%c src=%c div=%c pre=%c entire=%hu active=%hu polarity=%c enable=%c", s.pwmApply)
	s.reg.Register("pwm_read", "ch=%c", s.pwmRead)
	s.reg.Register("pwm_duty", "ch=%c pct=%c", s.pwmDuty)
	s.reg.Register("pwm_enable", "ch=%c enable=%c", s.pwmEnable)
	s.reg.Register("clock_bypass", "ch=%c enable=%c", s.clockBypass)
	s.reg.Register("capture_apply", "ch=%c src=%c div=%c pre=%c rising=%c falling=%c", s.captureApply)
	s.reg.Register("capture_read", "ch=%c timeout_ms=%u", s.captureRead)
	s.reg.Register("capture_time", "ch=%c timeout_ms=%u", s.captureTime)
	s.reg.Register("pwm_freq", "ch=%c", s.pwmFreq)
	s.reg.Register("capture_max", "ch=%c", s.captureMax)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

// byteArgs narrows wire values to register fields, rejecting values that
// would otherwise wrap.
func byteArgs(vals ...uint32) error {
	for _, v := range vals {
		if v > 0xFF {
			return fmt.Errorf("%w: argument %d out of range", core.ErrInvalidArgument, v)
		}
	}
	return nil
}

func clockArgs(src, div uint32) core.ClockConfig {
	return core.ClockConfig{Source: core.ClockSource(src), Divider: core.ClockDivider(div)}
}

func (s *Server) identify(_ context.Context, args *protocol.Decoder, reply *protocol.Encoder) error {
	offset := args.Uint()
	count := args.Uint()
	if err := args.Err(); err != nil {
		return malformed(err)
	}

	count = min(count, identifyChunk)
	var chunk []byte
	if offset < uint32(len(s.dict)) {
		end := min(offset+count, uint32(len(s.dict)))
		chunk = s.dict[offset:end]
	}
	reply.Uint(offset)
	reply.Bytes(chunk)
	return nil
}

func (s *Server) pwmApply(_ context.Context, args *protocol.Decoder, _ *protocol.Encoder) error {
	ch := core.Channel(args.Int())
	src, div, pre := args.Uint(), args.Uint(), args.Uint()
	entire, active := args.Uint(), args.Uint()
	polarity, enable := args.Uint(), args.Bool()
	if err := args.Err(); err != nil {
		return malformed(err)
	}
	if err := byteArgs(src, div, pre, polarity); err != nil {
		return err
	}
	if entire > 0xFFFF || active > 0xFFFF {
		return fmt.Errorf("%w: period %d/%d out of range", core.ErrInvalidArgument, active, entire)
	}

	return s.ctrl.ApplyPwmConfig(ch, core.PwmChannelConfig{
		Clock:     clockArgs(src, div),
		Prescaler: uint8(pre),
		Period:    core.Period{Entire: uint16(entire), Active: uint16(active)},
		Polarity:  core.Polarity(polarity),
		Enabled:   enable,
	})
}

func (s *Server) pwmRead(_ context.Context, args *protocol.Decoder, reply *protocol.Encoder) error {
	ch := core.Channel(args.Int())
	if err := args.Err(); err != nil {
		return malformed(err)
	}
	cfg, err := s.ctrl.ReadPwmConfig(ch)
	if err != nil {
		return err
	}
	reply.Uint(uint32(cfg.Clock.Source))
	reply.Uint(uint32(cfg.Clock.Divider))
	reply.Uint(uint32(cfg.Prescaler))
	reply.Uint(uint32(cfg.Period.Entire))
	reply.Uint(uint32(cfg.Period.Active))
	reply.Bool(cfg.Enabled)
	return nil
}

func (s *Server) pwmDuty(_ context.Context, args *protocol.Decoder, _ *protocol.Encoder) error {
	ch := core.Channel(args.Int())
	pct := args.Int()
	if err := args.Err(); err != nil {
		return malformed(err)
	}
	return s.ctrl.SetDutyPercent(ch, int(pct))
}

func (s *Server) pwmEnable(_ context.Context, args *protocol.Decoder, _ *protocol.Encoder) error {
	ch := core.Channel(args.Int())
	on := args.Bool()
	if err := args.Err(); err != nil {
		return malformed(err)
	}
	return s.ctrl.SetEnabled(ch, on)
}

func (s *Server) clockBypass(_ context.Context, args *protocol.Decoder, _ *protocol.Encoder) error {
	ch := core.Channel(args.Int())
	on := args.Bool()
	if err := args.Err(); err != nil {
		return malformed(err)
	}
	return s.ctrl.SetClockBypass(ch, on)
}

func (s *Server) captureApply(_ context.Context, args *protocol.Decoder, _ *protocol.Encoder) error {
	ch := core.Channel(args.Int())
	src, div, pre := args.Uint(), args.Uint(), args.Uint()
	rising, falling := args.Bool(), args.Bool()
	if err := args.Err(); err != nil {
		return malformed(err)
	}
	if err := byteArgs(src, div, pre); err != nil {
		return err
	}
	return s.ctrl.ApplyCaptureConfig(ch, core.CaptureChannelConfig{
		Clock:     clockArgs(src, div),
		Prescaler: uint8(pre),
		Rising:    rising,
		Falling:   falling,
	})
}

// captureContext bounds a capture by the request's timeout, or the server
// default when the request carries none.
func (s *Server) captureContext(ctx context.Context, timeoutMs uint32) (context.Context, context.CancelFunc) {
	d := s.captureTimeout
	if timeoutMs != 0 {
		d = time.Duration(timeoutMs) * time.Millisecond
	}
	return context.WithTimeout(ctx, d)
}

func (s *Server) captureRead(ctx context.Context, args *protocol.Decoder, reply *protocol.Encoder) error {
	ch := core.Channel(args.Int())
	timeoutMs := args.Uint()
	if err := args.Err(); err != nil {
		return malformed(err)
	}
	ctx, cancel := s.captureContext(ctx, timeoutMs)
	defer cancel()

	raw, err := s.ctrl.CaptureContext(ctx, ch)
	if err != nil {
		return err
	}
	reply.Uint(uint32(raw.OnCycles))
	reply.Uint(uint32(raw.OffCycles))
	return nil
}

func (s *Server) captureTime(ctx context.Context, args *protocol.Decoder, reply *protocol.Encoder) error {
	ch := core.Channel(args.Int())
	timeoutMs := args.Uint()
	if err := args.Err(); err != nil {
		return malformed(err)
	}
	ctx, cancel := s.captureContext(ctx, timeoutMs)
	defer cancel()

	res, err := s.ctrl.CaptureTime(ctx, ch)
	if err != nil {
		return err
	}
	reply.Uint64(res.OnNs)
	reply.Uint64(res.OffNs)
	return nil
}

func (s *Server) pwmFreq(_ context.Context, args *protocol.Decoder, reply *protocol.Encoder) error {
	ch := core.Channel(args.Int())
	if err := args.Err(); err != nil {
		return malformed(err)
	}
	hz, err := s.ctrl.OutputFrequencyHz(ch)
	if err != nil {
		return err
	}
	reply.Uint64(hz)
	return nil
}

func (s *Server) captureMax(_ context.Context, args *protocol.Decoder, reply *protocol.Encoder) error {
	ch := core.Channel(args.Int())
	if err := args.Err(); err != nil {
		return malformed(err)
	}
	ns, err := s.ctrl.MaxCaptureDurationNs(ch)
	if err != nil {
		return err
	}
	reply.Uint64(ns)
	return nil
}
