package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"sunpwm/core"
	"sunpwm/protocol"
)

// DefaultTimeout bounds one request/reply exchange.
const DefaultTimeout = 2 * time.Second

// Client drives a remote Server. Its methods mirror core.Controller.
type Client struct {
	conn    *protocol.Conn
	timeout time.Duration

	mu  sync.Mutex
	seq uint8

	// dictMu is held across the whole identify exchange
	dictMu sync.Mutex
	dict   *Dictionary
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the reply timeout of each request. Captures wait for
// their own timeout on top of it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Dial starts a client on an open link.
func Dial(port io.ReadWriteCloser, opts ...ClientOption) *Client {
	c := &Client{
		conn:    protocol.NewConn(port),
		timeout: DefaultTimeout,
		seq:     protocol.SeqDest,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the link.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call sends one request and waits for the reply carrying the same sequence
// number. Replies to abandoned requests are skipped.
func (c *Client) call(ctx context.Context, id uint32, args func(e *protocol.Encoder)) (*protocol.Decoder, error) {
	e := protocol.NewEncoder(id)
	if args != nil {
		args(e)
	}
	payload, err := e.Payload()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.seq
	c.seq = protocol.NextSeq(seq)
	if err := c.conn.Send(seq, payload); err != nil {
		return nil, err
	}

	for {
		f, err := c.conn.Recv(ctx)
		if err != nil {
			return nil, err
		}
		if f.Seq != seq {
			continue
		}
		d := protocol.NewDecoder(f.Payload)
		status := d.Uint()
		if err := d.Err(); err != nil {
			return nil, malformed(err)
		}
		if err := errorOf(status); err != nil {
			return nil, err
		}
		return d, nil
	}
}

// do is call bounded by the client timeout.
func (c *Client) do(id uint32, args func(e *protocol.Encoder)) (*protocol.Decoder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.call(ctx, id, args)
}

// results checks that a reply decoded cleanly.
func results(d *protocol.Decoder) error {
	if err := d.Err(); err != nil {
		return malformed(err)
	}
	return nil
}

// Dictionary fetches the board dictionary once and caches it.
func (c *Client) Dictionary(ctx context.Context) (*Dictionary, error) {
	c.dictMu.Lock()
	defer c.dictMu.Unlock()
	if c.dict != nil {
		return c.dict, nil
	}

	var blob bytes.Buffer
	for {
		offset := uint32(blob.Len())
		d, err := c.call(ctx, cmdIdentify, func(e *protocol.Encoder) {
			e.Uint(offset)
			e.Uint(identifyChunk)
		})
		if err != nil {
			return nil, fmt.Errorf("identify at %d: %w", offset, err)
		}
		got := d.Uint()
		chunk := d.Bytes()
		if err := results(d); err != nil {
			return nil, err
		}
		if got != offset {
			return nil, fmt.Errorf("%w: identify offset %d, expected %d", ErrMalformed, got, offset)
		}
		blob.Write(chunk)
		if len(chunk) < identifyChunk {
			break
		}
	}

	dict, err := decodeDictionary(blob.Bytes())
	if err != nil {
		return nil, err
	}
	c.dict = dict
	return dict, nil
}

func (c *Client) ApplyPwmConfig(ch core.Channel, cfg core.PwmChannelConfig) error {
	_, err := c.do(cmdPwmApply, func(e *protocol.Encoder) {
		e.Int(int32(ch))
		e.Uint(uint32(cfg.Clock.Source))
		e.Uint(uint32(cfg.Clock.Divider))
		e.Uint(uint32(cfg.Prescaler))
		e.Uint(uint32(cfg.Period.Entire))
		e.Uint(uint32(cfg.Period.Active))
		e.Uint(uint32(cfg.Polarity))
		e.Bool(cfg.Enabled)
	})
	return err
}

func (c *Client) ReadPwmConfig(ch core.Channel) (core.PwmChannelConfig, error) {
	d, err := c.do(cmdPwmRead, func(e *protocol.Encoder) {
		e.Int(int32(ch))
	})
	if err != nil {
		return core.PwmChannelConfig{}, err
	}
	cfg := core.PwmChannelConfig{
		Clock: core.ClockConfig{
			Source:  core.ClockSource(d.Uint()),
			Divider: core.ClockDivider(d.Uint()),
		},
		Prescaler: uint8(d.Uint()),
	}
	cfg.Period.Entire = uint16(d.Uint())
	cfg.Period.Active = uint16(d.Uint())
	cfg.Enabled = d.Bool()
	return cfg, results(d)
}

func (c *Client) SetDutyPercent(ch core.Channel, percent int) error {
	_, err := c.do(cmdPwmDuty, func(e *protocol.Encoder) {
		e.Int(int32(ch))
		e.Int(int32(percent))
	})
	return err
}

func (c *Client) SetEnabled(ch core.Channel, enabled bool) error {
	_, err := c.do(cmdPwmEnable, func(e *protocol.Encoder) {
		e.Int(int32(ch))
		e.Bool(enabled)
	})
	return err
}

func (c *Client) SetClockBypass(ch core.Channel, bypass bool) error {
	_, err := c.do(cmdClockBypass, func(e *protocol.Encoder) {
		e.Int(int32(ch))
		e.Bool(bypass)
	})
	return err
}

func (c *Client) ApplyCaptureConfig(ch core.Channel, cfg core.CaptureChannelConfig) error {
	_, err := c.do(cmdCaptureApply, func(e *protocol.Encoder) {
		e.Int(int32(ch))
		e.Uint(uint32(cfg.Clock.Source))
		e.Uint(uint32(cfg.Clock.Divider))
		e.Uint(uint32(cfg.Prescaler))
		e.Bool(cfg.Rising)
		e.Bool(cfg.Falling)
	})
	return err
}

// capture runs a capture request. The board stops waiting at ctx's deadline,
// or after DefaultCaptureTimeout when ctx has none.
func (c *Client) capture(ctx context.Context, id uint32, ch core.Channel) (*protocol.Decoder, error) {
	var timeoutMs uint32
	wait := DefaultCaptureTimeout
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
		timeoutMs = uint32(max(wait.Milliseconds(), 1))
	}

	ctx, cancel := context.WithTimeout(ctx, wait+c.timeout)
	defer cancel()
	return c.call(ctx, id, func(e *protocol.Encoder) {
		e.Int(int32(ch))
		e.Uint(timeoutMs)
	})
}

// CaptureContext captures one pulse on the board.
func (c *Client) CaptureContext(ctx context.Context, ch core.Channel) (core.CaptureRaw, error) {
	d, err := c.capture(ctx, cmdCaptureRead, ch)
	if err != nil {
		return core.CaptureRaw{}, err
	}
	raw := core.CaptureRaw{
		OnCycles:  uint16(d.Uint()),
		OffCycles: uint16(d.Uint()),
	}
	return raw, results(d)
}

// CaptureTime captures one pulse on the board and returns it in nanoseconds.
func (c *Client) CaptureTime(ctx context.Context, ch core.Channel) (core.CaptureResult, error) {
	d, err := c.capture(ctx, cmdCaptureTime, ch)
	if err != nil {
		return core.CaptureResult{}, err
	}
	res := core.CaptureResult{
		OnNs:  d.Uint64(),
		OffNs: d.Uint64(),
	}
	return res, results(d)
}

func (c *Client) OutputFrequencyHz(ch core.Channel) (uint64, error) {
	d, err := c.do(cmdPwmFreq, func(e *protocol.Encoder) {
		e.Int(int32(ch))
	})
	if err != nil {
		return 0, err
	}
	hz := d.Uint64()
	return hz, results(d)
}

func (c *Client) MaxCaptureDurationNs(ch core.Channel) (uint64, error) {
	d, err := c.do(cmdCaptureMax, func(e *protocol.Encoder) {
		e.Int(int32(ch))
	})
	if err != nil {
		return 0, err
	}
	ns := d.Uint64()
	return ns, results(d)
}
