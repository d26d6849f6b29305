package protocol

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Conn exchanges frames over a byte stream. A background goroutine scans
// incoming bytes; Recv hands out the frames in arrival order.
type Conn struct {
	rw io.ReadWriteCloser

	writeMu sync.Mutex
	wbuf    []byte

	frames chan Frame
	stop   chan struct{}
	done   chan struct{}
	err    error // why the read loop ended, valid once done is closed

	closeOnce sync.Once
	closeErr  error
}

// NewConn starts reading frames from rw.
func NewConn(rw io.ReadWriteCloser) *Conn {
	c := &Conn{
		rw:     rw,
		wbuf:   make([]byte, 0, FrameMax),
		frames: make(chan Frame, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send writes one frame.
func (c *Conn) Send(seq uint8, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg, err := AppendFrame(c.wbuf[:0], seq, payload)
	if err != nil {
		return err
	}
	n, err := c.rw.Write(msg)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

// Recv returns the next frame. Frames already received are still handed out
// after the stream ends; after that Recv fails with ErrClosed.
func (c *Conn) Recv(ctx context.Context) (Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	default:
	}

	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		select {
		case f := <-c.frames:
			return f, nil
		default:
		}
		return Frame{}, c.closedErr()
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Done is closed once the underlying stream has ended.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close stops the reader and closes the stream.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.closeErr = c.rw.Close()
		<-c.done
	})
	return c.closeErr
}

func (c *Conn) closedErr() error {
	if c.err == nil || c.err == io.EOF {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.err)
}

func (c *Conn) readLoop() {
	defer close(c.done)

	s := NewScanner(c.rw)
	for {
		f, err := s.Next()
		if err != nil {
			select {
			case <-c.stop:
			default:
				c.err = err
			}
			return
		}
		select {
		case c.frames <- f:
		case <-c.stop:
			return
		}
	}
}
