package protocol

import (
	"bytes"
	"fmt"
	"io"
)

// Frame is one decoded message block.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// AppendFrame appends the frame carrying payload under sequence seq to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	n := FrameMin + len(payload)
	if n > FrameMax {
		return dst, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLong, n, FrameMax)
	}
	start := len(dst)
	dst = append(dst, byte(n), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), SyncByte), nil
}

// Scanner splits a byte stream into frames. Bytes that do not form a valid
// frame are dropped up to the next sync byte.
type Scanner struct {
	r      io.Reader
	buf    []byte
	tmp    [256]byte
	synced bool

	// Dropped counts the bytes discarded while resynchronising.
	Dropped int
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: r, synced: true}
}

// Next returns the next valid frame. Read errors are returned as is; a
// frame cut short by io.EOF is reported as io.ErrUnexpectedEOF.
func (s *Scanner) Next() (Frame, error) {
	for {
		if f, ok := s.parse(); ok {
			return f, nil
		}
		n, err := s.r.Read(s.tmp[:])
		s.buf = append(s.buf, s.tmp[:n]...)
		if err != nil {
			if f, ok := s.parse(); ok {
				return f, nil
			}
			if err == io.EOF && len(s.buf) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}
	}
}

// parse extracts one frame from the buffered bytes if a complete one is
// available.
func (s *Scanner) parse() (Frame, bool) {
	for len(s.buf) > 0 {
		if !s.synced {
			i := bytes.IndexByte(s.buf, SyncByte)
			if i < 0 {
				s.discard(len(s.buf))
				return Frame{}, false
			}
			s.discard(i + 1)
			s.synced = true
			continue
		}
		if s.buf[0] == SyncByte {
			s.buf = s.buf[1:]
			continue
		}
		if len(s.buf) < FrameMin {
			return Frame{}, false
		}
		n := int(s.buf[0])
		if n < FrameMin || n > FrameMax {
			s.synced = false
			continue
		}
		if len(s.buf) < n {
			return Frame{}, false
		}
		crc := uint16(s.buf[n-3])<<8 | uint16(s.buf[n-2])
		if s.buf[n-1] != SyncByte || crc != CRC16(s.buf[:n-FrameTrailerSize]) {
			s.synced = false
			continue
		}

		f := Frame{
			Seq:     s.buf[1],
			Payload: append([]byte(nil), s.buf[FrameHeaderSize:n-FrameTrailerSize]...),
		}
		s.buf = s.buf[n:]
		return f, true
	}
	return Frame{}, false
}

func (s *Scanner) discard(n int) {
	s.Dropped += n
	s.buf = s.buf[n:]
}
