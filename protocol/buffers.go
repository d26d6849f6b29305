package protocol

import "fmt"

// Encoder builds a frame payload.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder whose payload starts with id.
func NewEncoder(id uint32) *Encoder {
	e := &Encoder{buf: make([]byte, 0, PayloadMax)}
	e.Uint(id)
	return e
}

func (e *Encoder) Int(v int32)   { e.buf = AppendVLQ(e.buf, v) }
func (e *Encoder) Uint(v uint32) { e.buf = AppendUVLQ(e.buf, v) }

// Uint64 writes v as two values, high word first.
func (e *Encoder) Uint64(v uint64) {
	e.Uint(uint32(v >> 32))
	e.Uint(uint32(v))
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint(1)
	} else {
		e.Uint(0)
	}
}

// Bytes writes a length-prefixed byte string.
func (e *Encoder) Bytes(b []byte) {
	e.Uint(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// Payload returns the encoded payload. It fails with ErrFrameTooLong when the
// payload does not fit in one frame.
func (e *Encoder) Payload() ([]byte, error) {
	if len(e.buf) > PayloadMax {
		return nil, fmt.Errorf("%w: payload of %d bytes (max %d)", ErrFrameTooLong, len(e.buf), PayloadMax)
	}
	return e.buf, nil
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

// Decoder reads values from a payload. The first error sticks: later reads
// return zero values and Err reports it.
type Decoder struct {
	data []byte
	err  error
}

// NewDecoder returns a Decoder over payload.
func NewDecoder(payload []byte) *Decoder {
	return &Decoder{data: payload}
}

func (d *Decoder) Int() int32 {
	if d.err != nil {
		return 0
	}
	v, n, err := ConsumeVLQ(d.data)
	if err != nil {
		d.err = err
		return 0
	}
	d.data = d.data[n:]
	return v
}

func (d *Decoder) Uint() uint32 {
	return uint32(d.Int())
}

// Uint64 reads a value written by Encoder.Uint64.
func (d *Decoder) Uint64() uint64 {
	hi := d.Uint()
	lo := d.Uint()
	return uint64(hi)<<32 | uint64(lo)
}

func (d *Decoder) Bool() bool {
	return d.Uint() != 0
}

// Bytes reads a length-prefixed byte string. The result aliases the payload.
func (d *Decoder) Bytes() []byte {
	n := d.Uint()
	if d.err != nil {
		return nil
	}
	if uint32(len(d.data)) < n {
		d.err = fmt.Errorf("%w: string of %d bytes, %d left", ErrBufferTooSmall, n, len(d.data))
		return nil
	}
	b := d.data[:n]
	d.data = d.data[n:]
	return b
}

// Len returns the number of unread bytes.
func (d *Decoder) Len() int { return len(d.data) }

// Err returns the first decoding error.
func (d *Decoder) Err() error { return d.err }
