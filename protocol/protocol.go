// Package protocol implements the framed serial wire format spoken between
// the board daemon and the host tools.
//
// A frame is laid out as
//
//	[len][seq][payload ...][crc hi][crc lo][0x7E]
//
// where len counts the whole frame and the CRC covers the header and the
// payload. Payloads are sequences of VLQ integers and length-prefixed byte
// strings, see Encoder and Decoder.
package protocol

import "errors"

// Version is the wire protocol revision reported in the dictionary.
const Version = "sunpwm-1"

const (
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FrameMin         = FrameHeaderSize + FrameTrailerSize
	FrameMax         = 64
	PayloadMax       = FrameMax - FrameMin

	SyncByte = 0x7E

	// Host sequence numbers cycle through SeqDest | 0..SeqMask.
	SeqDest = 0x10
	SeqMask = 0x0F
)

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small")
	ErrFrameTooLong   = errors.New("frame too long")
	ErrClosed         = errors.New("connection closed")
)

// NextSeq returns the sequence number following seq.
func NextSeq(seq uint8) uint8 {
	return (seq+1)&SeqMask | SeqDest
}
