package protocol

// vlqMaxLen is the longest encoding of a 32-bit value.
const vlqMaxLen = 5

// AppendVLQ appends the variable length encoding of v to dst.
//
// Seven bits are sent per byte, most significant group first, with the top
// bit marking continuation. Values in [-32, 96) fit in one byte; the sign is
// recovered from bits 5 and 6 of the leading byte.
func AppendVLQ(dst []byte, v int32) []byte {
	if v < -(1<<26) || v >= 3<<26 {
		dst = append(dst, byte(v>>28)&0x7F|0x80)
	}
	if v < -(1<<19) || v >= 3<<19 {
		dst = append(dst, byte(v>>21)&0x7F|0x80)
	}
	if v < -(1<<12) || v >= 3<<12 {
		dst = append(dst, byte(v>>14)&0x7F|0x80)
	}
	if v < -(1<<5) || v >= 3<<5 {
		dst = append(dst, byte(v>>7)&0x7F|0x80)
	}
	return append(dst, byte(v)&0x7F)
}

// AppendUVLQ appends v using the same encoding as AppendVLQ. Values at or
// above 2^31 round-trip through ConsumeUVLQ.
func AppendUVLQ(dst []byte, v uint32) []byte {
	return AppendVLQ(dst, int32(v))
}

// ConsumeVLQ decodes one value from the front of data and returns it with the
// number of bytes used.
func ConsumeVLQ(data []byte) (int32, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrBufferTooSmall
	}
	c := data[0]
	v := uint32(c & 0x7F)
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	n := 1
	for c&0x80 != 0 {
		if n == vlqMaxLen {
			return 0, 0, ErrInvalidVLQ
		}
		if n == len(data) {
			return 0, 0, ErrBufferTooSmall
		}
		c = data[n]
		n++
		v = v<<7 | uint32(c&0x7F)
	}
	return int32(v), n, nil
}

// ConsumeUVLQ is ConsumeVLQ for unsigned values.
func ConsumeUVLQ(data []byte) (uint32, int, error) {
	v, n, err := ConsumeVLQ(data)
	return uint32(v), n, err
}
