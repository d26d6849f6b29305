package protocol

// CRC16 is the CCITT checksum of the frame trailer: reflected, seeded with
// 0xFFFF and without a final xor (CRC-16/MCRF4XX).
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		x := b ^ byte(crc)
		x ^= x << 4
		w := uint16(x)
		crc = (w<<8 | crc>>8) ^ w>>4 ^ w<<3
	}
	return crc
}
