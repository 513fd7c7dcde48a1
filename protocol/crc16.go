package protocol

// CRC16 returns the check value appended to every link frame:
// CRC-16/MCRF4XX (reflected 0x1021, initial 0xFFFF, no final xor).
// EncodeFrame stores it high byte first.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		x := uint16(b^uint8(crc)) & 0xFF
		x ^= (x << 4) & 0xFF
		crc = (x<<8 | crc>>8) ^ (x >> 4) ^ (x << 3)
	}
	return crc
}
