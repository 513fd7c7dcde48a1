package core

// utoa formats n in decimal. Log lines on the MCU are built with utoa and
// itoa; fmt is not linked into the firmware.
func utoa(n uint32) string {
	var buf [10]byte // 4294967295
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return string(buf[pos:])
}

// itoa formats a signed n in decimal
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}
