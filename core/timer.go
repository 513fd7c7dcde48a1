package core

import "sync/atomic"

// TimerFreq is the system tick rate. The RP2040 timer counts microseconds.
const (
	TimerFreq = 1000000 // 1MHz
)

// systemTicks is written by the main loop and read from any context
var systemTicks uint32

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return us * (TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return ticks / (TimerFreq / 1000000)
}

// TimerFromMS converts milliseconds to timer ticks
func TimerFromMS(ms uint32) uint32 {
	return TimerFromUS(ms * 1000)
}

// ProcessTimers runs every timer that is due at the current system time
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}

// timeBefore compares two tick values across a 32-bit wrap
func timeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
