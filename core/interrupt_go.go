//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// interruptLock stands in for the global interrupt mask on regular Go.
// Simulated interrupt handlers run under it (see RunInterrupt), so a
// critical section excludes them the same way masking does on the MCU.
var interruptLock sync.Mutex

// disableInterrupts enters the critical section
func disableInterrupts() State {
	interruptLock.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	interruptLock.Unlock()
}

// RunInterrupt runs handler as if it were an interrupt service routine.
// Simulated peripherals use it to deliver events from their goroutines.
func RunInterrupt(handler func()) {
	interruptLock.Lock()
	defer interruptLock.Unlock()
	handler()
}
