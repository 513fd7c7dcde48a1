package core

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a commutation event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Step      uint8  // Commutation step after the event
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtEngage     = 1 // Initial pattern asserted
	EvtForceStep  = 2 // Timed advance (v1=mode, v2=forced count)
	EvtZeroCross  = 3 // Zero-crossing advance (v1=crossing count)
	EvtTransition = 4 // Startup finished (v1=forced count, v2=last delay)
	EvtDuty       = 5 // Duty changed (v1=duty)
	EvtFault      = 6 // Driver or sensor error inside the handler
	EvtHalt       = 7 // Bridge released
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool = false

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint32 // Total events recorded; slot is head % size
	timingEnabled  bool   = true
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// SetTimingEnabled turns the timing ring on or off
func SetTimingEnabled(enabled bool) {
	timingEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTiming captures a timing event in the ring buffer.
// Callable from both the main loop and interrupt context.
func RecordTiming(eventType, step uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := (atomic.AddUint32(&timingRingHead, 1) - 1) % TimingRingSize
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Step:      step,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
}

// TimingEvents returns the recorded events, oldest first
func TimingEvents() []TimingEvent {
	head := atomic.LoadUint32(&timingRingHead)
	count := head
	if count > TimingRingSize {
		count = TimingRingSize
	}
	events := make([]TimingEvent, 0, count)
	for i := head - count; i != head; i++ {
		events = append(events, timingRing[i%TimingRingSize])
	}
	return events
}

func eventName(eventType uint8) string {
	switch eventType {
	case EvtEngage:
		return "ENGAGE"
	case EvtForceStep:
		return "FORCE_STEP"
	case EvtZeroCross:
		return "ZERO_CROSS"
	case EvtTransition:
		return "RUNNING"
	case EvtDuty:
		return "DUTY"
	case EvtFault:
		return "FAULT!"
	case EvtHalt:
		return "HALT"
	default:
		return "UNKNOWN"
	}
}

// DumpTimingRing outputs the timing ring buffer (call on halt or fault)
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + eventName(evt.EventType) +
			" step=" + itoa(int(evt.Step)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	atomic.StoreUint32(&timingRingHead, 0)
}
