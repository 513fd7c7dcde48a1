package core

// PhaseDriver is the abstract gate-driver interface that core code uses.
// Platform-specific implementations handle the six bridge switches.
type PhaseDriver interface {
	// SetPattern asserts exactly the high-side switch of pattern.High and
	// the low-side switch of pattern.Low, and de-asserts the other four
	SetPattern(pattern DrivePattern) error

	// SetDuty updates the PWM compare value used for the high-side switches
	SetDuty(duty DutyCycle) error

	// Release de-asserts all six switches
	Release() error
}

// DutySetter is the part of PhaseDriver the throttle needs
type DutySetter interface {
	SetDuty(duty DutyCycle) error
}

// Global singleton used by target code.
var phaseDriver PhaseDriver

// SetPhaseDriver is called by target-specific code to register its driver.
func SetPhaseDriver(d PhaseDriver) {
	phaseDriver = d
}

// MustPhaseDriver returns the configured driver or panics if missing.
func MustPhaseDriver() PhaseDriver {
	if phaseDriver == nil {
		panic("phase driver not configured")
	}
	return phaseDriver
}
