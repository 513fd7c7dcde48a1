package core

// PWMPin identifies a hardware pin capable of PWM output
type PWMPin uint32

// PWMValue is the compare value (0 to GetMaxValue)
type PWMValue uint32

// PWMDriver is the abstract PWM interface used for the high-side gates.
// Platform-specific implementations handle actual hardware control.
type PWMDriver interface {
	// ConfigureHardwarePWM configures a pin for PWM output with the given
	// period. Pins sharing a hardware slice must use the same period.
	ConfigureHardwarePWM(pin PWMPin, periodNS uint64) error

	// SetDutyCycle sets the compare value for a pin
	// value: 0 (fully off) to GetMaxValue() (fully on)
	SetDutyCycle(pin PWMPin, value PWMValue) error

	// GetMaxValue returns the maximum compare value (255, as DutyCycle)
	GetMaxValue() uint32

	// DisablePWM forces the pin low
	DisablePWM(pin PWMPin) error
}

// Global singleton used by target code.
var pwmDriver PWMDriver

// SetPWMDriver is called by target-specific code to register its driver.
func SetPWMDriver(d PWMDriver) {
	pwmDriver = d
}

// MustPWM returns the configured driver or panics if missing.
func MustPWM() PWMDriver {
	if pwmDriver == nil {
		panic("PWM driver not configured")
	}
	return pwmDriver
}
