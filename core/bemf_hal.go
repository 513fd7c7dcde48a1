package core

// ZeroCrossingSensor is the abstract BEMF comparator interface.
//
// After Arm the sensor delivers at most one event, by calling the
// ZeroCrossingHandler it was built with from interrupt context, and then
// stays silent until it is armed again.
type ZeroCrossingSensor interface {
	// Arm selects the floating phase and edge polarity and enables delivery
	Arm(cfg SenseConfig) error

	// Disarm disables delivery
	Disarm() error
}

// ZeroCrossingHandler is called from interrupt context on a crossing
type ZeroCrossingHandler func()

// Global singleton used by target code.
var zeroCrossingSensor ZeroCrossingSensor

// SetZeroCrossingSensor is called by target-specific code to register its sensor.
func SetZeroCrossingSensor(s ZeroCrossingSensor) {
	zeroCrossingSensor = s
}

// MustZeroCrossingSensor returns the configured sensor or panics if missing.
func MustZeroCrossingSensor() ZeroCrossingSensor {
	if zeroCrossingSensor == nil {
		panic("zero-crossing sensor not configured")
	}
	return zeroCrossingSensor
}
