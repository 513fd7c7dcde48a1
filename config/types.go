package config

// StartupConfig is the open-loop ramp, in microseconds
type StartupConfig struct {
	InitialDelayUS uint32 `json:"initial_delay_us"`
	DecrementUS    uint32 `json:"decrement_us"`
	FloorUS        uint32 `json:"floor_us"`
}

// ThrottleConfig bounds the duty cycle and sets the button repeat rate
type ThrottleConfig struct {
	StartDuty uint16 `json:"start_duty"`
	MinDuty   uint16 `json:"min_duty"`
	MaxDuty   uint16 `json:"max_duty"`
	RepeatMS  uint32 `json:"repeat_ms"`
}

// PinConfig names the board pins, e.g. "gpio10"
type PinConfig struct {
	HighU string `json:"high_u"` // High-side gate, PWM
	HighV string `json:"high_v"`
	HighW string `json:"high_w"`
	LowU  string `json:"low_u"` // Low-side gate
	LowV  string `json:"low_v"`
	LowW  string `json:"low_w"`

	SenseU string `json:"sense_u"` // BEMF comparator output
	SenseV string `json:"sense_v"`
	SenseW string `json:"sense_w"`

	Accelerate string `json:"accelerate"` // Momentary button to ground
	Decelerate string `json:"decelerate"`
}

// SimConfig describes the simulated motor
type SimConfig struct {
	StepsPerSecPerDuty float64 `json:"steps_per_sec_per_duty"` // Steady-state commutation rate per duty unit
	TimeConstantMS     uint32  `json:"time_constant_ms"`       // Speed response to a duty change
	StallBelow         float64 `json:"stall_below"`            // Commutations/s below which no crossing is seen
}

// MotorConfig is the complete drive configuration
type MotorConfig struct {
	Name        string         `json:"name"`
	Startup     StartupConfig  `json:"startup"`
	Throttle    ThrottleConfig `json:"throttle"`
	PWMPeriodNS uint64         `json:"pwm_period_ns"`
	TelemetryMS uint32         `json:"telemetry_ms"`
	LowSide     string         `json:"low_side"` // "gpio" or "pio"
	Pins        PinConfig      `json:"pins"`
	Sim         SimConfig      `json:"sim"`
}
