package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sixstep/core"
)

// Low-side backends
const (
	LowSideGPIO = "gpio"
	LowSidePIO  = "pio"
)

// MaxDuty is the largest duty the 8-bit compare range accepts
const MaxDuty = 255

var (
	ErrInvalidDutyRange = errors.New("throttle duty range invalid")
	ErrInvalidStartup   = errors.New("startup ramp invalid")
	ErrInvalidLowSide   = errors.New("low_side must be \"gpio\" or \"pio\"")
	ErrInvalidPin       = errors.New("invalid pin name")
)

// LoadConfig parses a JSON configuration and fills in defaults
func LoadConfig(jsonData []byte) (*MotorConfig, error) {
	var config MotorConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults fills in missing configuration values. A zero field
// counts as missing.
func applyDefaults(config *MotorConfig) {
	def := Default()

	if config.Name == "" {
		config.Name = def.Name
	}

	if config.Startup.InitialDelayUS == 0 {
		config.Startup.InitialDelayUS = def.Startup.InitialDelayUS
	}
	if config.Startup.DecrementUS == 0 {
		config.Startup.DecrementUS = def.Startup.DecrementUS
	}
	if config.Startup.FloorUS == 0 {
		config.Startup.FloorUS = def.Startup.FloorUS
	}

	if config.Throttle.StartDuty == 0 {
		config.Throttle.StartDuty = def.Throttle.StartDuty
	}
	if config.Throttle.MinDuty == 0 {
		config.Throttle.MinDuty = def.Throttle.MinDuty
	}
	if config.Throttle.MaxDuty == 0 {
		config.Throttle.MaxDuty = def.Throttle.MaxDuty
	}
	if config.Throttle.RepeatMS == 0 {
		config.Throttle.RepeatMS = def.Throttle.RepeatMS
	}

	if config.PWMPeriodNS == 0 {
		config.PWMPeriodNS = def.PWMPeriodNS
	}
	if config.TelemetryMS == 0 {
		config.TelemetryMS = def.TelemetryMS
	}
	if config.LowSide == "" {
		config.LowSide = def.LowSide
	}

	pins := &config.Pins
	for _, p := range []struct {
		field *string
		value string
	}{
		{&pins.HighU, def.Pins.HighU},
		{&pins.HighV, def.Pins.HighV},
		{&pins.HighW, def.Pins.HighW},
		{&pins.LowU, def.Pins.LowU},
		{&pins.LowV, def.Pins.LowV},
		{&pins.LowW, def.Pins.LowW},
		{&pins.SenseU, def.Pins.SenseU},
		{&pins.SenseV, def.Pins.SenseV},
		{&pins.SenseW, def.Pins.SenseW},
		{&pins.Accelerate, def.Pins.Accelerate},
		{&pins.Decelerate, def.Pins.Decelerate},
	} {
		if *p.field == "" {
			*p.field = p.value
		}
	}

	if config.Sim.StepsPerSecPerDuty == 0 {
		config.Sim.StepsPerSecPerDuty = def.Sim.StepsPerSecPerDuty
	}
	if config.Sim.TimeConstantMS == 0 {
		config.Sim.TimeConstantMS = def.Sim.TimeConstantMS
	}
	if config.Sim.StallBelow == 0 {
		config.Sim.StallBelow = def.Sim.StallBelow
	}
}

// Default returns the configuration of the reference drive: a 5 ms ramp
// start shrinking by 20 us per step down to 100 us, duty 100 in [50, 255]
func Default() *MotorConfig {
	return &MotorConfig{
		Name: "sixstep",
		Startup: StartupConfig{
			InitialDelayUS: 5000,
			DecrementUS:    20,
			FloorUS:        100,
		},
		Throttle: ThrottleConfig{
			StartDuty: 100,
			MinDuty:   50,
			MaxDuty:   255,
			RepeatMS:  100,
		},
		PWMPeriodNS: 50000, // 20 kHz
		TelemetryMS: 100,
		LowSide:     LowSideGPIO,
		Pins: PinConfig{
			HighU:      "gpio10",
			HighV:      "gpio12",
			HighW:      "gpio14",
			LowU:       "gpio16",
			LowV:       "gpio17",
			LowW:       "gpio18",
			SenseU:     "gpio19",
			SenseV:     "gpio20",
			SenseW:     "gpio21",
			Accelerate: "gpio2",
			Decelerate: "gpio3",
		},
		Sim: SimConfig{
			StepsPerSecPerDuty: 40,
			TimeConstantMS:     200,
			StallBelow:         50,
		},
	}
}

// Validate checks ranges and pin names
func (c *MotorConfig) Validate() error {
	t := c.Throttle
	if t.MinDuty > t.MaxDuty || t.MaxDuty > MaxDuty {
		return fmt.Errorf("%w: min %d max %d (limit %d)", ErrInvalidDutyRange, t.MinDuty, t.MaxDuty, MaxDuty)
	}
	if t.StartDuty < t.MinDuty || t.StartDuty > t.MaxDuty {
		return fmt.Errorf("%w: start %d outside [%d, %d]", ErrInvalidDutyRange, t.StartDuty, t.MinDuty, t.MaxDuty)
	}

	s := c.Startup
	if s.InitialDelayUS == 0 || s.DecrementUS == 0 {
		return fmt.Errorf("%w: initial delay and decrement must be positive", ErrInvalidStartup)
	}

	if c.LowSide != LowSideGPIO && c.LowSide != LowSidePIO {
		return fmt.Errorf("%w: %q", ErrInvalidLowSide, c.LowSide)
	}

	pins, err := c.Pins.Parse()
	if err != nil {
		return err
	}
	if c.LowSide == LowSidePIO {
		// One PIO "out pins, 3" drives the low side, so the pins must be consecutive
		if pins.Low[1] != pins.Low[0]+1 || pins.Low[2] != pins.Low[0]+2 {
			return fmt.Errorf("%w: pio low side needs consecutive pins, got %v", ErrInvalidPin, pins.Low)
		}
	}
	return nil
}

// CoreStartup converts to the core ramp configuration
func (c *MotorConfig) CoreStartup() core.StartupConfig {
	return core.StartupConfig{
		InitialDelayUS: c.Startup.InitialDelayUS,
		DecrementUS:    c.Startup.DecrementUS,
		FloorUS:        c.Startup.FloorUS,
	}
}

// CoreThrottle converts to the core throttle configuration
func (c *MotorConfig) CoreThrottle() core.ThrottleConfig {
	return core.ThrottleConfig{
		StartDuty: core.DutyCycle(c.Throttle.StartDuty),
		MinDuty:   core.DutyCycle(c.Throttle.MinDuty),
		MaxDuty:   core.DutyCycle(c.Throttle.MaxDuty),
	}
}

// DriveConfig returns everything core.NewDrive needs
func (c *MotorConfig) DriveConfig() core.DriveConfig {
	return core.DriveConfig{
		Startup:     c.CoreStartup(),
		Throttle:    c.CoreThrottle(),
		RepeatTicks: core.TimerFromMS(c.Throttle.RepeatMS),
	}
}

// Pins holds the parsed pin numbers, indexed by phase
type Pins struct {
	High       [core.PhaseCount]core.PWMPin
	Low        [core.PhaseCount]core.GPIOPin
	Sense      [core.PhaseCount]core.GPIOPin
	Accelerate core.GPIOPin
	Decelerate core.GPIOPin
}

// Parse converts the pin names to numbers
func (p PinConfig) Parse() (Pins, error) {
	var pins Pins
	var err error

	names := [core.PhaseCount][3]string{
		{p.HighU, p.LowU, p.SenseU},
		{p.HighV, p.LowV, p.SenseV},
		{p.HighW, p.LowW, p.SenseW},
	}
	for phase, n := range names {
		var high, low, sense uint32
		if high, err = ParsePin(n[0]); err != nil {
			return Pins{}, err
		}
		if low, err = ParsePin(n[1]); err != nil {
			return Pins{}, err
		}
		if sense, err = ParsePin(n[2]); err != nil {
			return Pins{}, err
		}
		pins.High[phase] = core.PWMPin(high)
		pins.Low[phase] = core.GPIOPin(low)
		pins.Sense[phase] = core.GPIOPin(sense)
	}

	accel, err := ParsePin(p.Accelerate)
	if err != nil {
		return Pins{}, err
	}
	decel, err := ParsePin(p.Decelerate)
	if err != nil {
		return Pins{}, err
	}
	pins.Accelerate = core.GPIOPin(accel)
	pins.Decelerate = core.GPIOPin(decel)

	seen := make(map[uint32]bool)
	all := []uint32{accel, decel}
	for phase := 0; phase < core.PhaseCount; phase++ {
		all = append(all, uint32(pins.High[phase]), uint32(pins.Low[phase]), uint32(pins.Sense[phase]))
	}
	for _, pin := range all {
		if seen[pin] {
			return Pins{}, fmt.Errorf("%w: gpio%d used twice", ErrInvalidPin, pin)
		}
		seen[pin] = true
	}
	return pins, nil
}

// MaxPin is the highest GPIO number on the RP2040
const MaxPin = 29

// ParsePin converts a name like "gpio10" to its number
func ParsePin(name string) (uint32, error) {
	digits, ok := strings.CutPrefix(strings.ToLower(name), "gpio")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPin, name)
	}
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil || n > MaxPin {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPin, name)
	}
	return uint32(n), nil
}
