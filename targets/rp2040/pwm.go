//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/servo"

	"sixstep/config"
	"sixstep/core"
)

// RP2040PWMDriver implements the PWMDriver interface for RP2040
// The high-side gates use 3 of the 8 hardware PWM slices, 2 channels each.
// Slices are held as servo.PWM, which TinyGo's unexported *pwmGroup satisfies.
type RP2040PWMDriver struct {
	// Key: slice number (0-7), Value: configured period in nanoseconds
	slices map[uint8]uint64

	// Key: pin number, Value: PWM channel
	channels map[uint32]uint8

	// Key: slice number (0-7), Value: PWM peripheral
	peripherals map[uint8]servo.PWM
}

// NewRP2040PWMDriver creates a new RP2040 PWM driver
func NewRP2040PWMDriver() *RP2040PWMDriver {
	return &RP2040PWMDriver{
		slices:      make(map[uint8]uint64),
		channels:    make(map[uint32]uint8),
		peripherals: make(map[uint8]servo.PWM),
	}
}

// GetMaxValue returns the maximum compare value, the throttle's duty ceiling
func (d *RP2040PWMDriver) GetMaxValue() uint32 {
	return config.MaxDuty
}

// ConfigureHardwarePWM configures a pin for hardware PWM output
func (d *RP2040PWMDriver) ConfigureHardwarePWM(pin core.PWMPin, periodNS uint64) error {
	pinNum := uint32(pin)

	// GPIO pin N maps to slice (N >> 1) & 0x7, channel N & 1 (even=A, odd=B)
	sliceNum := uint8((pinNum >> 1) & 0x7)

	pwm, exists := d.peripherals[sliceNum]
	if !exists {
		pwm = d.getPWMPeripheral(sliceNum)
		d.peripherals[sliceNum] = pwm
	}

	// Both channels of a slice share the period; only configure it once
	if existing, configured := d.slices[sliceNum]; !configured || existing != periodNS {
		if err := pwm.Configure(machine.PWMConfig{Period: periodNS}); err != nil {
			return err
		}
		d.slices[sliceNum] = periodNS
	}

	channel, err := pwm.Channel(machine.Pin(pinNum))
	if err != nil {
		return err
	}
	pwm.Set(channel, 0)

	d.channels[pinNum] = channel
	return nil
}

// SetDutyCycle sets the PWM compare value for a pin
// value: 0 (fully off) to GetMaxValue() (fully on)
func (d *RP2040PWMDriver) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	pinNum := uint32(pin)

	channel, exists := d.channels[pinNum]
	if !exists {
		return core.ErrBridgeNotConfigured
	}
	pwm := d.peripherals[uint8((pinNum>>1)&0x7)]

	if uint32(value) > config.MaxDuty {
		value = config.MaxDuty
	}

	// Scale 0-MaxDuty to 0-Top()
	pwm.Set(channel, (uint32(value)*pwm.Top())/config.MaxDuty)
	return nil
}

// DisablePWM forces the pin low and stops tracking it
func (d *RP2040PWMDriver) DisablePWM(pin core.PWMPin) error {
	pinNum := uint32(pin)
	channel, exists := d.channels[pinNum]
	if !exists {
		return nil
	}

	// TinyGo has no way to release a PWM pin; a zero compare holds it low
	d.peripherals[uint8((pinNum>>1)&0x7)].Set(channel, 0)
	delete(d.channels, pinNum)
	return nil
}

// getPWMPeripheral returns the PWM peripheral for a given slice number
func (d *RP2040PWMDriver) getPWMPeripheral(sliceNum uint8) servo.PWM {
	switch sliceNum {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	case 7:
		return machine.PWM7
	default:
		// Should never happen with proper masking
		return machine.PWM0
	}
}
