package core

import "errors"

var ErrBridgeNotConfigured = errors.New("bridge pins not configured")

// LowSideDriver switches the three low-side gates together. Bit n of
// mask turns on the low-side switch of Phase(n).
type LowSideDriver interface {
	SetLowSide(mask uint8) error
}

// GPIOLowSide drives the low-side gates with three GPIO writes
type GPIOLowSide struct {
	gpio GPIODriver
	pins [PhaseCount]GPIOPin
}

// NewGPIOLowSide configures the pins as outputs, all off
func NewGPIOLowSide(gpio GPIODriver, pins [PhaseCount]GPIOPin) (*GPIOLowSide, error) {
	for _, pin := range pins {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, err
		}
	}
	return &GPIOLowSide{gpio: gpio, pins: pins}, nil
}

// SetLowSide clears the gates that turn off before setting the one that
// turns on
func (l *GPIOLowSide) SetLowSide(mask uint8) error {
	for phase, pin := range l.pins {
		if mask&(1<<phase) == 0 {
			if err := l.gpio.SetPin(pin, false); err != nil {
				return err
			}
		}
	}
	for phase, pin := range l.pins {
		if mask&(1<<phase) != 0 {
			if err := l.gpio.SetPin(pin, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// Bridge is a PhaseDriver for a three-phase half-bridge: PWM on the
// high-side gates, plain on/off on the low-side gates.
type Bridge struct {
	pwm  PWMDriver
	low  LowSideDriver
	high [PhaseCount]PWMPin

	duty     DutyCycle
	pattern  DrivePattern
	asserted bool
}

// NewBridge configures the high-side PWM pins and releases every gate
func NewBridge(pwm PWMDriver, high [PhaseCount]PWMPin, low LowSideDriver, periodNS uint64) (*Bridge, error) {
	if pwm == nil || low == nil {
		return nil, ErrBridgeNotConfigured
	}
	for _, pin := range high {
		if err := pwm.ConfigureHardwarePWM(pin, periodNS); err != nil {
			return nil, err
		}
	}
	b := &Bridge{pwm: pwm, low: low, high: high}
	if err := b.Release(); err != nil {
		return nil, err
	}
	return b, nil
}

// SetPattern opens every switch the new pattern does not use before
// closing the two it does, so no leg ever conducts high and low together
func (b *Bridge) SetPattern(pattern DrivePattern) error {
	if !pattern.Valid() {
		return ErrPatternInvalid
	}

	if err := b.low.SetLowSide(0); err != nil {
		return err
	}
	for phase, pin := range b.high {
		if Phase(phase) != pattern.High {
			if err := b.pwm.SetDutyCycle(pin, 0); err != nil {
				return err
			}
		}
	}

	if err := b.pwm.SetDutyCycle(b.high[pattern.High], b.compare()); err != nil {
		return err
	}
	if err := b.low.SetLowSide(1 << pattern.Low); err != nil {
		return err
	}

	b.pattern = pattern
	b.asserted = true
	return nil
}

// SetDuty stores the duty and applies it to the active high-side gate
func (b *Bridge) SetDuty(duty DutyCycle) error {
	b.duty = duty
	if !b.asserted {
		return nil
	}
	return b.pwm.SetDutyCycle(b.high[b.pattern.High], b.compare())
}

// Release turns off all six switches
func (b *Bridge) Release() error {
	b.asserted = false
	if err := b.low.SetLowSide(0); err != nil {
		return err
	}
	for _, pin := range b.high {
		if err := b.pwm.SetDutyCycle(pin, 0); err != nil {
			return err
		}
	}
	return nil
}

// Pattern returns the asserted pattern; ok is false while released
func (b *Bridge) Pattern() (pattern DrivePattern, ok bool) {
	return b.pattern, b.asserted
}

func (b *Bridge) compare() PWMValue {
	max := b.pwm.GetMaxValue()
	if uint32(b.duty) > max {
		return PWMValue(max)
	}
	return PWMValue(b.duty)
}
