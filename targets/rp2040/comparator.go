//go:build rp2040

package main

import (
	"machine"

	"sixstep/core"
)

// ComparatorSensor implements core.ZeroCrossingSensor with one external
// comparator per phase, each comparing the phase voltage against the
// virtual neutral. Only the armed phase has its pin interrupt enabled.
type ComparatorSensor struct {
	pins    [core.PhaseCount]machine.Pin
	handler core.ZeroCrossingHandler

	active machine.Pin
	armed  bool
}

// NewComparatorSensor configures the comparator outputs as inputs
func NewComparatorSensor(pins [core.PhaseCount]core.GPIOPin, handler core.ZeroCrossingHandler) *ComparatorSensor {
	s := &ComparatorSensor{handler: handler, active: machine.NoPin}
	for phase, pin := range pins {
		s.pins[phase] = machine.Pin(pin)
		s.pins[phase].Configure(machine.PinConfig{Mode: machine.PinInput})
	}
	return s
}

// Arm enables the interrupt for the floating phase on the configured edge
func (s *ComparatorSensor) Arm(cfg core.SenseConfig) error {
	if cfg.Phase >= core.PhaseCount {
		return core.ErrSenseNotFloating
	}
	s.disable()

	change := machine.PinRising
	if cfg.Edge == core.EdgeFalling {
		change = machine.PinFalling
	}

	pin := s.pins[cfg.Phase]
	s.active = pin
	s.armed = true
	return pin.SetInterrupt(change, s.onEdge)
}

// Disarm disables delivery
func (s *ComparatorSensor) Disarm() error {
	s.disable()
	return nil
}

// onEdge runs in interrupt context and delivers at most one event per arm
func (s *ComparatorSensor) onEdge(pin machine.Pin) {
	if !s.armed || pin != s.active {
		return
	}
	s.armed = false
	if s.handler != nil {
		s.handler()
	}
}

func (s *ComparatorSensor) disable() {
	s.armed = false
	if s.active != machine.NoPin {
		s.active.SetInterrupt(0, nil)
		s.active = machine.NoPin
	}
}
