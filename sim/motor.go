// Package sim models a BLDC motor behind a three-phase bridge so the
// commutation engine can run on the host.
//
// A Motor is both the core.PhaseDriver and the core.ZeroCrossingSensor.
// While the controller forces steps the rotor is assumed to follow them;
// once the sensor is armed the motor free-runs, its commutation rate
// relaxing towards a target set by the duty cycle, and it reports one zero
// crossing per arm after one step period.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"sixstep/config"
	"sixstep/core"
)

var (
	ErrSenseMismatch = errors.New("armed sense phase is not the floating phase")
	ErrNotAsserted   = errors.New("armed with no pattern asserted")
	ErrOutOfOrder    = errors.New("pattern does not follow the commutation order")
)

// Stopper cancels a pending delivery
type Stopper interface {
	Stop() bool
}

// Clock abstracts time so tests can drive the motor deterministically
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// WallClock is the real-time Clock
var WallClock Clock = wallClock{}

// Stats is a snapshot of what the motor has seen
type Stats struct {
	Commutations  uint64
	ZeroCrossings uint64
	Violations    uint64
	Rate          float64 // Commutations per second
	Duty          core.DutyCycle
	Pattern       core.DrivePattern
	Asserted      bool
	Armed         bool
}

// Motor is a simulated motor and bridge
type Motor struct {
	mu     sync.Mutex
	params config.SimConfig
	clock  Clock

	handler core.ZeroCrossingHandler

	duty     core.DutyCycle
	pattern  core.DrivePattern
	asserted bool

	armed       bool
	freeRunning bool // Armed at least once since the last Disarm
	sense       core.SenseConfig
	armGen      uint64
	pending     Stopper

	rate       float64 // Commutations per second
	lastUpdate time.Time
	lastStep   time.Time

	commutations  uint64
	zeroCrossings uint64
	violations    []error
}

// NewMotor creates a motor at rest. handler is called for every zero
// crossing, inside core.RunInterrupt.
func NewMotor(params config.SimConfig, clock Clock, handler core.ZeroCrossingHandler) *Motor {
	if clock == nil {
		clock = WallClock
	}
	return &Motor{
		params:  params,
		clock:   clock,
		handler: handler,
	}
}

// SetHandler replaces the zero-crossing handler
func (m *Motor) SetHandler(handler core.ZeroCrossingHandler) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

// SetPattern implements core.PhaseDriver. It records a violation when the
// pattern is invalid or skips a step of the commutation order. A jump to
// the step 0 pattern is an alignment and stops the rotor.
func (m *Motor) SetPattern(pattern core.DrivePattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !pattern.Valid() {
		m.violate(fmt.Errorf("%w: %s", core.ErrPatternInvalid, pattern))
		return core.ErrPatternInvalid
	}

	now := m.clock.Now()
	m.advance(now)

	switch {
	case !m.asserted || pattern == m.pattern:
	case m.follows(pattern):
		if !m.freeRunning {
			// Forced step: the rotor locks to the forced rate
			if dt := now.Sub(m.lastStep); dt > 0 {
				m.rate = float64(time.Second) / float64(dt)
			}
		}
	case pattern == core.EntryFor(0).Drive:
		m.rate = 0
	default:
		m.violate(fmt.Errorf("%w: %s after %s", ErrOutOfOrder, pattern, m.pattern))
	}

	m.pattern = pattern
	m.asserted = true
	m.lastStep = now
	m.commutations++
	return nil
}

// SetDuty implements core.PhaseDriver
func (m *Motor) SetDuty(duty core.DutyCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance(m.clock.Now())
	m.duty = duty
	return nil
}

// Release implements core.PhaseDriver. The rotor coasts down.
func (m *Motor) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.asserted = false
	m.freeRunning = false
	m.rate = 0
	return nil
}

// Arm implements core.ZeroCrossingSensor. The crossing arrives one step
// period after the last commutation, or never if the motor is stalled.
func (m *Motor) Arm(cfg core.SenseConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.asserted {
		m.violate(ErrNotAsserted)
		return ErrNotAsserted
	}
	if cfg.Phase != m.pattern.Floating() {
		m.violate(fmt.Errorf("%w: %s with %s asserted", ErrSenseMismatch, cfg, m.pattern))
		return ErrSenseMismatch
	}

	m.cancel()
	m.armed = true
	m.freeRunning = true
	m.sense = cfg
	m.armGen++

	now := m.clock.Now()
	m.advance(now)
	if m.rate < m.params.StallBelow {
		return nil
	}

	due := m.lastStep.Add(time.Duration(float64(time.Second) / m.rate))
	wait := due.Sub(now)
	if wait < 0 {
		wait = 0
	}
	gen := m.armGen
	m.pending = m.clock.AfterFunc(wait, func() { m.fire(gen) })
	return nil
}

// Disarm implements core.ZeroCrossingSensor
func (m *Motor) Disarm() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancel()
	m.armed = false
	m.freeRunning = false
	return nil
}

// fire delivers the crossing for arm generation gen. The motor lock is
// released before the handler runs, since the handler calls back in.
func (m *Motor) fire(gen uint64) {
	core.RunInterrupt(func() {
		m.mu.Lock()
		if !m.armed || m.armGen != gen {
			m.mu.Unlock()
			return
		}
		m.armed = false
		m.pending = nil
		m.zeroCrossings++
		handler := m.handler
		m.mu.Unlock()

		if handler != nil {
			handler()
		}
	})
}

// Stats returns a snapshot of the motor state
func (m *Motor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance(m.clock.Now())
	return Stats{
		Commutations:  m.commutations,
		ZeroCrossings: m.zeroCrossings,
		Violations:    uint64(len(m.violations)),
		Rate:          m.rate,
		Duty:          m.duty,
		Pattern:       m.pattern,
		Asserted:      m.asserted,
		Armed:         m.armed,
	}
}

// Violations returns every invariant violation seen so far
func (m *Motor) Violations() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.violations...)
}

// advance moves the free-running rate towards its duty target. Forced
// steps set the rate directly.
func (m *Motor) advance(now time.Time) {
	if !m.lastUpdate.IsZero() && m.freeRunning && m.asserted {
		dt := now.Sub(m.lastUpdate).Seconds()
		tau := float64(m.params.TimeConstantMS) / 1000
		target := float64(m.duty) * m.params.StepsPerSecPerDuty
		if tau <= 0 {
			m.rate = target
		} else if dt > 0 {
			m.rate = target + (m.rate-target)*math.Exp(-dt/tau)
		}
	}
	m.lastUpdate = now
}

// follows reports whether pattern is the successor of the current one
func (m *Motor) follows(pattern core.DrivePattern) bool {
	for step := core.Step(0); step < core.StepCount; step++ {
		if core.EntryFor(step).Drive == m.pattern {
			return core.EntryFor(step.Next()).Drive == pattern
		}
	}
	return false
}

func (m *Motor) cancel() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}

func (m *Motor) violate(err error) {
	m.violations = append(m.violations, err)
}
