package core

// CommutationController owns the commutation step and motor mode.
//
// In ModeStarting the step is advanced only by ForceStepAdvance, called
// from the startup sequencer. In ModeRunning it is advanced by
// OnZeroCrossing, called from the sensor's interrupt. The sensor is never
// armed while starting. Foreground methods mask interrupts while they
// change state, so they never interleave with OnZeroCrossing.
type CommutationController struct {
	driver PhaseDriver
	sensor ZeroCrossingSensor

	step    Step
	mode    MotorMode
	engaged bool // A pattern is asserted and events are accepted

	forced        uint32 // Timed advances since Engage
	zeroCrossings uint32 // Event-driven advances since Engage
	faults        uint32 // Driver/sensor errors seen by OnZeroCrossing
}

// Status is a consistent copy of the controller state
type Status struct {
	Step          Step
	Mode          MotorMode
	Engaged       bool
	ForcedSteps   uint32
	ZeroCrossings uint32
	Faults        uint32
}

// NewCommutationController creates a controller at step 0 in ModeStarting
func NewCommutationController(driver PhaseDriver, sensor ZeroCrossingSensor) *CommutationController {
	return &CommutationController{
		driver: driver,
		sensor: sensor,
		mode:   ModeStarting,
	}
}

// Engage resets to step 0 in ModeStarting and asserts that step's
// pattern. The sensor is disarmed first and stays disarmed.
func (c *CommutationController) Engage() error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	c.engaged = false
	if err := c.sensor.Disarm(); err != nil {
		return err
	}

	c.step = 0
	c.mode = ModeStarting
	c.forced = 0
	c.zeroCrossings = 0
	c.faults = 0

	if err := c.driver.SetPattern(EntryFor(c.step).Drive); err != nil {
		return err
	}
	c.engaged = true

	RecordTiming(EvtEngage, uint8(c.step), GetTime(), 0, 0)
	return nil
}

// ForceStepAdvance moves to the next step and asserts its pattern.
// The sensor is armed only in ModeRunning, where this acts as a manual
// override; while starting it stays disarmed.
func (c *CommutationController) ForceStepAdvance() error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	c.step = c.step.Next()
	c.forced++

	RecordTiming(EvtForceStep, uint8(c.step), GetTime(), uint32(c.mode), c.forced)
	return c.apply(EntryFor(c.step), c.mode == ModeRunning)
}

// OnZeroCrossing is the zero-crossing interrupt handler. It advances one
// step, asserts the new pattern and re-arms the sensor, in that order.
// Events outside ModeRunning are ignored. It must run with interrupts
// masked (see RunInterrupt on the host).
func (c *CommutationController) OnZeroCrossing() {
	if !c.engaged || c.mode != ModeRunning {
		return
	}

	c.step = c.step.Next()
	c.zeroCrossings++

	if err := c.apply(EntryFor(c.step), true); err != nil {
		c.faults++
		// No allocation here: this runs in interrupt context
		RecordTiming(EvtFault, uint8(c.step), GetTime(), c.zeroCrossings, c.faults)
		return
	}
	RecordTiming(EvtZeroCross, uint8(c.step), GetTime(), c.zeroCrossings, 0)
}

// TransitionToRunning switches to ModeRunning and arms the sensor for
// the current step. It is the only path that arms the sensor after Engage.
func (c *CommutationController) TransitionToRunning() error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	c.mode = ModeRunning

	RecordTiming(EvtTransition, uint8(c.step), GetTime(), c.forced, 0)
	return c.sensor.Arm(EntryFor(c.step).Sense)
}

// Halt disarms the sensor and releases the bridge. The bridge is
// released even when Disarm fails; the first error is returned.
func (c *CommutationController) Halt() error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	c.engaged = false
	errDisarm := c.sensor.Disarm()
	errRelease := c.driver.Release()

	RecordTiming(EvtHalt, uint8(c.step), GetTime(), c.forced, c.zeroCrossings)
	if errDisarm != nil {
		return errDisarm
	}
	return errRelease
}

// Snapshot returns the controller state. It masks interrupts so a
// concurrent OnZeroCrossing cannot tear the read.
func (c *CommutationController) Snapshot() Status {
	state := disableInterrupts()
	s := Status{
		Step:          c.step,
		Mode:          c.mode,
		Engaged:       c.engaged,
		ForcedSteps:   c.forced,
		ZeroCrossings: c.zeroCrossings,
		Faults:        c.faults,
	}
	restoreInterrupts(state)
	return s
}

// apply asserts the entry's pattern, then arms its sense configuration
func (c *CommutationController) apply(entry CommutationEntry, arm bool) error {
	if err := c.driver.SetPattern(entry.Drive); err != nil {
		return err
	}
	if !arm {
		return nil
	}
	return c.sensor.Arm(entry.Sense)
}
