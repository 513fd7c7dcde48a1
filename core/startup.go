package core

// StartupConfig describes the open-loop ramp. All values are in
// microseconds and are motor-specific.
type StartupConfig struct {
	InitialDelayUS uint32 // Delay before the first forced advance
	DecrementUS    uint32 // Amount the delay shrinks after each advance
	FloorUS        uint32 // Ramp ends once the delay reaches this value
}

// NextDelay returns the delay that follows current. done is true once the
// returned delay is at or below the floor; the ramp then ends. A zero
// decrement can never reach the floor, so it ends the ramp immediately.
func NextDelay(cfg StartupConfig, current uint32) (next uint32, done bool) {
	if cfg.DecrementUS == 0 {
		return current, true
	}
	if current <= cfg.DecrementUS {
		return 0, true
	}
	next = current - cfg.DecrementUS
	return next, next <= cfg.FloorUS
}

// StartupAdvances returns how many forced advances a ramp performs
func StartupAdvances(cfg StartupConfig) uint32 {
	if cfg.InitialDelayUS <= cfg.FloorUS || cfg.DecrementUS == 0 {
		return 0
	}
	span := cfg.InitialDelayUS - cfg.FloorUS
	return (span + cfg.DecrementUS - 1) / cfg.DecrementUS
}

// StartupSequencer forces timed step advances with a shrinking delay
// until the floor is reached, then hands the controller over to the
// zero-crossing sensor. It runs from the timer scheduler and never looks
// at the BEMF signal.
type StartupSequencer struct {
	cfg   StartupConfig
	ctrl  *CommutationController
	timer Timer

	delay    uint32 // Delay waited before the next advance (us)
	advances uint32
	running  bool
	done     bool
	err      error // First error from the controller, ends the ramp
}

// NewStartupSequencer creates a sequencer for ctrl
func NewStartupSequencer(cfg StartupConfig, ctrl *CommutationController) *StartupSequencer {
	return &StartupSequencer{
		cfg:  cfg,
		ctrl: ctrl,
	}
}

// Start engages the controller and schedules the first advance one
// initial delay after now. A ramp whose initial delay is already at the
// floor goes straight to running.
func (s *StartupSequencer) Start(now uint32) error {
	s.Stop()

	s.delay = s.cfg.InitialDelayUS
	s.advances = 0
	s.done = false
	s.err = nil

	if err := s.ctrl.Engage(); err != nil {
		s.err = err
		s.done = true
		return err
	}

	if s.delay <= s.cfg.FloorUS || s.cfg.DecrementUS == 0 {
		s.finish()
		return s.err
	}

	s.timer.Handler = s.tick
	s.timer.WakeTime = now + TimerFromUS(s.delay)
	s.running = true
	ScheduleTimer(&s.timer)
	return nil
}

// Stop cancels a ramp in progress without touching the controller
func (s *StartupSequencer) Stop() {
	if s.running {
		DeleteTimer(&s.timer)
		s.running = false
	}
}

// Done reports whether the ramp has ended
func (s *StartupSequencer) Done() bool {
	return s.done
}

// Err returns the error that ended the ramp, if any
func (s *StartupSequencer) Err() error {
	return s.err
}

// Advances returns the number of forced advances so far
func (s *StartupSequencer) Advances() uint32 {
	return s.advances
}

// Delay returns the current ramp delay in microseconds
func (s *StartupSequencer) Delay() uint32 {
	return s.delay
}

// tick is the timer handler for one ramp step
func (s *StartupSequencer) tick(t *Timer) uint8 {
	if err := s.ctrl.ForceStepAdvance(); err != nil {
		s.err = err
		s.done = true
		s.running = false
		return SF_DONE
	}
	s.advances++

	next, done := NextDelay(s.cfg, s.delay)
	s.delay = next
	if done {
		s.running = false
		s.finish()
		return SF_DONE
	}

	t.WakeTime += TimerFromUS(next)
	return SF_RESCHEDULE
}

func (s *StartupSequencer) finish() {
	s.done = true
	if err := s.ctrl.TransitionToRunning(); err != nil {
		s.err = err
	}
}
