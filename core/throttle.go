package core

// ThrottleConfig bounds the PWM duty cycle
type ThrottleConfig struct {
	StartDuty DutyCycle // Duty applied when the throttle is created
	MinDuty   DutyCycle
	MaxDuty   DutyCycle
}

// ThrottleController maps increase/decrease requests to a clamped duty
// cycle and forwards every change to the PWM output. It is only used
// from the main loop.
type ThrottleController struct {
	cfg  ThrottleConfig
	duty DutyCycle
	pwm  DutySetter
}

// NewThrottleController clamps the start duty into range and pushes it
func NewThrottleController(cfg ThrottleConfig, pwm DutySetter) (*ThrottleController, error) {
	if cfg.MaxDuty < cfg.MinDuty {
		cfg.MinDuty, cfg.MaxDuty = cfg.MaxDuty, cfg.MinDuty
	}
	t := &ThrottleController{
		cfg: cfg,
		pwm: pwm,
	}
	if err := t.push(t.clamp(cfg.StartDuty)); err != nil {
		return nil, err
	}
	return t, nil
}

// Duty returns the current duty cycle
func (t *ThrottleController) Duty() DutyCycle {
	return t.duty
}

// Increase raises the duty by one; a no-op at MaxDuty
func (t *ThrottleController) Increase() error {
	if t.duty >= t.cfg.MaxDuty {
		return nil
	}
	return t.push(t.duty + 1)
}

// Decrease lowers the duty by one; a no-op at MinDuty
func (t *ThrottleController) Decrease() error {
	if t.duty <= t.cfg.MinDuty {
		return nil
	}
	return t.push(t.duty - 1)
}

// Set moves the duty to value, clamped into range
func (t *ThrottleController) Set(value DutyCycle) error {
	value = t.clamp(value)
	if value == t.duty {
		return nil
	}
	return t.push(value)
}

func (t *ThrottleController) clamp(value DutyCycle) DutyCycle {
	if value < t.cfg.MinDuty {
		return t.cfg.MinDuty
	}
	if value > t.cfg.MaxDuty {
		return t.cfg.MaxDuty
	}
	return value
}

func (t *ThrottleController) push(value DutyCycle) error {
	if err := t.pwm.SetDuty(value); err != nil {
		return err
	}
	t.duty = value
	RecordTiming(EvtDuty, 0, GetTime(), uint32(value), 0)
	return nil
}

// ThrottlePoller turns two level inputs into throttle steps. After a
// change it ignores the inputs for the repeat interval, so holding a
// button ramps the duty at a fixed rate.
type ThrottlePoller struct {
	throttle    *ThrottleController
	repeatTicks uint32
	holdUntil   uint32
	holding     bool
}

// NewThrottlePoller creates a poller with a repeat interval in timer ticks
func NewThrottlePoller(throttle *ThrottleController, repeatTicks uint32) *ThrottlePoller {
	return &ThrottlePoller{
		throttle:    throttle,
		repeatTicks: repeatTicks,
	}
}

// Poll samples the accelerate and decelerate inputs at time now
func (p *ThrottlePoller) Poll(now uint32, accelerate, decelerate bool) error {
	if p.holding && timeBefore(now, p.holdUntil) {
		return nil
	}
	p.holding = false

	changed := false
	if accelerate && p.throttle.Duty() < p.throttle.cfg.MaxDuty {
		if err := p.throttle.Increase(); err != nil {
			return err
		}
		changed = true
	}
	if decelerate && p.throttle.Duty() > p.throttle.cfg.MinDuty {
		if err := p.throttle.Decrease(); err != nil {
			return err
		}
		changed = true
	}

	// A held button at its bound does not start the repeat delay
	if changed {
		p.holding = true
		p.holdUntil = now + p.repeatTicks
	}
	return nil
}
