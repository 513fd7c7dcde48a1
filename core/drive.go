package core

// DriveConfig gathers the tunables of one motor drive
type DriveConfig struct {
	Startup     StartupConfig
	Throttle    ThrottleConfig
	RepeatTicks uint32 // Button repeat interval in timer ticks
}

// Drive wires the commutation controller, startup sequencer and throttle
// to one bridge and one sensor. Target code and the simulator build one
// at boot and call its methods from the main loop.
type Drive struct {
	Controller *CommutationController
	Sequencer  *StartupSequencer
	Throttle   *ThrottleController
	Poller     *ThrottlePoller

	restartPending bool
	faulted        bool   // Ramp failure already handled, cleared by Start
	lastFaults     uint32 // Controller fault count at the last Update
}

// NewDrive validates the commutation table, applies the start duty and
// leaves the bridge released until Start
func NewDrive(cfg DriveConfig, driver PhaseDriver, sensor ZeroCrossingSensor) (*Drive, error) {
	if err := ValidateTable(); err != nil {
		return nil, err
	}

	throttle, err := NewThrottleController(cfg.Throttle, driver)
	if err != nil {
		return nil, err
	}

	ctrl := NewCommutationController(driver, sensor)
	return &Drive{
		Controller: ctrl,
		Sequencer:  NewStartupSequencer(cfg.Startup, ctrl),
		Throttle:   throttle,
		Poller:     NewThrottlePoller(throttle, cfg.RepeatTicks),
	}, nil
}

// Start engages the bridge and begins the startup ramp at time now
func (d *Drive) Start(now uint32) error {
	d.restartPending = false
	d.faulted = false
	d.lastFaults = 0
	return d.Sequencer.Start(now)
}

// Halt cancels any ramp and releases the bridge
func (d *Drive) Halt() error {
	d.Sequencer.Stop()
	err := d.Controller.Halt()
	DumpTimingRing()
	return err
}

// RequestRestart halts now and restarts on the next Update
func (d *Drive) RequestRestart() error {
	d.restartPending = true
	return d.Halt()
}

// Update runs one main loop iteration: fault report, pending restart,
// then the buttons
func (d *Drive) Update(now uint32, accelerate, decelerate bool) error {
	// The handler cannot log from interrupt context, so new faults are
	// reported here
	if faults := d.Controller.Snapshot().Faults; faults != d.lastFaults {
		if faults > d.lastFaults {
			DebugPrintln("zero-crossing faults: " + utoa(faults))
		}
		d.lastFaults = faults
	}

	if d.restartPending {
		if err := d.Start(now); err != nil {
			return err
		}
	}
	return d.Poller.Poll(now, accelerate, decelerate)
}

// CheckStartup halts the drive the first time the ramp reports an error
// and returns that error. Later calls return nil until the next Start.
func (d *Drive) CheckStartup() error {
	err := d.Sequencer.Err()
	if err == nil || d.faulted {
		return nil
	}
	d.faulted = true
	d.Halt()
	return err
}

// Telemetry returns the status report for time now
func (d *Drive) Telemetry(now uint32) Telemetry {
	return Telemetry{
		Status:         d.Controller.Snapshot(),
		Duty:           d.Throttle.Duty(),
		StartupDelayUS: d.Sequencer.Delay(),
		Clock:          now,
	}
}

// RegisterCommands attaches the host command handlers to the link registry
func (d *Drive) RegisterCommands(r *CommandRegistry) {
	r.SetHandler(MsgThrottleUp, func(data *[]byte) error {
		return d.Throttle.Increase()
	})
	r.SetHandler(MsgThrottleDown, func(data *[]byte) error {
		return d.Throttle.Decrease()
	})
	r.SetHandler(MsgHalt, func(data *[]byte) error {
		return d.Halt()
	})
	r.SetHandler(MsgRestart, func(data *[]byte) error {
		return d.RequestRestart()
	})
}
