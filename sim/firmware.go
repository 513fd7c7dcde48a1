package sim

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"sixstep/config"
	"sixstep/core"
)

// ErrPortClosed is returned by Port reads and writes after Close
var ErrPortClosed = errors.New("simulated port closed")

// Firmware runs a core.Drive against a simulated Motor the same way the
// board's main loop does: clock update, timers, link input, buttons and
// periodic telemetry. The core scheduler and clock are process globals,
// so only one Firmware may run at a time.
type Firmware struct {
	cfg   *config.MotorConfig
	clock Clock
	start time.Time

	Motor *Motor
	Drive *core.Drive
	link  *core.Link

	in  chan []byte // host -> firmware
	out chan []byte // firmware -> host

	accelerate atomic.Bool
	decelerate atomic.Bool

	telemetryTicks uint32
	lastTelemetry  uint32
	lastMode       core.MotorMode
	dropped        atomic.Uint32
}

// NewFirmware builds the drive, motor and link for cfg
func NewFirmware(cfg *config.MotorConfig, clock Clock) (*Firmware, error) {
	if clock == nil {
		clock = WallClock
	}

	f := &Firmware{
		cfg:            cfg,
		clock:          clock,
		in:             make(chan []byte, 64),
		out:            make(chan []byte, 256),
		telemetryTicks: core.TimerFromMS(cfg.TelemetryMS),
	}

	f.Motor = NewMotor(cfg.Sim, clock, nil)
	core.SetPhaseDriver(f.Motor)
	core.SetZeroCrossingSensor(f.Motor)

	drive, err := core.NewDrive(cfg.DriveConfig(), core.MustPhaseDriver(), core.MustZeroCrossingSensor())
	if err != nil {
		return nil, err
	}
	f.Drive = drive
	f.Motor.SetHandler(drive.Controller.OnZeroCrossing)

	registry := core.NewLinkRegistry()
	drive.RegisterCommands(registry)
	f.link = core.NewLink(registry, f.send)
	f.link.ServeIdentify()
	return f, nil
}

// send queues a frame for the host, dropping it when the host falls
// behind like a full USB FIFO would
func (f *Firmware) send(frame []byte) error {
	select {
	case f.out <- append([]byte(nil), frame...):
	default:
		f.dropped.Add(1)
	}
	return nil
}

// Dropped returns the number of frames lost to a slow host
func (f *Firmware) Dropped() uint32 {
	return f.dropped.Load()
}

// SetButtons sets the level state of the two throttle buttons
func (f *Firmware) SetButtons(accelerate, decelerate bool) {
	f.accelerate.Store(accelerate)
	f.decelerate.Store(decelerate)
}

// Start resets the core clock and scheduler and begins the startup ramp
func (f *Firmware) Start() error {
	core.ResetTimers()
	core.ClearTimingRing()
	f.start = f.clock.Now()
	core.SetTime(0)
	core.SetDebugWriter(func(s string) { f.link.SendLog(s) })
	core.SetDebugEnabled(true)

	f.lastTelemetry = 0
	f.lastMode = core.ModeStarting
	f.link.SendLog("sixstep sim " + f.cfg.Name + " starting")
	return f.Drive.Start(core.GetTime())
}

// Step runs one main loop iteration
func (f *Firmware) Step() error {
	now := uint32(f.clock.Now().Sub(f.start).Microseconds())
	core.SetTime(now)
	core.ProcessTimers()

drain:
	for {
		select {
		case data := <-f.in:
			f.link.Receive(data)
		default:
			break drain
		}
	}

	if err := f.Drive.Update(now, f.accelerate.Load(), f.decelerate.Load()); err != nil {
		return err
	}
	if err := f.Drive.CheckStartup(); err != nil {
		f.link.SendLog("startup failed: " + err.Error())
	}

	t := f.Drive.Telemetry(now)
	if t.Mode != f.lastMode {
		f.lastMode = t.Mode
		if t.Mode == core.ModeRunning {
			f.link.SendLog("ramp done, running on zero crossings")
		}
	}

	if now-f.lastTelemetry >= f.telemetryTicks {
		f.lastTelemetry = now
		return f.link.SendStatus(t)
	}
	return nil
}

// Run calls Step every period until ctx is cancelled, then halts the drive
func (f *Firmware) Run(ctx context.Context, period time.Duration) error {
	if err := f.Start(); err != nil {
		return err
	}
	defer f.Drive.Halt()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := f.Step(); err != nil {
				return err
			}
		}
	}
}

// Port is the host end of the simulated link. It satisfies the same
// interface as a serial port.
type Port struct {
	fw      *Firmware
	pending []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Port returns the host end of the link
func (f *Firmware) Port() *Port {
	return &Port{fw: f, closed: make(chan struct{})}
}

// Read blocks until the firmware sends a frame
func (p *Port) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		select {
		case frame := <-p.fw.out:
			p.pending = frame
		case <-p.closed:
			return 0, io.EOF
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Write hands bytes to the firmware's next loop iteration
func (p *Port) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, ErrPortClosed
	case p.fw.in <- append([]byte(nil), b...):
		return len(b), nil
	}
}

// Flush is a no-op; writes are queued whole
func (p *Port) Flush() error {
	return nil
}

// Close unblocks pending reads
func (p *Port) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}
