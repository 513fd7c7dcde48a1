//go:build rp2040

package main

import (
	"machine"
	"strconv"
	"time"

	"sixstep/config"
	"sixstep/core"
)

var (
	drive   *core.Drive
	link    *core.Link
	buttons *core.Buttons

	// Receive staging for one main loop iteration
	rxBuffer [64]byte

	// Main loop and USB errors, reported with the telemetry
	loopErrors     uint32
	reportedErrors uint32

	// Motor configuration JSON set at build time, for example
	// -ldflags="-X main.motorConfig=$(cat motor.json)". Empty boots the defaults.
	motorConfig string
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitClock()

	cfg, err := loadConfig()
	if err != nil {
		bootFailed(err)
	}
	if err := setup(cfg); err != nil {
		bootFailed(err)
	}

	if err := drive.Start(core.GetTime()); err != nil {
		// The first CheckStartup halts and reports it
		loopErrors++
	}

	telemetryTicks := core.TimerFromMS(cfg.TelemetryMS)
	lastTelemetry := core.GetTime()
	lastMode := core.ModeStarting

	for {
		// Recover from panics in the main loop; a panic leaves the bridge off
		func() {
			defer func() {
				if r := recover(); r != nil {
					loopErrors++
					drive.Halt()
				}
			}()

			UpdateSystemTime()
			core.ProcessTimers()

			readUSB()

			now := core.GetTime()
			accelerate, decelerate := buttons.Read()
			if err := drive.Update(now, accelerate, decelerate); err != nil {
				loopErrors++
			}
			if err := drive.CheckStartup(); err != nil {
				link.SendLog("startup failed: " + err.Error())
			}

			t := drive.Telemetry(now)
			if t.Mode != lastMode {
				lastMode = t.Mode
				if t.Mode == core.ModeRunning {
					core.DebugPrintln("ramp done, running on zero crossings")
				}
			}
			if now-lastTelemetry >= telemetryTicks {
				lastTelemetry = now
				link.SendStatus(t)
				if loopErrors != reportedErrors {
					reportedErrors = loopErrors
					link.SendLog("loop errors: " + strconv.FormatUint(uint64(loopErrors), 10))
				}
			}
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// loadConfig returns the build-time configuration, or the defaults
func loadConfig() (*config.MotorConfig, error) {
	if motorConfig == "" {
		return config.Default(), nil
	}
	return config.LoadConfig([]byte(motorConfig))
}

// setup builds the drivers, the drive and the link from cfg
func setup(cfg *config.MotorConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	pins, err := cfg.Pins.Parse()
	if err != nil {
		return err
	}

	core.SetGPIODriver(NewRPGPIODriver())
	core.SetPWMDriver(NewRP2040PWMDriver())

	var low core.LowSideDriver
	if cfg.LowSide == config.LowSidePIO {
		low, err = NewPIOLowSide(0, 0, machine.Pin(pins.Low[0]))
	} else {
		low, err = core.NewGPIOLowSide(core.MustGPIO(), pins.Low)
	}
	if err != nil {
		return err
	}

	bridge, err := core.NewBridge(core.MustPWM(), pins.High, low, cfg.PWMPeriodNS)
	if err != nil {
		return err
	}
	core.SetPhaseDriver(bridge)

	// The sensor interrupt reaches the controller through the drive
	core.SetZeroCrossingSensor(NewComparatorSensor(pins.Sense, func() {
		drive.Controller.OnZeroCrossing()
	}))

	drive, err = core.NewDrive(cfg.DriveConfig(), core.MustPhaseDriver(), core.MustZeroCrossingSensor())
	if err != nil {
		return err
	}

	buttons, err = core.NewButtons(core.MustGPIO(), pins.Accelerate, pins.Decelerate)
	if err != nil {
		return err
	}

	registry := core.NewLinkRegistry()
	drive.RegisterCommands(registry)
	link = core.NewLink(registry, writeUSB)
	link.ServeIdentify()

	core.SetDebugWriter(func(s string) { link.SendLog(s) })
	core.SetDebugEnabled(true)
	link.SendLog("sixstep " + cfg.Name + " ready")
	return nil
}

// readUSB feeds everything the host has sent so far to the link
func readUSB() {
	n := 0
	for n < len(rxBuffer) && USBAvailable() > 0 {
		b, err := USBRead()
		if err != nil {
			loopErrors++
			break
		}
		rxBuffer[n] = b
		n++
	}
	if n > 0 {
		link.Receive(rxBuffer[:n])
	}
}

// writeUSB writes one frame to USB, handling partial writes
func writeUSB(frame []byte) error {
	written := 0
	for written < len(frame) {
		n, err := USBWriteBytes(frame[written:])
		if err != nil || n == 0 {
			// Write error or no progress - likely disconnect. The frame is
			// dropped; telemetry resends state on the next report.
			if err == nil {
				err = errUSBStalled
			}
			return err
		}
		written += n
	}
	return nil
}

// bootFailed leaves the bridge untouched and reports err forever
func bootFailed(err error) {
	msg := []byte("sixstep boot failed: " + err.Error() + "\r\n")
	for {
		USBWriteBytes(msg)
		time.Sleep(time.Second)
	}
}
