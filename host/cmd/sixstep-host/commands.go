package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sixstep/config"
	"sixstep/host/mcu"
	"sixstep/host/serial"
	"sixstep/sim"
)

type MonitorCommand struct {
	Device  string        `short:"d" long:"device" default:"/dev/ttyACM0" description:"Serial device path"`
	Baud    int           `long:"baud" default:"115200" description:"Baud rate (ignored for USB CDC)"`
	Timeout time.Duration `long:"timeout" default:"1s" description:"Identify response timeout"`
}

type SimCommand struct {
	Config   string        `short:"c" long:"config" description:"Motor configuration JSON file"`
	Period   time.Duration `long:"period" default:"100us" description:"Main loop period"`
	Headless bool          `long:"headless" description:"Log telemetry instead of showing the dashboard"`
	Duration time.Duration `long:"duration" default:"5s" description:"Run time in headless mode"`
}

type IdentifyCommand struct {
	Device  string        `short:"d" long:"device" default:"/dev/ttyACM0" description:"Serial device path"`
	Timeout time.Duration `long:"timeout" default:"1s" description:"Identify response timeout"`
}

type DefaultsCommand struct{}

func (c *MonitorCommand) Execute(args []string) error {
	cfg := serial.DefaultConfig(c.Device)
	cfg.Baud = c.Baud

	m, err := mcu.ConnectWithConfig(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if _, err := m.RetrieveIdentity(c.Timeout); err != nil {
		return fmt.Errorf("drive on %s: %w", c.Device, err)
	}
	log.Printf("Connected to %s, link %s", c.Device, m.Version())

	return runDashboard(m, c.Device)
}

func (c *SimCommand) Execute(args []string) error {
	cfg := config.Default()
	if c.Config != "" {
		var err error
		if cfg, err = config.LoadFile(c.Config); err != nil {
			return err
		}
	}

	fw, err := sim.NewFirmware(cfg, sim.WallClock)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- fw.Run(ctx, c.Period) }()

	m := mcu.NewMCU(fw.Port())
	defer m.Close()

	if c.Headless {
		err = runHeadless(m, fw, c.Duration)
	} else {
		err = runDashboard(m, "simulated "+cfg.Name)
	}

	cancel()
	if runErr := <-stopped; runErr != nil {
		return fmt.Errorf("simulated firmware: %w", runErr)
	}
	if violations := fw.Motor.Violations(); len(violations) > 0 {
		for _, v := range violations {
			log.Printf("Motor invariant violation: %v", v)
		}
		return fmt.Errorf("%d motor invariant violations", len(violations))
	}
	return err
}

func (c *IdentifyCommand) Execute(args []string) error {
	m, err := mcu.Connect(c.Device)
	if err != nil {
		return err
	}
	defer m.Close()

	identity, err := m.RetrieveIdentity(c.Timeout)
	fmt.Print(identity)
	return err
}

func (c *DefaultsCommand) Execute(args []string) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(config.Default())
}

// runHeadless logs telemetry and log lines until d has passed
func runHeadless(m *mcu.MCU, fw *sim.Firmware, d time.Duration) error {
	deadline := time.After(d)
	for {
		select {
		case s := <-m.Statuses():
			stats := fw.Motor.Stats()
			log.Printf("step=%d mode=%s duty=%d forced=%d zc=%d faults=%d rate=%.0f/s",
				s.Step, s.Mode, s.Duty, s.ForcedSteps, s.ZeroCrossings, s.Faults, stats.Rate)
		case line := <-m.Logs():
			log.Printf("mcu: %s", line)
		case <-m.Done():
			return m.Err()
		case <-deadline:
			return nil
		}
	}
}

func runDashboard(m *mcu.MCU, source string) error {
	p := tea.NewProgram(initialDashboardModel(m, source), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
