//go:build !tinygo

package serial

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// NativePort is a Port on an operating system serial device
type NativePort struct {
	*serial.Port
	device string
}

// Open opens cfg.Device. The read timeout keeps the link client's read
// loop responsive to Close.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, ErrNoConfig
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return &NativePort{Port: port, device: cfg.Device}, nil
}

// String returns the device path
func (p *NativePort) String() string {
	return p.device
}
