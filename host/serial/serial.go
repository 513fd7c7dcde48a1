package serial

import (
	"errors"
	"io"
)

// Port carries link frames between the host and a drive. NativePort
// opens the board's USB CDC device; sim.Port is the in-process end of a
// simulated drive.
type Port interface {
	io.ReadWriteCloser

	// Flush discards input received before the host started listening
	Flush() error
}

// Config describes how to open a drive's serial device
type Config struct {
	Device      string // e.g. "/dev/ttyACM0", "COM3"
	Baud        int    // Ignored by USB CDC, used by UART bridges
	ReadTimeout int    // Milliseconds; a Read returns io.EOF when it expires
}

// DefaultConfig returns the settings for the drive's USB link
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}

// ErrNoConfig is returned by Open when called without a configuration
var ErrNoConfig = errors.New("serial config cannot be nil")
