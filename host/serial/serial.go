package serial

import (
	"errors"
	"fmt"
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - go.bug.st/serial, which exposes explicit modes and drain
// - In-memory ports (for testing and the simulator)
type Port interface {
	io.ReadWriteCloser

	// Flush discards any buffered input and output
	Flush() error
}

// Driver names accepted in Config.Driver
const (
	DriverTarm  = "tarm"
	DriverBugst = "bugst"
)

// DefaultBaud is the link speed used by the positioner firmware
const DefaultBaud = 115200

var ErrUnknownDriver = errors.New("unknown serial driver")

// Config holds serial port configuration. The line is always 8 data bits,
// no parity, one stop bit, no flow control.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int

	// Driver selects the backend; empty means DriverTarm
	Driver string
}

// DefaultConfig returns the default link configuration for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
		Driver:      DriverTarm,
	}
}

// Opener opens a port from a configuration
type Opener func(cfg *Config) (Port, error)

// Open opens a serial port with the configured driver
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("device path cannot be empty")
	}

	switch cfg.Driver {
	case "", DriverTarm:
		return openNative(cfg)
	case DriverBugst:
		return openBugst(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
