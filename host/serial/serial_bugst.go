package serial

import (
	"fmt"
	"time"

	bugst "go.bug.st/serial"
)

// BugstPort wraps a go.bug.st/serial port
type BugstPort struct {
	port bugst.Port
}

// Mode returns the 8N1 mode for baud
func Mode(baud int) *bugst.Mode {
	return &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
}

func openBugst(cfg *Config) (Port, error) {
	port, err := bugst.Open(cfg.Device, Mode(cfg.Baud))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	timeout := bugst.NoTimeout
	if cfg.ReadTimeout > 0 {
		timeout = time.Duration(cfg.ReadTimeout) * time.Millisecond
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", cfg.Device, err)
	}

	return &BugstPort{port: port}, nil
}

func (p *BugstPort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *BugstPort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *BugstPort) Close() error                { return p.port.Close() }

// Flush purges both port buffers
func (p *BugstPort) Flush() error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return err
	}
	return p.port.ResetOutputBuffer()
}

// Drain blocks until the output buffer has been sent
func (p *BugstPort) Drain() error {
	return p.port.Drain()
}

// ListPorts returns the serial ports present on the system
func ListPorts() ([]string, error) {
	return bugst.GetPortsList()
}
