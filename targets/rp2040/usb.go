//go:build rp2040

package main

import (
	"machine"
)

// InitUSB configures machine.Serial, which is USB CDC on RP2040
func InitUSB() {
	err := machine.Serial.Configure(machine.UARTConfig{})
	if err != nil {
		return
	}
}

// USBAvailable returns the number of bytes available to read from USB
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads a single byte from USB
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// usbWriter adapts USB CDC to io.Writer for telemetry frames, retrying
// partial writes a few times before giving up.
type usbWriter struct{}

func (usbWriter) Write(data []byte) (int, error) {
	written := 0
	for attempts := 0; written < len(data) && attempts < 10; attempts++ {
		n, err := machine.Serial.Write(data[written:])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}
