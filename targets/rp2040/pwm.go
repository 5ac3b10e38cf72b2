//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/servo"

	"bendlink/core"
)

// ServoPWMDriver implements core.PulseDriver on the RP2040 PWM slices.
// Channel i drives pins[i] at the standard 50 Hz servo period.
type ServoPWMDriver struct {
	servos []servo.Servo

	// Arrays already configured, keyed by slice number
	arrays map[uint8]servo.Array
}

// NewServoPWMDriver configures one servo output per pin. Pins sharing a PWM
// slice share its 20 ms period.
func NewServoPWMDriver(pins ...machine.Pin) (*ServoPWMDriver, error) {
	d := &ServoPWMDriver{arrays: make(map[uint8]servo.Array)}
	for _, pin := range pins {
		// RP2040: GPIO pin N maps to slice (N >> 1) & 0x7, channel N & 1
		sliceNum := uint8((uint32(pin) >> 1) & 0x7)

		array, exists := d.arrays[sliceNum]
		if !exists {
			var err error
			array, err = servo.NewArray(getPWMPeripheral(sliceNum))
			if err != nil {
				return nil, err
			}
			d.arrays[sliceNum] = array
		}

		s, err := array.Add(pin)
		if err != nil {
			return nil, err
		}
		d.servos = append(d.servos, s)
	}
	return d, nil
}

// SetPulseWidth sets the pulse high time of channel ch. Zero holds the line low.
func (d *ServoPWMDriver) SetPulseWidth(ch int, us uint16) error {
	if ch < 0 || ch >= len(d.servos) {
		return core.ErrChannel
	}
	if us > 0x7FFF {
		us = 0x7FFF
	}
	d.servos[ch].SetMicroseconds(int16(us))
	return nil
}

// getPWMPeripheral returns the PWM peripheral for a given slice number.
// TinyGo defines PWM0-PWM7 as globals of an unexported type; servo.PWM covers
// the methods needed.
func getPWMPeripheral(sliceNum uint8) servo.PWM {
	switch sliceNum {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	case 7:
		return machine.PWM7
	default:
		return machine.PWM0
	}
}
