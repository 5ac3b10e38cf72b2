package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error
}

// PowerSwitch gates the actuator supply
type PowerSwitch interface {
	SetPower(on bool) error
}

// PinSwitch drives a power relay from a digital output
type PinSwitch struct {
	driver    GPIODriver
	pin       GPIOPin
	activeLow bool
}

// NewPinSwitch configures pin as an output and leaves the relay open.
func NewPinSwitch(driver GPIODriver, pin GPIOPin, activeLow bool) (*PinSwitch, error) {
	s := &PinSwitch{driver: driver, pin: pin, activeLow: activeLow}
	if err := driver.ConfigureOutput(pin); err != nil {
		return nil, err
	}
	if err := s.SetPower(false); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PinSwitch) SetPower(on bool) error {
	return s.driver.SetPin(s.pin, on != s.activeLow)
}
