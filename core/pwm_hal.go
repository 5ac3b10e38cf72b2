package core

// PulseDriver is the abstract servo output that core code uses.
// Platform-specific implementations handle actual PWM hardware.
type PulseDriver interface {
	// SetPulseWidth sets the high time of a channel's pulse in microseconds.
	// Zero stops the pulse train on that channel.
	SetPulseWidth(channel int, us uint16) error
}

// PulseDriverFunc adapts a function to PulseDriver
type PulseDriverFunc func(channel int, us uint16) error

func (f PulseDriverFunc) SetPulseWidth(channel int, us uint16) error {
	return f(channel, us)
}
