package protocol

import "math"

// Field scaling on the wire
const (
	AngleScale       = 10  // degrees x10
	OrientationScale = 100 // degrees x100
)

// Command payload (host to device): one int16 angle per channel from offset 0
const CommandAngleOffset = 0

// Telemetry payload (device to host) offsets
const (
	TelemetryAngleOffset      = 0  // 2 x int16
	TelemetryPowerOffset      = 4  // 0 or 1
	TelemetryActivationOffset = 5  // watchdog ping count
	TelemetryRollOffset       = 6  // int16
	TelemetryPitchOffset      = 8  // int16
	TelemetryYawOffset        = 10 // int16
	TelemetryFramesOffset     = 12 // uint32
	TelemetryErrorsOffset     = 16 // uint16, saturating

	// TelemetryMinLen is the shortest telemetry payload holding every field
	TelemetryMinLen = 18
)

// PutAngle stores deg for channel ch in a command payload
func PutAngle(p Payload, ch int, deg float64) error {
	return p.PutInt16(CommandAngleOffset+2*ch, ScaledInt16(deg, AngleScale))
}

// AngleAt reads the angle of channel ch from a command payload
func AngleAt(data []byte, ch int) (float64, error) {
	v, err := Int16At(data, CommandAngleOffset+2*ch)
	if err != nil {
		return 0, err
	}
	return float64(v) / AngleScale, nil
}

// Telemetry is the device state reported back to the host
type Telemetry struct {
	Angles          [2]float64
	PowerOn         bool
	ActivationCount uint8
	Roll            float64
	Pitch           float64
	Yaw             float64
	Frames          uint32
	FramingErrors   uint32
}

// MarshalTo writes t into p. p must be at least 18 bytes; bytes past the
// known fields are left untouched.
func (t Telemetry) MarshalTo(p Payload) error {
	if p.Len() < TelemetryMinLen {
		return ErrOutOfRange
	}
	for ch, a := range t.Angles {
		if err := p.PutInt16(TelemetryAngleOffset+2*ch, ScaledInt16(a, AngleScale)); err != nil {
			return err
		}
	}
	flags := []byte{0, t.ActivationCount}
	if t.PowerOn {
		flags[0] = 1
	}
	if err := p.SetRange(TelemetryPowerOffset, flags); err != nil {
		return err
	}
	if err := p.PutInt16(TelemetryRollOffset, ScaledInt16(t.Roll, OrientationScale)); err != nil {
		return err
	}
	if err := p.PutInt16(TelemetryPitchOffset, ScaledInt16(t.Pitch, OrientationScale)); err != nil {
		return err
	}
	if err := p.PutInt16(TelemetryYawOffset, ScaledInt16(t.Yaw, OrientationScale)); err != nil {
		return err
	}
	if err := p.PutUint32(TelemetryFramesOffset, t.Frames); err != nil {
		return err
	}
	errs := t.FramingErrors
	if errs > math.MaxUint16 {
		errs = math.MaxUint16
	}
	return p.PutUint16(TelemetryErrorsOffset, uint16(errs))
}

// ParseTelemetry decodes a telemetry payload
func ParseTelemetry(data []byte) (Telemetry, error) {
	var t Telemetry
	if len(data) < TelemetryMinLen {
		return t, ErrOutOfRange
	}
	for ch := range t.Angles {
		v, _ := Int16At(data, TelemetryAngleOffset+2*ch)
		t.Angles[ch] = float64(v) / AngleScale
	}
	t.PowerOn = data[TelemetryPowerOffset] != 0
	t.ActivationCount = data[TelemetryActivationOffset]

	roll, _ := Int16At(data, TelemetryRollOffset)
	pitch, _ := Int16At(data, TelemetryPitchOffset)
	yaw, _ := Int16At(data, TelemetryYawOffset)
	t.Roll = float64(roll) / OrientationScale
	t.Pitch = float64(pitch) / OrientationScale
	t.Yaw = float64(yaw) / OrientationScale

	t.Frames, _ = Uint32At(data, TelemetryFramesOffset)
	errs, _ := Uint16At(data, TelemetryErrorsOffset)
	t.FramingErrors = uint32(errs)
	return t, nil
}
