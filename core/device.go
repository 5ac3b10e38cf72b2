package core

import (
	"io"
	"math"

	"bendlink/protocol"
	"bendlink/timeutil"
)

// DeviceConfig describes the firmware side of the link
type DeviceConfig struct {
	CommandLen       int // payload length received from the host
	TelemetryLen     int // payload length sent to the host
	AccumulatorLimit int
	Channels         []ChannelConfig
	Guard            GuardConfig
}

// DefaultDeviceConfig returns two default servo channels on the standard
// payload lengths.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		CommandLen:       protocol.DefaultTxPayloadLen,
		TelemetryLen:     protocol.DefaultRxPayloadLen,
		AccumulatorLimit: protocol.DefaultAccumulatorLimit,
		Channels:         []ChannelConfig{DefaultChannelConfig(), DefaultChannelConfig()},
		Guard:            DefaultGuardConfig(),
	}
}

// DeviceStats is a snapshot of the device counters
type DeviceStats struct {
	protocol.SessionStats
	ActuationErrors uint32
	ReportErrors    uint32
}

// OrientationSource reports roll, pitch and yaw in degrees
type OrientationSource func() (roll, pitch, yaw float64)

// Device ties the byte stream to the actuators. Every decoded command pings
// the watchdog and moves each configured channel to its commanded angle.
// A Device is driven from a single polling loop.
type Device struct {
	session *protocol.Session
	servos  *ServoArray
	guard   *PowerGuard
	out     io.Writer

	telemetry   protocol.Payload
	frameBuf    []byte
	orientation OrientationSource

	actuationErrors uint32
	reportErrors    uint32
}

// NewDevice builds a device. out receives telemetry frames and may be nil when
// Report is never called.
func NewDevice(cfg DeviceConfig, driver PulseDriver, power PowerSwitch, clock timeutil.Clock, out io.Writer) (*Device, error) {
	telemetry, err := protocol.NewPayload(cfg.TelemetryLen)
	if err != nil {
		return nil, err
	}

	d := &Device{
		servos:    NewServoArray(driver, clock, cfg.Channels...),
		guard:     NewPowerGuard(cfg.Guard, power, clock),
		out:       out,
		telemetry: telemetry,
		frameBuf:  make([]byte, 0, protocol.MaxEncodedLength(cfg.TelemetryLen)+1),
	}

	d.session, err = protocol.NewSession(cfg.CommandLen, cfg.AccumulatorLimit, d.handleCommand)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) handleCommand(payload []byte) {
	d.guard.Ping()
	for ch := 0; ch < d.servos.Len(); ch++ {
		angle, err := protocol.AngleAt(payload, ch)
		if err != nil {
			// Payload too short for the remaining channels
			d.actuationErrors++
			return
		}
		if err := d.servos.RotateTo(ch, angle); err != nil {
			d.actuationErrors++
		}
	}
}

// FeedByte pushes one received byte through the session
func (d *Device) FeedByte(b byte) int {
	return d.session.FeedByte(b)
}

// Feed pushes a chunk of received bytes through the session
func (d *Device) Feed(chunk []byte) int {
	return d.session.Feed(chunk)
}

// Drain consumes everything buffered in input byte by byte
func (d *Device) Drain(input protocol.InputBuffer) int {
	return d.session.Drain(input)
}

// Tick runs the watchdog
func (d *Device) Tick() {
	d.guard.Tick()
}

// SetErrorHandler observes framing errors
func (d *Device) SetErrorHandler(handler protocol.ErrorHandler) {
	d.session.SetErrorHandler(handler)
}

// SetOrientationSource attaches an orientation sensor to the telemetry
func (d *Device) SetOrientationSource(src OrientationSource) {
	d.orientation = src
}

// Telemetry builds the current state report
func (d *Device) Telemetry() protocol.Telemetry {
	stats := d.session.Stats()
	count := d.guard.ActivationCount()
	if count > math.MaxUint8 {
		count = math.MaxUint8
	}
	t := protocol.Telemetry{
		PowerOn:         d.guard.IsPowerOn(),
		ActivationCount: uint8(count),
		Frames:          stats.Frames,
		FramingErrors:   stats.FramingErrors + stats.Overflows,
	}
	for ch := range t.Angles {
		t.Angles[ch], _ = d.servos.LastAngle(ch)
	}
	if d.orientation != nil {
		t.Roll, t.Pitch, t.Yaw = d.orientation()
	}
	return t
}

// Report encodes the current telemetry and writes one frame to out
func (d *Device) Report() error {
	if d.out == nil {
		return protocol.ErrNotOpen
	}
	if err := d.Telemetry().MarshalTo(d.telemetry); err != nil {
		d.reportErrors++
		return err
	}

	frame, err := protocol.AppendFrame(d.frameBuf[:0], d.telemetry.Bytes())
	if err != nil {
		d.reportErrors++
		return err
	}
	d.frameBuf = frame

	n, err := d.out.Write(frame)
	if err != nil {
		d.reportErrors++
		return err
	}
	if n != len(frame) {
		d.reportErrors++
		return &protocol.ShortWriteError{Written: n, Expected: len(frame)}
	}
	return nil
}

// Servos exposes the actuation layer
func (d *Device) Servos() *ServoArray { return d.servos }

// Guard exposes the watchdog
func (d *Device) Guard() *PowerGuard { return d.guard }

// Stats returns a snapshot of the counters
func (d *Device) Stats() DeviceStats {
	return DeviceStats{
		SessionStats:    d.session.Stats(),
		ActuationErrors: d.actuationErrors,
		ReportErrors:    d.reportErrors,
	}
}
