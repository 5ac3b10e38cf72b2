package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bendlink/core"
	"bendlink/host/autobend"
	"bendlink/host/serial"
	"bendlink/protocol"
)

func TestDefault(t *testing.T) {
	cfg := Default("/dev/ttyUSB0")

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
	assert.Equal(t, serial.DefaultBaud, cfg.Serial.Baud)
	assert.Equal(t, serial.DriverTarm, cfg.Serial.Driver)
	assert.Equal(t, protocol.DefaultTxPayloadLen, cfg.Payload.TxLen)
	assert.Equal(t, protocol.DefaultRxPayloadLen, cfg.Payload.RxLen)
	assert.Equal(t, protocol.DefaultAccumulatorLimit, cfg.AccumulatorLimit)
	assert.Equal(t, 200*time.Millisecond, cfg.ResendInterval())

	assert.Equal(t, AngleConfig{Min: 110, Max: 160, Step: 0.5, Initial: 135}, cfg.Angles)

	// An empty axis block yields the stock controller
	assert.Equal(t, autobend.DefaultAxisConfig(), cfg.Axes.X.Controller())

	// Empty device sections yield the stock device
	assert.Equal(t, core.DefaultDeviceConfig(), cfg.DeviceConfig())
}

func TestLoadDeviceSections(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "rig.yaml"))
	require.NoError(t, err)

	dev := cfg.DeviceConfig()
	assert.Equal(t, 30, dev.CommandLen)
	assert.Equal(t, 22, dev.TelemetryLen)
	assert.Equal(t, core.GuardConfig{ActivationThreshold: 3, Timeout: 500 * time.Millisecond}, dev.Guard)

	require.Len(t, dev.Channels, 2)
	want0 := core.DefaultChannelConfig()
	want0.MinAngle, want0.MaxAngle, want0.SlewRateDegPerSec = 90, 180, 60
	assert.Equal(t, want0, dev.Channels[0])

	want1 := core.DefaultChannelConfig()
	want1.MinPulseUs, want1.MaxPulseUs, want1.DeadbandDeg = 600, 2400, 0
	assert.Equal(t, want1, dev.Channels[1])
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "rig.yaml"))
	require.NoError(t, err)

	assert.Equal(t, serial.DriverBugst, cfg.Serial.Driver)
	assert.True(t, cfg.Serial.WireLog)
	assert.Equal(t, 250*time.Millisecond, cfg.ResendInterval())

	// Inverted range is swapped, initial angle kept
	assert.Equal(t, AngleConfig{Min: 110, Max: 160, Step: 1, Initial: 140}, cfg.Angles)

	x := cfg.Axes.X.Controller()
	assert.Equal(t, 0.02, x.Kp)
	assert.Equal(t, 3.0, x.Deadband)
	assert.InDelta(t, 0.05, x.UnitsPerMeasurement, 1e-12)

	y := cfg.Axes.Y.Controller()
	assert.Equal(t, 0.001, y.Ki)
	assert.Equal(t, 4.0, y.DerivativeCutoffHz)
	assert.Equal(t, 2.5, y.OutputLimit)
	assert.Equal(t, autobend.DefaultAxisConfig().Deadband, y.Deadband)
	assert.InDelta(t, 0.04, y.UnitsPerMeasurement, 1e-12)

	port := cfg.PortConfig()
	assert.Equal(t, "/dev/ttyACM0", port.Device)
	assert.Equal(t, 50, port.ReadTimeout)
	assert.Equal(t, serial.DriverBugst, port.Driver)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("serial:\n  devcie: /dev/ttyACM0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "devcie")
}

func TestParseExplicitZeroGain(t *testing.T) {
	cfg, err := Parse([]byte("axes:\n  x:\n    kp: 0\n    deadband_px: 0\n"))
	require.NoError(t, err)

	x := cfg.Axes.X.Controller()
	assert.Zero(t, x.Kp)
	assert.Zero(t, x.Deadband)
}

func TestValidate(t *testing.T) {
	neg := -1.0
	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"negative baud", func(c *Config) { c.Serial.Baud = -9600 }, "serial.baud"},
		{"unknown driver", func(c *Config) { c.Serial.Driver = "usb" }, "serial.driver"},
		{"negative timeout", func(c *Config) { c.Serial.ReadTimeoutMs = -1 }, "serial.read_timeout_ms"},
		{"negative tx", func(c *Config) { c.Payload.TxLen = -1 }, "payload.tx_len"},
		{"tx too short", func(c *Config) { c.Payload.TxLen = 3 }, "payload.tx_len"},
		{"negative rx", func(c *Config) { c.Payload.RxLen = -22 }, "payload.rx_len"},
		{"rx too short", func(c *Config) { c.Payload.RxLen = 17 }, "payload.rx_len"},
		{"negative limit", func(c *Config) { c.AccumulatorLimit = -1 }, "accumulator_limit"},
		{"negative resend", func(c *Config) { c.ResendIntervalMs = -5 }, "resend_interval_ms"},
		{"negative deadband", func(c *Config) { c.Axes.Y.DeadbandPx = &neg }, "axes.y.deadband_px"},
		{"negative cutoff", func(c *Config) { c.Axes.X.CutoffHz = &neg }, "axes.x.cutoff_hz"},
		{"negative px", func(c *Config) { c.Axes.X.PxPerUnit = -25 }, "axes.x.px_per_unit"},
		{"negative limit out", func(c *Config) { c.Axes.Y.OutputLimit = -1 }, "axes.y.output_limit"},
		{"negative step", func(c *Config) { c.Angles.Step = -0.5 }, "angles.step"},
		{"too many channels", func(c *Config) { c.Channels = make([]ChannelConfig, 3) }, "channels"},
		{"pulse above uint16", func(c *Config) {
			big := 70000.0
			c.Channels = []ChannelConfig{{}, {MaxPulseUs: &big}}
		}, "channels[1].max_pulse_us"},
		{"negative pulse", func(c *Config) { c.Channels = []ChannelConfig{{MinPulseUs: &neg}} }, "channels[0].min_pulse_us"},
		{"negative channel deadband", func(c *Config) { c.Channels = []ChannelConfig{{DeadbandDeg: &neg}} }, "channels[0].deadband_deg"},
		{"negative slew", func(c *Config) { c.Channels = []ChannelConfig{{SlewDegPerSec: &neg}} }, "channels[0].slew_deg_per_sec"},
		{"negative threshold", func(c *Config) { c.Guard.Threshold = -1 }, "guard.threshold"},
		{"negative guard timeout", func(c *Config) { c.Guard.TimeoutMs = -1 }, "guard.timeout_ms"},
		{"initial outside", func(c *Config) {
			c.Angles.Min, c.Angles.Max, c.Angles.Initial = 110, 160, 170
		}, "angles.initial"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			tt.mod(cfg)
			err := Validate(cfg)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	assert.NoError(t, Validate(&Config{}))
	assert.Error(t, Validate(nil))
}

func TestValidateDoesNotMutate(t *testing.T) {
	cfg := &Config{Angles: AngleConfig{Min: 160, Max: 110}}
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 160.0, cfg.Angles.Min)
	assert.Zero(t, cfg.Serial.Baud)
}

func TestNormalizeClampsInitial(t *testing.T) {
	cfg := &Config{Angles: AngleConfig{Min: 10, Max: 20}}
	Normalize(cfg)
	// The default initial angle lies outside the custom range
	assert.Equal(t, 20.0, cfg.Angles.Initial)
}

func TestDumpRoundTrip(t *testing.T) {
	cfg := Default("/dev/ttyACM1")
	data, err := Dump(cfg)
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
