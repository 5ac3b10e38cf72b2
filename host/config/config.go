// Package config loads the host configuration from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bendlink/core"
	"bendlink/host/autobend"
	"bendlink/host/serial"
)

type Config struct {
	Serial           SerialConfig  `yaml:"serial"`
	Payload          PayloadConfig `yaml:"payload"`
	AccumulatorLimit int           `yaml:"accumulator_limit"`
	ResendIntervalMs int           `yaml:"resend_interval_ms"`
	Axes             AxesConfig    `yaml:"axes"`
	Angles           AngleConfig   `yaml:"angles"`

	// Device side, used by the simulator and as the reference for firmware builds
	Channels []ChannelConfig `yaml:"channels,omitempty"`
	Guard    GuardConfig     `yaml:"guard"`
}

// ---- LINK ----

type SerialConfig struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	Driver        string `yaml:"driver"` // tarm | bugst
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
	WireLog       bool   `yaml:"wire_log"`
}

type PayloadConfig struct {
	TxLen int `yaml:"tx_len"`
	RxLen int `yaml:"rx_len"`
}

// ---- CONTROL ----

type AxesConfig struct {
	X AxisConfig `yaml:"x"`
	Y AxisConfig `yaml:"y"`
}

// AxisConfig is the YAML form of autobend.AxisConfig. Geometry is given as
// pixels per degree, the way it is measured on the rig.
type AxisConfig struct {
	Kp          *float64 `yaml:"kp"`
	Ki          float64  `yaml:"ki"`
	Kd          float64  `yaml:"kd"`
	DeadbandPx  *float64 `yaml:"deadband_px"`
	CutoffHz    *float64 `yaml:"cutoff_hz"`
	PxPerUnit   float64  `yaml:"px_per_unit"`
	OutputLimit float64  `yaml:"output_limit"` // 0 = unclamped
}

// ---- ANGLES ----

type AngleConfig struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Step    float64 `yaml:"step"`
	Initial float64 `yaml:"initial"`
}

// ---- DEVICE ----

// ChannelConfig overrides core.DefaultChannelConfig field by field; unset
// fields keep the default.
type ChannelConfig struct {
	MinAngle      *float64 `yaml:"min_angle,omitempty"`
	MaxAngle      *float64 `yaml:"max_angle,omitempty"`
	MinPulseUs    *float64 `yaml:"min_pulse_us,omitempty"`
	MaxPulseUs    *float64 `yaml:"max_pulse_us,omitempty"`
	DeadbandDeg   *float64 `yaml:"deadband_deg,omitempty"`
	SlewDegPerSec *float64 `yaml:"slew_deg_per_sec,omitempty"` // 0 = unlimited
}

type GuardConfig struct {
	Threshold int `yaml:"threshold"`  // pings to switch power on
	TimeoutMs int `yaml:"timeout_ms"` // silence before power is cut
}

// Default returns a normalized configuration for device
func Default(device string) *Config {
	cfg := &Config{Serial: SerialConfig{Device: device}}
	Normalize(cfg)
	return cfg
}

// Load reads, validates and normalizes the configuration at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, rejecting unknown keys, then validates and normalizes it
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	Normalize(&cfg)
	return &cfg, nil
}

// ResendInterval returns the redundant send period
func (c *Config) ResendInterval() time.Duration {
	return time.Duration(c.ResendIntervalMs) * time.Millisecond
}

// PortConfig builds the serial port configuration
func (c *Config) PortConfig() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeoutMs,
		Driver:      c.Serial.Driver,
	}
}

// Controller converts an axis to the controller form. Call after Normalize.
func (a AxisConfig) Controller() autobend.AxisConfig {
	cfg := autobend.DefaultAxisConfig()
	if a.Kp != nil {
		cfg.Kp = *a.Kp
	}
	cfg.Ki = a.Ki
	cfg.Kd = a.Kd
	if a.DeadbandPx != nil {
		cfg.Deadband = *a.DeadbandPx
	}
	if a.CutoffHz != nil {
		cfg.DerivativeCutoffHz = *a.CutoffHz
	}
	if a.PxPerUnit > 0 {
		cfg.UnitsPerMeasurement = 1 / a.PxPerUnit
	}
	cfg.OutputLimit = a.OutputLimit
	return cfg
}

// Core converts a channel to the actuation layer form
func (c ChannelConfig) Core() core.ChannelConfig {
	out := core.DefaultChannelConfig()
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&out.MinAngle, c.MinAngle)
	set(&out.MaxAngle, c.MaxAngle)
	set(&out.MinPulseUs, c.MinPulseUs)
	set(&out.MaxPulseUs, c.MaxPulseUs)
	set(&out.DeadbandDeg, c.DeadbandDeg)
	set(&out.SlewRateDegPerSec, c.SlewDegPerSec)
	return out.Normalize()
}

// DeviceConfig builds the device description matching this host
// configuration. Call after Normalize.
func (c *Config) DeviceConfig() core.DeviceConfig {
	dev := core.DefaultDeviceConfig()
	dev.CommandLen = c.Payload.TxLen
	dev.TelemetryLen = c.Payload.RxLen
	dev.AccumulatorLimit = c.AccumulatorLimit
	if len(c.Channels) > 0 {
		dev.Channels = make([]core.ChannelConfig, len(c.Channels))
		for i, ch := range c.Channels {
			dev.Channels[i] = ch.Core()
		}
	}
	dev.Guard = core.GuardConfig{
		ActivationThreshold: uint32(c.Guard.Threshold),
		Timeout:             time.Duration(c.Guard.TimeoutMs) * time.Millisecond,
	}
	return dev
}

// Dump renders cfg back to YAML
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
