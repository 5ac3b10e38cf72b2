package config

import (
	"fmt"
	"math"

	"bendlink/host/serial"
	"bendlink/protocol"
)

// ConfigError reports an invalid configuration value
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
// Zero values are allowed; Normalize replaces them with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return invalid("", "missing configuration")
	}

	// ------------------------------------------------------------
	// LINK
	// ------------------------------------------------------------

	if cfg.Serial.Baud < 0 {
		return invalid("serial.baud", "must be positive, got %d", cfg.Serial.Baud)
	}
	switch cfg.Serial.Driver {
	case "", serial.DriverTarm, serial.DriverBugst:
	default:
		return invalid("serial.driver", "unknown driver %q (expected %s or %s)",
			cfg.Serial.Driver, serial.DriverTarm, serial.DriverBugst)
	}
	if cfg.Serial.ReadTimeoutMs < 0 {
		return invalid("serial.read_timeout_ms", "must not be negative")
	}

	// Payload lengths are fixed by the firmware; a negative value is a
	// construction error, not something to default.
	if cfg.Payload.TxLen < 0 {
		return invalid("payload.tx_len", "must be positive, got %d", cfg.Payload.TxLen)
	}
	if cfg.Payload.RxLen < 0 {
		return invalid("payload.rx_len", "must be positive, got %d", cfg.Payload.RxLen)
	}
	if cfg.Payload.TxLen != 0 && cfg.Payload.TxLen < 4 {
		return invalid("payload.tx_len", "needs room for two angles, got %d", cfg.Payload.TxLen)
	}
	if cfg.Payload.RxLen != 0 && cfg.Payload.RxLen < protocol.TelemetryMinLen {
		return invalid("payload.rx_len", "needs room for the telemetry fields (%d bytes), got %d",
			protocol.TelemetryMinLen, cfg.Payload.RxLen)
	}
	if cfg.AccumulatorLimit < 0 {
		return invalid("accumulator_limit", "must not be negative")
	}
	if cfg.ResendIntervalMs < 0 {
		return invalid("resend_interval_ms", "must not be negative")
	}

	// ------------------------------------------------------------
	// CONTROL
	// ------------------------------------------------------------

	for name, a := range map[string]AxisConfig{"x": cfg.Axes.X, "y": cfg.Axes.Y} {
		prefix := "axes." + name
		if a.DeadbandPx != nil && *a.DeadbandPx < 0 {
			return invalid(prefix+".deadband_px", "must not be negative")
		}
		if a.CutoffHz != nil && *a.CutoffHz < 0 {
			return invalid(prefix+".cutoff_hz", "must not be negative")
		}
		if a.PxPerUnit < 0 {
			return invalid(prefix+".px_per_unit", "must not be negative")
		}
		if a.OutputLimit < 0 {
			return invalid(prefix+".output_limit", "must not be negative")
		}
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	if len(cfg.Channels) > 2 {
		return invalid("channels", "at most 2 channels (vertical, horizontal), got %d", len(cfg.Channels))
	}
	for i, ch := range cfg.Channels {
		prefix := fmt.Sprintf("channels[%d]", i)
		for name, v := range map[string]*float64{"min_pulse_us": ch.MinPulseUs, "max_pulse_us": ch.MaxPulseUs} {
			if v != nil && (*v < 0 || *v > math.MaxUint16) {
				return invalid(prefix+"."+name, "%.0f outside 0..%d", *v, math.MaxUint16)
			}
		}
		if ch.DeadbandDeg != nil && *ch.DeadbandDeg < 0 {
			return invalid(prefix+".deadband_deg", "must not be negative")
		}
		if ch.SlewDegPerSec != nil && *ch.SlewDegPerSec < 0 {
			return invalid(prefix+".slew_deg_per_sec", "must not be negative")
		}
	}
	if cfg.Guard.Threshold < 0 {
		return invalid("guard.threshold", "must not be negative")
	}
	if cfg.Guard.TimeoutMs < 0 {
		return invalid("guard.timeout_ms", "must not be negative")
	}

	// ------------------------------------------------------------
	// ANGLES
	// ------------------------------------------------------------

	if cfg.Angles.Step < 0 {
		return invalid("angles.step", "must not be negative")
	}
	lo, hi := cfg.Angles.Min, cfg.Angles.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	if cfg.Angles.Initial != 0 && (lo != 0 || hi != 0) && (cfg.Angles.Initial < lo || cfg.Angles.Initial > hi) {
		return invalid("angles.initial", "%.1f outside %.1f..%.1f", cfg.Angles.Initial, lo, hi)
	}
	return nil
}
