package config

import (
	"time"

	"bendlink/core"
	"bendlink/host/serial"
	"bendlink/protocol"
)

// Defaults for values left empty in the file
const (
	DefaultResendIntervalMs = 200
	DefaultMinAngle         = 110.0
	DefaultMaxAngle         = 160.0
	DefaultAngleStep        = 0.5
	DefaultInitialAngle     = 135.0
	DefaultPxPerUnit        = 25.0
)

// Normalize applies defaults and swaps inverted angle ranges.
// It is allowed to mutate configuration and must be called after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	s := &cfg.Serial
	if s.Baud == 0 {
		s.Baud = serial.DefaultBaud
	}
	if s.Driver == "" {
		s.Driver = serial.DriverTarm
	}
	if s.ReadTimeoutMs == 0 {
		s.ReadTimeoutMs = 100
	}

	if cfg.Payload.TxLen == 0 {
		cfg.Payload.TxLen = protocol.DefaultTxPayloadLen
	}
	if cfg.Payload.RxLen == 0 {
		cfg.Payload.RxLen = protocol.DefaultRxPayloadLen
	}
	if cfg.AccumulatorLimit == 0 {
		cfg.AccumulatorLimit = protocol.DefaultAccumulatorLimit
	}
	if cfg.ResendIntervalMs == 0 {
		cfg.ResendIntervalMs = DefaultResendIntervalMs
	}

	for _, a := range []*AxisConfig{&cfg.Axes.X, &cfg.Axes.Y} {
		if a.PxPerUnit == 0 {
			a.PxPerUnit = DefaultPxPerUnit
		}
	}

	guard := core.DefaultGuardConfig()
	if cfg.Guard.Threshold == 0 {
		cfg.Guard.Threshold = int(guard.ActivationThreshold)
	}
	if cfg.Guard.TimeoutMs == 0 {
		cfg.Guard.TimeoutMs = int(guard.Timeout / time.Millisecond)
	}

	ang := &cfg.Angles
	if ang.Min == 0 && ang.Max == 0 {
		ang.Min, ang.Max = DefaultMinAngle, DefaultMaxAngle
	}
	if ang.Max < ang.Min {
		ang.Min, ang.Max = ang.Max, ang.Min
	}
	if ang.Step == 0 {
		ang.Step = DefaultAngleStep
	}
	if ang.Initial == 0 {
		ang.Initial = DefaultInitialAngle
	}
	if ang.Initial < ang.Min {
		ang.Initial = ang.Min
	}
	if ang.Initial > ang.Max {
		ang.Initial = ang.Max
	}
}
