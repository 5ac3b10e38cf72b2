package core

import (
	"errors"
	"fmt"
	"math"
	"time"

	"bendlink/timeutil"
)

const (
	// AnalogMax is the top of the raw analog input range
	AnalogMax = 1023

	// nominalSlewDt replaces an elapsed time that is non-positive or stale
	nominalSlewDt = 0.01
	maxSlewDt     = 0.2
)

var ErrChannel = errors.New("invalid servo channel")

// ChannelConfig describes one servo output
type ChannelConfig struct {
	MinAngle   float64 // degrees
	MaxAngle   float64
	MinPulseUs float64 // pulse width at MinAngle
	MaxPulseUs float64 // pulse width at MaxAngle

	// DeadbandDeg suppresses moves smaller than this relative to the last output
	DeadbandDeg float64

	// SlewRateDegPerSec caps the speed of the output. Zero or negative means
	// unlimited.
	SlewRateDegPerSec float64
}

// DefaultChannelConfig returns a standard hobby servo: 0..180 degrees on
// 500..2500 us with a half degree deadband.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		MinAngle:    0,
		MaxAngle:    180,
		MinPulseUs:  500,
		MaxPulseUs:  2500,
		DeadbandDeg: 0.5,
	}
}

// Normalize swaps inverted ranges, bounds the pulse range to what a uint16
// can carry and clamps the deadband to 0..180.
func (c ChannelConfig) Normalize() ChannelConfig {
	c.MinPulseUs = clamp(c.MinPulseUs, 0, math.MaxUint16)
	c.MaxPulseUs = clamp(c.MaxPulseUs, 0, math.MaxUint16)
	if c.MaxAngle < c.MinAngle {
		c.MinAngle, c.MaxAngle = c.MaxAngle, c.MinAngle
	}
	if c.MaxPulseUs < c.MinPulseUs {
		c.MinPulseUs, c.MaxPulseUs = c.MaxPulseUs, c.MinPulseUs
	}
	c.DeadbandDeg = clamp(c.DeadbandDeg, 0, 180)
	return c
}

// PulseFor maps angle linearly from the angle range onto the pulse range and
// rounds to the nearest microsecond. The angle is clamped first.
func (c ChannelConfig) PulseFor(angle float64) uint16 {
	span := c.MaxAngle - c.MinAngle
	if span == 0 {
		return uint16(math.Round(c.MinPulseUs))
	}
	angle = clamp(angle, c.MinAngle, c.MaxAngle)
	us := c.MinPulseUs + (angle-c.MinAngle)/span*(c.MaxPulseUs-c.MinPulseUs)
	return uint16(math.Round(us))
}

type servoChannel struct {
	cfg ChannelConfig

	hasLast   bool
	lastAngle float64
	lastPulse uint16
	lastTime  time.Time
}

// ServoArray is the actuation safety layer. Every command is clamped to the
// channel's angle range, deadbanded and slew limited against the previous
// output before it reaches the PulseDriver.
type ServoArray struct {
	driver   PulseDriver
	clock    timeutil.Clock
	channels []servoChannel
}

// NewServoArray creates one channel per config. A nil clock selects the real
// clock.
func NewServoArray(driver PulseDriver, clock timeutil.Clock, cfgs ...ChannelConfig) *ServoArray {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &ServoArray{
		driver:   driver,
		clock:    clock,
		channels: make([]servoChannel, len(cfgs)),
	}
	for i, cfg := range cfgs {
		s.channels[i].cfg = cfg.Normalize()
	}
	return s
}

// Len returns the number of channels
func (s *ServoArray) Len() int { return len(s.channels) }

func (s *ServoArray) channel(ch int) (*servoChannel, error) {
	if ch < 0 || ch >= len(s.channels) {
		return nil, fmt.Errorf("%w: %d", ErrChannel, ch)
	}
	return &s.channels[ch], nil
}

// RotateTo commands channel ch towards angle degrees
func (s *ServoArray) RotateTo(ch int, angle float64) error {
	c, err := s.channel(ch)
	if err != nil {
		return err
	}
	cfg := c.cfg
	now := s.clock.Now()

	target := clamp(angle, cfg.MinAngle, cfg.MaxAngle)

	// The first command has nothing to deadband or slew against
	if c.hasLast {
		if math.Abs(target-c.lastAngle) < cfg.DeadbandDeg {
			target = c.lastAngle
		}

		if cfg.SlewRateDegPerSec > 0 {
			dt := now.Sub(c.lastTime).Seconds()
			if dt <= 0 || dt > maxSlewDt {
				dt = nominalSlewDt
			}
			maxStep := cfg.SlewRateDegPerSec * dt
			target = c.lastAngle + clamp(target-c.lastAngle, -maxStep, maxStep)
		}
		target = clamp(target, cfg.MinAngle, cfg.MaxAngle)
	}

	us := cfg.PulseFor(target)
	c.lastTime = now
	if err := s.driver.SetPulseWidth(ch, us); err != nil {
		return fmt.Errorf("servo %d: %w", ch, err)
	}

	c.hasLast = true
	c.lastAngle = target
	c.lastPulse = us
	return nil
}

// RotateAnalog maps a raw 0..AnalogMax reading onto the angle range
func (s *ServoArray) RotateAnalog(ch int, raw float64) error {
	c, err := s.channel(ch)
	if err != nil {
		return err
	}
	raw = clamp(raw, 0, AnalogMax)
	angle := c.cfg.MinAngle + raw/AnalogMax*(c.cfg.MaxAngle-c.cfg.MinAngle)
	return s.RotateTo(ch, angle)
}

func (s *ServoArray) RotateToMax(ch int) error {
	c, err := s.channel(ch)
	if err != nil {
		return err
	}
	return s.RotateTo(ch, c.cfg.MaxAngle)
}

func (s *ServoArray) RotateToMin(ch int) error {
	c, err := s.channel(ch)
	if err != nil {
		return err
	}
	return s.RotateTo(ch, c.cfg.MinAngle)
}

// LastAngle returns the last commanded angle; ok is false before the first
// successful command or for an unknown channel.
func (s *ServoArray) LastAngle(ch int) (angle float64, ok bool) {
	c, err := s.channel(ch)
	if err != nil || !c.hasLast {
		return 0, false
	}
	return c.lastAngle, true
}

// LastPulse returns the last pulse width sent on ch
func (s *ServoArray) LastPulse(ch int) uint16 {
	c, err := s.channel(ch)
	if err != nil {
		return 0
	}
	return c.lastPulse
}

// Config returns the normalized configuration of ch
func (s *ServoArray) Config(ch int) (ChannelConfig, error) {
	c, err := s.channel(ch)
	if err != nil {
		return ChannelConfig{}, err
	}
	return c.cfg, nil
}

// SetAngleRange sets the angle limits of ch, swapping them if inverted
func (s *ServoArray) SetAngleRange(ch int, minDeg, maxDeg float64) error {
	c, err := s.channel(ch)
	if err != nil {
		return err
	}
	c.cfg.MinAngle, c.cfg.MaxAngle = minDeg, maxDeg
	c.cfg = c.cfg.Normalize()
	return nil
}

// SetPulseRange sets the pulse limits of ch, swapping them if inverted
func (s *ServoArray) SetPulseRange(ch int, minUs, maxUs float64) error {
	c, err := s.channel(ch)
	if err != nil {
		return err
	}
	c.cfg.MinPulseUs, c.cfg.MaxPulseUs = minUs, maxUs
	c.cfg = c.cfg.Normalize()
	return nil
}

// SetDeadband sets the deadband of every channel, clamped to 0..180 degrees
func (s *ServoArray) SetDeadband(deg float64) {
	for i := range s.channels {
		s.channels[i].cfg.DeadbandDeg = clamp(deg, 0, 180)
	}
}

// SetSlewRate sets the slew limit of every channel. Negative disables it.
func (s *ServoArray) SetSlewRate(degPerSec float64) {
	if degPerSec < 0 {
		degPerSec = 0
	}
	for i := range s.channels {
		s.channels[i].cfg.SlewRateDegPerSec = degPerSec
	}
}

// Detach stops the pulse train on ch and forgets its history
func (s *ServoArray) Detach(ch int) error {
	c, err := s.channel(ch)
	if err != nil {
		return err
	}
	c.hasLast = false
	c.lastPulse = 0
	return s.driver.SetPulseWidth(ch, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
