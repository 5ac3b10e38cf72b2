package autobend

import "math"

// AxisConfig holds the tuning of one PID axis
type AxisConfig struct {
	Kp, Ki, Kd float64

	// Deadband in measurement units (pixels). Errors with a smaller magnitude
	// are treated as zero.
	Deadband float64

	// DerivativeCutoffHz is the corner frequency of the one-pole filter applied
	// to the raw derivative.
	DerivativeCutoffHz float64

	// UnitsPerMeasurement converts measurement units to control units (degrees
	// per pixel). 0.04 means 25 px per degree.
	UnitsPerMeasurement float64

	// OutputLimit clamps |output| when positive. Zero leaves the output
	// unclamped and the actuation layer does the physical clamping.
	OutputLimit float64
}

// DefaultAxisConfig returns the tuning used by the bending rig
func DefaultAxisConfig() AxisConfig {
	return AxisConfig{
		Kp:                  0.01,
		Deadband:            2.0,
		DerivativeCutoffHz:  5.0,
		UnitsPerMeasurement: 1.0 / 25.0,
	}
}

// Axis is a single PID loop with deadband and a low-pass filtered derivative
type Axis struct {
	cfg AxisConfig

	enabled    bool
	integrator float64
	prevError  float64 // scaled
	dFiltered  float64
}

// NewAxis creates an enabled axis
func NewAxis(cfg AxisConfig) *Axis {
	return &Axis{cfg: cfg, enabled: true}
}

// Step runs one control tick for err (measurement units) over dt seconds
// and returns the correction in control units. A disabled axis returns 0
// and keeps its state.
func (a *Axis) Step(err, dt float64) float64 {
	if !a.enabled {
		return 0
	}

	if math.Abs(err) < a.cfg.Deadband {
		err = 0
	}
	e := err * a.cfg.UnitsPerMeasurement

	p := a.cfg.Kp * e

	if dt > 0 {
		a.integrator += a.cfg.Ki * e * dt
	}

	d := 0.0
	if dt > 0 && a.cfg.Kd > 0 {
		raw := (e - a.prevError) / dt
		alpha := 1.0 / (1.0 + 2.0*math.Pi*a.cfg.DerivativeCutoffHz*dt)
		a.dFiltered = alpha*a.dFiltered + (1.0-alpha)*raw
		d = a.cfg.Kd * a.dFiltered
	}
	a.prevError = e

	out := p + a.integrator + d
	if lim := a.cfg.OutputLimit; lim > 0 {
		out = math.Max(-lim, math.Min(lim, out))
	}
	return out
}

// Reset zeroes the integrator, derivative filter and error history
func (a *Axis) Reset() {
	a.integrator = 0
	a.prevError = 0
	a.dFiltered = 0
}

// SetEnabled turns the axis on or off. Disabling also resets it.
func (a *Axis) SetEnabled(on bool) {
	a.enabled = on
	if !on {
		a.Reset()
	}
}

func (a *Axis) Enabled() bool { return a.enabled }

// Integrator returns the accumulated integral term
func (a *Axis) Integrator() float64 { return a.integrator }

// Config returns the axis tuning
func (a *Axis) Config() AxisConfig { return a.cfg }

// SetGains replaces Kp, Ki and Kd without touching the state
func (a *Axis) SetGains(kp, ki, kd float64) {
	a.cfg.Kp, a.cfg.Ki, a.cfg.Kd = kp, ki, kd
}

// SetDeadband sets the deadband; negative values are treated as 0
func (a *Axis) SetDeadband(v float64) {
	a.cfg.Deadband = math.Max(0, v)
}
