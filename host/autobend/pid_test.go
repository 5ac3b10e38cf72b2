package autobend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func unitAxis() AxisConfig {
	return AxisConfig{Kp: 1, UnitsPerMeasurement: 1}
}

func TestAxisProportional(t *testing.T) {
	a := NewAxis(unitAxis())
	assert.Equal(t, 10.0, a.Step(10, 0.1))
}

func TestAxisDeadband(t *testing.T) {
	cfg := unitAxis()
	cfg.Deadband = 2
	a := NewAxis(cfg)

	assert.Equal(t, 0.0, a.Step(1, 0.1))
	assert.Equal(t, 0.0, a.Integrator())
	assert.Equal(t, -2.0, a.Step(-2, 0.1), "deadband is exclusive")
}

func TestAxisIntegral(t *testing.T) {
	a := NewAxis(AxisConfig{Ki: 2, UnitsPerMeasurement: 0.5})

	// e = 4*0.5 = 2; I += 2*2*0.1
	assert.InDelta(t, 0.4, a.Step(4, 0.1), 1e-12)
	assert.InDelta(t, 0.8, a.Step(4, 0.1), 1e-12)

	// dt <= 0 does not integrate
	assert.InDelta(t, 0.8, a.Step(4, 0), 1e-12)
}

func TestAxisFilteredDerivative(t *testing.T) {
	cfg := AxisConfig{Kd: 1, DerivativeCutoffHz: 5, UnitsPerMeasurement: 1}
	a := NewAxis(cfg)
	dt := 0.02
	alpha := 1.0 / (1.0 + 2*math.Pi*5*dt)

	// raw derivative 10/0.02 = 500, filtered from 0
	want := (1 - alpha) * 500
	assert.InDelta(t, want, a.Step(10, dt), 1e-9)

	// constant error: raw derivative 0, filter decays
	want = alpha * want
	assert.InDelta(t, want, a.Step(10, dt), 1e-9)
}

func TestAxisDerivativeSkippedWithoutKd(t *testing.T) {
	a := NewAxis(AxisConfig{Kp: 1, DerivativeCutoffHz: 5, UnitsPerMeasurement: 1})
	a.Step(10, 0.02)
	assert.Equal(t, 0.0, a.dFiltered)
	assert.Equal(t, 10.0, a.prevError)
}

func TestAxisOutputLimit(t *testing.T) {
	cfg := unitAxis()
	a := NewAxis(cfg)
	assert.Equal(t, 500.0, a.Step(500, 0.02), "unclamped by default")

	cfg.OutputLimit = 2
	a = NewAxis(cfg)
	assert.Equal(t, 2.0, a.Step(500, 0.02))
	assert.Equal(t, -2.0, a.Step(-500, 0.02))
}

func TestAxisDisabled(t *testing.T) {
	a := NewAxis(AxisConfig{Kp: 1, Ki: 1, UnitsPerMeasurement: 1})
	a.Step(5, 0.1)
	before := *a

	a.enabled = false
	assert.Equal(t, 0.0, a.Step(100, 0.1))
	assert.Equal(t, before.integrator, a.integrator)
	assert.Equal(t, before.prevError, a.prevError)

	a.SetEnabled(false)
	assert.Equal(t, 0.0, a.Integrator())
	assert.False(t, a.Enabled())
}

func TestAxisSetters(t *testing.T) {
	a := NewAxis(DefaultAxisConfig())
	a.SetGains(1, 2, 3)
	a.SetDeadband(-4)

	cfg := a.Config()
	assert.Equal(t, 1.0, cfg.Kp)
	assert.Equal(t, 2.0, cfg.Ki)
	assert.Equal(t, 3.0, cfg.Kd)
	assert.Equal(t, 0.0, cfg.Deadband)
}
