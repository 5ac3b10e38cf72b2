package autobend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bendlink/timeutil"
)

func newTestController(cfg AxisConfig) (*Controller, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewController(cfg, cfg, clock), clock
}

func TestControllerFirstStepEstablishesTimeBase(t *testing.T) {
	c, clock := newTestController(unitAxis())

	x, y, ok := c.Step(10, -10)
	assert.False(t, ok)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)

	clock.Advance(100 * time.Millisecond)
	x, y, ok = c.Step(10, -10)
	require.True(t, ok)
	assert.Equal(t, 10.0, x)
	assert.Equal(t, -10.0, y)
}

func TestControllerUsesElapsedTime(t *testing.T) {
	c, clock := newTestController(AxisConfig{Ki: 1, UnitsPerMeasurement: 1})
	c.Step(0, 0)

	clock.Advance(100 * time.Millisecond)
	x, _, ok := c.Step(10, 0)
	require.True(t, ok)
	assert.InDelta(t, 1.0, x, 1e-9)
}

func TestControllerStaleIntervalUsesNominal(t *testing.T) {
	c, clock := newTestController(AxisConfig{Ki: 1, UnitsPerMeasurement: 1})
	c.Step(0, 0)

	clock.Advance(5 * time.Second)
	x, _, ok := c.Step(10, 0)
	require.True(t, ok)
	assert.InDelta(t, 10*NominalDt, x, 1e-9)

	// Zero elapsed time
	x, _, _ = c.Step(10, 0)
	assert.InDelta(t, 20*NominalDt, x, 1e-9)
}

func TestControllerReset(t *testing.T) {
	c, clock := newTestController(AxisConfig{Kp: 1, Ki: 1, UnitsPerMeasurement: 1})
	c.Step(0, 0)
	clock.Advance(50 * time.Millisecond)
	c.Step(10, 10)
	require.NotZero(t, c.X.Integrator())

	c.Reset()
	assert.Zero(t, c.X.Integrator())
	assert.Zero(t, c.Y.Integrator())

	clock.Advance(50 * time.Millisecond)
	_, _, ok := c.Step(10, 10)
	assert.False(t, ok, "first step after reset produces no output")
}

func TestControllerDisabled(t *testing.T) {
	c, clock := newTestController(unitAxis())
	c.Step(0, 0)

	c.SetEnabled(false)
	assert.False(t, c.Enabled())
	clock.Advance(50 * time.Millisecond)
	x, y, ok := c.Step(10, 10)
	assert.False(t, ok)
	assert.Zero(t, x)
	assert.Zero(t, y)

	c.SetEnabled(true)
	_, _, ok = c.Step(10, 10)
	assert.False(t, ok, "re-enabling starts a new time base")
	clock.Advance(50 * time.Millisecond)
	x, _, ok = c.Step(10, 10)
	assert.True(t, ok)
	assert.Equal(t, 10.0, x)
}

func TestControllerNilClock(t *testing.T) {
	c := NewController(DefaultAxisConfig(), DefaultAxisConfig(), nil)
	_, _, ok := c.Step(1, 1)
	assert.False(t, ok)
}
