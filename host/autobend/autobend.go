// Package autobend turns a measured image offset into angle corrections for the
// two bending axes.
package autobend

import (
	"time"

	"bendlink/timeutil"
)

const (
	// NominalDt replaces an elapsed time that is non-positive or stale
	NominalDt = 0.02
	// MaxDt is the longest elapsed time accepted as a real control interval
	MaxDt = 0.2
)

// Controller steps the X and Y axes from the wall clock.
// It is not safe for concurrent use.
type Controller struct {
	X, Y *Axis

	clock   timeutil.Clock
	last    time.Time
	started bool
	enabled bool
}

// NewController creates an enabled two-axis controller. A nil clock selects
// the real clock.
func NewController(x, y AxisConfig, clock timeutil.Clock) *Controller {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Controller{
		X:       NewAxis(x),
		Y:       NewAxis(y),
		clock:   clock,
		enabled: true,
	}
}

// Step feeds the current offsets (pixels) to both axes. The first call after
// construction or Reset only establishes the time base: it returns ok=false and
// leaves the axes untouched. A disabled controller also returns ok=false.
func (c *Controller) Step(dx, dy float64) (outX, outY float64, ok bool) {
	if !c.enabled {
		return 0, 0, false
	}

	now := c.clock.Now()
	if !c.started {
		c.started = true
		c.last = now
		return 0, 0, false
	}

	dt := now.Sub(c.last).Seconds()
	c.last = now
	if dt <= 0 || dt > MaxDt {
		dt = NominalDt
	}

	return c.X.Step(dx, dt), c.Y.Step(dy, dt), true
}

// Reset zeroes both axes and invalidates the time base
func (c *Controller) Reset() {
	c.X.Reset()
	c.Y.Reset()
	c.started = false
}

// SetEnabled turns the controller on or off. Disabling resets it.
func (c *Controller) SetEnabled(on bool) {
	c.enabled = on
	c.X.SetEnabled(on)
	c.Y.SetEnabled(on)
	if !on {
		c.Reset()
	}
}

func (c *Controller) Enabled() bool { return c.enabled }
