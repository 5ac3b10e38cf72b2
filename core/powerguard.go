package core

import (
	"time"

	"bendlink/timeutil"
)

// GuardConfig configures the link watchdog
type GuardConfig struct {
	// ActivationThreshold is the number of pings needed to switch power on
	ActivationThreshold uint32
	// Timeout is the silence after which power is cut
	Timeout time.Duration
}

// DefaultGuardConfig returns 5 pings to arm and a one second timeout
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		ActivationThreshold: 5,
		Timeout:             1000 * time.Millisecond,
	}
}

// PowerGuard gates actuator power on host liveness. Power comes on after
// ActivationThreshold pings and goes off again when no ping arrives within
// Timeout.
type PowerGuard struct {
	cfg   GuardConfig
	sw    PowerSwitch
	clock timeutil.Clock

	powerOn  bool
	count    uint32
	lastPing time.Time

	// SwitchErrors counts failed relay writes; the state still changes
	SwitchErrors uint32
}

// NewPowerGuard creates a disarmed guard and drives the switch off.
// A nil clock selects the real clock.
func NewPowerGuard(cfg GuardConfig, sw PowerSwitch, clock timeutil.Clock) *PowerGuard {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.ActivationThreshold == 0 {
		cfg.ActivationThreshold = 1
	}
	g := &PowerGuard{cfg: cfg, sw: sw, clock: clock}
	g.lastPing = clock.Now()
	g.setSwitch(false)
	return g
}

// Ping records host activity
func (g *PowerGuard) Ping() {
	g.lastPing = g.clock.Now()
	if g.powerOn {
		return
	}
	g.count++
	if g.count >= g.cfg.ActivationThreshold {
		g.powerOn = true
		g.setSwitch(true)
	}
}

// Tick cuts power when the host has been silent longer than the timeout.
// Call it from every loop iteration.
func (g *PowerGuard) Tick() {
	if !g.powerOn {
		return
	}
	if g.clock.Since(g.lastPing) > g.cfg.Timeout {
		g.shutdown()
	}
}

// ForceShutdown cuts power immediately
func (g *PowerGuard) ForceShutdown() {
	if g.powerOn {
		g.shutdown()
	}
}

func (g *PowerGuard) shutdown() {
	g.powerOn = false
	g.count = 0
	g.setSwitch(false)
}

func (g *PowerGuard) setSwitch(on bool) {
	if g.sw == nil {
		return
	}
	if err := g.sw.SetPower(on); err != nil {
		g.SwitchErrors++
	}
}

func (g *PowerGuard) IsPowerOn() bool { return g.powerOn }

// ActivationCount returns the pings seen since power was last cut
func (g *PowerGuard) ActivationCount() uint32 { return g.count }

// SetTimeout changes the silence timeout
func (g *PowerGuard) SetTimeout(d time.Duration) { g.cfg.Timeout = d }

// SetActivationThreshold changes the number of pings needed to arm
func (g *PowerGuard) SetActivationThreshold(n uint32) {
	if n == 0 {
		n = 1
	}
	g.cfg.ActivationThreshold = n
}
