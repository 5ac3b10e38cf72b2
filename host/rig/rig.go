// Package rig is the host application object for the bending rig. It holds the
// two axis angle targets, turns measured offsets into angle corrections, and
// keeps the device supplied with the current command payload.
package rig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"bendlink/host/autobend"
	"bendlink/protocol"
	"bendlink/timeutil"
)

// Axis selects a bending axis. The value is also its payload channel.
type Axis int

const (
	Vertical Axis = iota
	Horizontal
)

func (a Axis) String() string {
	switch a {
	case Vertical:
		return "vertical"
	case Horizontal:
		return "horizontal"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis accepts the axis name or its first letter
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "v", "vertical", "0":
		return Vertical, nil
	case "h", "horizontal", "1":
		return Horizontal, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Link is the part of the host link the rig drives
type Link interface {
	UpdateMessage(fn func(p protocol.Payload) error) error
	Send() error
	Latest() []byte
}

// Config holds angle limits and the redundant send period
type Config struct {
	MinAngle       float64
	MaxAngle       float64
	Step           float64
	Initial        float64
	ResendInterval time.Duration
}

// DefaultConfig matches the stock rig: 110..160 degrees, 0.5 degree steps,
// starting at 135.
func DefaultConfig() Config {
	return Config{
		MinAngle:       110,
		MaxAngle:       160,
		Step:           0.5,
		Initial:        135,
		ResendInterval: 200 * time.Millisecond,
	}
}

// Option configures a Rig
type Option func(*Rig)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Rig) { r.logger = logger }
}

func WithClock(c timeutil.Clock) Option {
	return func(r *Rig) { r.clock = c }
}

// Rig is safe for concurrent use
type Rig struct {
	link   Link
	ctrl   *autobend.Controller
	cfg    Config
	logger *slog.Logger
	clock  timeutil.Clock

	mu     sync.Mutex
	angles [2]float64
}

// New creates a rig with both axes at the initial angle. Nothing is sent until
// Start.
func New(link Link, ctrl *autobend.Controller, cfg Config, opts ...Option) (*Rig, error) {
	if link == nil {
		return nil, errors.New("rig: nil link")
	}
	if ctrl == nil {
		return nil, errors.New("rig: nil controller")
	}
	if cfg.MaxAngle < cfg.MinAngle {
		cfg.MinAngle, cfg.MaxAngle = cfg.MaxAngle, cfg.MinAngle
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultConfig().Step
	}
	if cfg.ResendInterval <= 0 {
		cfg.ResendInterval = DefaultConfig().ResendInterval
	}

	r := &Rig{
		link:  link,
		ctrl:  ctrl,
		cfg:   cfg,
		clock: timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	initial := r.clamp(cfg.Initial)
	r.angles = [2]float64{initial, initial}
	return r, nil
}

func (r *Rig) Config() Config { return r.cfg }

func (r *Rig) clamp(deg float64) float64 {
	return math.Min(math.Max(deg, r.cfg.MinAngle), r.cfg.MaxAngle)
}

func validAxis(a Axis) error {
	if a != Vertical && a != Horizontal {
		return fmt.Errorf("%w: %s", protocol.ErrOutOfRange, a)
	}
	return nil
}

// Angle returns the current target of axis
func (r *Rig) Angle(a Axis) float64 {
	if validAxis(a) != nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.angles[a]
}

// Angles returns both targets indexed by Axis
func (r *Rig) Angles() [2]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.angles
}

// Start writes both targets into the command payload and sends it twice;
// the first frame after the device resets is easily lost.
func (r *Rig) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writeLocked(); err != nil {
		return err
	}
	if err := r.link.Send(); err != nil {
		return err
	}
	return r.link.Send()
}

// SetAngle moves axis to deg, clamped to the configured range, and sends the
// payload if the target changed.
func (r *Rig) SetAngle(a Axis, deg float64) error {
	if err := validAxis(a); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.angles
	next[a] = r.clamp(deg)
	return r.commitLocked(next)
}

// Nudge moves axis one step up or down
func (r *Rig) Nudge(a Axis, positive bool) error {
	if err := validAxis(a); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	step := r.cfg.Step
	if !positive {
		step = -step
	}
	next := r.angles
	next[a] = r.clamp(next[a] + step)
	return r.commitLocked(next)
}

// ApplyOffset feeds a measured image offset in pixels to the controller. The
// horizontal offset dx corrects the horizontal axis, dy the vertical one.
// applied is false when the controller produced no output: it is disabled or
// this was the first sample after a reset.
func (r *Rig) ApplyOffset(dx, dy float64) (applied bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outX, outY, ok := r.ctrl.Step(dx, dy)
	if !ok {
		return false, nil
	}

	next := r.angles
	next[Horizontal] = r.clamp(next[Horizontal] + outX)
	next[Vertical] = r.clamp(next[Vertical] + outY)
	r.logger.Debug("offset applied",
		"dx", dx, "dy", dy, "delta_h", outX, "delta_v", outY,
		"vertical", next[Vertical], "horizontal", next[Horizontal])
	return true, r.commitLocked(next)
}

// SetAutoCorrect enables or disables offset correction. Disabling resets the
// controller state.
func (r *Rig) SetAutoCorrect(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctrl.SetEnabled(on)
}

func (r *Rig) AutoCorrect() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctrl.Enabled()
}

// ResetController clears the PID state of both axes
func (r *Rig) ResetController() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctrl.Reset()
}

func (r *Rig) commitLocked(next [2]float64) error {
	if next == r.angles {
		return nil
	}
	r.angles = next
	if err := r.writeLocked(); err != nil {
		return err
	}
	return r.link.Send()
}

func (r *Rig) writeLocked() error {
	angles := r.angles
	return r.link.UpdateMessage(func(p protocol.Payload) error {
		for ch, deg := range angles {
			if err := protocol.PutAngle(p, ch, deg); err != nil {
				return err
			}
		}
		return nil
	})
}

// Run resends the command payload every ResendInterval until ctx is done.
// Send failures are logged and do not stop the loop.
func (r *Rig) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.cfg.ResendInterval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			err := r.resend()
			switch {
			case err == nil:
				if failing {
					r.logger.Info("resend recovered")
				}
				failing = false
			case !failing:
				r.logger.Warn("resend failed", "error", err)
				failing = true
			}
		}
	}
}

func (r *Rig) resend() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.link.Send()
}

// Telemetry decodes the most recent device report. ok is false when nothing
// has been received yet.
func (r *Rig) Telemetry() (t protocol.Telemetry, ok bool, err error) {
	latest := r.link.Latest()
	if latest == nil {
		return protocol.Telemetry{}, false, nil
	}
	t, err = protocol.ParseTelemetry(latest)
	if err != nil {
		return protocol.Telemetry{}, false, err
	}
	return t, true, nil
}
