package main

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"bendlink/core"
	"bendlink/host/serial"
	"bendlink/timeutil"
)

const simReportInterval = 50 * time.Millisecond

// simulator opens an in-process device on the far end of a pipe instead of a
// real serial port
type simulator struct {
	cfg    core.DeviceConfig
	logger *slog.Logger
	clock  timeutil.Clock

	mu      sync.Mutex
	devices []*simDevice
}

func newSimulator(cfg core.DeviceConfig, logger *slog.Logger, clock timeutil.Clock) *simulator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &simulator{cfg: cfg, logger: logger, clock: clock}
}

// open satisfies serial.Opener
func (s *simulator) open(cfg *serial.Config) (serial.Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, errors.New("no device")
	}
	host, far := serial.Pipe()
	log := s.logger.With("sim", cfg.Device)

	pulses := core.PulseDriverFunc(func(ch int, us uint16) error {
		log.Debug("pulse", "channel", ch, "us", us)
		return nil
	})
	power := powerFunc(func(on bool) error {
		log.Info("servo power", "on", on)
		return nil
	})

	dev, err := core.NewDevice(s.cfg, pulses, power, s.clock, far)
	if err != nil {
		host.Close()
		far.Close()
		return nil, err
	}
	dev.SetErrorHandler(func(err error) {
		log.Debug("device framing error", "error", err)
	})

	d := &simDevice{dev: dev, port: far, done: make(chan struct{})}
	d.wg.Add(2)
	go d.readLoop()
	go d.reportLoop(s.clock)

	s.mu.Lock()
	s.devices = append(s.devices, d)
	s.mu.Unlock()
	return host, nil
}

// Close stops every simulated device
func (s *simulator) Close() {
	s.mu.Lock()
	devices := s.devices
	s.devices = nil
	s.mu.Unlock()
	for _, d := range devices {
		d.close()
	}
}

type powerFunc func(on bool) error

func (f powerFunc) SetPower(on bool) error { return f(on) }

type simDevice struct {
	mu   sync.Mutex
	dev  *core.Device
	port serial.Port

	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

func (d *simDevice) readLoop() {
	defer d.wg.Done()
	buf := make([]byte, 64)
	for {
		n, err := d.port.Read(buf)
		if n > 0 {
			d.mu.Lock()
			d.dev.Feed(buf[:n])
			d.mu.Unlock()
		}
		if err != nil {
			d.stop()
			return
		}
	}
}

func (d *simDevice) reportLoop(clock timeutil.Clock) {
	defer d.wg.Done()
	ticker := clock.NewTicker(simReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C():
			d.mu.Lock()
			d.dev.Tick()
			err := d.dev.Report()
			d.mu.Unlock()
			if errors.Is(err, io.ErrClosedPipe) {
				d.stop()
				return
			}
		}
	}
}

func (d *simDevice) stop() {
	d.once.Do(func() { close(d.done) })
}

func (d *simDevice) close() {
	d.stop()
	d.port.Close()
	d.wg.Wait()
}

// snapshot returns the device stats under the loop lock
func (d *simDevice) snapshot() core.DeviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.Stats()
}
