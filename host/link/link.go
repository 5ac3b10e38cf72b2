// Package link is the host end of the positioner serial link. It owns one
// serial port at a time, keeps the outgoing command payload, and turns the
// incoming byte stream into telemetry payloads on a background reader.
package link

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bendlink/host/serial"
	"bendlink/protocol"
	"bendlink/timeutil"
)

// ErrLink marks errors from the underlying transport
var ErrLink = errors.New("link error")

const (
	readBufferSize     = 256
	readErrorBackoff   = 10 * time.Millisecond
	defaultPayloadSlot = 16
)

// Option configures a Link
type Option func(*Link)

// WithOpener replaces the serial port opener (tests, simulators)
func WithOpener(o serial.Opener) Option {
	return func(l *Link) { l.opener = o }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Link) { l.logger = logger }
}

// WithClock sets the clock used for read error backoff
func WithClock(c timeutil.Clock) Option {
	return func(l *Link) { l.clock = c }
}

// WithDriver selects the serial backend
func WithDriver(name string) Option {
	return func(l *Link) { l.driver = name }
}

// WithReadTimeout sets the port read timeout
func WithReadTimeout(d time.Duration) Option {
	return func(l *Link) { l.readTimeout = d }
}

// WithAccumulatorLimit bounds the receive accumulator
func WithAccumulatorLimit(n int) Option {
	return func(l *Link) { l.accLimit = n }
}

// WithWireLogging logs raw port traffic at debug level
func WithWireLogging(opts serial.LogOption) Option {
	return func(l *Link) { l.wireLog = opts }
}

// WithPayloadBuffer sets the capacity of the Payloads channel
func WithPayloadBuffer(n int) Option {
	return func(l *Link) { l.payloadSlots = n }
}

// Link is safe for concurrent use. Handlers run on the reader goroutine and
// must not block.
type Link struct {
	opener       serial.Opener
	logger       *slog.Logger
	clock        timeutil.Clock
	driver       string
	readTimeout  time.Duration
	accLimit     int
	wireLog      serial.LogOption
	payloadSlots int

	// lifeMu serializes Open and Close
	lifeMu sync.Mutex

	mu        sync.Mutex
	port      serial.Port
	name      string
	sessionID string
	log       *slog.Logger
	stop      chan struct{}
	done      chan struct{}
	latest    []byte
	stats     protocol.SessionStats
	onPayload protocol.PayloadHandler
	onError   protocol.ErrorHandler

	// txMu guards the command payload and serializes writes
	txMu     sync.Mutex
	tx       protocol.Payload
	frameBuf []byte

	// session is only touched by the reader goroutine, or while it is stopped
	session  *protocol.Session
	payloads chan []byte
}

// New creates a closed link for command payloads of txLen bytes and telemetry
// payloads of rxLen bytes.
func New(txLen, rxLen int, opts ...Option) (*Link, error) {
	tx, err := protocol.NewPayload(txLen)
	if err != nil {
		return nil, fmt.Errorf("tx %w", err)
	}

	l := &Link{
		opener:       serial.Open,
		clock:        timeutil.RealClock{},
		driver:       serial.DriverTarm,
		readTimeout:  100 * time.Millisecond,
		payloadSlots: defaultPayloadSlot,
		tx:           tx,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.payloadSlots <= 0 {
		l.payloadSlots = defaultPayloadSlot
	}
	l.log = l.logger

	l.session, err = protocol.NewSession(rxLen, l.accLimit, l.deliver)
	if err != nil {
		return nil, err
	}
	l.session.SetErrorHandler(l.report)
	l.payloads = make(chan []byte, l.payloadSlots)
	l.frameBuf = make([]byte, 0, protocol.MaxEncodedLength(txLen)+1)
	return l, nil
}

// Open binds the link to the named port at baud, 8N1, and starts the reader.
// Opening an open link is a no-op.
func (l *Link) Open(name string, baud int) error {
	if name == "" {
		return fmt.Errorf("port name cannot be empty")
	}

	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()

	if l.IsOpen() {
		return nil
	}

	port, err := l.opener(&serial.Config{
		Device:      name,
		Baud:        baud,
		ReadTimeout: int(l.readTimeout / time.Millisecond),
		Driver:      l.driver,
	})
	if err != nil {
		return fmt.Errorf("failed to open link: %w", err)
	}

	id := uuid.NewString()
	log := l.logger.With("session", id, "port", name)
	if l.wireLog != serial.LogNone {
		port = serial.NewLoggedPort(port, log, slog.LevelDebug, l.wireLog)
	}
	if err := port.Flush(); err != nil {
		log.Debug("flush on open failed", "error", err)
	}

	// A reader that lost its peer may still be unwinding
	l.mu.Lock()
	prevDone := l.done
	l.mu.Unlock()
	if prevDone != nil {
		<-prevDone
	}

	l.session.Reset()
	stop := make(chan struct{})
	done := make(chan struct{})

	l.mu.Lock()
	l.port = port
	l.name = name
	l.sessionID = id
	l.log = log
	l.stop = stop
	l.done = done
	l.mu.Unlock()

	go l.readLoop(port, stop, done)

	log.Info("link opened", "baud", baud)
	return nil
}

// Close stops the reader, closes the port and discards any partial frame.
// Closing a closed link is a no-op.
func (l *Link) Close() error {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()

	l.mu.Lock()
	port, stop, done, log := l.port, l.stop, l.done, l.log
	l.port = nil
	l.mu.Unlock()

	if port == nil {
		return nil
	}

	close(stop)
	err := port.Close() // unblocks a pending Read
	<-done

	l.session.Reset()
	log.Info("link closed")
	return err
}

// IsOpen reports whether a port is bound
func (l *Link) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// SessionID identifies the current open period in logs; empty before the
// first Open.
func (l *Link) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID
}

// SetMessage writes chunk into the command payload at pos
func (l *Link) SetMessage(pos int, chunk []byte) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	return l.tx.SetRange(pos, chunk)
}

// Message returns a copy of the command payload
func (l *Link) Message() []byte {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	return l.tx.Bytes()
}

// UpdateMessage runs fn on the command payload under the payload lock
func (l *Link) UpdateMessage(fn func(p protocol.Payload) error) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	return fn(l.tx)
}

// Send encodes the command payload and writes one frame. It does not retry.
func (l *Link) Send() error {
	l.mu.Lock()
	port, log := l.port, l.log
	l.mu.Unlock()
	if port == nil {
		return protocol.ErrNotOpen
	}

	l.txMu.Lock()
	defer l.txMu.Unlock()

	frame, err := protocol.AppendFrame(l.frameBuf[:0], l.tx.Bytes())
	if err != nil {
		return err
	}
	l.frameBuf = frame

	n, err := port.Write(frame)
	if err != nil {
		log.Warn("send failed", "written", n, "expected", len(frame), "error", err)
		return fmt.Errorf("%w: write: %w", ErrLink, err)
	}
	if n != len(frame) {
		log.Warn("short write", "written", n, "expected", len(frame))
		return &protocol.ShortWriteError{Written: n, Expected: len(frame)}
	}
	return nil
}

// Latest returns a copy of the most recent telemetry payload, or nil
func (l *Link) Latest() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest == nil {
		return nil
	}
	out := make([]byte, len(l.latest))
	copy(out, l.latest)
	return out
}

// Payloads delivers received payloads. When the consumer falls behind the
// oldest queued payload is dropped.
func (l *Link) Payloads() <-chan []byte {
	return l.payloads
}

func (l *Link) SetPayloadHandler(handler protocol.PayloadHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onPayload = handler
}

// SetErrorHandler receives framing errors and transport errors (ErrLink)
func (l *Link) SetErrorHandler(handler protocol.ErrorHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onError = handler
}

// Stats returns the receive counters
func (l *Link) Stats() protocol.SessionStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// readLoop continuously reads from the port and feeds the session
func (l *Link) readLoop(port serial.Port, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	buffer := make([]byte, readBufferSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := port.Read(buffer)
		if n > 0 {
			l.session.Feed(buffer[:n])
			l.mu.Lock()
			l.stats = l.session.Stats()
			l.mu.Unlock()
		}
		if err == nil {
			continue
		}

		select {
		case <-stop:
			return
		default:
		}

		l.report(fmt.Errorf("%w: read: %w", ErrLink, err))
		if errors.Is(err, io.EOF) {
			l.detach(port)
			return
		}
		l.clock.Sleep(readErrorBackoff)
	}
}

// detach unbinds port after the peer went away so that a later Open binds a
// fresh one. It does nothing if Close already took the port.
func (l *Link) detach(port serial.Port) {
	l.mu.Lock()
	if l.port != port {
		l.mu.Unlock()
		return
	}
	l.port = nil
	log := l.log
	l.mu.Unlock()

	if err := port.Close(); err != nil {
		log.Debug("close after peer loss failed", "error", err)
	}
	log.Warn("link lost, port closed")
}

func (l *Link) deliver(payload []byte) {
	latest := make([]byte, len(payload))
	copy(latest, payload)
	out := make([]byte, len(payload))
	copy(out, payload)

	l.mu.Lock()
	l.latest = latest
	handler := l.onPayload
	l.mu.Unlock()

	if handler != nil {
		handler(payload)
	}

	select {
	case l.payloads <- out:
	default:
		// Channel full, drop oldest
		select {
		case <-l.payloads:
		default:
		}
		select {
		case l.payloads <- out:
		default:
		}
	}
}

func (l *Link) report(err error) {
	l.mu.Lock()
	handler, log := l.onError, l.log
	l.mu.Unlock()

	log.Warn("link receive error", "error", err)
	if handler != nil {
		handler(err)
	}
}
