package link

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bendlink/host/serial"
	"bendlink/protocol"
)

const (
	testTxLen = 30
	testRxLen = 22
)

// pipeOpener hands out the host end of a fresh pipe on every open
type pipeOpener struct {
	mu      sync.Mutex
	configs []serial.Config
	devices []serial.Port
	err     error
}

func (o *pipeOpener) open(cfg *serial.Config) (serial.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	host, device := serial.Pipe()
	o.configs = append(o.configs, *cfg)
	o.devices = append(o.devices, device)
	return host, nil
}

func (o *pipeOpener) device(t *testing.T) serial.Port {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.devices)
	return o.devices[len(o.devices)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLink(t *testing.T, opts ...Option) (*Link, *pipeOpener) {
	t.Helper()
	opener := &pipeOpener{}
	opts = append([]Option{WithOpener(opener.open), WithLogger(quietLogger())}, opts...)
	l, err := New(testTxLen, testRxLen, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, opener
}

func telemetryFrame(t *testing.T, fill byte) []byte {
	t.Helper()
	payload := make([]byte, testRxLen)
	for i := range payload {
		payload[i] = fill
	}
	frame, err := protocol.AppendFrame(nil, payload)
	require.NoError(t, err)
	return frame
}

// readFrame reads one delimited frame from the device end and decodes it
func readFrame(t *testing.T, port serial.Port, payloadLen int) []byte {
	t.Helper()
	var got []byte
	s, err := protocol.NewSession(payloadLen, 0, func(p []byte) { got = p })
	require.NoError(t, err)

	buf := make([]byte, 64)
	for got == nil {
		n, err := port.Read(buf)
		require.NoError(t, err)
		s.Feed(buf[:n])
	}
	return got
}

func TestNewRejectsBadLengths(t *testing.T) {
	_, err := New(0, 22)
	assert.ErrorIs(t, err, protocol.ErrInvalidLength)
	_, err = New(30, -1)
	assert.ErrorIs(t, err, protocol.ErrInvalidLength)
}

func TestOpenClose(t *testing.T) {
	l, opener := newTestLink(t, WithDriver(serial.DriverBugst), WithReadTimeout(50*time.Millisecond))

	assert.Error(t, l.Open("", 115200))
	assert.False(t, l.IsOpen())

	require.NoError(t, l.Open("/dev/ttyUSB0", 115200))
	assert.True(t, l.IsOpen())
	first := l.SessionID()
	assert.NotEmpty(t, first)

	// Already open
	require.NoError(t, l.Open("/dev/ttyUSB1", 9600))
	require.Len(t, opener.configs, 1)
	assert.Equal(t, serial.Config{Device: "/dev/ttyUSB0", Baud: 115200, ReadTimeout: 50, Driver: serial.DriverBugst}, opener.configs[0])

	require.NoError(t, l.Close())
	assert.False(t, l.IsOpen())
	require.NoError(t, l.Close())

	// Re-open after close
	require.NoError(t, l.Open("/dev/ttyUSB0", 115200))
	assert.True(t, l.IsOpen())
	assert.NotEqual(t, first, l.SessionID())
}

func TestOpenFailure(t *testing.T) {
	l, opener := newTestLink(t)
	opener.err = errors.New("permission denied")

	err := l.Open("/dev/ttyACM0", 115200)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.False(t, l.IsOpen())
}

func TestSendNotOpen(t *testing.T) {
	l, _ := newTestLink(t)
	assert.ErrorIs(t, l.Send(), protocol.ErrNotOpen)
}

func TestSetMessage(t *testing.T) {
	l, _ := newTestLink(t)

	require.NoError(t, l.SetMessage(0, []byte{0x05, 0x46}))
	require.NoError(t, l.SetMessage(30, nil))
	assert.ErrorIs(t, l.SetMessage(29, []byte{1, 2}), protocol.ErrOutOfRange)
	assert.ErrorIs(t, l.SetMessage(-1, []byte{1}), protocol.ErrOutOfRange)

	msg := l.Message()
	assert.Len(t, msg, testTxLen)
	assert.Equal(t, []byte{0x05, 0x46, 0x00}, msg[:3])

	msg[0] = 0xFF
	assert.Equal(t, byte(0x05), l.Message()[0], "Message returns a copy")
}

func TestSendWritesFrame(t *testing.T) {
	l, opener := newTestLink(t)
	require.NoError(t, l.Open("sim", 115200))
	require.NoError(t, l.SetMessage(2, []byte{0x04, 0x51}))

	device := opener.device(t)
	errc := make(chan error, 1)
	go func() { errc <- l.Send() }()

	got := readFrame(t, device, testTxLen)
	require.NoError(t, <-errc)
	assert.Equal(t, l.Message(), got)
}

func TestReceivePayloads(t *testing.T) {
	l, opener := newTestLink(t)

	received := make(chan []byte, 4)
	l.SetPayloadHandler(func(p []byte) { received <- p })
	require.NoError(t, l.Open("sim", 115200))
	device := opener.device(t)

	wire := append(telemetryFrame(t, 0x11), telemetryFrame(t, 0x22)...)
	_, err := device.Write(wire)
	require.NoError(t, err)

	for _, fill := range []byte{0x11, 0x22} {
		select {
		case p := <-received:
			assert.Equal(t, fill, p[0])
			assert.Len(t, p, testRxLen)
		case <-time.After(2 * time.Second):
			t.Fatal("payload not delivered")
		}
	}

	assert.Equal(t, byte(0x22), l.Latest()[0])
	assert.Len(t, l.Payloads(), 2)
	require.Eventually(t, func() bool { return l.Stats().Frames == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestReceiveFramingError(t *testing.T) {
	l, opener := newTestLink(t)

	errs := make(chan error, 4)
	l.SetErrorHandler(func(err error) { errs <- err })
	require.NoError(t, l.Open("sim", 115200))
	device := opener.device(t)

	_, err := device.Write([]byte{0x02, 0x11, 0x00})
	require.NoError(t, err)

	select {
	case err := <-errs:
		var sizeErr *protocol.FrameSizeError
		require.ErrorAs(t, err, &sizeErr)
		assert.Equal(t, 2, sizeErr.Size)
		assert.Equal(t, 23, sizeErr.Min)
	case <-time.After(2 * time.Second):
		t.Fatal("framing error not reported")
	}
	assert.Nil(t, l.Latest())
}

func TestPayloadsDropOldest(t *testing.T) {
	l, opener := newTestLink(t, WithPayloadBuffer(1))
	require.NoError(t, l.Open("sim", 115200))
	device := opener.device(t)

	for _, fill := range []byte{1, 2, 3} {
		_, err := device.Write(telemetryFrame(t, fill))
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return l.Stats().Frames == 3 }, 2*time.Second, 5*time.Millisecond)

	p := <-l.Payloads()
	assert.Equal(t, byte(3), p[0])
}

func TestPeerCloseReportsLinkError(t *testing.T) {
	l, opener := newTestLink(t)

	errs := make(chan error, 4)
	l.SetErrorHandler(func(err error) { errs <- err })
	require.NoError(t, l.Open("sim", 115200))
	require.NoError(t, opener.device(t).Close())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrLink)
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("link error not reported")
	}
}

func TestPeerCloseUnbindsPort(t *testing.T) {
	l, opener := newTestLink(t)
	require.NoError(t, l.Open("sim", 115200))
	require.NoError(t, opener.device(t).Close())

	require.Eventually(t, func() bool { return !l.IsOpen() }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, l.Send(), protocol.ErrNotOpen)

	// Closing an already unbound link is fine
	require.NoError(t, l.Close())

	require.NoError(t, l.Open("sim", 115200))
	assert.True(t, l.IsOpen())
	opener.mu.Lock()
	assert.Len(t, opener.configs, 2)
	opener.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- l.Send() }()
	got := readFrame(t, opener.device(t), testTxLen)
	require.NoError(t, <-errc)
	assert.Len(t, got, testTxLen)
}

func TestCloseDiscardsPartialFrame(t *testing.T) {
	l, opener := newTestLink(t)
	received := make(chan []byte, 4)
	l.SetPayloadHandler(func(p []byte) { received <- p })

	require.NoError(t, l.Open("sim", 115200))
	frame := telemetryFrame(t, 0x33)
	_, err := opener.device(t).Write(frame[:10])
	require.NoError(t, err)
	require.NoError(t, l.Close())

	require.NoError(t, l.Open("sim", 115200))
	_, err = opener.device(t).Write(frame[10:])
	require.NoError(t, err)
	_, err = opener.device(t).Write(frame)
	require.NoError(t, err)

	select {
	case p := <-received:
		assert.Equal(t, byte(0x33), p[0])
	case <-time.After(2 * time.Second):
		t.Fatal("payload not delivered")
	}
	require.Eventually(t, func() bool { return l.Stats().FramingErrors == 1 }, 2*time.Second, 5*time.Millisecond)
}

// shortPort accepts one byte less than asked
type shortPort struct{}

func (shortPort) Read(b []byte) (int, error) {
	time.Sleep(time.Millisecond)
	return 0, nil
}
func (shortPort) Write(b []byte) (int, error) { return len(b) - 1, nil }
func (shortPort) Close() error                { return nil }
func (shortPort) Flush() error                { return nil }

func TestSendShortWrite(t *testing.T) {
	l, err := New(testTxLen, testRxLen,
		WithOpener(func(*serial.Config) (serial.Port, error) { return shortPort{}, nil }),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	require.NoError(t, l.Open("short", 115200))
	defer l.Close()

	err = l.Send()
	var sw *protocol.ShortWriteError
	require.ErrorAs(t, err, &sw)
	assert.Equal(t, sw.Expected-1, sw.Written)
	assert.ErrorIs(t, err, protocol.ErrShortWrite)
}
