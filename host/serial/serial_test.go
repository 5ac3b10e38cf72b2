package serial

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	assert.Equal(t, "/dev/ttyACM0", cfg.Device)
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, DriverTarm, cfg.Driver)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)

	_, err = Open(&Config{Baud: 9600})
	assert.Error(t, err)

	_, err = Open(&Config{Device: "/dev/null", Driver: "usb-magic"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOpenMissingDevice(t *testing.T) {
	for _, driver := range []string{DriverTarm, DriverBugst} {
		_, err := Open(&Config{Device: "/dev/does-not-exist-bendlink", Baud: 9600, Driver: driver})
		assert.Error(t, err, driver)
	}
}

func TestBugstMode(t *testing.T) {
	m := Mode(57600)
	assert.Equal(t, 57600, m.BaudRate)
	assert.Equal(t, 8, m.DataBits)
}

func TestPipe(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		a.Write([]byte{1, 2, 3})
	}()

	buf := make([]byte, 3)
	_, err := io.ReadFull(b, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf)
	assert.NoError(t, b.Flush())
}
