package protocol

import (
	"encoding/binary"
	"fmt"
)

// Payload is a fixed-length message body. Its length is set at construction and
// never changes; the contents are replaced wholesale or through bounded sub-range
// writes.
type Payload struct {
	buf []byte
}

// NewPayload creates a zeroed payload of n bytes.
func NewPayload(n int) (Payload, error) {
	if n <= 0 {
		return Payload{}, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	return Payload{buf: make([]byte, n)}, nil
}

// Len returns the fixed payload length
func (p Payload) Len() int {
	return len(p.buf)
}

// Bytes returns a copy of the payload contents
func (p Payload) Bytes() []byte {
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}

// Replace overwrites the whole payload. data must be exactly Len() bytes.
func (p Payload) Replace(data []byte) error {
	if len(data) != len(p.buf) {
		return fmt.Errorf("%w: replace with %d bytes (payload is %d)", ErrOutOfRange, len(data), len(p.buf))
	}
	copy(p.buf, data)
	return nil
}

// SetRange copies chunk into the payload starting at pos.
// An empty chunk at a valid position is a no-op.
func (p Payload) SetRange(pos int, chunk []byte) error {
	if pos < 0 {
		return fmt.Errorf("%w: negative position %d", ErrOutOfRange, pos)
	}
	if pos+len(chunk) > len(p.buf) {
		return fmt.Errorf("%w: pos=%d size=%d len=%d", ErrOutOfRange, pos, len(chunk), len(p.buf))
	}
	copy(p.buf[pos:], chunk)
	return nil
}

// PutInt16 stores v big-endian at pos
func (p Payload) PutInt16(pos int, v int16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	return p.SetRange(pos, b[:])
}

// PutUint16 stores v big-endian at pos
func (p Payload) PutUint16(pos int, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return p.SetRange(pos, b[:])
}

// PutUint32 stores v big-endian at pos
func (p Payload) PutUint32(pos int, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return p.SetRange(pos, b[:])
}

// Int16 reads a big-endian int16 at pos
func (p Payload) Int16(pos int) (int16, error) {
	return Int16At(p.buf, pos)
}

// Int16At reads a big-endian int16 from data at pos
func Int16At(data []byte, pos int) (int16, error) {
	if pos < 0 || pos+2 > len(data) {
		return 0, fmt.Errorf("%w: int16 at %d (len %d)", ErrOutOfRange, pos, len(data))
	}
	return int16(binary.BigEndian.Uint16(data[pos:])), nil
}

// Uint16At reads a big-endian uint16 from data at pos
func Uint16At(data []byte, pos int) (uint16, error) {
	if pos < 0 || pos+2 > len(data) {
		return 0, fmt.Errorf("%w: uint16 at %d (len %d)", ErrOutOfRange, pos, len(data))
	}
	return binary.BigEndian.Uint16(data[pos:]), nil
}

// Uint32At reads a big-endian uint32 from data at pos
func Uint32At(data []byte, pos int) (uint32, error) {
	if pos < 0 || pos+4 > len(data) {
		return 0, fmt.Errorf("%w: uint32 at %d (len %d)", ErrOutOfRange, pos, len(data))
	}
	return binary.BigEndian.Uint32(data[pos:]), nil
}

// ScaledInt16 converts v*scale to the nearest int16, saturating at the int16 limits.
// Angles travel as degrees x10, orientation as degrees x100.
func ScaledInt16(v float64, scale float64) int16 {
	s := v * scale
	if s >= 32767 {
		return 32767
	}
	if s <= -32768 {
		return -32768
	}
	if s < 0 {
		return int16(s - 0.5)
	}
	return int16(s + 0.5)
}
