package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPayload  = errors.New("empty payload")
	ErrInvalidCode   = errors.New("cobs: zero code byte")
	ErrTruncated     = errors.New("cobs: truncated block")
	ErrFrameSize     = errors.New("bad frame size")
	ErrDecode        = errors.New("cobs decode failed or wrong length")
	ErrOverflow      = errors.New("rx accumulator overflow")
	ErrNotOpen       = errors.New("port not open")
	ErrShortWrite    = errors.New("short write")
	ErrInvalidLength = errors.New("payload length must be positive")
	ErrOutOfRange    = errors.New("range outside payload")
)

// FrameSizeError reports a delimited block whose length cannot encode a payload
// of the configured length.
type FrameSizeError struct {
	Size int
	Min  int
	Max  int
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("bad frame size: %d (expected %d..%d)", e.Size, e.Min, e.Max)
}

func (e *FrameSizeError) Unwrap() error { return ErrFrameSize }

// DecodeError reports a frame that failed to decode, or decoded to the wrong length.
// Err is ErrInvalidCode or ErrTruncated when the codec rejected the frame.
type DecodeError struct {
	Size     int
	Expected int
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cobs decode failed: %v (expected %d bytes)", e.Err, e.Expected)
	}
	return fmt.Sprintf("cobs decode wrong length: %d (expected %d)", e.Size, e.Expected)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }

// OverflowError reports that the accumulator was cleared to stay under Limit.
type OverflowError struct {
	Size  int
	Limit int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("rx accumulator overflow: %d bytes (limit %d), cleared", e.Size, e.Limit)
}

func (e *OverflowError) Unwrap() error { return ErrOverflow }

// ShortWriteError reports a write that did not transfer the whole frame.
type ShortWriteError struct {
	Written  int
	Expected int
}

func (e *ShortWriteError) Error() string {
	return fmt.Sprintf("write returned %d / %d", e.Written, e.Expected)
}

func (e *ShortWriteError) Unwrap() error { return ErrShortWrite }

// IsFramingError reports whether err is a recoverable framing problem: a bad
// frame size, a decode failure or an accumulator overflow.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrFrameSize) || errors.Is(err, ErrDecode) || errors.Is(err, ErrOverflow)
}
