package protocol

import (
	"bytes"
	"fmt"
)

// PayloadHandler receives every payload that decoded to the configured length.
// The slice is freshly allocated and owned by the handler.
type PayloadHandler func(payload []byte)

// ErrorHandler receives non-fatal framing errors: *FrameSizeError, *DecodeError
// and *OverflowError. The session keeps running after reporting them.
type ErrorHandler func(err error)

// SessionStats counts what a Session has seen since creation
type SessionStats struct {
	Frames        uint32 // payloads delivered
	FramingErrors uint32 // bad size or failed decode
	Overflows     uint32 // accumulator cleared by the overflow guard
}

// Session recovers fixed-length payloads from an unbounded byte stream.
// Bytes are accumulated until a FrameDelimiter appears; each delimited block is
// length-checked, decoded and delivered in arrival order.
//
// A Session is not safe for concurrent use; callers serialize Feed, FeedByte,
// Drain and Reset.
type Session struct {
	rxLen  int
	minEnc int
	maxEnc int
	acc    *Accumulator

	onPayload PayloadHandler
	onError   ErrorHandler

	stats SessionStats
}

// NewSession creates a session for payloads of rxLen bytes whose accumulator is
// bounded to limit bytes (non-positive selects DefaultAccumulatorLimit).
func NewSession(rxLen, limit int, handler PayloadHandler) (*Session, error) {
	if rxLen <= 0 {
		return nil, fmt.Errorf("rx %w: %d", ErrInvalidLength, rxLen)
	}
	return &Session{
		rxLen:     rxLen,
		minEnc:    MinEncodedLength(rxLen),
		maxEnc:    MaxEncodedLength(rxLen),
		acc:       NewAccumulator(limit),
		onPayload: handler,
	}, nil
}

// SetPayloadHandler replaces the payload callback
func (s *Session) SetPayloadHandler(handler PayloadHandler) {
	s.onPayload = handler
}

// SetErrorHandler sets the callback for framing errors
func (s *Session) SetErrorHandler(handler ErrorHandler) {
	s.onError = handler
}

// Feed appends chunk and processes every complete frame it closes.
// It returns the number of payloads delivered.
func (s *Session) Feed(chunk []byte) int {
	if len(chunk) == 0 {
		return 0
	}
	if err := s.acc.Append(chunk); err != nil {
		s.stats.Overflows++
		s.report(err)
		return 0
	}
	return s.processIncoming()
}

// FeedByte appends a single byte. Only a delimiter can complete a frame, so the
// scan runs only then.
func (s *Session) FeedByte(b byte) int {
	if err := s.acc.AppendByte(b); err != nil {
		s.stats.Overflows++
		s.report(err)
		return 0
	}
	if b != FrameDelimiter {
		return 0
	}
	return s.processIncoming()
}

// Drain feeds every byte available in input, one at a time, and pops them.
func (s *Session) Drain(input InputBuffer) int {
	data := input.Data()
	n := len(data)
	delivered := 0
	for _, b := range data {
		delivered += s.FeedByte(b)
	}
	input.Pop(n)
	return delivered
}

// processIncoming extracts 0x00-terminated frames from the accumulator. There may
// be several complete frames.
func (s *Session) processIncoming() int {
	delivered := 0
	for {
		data := s.acc.Data()
		delimIndex := bytes.IndexByte(data, FrameDelimiter)
		if delimIndex < 0 {
			return delivered
		}

		frame := data[:delimIndex]
		payload, err := s.decodeFrame(frame)
		s.acc.Pop(delimIndex + 1) // consume frame + delimiter

		if err != nil {
			s.stats.FramingErrors++
			s.report(err)
			continue
		}

		s.stats.Frames++
		delivered++
		if s.onPayload != nil {
			s.onPayload(payload)
		}
	}
}

func (s *Session) decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < s.minEnc || len(frame) > s.maxEnc {
		return nil, &FrameSizeError{Size: len(frame), Min: s.minEnc, Max: s.maxEnc}
	}

	decoded, err := Decode(frame)
	if err != nil {
		return nil, &DecodeError{Size: len(frame), Expected: s.rxLen, Err: err}
	}
	if len(decoded) != s.rxLen {
		return nil, &DecodeError{Size: len(decoded), Expected: s.rxLen}
	}
	return decoded, nil
}

func (s *Session) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// Reset discards any partially accumulated frame
func (s *Session) Reset() {
	s.acc.Reset()
}

// Buffered returns the number of bytes waiting for a delimiter
func (s *Session) Buffered() int {
	return s.acc.Available()
}

// PayloadLen returns the configured payload length
func (s *Session) PayloadLen() int {
	return s.rxLen
}

// Bounds returns the accepted encoded length range for one frame
func (s *Session) Bounds() (min, max int) {
	return s.minEnc, s.maxEnc
}

// Stats returns a snapshot of the session counters
func (s *Session) Stats() SessionStats {
	return s.stats
}

// AppendFrame encodes payload and appends the frame plus delimiter to dst.
func AppendFrame(dst []byte, payload []byte) ([]byte, error) {
	encoded := Encode(payload)
	if len(encoded) == 0 {
		return dst, ErrEmptyPayload
	}
	dst = append(dst, encoded...)
	return append(dst, FrameDelimiter), nil
}
