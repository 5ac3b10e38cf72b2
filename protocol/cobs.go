package protocol

// Encode byte-stuffs payload so that the result contains no FrameDelimiter.
// The returned frame does not include the trailing delimiter; callers append it.
//
// Each block starts with a code byte n (1..255): n-1 literal bytes follow, then an
// implicit zero unless n is 0xFF or the block is the last one. A full run of
// MaxRunLength literals that ends the payload is not followed by an empty block.
//
// Encode returns nil for an empty payload.
func Encode(payload []byte) []byte {
	if len(payload) == 0 {
		return nil
	}

	out := make([]byte, 1, MaxEncodedLength(len(payload)))
	codeIndex := 0
	code := byte(1)
	last := len(payload) - 1

	for i, b := range payload {
		if b != 0 {
			out = append(out, b)
			code++
		}
		if b == 0 || code == codeFullRun {
			out[codeIndex] = code
			code = 1
			if b == 0 || i < last {
				codeIndex = len(out)
				out = append(out, 0) // placeholder for next code
			} else {
				codeIndex = -1
			}
		}
	}

	if codeIndex >= 0 {
		out[codeIndex] = code
	}
	return out
}

// Decode reverses Encode. frame must not include the trailing delimiter.
// It returns ErrInvalidCode when a code byte is zero and ErrTruncated when a block
// runs past the end of frame.
func Decode(frame []byte) ([]byte, error) {
	out := make([]byte, 0, len(frame))
	n := len(frame)

	for i := 0; i < n; {
		code := frame[i]
		if code == 0 {
			return nil, ErrInvalidCode
		}
		i++

		copyLen := int(code) - 1
		if i+copyLen > n {
			return nil, ErrTruncated
		}
		out = append(out, frame[i:i+copyLen]...)
		i += copyLen

		// The final block never carries an implicit zero
		if code < codeFullRun && i < n {
			out = append(out, 0)
		}
	}
	return out, nil
}

// MinEncodedLength returns the shortest encoding of a payload of rawLen bytes.
// Every encoding has at least one code byte; for rawLen <= MaxRunLength all
// encodings are exactly rawLen+1 bytes.
func MinEncodedLength(rawLen int) int {
	if rawLen <= 0 {
		return 0
	}
	return rawLen + 1
}

// MaxEncodedLength returns the longest encoding of a payload of rawLen bytes:
// one code byte per started run of MaxRunLength bytes.
func MaxEncodedLength(rawLen int) int {
	if rawLen <= 0 {
		return 0
	}
	codeBytes := (rawLen + MaxRunLength - 1) / MaxRunLength // ceil
	return rawLen + codeBytes
}
