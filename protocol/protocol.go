// Package protocol implements the bendlink serial framing protocol: fixed-length
// payloads, COBS byte stuffing and stream reassembly.
package protocol

// Version represents the bendlink protocol version
const Version = "0.3.0"

// Protocol constants
const (
	// FrameDelimiter terminates every frame on the wire and never appears inside one
	FrameDelimiter = 0x00

	// MaxRunLength is the longest literal run a single code byte can describe
	MaxRunLength = 254

	// codeFullRun marks a block of MaxRunLength literals with no implicit zero
	codeFullRun = 0xFF

	// DefaultAccumulatorLimit bounds the receive accumulator (1 MB)
	DefaultAccumulatorLimit = 1_000_000

	// Default payload lengths used by the host application and the firmware
	DefaultTxPayloadLen = 30
	DefaultRxPayloadLen = 22
)
