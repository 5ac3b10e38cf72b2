package protocol

// InputBuffer provides an abstraction for reading incoming protocol data
type InputBuffer interface {
	// Data returns the available data slice
	Data() []byte

	// Available returns the number of bytes available
	Available() int

	// Pop removes n bytes from the front of the buffer
	Pop(n int)
}

// Accumulator collects raw incoming bytes until a frame delimiter shows up.
// It grows on demand but never holds more than its limit.
type Accumulator struct {
	buf   []byte
	limit int
}

// NewAccumulator creates an Accumulator bounded to limit bytes.
// A non-positive limit selects DefaultAccumulatorLimit.
func NewAccumulator(limit int) *Accumulator {
	if limit <= 0 {
		limit = DefaultAccumulatorLimit
	}
	return &Accumulator{
		buf:   make([]byte, 0, 256),
		limit: limit,
	}
}

// Append adds chunk to the buffer. If the result would exceed the limit, the
// buffer is cleared, chunk is dropped and an *OverflowError is returned.
func (a *Accumulator) Append(chunk []byte) error {
	if len(a.buf)+len(chunk) > a.limit {
		size := len(a.buf) + len(chunk)
		a.Reset()
		return &OverflowError{Size: size, Limit: a.limit}
	}
	a.buf = append(a.buf, chunk...)
	return nil
}

// AppendByte adds a single byte with the same overflow rule as Append
func (a *Accumulator) AppendByte(b byte) error {
	if len(a.buf)+1 > a.limit {
		size := len(a.buf) + 1
		a.Reset()
		return &OverflowError{Size: size, Limit: a.limit}
	}
	a.buf = append(a.buf, b)
	return nil
}

func (a *Accumulator) Data() []byte {
	return a.buf
}

func (a *Accumulator) Available() int {
	return len(a.buf)
}

// Pop removes n bytes from the front, compacting the remainder
func (a *Accumulator) Pop(n int) {
	if n >= len(a.buf) {
		a.buf = a.buf[:0]
		return
	}
	if n <= 0 {
		return
	}
	m := copy(a.buf, a.buf[n:])
	a.buf = a.buf[:m]
}

// Limit returns the configured ceiling
func (a *Accumulator) Limit() int {
	return a.limit
}

// Reset clears the buffer
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
}

// FifoBuffer is a circular buffer between the firmware's byte reader and its
// main loop
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data to the FIFO buffer
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			// Buffer empty
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// ReadByte pops a single byte; ok is false when the buffer is empty
func (f *FifoBuffer) ReadByte() (b byte, ok bool) {
	if f.read == f.write {
		return 0, false
	}
	b = f.buf[f.read]
	f.read = (f.read + 1) % f.size
	return b, true
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Data returns available data as a slice
// When wrapped, this copies data into a contiguous slice for protocol processing
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		// Simple case: data is contiguous
		return f.buf[f.read:f.write]
	}
	// Wrapped case: copy both segments into contiguous slice
	// This is critical for correct message parsing
	avail := f.Available()
	result := make([]byte, avail)

	// Copy first segment (read to end of buffer)
	firstLen := f.size - f.read
	copy(result, f.buf[f.read:])

	// Copy second segment (start of buffer to write)
	copy(result[firstLen:], f.buf[:f.write])

	return result
}

// Pop removes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
