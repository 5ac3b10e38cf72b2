package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorAppendPop(t *testing.T) {
	acc := NewAccumulator(0)
	assert.Equal(t, DefaultAccumulatorLimit, acc.Limit())

	require.NoError(t, acc.Append([]byte{1, 2, 3}))
	require.NoError(t, acc.AppendByte(4))
	assert.Equal(t, 4, acc.Available())
	assert.Equal(t, []byte{1, 2, 3, 4}, acc.Data())

	acc.Pop(2)
	assert.Equal(t, []byte{3, 4}, acc.Data())

	acc.Pop(0)
	assert.Equal(t, 2, acc.Available())

	acc.Pop(10)
	assert.Equal(t, 0, acc.Available())
}

func TestAccumulatorOverflowClears(t *testing.T) {
	acc := NewAccumulator(4)
	require.NoError(t, acc.Append([]byte{1, 2, 3}))

	err := acc.Append([]byte{4, 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, 0, acc.Available())

	// Exactly at the limit is fine
	require.NoError(t, acc.Append([]byte{1, 2, 3, 4}))
	err = acc.AppendByte(5)
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, 0, acc.Available())
}

func TestAccumulatorReset(t *testing.T) {
	acc := NewAccumulator(16)
	require.NoError(t, acc.Append([]byte{9, 9, 9}))
	acc.Reset()
	assert.Empty(t, acc.Data())
}

func TestFifoBufferBasic(t *testing.T) {
	fifo := NewFifoBuffer(8)
	assert.True(t, fifo.IsEmpty())
	assert.Equal(t, 7, fifo.Free())

	n := fifo.Write([]byte{1, 2, 3})
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, fifo.Available())
	assert.Equal(t, []byte{1, 2, 3}, fifo.Data())

	out := make([]byte, 2)
	assert.Equal(t, 2, fifo.Read(out))
	assert.Equal(t, []byte{1, 2}, out)

	b, ok := fifo.ReadByte()
	require.True(t, ok)
	assert.Equal(t, byte(3), b)

	_, ok = fifo.ReadByte()
	assert.False(t, ok)
}

func TestFifoBufferFull(t *testing.T) {
	fifo := NewFifoBuffer(4)
	n := fifo.Write([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, fifo.Free())
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(6)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Pop(3)
	fifo.Write([]byte{5, 6, 7, 8})

	assert.Equal(t, 5, fifo.Available())
	assert.Equal(t, []byte{4, 5, 6, 7, 8}, fifo.Data())

	fifo.Pop(100)
	assert.True(t, fifo.IsEmpty())

	fifo.Write([]byte{1})
	fifo.Reset()
	assert.True(t, fifo.IsEmpty())
}

// Both buffer types feed a Session through the same interface
var (
	_ InputBuffer = (*FifoBuffer)(nil)
	_ InputBuffer = (*Accumulator)(nil)
)
