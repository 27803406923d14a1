package wire

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Bool(true)
	w.Uint8(7)
	w.Uint16(65000)
	w.Int(-42)
	w.Int64(math.MaxInt64)
	w.Float64(math.Inf(-1))
	w.Ints([]int{1, 2, 3})
	w.Float64s([]float64{0.5, -1.25})
	w.Uint16s([]uint16{9, 8})
	w.Int32s(nil)
	require.NoError(t, w.Err())
	assert.Equal(t, int64(buf.Len()), w.N())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	assert.True(t, r.Bool())
	assert.Equal(t, uint8(7), r.Uint8())
	assert.Equal(t, uint16(65000), r.Uint16())
	assert.Equal(t, -42, r.Int())
	assert.Equal(t, int64(math.MaxInt64), r.Int64())
	assert.True(t, math.IsInf(r.Float64(), -1))
	assert.Equal(t, []int{1, 2, 3}, r.Ints())
	assert.Equal(t, []float64{0.5, -1.25}, r.Float64s())
	assert.Equal(t, []uint16{9, 8}, r.Uint16s())
	assert.Empty(t, r.Int32s())
	require.NoError(t, r.Err())
	assert.Equal(t, w.N(), r.N())
}

func TestWriter_IntOverflow(t *testing.T) {
	if math.MaxInt == math.MaxInt32 {
		t.Skip("int is 32 bits")
	}
	w := NewWriter(io.Discard)
	w.Int(math.MaxInt32 + 1)
	require.Error(t, w.Err())
	assert.Contains(t, w.Err().Error(), "overflow")

	// sticky
	w.Uint8(1)
	assert.Equal(t, int64(0), w.N())
}

func TestReader_Errors(t *testing.T) {
	t.Run("Truncated", func(t *testing.T) {
		r := NewReader(bytes.NewReader([]byte{1, 2}))
		_ = r.Int64()
		assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
	})

	t.Run("Empty", func(t *testing.T) {
		r := NewReader(bytes.NewReader(nil))
		_ = r.Uint8()
		assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
	})

	t.Run("NegativeLength", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		w.Int(-1)
		require.NoError(t, w.Err())

		r := NewReader(&buf)
		assert.Nil(t, r.Ints())
		require.Error(t, r.Err())
		assert.Contains(t, r.Err().Error(), "invalid length")
	})
}
