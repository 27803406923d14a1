package cla

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cla/bitmap"
	"github.com/hupe1980/cla/colgroup"
	"github.com/hupe1980/cla/matrix"
	"github.com/hupe1980/cla/testutil"
)

func TestScalarOperation(t *testing.T) {
	ctx := context.Background()
	ops := map[string]func(float64) float64{
		"PlusOne": func(v float64) float64 { return v + 1 },
		"Double":  func(v float64) float64 { return 2 * v },
		"Zero":    func(float64) float64 { return 0 },
	}
	for name, m := range testInputs() {
		for opName, fn := range ops {
			t.Run(name+"/"+opName, func(t *testing.T) {
				b := mustCompress(t, m, 1)
				ret, err := b.ScalarOperation(ctx, fn)
				require.NoError(t, err)
				require.True(t, ret.IsCompressed())

				want := matrix.Unary(m, fn)
				got, err := ret.Decompress(ctx, 2)
				require.NoError(t, err)
				testutil.AssertBlocksEqual(t, want, got)
				assert.Equal(t, want.NonZeros(), ret.NonZeros())
			})
		}
	}
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	m := testutil.NewRNG(7).Mixed(60, 4, 2)

	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := &BasicMetricsCollector{}
	b := mustCompress(t, m, 1, WithLogger(logger), WithMetrics(metrics))

	t.Run("Transpose", func(t *testing.T) {
		got, err := b.Transpose(ctx)
		require.NoError(t, err)
		testutil.AssertBlocksEqual(t, m.Transpose(), got)
		assert.Contains(t, buf.String(), "operation not supported on compressed block, decompressing")
		assert.Contains(t, buf.String(), `"op":"transpose"`)
	})

	t.Run("Unary", func(t *testing.T) {
		fn := func(v float64) float64 { return v * v }
		got, err := b.Unary(ctx, fn)
		require.NoError(t, err)
		testutil.AssertBlocksEqual(t, matrix.Unary(m, fn), got)
	})

	t.Run("Binary", func(t *testing.T) {
		other := testutil.NewRNG(8).Dense(60, 4)
		add := func(x, y float64) float64 { return x + y }
		want, err := matrix.Binary(m, other, add)
		require.NoError(t, err)
		got, err := b.Binary(ctx, other, add)
		require.NoError(t, err)
		testutil.AssertBlocksEqual(t, want, got)
	})

	t.Run("Slice", func(t *testing.T) {
		want, err := matrix.Slice(m, 5, 15, 1, 3)
		require.NoError(t, err)
		got, err := b.Slice(ctx, 5, 15, 1, 3)
		require.NoError(t, err)
		testutil.AssertBlocksEqual(t, want, got)
	})

	t.Run("RBind", func(t *testing.T) {
		got, err := b.RBind(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, 120, got.Rows())
		assert.Equal(t, m.Get(3, 2), got.Get(63, 2))
	})

	t.Run("Replace", func(t *testing.T) {
		got, err := b.Replace(ctx, 1, -1)
		require.NoError(t, err)
		testutil.AssertBlocksEqual(t, matrix.Replace(m, 1, -1), got)
	})

	assert.Equal(t, int64(6), metrics.FallbackCount.Load())
	assert.Equal(t, int64(1), metrics.Fallbacks()["slice"])

	t.Run("UncompressedDoesNotWarn", func(t *testing.T) {
		buf.Reset()
		u, err := Wrap(m, WithLogger(logger))
		require.NoError(t, err)
		_, err = u.Transpose(ctx)
		require.NoError(t, err)
		assert.Empty(t, buf.String())
	})
}

func TestInPlaceGeneration(t *testing.T) {
	b := mustCompress(t, testutil.NewRNG(1).LowCardinality(20, 2, 2), 1)
	assert.ErrorIs(t, b.RandInPlace(3, 3, 0, 1, 1, 7), ErrInPlaceGenerate)
	assert.ErrorIs(t, b.SeqInPlace(1, 5, 1), ErrInPlaceGenerate)

	u, err := Wrap(matrix.NewDense(1, 1))
	require.NoError(t, err)
	require.NoError(t, u.SeqInPlace(1, 5, 1))
	assert.Equal(t, 5, u.Rows())
	assert.Equal(t, 1, u.Cols())
	assert.Equal(t, 3.0, u.Get(2, 0))

	require.NoError(t, u.RandInPlace(4, 3, 1, 2, 1, 7))
	assert.Equal(t, 4, u.Rows())
	assert.Equal(t, int64(12), u.NonZeros())
}

func TestSerialization(t *testing.T) {
	ctx := context.Background()
	for name, m := range testInputs() {
		t.Run(name, func(t *testing.T) {
			b := mustCompress(t, m, 2)
			data, err := b.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, b.ExactSizeOnDisk(), int64(len(data)))

			var loaded CompressedBlock
			require.NoError(t, loaded.UnmarshalBinary(data))
			assert.Equal(t, b.Rows(), loaded.Rows())
			assert.Equal(t, b.Cols(), loaded.Cols())
			assert.Equal(t, b.NonZeros(), loaded.NonZeros())
			assert.Len(t, loaded.Groups(), len(b.Groups()))

			again, err := loaded.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, data, again)

			out, err := loaded.Decompress(ctx, 1)
			require.NoError(t, err)
			testutil.AssertBlocksEqual(t, m, out)
		})
	}

	t.Run("Uncompressed", func(t *testing.T) {
		m := testutil.NewRNG(1).Dense(5, 4)
		b, err := Wrap(m)
		require.NoError(t, err)

		var buf bytes.Buffer
		n, err := b.WriteTo(&buf)
		require.NoError(t, err)
		assert.Equal(t, b.ExactSizeOnDisk(), n)

		loaded, err := Read(&buf)
		require.NoError(t, err)
		assert.False(t, loaded.IsCompressed())
		testutil.AssertBlocksEqual(t, m, loaded.Raw())
	})

	t.Run("Corrupt", func(t *testing.T) {
		b := mustCompress(t, testutil.NewRNG(1).LowCardinality(100, 3, 3), 1)
		data, err := b.MarshalBinary()
		require.NoError(t, err)

		var loaded CompressedBlock
		assert.ErrorIs(t, loaded.UnmarshalBinary(data[:len(data)-3]), ErrCorrupt)
		assert.ErrorIs(t, loaded.UnmarshalBinary(append(data, 0)), ErrCorrupt)

		bad := bytes.Clone(data)
		bad[1+4+4+8+4] = 0xEE // first group tag
		assert.ErrorIs(t, loaded.UnmarshalBinary(bad), ErrCorrupt)
	})

	t.Run("OffsetPastRows", func(t *testing.T) {
		m := matrix.NewDense(3, 1)
		m.Set(0, 0, 1)
		m.Set(2, 0, 1)
		rawT := m.Transpose()

		for name, g := range map[string]colgroup.Group{
			"OLE": colgroup.NewOLE([]int{0}, 3, bitmap.Extract([]int{0}, rawT)),
			"RLE": colgroup.NewRLE([]int{0}, 3, bitmap.Extract([]int{0}, rawT)),
		} {
			t.Run(name, func(t *testing.T) {
				b, err := FromGroups(3, 1, []colgroup.Group{g})
				require.NoError(t, err)
				data, err := b.MarshalBinary()
				require.NoError(t, err)

				// last uint16: final OLE offset or RLE run length
				bad := bytes.Clone(data)
				bad[len(bad)-2], bad[len(bad)-1] = 0xFF, 0x7F

				var loaded CompressedBlock
				assert.NotPanics(t, func() { err = loaded.UnmarshalBinary(bad) })
				assert.ErrorIs(t, err, ErrCorrupt)
				assert.ErrorIs(t, err, bitmap.ErrMalformed)
			})
		}
	})
}
