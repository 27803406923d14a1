package cla

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cla/cocode"
	"github.com/hupe1980/cla/colgroup"
	"github.com/hupe1980/cla/matrix"
	"github.com/hupe1980/cla/resource"
	"github.com/hupe1980/cla/testutil"
)

func testInputs() map[string]*matrix.Block {
	rng := testutil.NewRNG(42)
	return map[string]*matrix.Block{
		"LowCardinality": rng.LowCardinality(500, 6, 3),
		"Runs":           rng.Runs(700, 5, 40, 4),
		"Sparse":         rng.Sparse(600, 12, 0.03),
		"Skewed":         rng.Skewed(800, 4, 6, 1.5),
		"Mixed":          rng.Mixed(400, 6, 4),
		"Distinct":       rng.Dense(50, 3),
		"Zeros":          matrix.NewDense(100, 5),
	}
}

func mustCompress(t *testing.T, m *matrix.Block, k int, opts ...Option) *CompressedBlock {
	t.Helper()
	b, err := Compress(context.Background(), m, k, opts...)
	require.NoError(t, err)
	require.True(t, b.IsCompressed())
	return b
}

func TestCompress_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, m := range testInputs() {
		t.Run(name, func(t *testing.T) {
			for _, k := range []int{1, 4} {
				b := mustCompress(t, m.Copy(), k)
				assert.Equal(t, m.NonZeros(), b.NonZeros())

				out, err := b.Decompress(ctx, k)
				require.NoError(t, err)
				testutil.AssertBlocksEqual(t, m, out)
				assert.Equal(t, out.NonZeros(), out.Copy().RecomputeNonZeros())
			}
		})
	}
}

func TestCompress_NegativeZero(t *testing.T) {
	negZero := math.Copysign(0, -1)
	m := matrix.NewDense(1000, 2)
	for r := 0; r < m.Rows(); r++ {
		m.Set(r, 0, float64(r%2))
		m.Set(r, 1, negZero)
	}

	b := mustCompress(t, m.Copy(), 1)
	assert.Equal(t, m.NonZeros(), b.NonZeros())

	out, err := b.Decompress(context.Background(), 1)
	require.NoError(t, err)
	for r := 0; r < out.Rows(); r++ {
		assert.Equal(t, uint64(0), math.Float64bits(out.Get(r, 1)), "row %d", r)
	}
}

func TestCompress_ColumnCoverage(t *testing.T) {
	for name, m := range testInputs() {
		t.Run(name, func(t *testing.T) {
			b := mustCompress(t, m, 2)
			index, err := coverage(b.Rows(), b.Cols(), b.Groups())
			require.NoError(t, err)
			assert.Len(t, index, m.Cols())

			uncompressed := 0
			for _, g := range b.Groups() {
				assert.True(t, isSorted(g.ColIndices()))
				if g.Type() == colgroup.TypeUncompressed {
					uncompressed++
				}
			}
			assert.LessOrEqual(t, uncompressed, 1)
		})
	}
}

func TestCompress_Scenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("MixedColumns", func(t *testing.T) {
		m := testutil.NewRNG(1).Mixed(1000, 10, 8)
		b := mustCompress(t, m, 4)

		for _, g := range b.Groups() {
			for _, c := range g.ColIndices() {
				if c < 8 {
					assert.NotEqual(t, colgroup.TypeUncompressed, g.Type(), "column %d", c)
				} else {
					assert.Equal(t, colgroup.TypeUncompressed, g.Type(), "column %d", c)
				}
			}
		}
		stats := b.Statistics()
		assert.Greater(t, stats.Ratio, 1.0)
		assert.Equal(t, 8, stats.Compressible)
		assert.Equal(t, 2, stats.Incompressible)
		assert.Equal(t, 1, stats.GroupCount(colgroup.TypeUncompressed))
		assert.Positive(t, stats.EstimatedSize)
	})

	t.Run("AllZeros", func(t *testing.T) {
		b := mustCompress(t, matrix.NewDense(100, 5), 1)
		assert.Equal(t, int64(0), b.NonZeros())

		out, err := b.Decompress(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), out.NonZeros())
		assert.Equal(t, 100, out.Rows())
		assert.Equal(t, 5, out.Cols())
		for r := 0; r < 100; r++ {
			for c := 0; c < 5; c++ {
				assert.Zero(t, out.Get(r, c))
			}
		}
	})

	t.Run("Append", func(t *testing.T) {
		rng := testutil.NewRNG(3)
		left, right := rng.LowCardinality(10, 3, 2), rng.LowCardinality(10, 2, 2)
		b := mustCompress(t, left, 1)
		other, err := Wrap(right)
		require.NoError(t, err)

		ret, err := b.Append(ctx, other, 1)
		require.NoError(t, err)
		assert.Equal(t, 10, ret.Rows())
		assert.Equal(t, 5, ret.Cols())
		assert.Equal(t, left.NonZeros()+right.NonZeros(), ret.NonZeros())

		var cols []int
		for _, g := range ret.Groups() {
			cols = append(cols, g.ColIndices()...)
		}
		assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, cols)

		want, err := matrix.CBind(left, right)
		require.NoError(t, err)
		out, err := ret.Decompress(ctx, 1)
		require.NoError(t, err)
		testutil.AssertBlocksEqual(t, want, out)
	})
}

func TestCompress_Errors(t *testing.T) {
	ctx := context.Background()
	m := testutil.NewRNG(5).LowCardinality(50, 3, 3)

	t.Run("AlreadyCompressed", func(t *testing.T) {
		b := mustCompress(t, m, 1)
		assert.ErrorIs(t, b.Compress(ctx, 1), ErrAlreadyCompressed)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		_, err := Compress(ctx, m, 1, WithPlanner(nil))
		assert.Error(t, err)
		_, err = Compress(ctx, m, 1, WithParallelAggThreshold(-1))
		assert.Error(t, err)
	})

	t.Run("Canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Compress(cctx, m, 2)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("JobAdmission", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MaxConcurrentJobs: 1})
		require.True(t, rc.TryAcquireJob())
		tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := Compress(tctx, m, 1, WithResourceController(rc))
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		rc.ReleaseJob()
		_, err = Compress(ctx, m, 1, WithResourceController(rc))
		require.NoError(t, err)
		assert.Equal(t, int64(0), rc.MemoryUsage())
		assert.Equal(t, int64(0), rc.ActiveJobs())
	})
}

func TestCompress_Options(t *testing.T) {
	m := testutil.NewRNG(9).LowCardinality(300, 4, 3)

	t.Run("NoDictionary", func(t *testing.T) {
		b := mustCompress(t, m, 1, WithDictionaryEncoding(false))
		for _, g := range b.Groups() {
			assert.NotContains(t, []colgroup.Type{colgroup.TypeDDC1, colgroup.TypeDDC2}, g.Type())
		}
	})

	t.Run("Singletons", func(t *testing.T) {
		b := mustCompress(t, m, 1, WithPlanner(cocode.Singletons))
		for _, g := range b.Groups() {
			assert.Equal(t, 1, g.NumCols())
		}
	})

	t.Run("InvestigateEstimates", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
		mustCompress(t, m, 1, WithInvestigateEstimates(true), WithLogger(logger))
		assert.Contains(t, buf.String(), `"msg":"group size"`)
		assert.Contains(t, buf.String(), `"estimated"`)
	})

	t.Run("Metrics", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		b := mustCompress(t, m, 1, WithMetrics(metrics))
		_, err := b.RightMultiply(context.Background(), make([]float64, 4), 1)
		require.NoError(t, err)

		stats := metrics.GetStats()
		assert.Equal(t, int64(1), stats.CompressCount)
		assert.Equal(t, int64(1), stats.OpCount)
		assert.InDelta(t, b.Statistics().Ratio, stats.LastRatio, 1e-12)
	})
}

func TestCompressedBlock_Get(t *testing.T) {
	m := testutil.NewRNG(11).Mixed(200, 5, 3)
	b := mustCompress(t, m, 1)
	for r := 0; r < m.Rows(); r += 7 {
		for c := 0; c < m.Cols(); c++ {
			assert.Equal(t, m.Get(r, c), b.Get(r, c))
		}
	}
	assert.Panics(t, func() { b.Get(200, 0) })
}

func TestCompressedBlock_GroupOf(t *testing.T) {
	m := testutil.NewRNG(11).Mixed(200, 5, 3)
	b := mustCompress(t, m, 1)
	for c := 0; c < m.Cols(); c++ {
		g, err := b.GroupOf(c)
		require.NoError(t, err)
		assert.Contains(t, g.ColIndices(), c)
	}

	_, err := b.GroupOf(5)
	assert.Error(t, err)

	raw, err := Wrap(m)
	require.NoError(t, err)
	_, err = raw.GroupOf(0)
	assert.ErrorIs(t, err, ErrNotCompressed)
}

func isSorted(cols []int) bool {
	for i := 1; i < len(cols); i++ {
		if cols[i] <= cols[i-1] {
			return false
		}
	}
	return true
}
