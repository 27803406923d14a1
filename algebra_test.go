package cla

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cla/cocode"
	"github.com/hupe1980/cla/matrix"
	"github.com/hupe1980/cla/testutil"
)

func TestRightMultiply(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(21)
	for name, m := range testInputs() {
		t.Run(name, func(t *testing.T) {
			v := rng.Vector(m.Cols())
			want := matrix.MulVec(m, v)
			b := mustCompress(t, m, 2)
			for _, k := range []int{1, 3} {
				got, err := b.RightMultiply(ctx, v, k)
				require.NoError(t, err)
				testutil.AssertVecInDelta(t, want, got, 1e-10)
			}
		})
	}

	t.Run("DimensionMismatch", func(t *testing.T) {
		b := mustCompress(t, testutil.NewRNG(1).LowCardinality(10, 3, 2), 1)
		_, err := b.RightMultiply(ctx, []float64{1}, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
		var se *ShapeError
		assert.ErrorAs(t, err, &se)
	})
}

func TestLeftMultiply(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(22)
	for name, m := range testInputs() {
		t.Run(name, func(t *testing.T) {
			v := rng.Vector(m.Rows())
			want := matrix.LeftMulVec(v, m)
			b := mustCompress(t, m, 2)
			for _, k := range []int{1, 3} {
				got, err := b.LeftMultiply(ctx, matrix.FromDense(1, m.Rows(), v), k, false)
				require.NoError(t, err)
				assert.Equal(t, 1, got.Rows())
				testutil.AssertVecInDelta(t, want, got.DenseData(), 1e-10)

				got, err = b.LeftMultiply(ctx, matrix.FromDense(m.Rows(), 1, v), k, true)
				require.NoError(t, err)
				testutil.AssertVecInDelta(t, want, got.DenseData(), 1e-10)
			}
		})
	}
}

func TestTransposeSelfMultiply(t *testing.T) {
	ctx := context.Background()
	for name, m := range testInputs() {
		t.Run(name, func(t *testing.T) {
			want := matrix.TransposeSelf(m)
			b := mustCompress(t, m, 2)
			for _, k := range []int{1, 4} {
				got, err := b.TransposeSelfMultiply(ctx, TSMMLeft, k)
				require.NoError(t, err)
				testutil.AssertVecInDelta(t, want.DenseData(), got.ToDense().DenseData(), 1e-10)
				assert.Equal(t, want.NonZeros(), got.NonZeros())
			}
		})
	}

	t.Run("UnsupportedSide", func(t *testing.T) {
		b := mustCompress(t, testutil.NewRNG(1).LowCardinality(10, 3, 2), 1)
		_, err := b.TransposeSelfMultiply(ctx, TSMMRight, 1)
		assert.ErrorIs(t, err, ErrUnsupportedSide)
	})

	t.Run("UncompressedRight", func(t *testing.T) {
		m := testutil.NewRNG(2).Dense(4, 3)
		b, err := Wrap(m)
		require.NoError(t, err)
		got, err := b.TransposeSelfMultiply(ctx, TSMMRight, 1)
		require.NoError(t, err)
		assert.Equal(t, 4, got.Rows())
		assert.Equal(t, 4, got.Cols())
		assert.InDelta(t, m.Get(0, 0)*m.Get(1, 0)+m.Get(0, 1)*m.Get(1, 1)+m.Get(0, 2)*m.Get(1, 2), got.Get(0, 1), 1e-12)
	})
}

func TestChainMultiply(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(23)
	for name, m := range testInputs() {
		t.Run(name, func(t *testing.T) {
			v, w := rng.Vector(m.Cols()), rng.Vector(m.Rows())
			b := mustCompress(t, m, 2)
			for _, ct := range []matrix.ChainType{matrix.XtXv, matrix.XtwXv} {
				want := matrix.ChainMul(m, v, w, ct)
				got, err := b.ChainMultiply(ctx, v, w, ct, 2)
				require.NoError(t, err)
				testutil.AssertVecInDelta(t, want, got, 1e-10)
			}
		})
	}

	t.Run("MissingWeights", func(t *testing.T) {
		b := mustCompress(t, testutil.NewRNG(1).LowCardinality(10, 3, 2), 1)
		_, err := b.ChainMultiply(ctx, []float64{1, 2, 3}, nil, matrix.XtwXv, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestMultiplyDispatch(t *testing.T) {
	ctx := context.Background()
	m := testutil.NewRNG(24).LowCardinality(30, 4, 3)
	b := mustCompress(t, m, 1)

	t.Run("ColumnVector", func(t *testing.T) {
		v := matrix.FromDense(4, 1, []float64{1, -1, 2, 0.5})
		want, err := matrix.Mul(m, v)
		require.NoError(t, err)
		got, err := b.Multiply(ctx, v, 2)
		require.NoError(t, err)
		testutil.AssertVecInDelta(t, want.DenseData(), got.DenseData(), 1e-10)
	})

	t.Run("RowVector", func(t *testing.T) {
		v := matrix.FromDense(1, 30, testutil.NewRNG(1).Vector(30))
		want, err := matrix.Mul(v, m)
		require.NoError(t, err)
		got, err := b.MultiplyLeft(ctx, v, 2)
		require.NoError(t, err)
		testutil.AssertVecInDelta(t, want.DenseData(), got.DenseData(), 1e-10)
	})

	t.Run("MatrixOperand", func(t *testing.T) {
		_, err := b.Multiply(ctx, matrix.NewDense(4, 2), 1)
		assert.ErrorIs(t, err, ErrUnsupportedShape)
		_, err = b.MultiplyLeft(ctx, matrix.NewDense(2, 30), 1)
		assert.ErrorIs(t, err, ErrUnsupportedShape)
	})

	t.Run("SingleUncompressedGroup", func(t *testing.T) {
		d := testutil.NewRNG(2).Dense(20, 3)
		ub := mustCompress(t, d, 1)
		require.True(t, ub.IsSingleUncompressedGroup())
		got, err := ub.Multiply(ctx, matrix.NewDense(3, 2), 1)
		require.NoError(t, err)
		assert.Equal(t, 20, got.Rows())
		assert.Equal(t, 2, got.Cols())
	})
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	fns := []matrix.AggFn{matrix.Sum, matrix.SumSq, matrix.Min, matrix.Max}
	dirs := []matrix.Direction{matrix.Full, matrix.RowAgg, matrix.ColAgg}
	for name, m := range testInputs() {
		t.Run(name, func(t *testing.T) {
			sequential := mustCompress(t, m, 1)
			parallel := mustCompress(t, m, 1, WithParallelAggThreshold(0))
			for _, fn := range fns {
				for _, dir := range dirs {
					want := matrix.Aggregate(m, fn, dir)
					for _, b := range []*CompressedBlock{sequential, parallel} {
						got, err := b.Aggregate(ctx, AggregateOp{Fn: fn, Dir: dir, Threads: 3})
						require.NoError(t, err)
						if dir == matrix.ColAgg {
							assert.Equal(t, 1, got.Rows(), "%s %s", fn, dir)
						} else {
							assert.Equal(t, 1, got.Cols(), "%s %s", fn, dir)
						}
						testutil.AssertVecInDelta(t, want, got.DenseData(), 1e-10)
					}
				}
			}
		})
	}

	t.Run("KeepCorrection", func(t *testing.T) {
		m := testutil.NewRNG(4).LowCardinality(40, 3, 3)
		b := mustCompress(t, m, 1)

		full, err := b.Aggregate(ctx, AggregateOp{Fn: matrix.Sum, Dir: matrix.Full, KeepCorrection: true})
		require.NoError(t, err)
		assert.Equal(t, 1, full.Rows())
		assert.Equal(t, 2, full.Cols())
		assert.InDelta(t, matrix.Aggregate(m, matrix.Sum, matrix.Full)[0], full.Get(0, 0), 1e-9)

		col, err := b.Aggregate(ctx, AggregateOp{Fn: matrix.Sum, Dir: matrix.ColAgg, KeepCorrection: true})
		require.NoError(t, err)
		assert.Equal(t, 2, col.Rows())
		assert.Equal(t, 3, col.Cols())

		mx, err := b.Aggregate(ctx, AggregateOp{Fn: matrix.Max, Dir: matrix.RowAgg, KeepCorrection: true})
		require.NoError(t, err)
		assert.Equal(t, 1, mx.Cols())
	})

	t.Run("RowMinWithImplicitZeros", func(t *testing.T) {
		pattern := [][]float64{
			{3, 0, 5},
			{2, 4, 6},
			{0, 0, 7},
		}
		var rows [][]float64
		for range 40 {
			rows = append(rows, pattern...)
		}
		m := matrix.FromRows(rows)
		for _, allowDDC := range []bool{true, false} {
			b := mustCompress(t, m, 1, WithPlanner(cocode.Singletons), WithDictionaryEncoding(allowDDC))
			got, err := b.Aggregate(ctx, AggregateOp{Fn: matrix.Min, Dir: matrix.RowAgg})
			require.NoError(t, err)
			assert.Equal(t, []float64{0, 2, 0}, got.DenseData()[:3])

			got, err = b.Aggregate(ctx, AggregateOp{Fn: matrix.Max, Dir: matrix.RowAgg})
			require.NoError(t, err)
			assert.Equal(t, []float64{5, 6, 7}, got.DenseData()[:3])
		}
	})
}

func TestThreadCountInvariance(t *testing.T) {
	if testing.Short() {
		t.Skip("large input")
	}
	ctx := context.Background()
	rng := testutil.NewRNG(31)
	m := rng.Mixed(70000, 5, 4)
	v := rng.Vector(5)

	b1 := mustCompress(t, m, 1)
	b4 := mustCompress(t, m, 4)

	r1, err := b1.RightMultiply(ctx, v, 1)
	require.NoError(t, err)
	r4, err := b4.RightMultiply(ctx, v, 4)
	require.NoError(t, err)
	testutil.AssertVecInDelta(t, r1, r4, 1e-12)

	d1, err := b1.Decompress(ctx, 1)
	require.NoError(t, err)
	d4, err := b4.Decompress(ctx, 4)
	require.NoError(t, err)
	testutil.AssertBlocksEqual(t, d1, d4)

	op := AggregateOp{Fn: matrix.Sum, Dir: matrix.RowAgg, Threads: 4}
	p4 := mustCompress(t, m, 4, WithParallelAggThreshold(0))
	a1, err := b1.Aggregate(ctx, op)
	require.NoError(t, err)
	a4, err := p4.Aggregate(ctx, op)
	require.NoError(t, err)
	testutil.AssertVecInDelta(t, a1.DenseData(), a4.DenseData(), 1e-12)
}

func BenchmarkCompress(b *testing.B) {
	m := testutil.NewRNG(1).Mixed(10000, 20, 16)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Compress(ctx, m, 4); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRightMultiply(b *testing.B) {
	rng := testutil.NewRNG(1)
	m := rng.Mixed(100000, 20, 16)
	v := rng.Vector(20)
	ctx := context.Background()
	cb, err := Compress(ctx, m, 4)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cb.RightMultiply(ctx, v, 4); err != nil {
			b.Fatal(err)
		}
	}
}
