package testutil

import (
	"math"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/cla/matrix"
)

// AssertBlocksEqual asserts that two blocks hold bit-identical values,
// regardless of their storage format.
func AssertBlocksEqual(t assert.TestingT, want, got *matrix.Block) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	if !assert.Equal(t, want.Rows(), got.Rows(), "rows") || !assert.Equal(t, want.Cols(), got.Cols(), "cols") {
		return false
	}
	for r := 0; r < want.Rows(); r++ {
		for c := 0; c < want.Cols(); c++ {
			w, g := want.Get(r, c), got.Get(r, c)
			if math.Float64bits(w) != math.Float64bits(g) && !(w == 0 && g == 0) {
				return assert.Fail(t, "blocks differ", "cell (%d,%d): want %v, got %v", r, c, w, g)
			}
		}
	}
	return true
}

// AssertVecInDelta asserts element-wise equality within a relative
// tolerance (absolute for values below one).
func AssertVecInDelta(t assert.TestingT, want, got []float64, tol float64) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	if !assert.Len(t, got, len(want)) {
		return false
	}
	for i := range want {
		delta := tol * math.Max(1, math.Abs(want[i]))
		if !assert.InDelta(t, want[i], got[i], delta, "index %d", i) {
			return false
		}
	}
	return true
}
