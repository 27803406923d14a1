package estimate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/cla/matrix"
)

func TestFormulas(t *testing.T) {
	assert.Equal(t, int64(8*3*2+4*4+4*5), RLESize(3, 2, 5))
	assert.Equal(t, int64(8*3+4*4+2*10+2*1), OLESize(3, 1, 10, 1))
	assert.Equal(t, int64(8*4+1000), DDCSize(4, 1, 1000))
	assert.Equal(t, int64(8*300+2*1000), DDCSize(300, 1, 1000))
	assert.Equal(t, int64(math.MaxInt64), DDCSize(70000, 1, 1000))

	assert.Equal(t, int64(8000), UncompressedSize(1000, 1, 1))
	assert.Equal(t, int64(4000+1200), UncompressedSize(1000, 1, 0.1))
}

func TestExact(t *testing.T) {
	rows := make([][]float64, 100)
	for i := range rows {
		rows[i] = []float64{float64(i % 2), 1, float64(i)}
	}
	rawT := matrix.FromRows(rows).Transpose()

	t.Run("LowCardinality", func(t *testing.T) {
		est := NewExact(rawT, true)
		info := est.EstimateGroupSize([]int{0})
		assert.Equal(t, int64(50), info.EstNnz)
		// one value, 50 single-row runs, zero tuple materialized for DDC
		assert.Equal(t, RLESize(1, 1, 50), info.RLESize)
		assert.Equal(t, OLESize(1, 1, 50, 1), info.OLESize)
		assert.Equal(t, DDCSize(2, 1, 100), info.DDCSize)
		assert.Equal(t, info.DDCSize, info.MinSize)
	})

	t.Run("Constant", func(t *testing.T) {
		est := NewExact(rawT, true)
		info := est.EstimateGroupSize([]int{1})
		assert.Equal(t, int64(100), info.EstNnz)
		assert.Equal(t, RLESize(1, 1, 1), info.RLESize)
		assert.Equal(t, info.RLESize, info.MinSize)
	})

	t.Run("NoDictionary", func(t *testing.T) {
		est := NewExact(rawT, false)
		info := est.EstimateGroupSize([]int{0})
		assert.Equal(t, min(info.RLESize, info.OLESize), info.MinSize)
	})

	t.Run("Distinct", func(t *testing.T) {
		est := NewExact(rawT, true)
		info := est.EstimateGroupSize([]int{2})
		assert.Equal(t, int64(99), info.EstNnz)
		assert.Greater(t, info.MinSize, UncompressedSize(100, 1, 0.99))
	})
}
