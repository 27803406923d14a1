package cocode

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cla/estimate"
	"github.com/hupe1980/cla/matrix"
)

func correlated() *matrix.Block {
	m := matrix.NewDense(500, 4)
	for r := 0; r < 500; r++ {
		m.Set(r, 0, float64(r%4+1))
		m.Set(r, 1, float64((r%4+1)*10))
		m.Set(r, 2, float64(r%7+1))
		m.Set(r, 3, float64(r%7+1)*3)
	}
	return m
}

func infosFor(est estimate.Estimator, n int) []estimate.SizeInfo {
	infos := make([]estimate.SizeInfo, n)
	for c := range infos {
		infos[c] = est.EstimateGroupSize([]int{c})
	}
	return infos
}

func TestSingletons(t *testing.T) {
	groups, err := Singletons.Plan(context.Background(), nil, []int{3, 1}, nil, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{3}, {1}}, groups)
}

func TestGreedy(t *testing.T) {
	rawT := correlated().Transpose()
	est := estimate.NewExact(rawT, true)
	infos := infosFor(est, 4)

	for _, k := range []int{1, 4} {
		groups, err := Greedy{}.Plan(context.Background(), est, []int{0, 1, 2, 3}, infos, 500, k)
		require.NoError(t, err)

		var all []int
		for _, g := range groups {
			assert.True(t, slices.IsSorted(g))
			all = append(all, g...)
		}
		slices.Sort(all)
		assert.Equal(t, []int{0, 1, 2, 3}, all)

		// perfectly correlated pairs are co-coded
		assert.Contains(t, groups, []int{0, 1})
		assert.Contains(t, groups, []int{2, 3})
	}
}

func TestGreedy_SmallBins(t *testing.T) {
	rawT := correlated().Transpose()
	est := estimate.NewExact(rawT, true)
	infos := infosFor(est, 4)

	groups, err := Greedy{BinSize: 1}.Plan(context.Background(), est, []int{0, 1, 2, 3}, infos, 500, 2)
	require.NoError(t, err)
	assert.Len(t, groups, 4)
}

func TestGreedy_Empty(t *testing.T) {
	groups, err := Greedy{}.Plan(context.Background(), nil, nil, nil, 0, 1)
	require.NoError(t, err)
	assert.Empty(t, groups)
}
