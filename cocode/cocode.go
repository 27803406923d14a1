// Package cocode plans which compressible columns are encoded together.
package cocode

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/cla/estimate"
	"github.com/hupe1980/cla/internal/parallel"
)

// Planner partitions columns into groups for joint encoding. infos is
// indexed by absolute column.
type Planner interface {
	Plan(ctx context.Context, est estimate.Estimator, cols []int, infos []estimate.SizeInfo, rows, k int) ([][]int, error)
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(ctx context.Context, est estimate.Estimator, cols []int, infos []estimate.SizeInfo, rows, k int) ([][]int, error)

// Plan implements Planner.
func (f PlannerFunc) Plan(ctx context.Context, est estimate.Estimator, cols []int, infos []estimate.SizeInfo, rows, k int) ([][]int, error) {
	return f(ctx, est, cols, infos, rows, k)
}

// Singletons places every column in its own group.
var Singletons Planner = PlannerFunc(func(_ context.Context, _ estimate.Estimator, cols []int, _ []estimate.SizeInfo, _, _ int) ([][]int, error) {
	out := make([][]int, len(cols))
	for i, c := range cols {
		out[i] = []int{c}
	}
	return out, nil
})

// DefaultBinSize bounds the number of columns considered together by Greedy.
const DefaultBinSize = 16

// Greedy sorts columns by estimated size, cuts them into bins and, inside
// every bin, repeatedly merges the pair of groups with the largest positive
// size reduction. Bins are planned in parallel.
type Greedy struct {
	BinSize int
}

var _ Planner = Greedy{}

// Plan implements Planner.
func (p Greedy) Plan(ctx context.Context, est estimate.Estimator, cols []int, infos []estimate.SizeInfo, _, k int) ([][]int, error) {
	if len(cols) == 0 {
		return nil, nil
	}
	binSize := p.BinSize
	if binSize <= 0 {
		binSize = DefaultBinSize
	}
	sorted := slices.Clone(cols)
	sort.SliceStable(sorted, func(i, j int) bool {
		return infos[sorted[i]].MinSize < infos[sorted[j]].MinSize
	})

	bins := parallel.Bands(len(sorted), binSize)
	results := make([][][]int, len(bins))
	tasks := make([]parallel.Task, len(bins))
	for i, b := range bins {
		tasks[i] = func(ctx context.Context) error {
			groups, err := mergeBin(ctx, est, sorted[b.Lo:b.Hi], infos)
			if err != nil {
				return fmt.Errorf("bin %d: %w", i, err)
			}
			results[i] = groups
			return nil
		}
	}
	if err := parallel.Run(ctx, k, tasks); err != nil {
		return nil, err
	}
	var out [][]int
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func mergeBin(ctx context.Context, est estimate.Estimator, cols []int, infos []estimate.SizeInfo) ([][]int, error) {
	groups := make([][]int, len(cols))
	sizes := make([]int64, len(cols))
	for i, c := range cols {
		groups[i] = []int{c}
		sizes[i] = infos[c].MinSize
	}
	memo := make(map[string]int64)
	size := func(g []int) int64 {
		key := groupKey(g)
		if s, ok := memo[key]; ok {
			return s
		}
		s := est.EstimateGroupSize(g).MinSize
		memo[key] = s
		return s
	}

	for len(groups) > 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bi, bj := -1, -1
		var bestGain, bestSize int64
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				merged := union(groups[i], groups[j])
				s := size(merged)
				if gain := sizes[i] + sizes[j] - s; gain > bestGain {
					bi, bj, bestGain, bestSize = i, j, gain, s
				}
			}
		}
		if bi < 0 {
			break
		}
		groups[bi] = union(groups[bi], groups[bj])
		sizes[bi] = bestSize
		groups = slices.Delete(groups, bj, bj+1)
		sizes = slices.Delete(sizes, bj, bj+1)
	}
	return groups, nil
}

func union(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(append(out, a...), b...)
	slices.Sort(out)
	return out
}

func groupKey(g []int) string {
	var sb strings.Builder
	for i, c := range g {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(c))
	}
	return sb.String()
}
