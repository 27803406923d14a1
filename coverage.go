package cla

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/cla/colgroup"
)

// coverage checks that groups own every column of a rows×cols block
// exactly once and returns the column to group index.
func coverage(rows, cols int, groups []colgroup.Group) ([]int, error) {
	seen := bitset.New(uint(cols))
	colGroup := make([]int, cols)
	for i, g := range groups {
		if g.NumRows() != rows {
			return nil, fmt.Errorf("%w: group %d has %d rows, want %d", ErrDimensionMismatch, i, g.NumRows(), rows)
		}
		for _, c := range g.ColIndices() {
			if c < 0 || c >= cols {
				return nil, fmt.Errorf("%w: group %d owns column %d outside [0,%d)", ErrDimensionMismatch, i, c, cols)
			}
			if seen.Test(uint(c)) {
				return nil, fmt.Errorf("%w: column %d owned twice", ErrDimensionMismatch, c)
			}
			seen.Set(uint(c))
			colGroup[c] = i
		}
	}
	if missing, ok := seen.NextClear(0); ok && missing < uint(cols) {
		return nil, fmt.Errorf("%w: column %d not owned by any group", ErrDimensionMismatch, missing)
	}
	return colGroup, nil
}

// unclaimed returns the columns in [0,cols) not set in claimed.
func unclaimed(claimed *bitset.BitSet, cols int) []int {
	var out []int
	for i, ok := claimed.NextClear(0); ok && i < uint(cols); i, ok = claimed.NextClear(i + 1) {
		out = append(out, int(i))
	}
	return out
}
