package matrix

import (
	"fmt"
	"math"
)

// AggFn identifies a unary aggregate function.
type AggFn int

const (
	Sum AggFn = iota
	SumSq
	Min
	Max
)

func (f AggFn) String() string {
	switch f {
	case Sum:
		return "sum"
	case SumSq:
		return "sumsq"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("AggFn(%d)", int(f))
	}
}

// Init returns the neutral starting value of the aggregate.
func (f AggFn) Init() float64 {
	switch f {
	case Min:
		return math.Inf(1)
	case Max:
		return math.Inf(-1)
	default:
		return 0
	}
}

// Combine merges two partial results of min/max aggregates.
func (f AggFn) Combine(a, b float64) float64 {
	switch f {
	case Min:
		return math.Min(a, b)
	case Max:
		return math.Max(a, b)
	default:
		return a + b
	}
}

// IsSum reports whether the aggregate is compensated.
func (f AggFn) IsSum() bool { return f == Sum || f == SumSq }

// Map applies the per-cell transform of the aggregate.
func (f AggFn) Map(v float64) float64 {
	if f == SumSq {
		return v * v
	}
	return v
}

// Direction is the reduction axis.
type Direction int

const (
	// Full reduces to a single scalar.
	Full Direction = iota
	// RowAgg reduces every row to one value (rows×1 result).
	RowAgg
	// ColAgg reduces every column to one value (1×cols result).
	ColAgg
)

func (d Direction) String() string {
	switch d {
	case Full:
		return "full"
	case RowAgg:
		return "row"
	case ColAgg:
		return "col"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// OutLen returns the length of the result vector for a rows×cols input.
func (d Direction) OutLen(rows, cols int) int {
	switch d {
	case RowAgg:
		return rows
	case ColAgg:
		return cols
	default:
		return 1
	}
}

// Aggregate computes a unary aggregate conventionally. Implicit zeros of
// sparse rows participate in min/max.
func Aggregate(b *Block, fn AggFn, dir Direction) []float64 {
	n := dir.OutLen(b.rows, b.cols)
	out := make([]float64, n)
	corr := make([]float64, n)
	for i := range out {
		out[i] = fn.Init()
	}
	if b.rows == 0 || b.cols == 0 {
		return out
	}
	idx := func(r, c int) int {
		switch dir {
		case RowAgg:
			return r
		case ColAgg:
			return c
		}
		return 0
	}
	apply := func(i int, v float64) {
		if fn.IsSum() {
			out[i], corr[i] = KahanAdd(out[i], corr[i], fn.Map(v))
		} else {
			out[i] = fn.Combine(out[i], v)
		}
	}
	if !b.sparse {
		for r := 0; r < b.rows; r++ {
			for c, v := range b.dense[r*b.cols : (r+1)*b.cols] {
				apply(idx(r, c), v)
			}
		}
		return out
	}
	seen := make([]int, b.cols)
	for r := 0; r < b.rows; r++ {
		cnt := 0
		b.ForEachNonZero(r, func(c int, v float64) {
			apply(idx(r, c), v)
			seen[c]++
			cnt++
		})
		if !fn.IsSum() && dir != ColAgg && cnt < b.cols {
			apply(idx(r, 0), 0)
		}
	}
	if !fn.IsSum() && dir == ColAgg {
		for c, cnt := range seen {
			if cnt < b.rows {
				apply(c, 0)
			}
		}
	}
	return out
}
