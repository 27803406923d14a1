package colgroup

import (
	"github.com/hupe1980/cla/internal/wire"
	"github.com/hupe1980/cla/matrix"
)

// valueGroup holds the dictionary shared by the OLE, RLE and DDC encodings:
// NumValues tuples of NumCols values each, stored flattened.
type valueGroup struct {
	cols   []int
	rows   int
	values []float64
}

func (g *valueGroup) ColIndices() []int { return g.cols }

func (g *valueGroup) NumCols() int { return len(g.cols) }

func (g *valueGroup) NumRows() int { return g.rows }

func (g *valueGroup) NumValues() int {
	if len(g.cols) == 0 {
		return 0
	}
	return len(g.values) / len(g.cols)
}

func (g *valueGroup) tuple(k int) []float64 {
	nc := len(g.cols)
	return g.values[k*nc : (k+1)*nc]
}

// preaggregate returns, per tuple, the dot product with v gathered at the
// group's columns.
func (g *valueGroup) preaggregate(v []float64, s *Scratch) []float64 {
	nv := g.NumValues()
	vals := s.Values(nv)
	for k := 0; k < nv; k++ {
		var sum float64
		for j, x := range g.tuple(k) {
			sum += x * v[g.cols[j]]
		}
		vals[k] = sum
	}
	return vals
}

// tupleAggregates returns, per tuple, its row contribution under fn.
func (g *valueGroup) tupleAggregates(fn matrix.AggFn, s *Scratch) []float64 {
	nv := g.NumValues()
	vals := s.Values(nv)
	for k := 0; k < nv; k++ {
		if fn.IsSum() {
			var acc matrix.Kahan
			for _, x := range g.tuple(k) {
				acc.Add(fn.Map(x))
			}
			vals[k] = acc.Sum
			continue
		}
		m := fn.Init()
		for _, x := range g.tuple(k) {
			m = fn.Combine(m, x)
		}
		vals[k] = m
	}
	return vals
}

// tupleNonZeros returns the number of non-zero cells per tuple.
func (g *valueGroup) tupleNonZeros() []int {
	nv := g.NumValues()
	cnt := make([]int, nv)
	for k := 0; k < nv; k++ {
		for _, x := range g.tuple(k) {
			if x != 0 {
				cnt[k]++
			}
		}
	}
	return cnt
}

// aggregateCounts folds full and column aggregates given per-tuple row
// counts. zeros reports whether some rows hold the all-zero tuple.
func (g *valueGroup) aggregateCounts(res *AggResult, counts []int, zeros bool, s *Scratch) {
	nc := len(g.cols)
	switch res.Dir {
	case matrix.Full:
		if res.Fn.IsSum() {
			vals := g.tupleAggregates(res.Fn, s)
			for k, cnt := range counts {
				res.Add(0, vals[k]*float64(cnt))
			}
			return
		}
		for k := range counts {
			for _, x := range g.tuple(k) {
				res.Add(0, x)
			}
		}
		if zeros {
			res.Add(0, 0)
		}
	case matrix.ColAgg:
		for j, c := range g.cols {
			if res.Fn.IsSum() {
				for k, cnt := range counts {
					res.Add(c, res.Fn.Map(g.values[k*nc+j])*float64(cnt))
				}
				continue
			}
			for k := range counts {
				res.Add(c, g.values[k*nc+j])
			}
			if zeros {
				res.Add(c, 0)
			}
		}
	}
}

func (g *valueGroup) mapValues(fn func(float64) float64) []float64 {
	out := make([]float64, len(g.values))
	for i, v := range g.values {
		out[i] = fn(v)
	}
	return out
}

func (g *valueGroup) shifted(offset int) valueGroup {
	return valueGroup{cols: shiftCols(g.cols, offset), rows: g.rows, values: g.values}
}

func (g *valueGroup) inMemorySize() int64 {
	return 48 + 4*int64(len(g.cols)) + 8*int64(len(g.values))
}

func (g *valueGroup) sizeOnDisk() int64 {
	return 4 + 4*int64(len(g.cols)) + 4 + 4 + 8*int64(len(g.values))
}

func (g *valueGroup) encodeValues(w *wire.Writer) {
	w.Ints(g.cols)
	w.Int(g.rows)
	w.Float64s(g.values)
}

func decodeValues(r *wire.Reader) (valueGroup, error) {
	g := valueGroup{cols: r.Ints(), rows: r.Int(), values: r.Float64s()}
	if err := r.Err(); err != nil {
		return g, err
	}
	if err := validateCols(g.cols, g.rows); err != nil {
		return g, err
	}
	if len(g.values)%len(g.cols) != 0 {
		return g, errValuesShape
	}
	return g, nil
}
