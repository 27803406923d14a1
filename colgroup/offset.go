package colgroup

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/cla/internal/wire"
	"github.com/hupe1980/cla/matrix"
)

// runFunc visits the rows of tuple k inside [rl, ru) as half-open runs.
type runFunc func(k, rl, ru int, fn func(start, end int))

// offsetGroup is the common base of OLE and RLE: per tuple, an encoded
// payload in data[ptr[k]:ptr[k+1]].
type offsetGroup struct {
	valueGroup
	data   []uint16
	ptr    []int
	counts []int
	zeros  bool
}

func newOffsetGroup(cols []int, rows int, values []float64, offsets [][]int32, enc func([]int32) []uint16) offsetGroup {
	g := offsetGroup{
		valueGroup: valueGroup{cols: cols, rows: rows, values: values},
		ptr:        make([]int, len(offsets)+1),
		counts:     make([]int, len(offsets)),
	}
	total := 0
	for k, o := range offsets {
		g.data = append(g.data, enc(o)...)
		g.ptr[k+1] = len(g.data)
		g.counts[k] = len(o)
		total += len(o)
	}
	g.zeros = total < rows
	return g
}

func (g *offsetGroup) payload(k int) []uint16 {
	return g.data[g.ptr[k]:g.ptr[k+1]]
}

func (g *offsetGroup) initCounts(it runFunc) {
	g.counts = make([]int, g.NumValues())
	total := 0
	for k := range g.counts {
		it(k, 0, g.rows, func(start, end int) { g.counts[k] += end - start })
		total += g.counts[k]
	}
	g.zeros = total < g.rows
}

func (g *offsetGroup) get(it runFunc, r, c int) float64 {
	pos := colPos(g.cols, c)
	if pos < 0 {
		return 0
	}
	for k := 0; k < g.NumValues(); k++ {
		found := false
		it(k, r, r+1, func(int, int) { found = true })
		if found {
			return g.tuple(k)[pos]
		}
	}
	return 0
}

func (g *offsetGroup) decompress(it runFunc, target *matrix.Block, rl, ru int) {
	for k := 0; k < g.NumValues(); k++ {
		t := g.tuple(k)
		it(k, rl, ru, func(start, end int) {
			for r := start; r < end; r++ {
				for j, c := range g.cols {
					target.AppendValue(r, c, t[j])
				}
			}
		})
	}
}

func (g *offsetGroup) decompressColumn(it runFunc, dst []float64, pos int) {
	for k := 0; k < g.NumValues(); k++ {
		v := g.tuple(k)[pos]
		if v == 0 {
			continue
		}
		it(k, 0, g.rows, func(start, end int) {
			for r := start; r < end; r++ {
				dst[r] = v
			}
		})
	}
}

func (g *offsetGroup) countNonZeros(it runFunc, rnnz []int, rl, ru int) {
	nnz := g.tupleNonZeros()
	for k, n := range nnz {
		if n == 0 {
			continue
		}
		it(k, rl, ru, func(start, end int) {
			for r := start; r < end; r++ {
				rnnz[r-rl] += n
			}
		})
	}
}

func (g *offsetGroup) rightMult(it runFunc, v, out []float64, rl, ru int, s *Scratch) {
	vals := g.preaggregate(v, s)
	for k, val := range vals {
		if val == 0 {
			continue
		}
		it(k, rl, ru, func(start, end int) {
			for r := start; r < end; r++ {
				out[r] += val
			}
		})
	}
}

func (g *offsetGroup) leftMult(it runFunc, v, out []float64, s *Scratch) {
	nv := g.NumValues()
	sums := s.Values(nv)
	for k := 0; k < nv; k++ {
		var sum float64
		it(k, 0, g.rows, func(start, end int) {
			for r := start; r < end; r++ {
				sum += v[r]
			}
		})
		sums[k] = sum
	}
	for k, sum := range sums {
		if sum == 0 {
			continue
		}
		for j, x := range g.tuple(k) {
			out[g.cols[j]] += sum * x
		}
	}
}

func (g *offsetGroup) aggregate(it runFunc, res *AggResult, rl, ru int, s *Scratch) {
	if res.Dir != matrix.RowAgg {
		g.aggregateCounts(res, g.counts, g.zeros, s)
		return
	}
	vals := g.tupleAggregates(res.Fn, s)
	for k, val := range vals {
		it(k, rl, ru, func(start, end int) {
			for r := start; r < end; r++ {
				res.Add(r, val)
			}
		})
	}
}

// offsets decodes the row lists of all tuples.
func (g *offsetGroup) offsets(it runFunc) [][]int32 {
	out := make([][]int32, g.NumValues())
	for k := range out {
		o := make([]int32, 0, g.counts[k])
		it(k, 0, g.rows, func(start, end int) {
			for r := start; r < end; r++ {
				o = append(o, int32(r))
			}
		})
		out[k] = o
	}
	return out
}

// scalarOp maps the dictionary. When fn(0) is non-zero the rows holding the
// implicit zero tuple are materialized as an extra tuple.
func (g *offsetGroup) scalarOp(it runFunc, fn func(float64) float64, enc func([]int32) []uint16) offsetGroup {
	values := g.mapValues(fn)
	z := fn(0)
	if !g.zeros || z == 0 {
		ng := *g
		ng.values = values
		return ng
	}
	offsets := g.offsets(it)
	covered := roaring.New()
	for _, o := range offsets {
		for _, r := range o {
			covered.Add(uint32(r))
		}
	}
	covered.Flip(0, uint64(g.rows))
	complement := make([]int32, 0, covered.GetCardinality())
	ci := covered.Iterator()
	for ci.HasNext() {
		complement = append(complement, int32(ci.Next()))
	}
	for range g.cols {
		values = append(values, z)
	}
	return newOffsetGroup(g.cols, g.rows, values, append(offsets, complement), enc)
}

func (g *offsetGroup) shiftedBase(offset int) offsetGroup {
	ng := *g
	ng.valueGroup = g.valueGroup.shifted(offset)
	return ng
}

func (g *offsetGroup) inMemorySize() int64 {
	return g.valueGroup.inMemorySize() + 2*int64(len(g.data)) + 8*int64(len(g.ptr)) + 8*int64(len(g.counts)) + 1
}

func (g *offsetGroup) sizeOnDisk() int64 {
	return g.valueGroup.sizeOnDisk() + 4 + 4*int64(len(g.ptr)) + 4 + 2*int64(len(g.data))
}

func (g *offsetGroup) encodeOffsets(w *wire.Writer) {
	g.encodeValues(w)
	w.Ints(g.ptr)
	w.Uint16s(g.data)
}

var errPointers = errors.New("invalid tuple pointers")

func decodeOffsets(r *wire.Reader) (offsetGroup, error) {
	vg, err := decodeValues(r)
	if err != nil {
		return offsetGroup{}, err
	}
	g := offsetGroup{valueGroup: vg, ptr: r.Ints(), data: r.Uint16s()}
	if err := r.Err(); err != nil {
		return g, err
	}
	nv := g.NumValues()
	if len(g.ptr) != nv+1 || g.ptr[0] != 0 || g.ptr[nv] != len(g.data) {
		return g, errPointers
	}
	for k := 1; k <= nv; k++ {
		if g.ptr[k] < g.ptr[k-1] {
			return g, errPointers
		}
	}
	return g, nil
}

// validate checks every tuple payload against the group's row count.
func (g *offsetGroup) validate(check func(data []uint16, rows int) error) error {
	for k := 0; k < g.NumValues(); k++ {
		if err := check(g.payload(k), g.rows); err != nil {
			return fmt.Errorf("tuple %d: %w", k, err)
		}
	}
	return nil
}
