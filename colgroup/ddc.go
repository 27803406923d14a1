package colgroup

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/cla/bitmap"
	"github.com/hupe1980/cla/internal/wire"
	"github.com/hupe1980/cla/matrix"
)

// ddcGroup is the common base of DDC1 and DDC2: a dictionary plus one index
// per row. When some rows hold no non-zero tuple, an all-zero tuple is
// appended as the last dictionary entry.
type ddcGroup struct {
	valueGroup
}

func ddcDictionary(cols []int, rows int, bm *bitmap.Bitmap) (valueGroup, bool) {
	values := bm.Values()
	zeros := bm.NumOffsets() < int64(rows)
	if zeros {
		values = append(append([]float64(nil), values...), make([]float64, len(cols))...)
	}
	return valueGroup{cols: cols, rows: rows, values: values}, zeros
}

func (g *ddcGroup) get(idx func(int) int, r, c int) float64 {
	pos := colPos(g.cols, c)
	if pos < 0 {
		return 0
	}
	return g.values[idx(r)*len(g.cols)+pos]
}

func (g *ddcGroup) decompress(idx func(int) int, target *matrix.Block, rl, ru int) {
	nc := len(g.cols)
	for r := rl; r < ru; r++ {
		off := idx(r) * nc
		for j, c := range g.cols {
			target.AppendValue(r, c, g.values[off+j])
		}
	}
}

func (g *ddcGroup) decompressColumn(idx func(int) int, dst []float64, pos int) {
	nc := len(g.cols)
	for r := 0; r < g.rows; r++ {
		dst[r] = g.values[idx(r)*nc+pos]
	}
}

func (g *ddcGroup) countNonZeros(idx func(int) int, rnnz []int, rl, ru int) {
	nnz := g.tupleNonZeros()
	for r := rl; r < ru; r++ {
		rnnz[r-rl] += nnz[idx(r)]
	}
}

func (g *ddcGroup) rightMult(idx func(int) int, v, out []float64, rl, ru int, s *Scratch) {
	vals := g.preaggregate(v, s)
	for r := rl; r < ru; r++ {
		out[r] += vals[idx(r)]
	}
}

func (g *ddcGroup) leftMult(idx func(int) int, v, out []float64, s *Scratch) {
	sums := s.Values(g.NumValues())
	for r := 0; r < g.rows; r++ {
		sums[idx(r)] += v[r]
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

func (g *ddcGroup) counts(idx func(int) int) []int {
	cnt := make([]int, g.NumValues())
	for r := 0; r < g.rows; r++ {
		cnt[idx(r)]++
	}
	return cnt
}

func (g *ddcGroup) aggregate(idx func(int) int, res *AggResult, rl, ru int, s *Scratch) {
	if res.Dir != matrix.RowAgg {
		g.aggregateCounts(res, g.counts(idx), false, s)
		return
	}
	vals := g.tupleAggregates(res.Fn, s)
	for r := rl; r < ru; r++ {
		res.Add(r, vals[idx(r)])
	}
}

// DDC1 indexes up to 255 tuples with one byte per row.
type DDC1 struct {
	ddcGroup
	data []uint8
}

var _ Group = (*DDC1)(nil)

// NewDDC1 encodes the bitmap of the given columns.
func NewDDC1(cols []int, rows int, bm *bitmap.Bitmap) (*DDC1, error) {
	vg, zeros := ddcDictionary(cols, rows, bm)
	if n := vg.NumValues(); n > math.MaxUint8+1 || (!zeros && n > math.MaxUint8) {
		return nil, fmt.Errorf("colgroup: %d tuples exceed DDC1 capacity", bm.NumValues())
	}
	g := &DDC1{ddcGroup: ddcGroup{valueGroup: vg}, data: make([]uint8, rows)}
	if zeros {
		zero := uint8(vg.NumValues() - 1)
		for r := range g.data {
			g.data[r] = zero
		}
	}
	for k := 0; k < bm.NumValues(); k++ {
		for _, r := range bm.Offsets(k) {
			g.data[r] = uint8(k)
		}
	}
	return g, nil
}

func (g *DDC1) index(r int) int { return int(g.data[r]) }

func (g *DDC1) Type() Type { return TypeDDC1 }

func (g *DDC1) Get(r, c int) float64 { return g.get(g.index, r, c) }

func (g *DDC1) DecompressToBlock(target *matrix.Block, rl, ru int) {
	g.decompress(g.index, target, rl, ru)
}

func (g *DDC1) DecompressColumn(dst []float64, colPos int) {
	g.decompressColumn(g.index, dst, colPos)
}

func (g *DDC1) CountNonZerosPerRow(rnnz []int, rl, ru int) {
	g.countNonZeros(g.index, rnnz, rl, ru)
}

func (g *DDC1) ScalarOp(fn func(float64) float64) Group {
	ng := *g
	ng.values = g.mapValues(fn)
	return &ng
}

func (g *DDC1) Shifted(offset int) Group {
	ng := *g
	ng.valueGroup = g.valueGroup.shifted(offset)
	return &ng
}

func (g *DDC1) EstimateInMemorySize() int64 {
	return g.inMemorySize() + int64(len(g.data))
}

func (g *DDC1) ExactSizeOnDisk() int64 {
	return g.sizeOnDisk() + 4 + int64(len(g.data))
}

func (g *DDC1) RightMultByVector(v, out []float64, rl, ru int, s *Scratch) {
	if ru-rl > WriteCacheBlockSize {
		RightMultByVectorDDC1([]*DDC1{g}, v, out, rl, ru, s)
		return
	}
	g.rightMult(g.index, v, out, rl, ru, s)
}

func (g *DDC1) LeftMultByRowVector(v, out []float64, s *Scratch) {
	g.leftMult(g.index, v, out, s)
}

func (g *DDC1) UnaryAggregate(res *AggResult, rl, ru int, s *Scratch) {
	if res.Dir == matrix.RowAgg && res.Fn.IsSum() && ru-rl > WriteCacheBlockSize/2 {
		RowSumsDDC1(g, res, rl, ru, s)
		return
	}
	g.aggregate(g.index, res, rl, ru, s)
}

func (g *DDC1) encode(w *wire.Writer) {
	g.encodeValues(w)
	w.Int(len(g.data))
	w.Bytes(g.data)
}

func decodeDDC1(r *wire.Reader) (Group, error) {
	vg, err := decodeValues(r)
	if err != nil {
		return nil, err
	}
	n := r.Len()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if n != vg.rows {
		return nil, fmt.Errorf("index length %d does not match %d rows", n, vg.rows)
	}
	g := &DDC1{ddcGroup: ddcGroup{valueGroup: vg}, data: make([]uint8, n)}
	r.Bytes(g.data)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return g, checkIndexes(g.data, vg.NumValues())
}

// RightMultByVectorDDC1 adds the contribution of several DDC1 groups to
// rows [rl, ru) of X %*% v. Rows are processed in cache blocks of
// WriteCacheBlockSize and every group is visited per block, so the output
// block stays cache resident.
func RightMultByVectorDDC1(groups []*DDC1, v, out []float64, rl, ru int, s *Scratch) {
	if len(groups) == 0 {
		return
	}
	offs := make([]int, len(groups)+1)
	for i, g := range groups {
		offs[i+1] = offs[i] + g.NumValues()
	}
	vals := s.Values(offs[len(groups)])
	for i, g := range groups {
		copy(vals[offs[i]:offs[i+1]], g.preaggregate(v, nil))
	}
	for bl := rl; bl < ru; bl += WriteCacheBlockSize {
		bu := min(bl+WriteCacheBlockSize, ru)
		for i, g := range groups {
			gv := vals[offs[i]:offs[i+1]]
			data := g.data[bl:bu]
			dst := out[bl:bu]
			for j, ix := range data {
				dst[j] += gv[ix]
			}
		}
	}
}

// RowSumsDDC1 folds rows [rl, ru) of a sum or sum-of-squares row aggregate
// with Kahan compensation, walking the index in cache blocks.
func RowSumsDDC1(g *DDC1, res *AggResult, rl, ru int, s *Scratch) {
	vals := g.tupleAggregates(res.Fn, s)
	for bl := rl; bl < ru; bl += WriteCacheBlockSize {
		bu := min(bl+WriteCacheBlockSize, ru)
		sums, corr := res.Vals[bl:bu], res.Corr[bl:bu]
		for j, ix := range g.data[bl:bu] {
			sums[j], corr[j] = matrix.KahanAdd(sums[j], corr[j], vals[ix])
		}
	}
}

// DDC2 indexes up to 65535 tuples with two bytes per row.
type DDC2 struct {
	ddcGroup
	data []uint16
}

var _ Group = (*DDC2)(nil)

// NewDDC2 encodes the bitmap of the given columns.
func NewDDC2(cols []int, rows int, bm *bitmap.Bitmap) (*DDC2, error) {
	vg, zeros := ddcDictionary(cols, rows, bm)
	if n := vg.NumValues(); n > math.MaxUint16+1 || (!zeros && n > math.MaxUint16) {
		return nil, fmt.Errorf("colgroup: %d tuples exceed DDC2 capacity", bm.NumValues())
	}
	g := &DDC2{ddcGroup: ddcGroup{valueGroup: vg}, data: make([]uint16, rows)}
	if zeros {
		zero := uint16(vg.NumValues() - 1)
		for r := range g.data {
			g.data[r] = zero
		}
	}
	for k := 0; k < bm.NumValues(); k++ {
		for _, r := range bm.Offsets(k) {
			g.data[r] = uint16(k)
		}
	}
	return g, nil
}

func (g *DDC2) index(r int) int { return int(g.data[r]) }

func (g *DDC2) Type() Type { return TypeDDC2 }

func (g *DDC2) Get(r, c int) float64 { return g.get(g.index, r, c) }

func (g *DDC2) DecompressToBlock(target *matrix.Block, rl, ru int) {
	g.decompress(g.index, target, rl, ru)
}

func (g *DDC2) DecompressColumn(dst []float64, colPos int) {
	g.decompressColumn(g.index, dst, colPos)
}

func (g *DDC2) CountNonZerosPerRow(rnnz []int, rl, ru int) {
	g.countNonZeros(g.index, rnnz, rl, ru)
}

func (g *DDC2) ScalarOp(fn func(float64) float64) Group {
	ng := *g
	ng.values = g.mapValues(fn)
	return &ng
}

func (g *DDC2) Shifted(offset int) Group {
	ng := *g
	ng.valueGroup = g.valueGroup.shifted(offset)
	return &ng
}

func (g *DDC2) EstimateInMemorySize() int64 {
	return g.inMemorySize() + 2*int64(len(g.data))
}

func (g *DDC2) ExactSizeOnDisk() int64 {
	return g.sizeOnDisk() + 4 + 2*int64(len(g.data))
}

func (g *DDC2) RightMultByVector(v, out []float64, rl, ru int, s *Scratch) {
	g.rightMult(g.index, v, out, rl, ru, s)
}

func (g *DDC2) LeftMultByRowVector(v, out []float64, s *Scratch) {
	g.leftMult(g.index, v, out, s)
}

func (g *DDC2) UnaryAggregate(res *AggResult, rl, ru int, s *Scratch) {
	g.aggregate(g.index, res, rl, ru, s)
}

func (g *DDC2) encode(w *wire.Writer) {
	g.encodeValues(w)
	w.Uint16s(g.data)
}

func decodeDDC2(r *wire.Reader) (Group, error) {
	vg, err := decodeValues(r)
	if err != nil {
		return nil, err
	}
	data := r.Uint16s()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if len(data) != vg.rows {
		return nil, fmt.Errorf("index length %d does not match %d rows", len(data), vg.rows)
	}
	return &DDC2{ddcGroup: ddcGroup{valueGroup: vg}, data: data}, checkIndexes(data, vg.NumValues())
}

var errIndexRange = errors.New("dictionary index out of range")

func checkIndexes[T uint8 | uint16](data []T, numValues int) error {
	for _, ix := range data {
		if int(ix) >= numValues {
			return errIndexRange
		}
	}
	return nil
}
