package colgroup

import (
	"github.com/hupe1980/cla/bitmap"
	"github.com/hupe1980/cla/internal/wire"
	"github.com/hupe1980/cla/matrix"
)

// OLE stores, per tuple, its rows as offset lists split into segments of
// BlockSize rows.
type OLE struct {
	offsetGroup
}

var _ Group = (*OLE)(nil)

// NewOLE encodes the bitmap of the given columns.
func NewOLE(cols []int, rows int, bm *bitmap.Bitmap) *OLE {
	return newOLE(cols, rows, bm.Values(), offsetsOf(bm))
}

func newOLE(cols []int, rows int, values []float64, offsets [][]int32) *OLE {
	return &OLE{offsetGroup: newOffsetGroup(cols, rows, values, offsets, bitmap.EncodeOLE)}
}

func (g *OLE) runs(k, rl, ru int, fn func(start, end int)) {
	bitmap.ForEachOLE(g.payload(k), rl, ru, func(r int) { fn(r, r+1) })
}

func (g *OLE) Type() Type { return TypeOLE }

func (g *OLE) Get(r, c int) float64 { return g.get(g.runs, r, c) }

func (g *OLE) DecompressToBlock(target *matrix.Block, rl, ru int) {
	g.decompress(g.runs, target, rl, ru)
}

func (g *OLE) DecompressColumn(dst []float64, colPos int) {
	g.decompressColumn(g.runs, dst, colPos)
}

func (g *OLE) CountNonZerosPerRow(rnnz []int, rl, ru int) {
	g.countNonZeros(g.runs, rnnz, rl, ru)
}

func (g *OLE) ScalarOp(fn func(float64) float64) Group {
	return &OLE{offsetGroup: g.scalarOp(g.runs, fn, bitmap.EncodeOLE)}
}

func (g *OLE) Shifted(offset int) Group {
	return &OLE{offsetGroup: g.shiftedBase(offset)}
}

func (g *OLE) EstimateInMemorySize() int64 { return g.inMemorySize() }

func (g *OLE) ExactSizeOnDisk() int64 { return g.sizeOnDisk() }

func (g *OLE) RightMultByVector(v, out []float64, rl, ru int, s *Scratch) {
	g.rightMult(g.runs, v, out, rl, ru, s)
}

func (g *OLE) LeftMultByRowVector(v, out []float64, s *Scratch) {
	g.leftMult(g.runs, v, out, s)
}

func (g *OLE) UnaryAggregate(res *AggResult, rl, ru int, s *Scratch) {
	g.aggregate(g.runs, res, rl, ru, s)
}

func (g *OLE) encode(w *wire.Writer) { g.encodeOffsets(w) }

func decodeOLE(r *wire.Reader) (Group, error) {
	base, err := decodeOffsets(r)
	if err != nil {
		return nil, err
	}
	if err := base.validate(bitmap.ValidateOLE); err != nil {
		return nil, err
	}
	g := &OLE{offsetGroup: base}
	g.initCounts(g.runs)
	return g, nil
}

func offsetsOf(bm *bitmap.Bitmap) [][]int32 {
	out := make([][]int32, bm.NumValues())
	for k := range out {
		out[k] = bm.Offsets(k)
	}
	return out
}
