package colgroup

import (
	"github.com/hupe1980/cla/bitmap"
	"github.com/hupe1980/cla/internal/wire"
	"github.com/hupe1980/cla/matrix"
)

// RLE stores, per tuple, its rows as (gap, length) run pairs.
type RLE struct {
	offsetGroup
}

var _ Group = (*RLE)(nil)

// NewRLE encodes the bitmap of the given columns.
func NewRLE(cols []int, rows int, bm *bitmap.Bitmap) *RLE {
	return newRLE(cols, rows, bm.Values(), offsetsOf(bm))
}

func newRLE(cols []int, rows int, values []float64, offsets [][]int32) *RLE {
	return &RLE{offsetGroup: newOffsetGroup(cols, rows, values, offsets, bitmap.EncodeRLE)}
}

func (g *RLE) runs(k, rl, ru int, fn func(start, end int)) {
	bitmap.ForEachRun(g.payload(k), rl, ru, fn)
}

func (g *RLE) Type() Type { return TypeRLE }

func (g *RLE) Get(r, c int) float64 { return g.get(g.runs, r, c) }

func (g *RLE) DecompressToBlock(target *matrix.Block, rl, ru int) {
	g.decompress(g.runs, target, rl, ru)
}

func (g *RLE) DecompressColumn(dst []float64, colPos int) {
	g.decompressColumn(g.runs, dst, colPos)
}

func (g *RLE) CountNonZerosPerRow(rnnz []int, rl, ru int) {
	g.countNonZeros(g.runs, rnnz, rl, ru)
}

func (g *RLE) ScalarOp(fn func(float64) float64) Group {
	return &RLE{offsetGroup: g.scalarOp(g.runs, fn, bitmap.EncodeRLE)}
}

func (g *RLE) Shifted(offset int) Group {
	return &RLE{offsetGroup: g.shiftedBase(offset)}
}

func (g *RLE) EstimateInMemorySize() int64 { return g.inMemorySize() }

func (g *RLE) ExactSizeOnDisk() int64 { return g.sizeOnDisk() }

func (g *RLE) RightMultByVector(v, out []float64, rl, ru int, s *Scratch) {
	g.rightMult(g.runs, v, out, rl, ru, s)
}

func (g *RLE) LeftMultByRowVector(v, out []float64, s *Scratch) {
	g.leftMult(g.runs, v, out, s)
}

func (g *RLE) UnaryAggregate(res *AggResult, rl, ru int, s *Scratch) {
	g.aggregate(g.runs, res, rl, ru, s)
}

func (g *RLE) encode(w *wire.Writer) { g.encodeOffsets(w) }

func decodeRLE(r *wire.Reader) (Group, error) {
	base, err := decodeOffsets(r)
	if err != nil {
		return nil, err
	}
	if err := base.validate(bitmap.ValidateRLE); err != nil {
		return nil, err
	}
	g := &RLE{offsetGroup: base}
	g.initCounts(g.runs)
	return g, nil
}
