package colgroup

import (
	"fmt"

	"github.com/hupe1980/cla/internal/wire"
	"github.com/hupe1980/cla/matrix"
)

// Uncompressed keeps its columns verbatim in a conventional block whose
// column j holds the block column cols[j].
type Uncompressed struct {
	cols []int
	data *matrix.Block
}

var _ Group = (*Uncompressed)(nil)

// NewUncompressed copies the given columns out of the transposed matrix
// rawT into a rows×len(cols) block in its preferred format.
func NewUncompressed(cols []int, rawT *matrix.Block) *Uncompressed {
	rows := rawT.Cols()
	var nnz int64
	for _, c := range cols {
		rawT.ForEachNonZero(c, func(int, float64) { nnz++ })
	}
	data := matrix.New(rows, len(cols), matrix.EvalSparseFormat(rows, len(cols), nnz))
	for j, c := range cols {
		rawT.ForEachNonZero(c, func(r int, v float64) { data.AppendValue(r, j, v) })
	}
	data.SetNonZeros(nnz)
	return &Uncompressed{cols: cols, data: data}
}

// NewUncompressedFromBlock wraps data, whose column j maps to cols[j].
func NewUncompressedFromBlock(cols []int, data *matrix.Block) *Uncompressed {
	return &Uncompressed{cols: cols, data: data}
}

// Data returns the wrapped block.
func (g *Uncompressed) Data() *matrix.Block { return g.data }

func (g *Uncompressed) Type() Type { return TypeUncompressed }

func (g *Uncompressed) ColIndices() []int { return g.cols }

func (g *Uncompressed) NumCols() int { return len(g.cols) }

func (g *Uncompressed) NumRows() int { return g.data.Rows() }

func (g *Uncompressed) NumValues() int { return 0 }

func (g *Uncompressed) Get(r, c int) float64 {
	pos := colPos(g.cols, c)
	if pos < 0 {
		return 0
	}
	return g.data.Get(r, pos)
}

func (g *Uncompressed) DecompressToBlock(target *matrix.Block, rl, ru int) {
	for r := rl; r < ru; r++ {
		g.data.ForEachNonZero(r, func(j int, v float64) {
			target.AppendValue(r, g.cols[j], v)
		})
	}
}

func (g *Uncompressed) DecompressColumn(dst []float64, colPos int) {
	for r := 0; r < g.data.Rows(); r++ {
		dst[r] = g.data.Get(r, colPos)
	}
}

func (g *Uncompressed) CountNonZerosPerRow(rnnz []int, rl, ru int) {
	g.data.RowNonZeros(rnnz, rl, ru)
}

func (g *Uncompressed) ScalarOp(fn func(float64) float64) Group {
	return &Uncompressed{cols: g.cols, data: matrix.Unary(g.data, fn)}
}

func (g *Uncompressed) Shifted(offset int) Group {
	return &Uncompressed{cols: shiftCols(g.cols, offset), data: g.data}
}

func (g *Uncompressed) EstimateInMemorySize() int64 {
	return 16 + 4*int64(len(g.cols)) + g.data.InMemorySize()
}

func (g *Uncompressed) ExactSizeOnDisk() int64 {
	return 4 + 4*int64(len(g.cols)) + g.data.SizeOnDisk()
}

func (g *Uncompressed) RightMultByVector(v, out []float64, rl, ru int, _ *Scratch) {
	sel := make([]float64, len(g.cols))
	for j, c := range g.cols {
		sel[j] = v[c]
	}
	matrix.MulVecRange(g.data, sel, out, rl, ru)
}

func (g *Uncompressed) LeftMultByRowVector(v, out []float64, _ *Scratch) {
	tmp := matrix.LeftMulVec(v, g.data)
	for j, c := range g.cols {
		out[c] += tmp[j]
	}
}

func (g *Uncompressed) UnaryAggregate(res *AggResult, rl, ru int, _ *Scratch) {
	if res.Dir != matrix.RowAgg {
		rl, ru = 0, g.data.Rows()
	}
	slot := func(r, j int) int {
		switch res.Dir {
		case matrix.RowAgg:
			return r
		case matrix.ColAgg:
			return g.cols[j]
		}
		return 0
	}
	var seen []int
	if !res.Fn.IsSum() {
		seen = make([]int, len(g.cols))
	}
	for r := rl; r < ru; r++ {
		g.data.ForEachNonZero(r, func(j int, v float64) {
			res.Add(slot(r, j), res.Fn.Map(v))
			if seen != nil {
				seen[j]++
			}
		})
	}
	// implicit zeros; row aggregates are corrected by the caller
	if seen == nil || res.Dir == matrix.RowAgg {
		return
	}
	for j, n := range seen {
		if n < ru-rl {
			res.Add(slot(0, j), 0)
		}
	}
}

func (g *Uncompressed) encode(w *wire.Writer) {
	w.Ints(g.cols)
	g.data.Encode(w)
}

func decodeUncompressed(r *wire.Reader) (Group, error) {
	cols := r.Ints()
	data, err := matrix.Decode(r)
	if err != nil {
		return nil, err
	}
	if err := validateCols(cols, data.Rows()); err != nil {
		return nil, err
	}
	if data.Cols() != len(cols) {
		return nil, fmt.Errorf("block has %d columns, want %d", data.Cols(), len(cols))
	}
	return &Uncompressed{cols: cols, data: data}, nil
}
