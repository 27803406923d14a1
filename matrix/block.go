package matrix

import (
	"fmt"
	"math"
	"sort"
)

// SparseRow holds the non-zero cells of one row.
// Indexes are column positions; after SortRows they are strictly increasing.
type SparseRow struct {
	Indexes []int
	Values  []float64
}

// Len returns the number of stored cells.
func (r *SparseRow) Len() int { return len(r.Indexes) }

// Append adds a cell without ordering checks.
func (r *SparseRow) Append(c int, v float64) {
	r.Indexes = append(r.Indexes, c)
	r.Values = append(r.Values, v)
}

func (r *SparseRow) Less(i, j int) bool { return r.Indexes[i] < r.Indexes[j] }

func (r *SparseRow) Swap(i, j int) {
	r.Indexes[i], r.Indexes[j] = r.Indexes[j], r.Indexes[i]
	r.Values[i], r.Values[j] = r.Values[j], r.Values[i]
}

// Block is a conventional rows×cols float64 matrix stored either densely
// (row-major) or as sparse rows. The non-zero count is maintained by the
// mutating helpers and can be recomputed with RecomputeNonZeros.
type Block struct {
	rows   int
	cols   int
	sparse bool
	dense  []float64
	srows  []*SparseRow
	nnz    int64
}

// New allocates an empty rows×cols block in the requested format.
func New(rows, cols int, sparse bool) *Block {
	b := &Block{rows: rows, cols: cols, sparse: sparse}
	if sparse {
		b.srows = make([]*SparseRow, rows)
	} else {
		b.dense = make([]float64, rows*cols)
	}
	return b
}

// NewDense allocates a zero dense block.
func NewDense(rows, cols int) *Block { return New(rows, cols, false) }

// NewSparse allocates an empty sparse block.
func NewSparse(rows, cols int) *Block { return New(rows, cols, true) }

// FromDense wraps a row-major slice. The slice is used directly.
func FromDense(rows, cols int, data []float64) *Block {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("matrix: data length %d does not match %dx%d", len(data), rows, cols))
	}
	b := &Block{rows: rows, cols: cols, dense: data}
	b.RecomputeNonZeros()
	return b
}

// FromRows builds a dense block from a slice of equally sized rows.
func FromRows(data [][]float64) *Block {
	rows := len(data)
	cols := 0
	if rows > 0 {
		cols = len(data[0])
	}
	b := NewDense(rows, cols)
	for r, row := range data {
		if len(row) != cols {
			panic(fmt.Sprintf("matrix: ragged row %d: %d != %d", r, len(row), cols))
		}
		copy(b.dense[r*cols:], row)
	}
	b.RecomputeNonZeros()
	return b
}

// Rows returns the number of rows.
func (b *Block) Rows() int { return b.rows }

// Cols returns the number of columns.
func (b *Block) Cols() int { return b.cols }

// IsSparse reports whether the block uses sparse rows.
func (b *Block) IsSparse() bool { return b.sparse }

// NonZeros returns the maintained non-zero count.
func (b *Block) NonZeros() int64 { return b.nnz }

// SetNonZeros overrides the maintained non-zero count.
func (b *Block) SetNonZeros(n int64) { b.nnz = n }

// IsEmpty reports whether the block has no non-zero cells.
func (b *Block) IsEmpty() bool { return b.nnz == 0 }

// Sparsity returns nnz / (rows*cols).
func (b *Block) Sparsity() float64 {
	if b.rows == 0 || b.cols == 0 {
		return 0
	}
	return float64(b.nnz) / (float64(b.rows) * float64(b.cols))
}

// DenseData exposes the row-major backing slice, nil for sparse blocks.
func (b *Block) DenseData() []float64 { return b.dense }

// Row returns sparse row r, nil when the row is empty or the block is dense.
func (b *Block) Row(r int) *SparseRow {
	if !b.sparse {
		return nil
	}
	return b.srows[r]
}

// AllocateRow ensures sparse row r exists with at least the given capacity.
func (b *Block) AllocateRow(r, capacity int) {
	if !b.sparse || capacity <= 0 {
		return
	}
	if b.srows[r] == nil {
		b.srows[r] = &SparseRow{
			Indexes: make([]int, 0, capacity),
			Values:  make([]float64, 0, capacity),
		}
	}
}

// RecomputeNonZeros scans the storage and refreshes the non-zero count.
func (b *Block) RecomputeNonZeros() int64 {
	var n int64
	if b.sparse {
		for _, row := range b.srows {
			if row == nil {
				continue
			}
			for _, v := range row.Values {
				if v != 0 {
					n++
				}
			}
		}
	} else {
		for _, v := range b.dense {
			if v != 0 {
				n++
			}
		}
	}
	b.nnz = n
	return n
}

// RowNonZeros counts non-zeros per row in [rl, ru) into dst[r-rl].
func (b *Block) RowNonZeros(dst []int, rl, ru int) {
	for r := rl; r < ru; r++ {
		cnt := 0
		if b.sparse {
			if row := b.srows[r]; row != nil {
				for _, v := range row.Values {
					if v != 0 {
						cnt++
					}
				}
			}
		} else {
			for _, v := range b.dense[r*b.cols : (r+1)*b.cols] {
				if v != 0 {
					cnt++
				}
			}
		}
		dst[r-rl] += cnt
	}
}

// Get returns the value at (r, c).
func (b *Block) Get(r, c int) float64 {
	if !b.sparse {
		return b.dense[r*b.cols+c]
	}
	row := b.srows[r]
	if row == nil {
		return 0
	}
	i := sort.SearchInts(row.Indexes, c)
	if i < len(row.Indexes) && row.Indexes[i] == c {
		return row.Values[i]
	}
	return 0
}

// Set writes v at (r, c) and maintains the non-zero count.
// Sparse rows must be sorted.
func (b *Block) Set(r, c int, v float64) {
	if !b.sparse {
		old := b.dense[r*b.cols+c]
		b.dense[r*b.cols+c] = v
		b.adjustNnz(old, v)
		return
	}
	if b.srows[r] == nil {
		if v == 0 {
			return
		}
		b.srows[r] = &SparseRow{}
	}
	row := b.srows[r]
	i := sort.SearchInts(row.Indexes, c)
	if i < len(row.Indexes) && row.Indexes[i] == c {
		old := row.Values[i]
		if v == 0 {
			row.Indexes = append(row.Indexes[:i], row.Indexes[i+1:]...)
			row.Values = append(row.Values[:i], row.Values[i+1:]...)
		} else {
			row.Values[i] = v
		}
		b.adjustNnz(old, v)
		return
	}
	if v == 0 {
		return
	}
	row.Indexes = append(row.Indexes, 0)
	row.Values = append(row.Values, 0)
	copy(row.Indexes[i+1:], row.Indexes[i:])
	copy(row.Values[i+1:], row.Values[i:])
	row.Indexes[i] = c
	row.Values[i] = v
	b.nnz++
}

func (b *Block) adjustNnz(old, v float64) {
	switch {
	case old == 0 && v != 0:
		b.nnz++
	case old != 0 && v == 0:
		b.nnz--
	}
}

// AppendValue appends a non-zero value without maintaining order or the
// non-zero count. Dense blocks store the value in place. Zero is ignored.
func (b *Block) AppendValue(r, c int, v float64) {
	if v == 0 {
		return
	}
	if !b.sparse {
		b.dense[r*b.cols+c] = v
		return
	}
	if b.srows[r] == nil {
		b.srows[r] = &SparseRow{}
	}
	b.srows[r].Append(c, v)
}

// SortRows orders the sparse rows [rl, ru) by column index.
func (b *Block) SortRows(rl, ru int) {
	if !b.sparse {
		return
	}
	for r := rl; r < ru; r++ {
		if row := b.srows[r]; row != nil && row.Len() > 1 && !sort.IsSorted(row) {
			sort.Sort(row)
		}
	}
}

// Copy returns a deep copy.
func (b *Block) Copy() *Block {
	c := &Block{rows: b.rows, cols: b.cols, sparse: b.sparse, nnz: b.nnz}
	if b.sparse {
		c.srows = make([]*SparseRow, b.rows)
		for r, row := range b.srows {
			if row == nil {
				continue
			}
			c.srows[r] = &SparseRow{
				Indexes: append([]int(nil), row.Indexes...),
				Values:  append([]float64(nil), row.Values...),
			}
		}
	} else {
		c.dense = append([]float64(nil), b.dense...)
	}
	return c
}

// ToDense returns a dense copy (or b itself when already dense).
func (b *Block) ToDense() *Block {
	if !b.sparse {
		return b
	}
	d := NewDense(b.rows, b.cols)
	for r, row := range b.srows {
		if row == nil {
			continue
		}
		for i, c := range row.Indexes {
			d.dense[r*b.cols+c] = row.Values[i]
		}
	}
	d.nnz = b.nnz
	return d
}

// ToSparse returns a sparse copy (or b itself when already sparse).
func (b *Block) ToSparse() *Block {
	if b.sparse {
		return b
	}
	s := NewSparse(b.rows, b.cols)
	for r := 0; r < b.rows; r++ {
		for c, v := range b.dense[r*b.cols : (r+1)*b.cols] {
			if v != 0 {
				s.AppendValue(r, c, v)
			}
		}
	}
	s.nnz = b.nnz
	return s
}

// Examine converts the block to its preferred format based on its sparsity.
func (b *Block) Examine() *Block {
	want := EvalSparseFormat(b.rows, b.cols, b.nnz)
	switch {
	case want && !b.sparse:
		return b.ToSparse()
	case !want && b.sparse:
		return b.ToDense()
	}
	return b
}

// Transpose returns a new cols×rows block in the same format.
func (b *Block) Transpose() *Block {
	t := New(b.cols, b.rows, b.sparse)
	if b.sparse {
		for r, row := range b.srows {
			if row == nil {
				continue
			}
			for i, c := range row.Indexes {
				t.AppendValue(c, r, row.Values[i])
			}
		}
	} else {
		for r := 0; r < b.rows; r++ {
			for c := 0; c < b.cols; c++ {
				t.dense[c*b.rows+r] = b.dense[r*b.cols+c]
			}
		}
	}
	t.nnz = b.nnz
	return t
}

// ForEachNonZero calls fn for every non-zero cell of row r in column order.
func (b *Block) ForEachNonZero(r int, fn func(c int, v float64)) {
	if b.sparse {
		row := b.srows[r]
		if row == nil {
			return
		}
		for i, c := range row.Indexes {
			if row.Values[i] != 0 {
				fn(c, row.Values[i])
			}
		}
		return
	}
	for c, v := range b.dense[r*b.cols : (r+1)*b.cols] {
		if v != 0 {
			fn(c, v)
		}
	}
}

// Equals reports cell-wise equality, independent of storage format.
// NaN cells compare equal to NaN.
func (b *Block) Equals(o *Block) bool {
	if b.rows != o.rows || b.cols != o.cols {
		return false
	}
	for r := 0; r < b.rows; r++ {
		for c := 0; c < b.cols; c++ {
			x, y := b.Get(r, c), o.Get(r, c)
			if x != y && !(math.IsNaN(x) && math.IsNaN(y)) {
				return false
			}
		}
	}
	return true
}

// String renders small blocks for debugging.
func (b *Block) String() string {
	return fmt.Sprintf("Block(%dx%d, sparse=%t, nnz=%d)", b.rows, b.cols, b.sparse, b.nnz)
}

// EvalSparseFormat decides whether a block of the given shape and non-zero
// count is stored sparse.
func EvalSparseFormat(rows, cols int, nnz int64) bool {
	if rows <= 0 || cols <= 1 {
		return false
	}
	sp := float64(nnz) / (float64(rows) * float64(cols))
	return sp < SparsityTurnPoint && estimateSparseSize(rows, nnz) < estimateDenseSize(rows, cols)
}

// SparsityTurnPoint is the sparsity below which sparse rows may be used.
const SparsityTurnPoint = 0.4

func estimateDenseSize(rows, cols int) int64 {
	return 44 + 8*int64(rows)*int64(cols)
}

func estimateSparseSize(rows int, nnz int64) int64 {
	// header + per-row object + 12 bytes per cell (int index + float64 value)
	return 44 + 32*int64(rows) + 12*nnz
}

// EstimateSizeInMemory returns the in-memory size of a block with the given
// shape in its preferred format.
func EstimateSizeInMemory(rows, cols int, nnz int64) int64 {
	if EvalSparseFormat(rows, cols, nnz) {
		return estimateSparseSize(rows, nnz)
	}
	return estimateDenseSize(rows, cols)
}

// InMemorySize returns the estimated size of b in its current format.
func (b *Block) InMemorySize() int64 {
	if b.sparse {
		return estimateSparseSize(b.rows, b.nnz)
	}
	return estimateDenseSize(b.rows, b.cols)
}
