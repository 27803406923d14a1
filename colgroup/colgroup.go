// Package colgroup implements the compressed column-group encodings:
// Uncompressed, OLE (offset lists), RLE (run lengths) and the DDC1/DDC2
// dictionary encodings. All encodings satisfy the sealed Group interface.
package colgroup

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/cla/bitmap"
	"github.com/hupe1980/cla/internal/wire"
	"github.com/hupe1980/cla/matrix"
)

// Type is the encoding tag written in front of every serialized group.
type Type uint8

const (
	TypeUncompressed Type = iota
	TypeRLE
	TypeOLE
	TypeDDC1
	TypeDDC2
)

func (t Type) String() string {
	switch t {
	case TypeUncompressed:
		return "UNCOMPRESSED"
	case TypeRLE:
		return "RLE"
	case TypeOLE:
		return "OLE"
	case TypeDDC1:
		return "DDC1"
	case TypeDDC2:
		return "DDC2"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

const (
	// BlockSize is the natural row block of the offset encodings. Parallel
	// row partitions are aligned to it.
	BlockSize = bitmap.BlockSize
	// WriteCacheBlockSize is the row block used by cache-conscious kernels.
	WriteCacheBlockSize = 2048
)

// ErrUnknownType is returned when decoding an unknown encoding tag.
var ErrUnknownType = errors.New("colgroup: unknown group type")

var errValuesShape = errors.New("dictionary length is not a multiple of the column count")

// Group is one compressed column group. Column indices are sorted and
// absolute within the owning block.
type Group interface {
	Type() Type
	ColIndices() []int
	NumCols() int
	NumRows() int
	// NumValues returns the number of dictionary tuples, zero for
	// uncompressed groups.
	NumValues() int

	// Get returns the cell at row r and absolute column c.
	Get(r, c int) float64
	// DecompressToBlock writes rows [rl, ru) into target using absolute
	// column indices. Dense targets are overwritten in place, sparse
	// targets are appended to.
	DecompressToBlock(target *matrix.Block, rl, ru int)
	// DecompressColumn writes column colPos (relative to ColIndices) into
	// dst, which must be zeroed and hold NumRows values.
	DecompressColumn(dst []float64, colPos int)
	// CountNonZerosPerRow adds the non-zeros of rows [rl, ru) to rnnz[r-rl].
	CountNonZerosPerRow(rnnz []int, rl, ru int)

	// ScalarOp returns a group of the same family with fn applied to every
	// cell, including the implicit zeros.
	ScalarOp(fn func(float64) float64) Group
	// Shifted returns a copy whose column indices are moved by offset.
	Shifted(offset int) Group

	EstimateInMemorySize() int64
	// ExactSizeOnDisk returns the payload size written by Write, excluding
	// the tag byte.
	ExactSizeOnDisk() int64

	// RightMultByVector computes rows [rl, ru) of this group's share of
	// X %*% v. Uncompressed groups overwrite out, all others add.
	RightMultByVector(v, out []float64, rl, ru int, s *Scratch)
	// LeftMultByRowVector adds t(v) %*% X_g into out (one entry per block
	// column).
	LeftMultByRowVector(v, out []float64, s *Scratch)
	// UnaryAggregate folds the group into res. Row aggregates cover
	// [rl, ru); full and column aggregates always cover every row.
	UnaryAggregate(res *AggResult, rl, ru int, s *Scratch)

	encode(w *wire.Writer)
}

// Scratch is a per-task reusable value buffer.
type Scratch struct {
	buf []float64
}

// NewScratch returns a scratch buffer with capacity for n values.
func NewScratch(n int) *Scratch {
	return &Scratch{buf: make([]float64, n)}
}

// Values returns a zeroed slice of length n.
func (s *Scratch) Values(n int) []float64 {
	if s == nil {
		return make([]float64, n)
	}
	if cap(s.buf) < n {
		s.buf = make([]float64, n)
	}
	v := s.buf[:n]
	clear(v)
	return v
}

// MaxNumValues returns the largest dictionary among groups.
func MaxNumValues(groups []Group) int {
	n := 0
	for _, g := range groups {
		n = max(n, g.NumValues())
	}
	return n
}

// AggResult accumulates a unary aggregate. For row aggregates Vals is
// indexed by absolute row, for column aggregates by absolute column.
type AggResult struct {
	Fn   matrix.AggFn
	Dir  matrix.Direction
	Vals []float64
	Corr []float64
}

// NewAggResult allocates an initialized result for a rows×cols block.
func NewAggResult(fn matrix.AggFn, dir matrix.Direction, rows, cols int) *AggResult {
	n := dir.OutLen(rows, cols)
	res := &AggResult{Fn: fn, Dir: dir, Vals: make([]float64, n), Corr: make([]float64, n)}
	for i := range res.Vals {
		res.Vals[i] = fn.Init()
	}
	return res
}

// Add folds an already mapped contribution v into slot i.
func (a *AggResult) Add(i int, v float64) {
	if a.Fn.IsSum() {
		a.Vals[i], a.Corr[i] = matrix.KahanAdd(a.Vals[i], a.Corr[i], v)
		return
	}
	a.Vals[i] = a.Fn.Combine(a.Vals[i], v)
}

// Merge folds a partial result with the same shape into a.
func (a *AggResult) Merge(o *AggResult) {
	for i, v := range o.Vals {
		if a.Fn.IsSum() {
			a.Add(i, v)
			a.Add(i, o.Corr[i])
		} else {
			a.Add(i, v)
		}
	}
}

// Write encodes the tag byte followed by the group payload.
func Write(w *wire.Writer, g Group) {
	w.Uint8(uint8(g.Type()))
	g.encode(w)
}

// Read decodes a group written by Write.
func Read(r *wire.Reader) (Group, error) {
	tag := Type(r.Uint8())
	if err := r.Err(); err != nil {
		return nil, err
	}
	var (
		g   Group
		err error
	)
	switch tag {
	case TypeUncompressed:
		g, err = decodeUncompressed(r)
	case TypeRLE:
		g, err = decodeRLE(r)
	case TypeOLE:
		g, err = decodeOLE(r)
	case TypeDDC1:
		g, err = decodeDDC1(r)
	case TypeDDC2:
		g, err = decodeDDC2(r)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(tag))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s group: %w", tag, err)
	}
	return g, nil
}

func shiftCols(cols []int, offset int) []int {
	out := make([]int, len(cols))
	for i, c := range cols {
		out[i] = c + offset
	}
	return out
}

func colPos(cols []int, c int) int {
	i := sort.SearchInts(cols, c)
	if i < len(cols) && cols[i] == c {
		return i
	}
	return -1
}

func validateCols(cols []int, rows int) error {
	if rows < 0 {
		return fmt.Errorf("invalid row count %d", rows)
	}
	if len(cols) == 0 {
		return errors.New("empty column set")
	}
	for i := 1; i < len(cols); i++ {
		if cols[i] <= cols[i-1] {
			return fmt.Errorf("column indices not strictly increasing at %d", i)
		}
	}
	return nil
}
