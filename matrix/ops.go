package matrix

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned when operand shapes do not conform.
var ErrShape = errors.New("matrix: shape mismatch")

func (b *Block) gonum() *mat.Dense {
	d := b.ToDense()
	return mat.NewDense(d.rows, d.cols, d.dense)
}

// MulVec returns b %*% v.
func MulVec(b *Block, v []float64) []float64 {
	out := make([]float64, b.rows)
	MulVecRange(b, v, out, 0, b.rows)
	return out
}

// MulVecRange overwrites out[rl:ru] with rows [rl, ru) of b %*% v.
func MulVecRange(b *Block, v, out []float64, rl, ru int) {
	if ru <= rl {
		return
	}
	if b.cols == 0 {
		clear(out[rl:ru])
		return
	}
	if b.sparse {
		for r := rl; r < ru; r++ {
			var s float64
			if row := b.srows[r]; row != nil {
				for i, c := range row.Indexes {
					s += row.Values[i] * v[c]
				}
			}
			out[r] = s
		}
		return
	}
	a := mat.NewDense(ru-rl, b.cols, b.dense[rl*b.cols:ru*b.cols])
	dst := mat.NewVecDense(ru-rl, out[rl:ru])
	dst.MulVec(a, mat.NewVecDense(b.cols, v[:b.cols]))
}

// LeftMulVecAdd adds t(v) %*% b into out, where len(v) == rows and
// len(out) == cols.
func LeftMulVecAdd(v []float64, b *Block, out []float64) {
	if b.rows == 0 || b.cols == 0 {
		return
	}
	if b.sparse {
		for r, row := range b.srows {
			if row == nil || v[r] == 0 {
				continue
			}
			for i, c := range row.Indexes {
				out[c] += v[r] * row.Values[i]
			}
		}
		return
	}
	tmp := mat.NewVecDense(b.cols, nil)
	tmp.MulVec(mat.NewDense(b.rows, b.cols, b.dense).T(), mat.NewVecDense(b.rows, v[:b.rows]))
	for c := 0; c < b.cols; c++ {
		out[c] += tmp.AtVec(c)
	}
}

// LeftMulVec returns t(v) %*% b.
func LeftMulVec(v []float64, b *Block) []float64 {
	out := make([]float64, b.cols)
	LeftMulVecAdd(v, b, out)
	return out
}

// TransposeSelf returns the dense cols×cols product t(b) %*% b.
func TransposeSelf(b *Block) *Block {
	out := NewDense(b.cols, b.cols)
	if b.rows == 0 || b.cols == 0 {
		return out
	}
	if b.sparse {
		for _, row := range b.srows {
			if row == nil {
				continue
			}
			for i, ci := range row.Indexes {
				vi := row.Values[i]
				for j, cj := range row.Indexes {
					out.dense[ci*b.cols+cj] += vi * row.Values[j]
				}
			}
		}
	} else {
		d := mat.NewDense(b.rows, b.cols, b.dense)
		res := mat.NewDense(b.cols, b.cols, out.dense)
		res.Mul(d.T(), d)
	}
	out.RecomputeNonZeros()
	return out
}

// ChainType selects the matrix-chain multiply variant.
type ChainType int

const (
	// XtXv computes t(X) %*% (X %*% v).
	XtXv ChainType = iota
	// XtwXv computes t(X) %*% (w * (X %*% v)).
	XtwXv
)

func (c ChainType) String() string {
	if c == XtwXv {
		return "XtwXv"
	}
	return "XtXv"
}

// ChainMul computes the chain product conventionally.
func ChainMul(b *Block, v, w []float64, ct ChainType) []float64 {
	tmp := MulVec(b, v)
	if ct == XtwXv {
		for i := range tmp {
			tmp[i] *= w[i]
		}
	}
	return LeftMulVec(tmp, b)
}

// Mul returns the dense product a %*% b.
func Mul(a, b *Block) (*Block, error) {
	if a.cols != b.rows {
		return nil, fmt.Errorf("%w: %dx%d %%*%% %dx%d", ErrShape, a.rows, a.cols, b.rows, b.cols)
	}
	out := NewDense(a.rows, b.cols)
	if a.rows == 0 || b.cols == 0 || a.cols == 0 {
		return out, nil
	}
	res := mat.NewDense(a.rows, b.cols, out.dense)
	res.Mul(a.gonum(), b.gonum())
	out.RecomputeNonZeros()
	return out, nil
}

// Unary applies fn to every cell, including zeros.
func Unary(b *Block, fn func(float64) float64) *Block {
	out := NewDense(b.rows, b.cols)
	for r := 0; r < b.rows; r++ {
		for c := 0; c < b.cols; c++ {
			out.dense[r*b.cols+c] = fn(b.Get(r, c))
		}
	}
	out.RecomputeNonZeros()
	return out.Examine()
}

// Binary combines a and b cell-wise. b may match a's shape or be a row
// vector, a column vector or a 1×1 scalar broadcast over a.
func Binary(a, b *Block, fn func(x, y float64) float64) (*Block, error) {
	var at func(r, c int) float64
	switch {
	case b.rows == a.rows && b.cols == a.cols:
		at = b.Get
	case b.rows == 1 && b.cols == 1:
		at = func(int, int) float64 { return b.Get(0, 0) }
	case b.rows == 1 && b.cols == a.cols:
		at = func(_, c int) float64 { return b.Get(0, c) }
	case b.cols == 1 && b.rows == a.rows:
		at = func(r, _ int) float64 { return b.Get(r, 0) }
	default:
		return nil, fmt.Errorf("%w: %dx%d op %dx%d", ErrShape, a.rows, a.cols, b.rows, b.cols)
	}
	out := NewDense(a.rows, a.cols)
	for r := 0; r < a.rows; r++ {
		for c := 0; c < a.cols; c++ {
			out.dense[r*a.cols+c] = fn(a.Get(r, c), at(r, c))
		}
	}
	out.RecomputeNonZeros()
	return out.Examine(), nil
}

// Slice returns rows [rl, ru) and columns [cl, cu) as a new block.
func Slice(b *Block, rl, ru, cl, cu int) (*Block, error) {
	if rl < 0 || ru > b.rows || rl > ru || cl < 0 || cu > b.cols || cl > cu {
		return nil, fmt.Errorf("%w: slice [%d:%d, %d:%d] of %dx%d", ErrShape, rl, ru, cl, cu, b.rows, b.cols)
	}
	out := New(ru-rl, cu-cl, b.sparse)
	for r := rl; r < ru; r++ {
		b.ForEachNonZero(r, func(c int, v float64) {
			if c >= cl && c < cu {
				out.AppendValue(r-rl, c-cl, v)
			}
		})
	}
	out.RecomputeNonZeros()
	return out, nil
}

// RBind stacks a on top of b.
func RBind(a, b *Block) (*Block, error) {
	if a.cols != b.cols {
		return nil, fmt.Errorf("%w: rbind %dx%d with %dx%d", ErrShape, a.rows, a.cols, b.rows, b.cols)
	}
	out := New(a.rows+b.rows, a.cols, a.sparse && b.sparse)
	for r := 0; r < a.rows; r++ {
		a.ForEachNonZero(r, func(c int, v float64) { out.AppendValue(r, c, v) })
	}
	for r := 0; r < b.rows; r++ {
		b.ForEachNonZero(r, func(c int, v float64) { out.AppendValue(a.rows+r, c, v) })
	}
	out.nnz = a.nnz + b.nnz
	return out, nil
}

// CBind places b to the right of a.
func CBind(a, b *Block) (*Block, error) {
	if a.rows != b.rows {
		return nil, fmt.Errorf("%w: cbind %dx%d with %dx%d", ErrShape, a.rows, a.cols, b.rows, b.cols)
	}
	out := New(a.rows, a.cols+b.cols, a.sparse && b.sparse)
	for r := 0; r < a.rows; r++ {
		a.ForEachNonZero(r, func(c int, v float64) { out.AppendValue(r, c, v) })
		b.ForEachNonZero(r, func(c int, v float64) { out.AppendValue(r, a.cols+c, v) })
	}
	out.nnz = a.nnz + b.nnz
	return out, nil
}

// Replace substitutes every cell equal to pattern. A NaN pattern matches NaN.
func Replace(b *Block, pattern, replacement float64) *Block {
	nan := math.IsNaN(pattern)
	return Unary(b, func(v float64) float64 {
		if v == pattern || (nan && math.IsNaN(v)) {
			return replacement
		}
		return v
	})
}

// Rand returns a rows×cols block with uniform values in [lo, hi) at the given
// sparsity.
func Rand(rows, cols int, lo, hi, sparsity float64, seed int64) *Block {
	rng := rand.New(rand.NewSource(seed))
	out := NewDense(rows, cols)
	for i := range out.dense {
		if rng.Float64() < sparsity {
			out.dense[i] = lo + rng.Float64()*(hi-lo)
		}
	}
	out.RecomputeNonZeros()
	return out.Examine()
}

// Seq returns the column vector from, from+incr, ... up to to inclusive.
func Seq(from, to, incr float64) (*Block, error) {
	if incr == 0 || (to-from)*incr < 0 {
		return nil, fmt.Errorf("matrix: invalid sequence %g:%g:%g", from, to, incr)
	}
	n := int(math.Floor((to-from)/incr)) + 1
	out := NewDense(n, 1)
	for i := 0; i < n; i++ {
		out.dense[i] = from + float64(i)*incr
	}
	out.RecomputeNonZeros()
	return out, nil
}
