package cla

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/cla/colgroup"
	"github.com/hupe1980/cla/internal/parallel"
	"github.com/hupe1980/cla/matrix"
)

// TSMMSide selects the transpose-self product.
type TSMMSide int

const (
	// TSMMLeft computes t(X) %*% X.
	TSMMLeft TSMMSide = iota
	// TSMMRight computes X %*% t(X).
	TSMMRight
)

func (s TSMMSide) String() string {
	if s == TSMMRight {
		return "right"
	}
	return "left"
}

func (b *CompressedBlock) record(op string, start time.Time, err *error) {
	b.cfg.Metrics.RecordOp(op, time.Since(start), *err)
}

// RightMultiply computes X %*% v for a vector of length Cols().
func (b *CompressedBlock) RightMultiply(ctx context.Context, v []float64, k int) (_ []float64, err error) {
	if len(v) != b.cols {
		return nil, vectorError("rmm", len(v), b.cols)
	}
	defer b.record("rmm", time.Now(), &err)
	if !b.IsCompressed() {
		return matrix.MulVec(b.raw, v), nil
	}
	return b.rightMult(ctx, v, k)
}

func (b *CompressedBlock) rightMult(ctx context.Context, v []float64, k int) ([]float64, error) {
	out := make([]float64, b.rows)
	uc, rest := b.uncompressedGroup()
	var (
		ddc1   []*colgroup.DDC1
		extra  []*colgroup.Uncompressed
		others []colgroup.Group
	)
	for _, g := range rest {
		switch g := g.(type) {
		case *colgroup.DDC1:
			ddc1 = append(ddc1, g)
		case *colgroup.Uncompressed:
			extra = append(extra, g)
		default:
			others = append(others, g)
		}
	}
	maxValues := colgroup.MaxNumValues(b.groups)

	ranges := decompressRanges(b.rows, k)
	tasks := make([]parallel.Task, len(ranges))
	for i, rg := range ranges {
		tasks[i] = func(ctx context.Context) error {
			s := colgroup.NewScratch(maxValues)
			// the uncompressed group overwrites its rows
			if uc != nil {
				uc.RightMultByVector(v, out, rg.Lo, rg.Hi, s)
			}
			// further uncompressed groups, e.g. after Append, are added
			if len(extra) > 0 {
				tmp := make([]float64, b.rows)
				for _, u := range extra {
					u.RightMultByVector(v, tmp, rg.Lo, rg.Hi, s)
					for r := rg.Lo; r < rg.Hi; r++ {
						out[r] += tmp[r]
					}
				}
			}
			colgroup.RightMultByVectorDDC1(ddc1, v, out, rg.Lo, rg.Hi, s)
			for _, g := range others {
				if err := ctx.Err(); err != nil {
					return err
				}
				g.RightMultByVector(v, out, rg.Lo, rg.Hi, s)
			}
			return nil
		}
	}
	if err := parallel.Run(ctx, k, tasks); err != nil {
		return nil, fmt.Errorf("cla: right multiply: %w", err)
	}
	return out, nil
}

// LeftMultiply computes t(v) %*% X and returns a 1×Cols() block. v is a
// 1×Rows() row vector, or a Rows()×1 column vector when transposeInput is
// set.
func (b *CompressedBlock) LeftMultiply(ctx context.Context, v *matrix.Block, k int, transposeInput bool) (_ *matrix.Block, err error) {
	wantRows, wantCols := 1, b.rows
	if transposeInput {
		wantRows, wantCols = b.rows, 1
	}
	if v.Rows() != wantRows || v.Cols() != wantCols {
		return nil, shapeError("lmm", v.Rows(), v.Cols(), fmt.Sprintf("%dx%d", wantRows, wantCols))
	}
	defer b.record("lmm", time.Now(), &err)
	vec := vectorOf(v)
	var out []float64
	if !b.IsCompressed() {
		out = matrix.LeftMulVec(vec, b.raw)
	} else if out, err = b.leftMult(ctx, vec, k); err != nil {
		return nil, err
	}
	return matrix.FromDense(1, b.cols, out), nil
}

func (b *CompressedBlock) leftMult(ctx context.Context, v []float64, k int) ([]float64, error) {
	out := make([]float64, b.cols)
	uc, rest := b.uncompressedGroup()
	if uc != nil {
		uc.LeftMultByRowVector(v, out, nil)
	}
	maxValues := colgroup.MaxNumValues(rest)
	if k <= 1 || len(rest) <= 1 {
		s := colgroup.NewScratch(maxValues)
		for _, g := range rest {
			g.LeftMultByRowVector(v, out, s)
		}
		return out, ctx.Err()
	}

	parts := parallel.RoundRobin(len(rest), 4*k)
	partials := make([][]float64, len(parts))
	tasks := make([]parallel.Task, len(parts))
	for i, part := range parts {
		tasks[i] = func(ctx context.Context) error {
			s := colgroup.NewScratch(maxValues)
			acc := make([]float64, b.cols)
			for _, gi := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				rest[gi].LeftMultByRowVector(v, acc, s)
			}
			partials[i] = acc
			return nil
		}
	}
	if err := parallel.Run(ctx, k, tasks); err != nil {
		return nil, fmt.Errorf("cla: left multiply: %w", err)
	}
	for _, acc := range partials {
		for c, x := range acc {
			out[c] += x
		}
	}
	return out, nil
}

// TransposeSelfMultiply computes the transpose-self product. Compressed
// blocks support only TSMMLeft.
func (b *CompressedBlock) TransposeSelfMultiply(ctx context.Context, side TSMMSide, k int) (_ *matrix.Block, err error) {
	defer b.record("tsmm", time.Now(), &err)
	if !b.IsCompressed() {
		if side == TSMMRight {
			return matrix.TransposeSelf(b.raw.Transpose()), nil
		}
		return matrix.TransposeSelf(b.raw), nil
	}
	if side != TSMMLeft {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSide, side)
	}
	if b.IsSingleUncompressedGroup() {
		return matrix.TransposeSelf(b.groups[0].(*colgroup.Uncompressed).Data()), nil
	}

	out := matrix.NewDense(b.cols, b.cols)
	if b.nnz == 0 {
		return out, nil
	}
	res := out.DenseData()
	k = max(k, 1)
	n := len(b.groups)
	bands := parallel.Bands(n, (n+2*k-1)/(2*k))
	maxValues := colgroup.MaxNumValues(b.groups)
	tasks := make([]parallel.Task, len(bands))
	for t, band := range bands {
		tasks[t] = func(ctx context.Context) error {
			s := colgroup.NewScratch(maxValues)
			lhs := make([]float64, b.rows)
			tmp := make([]float64, b.cols)
			for i := band.Lo; i < band.Hi; i++ {
				g := b.groups[i]
				for j, ci := range g.ColIndices() {
					if err := ctx.Err(); err != nil {
						return err
					}
					clear(lhs)
					g.DecompressColumn(lhs, j)
					if allZero(lhs) {
						continue
					}
					clear(tmp)
					for _, h := range b.groups[i:] {
						h.LeftMultByRowVector(lhs, tmp, s)
					}
					// cells written here are owned by group i
					for cj, x := range tmp {
						if x != 0 {
							res[min(ci, cj)*b.cols+max(ci, cj)] = x
						}
					}
				}
			}
			return nil
		}
	}
	if err := parallel.Run(ctx, k, tasks); err != nil {
		return nil, fmt.Errorf("cla: transpose-self multiply: %w", err)
	}
	for i := 0; i < b.cols; i++ {
		for j := i + 1; j < b.cols; j++ {
			res[j*b.cols+i] = res[i*b.cols+j]
		}
	}
	out.RecomputeNonZeros()
	return out, nil
}

// ChainMultiply computes t(X) %*% (X %*% v), or t(X) %*% (w * (X %*% v))
// for matrix.XtwXv. The result has length Cols().
func (b *CompressedBlock) ChainMultiply(ctx context.Context, v, w []float64, ct matrix.ChainType, k int) (_ []float64, err error) {
	if len(v) != b.cols {
		return nil, vectorError("mmchain", len(v), b.cols)
	}
	if ct == matrix.XtwXv && len(w) != b.rows {
		return nil, vectorError("mmchain", len(w), b.rows)
	}
	defer b.record("mmchain", time.Now(), &err)
	switch {
	case !b.IsCompressed():
		return matrix.ChainMul(b.raw, v, w, ct), nil
	case b.IsSingleUncompressedGroup():
		return matrix.ChainMul(b.groups[0].(*colgroup.Uncompressed).Data(), v, w, ct), nil
	case b.nnz == 0:
		return make([]float64, b.cols), nil
	}
	tmp, err := b.rightMult(ctx, v, k)
	if err != nil {
		return nil, err
	}
	if ct == matrix.XtwXv {
		for i := range tmp {
			tmp[i] *= w[i]
		}
	}
	return b.leftMult(ctx, tmp, k)
}

// Multiply computes X %*% v for a Cols()×1 column vector. Other operand
// shapes fail with ErrUnsupportedShape on compressed blocks.
func (b *CompressedBlock) Multiply(ctx context.Context, v *matrix.Block, k int) (*matrix.Block, error) {
	if direct := b.conventional(); direct != nil {
		return matrix.Mul(direct, v)
	}
	if !(b.rows > 1 && v.Cols() == 1) {
		return nil, fmt.Errorf("%w: %dx%d %%*%% %dx%d", ErrUnsupportedShape, b.rows, b.cols, v.Rows(), v.Cols())
	}
	if v.Rows() != b.cols {
		return nil, shapeError("rmm", v.Rows(), v.Cols(), fmt.Sprintf("%dx1", b.cols))
	}
	out, err := b.RightMultiply(ctx, vectorOf(v), k)
	if err != nil {
		return nil, err
	}
	return matrix.FromDense(b.rows, 1, out), nil
}

// MultiplyLeft computes v %*% X for a 1×Rows() row vector.
func (b *CompressedBlock) MultiplyLeft(ctx context.Context, v *matrix.Block, k int) (*matrix.Block, error) {
	if direct := b.conventional(); direct != nil {
		return matrix.Mul(v, direct)
	}
	if !(v.Rows() == 1 && v.Cols() > 1) {
		return nil, fmt.Errorf("%w: %dx%d %%*%% %dx%d", ErrUnsupportedShape, v.Rows(), v.Cols(), b.rows, b.cols)
	}
	return b.LeftMultiply(ctx, v, k, false)
}

// conventional returns the block to hand to conventional kernels when b is
// uncompressed or a single uncompressed group, else nil.
func (b *CompressedBlock) conventional() *matrix.Block {
	if !b.IsCompressed() {
		return b.raw
	}
	if b.IsSingleUncompressedGroup() {
		return b.groups[0].(*colgroup.Uncompressed).Data()
	}
	return nil
}

// vectorOf flattens a row or column vector.
func vectorOf(v *matrix.Block) []float64 {
	if !v.IsSparse() {
		return v.DenseData()
	}
	out := make([]float64, v.Rows()*v.Cols())
	for r := 0; r < v.Rows(); r++ {
		v.ForEachNonZero(r, func(c int, x float64) {
			out[r*v.Cols()+c] = x
		})
	}
	return out
}

func allZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
