package cla

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hupe1980/cla/colgroup"
	"github.com/hupe1980/cla/matrix"
)

// ScalarOperation applies fn to every cell. Compressed blocks map each
// group's dictionary and stay compressed.
func (b *CompressedBlock) ScalarOperation(ctx context.Context, fn func(float64) float64) (*CompressedBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !b.IsCompressed() {
		return b.derive(matrix.Unary(b.raw, fn)), nil
	}
	groups := make([]colgroup.Group, len(b.groups))
	for i, g := range b.groups {
		groups[i] = g.ScalarOp(fn)
	}
	ret := &CompressedBlock{rows: b.rows, cols: b.cols, cfg: b.cfg}
	if err := ret.setGroups(groups); err != nil {
		return nil, err
	}
	ret.nnz = ret.countNonZeros()
	return ret, nil
}

// Append column-binds other to the right of b. A compressed b keeps its
// groups and adopts the groups of other, compressing other first when
// needed.
func (b *CompressedBlock) Append(ctx context.Context, other *CompressedBlock, k int) (*CompressedBlock, error) {
	if other.rows != b.rows {
		return nil, shapeError("append", other.rows, other.cols, fmt.Sprintf("%d rows", b.rows))
	}
	if !b.IsCompressed() {
		that, err := other.decompress(ctx)
		if err != nil {
			return nil, err
		}
		m, err := matrix.CBind(b.raw, that)
		if err != nil {
			return nil, err
		}
		return b.derive(m), nil
	}

	if !other.IsCompressed() {
		c, err := Compress(ctx, other.raw, k, b.configOptions()...)
		if err != nil {
			return nil, fmt.Errorf("cla: append: %w", err)
		}
		other = c
	}
	groups := make([]colgroup.Group, 0, len(b.groups)+len(other.groups))
	groups = append(groups, b.groups...)
	for _, g := range other.groups {
		groups = append(groups, g.Shifted(b.cols))
	}
	ret := &CompressedBlock{rows: b.rows, cols: b.cols + other.cols, cfg: b.cfg}
	if err := ret.setGroups(groups); err != nil {
		return nil, err
	}
	ret.nnz = b.nnz + other.nnz
	return ret, nil
}

// Fallback decompresses b when needed and runs a conventional operation.
// Compressed blocks log a warning and record the fallback.
func (b *CompressedBlock) Fallback(ctx context.Context, name string, fn func(m *matrix.Block) (*matrix.Block, error)) (*matrix.Block, error) {
	if b.IsCompressed() {
		b.cfg.Logger.Warn("operation not supported on compressed block, decompressing", slog.String("op", name))
		b.cfg.Metrics.RecordFallback(name)
	}
	m, err := b.decompress(ctx)
	if err != nil {
		return nil, err
	}
	return fn(m)
}

// Unary applies fn conventionally.
func (b *CompressedBlock) Unary(ctx context.Context, fn func(float64) float64) (*matrix.Block, error) {
	return b.Fallback(ctx, "unary", func(m *matrix.Block) (*matrix.Block, error) {
		return matrix.Unary(m, fn), nil
	})
}

// Binary applies fn cell-wise against other, broadcasting scalars and
// vectors.
func (b *CompressedBlock) Binary(ctx context.Context, other *matrix.Block, fn func(x, y float64) float64) (*matrix.Block, error) {
	return b.Fallback(ctx, "binary", func(m *matrix.Block) (*matrix.Block, error) {
		return matrix.Binary(m, other, fn)
	})
}

// Transpose returns t(X).
func (b *CompressedBlock) Transpose(ctx context.Context) (*matrix.Block, error) {
	return b.Fallback(ctx, "transpose", func(m *matrix.Block) (*matrix.Block, error) {
		return m.Transpose(), nil
	})
}

// Slice returns rows [rl, ru) and columns [cl, cu).
func (b *CompressedBlock) Slice(ctx context.Context, rl, ru, cl, cu int) (*matrix.Block, error) {
	return b.Fallback(ctx, "slice", func(m *matrix.Block) (*matrix.Block, error) {
		return matrix.Slice(m, rl, ru, cl, cu)
	})
}

// RBind row-binds other below b.
func (b *CompressedBlock) RBind(ctx context.Context, other *matrix.Block) (*matrix.Block, error) {
	return b.Fallback(ctx, "rbind", func(m *matrix.Block) (*matrix.Block, error) {
		return matrix.RBind(m, other)
	})
}

// Replace substitutes every cell equal to pattern, which may be NaN.
func (b *CompressedBlock) Replace(ctx context.Context, pattern, replacement float64) (*matrix.Block, error) {
	return b.Fallback(ctx, "replace", func(m *matrix.Block) (*matrix.Block, error) {
		return matrix.Replace(m, pattern, replacement), nil
	})
}

// RandInPlace fills an uncompressed block with uniform random values.
func (b *CompressedBlock) RandInPlace(rows, cols int, lo, hi, sparsity float64, seed int64) error {
	if b.IsCompressed() {
		return fmt.Errorf("%w: rand", ErrInPlaceGenerate)
	}
	b.reset(matrix.Rand(rows, cols, lo, hi, sparsity, seed))
	return nil
}

// SeqInPlace fills an uncompressed block with the column vector
// from, from+incr, ..., to.
func (b *CompressedBlock) SeqInPlace(from, to, incr float64) error {
	if b.IsCompressed() {
		return fmt.Errorf("%w: seq", ErrInPlaceGenerate)
	}
	m, err := matrix.Seq(from, to, incr)
	if err != nil {
		return err
	}
	b.reset(m)
	return nil
}

func (b *CompressedBlock) reset(m *matrix.Block) {
	b.raw = m
	b.rows, b.cols, b.nnz = m.Rows(), m.Cols(), m.NonZeros()
	b.stats = Statistics{}
}

// derive wraps m with the settings of b.
func (b *CompressedBlock) derive(m *matrix.Block) *CompressedBlock {
	return &CompressedBlock{rows: m.Rows(), cols: m.Cols(), nnz: m.NonZeros(), raw: m, cfg: b.cfg}
}

func (b *CompressedBlock) configOptions() []Option {
	return []Option{func(c *Config) { *c = b.cfg }}
}
