package cla

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/cla/colgroup"
	"github.com/hupe1980/cla/internal/parallel"
	"github.com/hupe1980/cla/matrix"
)

// AggregateOp describes a unary aggregate.
type AggregateOp struct {
	Fn  matrix.AggFn
	Dir matrix.Direction

	// Threads bounds the parallelism. Values <= 1 run sequentially.
	Threads int

	// KeepCorrection retains the Kahan correction of sum aggregates as an
	// extra trailing column (full and row aggregates) or row (column
	// aggregates).
	KeepCorrection bool
}

// Aggregate computes a sum, sum-of-squares, min or max over all cells, per
// row or per column. Full results are 1×1, row results Rows()×1 and column
// results 1×Cols().
func (b *CompressedBlock) Aggregate(ctx context.Context, op AggregateOp) (_ *matrix.Block, err error) {
	switch op.Fn {
	case matrix.Sum, matrix.SumSq, matrix.Min, matrix.Max:
	default:
		return nil, fmt.Errorf("cla: unsupported aggregate %s", op.Fn)
	}
	defer b.record("uagg", time.Now(), &err)

	res := colgroup.NewAggResult(op.Fn, op.Dir, b.rows, b.cols)
	if !b.IsCompressed() {
		copy(res.Vals, matrix.Aggregate(b.raw, op.Fn, op.Dir))
		return aggregateBlock(res, b.cols, op.KeepCorrection), nil
	}

	if op.Threads > 1 && b.ExactSizeOnDisk() > b.cfg.ParallelAggThreshold {
		err = b.aggregateParallel(ctx, res, op.Threads)
	} else {
		s := colgroup.NewScratch(colgroup.MaxNumValues(b.groups))
		for _, g := range b.groups {
			g.UnaryAggregate(res, 0, b.rows, s)
		}
		err = ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	// rows with implicit zeros take part in row min/max
	if op.Dir == matrix.RowAgg && !op.Fn.IsSum() {
		for r, n := range b.rowNonZeros(0, b.rows) {
			if n < b.cols {
				res.Vals[r] = op.Fn.Combine(res.Vals[r], 0)
			}
		}
	}
	return aggregateBlock(res, b.cols, op.KeepCorrection), nil
}

func (b *CompressedBlock) aggregateParallel(ctx context.Context, res *colgroup.AggResult, k int) error {
	uc, rest := b.uncompressedGroup()
	if uc != nil {
		uc.UnaryAggregate(res, 0, b.rows, nil)
	}
	if len(rest) == 0 {
		return ctx.Err()
	}
	maxValues := colgroup.MaxNumValues(rest)

	if res.Dir == matrix.RowAgg {
		ranges := parallel.RowBlocks(b.rows, k, colgroup.BlockSize)
		tasks := make([]parallel.Task, len(ranges))
		for i, rg := range ranges {
			tasks[i] = func(ctx context.Context) error {
				s := colgroup.NewScratch(maxValues)
				for _, g := range rest {
					if err := ctx.Err(); err != nil {
						return err
					}
					g.UnaryAggregate(res, rg.Lo, rg.Hi, s)
				}
				return nil
			}
		}
		if err := parallel.Run(ctx, k, tasks); err != nil {
			return fmt.Errorf("cla: aggregate: %w", err)
		}
		return nil
	}

	parts := parallel.RoundRobin(len(rest), k)
	partials := make([]*colgroup.AggResult, len(parts))
	tasks := make([]parallel.Task, len(parts))
	for i, part := range parts {
		tasks[i] = func(ctx context.Context) error {
			s := colgroup.NewScratch(maxValues)
			acc := colgroup.NewAggResult(res.Fn, res.Dir, b.rows, b.cols)
			for _, gi := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				rest[gi].UnaryAggregate(acc, 0, b.rows, s)
			}
			partials[i] = acc
			return nil
		}
	}
	if err := parallel.Run(ctx, k, tasks); err != nil {
		return fmt.Errorf("cla: aggregate: %w", err)
	}
	for _, acc := range partials {
		res.Merge(acc)
	}
	return nil
}

// aggregateBlock shapes an aggregate result, optionally appending the
// correction of sum aggregates.
func aggregateBlock(res *colgroup.AggResult, cols int, keepCorrection bool) *matrix.Block {
	n := len(res.Vals)
	withCorr := keepCorrection && res.Fn.IsSum()
	if res.Dir == matrix.ColAgg {
		if !withCorr {
			return matrix.FromDense(1, cols, res.Vals)
		}
		return matrix.FromDense(2, cols, append(append(make([]float64, 0, 2*n), res.Vals...), res.Corr...))
	}
	if !withCorr {
		return matrix.FromDense(n, 1, res.Vals)
	}
	data := make([]float64, 2*n)
	for i := range n {
		data[2*i] = res.Vals[i]
		data[2*i+1] = res.Corr[i]
	}
	return matrix.FromDense(n, 2, data)
}
