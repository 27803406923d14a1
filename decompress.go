package cla

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/cla/colgroup"
	"github.com/hupe1980/cla/internal/parallel"
	"github.com/hupe1980/cla/matrix"
)

// Decompress materializes the block conventionally using k threads. An
// uncompressed block returns a copy of its data. The output format follows
// matrix.EvalSparseFormat for the block's shape and non-zero count.
func (b *CompressedBlock) Decompress(ctx context.Context, k int) (_ *matrix.Block, err error) {
	if !b.IsCompressed() {
		return b.raw.Copy(), nil
	}
	start := time.Now()
	defer func() { b.cfg.Metrics.RecordDecompress(time.Since(start), err) }()

	ret := matrix.New(b.rows, b.cols, matrix.EvalSparseFormat(b.rows, b.cols, b.nnz))
	tasks := make([]parallel.Task, 0, k)
	for _, rg := range decompressRanges(b.rows, k) {
		tasks = append(tasks, func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			decompressRange(b.groups, ret, rg.Lo, rg.Hi)
			return nil
		})
	}
	if err := parallel.Run(ctx, k, tasks); err != nil {
		return nil, fmt.Errorf("cla: decompress: %w", err)
	}
	ret.SetNonZeros(b.nnz)
	return ret, nil
}

func decompressRanges(rows, k int) []parallel.Range {
	if k <= 1 {
		return parallel.Bands(rows, rows)
	}
	return parallel.RowBlocks(rows, k, colgroup.BlockSize)
}

// decompressRange fills rows [rl, ru) of target from all groups.
func decompressRange(groups []colgroup.Group, target *matrix.Block, rl, ru int) {
	if target.IsSparse() {
		rnnz := make([]int, ru-rl)
		for _, g := range groups {
			g.CountNonZerosPerRow(rnnz, rl, ru)
		}
		for i, n := range rnnz {
			target.AllocateRow(rl+i, n)
		}
	}
	for _, g := range groups {
		g.DecompressToBlock(target, rl, ru)
	}
	target.SortRows(rl, ru)
}

// decompress is used by fallbacks that only need the conventional form.
func (b *CompressedBlock) decompress(ctx context.Context) (*matrix.Block, error) {
	if !b.IsCompressed() {
		return b.raw, nil
	}
	return b.Decompress(ctx, 1)
}
