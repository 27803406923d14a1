// Package parallel runs call-scoped fork-join task batches and provides the
// deterministic partitioners used by the compressed kernels.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work of a batch.
type Task func(ctx context.Context) error

// TaskError reports the failure of a single task.
type TaskError struct {
	Index int
	cause error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d failed: %v", e.Index, e.cause)
}

func (e *TaskError) Unwrap() error { return e.cause }

// Run executes tasks on at most k goroutines and blocks until all of them
// have returned. Panics are converted into errors. All task errors are
// joined in task order. Once a task fails, tasks that have not started yet
// are skipped.
func Run(ctx context.Context, k int, tasks []Task) error {
	if len(tasks) == 0 {
		return ctx.Err()
	}
	errs := make([]error, len(tasks))
	if k <= 1 || len(tasks) == 1 {
		for i, t := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if errs[i] = call(ctx, i, t); errs[i] != nil {
				break
			}
		}
		return errors.Join(errs...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k)
	for i, t := range tasks {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			errs[i] = call(gctx, i, t)
			return errs[i]
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	return ctx.Err()
}

func call(ctx context.Context, i int, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskError{Index: i, cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
		}
	}()
	if err := t(ctx); err != nil {
		return &TaskError{Index: i, cause: err}
	}
	return nil
}

// Range is a half-open interval [Lo, Hi).
type Range struct {
	Lo, Hi int
}

// Len returns Hi - Lo.
func (r Range) Len() int { return r.Hi - r.Lo }

// RowBlocks splits [0, rows) into at most k ranges. The block length is
// ceil(rows/k) rounded up to a multiple of align.
func RowBlocks(rows, k, align int) []Range {
	if rows <= 0 {
		return nil
	}
	k = max(k, 1)
	blk := (rows + k - 1) / k
	if align > 1 && blk%align != 0 {
		blk += align - blk%align
	}
	return Bands(rows, blk)
}

// Bands splits [0, n) into consecutive ranges of length blk.
func Bands(n, blk int) []Range {
	if n <= 0 {
		return nil
	}
	blk = max(blk, 1)
	out := make([]Range, 0, (n+blk-1)/blk)
	for lo := 0; lo < n; lo += blk {
		out = append(out, Range{Lo: lo, Hi: min(lo+blk, n)})
	}
	return out
}

// RoundRobin assigns items 0..n-1 to parts partitions, item i going to
// partition i%parts. Empty partitions are omitted.
func RoundRobin(n, parts int) [][]int {
	parts = max(min(parts, n), 1)
	if n <= 0 {
		return nil
	}
	out := make([][]int, parts)
	for i := 0; i < n; i++ {
		out[i%parts] = append(out[i%parts], i)
	}
	return out
}
