package cla

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/cla/bitmap"
	"github.com/hupe1980/cla/colgroup"
	"github.com/hupe1980/cla/estimate"
	"github.com/hupe1980/cla/internal/parallel"
	"github.com/hupe1980/cla/matrix"
)

// Compress wraps m and compresses it with k threads.
func Compress(ctx context.Context, m *matrix.Block, k int, opts ...Option) (*CompressedBlock, error) {
	b, err := Wrap(m, opts...)
	if err != nil {
		return nil, err
	}
	if err := b.Compress(ctx, k); err != nil {
		return nil, err
	}
	return b, nil
}

// Compress replaces the conventional representation of b by column groups.
// It fails with ErrAlreadyCompressed when b is already compressed.
func (b *CompressedBlock) Compress(ctx context.Context, k int) (err error) {
	if b.IsCompressed() {
		return ErrAlreadyCompressed
	}
	start := time.Now()
	defer func() {
		ratio := 0.0
		if err == nil {
			ratio = b.stats.Ratio
		}
		b.cfg.Metrics.RecordCompress(time.Since(start), ratio, err)
	}()

	rc := b.cfg.Resources
	if err := rc.AcquireJob(ctx); err != nil {
		return fmt.Errorf("cla: admit compress job: %w", err)
	}
	defer rc.ReleaseJob()

	work := b.raw.InMemorySize()
	if err := rc.AcquireMemory(ctx, work); err != nil {
		return fmt.Errorf("cla: reserve %d bytes for compression: %w", work, err)
	}
	defer rc.ReleaseMemory(work)

	c := &compressor{
		cfg:  b.cfg,
		k:    max(k, 1),
		rows: b.rows,
		cols: b.cols,
		log:  b.cfg.Logger.WithOp("compress").WithShape(b.rows, b.cols),
	}
	groups, stats, err := c.run(ctx, b.raw)
	if err != nil {
		return err
	}

	orig := b.raw.InMemorySize()
	if err := b.setGroups(groups); err != nil {
		return fmt.Errorf("cla: compressed groups: %w", err)
	}
	stats.Size = b.InMemorySize()
	stats.Ratio = float64(orig) / float64(stats.Size)
	b.stats = stats
	c.log.Debug("compressed block",
		slog.Int("groups", len(groups)),
		slog.Int64("size", stats.Size),
		slog.Float64("ratio", stats.Ratio))
	return nil
}

type compressor struct {
	cfg  Config
	k    int
	rows int
	cols int
	log  *Logger
}

func (c *compressor) run(ctx context.Context, raw *matrix.Block) ([]colgroup.Group, Statistics, error) {
	var stats Statistics
	phase := time.Now()
	lap := func(name string, d *time.Duration) {
		*d = time.Since(phase)
		phase = time.Now()
		c.log.WithPhase(name).Debug("phase done", slog.Duration("duration", *d))
	}

	rawT := raw.Transpose()
	est := c.cfg.Estimator(rawT, c.cfg.AllowDictionary)

	infos, err := c.sizeInfos(ctx, est)
	if err != nil {
		return nil, stats, fmt.Errorf("cla: classify: %w", err)
	}
	cls := c.classify(infos)
	stats.Compressible, stats.Incompressible = len(cls.compressible), len(cls.incompressible)
	lap("classify", &stats.ClassifyTime)

	plan, err := c.cfg.Planner.Plan(ctx, est, cls.compressible, infos, c.rows, c.k)
	if err != nil {
		return nil, stats, fmt.Errorf("cla: group: %w", err)
	}
	lap("group", &stats.GroupTime)

	encoded, err := c.encodeGroups(ctx, rawT, est, plan, cls.ratios, len(cls.incompressible) == 0)
	if err != nil {
		return nil, stats, fmt.Errorf("cla: encode: %w", err)
	}
	lap("compress", &stats.CompressTime)

	claimed := bitset.New(uint(c.cols))
	groups := make([]colgroup.Group, 0, len(encoded)+1)
	for _, e := range encoded {
		if e.group == nil {
			stats.Rejected++
			continue
		}
		for _, col := range e.group.ColIndices() {
			claimed.Set(uint(col))
		}
		groups = append(groups, e.group)
		stats.EstimatedSize += e.estimate
	}
	if rest := unclaimed(claimed, c.cols); len(rest) > 0 {
		uc := colgroup.NewUncompressed(rest, rawT)
		groups = append(groups, uc)
		stats.EstimatedSize += matrix.EstimateSizeInMemory(c.rows, len(rest), uc.Data().NonZeros())
	}
	stats.Groups = groupCounts(groups)
	lap("finalize", &stats.FinalizeTime)
	return groups, stats, nil
}

func (c *compressor) sizeInfos(ctx context.Context, est estimate.Estimator) ([]estimate.SizeInfo, error) {
	infos := make([]estimate.SizeInfo, c.cols)
	bands := parallel.Bands(c.cols, (c.cols+c.k-1)/c.k)
	tasks := make([]parallel.Task, len(bands))
	for i, band := range bands {
		tasks[i] = func(ctx context.Context) error {
			for col := band.Lo; col < band.Hi; col++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				infos[col] = est.EstimateGroupSize([]int{col})
			}
			return nil
		}
	}
	if err := parallel.Run(ctx, c.k, tasks); err != nil {
		return nil, err
	}
	return infos, nil
}

type classification struct {
	compressible   []int
	incompressible []int
	ratios         []float64
}

// classify splits columns by their estimated compression ratio. When the
// incompressible remainder would be stored dense, its columns are re-scored
// against a dense baseline.
func (c *compressor) classify(infos []estimate.SizeInfo) classification {
	cls := classification{ratios: make([]float64, c.cols)}
	var nnzUC int64
	for col, info := range infos {
		sp := 0.0
		if c.rows > 0 {
			sp = float64(info.EstNnz) / float64(c.rows)
		}
		ratio := float64(estimate.UncompressedSize(c.rows, 1, sp)) / float64(info.MinSize)
		if ratio > 1 {
			cls.compressible = append(cls.compressible, col)
			cls.ratios[col] = ratio
			continue
		}
		cls.incompressible = append(cls.incompressible, col)
		nnzUC += info.EstNnz
	}

	if len(cls.incompressible) == 0 || matrix.EvalSparseFormat(c.rows, len(cls.incompressible), nnzUC) {
		return cls
	}
	dense := float64(estimate.UncompressedSize(c.rows, 1, 1.0))
	kept := cls.incompressible[:0]
	for _, col := range cls.incompressible {
		if ratio := dense / float64(infos[col].MinSize); ratio > 1 {
			cls.compressible = append(cls.compressible, col)
			cls.ratios[col] = ratio
			continue
		}
		kept = append(kept, col)
	}
	cls.incompressible = kept
	return cls
}

type encodedGroup struct {
	group    colgroup.Group
	estimate int64
}

func (c *compressor) encodeGroups(ctx context.Context, rawT *matrix.Block, est estimate.Estimator,
	plan [][]int, ratios []float64, denseEst bool) ([]encodedGroup, error) {
	out := make([]encodedGroup, len(plan))
	tasks := make([]parallel.Task, len(plan))
	for i, cols := range plan {
		tasks[i] = func(ctx context.Context) error {
			g, info, err := c.compressGroup(rawT, est, cols, ratios, denseEst)
			if err != nil {
				return fmt.Errorf("group %v: %w", cols, err)
			}
			out[i] = encodedGroup{group: g, estimate: info.MinSize}
			return nil
		}
	}
	if err := parallel.Run(ctx, c.k, tasks); err != nil {
		return nil, err
	}
	return out, nil
}

// compressGroup encodes cols, dropping the least compressible columns until
// the group compresses. It returns a nil group when no column is left.
func (c *compressor) compressGroup(rawT *matrix.Block, est estimate.Estimator, cols []int,
	ratios []float64, denseEst bool) (colgroup.Group, estimate.SizeInfo, error) {
	cols = slices.Clone(cols)
	slices.Sort(cols)

	var (
		queue *ratioQueue
		bm    *bitmap.Bitmap
		info  estimate.SizeInfo
	)
	for {
		bm = bitmap.Extract(cols, rawT)
		info = est.EstimateBitmapSize(bm)
		sp := 1.0
		if !denseEst && c.rows > 0 {
			sp = float64(bm.NumOffsets()) / float64(c.rows)
		}
		ratio := float64(estimate.UncompressedSize(c.rows, len(cols), sp)) / float64(info.MinSize)
		if ratio > 1 {
			break
		}
		if queue == nil {
			queue = newRatioQueue(cols, ratios)
		}
		heap.Pop(queue)
		if queue.Len() == 0 {
			return nil, info, nil
		}
		cols = queue.columns()
	}

	var (
		g   colgroup.Group
		err error
	)
	switch {
	case c.cfg.AllowDictionary && info.DDCSize < info.RLESize && info.DDCSize < info.OLESize:
		if bm.NumValues() <= 255 {
			g, err = colgroup.NewDDC1(cols, c.rows, bm)
		} else {
			g, err = colgroup.NewDDC2(cols, c.rows, bm)
		}
	case info.RLESize < info.OLESize:
		g = colgroup.NewRLE(cols, c.rows, bm)
	default:
		g = colgroup.NewOLE(cols, c.rows, bm)
	}
	if err != nil {
		return nil, info, err
	}
	if c.cfg.InvestigateEstimates {
		c.log.Info("group size",
			slog.Any("cols", cols),
			slog.String("type", g.Type().String()),
			slog.Int64("estimated", info.MinSize),
			slog.Int64("actual", g.EstimateInMemorySize()))
	}
	return g, info, nil
}

// ratioQueue is a min-heap of columns by estimated compression ratio.
type ratioQueue struct {
	cols   []int
	ratios []float64
}

func newRatioQueue(cols []int, ratios []float64) *ratioQueue {
	q := &ratioQueue{cols: slices.Clone(cols), ratios: ratios}
	heap.Init(q)
	return q
}

func (q *ratioQueue) Len() int { return len(q.cols) }

func (q *ratioQueue) Less(i, j int) bool {
	return sign(q.ratios[q.cols[i]]-q.ratios[q.cols[j]]) < 0
}

func (q *ratioQueue) Swap(i, j int) { q.cols[i], q.cols[j] = q.cols[j], q.cols[i] }

func (q *ratioQueue) Push(x any) { q.cols = append(q.cols, x.(int)) }

func (q *ratioQueue) Pop() any {
	n := len(q.cols)
	x := q.cols[n-1]
	q.cols = q.cols[:n-1]
	return x
}

// columns returns the queued columns in ascending order.
func (q *ratioQueue) columns() []int {
	out := slices.Clone(q.cols)
	slices.Sort(out)
	return out
}

func sign(x float64) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}
