package cla

import (
	"fmt"
	"slices"

	"github.com/hupe1980/cla/colgroup"
	"github.com/hupe1980/cla/matrix"
)

// CompressedBlock is a matrix block that is either held conventionally or
// as a list of column groups. It is not safe for concurrent mutation;
// read-only operations on a compressed block may run concurrently.
type CompressedBlock struct {
	rows int
	cols int
	nnz  int64

	// groups is nil while the block is uncompressed.
	groups []colgroup.Group
	raw    *matrix.Block

	// colGroup maps every column to the position of its owning group.
	colGroup []int

	stats Statistics
	cfg   Config
}

// Wrap returns an uncompressed block holding m.
func Wrap(m *matrix.Block, opts ...Option) (*CompressedBlock, error) {
	if m == nil {
		return nil, fmt.Errorf("cla: nil matrix")
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return &CompressedBlock{
		rows: m.Rows(),
		cols: m.Cols(),
		nnz:  m.NonZeros(),
		raw:  m,
		cfg:  cfg,
	}, nil
}

// FromGroups assembles a compressed block from column groups that together
// own every column exactly once.
func FromGroups(rows, cols int, groups []colgroup.Group, opts ...Option) (*CompressedBlock, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	b := &CompressedBlock{rows: rows, cols: cols, cfg: cfg}
	if err := b.setGroups(groups); err != nil {
		return nil, err
	}
	b.nnz = b.countNonZeros()
	return b, nil
}

func (b *CompressedBlock) setGroups(groups []colgroup.Group) error {
	colGroup, err := coverage(b.rows, b.cols, groups)
	if err != nil {
		return err
	}
	if groups == nil {
		groups = []colgroup.Group{}
	}
	b.groups = groups
	b.colGroup = colGroup
	b.raw = nil
	return nil
}

// IsCompressed reports whether the block holds column groups.
func (b *CompressedBlock) IsCompressed() bool { return b.groups != nil }

// IsSingleUncompressedGroup reports whether the block is compressed into a
// single Uncompressed group, which defers every operation to the
// conventional kernels.
func (b *CompressedBlock) IsSingleUncompressedGroup() bool {
	return len(b.groups) == 1 && b.groups[0].Type() == colgroup.TypeUncompressed
}

// Groups returns the column groups, or nil for an uncompressed block.
func (b *CompressedBlock) Groups() []colgroup.Group {
	if b.groups == nil {
		return nil
	}
	return slices.Clone(b.groups)
}

// Raw returns the conventional block of an uncompressed block, or nil.
func (b *CompressedBlock) Raw() *matrix.Block { return b.raw }

// Rows returns the number of rows.
func (b *CompressedBlock) Rows() int { return b.rows }

// Cols returns the number of columns.
func (b *CompressedBlock) Cols() int { return b.cols }

// NonZeros returns the number of non-zero cells.
func (b *CompressedBlock) NonZeros() int64 { return b.nnz }

// Config returns the block settings.
func (b *CompressedBlock) Config() Config { return b.cfg }

// Statistics returns the statistics of the last compression.
func (b *CompressedBlock) Statistics() Statistics { return b.stats.clone() }

// Get returns the value at (r, c).
func (b *CompressedBlock) Get(r, c int) float64 {
	if r < 0 || r >= b.rows || c < 0 || c >= b.cols {
		panic(fmt.Sprintf("cla: index (%d,%d) out of range %dx%d", r, c, b.rows, b.cols))
	}
	if !b.IsCompressed() {
		return b.raw.Get(r, c)
	}
	return b.groups[b.colGroup[c]].Get(r, c)
}

// GroupOf returns the column group that owns column c.
func (b *CompressedBlock) GroupOf(c int) (colgroup.Group, error) {
	if !b.IsCompressed() {
		return nil, ErrNotCompressed
	}
	if c < 0 || c >= b.cols {
		return nil, fmt.Errorf("cla: column %d out of range [0,%d)", c, b.cols)
	}
	return b.groups[b.colGroup[c]], nil
}

// InMemorySize estimates the in-memory footprint in bytes.
func (b *CompressedBlock) InMemorySize() int64 {
	if !b.IsCompressed() {
		return b.raw.InMemorySize()
	}
	size := int64(64)
	for _, g := range b.groups {
		size += g.EstimateInMemorySize()
	}
	return size
}

func (b *CompressedBlock) countNonZeros() int64 {
	rnnz := b.rowNonZeros(0, b.rows)
	var n int64
	for _, c := range rnnz {
		n += int64(c)
	}
	return n
}

func (b *CompressedBlock) rowNonZeros(rl, ru int) []int {
	rnnz := make([]int, ru-rl)
	for _, g := range b.groups {
		g.CountNonZerosPerRow(rnnz, rl, ru)
	}
	return rnnz
}

func (b *CompressedBlock) uncompressedGroup() (*colgroup.Uncompressed, []colgroup.Group) {
	var uc *colgroup.Uncompressed
	rest := make([]colgroup.Group, 0, len(b.groups))
	for _, g := range b.groups {
		if u, ok := g.(*colgroup.Uncompressed); ok && uc == nil {
			uc = u
			continue
		}
		rest = append(rest, g)
	}
	return uc, rest
}

func (b *CompressedBlock) String() string {
	if !b.IsCompressed() {
		return fmt.Sprintf("CompressedBlock(%dx%d, nnz=%d, uncompressed)", b.rows, b.cols, b.nnz)
	}
	return fmt.Sprintf("CompressedBlock(%dx%d, nnz=%d, groups=%d)", b.rows, b.cols, b.nnz, len(b.groups))
}
