package cla

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hupe1980/cla/colgroup"
	"github.com/hupe1980/cla/internal/wire"
	"github.com/hupe1980/cla/matrix"
)

// WriteTo serializes the block. The layout is a flag byte followed either
// by rows, cols, nnz, the group count and the tagged groups, or by the
// conventional block encoding.
func (b *CompressedBlock) WriteTo(w io.Writer) (int64, error) {
	ww := wire.NewWriter(w)
	ww.Bool(b.IsCompressed())
	if !b.IsCompressed() {
		b.raw.Encode(ww)
		return ww.N(), ww.Err()
	}
	ww.Int(b.rows)
	ww.Int(b.cols)
	ww.Int64(b.nnz)
	ww.Int(len(b.groups))
	for _, g := range b.groups {
		colgroup.Write(ww, g)
	}
	return ww.N(), ww.Err()
}

// ReadFrom replaces b by a block written with WriteTo. Settings of b are
// kept; a zero CompressedBlock gets the defaults.
func (b *CompressedBlock) ReadFrom(r io.Reader) (int64, error) {
	rr := wire.NewReader(r)
	d, err := decode(rr)
	if err != nil {
		return rr.N(), fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	cfg := b.cfg
	if cfg.Planner == nil {
		cfg = DefaultConfig()
	}
	*b = *d
	b.cfg = cfg
	return rr.N(), nil
}

// Read decodes a block written with WriteTo.
func Read(r io.Reader, opts ...Option) (*CompressedBlock, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	b := &CompressedBlock{cfg: cfg}
	if _, err := b.ReadFrom(r); err != nil {
		return nil, err
	}
	return b, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (b *CompressedBlock) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(b.ExactSizeOnDisk()))
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (b *CompressedBlock) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	if _, err := b.ReadFrom(r); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	return nil
}

// ExactSizeOnDisk returns the number of bytes WriteTo produces.
func (b *CompressedBlock) ExactSizeOnDisk() int64 {
	if !b.IsCompressed() {
		return 1 + b.raw.SizeOnDisk()
	}
	size := int64(1 + 4 + 4 + 8 + 4)
	for _, g := range b.groups {
		size += 1 + g.ExactSizeOnDisk()
	}
	return size
}

func decode(r *wire.Reader) (*CompressedBlock, error) {
	compressed := r.Bool()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if !compressed {
		m, err := matrix.Decode(r)
		if err != nil {
			return nil, err
		}
		return &CompressedBlock{rows: m.Rows(), cols: m.Cols(), nnz: m.NonZeros(), raw: m}, nil
	}

	rows, cols := r.Int(), r.Int()
	nnz := r.Int64()
	n := r.Len()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if rows < 0 || cols < 0 || nnz < 0 || nnz > int64(rows)*int64(cols) {
		return nil, fmt.Errorf("invalid header %dx%d nnz=%d", rows, cols, nnz)
	}
	if n > cols {
		return nil, fmt.Errorf("%d groups for %d columns", n, cols)
	}
	groups := make([]colgroup.Group, 0, n)
	for i := 0; i < n; i++ {
		g, err := colgroup.Read(r)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		groups = append(groups, g)
	}
	b := &CompressedBlock{rows: rows, cols: cols, nnz: nnz}
	if err := b.setGroups(groups); err != nil {
		return nil, err
	}
	return b, nil
}
