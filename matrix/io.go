package matrix

import (
	"fmt"
	"io"

	"github.com/hupe1980/cla/internal/wire"
)

// Encode writes the block as rows, cols, nnz, a format byte and the cells.
// Dense blocks write rows*cols float64 values; sparse blocks write, per row,
// the cell count followed by (index, value) pairs.
func (b *Block) Encode(w *wire.Writer) {
	w.Int(b.rows)
	w.Int(b.cols)
	w.Int64(b.nnz)
	w.Bool(b.sparse)
	if !b.sparse {
		for _, v := range b.dense {
			w.Float64(v)
		}
		return
	}
	for _, row := range b.srows {
		if row == nil {
			w.Int(0)
			continue
		}
		w.Int(row.Len())
		for i, c := range row.Indexes {
			w.Int(c)
			w.Float64(row.Values[i])
		}
	}
}

// Decode reads a block written by Encode.
func Decode(r *wire.Reader) (*Block, error) {
	rows, cols := r.Int(), r.Int()
	nnz := r.Int64()
	sparse := r.Bool()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("matrix: invalid dimensions %dx%d", rows, cols)
	}
	if !sparse && int64(rows)*int64(cols) > wire.MaxSliceLen {
		return nil, fmt.Errorf("matrix: dense block %dx%d too large", rows, cols)
	}
	b := New(rows, cols, sparse)
	b.nnz = nnz
	if !sparse {
		for i := range b.dense {
			b.dense[i] = r.Float64()
		}
		return b, r.Err()
	}
	for i := 0; i < rows && r.Err() == nil; i++ {
		n := r.Len()
		if n == 0 {
			continue
		}
		if n > cols {
			return nil, fmt.Errorf("matrix: row %d has %d cells, want <= %d", i, n, cols)
		}
		b.AllocateRow(i, n)
		prev := -1
		for j := 0; j < n; j++ {
			c, v := r.Int(), r.Float64()
			if r.Err() != nil {
				break
			}
			if c <= prev || c >= cols {
				return nil, fmt.Errorf("matrix: row %d column %d out of order or range [0, %d)", i, c, cols)
			}
			b.srows[i].Append(c, v)
			prev = c
		}
	}
	return b, r.Err()
}

// WriteTo implements io.WriterTo.
func (b *Block) WriteTo(w io.Writer) (int64, error) {
	ww := wire.NewWriter(w)
	b.Encode(ww)
	return ww.N(), ww.Err()
}

// ReadFrom implements io.ReaderFrom.
func (b *Block) ReadFrom(r io.Reader) (int64, error) {
	rr := wire.NewReader(r)
	d, err := Decode(rr)
	if err != nil {
		return rr.N(), err
	}
	*b = *d
	return rr.N(), nil
}

// SizeOnDisk returns the exact number of bytes Encode writes.
func (b *Block) SizeOnDisk() int64 {
	size := int64(4 + 4 + 8 + 1)
	if !b.sparse {
		return size + 8*int64(b.rows)*int64(b.cols)
	}
	for _, row := range b.srows {
		size += 4
		if row != nil {
			size += 12 * int64(row.Len())
		}
	}
	return size
}
