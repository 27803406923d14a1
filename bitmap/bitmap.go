// Package bitmap extracts, for a subset of columns, the distinct non-zero
// value tuples and the sorted row offsets at which each tuple occurs.
package bitmap

import (
	"encoding/binary"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/cla/matrix"
)

// Bitmap is the uncompressed offset-list view of a column subset.
// Tuples are stored flattened in first-occurrence order.
type Bitmap struct {
	numCols int
	values  []float64
	offsets [][]int32
}

// New builds a Bitmap from flattened tuples and their offset lists.
func New(numCols int, values []float64, offsets [][]int32) *Bitmap {
	return &Bitmap{numCols: numCols, values: values, offsets: offsets}
}

// NumCols returns the tuple width.
func (b *Bitmap) NumCols() int { return b.numCols }

// NumValues returns the number of distinct non-zero tuples.
func (b *Bitmap) NumValues() int { return len(b.offsets) }

// Values returns the flattened tuples.
func (b *Bitmap) Values() []float64 { return b.values }

// Tuple returns tuple i.
func (b *Bitmap) Tuple(i int) []float64 {
	return b.values[i*b.numCols : (i+1)*b.numCols]
}

// Offsets returns the sorted rows of tuple i.
func (b *Bitmap) Offsets(i int) []int32 { return b.offsets[i] }

// NumOffsets returns the total number of rows holding a non-zero tuple.
func (b *Bitmap) NumOffsets() int64 {
	var n int64
	for _, o := range b.offsets {
		n += int64(len(o))
	}
	return n
}

// Extract scans the given columns of the transposed matrix rawT (one column
// of the original matrix per row of rawT, sorted if sparse) and groups the
// original rows by their value tuple. All-zero tuples are omitted; a
// negative zero is treated as zero, so signed zeros decompress as +0.
func Extract(cols []int, rawT *matrix.Block) *Bitmap {
	if len(cols) == 1 {
		return extractSingle(cols[0], rawT)
	}
	return extractMulti(cols, rawT)
}

type collector struct {
	numCols int
	values  []float64
	rows    []*roaring.Bitmap
}

func (c *collector) add(tuple []float64) *roaring.Bitmap {
	c.values = append(c.values, tuple...)
	rb := roaring.New()
	c.rows = append(c.rows, rb)
	return rb
}

func (c *collector) bitmap() *Bitmap {
	offsets := make([][]int32, len(c.rows))
	for i, rb := range c.rows {
		o := make([]int32, 0, rb.GetCardinality())
		it := rb.Iterator()
		for it.HasNext() {
			o = append(o, int32(it.Next()))
		}
		offsets[i] = o
	}
	return New(c.numCols, c.values, offsets)
}

func extractSingle(col int, rawT *matrix.Block) *Bitmap {
	c := &collector{numCols: 1}
	index := make(map[uint64]*roaring.Bitmap)
	var tuple [1]float64
	visit := func(r int, v float64) {
		key := math.Float64bits(v)
		rb, ok := index[key]
		if !ok {
			tuple[0] = v
			rb = c.add(tuple[:])
			index[key] = rb
		}
		rb.Add(uint32(r))
	}
	rawT.ForEachNonZero(col, visit)
	return c.bitmap()
}

func extractMulti(cols []int, rawT *matrix.Block) *Bitmap {
	c := &collector{numCols: len(cols)}
	index := make(map[string]*roaring.Bitmap)
	tuple := make([]float64, len(cols))
	key := make([]byte, 8*len(cols))
	rows := rawT.Cols()

	var cursors []int
	if rawT.IsSparse() {
		cursors = make([]int, len(cols))
	}

	for r := 0; r < rows; r++ {
		nonZero := false
		for j, col := range cols {
			var v float64
			if cursors == nil {
				v = rawT.DenseData()[col*rows+r]
			} else if sr := rawT.Row(col); sr != nil {
				p := cursors[j]
				if p < sr.Len() && sr.Indexes[p] == r {
					v = sr.Values[p]
					cursors[j]++
				}
			}
			if v != 0 {
				nonZero = true
			} else {
				v = 0 // -0 folds into +0
			}
			tuple[j] = v
			binary.LittleEndian.PutUint64(key[8*j:], math.Float64bits(v))
		}
		if !nonZero {
			continue
		}
		rb, ok := index[string(key)]
		if !ok {
			rb = c.add(tuple)
			index[string(key)] = rb
		}
		rb.Add(uint32(r))
	}
	return c.bitmap()
}
