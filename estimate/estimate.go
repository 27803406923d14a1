// Package estimate scores candidate column groups by their encoded size
// under each supported encoding.
package estimate

import (
	"fmt"
	"math"

	"github.com/hupe1980/cla/bitmap"
	"github.com/hupe1980/cla/matrix"
)

// SizeInfo reports the encoded size of a column group under every encoding.
type SizeInfo struct {
	MinSize int64
	RLESize int64
	OLESize int64
	DDCSize int64
	// EstNnz is the estimated number of rows holding a non-zero tuple.
	EstNnz int64
}

func (s SizeInfo) String() string {
	return fmt.Sprintf("min=%d rle=%d ole=%d ddc=%d nnz=%d", s.MinSize, s.RLESize, s.OLESize, s.DDCSize, s.EstNnz)
}

// Estimator scores column subsets of one matrix.
type Estimator interface {
	// EstimateGroupSize scores the given column subset.
	EstimateGroupSize(cols []int) SizeInfo
	// EstimateBitmapSize scores an already extracted bitmap.
	EstimateBitmapSize(bm *bitmap.Bitmap) SizeInfo
}

// Factory creates an Estimator over the transposed matrix rawT.
type Factory func(rawT *matrix.Block, allowDDC bool) Estimator

// Exact computes sizes from the full bitmap, without sampling.
type Exact struct {
	rawT     *matrix.Block
	rows     int
	allowDDC bool
}

var _ Estimator = (*Exact)(nil)

// NewExact returns an exact estimator. It satisfies Factory.
func NewExact(rawT *matrix.Block, allowDDC bool) Estimator {
	return &Exact{rawT: rawT, rows: rawT.Cols(), allowDDC: allowDDC}
}

// EstimateGroupSize implements Estimator.
func (e *Exact) EstimateGroupSize(cols []int) SizeInfo {
	return e.EstimateBitmapSize(bitmap.Extract(cols, e.rawT))
}

// EstimateBitmapSize implements Estimator.
func (e *Exact) EstimateBitmapSize(bm *bitmap.Bitmap) SizeInfo {
	nv, nc := bm.NumValues(), bm.NumCols()
	numOffs := bm.NumOffsets()
	runs, segs := 0, 0
	for i := 0; i < nv; i++ {
		off := bm.Offsets(i)
		runs += bitmap.RunCount(off)
		segs += bitmap.SegmentCount(off)
	}
	ddcValues := nv
	if numOffs < int64(e.rows) {
		ddcValues++
	}
	info := SizeInfo{
		RLESize: RLESize(nv, nc, runs),
		OLESize: OLESize(nv, nc, numOffs, segs),
		DDCSize: DDCSize(ddcValues, nc, e.rows),
		EstNnz:  numOffs,
	}
	info.MinSize = min(info.RLESize, info.OLESize)
	if e.allowDDC {
		info.MinSize = min(info.MinSize, info.DDCSize)
	}
	return info
}

// RLESize returns the size of a run-length group.
func RLESize(numValues, numCols, numRuns int) int64 {
	return dictSize(numValues, numCols) + 4*int64(numValues+1) + 4*int64(numRuns)
}

// OLESize returns the size of an offset-list group.
func OLESize(numValues, numCols int, numOffs int64, numSegs int) int64 {
	return dictSize(numValues, numCols) + 4*int64(numValues+1) + 2*numOffs + 2*int64(numSegs)
}

// DDCSize returns the size of a dictionary group, or math.MaxInt64 when the
// dictionary does not fit a two byte index.
func DDCSize(numValues, numCols, rows int) int64 {
	if numValues > math.MaxUint16 {
		return math.MaxInt64
	}
	width := int64(1)
	if numValues > math.MaxUint8 {
		width = 2
	}
	return dictSize(numValues, numCols) + width*int64(rows)
}

// UncompressedSize bounds the size of rows×cols uncompressed cells at the
// given sparsity by the cheaper of a dense and a CSR-like layout.
func UncompressedSize(rows, cols int, sparsity float64) int64 {
	dense := 8 * int64(rows) * int64(cols)
	sparse := 4*int64(rows) + int64(12*float64(rows)*float64(cols)*sparsity)
	return min(dense, sparse)
}

func dictSize(numValues, numCols int) int64 {
	return 8 * int64(numValues) * int64(numCols)
}
