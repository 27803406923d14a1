package bitmap

import (
	"errors"
	"fmt"
	"math"
)

// BlockSize is the number of rows per offset-list segment. Offsets inside a
// segment are stored relative to the segment start and fit in a uint16.
const BlockSize = 1 << 15

// EncodeOLE packs sorted offsets into segments of BlockSize rows. Each
// segment is written as its length followed by the relative offsets; empty
// segments before the last non-empty one are written with length zero.
func EncodeOLE(offsets []int32) []uint16 {
	if len(offsets) == 0 {
		return nil
	}
	numSegs := SegmentCount(offsets)
	out := make([]uint16, 0, len(offsets)+numSegs)
	pos := 0
	for s := 0; s < numSegs; s++ {
		lo := int32(s * BlockSize)
		hi := lo + BlockSize
		start := pos
		for pos < len(offsets) && offsets[pos] < hi {
			pos++
		}
		out = append(out, uint16(pos-start))
		for _, o := range offsets[start:pos] {
			out = append(out, uint16(o-lo))
		}
	}
	return out
}

// SegmentCount returns the number of OLE segments needed for offsets.
func SegmentCount(offsets []int32) int {
	if len(offsets) == 0 {
		return 0
	}
	return int(offsets[len(offsets)-1])/BlockSize + 1
}

// ForEachOLE calls fn for every row encoded in data whose segment overlaps
// [rl, ru), in increasing order. Rows outside the range are skipped.
func ForEachOLE(data []uint16, rl, ru int, fn func(row int)) {
	pos := 0
	for seg := 0; pos < len(data); seg++ {
		n := int(data[pos])
		pos++
		base := seg * BlockSize
		if base+BlockSize <= rl {
			pos += n
			continue
		}
		if base >= ru {
			return
		}
		for _, o := range data[pos : pos+n] {
			row := base + int(o)
			if row >= rl && row < ru {
				fn(row)
			}
		}
		pos += n
	}
}

// EncodeRLE packs sorted offsets into (gap, length) pairs. The gap is
// measured from the end of the previous run. Gaps and runs longer than
// math.MaxUint16 are split.
func EncodeRLE(offsets []int32) []uint16 {
	out := make([]uint16, 0, 2*RunCount(offsets))
	forEachRLEPair(offsets, func(gap, length uint16) {
		out = append(out, gap, length)
	})
	return out
}

// RunCount returns the number of (gap, length) pairs EncodeRLE emits.
func RunCount(offsets []int32) int {
	n := 0
	forEachRLEPair(offsets, func(uint16, uint16) { n++ })
	return n
}

func forEachRLEPair(offsets []int32, emit func(gap, length uint16)) {
	last := 0
	for i := 0; i < len(offsets); {
		start := int(offsets[i])
		j := i + 1
		for j < len(offsets) && offsets[j] == offsets[j-1]+1 {
			j++
		}
		gap, length := start-last, j-i
		for gap > math.MaxUint16 {
			emit(math.MaxUint16, 0)
			gap -= math.MaxUint16
		}
		for length > math.MaxUint16 {
			emit(uint16(gap), math.MaxUint16)
			gap = 0
			length -= math.MaxUint16
		}
		emit(uint16(gap), uint16(length))
		last = start + (j - i)
		i = j
	}
}

// ForEachRun calls fn with the half-open row range of every run in data,
// clipped to [rl, ru).
func ForEachRun(data []uint16, rl, ru int, fn func(start, end int)) {
	pos := 0
	for i := 0; i+1 < len(data); i += 2 {
		start := pos + int(data[i])
		end := start + int(data[i+1])
		pos = end
		if end <= rl || start == end {
			continue
		}
		if start >= ru {
			return
		}
		fn(max(start, rl), min(end, ru))
	}
}

// ErrMalformed is returned for payloads that do not describe sorted rows
// inside [0, rows).
var ErrMalformed = errors.New("malformed offset payload")

// ValidateOLE checks that data is an OLE payload over rows rows: every
// segment length fits the remaining data, relative offsets are strictly
// increasing and below BlockSize, and every row is below rows.
func ValidateOLE(data []uint16, rows int) error {
	pos := 0
	for seg := 0; pos < len(data); seg++ {
		n := int(data[pos])
		pos++
		if n > len(data)-pos {
			return fmt.Errorf("%w: segment %d length %d exceeds %d remaining", ErrMalformed, seg, n, len(data)-pos)
		}
		base := seg * BlockSize
		prev := -1
		for _, o := range data[pos : pos+n] {
			off := int(o)
			if off <= prev || off >= BlockSize {
				return fmt.Errorf("%w: segment %d offset %d out of order", ErrMalformed, seg, off)
			}
			if base+off >= rows {
				return fmt.Errorf("%w: row %d out of range [0, %d)", ErrMalformed, base+off, rows)
			}
			prev = off
		}
		pos += n
	}
	return nil
}

// ValidateRLE checks that data is a sequence of (gap, length) pairs whose
// runs end at or before rows.
func ValidateRLE(data []uint16, rows int) error {
	if len(data)%2 != 0 {
		return fmt.Errorf("%w: odd run payload length %d", ErrMalformed, len(data))
	}
	end := 0
	for i := 0; i < len(data); i += 2 {
		end += int(data[i]) + int(data[i+1])
		if end > rows {
			return fmt.Errorf("%w: run ends at %d past %d rows", ErrMalformed, end, rows)
		}
	}
	return nil
}

// DecodeOLE expands an OLE payload back into sorted offsets.
func DecodeOLE(data []uint16) []int32 {
	var out []int32
	ForEachOLE(data, 0, math.MaxInt32, func(row int) { out = append(out, int32(row)) })
	return out
}

// DecodeRLE expands an RLE payload back into sorted offsets.
func DecodeRLE(data []uint16) []int32 {
	var out []int32
	ForEachRun(data, 0, math.MaxInt32, func(start, end int) {
		for r := start; r < end; r++ {
			out = append(out, int32(r))
		}
	})
	return out
}
