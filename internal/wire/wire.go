// Package wire provides little-endian binary encoding helpers with sticky errors.
//
// Every Write* / Read* call becomes a no-op once an error has been observed,
// so callers check Err once at the end of a record.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MaxSliceLen bounds length prefixes read from untrusted input.
const MaxSliceLen = 1 << 31

// Writer encodes primitives to an io.Writer.
type Writer struct {
	w   io.Writer
	buf [8]byte
	n   int64
	err error
}

// NewWriter returns a Writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// N returns the number of bytes written so far.
func (w *Writer) N() int64 { return w.n }

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	if err != nil {
		w.err = err
	}
}

// Bytes writes raw bytes without a length prefix.
func (w *Writer) Bytes(p []byte) { w.write(p) }

// Bool writes a single byte, 1 for true.
func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

// Uint8 writes a byte.
func (w *Writer) Uint8(v uint8) {
	w.buf[0] = v
	w.write(w.buf[:1])
}

// Uint16 writes a little-endian uint16.
func (w *Writer) Uint16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	w.write(w.buf[:2])
}

// Int32 writes a little-endian int32.
func (w *Writer) Int32(v int32) {
	binary.LittleEndian.PutUint32(w.buf[:4], uint32(v))
	w.write(w.buf[:4])
}

// Int64 writes a little-endian int64.
func (w *Writer) Int64(v int64) {
	binary.LittleEndian.PutUint64(w.buf[:8], uint64(v))
	w.write(w.buf[:8])
}

// Int writes v as int32, failing when it does not fit.
func (w *Writer) Int(v int) {
	if w.err != nil {
		return
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		w.err = fmt.Errorf("wire: integer overflow: %d does not fit int32", v)
		return
	}
	w.Int32(int32(v))
}

// Float64 writes the IEEE-754 bits of v.
func (w *Writer) Float64(v float64) {
	binary.LittleEndian.PutUint64(w.buf[:8], math.Float64bits(v))
	w.write(w.buf[:8])
}

// Ints writes a length-prefixed []int as int32 values.
func (w *Writer) Ints(v []int) {
	w.Int(len(v))
	for _, x := range v {
		w.Int(x)
	}
}

// Float64s writes a length-prefixed []float64.
func (w *Writer) Float64s(v []float64) {
	w.Int(len(v))
	for _, x := range v {
		w.Float64(x)
	}
}

// Uint16s writes a length-prefixed []uint16.
func (w *Writer) Uint16s(v []uint16) {
	w.Int(len(v))
	for _, x := range v {
		w.Uint16(x)
	}
}

// Int32s writes a length-prefixed []int32.
func (w *Writer) Int32s(v []int32) {
	w.Int(len(v))
	for _, x := range v {
		w.Int32(x)
	}
}

// Reader decodes primitives from an io.Reader.
type Reader struct {
	r   io.Reader
	buf [8]byte
	n   int64
	err error
}

// NewReader returns a Reader on top of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// N returns the number of bytes consumed so far.
func (r *Reader) N() int64 { return r.n }

func (r *Reader) read(p []byte) bool {
	if r.err != nil {
		return false
	}
	n, err := io.ReadFull(r.r, p)
	r.n += int64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return false
	}
	return true
}

// Bytes fills p completely.
func (r *Reader) Bytes(p []byte) { r.read(p) }

// Bool reads a single byte.
func (r *Reader) Bool() bool {
	return r.Uint8() != 0
}

// Uint8 reads a byte.
func (r *Reader) Uint8() uint8 {
	if !r.read(r.buf[:1]) {
		return 0
	}
	return r.buf[0]
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() uint16 {
	if !r.read(r.buf[:2]) {
		return 0
	}
	return binary.LittleEndian.Uint16(r.buf[:2])
}

// Int32 reads a little-endian int32.
func (r *Reader) Int32() int32 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(r.buf[:4]))
}

// Int64 reads a little-endian int64.
func (r *Reader) Int64() int64 {
	if !r.read(r.buf[:8]) {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(r.buf[:8]))
}

// Int reads an int32 and widens it.
func (r *Reader) Int() int {
	return int(r.Int32())
}

// Float64 reads IEEE-754 bits.
func (r *Reader) Float64() float64 {
	if !r.read(r.buf[:8]) {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(r.buf[:8]))
}

// Len reads a length prefix and validates it.
func (r *Reader) Len() int {
	n := r.Int()
	if r.err != nil {
		return 0
	}
	if n < 0 || n > MaxSliceLen {
		r.err = fmt.Errorf("wire: invalid length %d", n)
		return 0
	}
	return n
}

// Ints reads a length-prefixed []int.
func (r *Reader) Ints() []int {
	n := r.Len()
	if r.err != nil {
		return nil
	}
	v := make([]int, n)
	for i := range v {
		v[i] = r.Int()
	}
	return v
}

// Float64s reads a length-prefixed []float64.
func (r *Reader) Float64s() []float64 {
	n := r.Len()
	if r.err != nil {
		return nil
	}
	v := make([]float64, n)
	for i := range v {
		v[i] = r.Float64()
	}
	return v
}

// Uint16s reads a length-prefixed []uint16.
func (r *Reader) Uint16s() []uint16 {
	n := r.Len()
	if r.err != nil {
		return nil
	}
	v := make([]uint16, n)
	for i := range v {
		v[i] = r.Uint16()
	}
	return v
}

// Int32s reads a length-prefixed []int32.
func (r *Reader) Int32s() []int32 {
	n := r.Len()
	if r.err != nil {
		return nil
	}
	v := make([]int32, n)
	for i := range v {
		v[i] = r.Int32()
	}
	return v
}
