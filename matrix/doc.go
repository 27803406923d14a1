// Package matrix provides the conventional dense/sparse matrix block used as
// the decompression target and as the operand of the uncompressed fallback
// path.
//
// Dense kernels delegate to gonum; sparse rows are handled directly.
package matrix
