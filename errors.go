package cla

import (
	"errors"
	"fmt"

	"github.com/hupe1980/cla/internal/parallel"
)

var (
	// ErrAlreadyCompressed is returned when compressing a compressed block.
	ErrAlreadyCompressed = errors.New("block is already compressed")

	// ErrNotCompressed is returned by operations that need a compressed block.
	ErrNotCompressed = errors.New("block is not compressed")

	// ErrUnsupportedSide is returned for transpose-self products other than
	// the left variant t(X) %*% X.
	ErrUnsupportedSide = errors.New("unsupported transpose-self side over compressed block")

	// ErrUnsupportedShape is returned for matrix-matrix products over a
	// compressed block.
	ErrUnsupportedShape = errors.New("unsupported matrix-matrix multiplication over compressed block")

	// ErrInPlaceGenerate is returned when running random or sequence
	// generation in place on a compressed block.
	ErrInPlaceGenerate = errors.New("in-place generation on compressed block")

	// ErrDimensionMismatch is returned when an operand does not conform.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrCorrupt is returned when decoding malformed serialized data.
	ErrCorrupt = errors.New("corrupt compressed block")
)

// TaskError reports the failure of one parallel task of an operation.
//
// The original underlying error can be accessed via errors.Unwrap.
type TaskError = parallel.TaskError

// ShapeError describes a non-conforming operand.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ShapeError struct {
	Op   string
	Rows int
	Cols int
	Want string
	cause error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: operand %dx%d, want %s", e.Op, e.Rows, e.Cols, e.Want)
}

func (e *ShapeError) Unwrap() error { return e.cause }

func shapeError(op string, rows, cols int, want string) error {
	return &ShapeError{Op: op, Rows: rows, Cols: cols, Want: want, cause: ErrDimensionMismatch}
}

func vectorError(op string, got, want int) error {
	return shapeError(op, got, 1, fmt.Sprintf("length %d", want))
}
