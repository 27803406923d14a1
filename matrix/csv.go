package matrix

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadCSV parses a headerless CSV of numbers into a block. Empty cells are
// zero. The result is converted to its preferred format.
func ReadCSV(r io.Reader) (*Block, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var (
		data []float64
		rows int
		cols = -1
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("matrix: csv: %w", err)
		}
		if cols < 0 {
			cols = len(rec)
		}
		for c, field := range rec {
			field = strings.TrimSpace(field)
			if field == "" {
				data = append(data, 0)
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("matrix: csv: row %d col %d: %w", rows+1, c+1, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if cols < 0 {
		cols = 0
	}
	return FromDense(rows, cols, data).Examine(), nil
}

// WriteCSV writes every cell of b, including zeros, in row-major order.
func WriteCSV(w io.Writer, b *Block) error {
	cw := csv.NewWriter(w)
	rec := make([]string, b.cols)
	for r := 0; r < b.rows; r++ {
		for c := range rec {
			rec[c] = strconv.FormatFloat(b.Get(r, c), 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
