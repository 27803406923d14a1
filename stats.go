package cla

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/hupe1980/cla/colgroup"
)

// Statistics describes the last compression of a block.
type Statistics struct {
	ClassifyTime time.Duration `json:"classify_time"`
	GroupTime    time.Duration `json:"group_time"`
	CompressTime time.Duration `json:"compress_time"`
	FinalizeTime time.Duration `json:"finalize_time"`

	// EstimatedSize is the sum of the accepted groups' estimated minimum
	// sizes plus the estimated size of the uncompressed remainder.
	EstimatedSize int64 `json:"estimated_size"`

	// Size is the in-memory size of the compressed block.
	Size int64 `json:"size"`

	// Ratio is the uncompressed in-memory size divided by Size.
	Ratio float64 `json:"ratio"`

	Compressible   int `json:"compressible"`
	Incompressible int `json:"incompressible"`

	// Rejected counts planned groups the shrink loop dropped entirely.
	Rejected int `json:"rejected"`

	// Groups counts groups per encoding name.
	Groups map[string]int `json:"groups"`
}

// Total returns the summed phase durations.
func (s Statistics) Total() time.Duration {
	return s.ClassifyTime + s.GroupTime + s.CompressTime + s.FinalizeTime
}

// GroupCount returns the number of groups of type t.
func (s Statistics) GroupCount(t colgroup.Type) int {
	return s.Groups[t.String()]
}

func (s Statistics) clone() Statistics {
	s.Groups = maps.Clone(s.Groups)
	return s
}

func (s Statistics) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "size=%d est=%d ratio=%.3f", s.Size, s.EstimatedSize, s.Ratio)
	for _, t := range []colgroup.Type{colgroup.TypeOLE, colgroup.TypeRLE, colgroup.TypeDDC1, colgroup.TypeDDC2, colgroup.TypeUncompressed} {
		fmt.Fprintf(&sb, " %s=%d", t, s.GroupCount(t))
	}
	fmt.Fprintf(&sb, " time=%s", s.Total())
	return sb.String()
}

func groupCounts(groups []colgroup.Group) map[string]int {
	counts := make(map[string]int)
	for _, g := range groups {
		counts[g.Type().String()]++
	}
	return counts
}
