package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/cla"
	"github.com/hupe1980/cla/colgroup"
	"github.com/hupe1980/cla/matrix"
	"github.com/hupe1980/cla/persist"
)

func newCompressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress <input.csv> <name>",
		Short: "Compress a CSV matrix and store it under name",
		Long: `Compress reads a headerless numeric CSV, plans column groups, encodes
them and stores the block together with a JSON manifest.

Example:
  cla compress data.csv features --compression zstd`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			kind, err := persist.ParseCompression(a.v.GetString("compression"))
			if err != nil {
				return err
			}
			opts, err := a.blockOptions()
			if err != nil {
				return err
			}

			m, err := readCSV(args[0])
			if err != nil {
				return err
			}

			b, err := cla.Compress(ctx, m, a.threads(), opts...)
			if err != nil {
				return err
			}

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			man, err := persist.Save(ctx, store, args[1], b, append(a.persistOptions(), persist.WithCompression(kind))...)
			if err != nil {
				return err
			}

			return a.print(cmd.OutOrStdout(), man, func(w io.Writer) error {
				return writeManifest(w, man)
			})
		},
	}

	cmd.Flags().String("compression", "lz4", "Envelope compression (none, lz4, zstd)")
	cmd.Flags().String("planner", "greedy", "Co-coding planner (greedy, singletons)")
	cmd.Flags().Bool("no-ddc", false, "Disable dictionary (DDC) encodings")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show the manifest of a stored block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			man, err := persist.LoadManifest(ctx, store, args[0], a.persistOptions()...)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), man, func(w io.Writer) error {
				return writeManifest(w, man)
			})
		},
	}
}

func newDecompressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decompress <name> [output.csv]",
		Short: "Decompress a stored block to CSV (stdout when no file is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			b, err := persist.Load(ctx, store, args[0], a.persistOptions()...)
			if err != nil {
				return err
			}
			m, err := b.Decompress(ctx, a.threads())
			if err != nil {
				return err
			}

			if len(args) == 1 || args[1] == "-" {
				return matrix.WriteCSV(cmd.OutOrStdout(), m)
			}

			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			if err := matrix.WriteCSV(f, m); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
}

// aggregateResult is the JSON form of an aggregate.
type aggregateResult struct {
	Fn     string      `json:"fn"`
	Dir    string      `json:"dir"`
	Rows   int         `json:"rows"`
	Cols   int         `json:"cols"`
	Values [][]float64 `json:"values"`
}

func newAggregateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate <name>",
		Short: "Compute sum, sumsq, min or max of a stored block in the compressed domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			fn, err := parseAggFn(a.v.GetString("fn"))
			if err != nil {
				return err
			}
			dir, err := parseDirection(a.v.GetString("dir"))
			if err != nil {
				return err
			}

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			opts, err := a.blockOptions()
			if err != nil {
				return err
			}
			b, err := persist.Load(ctx, store, args[0], append(a.persistOptions(), persist.WithBlockOptions(opts...))...)
			if err != nil {
				return err
			}

			out, err := b.Aggregate(ctx, cla.AggregateOp{Fn: fn, Dir: dir, Threads: a.threads()})
			if err != nil {
				return err
			}

			res := aggregateResult{Fn: fn.String(), Dir: dir.String(), Rows: out.Rows(), Cols: out.Cols()}
			for r := 0; r < out.Rows(); r++ {
				row := make([]float64, out.Cols())
				for c := range row {
					row[c] = out.Get(r, c)
				}
				res.Values = append(res.Values, row)
			}

			return a.print(cmd.OutOrStdout(), res, func(w io.Writer) error {
				return matrix.WriteCSV(w, out)
			})
		},
	}

	cmd.Flags().String("fn", "sum", "Aggregate function (sum, sumsq, min, max)")
	cmd.Flags().String("dir", "full", "Direction (full, row, col)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List stored blocks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			names, err := persist.List(ctx, store, prefix)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), names, func(w io.Writer) error {
				for _, n := range names {
					if _, err := fmt.Fprintln(w, n); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func readCSV(path string) (*matrix.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return matrix.ReadCSV(f)
}

func writeManifest(w io.Writer, m *persist.Manifest) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "name\t%s\n", m.Name)
	fmt.Fprintf(tw, "shape\t%dx%d\n", m.Rows, m.Cols)
	fmt.Fprintf(tw, "non-zeros\t%d\n", m.NonZeros)
	fmt.Fprintf(tw, "compressed\t%t\n", m.Compressed)
	fmt.Fprintf(tw, "envelope\t%s, %d bytes (%d serialized)\n", m.Compression, m.EnvelopeSize, m.SerializedSize)
	if len(m.Groups) > 0 {
		var parts []string
		for _, t := range []colgroup.Type{colgroup.TypeOLE, colgroup.TypeRLE, colgroup.TypeDDC1, colgroup.TypeDDC2, colgroup.TypeUncompressed} {
			if n := m.Groups[t.String()]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s=%d", t, n))
			}
		}
		fmt.Fprintf(tw, "groups\t%s\n", strings.Join(parts, " "))
	}
	if s := m.Statistics; s != nil {
		fmt.Fprintf(tw, "ratio\t%.3f\n", s.Ratio)
		fmt.Fprintf(tw, "compress time\t%s\n", s.Total())
	}
	return tw.Flush()
}

func parseAggFn(s string) (matrix.AggFn, error) {
	for _, fn := range []matrix.AggFn{matrix.Sum, matrix.SumSq, matrix.Min, matrix.Max} {
		if strings.EqualFold(s, fn.String()) {
			return fn, nil
		}
	}
	return 0, fmt.Errorf("unknown aggregate %q", s)
}

func parseDirection(s string) (matrix.Direction, error) {
	for _, d := range []matrix.Direction{matrix.Full, matrix.RowAgg, matrix.ColAgg} {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}
