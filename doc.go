// Package cla provides compressed linear algebra over float64 matrices.
//
// A matrix is compressed column-wise: columns are classified by their
// estimated compressibility, correlated columns are co-coded into groups and
// every group picks the smallest of the run-length (RLE), offset-list (OLE)
// and dictionary (DDC1/DDC2) encodings. Columns that do not compress are
// kept in a single uncompressed group.
//
// # Quick Start
//
//	ctx := context.Background()
//	m := matrix.FromRows(data)
//	b, _ := cla.Compress(ctx, m, runtime.NumCPU())
//	fmt.Println(b.Statistics())
//
// # Compressed Operations
//
// Matrix-vector products, transpose-self products, chain products and
// unary aggregates run directly on the column groups:
//
//	y, _ := b.RightMultiply(ctx, v, 4)                      // X %*% v
//	g, _ := b.TransposeSelfMultiply(ctx, cla.TSMMLeft, 4)   // t(X) %*% X
//	s, _ := b.Aggregate(ctx, cla.AggregateOp{Fn: matrix.Sum, Dir: matrix.ColAgg})
//
// Everything else decompresses with a warning and runs on the conventional
// matrix.Block:
//
//	t, _ := b.Transpose(ctx)
//
// # Persistence
//
// Blocks serialize byte-exactly with WriteTo/ReadFrom. The persist package
// stores them in a blobstore.Store with optional lz4 or zstd envelopes.
//
// # Observability
//
// Use WithLogger for structured logging and WithMetrics for metrics; the
// metric package exports them to Prometheus.
package cla
