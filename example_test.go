package cla_test

import (
	"context"
	"fmt"

	"github.com/hupe1980/cla"
	"github.com/hupe1980/cla/matrix"
)

func ExampleCompress() {
	ctx := context.Background()

	rows := make([][]float64, 1000)
	for i := range rows {
		rows[i] = []float64{float64(i % 3), float64(i % 2), 7}
	}
	b, err := cla.Compress(ctx, matrix.FromRows(rows), 2)
	if err != nil {
		panic(err)
	}

	y, _ := b.RightMultiply(ctx, []float64{1, 10, 100}, 2)
	sum, _ := b.Aggregate(ctx, cla.AggregateOp{Fn: matrix.Sum, Dir: matrix.Full})

	fmt.Println(b.IsCompressed(), y[0], y[1], y[2])
	fmt.Println(sum.Get(0, 0))
	// Output:
	// true 700 711 702
	// 8499
}
