package metric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cla"
	"github.com/hupe1980/cla/testutil"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	c.RecordCompress(time.Millisecond, 2.5, nil)
	c.RecordCompress(time.Millisecond, 0, errors.New("boom"))
	c.RecordOp("rmm", time.Microsecond, nil)
	c.RecordFallback("transpose")
	c.RecordFallback("transpose")

	assert.Equal(t, 2.0, promtest.ToFloat64(c.fallbacks.WithLabelValues("transpose")))
	assert.Equal(t, 3, promtest.CollectAndCount(c.opLatency))

	_, err = NewPrometheusCollector(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestPrometheusCollector_WithBlock(t *testing.T) {
	ctx := context.Background()
	c, err := NewPrometheusCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	m := testutil.NewRNG(1).LowCardinality(200, 3, 3)
	b, err := cla.Compress(ctx, m, 2, cla.WithMetrics(c))
	require.NoError(t, err)
	_, err = b.Transpose(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(c.fallbacks.WithLabelValues("transpose")))
	assert.Equal(t, 1, promtest.CollectAndCount(c.ratio))
}
