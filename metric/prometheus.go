// Package metric exports cla operational metrics to Prometheus.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/cla"
)

// PrometheusCollector implements cla.MetricsCollector.
type PrometheusCollector struct {
	opLatency *prometheus.HistogramVec
	ratio     prometheus.Histogram
	fallbacks *prometheus.CounterVec
}

var _ cla.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the collector and registers its metrics
// on reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cla_operation_latency_seconds",
			Help:    "Latency of compression, decompression and compressed operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ratio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cla_compression_ratio",
			Help:    "Achieved compression ratio of successful compressions",
			Buckets: []float64{0.5, 1, 1.5, 2, 3, 5, 10, 20, 50, 100},
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cla_decompress_fallbacks_total",
			Help: "Operations that decompressed their operand",
		}, []string{"op"}),
	}
	for _, col := range []prometheus.Collector{c.opLatency, c.ratio, c.fallbacks} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCompress implements cla.MetricsCollector.
func (c *PrometheusCollector) RecordCompress(d time.Duration, ratio float64, err error) {
	c.opLatency.WithLabelValues("compress", status(err)).Observe(d.Seconds())
	if err == nil {
		c.ratio.Observe(ratio)
	}
}

// RecordDecompress implements cla.MetricsCollector.
func (c *PrometheusCollector) RecordDecompress(d time.Duration, err error) {
	c.opLatency.WithLabelValues("decompress", status(err)).Observe(d.Seconds())
}

// RecordOp implements cla.MetricsCollector.
func (c *PrometheusCollector) RecordOp(op string, d time.Duration, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
}

// RecordFallback implements cla.MetricsCollector.
func (c *PrometheusCollector) RecordFallback(op string) {
	c.fallbacks.WithLabelValues(op).Inc()
}
