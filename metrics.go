package cla

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the metric
// package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordCompress is called after each compression.
	// ratio is the achieved compression ratio, zero on failure.
	RecordCompress(duration time.Duration, ratio float64, err error)

	// RecordDecompress is called after each decompression.
	RecordDecompress(duration time.Duration, err error)

	// RecordOp is called after each compressed-domain operation
	// (e.g. "rmm", "lmm", "tsmm", "mmchain", "uagg").
	RecordOp(op string, duration time.Duration, err error)

	// RecordFallback is called when an operation decompresses its operand
	// and runs conventionally.
	RecordFallback(op string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCompress(time.Duration, float64, error) {}
func (NoopMetricsCollector) RecordDecompress(time.Duration, error)        {}
func (NoopMetricsCollector) RecordOp(string, time.Duration, error)        {}
func (NoopMetricsCollector) RecordFallback(string)                        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CompressCount      atomic.Int64
	CompressErrors     atomic.Int64
	CompressTotalNanos atomic.Int64
	DecompressCount    atomic.Int64
	DecompressErrors   atomic.Int64
	OpCount            atomic.Int64
	OpErrors           atomic.Int64
	OpTotalNanos       atomic.Int64
	FallbackCount      atomic.Int64

	lastRatio atomic.Uint64

	mu        sync.Mutex
	fallbacks map[string]int64
}

// RecordCompress implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompress(duration time.Duration, ratio float64, err error) {
	b.CompressCount.Add(1)
	b.CompressTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CompressErrors.Add(1)
		return
	}
	b.lastRatio.Store(math.Float64bits(ratio))
}

// RecordDecompress implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecompress(_ time.Duration, err error) {
	b.DecompressCount.Add(1)
	if err != nil {
		b.DecompressErrors.Add(1)
	}
}

// RecordOp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOp(_ string, duration time.Duration, err error) {
	b.OpCount.Add(1)
	b.OpTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.OpErrors.Add(1)
	}
}

// RecordFallback implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFallback(op string) {
	b.FallbackCount.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fallbacks == nil {
		b.fallbacks = make(map[string]int64)
	}
	b.fallbacks[op]++
}

// LastRatio returns the ratio of the most recent successful compression.
func (b *BasicMetricsCollector) LastRatio() float64 {
	return math.Float64frombits(b.lastRatio.Load())
}

// Fallbacks returns a snapshot of fallback counts per operation.
func (b *BasicMetricsCollector) Fallbacks() map[string]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int64, len(b.fallbacks))
	for k, v := range b.fallbacks {
		out[k] = v
	}
	return out
}

// GetStats returns a snapshot of the current metrics.
func (b *BasicMetricsCollector) GetStats() MetricsStats {
	stats := MetricsStats{
		CompressCount:   b.CompressCount.Load(),
		CompressErrors:  b.CompressErrors.Load(),
		DecompressCount: b.DecompressCount.Load(),
		OpCount:         b.OpCount.Load(),
		OpErrors:        b.OpErrors.Load(),
		FallbackCount:   b.FallbackCount.Load(),
		LastRatio:       b.LastRatio(),
	}
	if stats.CompressCount > 0 {
		stats.AvgCompressLatency = time.Duration(b.CompressTotalNanos.Load() / stats.CompressCount)
	}
	if stats.OpCount > 0 {
		stats.AvgOpLatency = time.Duration(b.OpTotalNanos.Load() / stats.OpCount)
	}
	return stats
}

// MetricsStats is a snapshot of BasicMetricsCollector.
type MetricsStats struct {
	CompressCount      int64
	CompressErrors     int64
	DecompressCount    int64
	OpCount            int64
	OpErrors           int64
	FallbackCount      int64
	LastRatio          float64
	AvgCompressLatency time.Duration
	AvgOpLatency       time.Duration
}
