package cla

import (
	"fmt"

	"github.com/hupe1980/cla/cocode"
	"github.com/hupe1980/cla/estimate"
	"github.com/hupe1980/cla/resource"
)

// DefaultParallelAggThreshold is the serialized size above which unary
// aggregates run in parallel.
const DefaultParallelAggThreshold = 16 * 1024 * 1024

// Config holds the compression and execution settings of a block.
type Config struct {
	// AllowDictionary enables the DDC1/DDC2 encodings.
	AllowDictionary bool

	// InvestigateEstimates logs estimated versus actual group sizes.
	InvestigateEstimates bool

	// Estimator builds the size estimator over the transposed input.
	Estimator estimate.Factory

	// Planner groups compressible columns.
	Planner cocode.Planner

	// ParallelAggThreshold is the on-disk size above which aggregates fork.
	ParallelAggThreshold int64

	Logger    *Logger
	Metrics   MetricsCollector
	Resources *resource.Controller
}

// Option configures compression behavior.
type Option func(*Config)

// DefaultConfig returns the default settings: dictionary encoding enabled,
// exact estimation and greedy co-coding.
func DefaultConfig() Config {
	return Config{
		AllowDictionary:      true,
		Estimator:            estimate.NewExact,
		Planner:              cocode.Greedy{BinSize: cocode.DefaultBinSize},
		ParallelAggThreshold: DefaultParallelAggThreshold,
		Logger:               NoopLogger(),
		Metrics:              NoopMetricsCollector{},
	}
}

func newConfig(opts []Option) (Config, error) {
	cfg := DefaultConfig()
	for _, fn := range opts {
		fn(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Estimator == nil {
		return fmt.Errorf("cla: estimator factory is nil")
	}
	if c.Planner == nil {
		return fmt.Errorf("cla: planner is nil")
	}
	if c.ParallelAggThreshold < 0 {
		return fmt.Errorf("cla: negative parallel aggregate threshold %d", c.ParallelAggThreshold)
	}
	if c.Logger == nil {
		c.Logger = NoopLogger()
	}
	if c.Metrics == nil {
		c.Metrics = NoopMetricsCollector{}
	}
	return nil
}

// WithDictionaryEncoding enables or disables the DDC encodings.
func WithDictionaryEncoding(enabled bool) Option {
	return func(c *Config) {
		c.AllowDictionary = enabled
	}
}

// WithInvestigateEstimates logs each group's estimated and exact size at
// info level.
func WithInvestigateEstimates(enabled bool) Option {
	return func(c *Config) {
		c.InvestigateEstimates = enabled
	}
}

// WithEstimator replaces the size estimator factory.
func WithEstimator(f estimate.Factory) Option {
	return func(c *Config) {
		c.Estimator = f
	}
}

// WithPlanner replaces the co-coding planner.
//
// Example, compressing every column on its own:
//
//	b, err := cla.Compress(ctx, m, 4, cla.WithPlanner(cocode.Singletons))
func WithPlanner(p cocode.Planner) Option {
	return func(c *Config) {
		c.Planner = p
	}
}

// WithLogger configures structured logging.
// Pass nil to discard log output.
func WithLogger(l *Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetrics configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &cla.BasicMetricsCollector{}
//	b, _ := cla.Compress(ctx, m, 4, cla.WithMetrics(metrics))
//	fmt.Println(metrics.GetStats().LastRatio)
func WithMetrics(m MetricsCollector) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithParallelAggThreshold sets the serialized size in bytes above which
// multi-threaded aggregates fork.
func WithParallelAggThreshold(n int64) Option {
	return func(c *Config) {
		c.ParallelAggThreshold = n
	}
}

// WithResourceController bounds compression memory and concurrent jobs.
func WithResourceController(rc *resource.Controller) Option {
	return func(c *Config) {
		c.Resources = rc
	}
}
