package persist

import (
	"github.com/hupe1980/cla"
	"github.com/hupe1980/cla/codec"
	"github.com/hupe1980/cla/resource"
)

// Options configures Save and Load.
type Options struct {
	Compression  Compression
	Codec        codec.Codec
	Resources    *resource.Controller
	BlockOptions []cla.Option
	Logger       *cla.Logger
}

// Option configures persistence.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Compression: CompressionLZ4,
		Codec:       codec.Default,
		Logger:      cla.NoopLogger(),
	}
}

// WithCompression selects the envelope compression.
func WithCompression(c Compression) Option {
	return func(o *Options) {
		o.Compression = c
	}
}

// WithCodec selects the manifest codec.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) {
		if c != nil {
			o.Codec = c
		}
	}
}

// WithResourceController throttles blob IO and accounts decode memory.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *Options) {
		o.Resources = rc
	}
}

// WithBlockOptions passes options to blocks built by Load.
func WithBlockOptions(opts ...cla.Option) Option {
	return func(o *Options) {
		o.BlockOptions = append(o.BlockOptions, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *cla.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
