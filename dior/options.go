package dior

import (
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-scdior/hdf5"
	"github.com/robert-malhotra/go-scdior/internal/metrics"
)

// Option configures Write and Read.
type Option func(*options)

type options struct {
	assay       string
	saveX       bool
	graphs      bool
	compression int
	logger      *zap.Logger
	metrics     *metrics.Collector
}

func newOptions(opts []Option) *options {
	o := &options{
		assay:  DefaultAssay,
		saveX:  true,
		graphs: true,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithAssay sets the assay written to, or required of, the container.
// The default is RNA.
func WithAssay(name string) Option {
	return func(o *options) {
		if name != "" {
			o.assay = name
		}
	}
}

// WithSaveX controls whether Write keeps the processed matrix next to the
// raw one. With false an object that has a raw matrix is written with the
// raw matrix as X, and layers and varm are left out. The default is true.
func WithSaveX(save bool) Option {
	return func(o *options) {
		o.saveX = save
	}
}

// WithGraphs controls whether Write stores the neighbour graphs.
// The default is true.
func WithGraphs(save bool) Option {
	return func(o *options) {
		o.graphs = save
	}
}

// WithCompression enables shuffle and deflate at the given level (1-9) on
// the bulk datasets Write creates. 0 disables compression.
func WithCompression(level int) Option {
	return func(o *options) {
		if level >= 0 && level <= 9 {
			o.compression = level
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records conversions on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) {
		o.metrics = c
	}
}

func (o *options) datasetOptions() []hdf5.DatasetOption {
	if o.compression == 0 {
		return nil
	}
	return []hdf5.DatasetOption{hdf5.WithShuffle(), hdf5.WithCompression(o.compression)}
}
