// Package bridge converts between objects and R data files by running the
// R side of the converter as a subprocess. The two sides exchange data
// through an interchange container written and read by package dior.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-scdior/dior"
	"github.com/robert-malhotra/go-scdior/internal/metrics"
	"github.com/robert-malhotra/go-scdior/scdata"
)

// Kind selects the R object class stored in an .rds file.
type Kind string

const (
	KindSeurat               Kind = "seurat"
	KindSingleCellExperiment Kind = "singlecellexperiment"
)

// ParseKind validates an object kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindSeurat, KindSingleCellExperiment:
		return k, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownObjectKind, s)
}

// R programs shipped alongside the converter.
const (
	scriptToRDS   = "diorC.R"
	scriptFromRDS = "diopyR.R"
)

var tracer = otel.Tracer("github.com/robert-malhotra/go-scdior/bridge")

// Bridge runs conversions through the R side.
type Bridge struct {
	rscript   string
	scriptDir string
	keep      bool
	runner    Runner
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRscript sets the R interpreter. The default is "Rscript" on PATH.
func WithRscript(path string) Option {
	return func(b *Bridge) {
		if path != "" {
			b.rscript = path
		}
	}
}

// WithScriptDir sets the directory holding the R programs.
func WithScriptDir(dir string) Option {
	return func(b *Bridge) { b.scriptDir = dir }
}

// WithKeepInterchange leaves interchange containers on disk.
func WithKeepInterchange(keep bool) Option {
	return func(b *Bridge) { b.keep = keep }
}

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(b *Bridge) {
		if r != nil {
			b.runner = r
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(b *Bridge) { b.metrics = c }
}

// New returns a bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		rscript:   "Rscript",
		scriptDir: "R",
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.runner == nil {
		b.runner = ExecRunner{Logger: b.logger}
	}
	return b
}

// InterchangePath derives the interchange container path of an R data
// file: sample.rds becomes sample_tmp.h5.
func InterchangePath(p string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + "_tmp.h5"
}

// WriteRDS saves obj to rdsPath as an R object of the given kind. The
// object is first written to the interchange container, which the R
// program then turns into rdsPath.
func (b *Bridge) WriteRDS(ctx context.Context, obj *scdata.Object, rdsPath string, kind Kind, assay string, opts ...dior.Option) (err error) {
	ctx, span := tracer.Start(ctx, "bridge.WriteRDS", trace.WithAttributes(
		attribute.String("scdior.rds", rdsPath),
		attribute.String("scdior.kind", string(kind)),
	))
	timer := b.metrics.Start(metrics.DirectionToRDS)
	defer func() {
		timer.Stop(err)
		endSpan(span, err)
	}()

	if rdsPath == "" {
		return dior.ErrMissingFile
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	if assay == "" {
		assay = dior.DefaultAssay
	}

	h5 := InterchangePath(rdsPath)
	opts = append(opts, dior.WithAssay(assay), dior.WithLogger(b.logger), dior.WithMetrics(b.metrics))
	if err := dior.Write(ctx, h5, obj, opts...); err != nil {
		return fmt.Errorf("writing interchange container: %w", err)
	}

	if err := b.run(ctx, scriptToRDS, "-r", h5, "-t", string(kind), "-a", assay); err != nil {
		b.logger.Error("R conversion failed, interchange container kept",
			zap.String("interchange", h5), zap.Error(err))
		return err
	}
	b.cleanup(h5)
	b.logger.Info("rds written", zap.String("path", rdsPath), zap.String("kind", string(kind)))
	return nil
}

// ReadRDS loads the R object of the given kind stored in rdsPath. The R
// program exports it to the interchange container, which is then decoded
// with the requested assay.
func (b *Bridge) ReadRDS(ctx context.Context, rdsPath string, kind Kind, assay string, opts ...dior.Option) (obj *scdata.Object, err error) {
	ctx, span := tracer.Start(ctx, "bridge.ReadRDS", trace.WithAttributes(
		attribute.String("scdior.rds", rdsPath),
		attribute.String("scdior.kind", string(kind)),
	))
	timer := b.metrics.Start(metrics.DirectionFrom)
	defer func() {
		timer.Stop(err)
		endSpan(span, err)
	}()

	if rdsPath == "" {
		return nil, dior.ErrMissingFile
	}
	if _, err := os.Stat(rdsPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", dior.ErrMissingFile, rdsPath)
		}
		return nil, err
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if assay == "" {
		assay = dior.DefaultAssay
	}

	if err := b.run(ctx, scriptFromRDS, "-r", rdsPath, "-t", string(kind)); err != nil {
		return nil, err
	}

	h5 := InterchangePath(rdsPath)
	opts = append(opts, dior.WithAssay(assay), dior.WithLogger(b.logger), dior.WithMetrics(b.metrics))
	obj, err = dior.Read(ctx, h5, opts...)
	if err != nil {
		return nil, fmt.Errorf("reading interchange container: %w", err)
	}
	b.cleanup(h5)
	return obj, nil
}

func (b *Bridge) run(ctx context.Context, script string, args ...string) error {
	argv := append([]string{filepath.Join(b.scriptDir, script)}, args...)
	b.logger.Debug("running R conversion", zap.String("rscript", b.rscript), zap.Strings("args", argv))
	return b.runner.Run(ctx, b.rscript, argv...)
}

func (b *Bridge) cleanup(h5 string) {
	if b.keep {
		return
	}
	if err := os.Remove(h5); err != nil && !errors.Is(err, fs.ErrNotExist) {
		b.logger.Warn("removing interchange container", zap.String("path", h5), zap.Error(err))
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
