package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-scdior/bridge"
	"github.com/robert-malhotra/go-scdior/dior"
	"github.com/robert-malhotra/go-scdior/internal/config"
	"github.com/robert-malhotra/go-scdior/internal/logging"
	"github.com/robert-malhotra/go-scdior/internal/metrics"
	"github.com/robert-malhotra/go-scdior/internal/storage"
	"github.com/robert-malhotra/go-scdior/internal/tracing"
)

// app carries the state shared by all subcommands. It is populated by the
// root command before any subcommand runs.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Collector
	shutdown tracing.Shutdown
	stager   *storage.Stager

	// runner overrides the process runner of the R bridge.
	runner bridge.Runner
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.logger = logger.With(zap.String("command", cmd.Name()))
	a.metrics = metrics.New()

	a.shutdown, err = tracing.Init(cfg.Tracing, cmd.ErrOrStderr(), version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	store, err := storage.Open(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	a.stager = storage.NewStager(store, "", a.logger)
	return nil
}

// teardown flushes whatever setup started, which may be nothing when setup
// failed part way.
func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
		a.shutdown = nil
	}
	if a.cfg != nil && a.metrics != nil && a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.logger != nil {
		// stderr and stdout cannot be synced on most platforms
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) bridge() *bridge.Bridge {
	opts := []bridge.Option{
		bridge.WithRscript(a.cfg.Bridge.Rscript),
		bridge.WithScriptDir(a.cfg.Bridge.ScriptDir),
		bridge.WithKeepInterchange(a.cfg.Bridge.KeepInterchange),
		bridge.WithLogger(a.logger),
		bridge.WithMetrics(a.metrics),
	}
	if a.runner != nil {
		opts = append(opts, bridge.WithRunner(a.runner))
	}
	return bridge.New(opts...)
}

// convertOptions returns the container options from configuration.
func (a *app) convertOptions() []dior.Option {
	c := a.cfg.Convert
	return []dior.Option{
		dior.WithAssay(c.Assay),
		dior.WithSaveX(c.SaveX),
		dior.WithGraphs(c.Graphs),
		dior.WithCompression(c.Compression),
		dior.WithLogger(a.logger),
		dior.WithMetrics(a.metrics),
	}
}

// fetch stages an input location and returns its local path.
func (a *app) fetch(ctx context.Context, raw string) (string, func(), error) {
	loc, err := storage.ParseLocation(raw)
	if err != nil {
		return "", nil, err
	}
	return a.stager.Fetch(ctx, loc)
}

// target stages an output location. commit publishes the local file.
func (a *app) target(raw string) (string, func(context.Context) error, func(), error) {
	loc, err := storage.ParseLocation(raw)
	if err != nil {
		return "", nil, nil, err
	}
	return a.stager.Target(loc)
}
