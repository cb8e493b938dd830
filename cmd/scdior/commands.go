package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-scdior/bridge"
	"github.com/robert-malhotra/go-scdior/dior"
	"github.com/robert-malhotra/go-scdior/hdf5"
	"github.com/robert-malhotra/go-scdior/internal/export"
	"github.com/robert-malhotra/go-scdior/internal/inspect"
	"github.com/robert-malhotra/go-scdior/scdata"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "scdior",
		Short: "Convert single-cell objects through HDF5 interchange containers",
		Long: `scdior writes single-cell objects to HDF5 interchange containers and
converts them to and from R objects (Seurat, SingleCellExperiment) by
running the bundled R programs. Paths may be local or s3://bucket/key.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	root.AddCommand(
		newVersionCmd(),
		newInspectCmd(a),
		newValidateCmd(a),
		newConvertCmd(a),
		newExportCmd(a),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// skips configuration loading
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scdior v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newInspectCmd(a *app) *cobra.Command {
	var format, attr string
	var depth int
	cmd := &cobra.Command{
		Use:   "inspect <container.h5>",
		Short: "Print the group and dataset tree of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := inspect.ParseFormat(format)
			if err != nil {
				return err
			}
			local, release, err := a.fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer release()

			if attr != "" {
				v, err := inspect.Attr(local, attr)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}

			s, err := inspect.File(local, depth)
			if err != nil {
				return err
			}
			s.File = args[0]
			return inspect.Render(cmd.OutOrStdout(), s, f)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "text", "Output format: text, json or yaml")
	cmd.Flags().IntVar(&depth, "depth", inspect.DefaultDepth, "Maximum group depth")
	cmd.Flags().StringVar(&attr, "attr", "", "Print one attribute, e.g. /obs/leiden@origin_dtype")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var assay string
	cmd := &cobra.Command{
		Use:   "validate <container.h5>",
		Short: "Decode a container and report its shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, release, err := a.fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer release()

			obj, name, err := a.readContainer(cmd, local, assay)
			if err != nil {
				return err
			}
			rows, cols := obj.Shape()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: assay %s, %d observations x %d features\n", args[0], name, rows, cols)
			fmt.Fprintf(cmd.OutOrStdout(), "  obs columns: %d, var columns: %d\n", len(obj.Obs.Columns), len(obj.Var.Columns))
			fmt.Fprintf(cmd.OutOrStdout(), "  embeddings: %v\n", scdata.SortedKeys(obj.Obsm))
			fmt.Fprintf(cmd.OutOrStdout(), "  graphs: %v\n", scdata.SortedKeys(obj.Obsp))
			fmt.Fprintf(cmd.OutOrStdout(), "  layers: %v\n", scdata.SortedKeys(obj.Layers))
			return nil
		},
	}
	cmd.Flags().StringVarP(&assay, "assay", "a", "", "Required assay name (default: the one stored in the container)")
	return cmd
}

// readContainer decodes the container at path. An empty assay is taken from
// the container itself, falling back to the configured one.
func (a *app) readContainer(cmd *cobra.Command, path, assay string) (*scdata.Object, string, error) {
	if assay == "" {
		assay = storedAssay(path)
	}
	if assay == "" {
		assay = a.cfg.Convert.Assay
	}
	opts := append(a.convertOptions(), dior.WithAssay(assay))
	obj, err := dior.Read(cmd.Context(), path, opts...)
	return obj, assay, err
}

func storedAssay(path string) string {
	f, err := hdf5.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	name, err := dior.ReadAssay(f.Root())
	if err != nil {
		return ""
	}
	return name
}

func newConvertCmd(a *app) *cobra.Command {
	var (
		kind        string
		assay       string
		raw         bool
		noGraphs    bool
		compression int
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert between containers and R objects",
	}
	cmd.PersistentFlags().StringVarP(&kind, "kind", "t", string(bridge.KindSeurat), "R object kind: seurat or singlecellexperiment")
	cmd.PersistentFlags().StringVarP(&assay, "assay", "a", "", "Assay name (default: convert.assay)")

	// flags override configuration only when given
	apply := func(cmd *cobra.Command) {
		if assay != "" {
			a.cfg.Convert.Assay = assay
		}
		if cmd.Flags().Changed("raw") {
			a.cfg.Convert.SaveX = !raw
		}
		if cmd.Flags().Changed("no-graphs") {
			a.cfg.Convert.Graphs = !noGraphs
		}
		if cmd.Flags().Changed("compression") {
			a.cfg.Convert.Compression = compression
		}
	}

	toRDS := &cobra.Command{
		Use:   "to-rds <container.h5> <out.rds>",
		Short: "Turn a container into an R object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apply(cmd)
			k, err := bridge.ParseKind(kind)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			in, release, err := a.fetch(ctx, args[0])
			if err != nil {
				return err
			}
			defer release()
			obj, stored, err := a.readContainer(cmd, in, assay)
			if err != nil {
				return err
			}

			out, commit, releaseOut, err := a.target(args[1])
			if err != nil {
				return err
			}
			defer releaseOut()

			if err := a.bridge().WriteRDS(ctx, obj, out, k, stored, a.convertOptions()...); err != nil {
				return err
			}
			if err := commit(ctx); err != nil {
				return fmt.Errorf("publish %s: %w", args[1], err)
			}
			a.logger.Info("converted", zap.String("from", args[0]), zap.String("to", args[1]))
			return nil
		},
	}
	toRDS.Flags().BoolVar(&raw, "raw", false, "Write the raw matrix as X and drop layers and varm")
	toRDS.Flags().BoolVar(&noGraphs, "no-graphs", false, "Leave out neighbour graphs")
	toRDS.Flags().IntVar(&compression, "compression", 0, "Deflate level 0-9 for the interchange container")

	fromRDS := &cobra.Command{
		Use:   "from-rds <in.rds> <out.h5>",
		Short: "Turn an R object into a container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			apply(cmd)
			k, err := bridge.ParseKind(kind)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			in, release, err := a.fetch(ctx, args[0])
			if err != nil {
				return err
			}
			defer release()

			obj, err := a.bridge().ReadRDS(ctx, in, k, a.cfg.Convert.Assay, a.convertOptions()...)
			if err != nil {
				return err
			}

			out, commit, releaseOut, err := a.target(args[1])
			if err != nil {
				return err
			}
			defer releaseOut()
			if err := dior.Write(ctx, out, obj, a.convertOptions()...); err != nil {
				return err
			}
			if err := commit(ctx); err != nil {
				return fmt.Errorf("publish %s: %w", args[1], err)
			}
			a.logger.Info("converted", zap.String("from", args[0]), zap.String("to", args[1]))
			return nil
		},
	}
	fromRDS.Flags().IntVar(&compression, "compression", 0, "Deflate level 0-9 for the output container")

	cmd.AddCommand(toRDS, fromRDS)
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		table string
		assay string
		codec string
	)
	cmd := &cobra.Command{
		Use:   "export <container.h5> <out.parquet|out.arrow>",
		Short: "Write the obs or var table of a container as Parquet or Arrow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := export.FormatFor(args[1]); err != nil {
				return err
			}

			in, release, err := a.fetch(ctx, args[0])
			if err != nil {
				return err
			}
			defer release()
			obj, _, err := a.readContainer(cmd, in, assay)
			if err != nil {
				return err
			}

			var frame *scdata.Frame
			switch table {
			case "obs":
				frame = obj.Obs
			case "var":
				frame = obj.Var
			default:
				return fmt.Errorf("unknown table %q, want obs or var", table)
			}

			out, commit, releaseOut, err := a.target(args[1])
			if err != nil {
				return err
			}
			defer releaseOut()
			if err := export.WriteFile(out, frame, export.Options{Compression: codec}); err != nil {
				return err
			}
			if err := commit(ctx); err != nil {
				return fmt.Errorf("publish %s: %w", args[1], err)
			}
			a.logger.Info("exported", zap.String("table", table), zap.Int("rows", frame.NumRows()), zap.String("to", args[1]))
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "obs", "Table to export: obs or var")
	cmd.Flags().StringVarP(&assay, "assay", "a", "", "Required assay name (default: the one stored in the container)")
	cmd.Flags().StringVar(&codec, "compression", "snappy", "Parquet codec: snappy, zstd, gzip or none")
	return cmd
}
