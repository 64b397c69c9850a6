package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contours-admin/internal/config"
	"github.com/sells-group/contours-admin/internal/kvstore"
	"github.com/sells-group/contours-admin/internal/metrics"
	"github.com/sells-group/contours-admin/internal/output"
	"github.com/sells-group/contours-admin/internal/pipeline"
	"github.com/sells-group/contours-admin/internal/reference"
)

var (
	buildIntervals   []int
	buildLayers      []string
	buildSimplifier  string
	buildMetricsFile string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build contour files and key-value stores",
	Example: `  contours build
  contours build --intervals 1000,100 --layers communes,regions
  contours build --metrics-file /var/lib/node_exporter/contours.prom`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyBuildFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		_, err := runBuild(ctx, cfg)
		return err
	},
}

// applyBuildFlags overrides configuration with the flags set on cmd.
func applyBuildFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("intervals") {
		c.Build.Intervals = buildIntervals
	}
	if flags.Changed("layers") {
		c.Build.Layers = buildLayers
	}
	if flags.Changed("simplifier") {
		c.Build.Simplifier = buildSimplifier
	}
	if flags.Changed("metrics-file") {
		c.Build.MetricsFile = buildMetricsFile
	}
}

// runBuild loads the reference data, runs the pipeline and exports build
// metrics.
func runBuild(ctx context.Context, c *config.Config) (*output.Manifest, error) {
	ref, err := reference.Load(c.Reference.Dir)
	if err != nil {
		return nil, err
	}

	opener, err := kvstore.New(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	defer opener.Close() //nolint:errcheck

	m := metrics.NewBuild()
	p, err := pipeline.New(c, ref, opener, m)
	if err != nil {
		return nil, err
	}

	manifest, err := p.Run(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "build")
	}

	if c.Build.MetricsFile != "" {
		if err := m.WriteTextfile(c.Build.MetricsFile); err != nil {
			return nil, err
		}
		zap.L().Info("metrics written", zap.String("file", c.Build.MetricsFile))
	}
	return manifest, nil
}

func init() {
	buildCmd.Flags().IntSliceVar(&buildIntervals, "intervals", nil, "simplification intervals in meters (default from config)")
	buildCmd.Flags().StringSliceVar(&buildLayers, "layers", nil, "layers to build (default all)")
	buildCmd.Flags().StringVar(&buildSimplifier, "simplifier", "", "topology or visvalingam (default from config)")
	buildCmd.Flags().StringVar(&buildMetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	rootCmd.AddCommand(buildCmd)
}
