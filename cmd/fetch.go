package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contours-admin/internal/config"
	"github.com/sells-group/contours-admin/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download source archives and reference files",
	Long:  "Downloads the configured shapefile archives, installs their datasets into sources.dir and downloads the reference JSON files into reference.dir.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, err := newInstaller(cfg).Run(ctx)
		if err != nil {
			return err
		}
		for _, src := range report.Datasets {
			zap.L().Info("dataset installed", zap.Stringer("source", src))
		}
		return nil
	},
}

func newInstaller(c *config.Config) *fetcher.Installer {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	router := fetcher.NewRouter(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  c.Fetch.UserAgent,
			Timeout:    timeout,
			MaxRetries: c.Fetch.MaxRetries,
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
	)
	return fetcher.NewInstaller(router, c)
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
