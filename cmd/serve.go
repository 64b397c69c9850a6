package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/contours-admin/internal/kvstore"
	"github.com/sells-group/contours-admin/internal/metrics"
	"github.com/sells-group/contours-admin/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve built features over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opener, err := kvstore.New(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer opener.Close() //nolint:errcheck

		srv, err := server.New(opener, cfg.Build.DistDir, cfg.Server, metrics.NewServer())
		if err != nil {
			return err
		}
		defer srv.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		return server.Run(ctx, fmt.Sprintf(":%d", port), srv.Handler())
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
