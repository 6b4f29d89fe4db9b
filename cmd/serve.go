package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/korvaus-labs/korvaus-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP for the dashboard layer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		pipe, err := buildPipeline()
		if err != nil {
			return eris.Wrap(err, "serve: build pipeline")
		}

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.Int("sources", len(cfg.Sources)),
		)

		srv := server.New(cfg, pipe)
		if err := srv.ListenAndServe(ctx); err != nil {
			return eris.Wrap(err, "serve")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
