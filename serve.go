package main

import (
	"os/signal"
	"syscall"

	"github.com/chaos-io/imagetools/detect"
	"github.com/chaos-io/imagetools/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() {
			_ = log.Sync()
		}()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Port = addr
		}
		gin.SetMode(cfg.Server.Mode)

		provider, err := detect.FromConfig(&cfg.Detect, log)
		if err != nil {
			return err
		}
		log.Info("detect provider ready",
			zap.String("provider", cfg.Detect.Provider),
			zap.Duration("timeout", cfg.Detect.Timeout))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return server.New(cfg, provider, log).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address, overrides server.port")
	rootCmd.AddCommand(serveCmd)
}
