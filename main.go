package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chaos-io/imagetools/config"
	"github.com/chaos-io/imagetools/logger"
	"github.com/chaos-io/imagetools/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "imagetools",
	Short: "Background remover and image resizer",
	Long: strings.TrimSpace(`
Remove backgrounds by compositing detected object masks, and resize/recompress images
with an aspect lock. Run "imagetools serve" for the HTTP API or use the file commands.
`),
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file")
	server.Version = version
}

// setup 加载配置并创建日志
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
