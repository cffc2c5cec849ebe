package main

import (
	"fmt"
	"os"

	"github.com/chaos-io/imagetools/composite"
	"github.com/chaos-io/imagetools/detect"
	"github.com/chaos-io/imagetools/raster"
	"github.com/chaos-io/imagetools/session"
	"github.com/chaos-io/imagetools/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var removeCmd = &cobra.Command{
	Use:   "remove <image|url>",
	Short: "Cut out the detected objects and save a transparent PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() {
			_ = log.Sync()
		}()

		out, _ := cmd.Flags().GetString("out")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")

		asset, err := raster.Open(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("open image: %w", err)
		}

		provider, err := detect.FromConfig(&cfg.Detect, log)
		if err != nil {
			return err
		}

		r := session.NewRemover(provider, composite.NewCompositor(&cfg.Composite, log), log)
		if err := r.Upload(asset.Data); err != nil {
			return err
		}
		if err := r.Detect(cmd.Context()); err != nil {
			return err
		}
		for _, id := range exclude {
			if _, err := r.Toggle(id); err != nil {
				return err
			}
		}

		done := util.Trace(log, "composite")
		res, err := r.Composite(cmd.Context())
		done()
		if err != nil {
			return err
		}

		if err := os.WriteFile(out, res.PNG, 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		log.Info("result saved",
			zap.String("path", out),
			zap.Strings("selected", r.Selection().IDs()),
			zap.String("size", raster.FormatBytes(int64(len(res.PNG)))),
			zap.Bool("empty", res.Bounds.Empty()))
		return nil
	},
}

func init() {
	removeCmd.Flags().StringP("out", "o", composite.ResultFilename, "output file")
	removeCmd.Flags().StringSlice("exclude", nil, "object ids to leave out")
	rootCmd.AddCommand(removeCmd)
}
