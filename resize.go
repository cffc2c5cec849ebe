package main

import (
	"fmt"
	"os"

	"github.com/chaos-io/imagetools/raster"
	"github.com/chaos-io/imagetools/resizer"
	"github.com/chaos-io/imagetools/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resizeCmd = &cobra.Command{
	Use:   "resize <image|url>",
	Short: "Resize and recompress an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() {
			_ = log.Sync()
		}()

		flags := cmd.Flags()
		lock, _ := flags.GetBool("lock")
		out, _ := flags.GetString("out")
		quality := cfg.Resize.DefaultQuality
		if flags.Changed("quality") {
			quality, _ = flags.GetInt("quality")
		}

		asset, err := raster.Open(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("open image: %w", err)
		}

		engine := resizer.NewEngine(&cfg.Resize, log)
		dims, err := resizer.NewDimensions(asset.Width(), asset.Height())
		if err != nil {
			return err
		}
		dims.SetMaxPixels(engine.MaxPixels())
		dims.SetLocked(lock)
		if flags.Changed("width") {
			w, _ := flags.GetInt("width")
			if err := dims.SetWidth(w); err != nil {
				return err
			}
		}
		if flags.Changed("height") {
			h, _ := flags.GetInt("height")
			if err := dims.SetHeight(h); err != nil {
				return err
			}
		}

		w, h := dims.Size()
		spec := resizer.Spec{Width: w, Height: h, Quality: quality, LockAspect: lock}

		done := util.Trace(log, "resize")
		res, err := engine.Resize(cmd.Context(), asset.Image, spec)
		done()
		if err != nil {
			return err
		}

		if out == "" {
			out = res.Filename()
		}
		if err := os.WriteFile(out, res.Data, 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		log.Info("result saved",
			zap.String("path", out),
			zap.String("dimensions", fmt.Sprintf("%dx%d -> %dx%d", asset.Width(), asset.Height(), res.Width, res.Height)),
			zap.String("size", fmt.Sprintf("%s -> %s", raster.FormatBytes(asset.Size()), raster.FormatBytes(res.Size))),
			zap.Int("quality", res.Quality))
		return nil
	},
}

func init() {
	resizeCmd.Flags().Int("width", 0, "target width")
	resizeCmd.Flags().Int("height", 0, "target height")
	resizeCmd.Flags().IntP("quality", "q", 90, "JPEG quality 0-100")
	resizeCmd.Flags().Bool("lock", true, "keep the aspect ratio")
	resizeCmd.Flags().StringP("out", "o", "", "output file (default resized-image.jpg)")
	rootCmd.AddCommand(resizeCmd)
}
