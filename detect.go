package main

import (
	"fmt"

	"github.com/chaos-io/imagetools/detect"
	"github.com/chaos-io/imagetools/raster"
	"github.com/chaos-io/imagetools/util"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image|url>",
	Short: "List the objects the detect provider finds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() {
			_ = log.Sync()
		}()

		asset, err := raster.Open(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("open image: %w", err)
		}

		provider, err := detect.FromConfig(&cfg.Detect, log)
		if err != nil {
			return err
		}

		done := util.Trace(log, "detect objects")
		objects, err := provider.Detect(cmd.Context(), asset.Data)
		done()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, o := range objects {
			mask := "invalid mask"
			if m, err := raster.Decode(o.Mask); err == nil {
				mask = fmt.Sprintf("mask %dx%d", m.Width(), m.Height())
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", o.ID, o.Name, mask)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
