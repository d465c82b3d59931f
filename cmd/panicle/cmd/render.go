package cmd

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/MeKo-Tech/panicle/internal/pipeline"
	"github.com/MeKo-Tech/panicle/internal/render"
	"github.com/MeKo-Tech/panicle/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

// renderCmd draws the boxes of one record on its image.
var renderCmd = &cobra.Command{
	Use:   "render <record> <image>",
	Short: "Draw junction boxes on an image",
	Long: `Build the boxes of one junction record with the same options as the labels
command and draw them, together with the junction markers, on the image.
Images of a different size than the record are scaled to the record first.

Examples:
  panicle render records/p1.yaml images/p1.jpg
  panicle render records/p1.yaml images/p1.jpg --oriented --output p1_obb.png
  panicle render records/p1.yaml masks/p1.png --source skeleton --mask masks/p1.png`,
	Args: cobra.ExactArgs(2),
	RunE: runRenderCommand,
}

func runRenderCommand(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	pl, err := pipelineFor(&cfg)
	if err != nil {
		return err
	}
	overlay, err := render.NewOverlay(cfg.Output.BoxColor, cfg.Output.JunctionColor)
	if err != nil {
		return err
	}
	if t, _ := cmd.Flags().GetInt("thickness"); t > 0 {
		overlay.Thickness = t
	}

	rec, err := junction.LoadRecord(args[0])
	if err != nil {
		return err
	}
	img, _, err := utils.LoadImage(args[1])
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	req := pipeline.LabelRequest{Name: name, Record: rec, Mask: img}
	if maskPath, _ := cmd.Flags().GetString("mask"); maskPath != "" {
		mask, _, err := utils.LoadImage(maskPath)
		if err != nil {
			return err
		}
		req.Mask = mask
	}
	res, err := pl.Labels(cmd.Context(), req)
	if err != nil {
		return err
	}

	var bg image.Image = img
	if b := img.Bounds(); b.Dx() != res.Width || b.Dy() != res.Height {
		bg = imaging.Resize(img, res.Width, res.Height, imaging.Lanczos)
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = name + "_overlay.png"
	}
	if err := overlay.Save(bg, render.Scene{HBB: res.HBB, OBB: res.OBB, Junctions: res.Junctions}, out); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d boxes -> %s\n", args[0], len(res.Labels), out)
	return nil
}

func init() {
	addBoxFlags(renderCmd)
	addSkeletonFlags(renderCmd)
	renderCmd.Flags().StringP("output", "o", "", "output image (default: <record>_overlay.png)")
	renderCmd.Flags().String("mask", "", "segmentation mask for --source skeleton (default: the image)")
	renderCmd.Flags().String("box-color", "#FF0000", "box color")
	renderCmd.Flags().String("junction-color", "#00FF00", "junction marker color")
	renderCmd.Flags().Int("thickness", 1, "box line thickness in pixels")

	rootCmd.AddCommand(renderCmd)
}
