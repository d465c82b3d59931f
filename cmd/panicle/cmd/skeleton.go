package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/panicle/internal/geometry"
	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/MeKo-Tech/panicle/internal/skeleton"
	"github.com/MeKo-Tech/panicle/internal/utils"
	"github.com/spf13/cobra"
)

// skeletonCmd extracts junctions from one segmentation mask.
var skeletonCmd = &cobra.Command{
	Use:   "skeleton <record> <mask>",
	Short: "Extract junctions from a segmentation mask",
	Long: `Thin the segmentation mask to a one-pixel skeleton and report the junctions
found on it, in the coordinates of the original image. The record supplies the
main axis and the image size.

Main-axis junctions are kept as they are; the other junctions are merged with
DBSCAN so a thick crossing yields one point.

Examples:
  panicle skeleton records/p1.yaml masks/p1.png
  panicle skeleton records/p1.yaml masks/p1.png --format json --skeleton-out p1_skel.png`,
	Args: cobra.ExactArgs(2),
	RunE: runSkeletonCommand,
}

type skeletonOutput struct {
	Junctions []geometry.Point `json:"junctions"`
	MainAxis  int              `json:"main_axis"`
	HighOrder int              `json:"high_order"`
	Detected  int              `json:"detected"`
}

func runSkeletonCommand(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	rec, err := junction.LoadRecord(args[0])
	if err != nil {
		return err
	}
	set, _, err := rec.Build()
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if !cfg.Boxes.KeepEndGenerating {
		if _, err := set.RemoveEndGenerating(); err != nil {
			slog.Debug("end generating junction kept", "record", args[0], "error", err)
		}
	}

	mask, meta, err := utils.LoadImage(args[1])
	if err != nil {
		return err
	}
	w, h := rec.Image.Width, rec.Image.Height
	if w <= 0 || h <= 0 {
		w, h = meta.Width, meta.Height
	}

	ex, err := skeleton.NewExtractor(cfg.ToSkeletonConfig())
	if err != nil {
		return err
	}
	res, err := ex.Run(mask, w, h, set.MainAxis())
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("skeleton-out"); path != "" {
		if err := utils.SaveImage(path, res.Skeleton.Image()); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch cfg.Output.Format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(skeletonOutput{
			Junctions: res.Junctions,
			MainAxis:  res.MainAxis,
			HighOrder: res.HighOrder,
			Detected:  res.Detected,
		})
	case "csv":
		_, _ = fmt.Fprintln(out, "x,y")
		for _, p := range res.Junctions {
			_, _ = fmt.Fprintf(out, "%g,%g\n", p.X, p.Y)
		}
	default:
		for _, p := range res.Junctions {
			_, _ = fmt.Fprintf(out, "%g %g\n", p.X, p.Y)
		}
		_, _ = fmt.Fprintf(out, "# %d junctions (%d main axis, %d high order, %d detected)\n",
			len(res.Junctions), res.MainAxis, res.HighOrder, res.Detected)
	}
	return nil
}

func init() {
	addSkeletonFlags(skeletonCmd)
	skeletonCmd.Flags().StringP("format", "f", "text", "output format: text, json or csv")
	skeletonCmd.Flags().Bool("keep-end-generating", false, "keep the end generating junction of the main axis")
	skeletonCmd.Flags().String("skeleton-out", "", "save the thinned skeleton as an image")

	rootCmd.AddCommand(skeletonCmd)
}
