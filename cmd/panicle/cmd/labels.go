package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/panicle/internal/batch"
	"github.com/spf13/cobra"
)

// labelsCmd builds label files from junction records.
var labelsCmd = &cobra.Command{
	Use:   "labels [records or directories...]",
	Short: "Build detection label files from junction records",
	Long: `Build one label file per junction record (YAML or JSON). Boxes are placed on
the curated branching junctions, on junctions extracted from the segmentation
mask with the same stem (--source skeleton), or span the edges ending at a
grain (--source grains).

Each label line is "class cx cy w h" for horizontal boxes or
"class x1 y1 x2 y2 x3 y3 x4 y4" for oriented boxes, normalized to [0, 1].

Examples:
  panicle labels records/ --output-dir labels/
  panicle labels records/ --oriented --angle-method vertex-on-line
  panicle labels records/ --source skeleton --mask-dir masks/ --workers 8
  panicle labels records/p1.yaml --overlay-dir overlays/ --image-dir images/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLabelsCommand,
}

func runLabelsCommand(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	bc, err := batchConfig(cmd, &cfg)
	if err != nil {
		return err
	}

	stop, err := startMetrics(cfg.Metrics.Addr)
	if err != nil {
		return err
	}
	defer stop()

	res, err := batch.RunLabels(cmd.Context(), args, bc)
	if err != nil {
		return err
	}
	if err := res.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		res.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d records failed", res.Failed, len(res.Items))
	}
	return nil
}

func init() {
	addBoxFlags(labelsCmd)
	addSkeletonFlags(labelsCmd)
	addBatchFlags(labelsCmd)
	addOutputFlags(labelsCmd)
	labelsCmd.Flags().StringP("output-dir", "d", "", "directory for label files (default: next to each record)")
	labelsCmd.Flags().String("mask-dir", "", "directory with segmentation masks (default: next to each record)")
	labelsCmd.Flags().String("image-dir", "", "directory with source images used as overlay background")
	labelsCmd.Flags().String("overlay-dir", "", "write box overlays to this directory")
	labelsCmd.Flags().String("box-color", "#FF0000", "overlay box color")
	labelsCmd.Flags().String("junction-color", "#00FF00", "overlay junction marker color")

	rootCmd.AddCommand(labelsCmd)
}
