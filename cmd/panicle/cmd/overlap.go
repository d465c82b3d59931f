package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/panicle/internal/batch"
	"github.com/MeKo-Tech/panicle/internal/evaluate"
	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/spf13/cobra"
)

// overlapCmd measures how much fixed-size junction boxes overlap.
var overlapCmd = &cobra.Command{
	Use:   "overlap [records or directories...]",
	Short: "Measure the overlap degree of junction boxes",
	Long: `Place a box of each requested size on every branching junction and count the
boxes whose shared area with the box of the nearest junction reaches
--percentage percent of one box. The degree is the overlapping share over all
records, which helps choosing a box size.

Examples:
  panicle overlap records/
  panicle overlap records/ --sizes 16,26,36 --percentage 50`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOverlapCommand,
}

type overlapRow struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Boxes       int     `json:"boxes"`
	Overlapping int     `json:"overlapping"`
	Degree      float64 `json:"degree"`
}

func runOverlapCommand(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	bc, err := batchConfig(cmd, &cfg)
	if err != nil {
		return err
	}
	files, err := batch.DiscoverRecords(args, bc)
	if err != nil {
		return err
	}

	var sizes [][2]int
	if squares, _ := cmd.Flags().GetIntSlice("sizes"); len(squares) > 0 {
		for _, s := range squares {
			sizes = append(sizes, [2]int{s, s})
		}
	} else {
		sizes = append(sizes, [2]int{int(cfg.Boxes.Width), int(cfg.Boxes.Height)})
	}

	sets := make([]*junction.Set, 0, len(files))
	for _, f := range files {
		set, err := loadJunctionSet(f, cfg.Boxes.KeepEndGenerating)
		if err != nil {
			return err
		}
		sets = append(sets, set)
	}

	rows := make([]overlapRow, 0, len(sizes))
	for _, size := range sizes {
		w, h := size[0], size[1]
		var total evaluate.Overlap
		for _, set := range sets {
			o, err := evaluate.OverlapDegree(set.Branching(), w, h, cfg.Evaluate.OverlapPercentage)
			if err != nil {
				return err
			}
			total = total.Add(o)
		}
		rows = append(rows, overlapRow{
			Width: w, Height: h,
			Boxes: total.Boxes, Overlapping: total.Overlapping,
			Degree: total.Degree(),
		})
	}

	out := cmd.OutOrStdout()
	switch cfg.Output.Format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv":
		_, _ = fmt.Fprintln(out, "width,height,boxes,overlapping,degree")
		for _, r := range rows {
			_, _ = fmt.Fprintf(out, "%d,%d,%d,%d,%.4f\n", r.Width, r.Height, r.Boxes, r.Overlapping, r.Degree)
		}
	default:
		for _, r := range rows {
			_, _ = fmt.Fprintf(out, "%dx%d: %d of %d boxes overlap (%.2f%%)\n",
				r.Width, r.Height, r.Overlapping, r.Boxes, r.Degree)
		}
	}
	return nil
}

// loadJunctionSet reads a record and drops the end generating point unless
// it should be kept.
func loadJunctionSet(path string, keepEndGenerating bool) (*junction.Set, error) {
	rec, err := junction.LoadRecord(path)
	if err != nil {
		return nil, err
	}
	set, _, err := rec.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !keepEndGenerating {
		if _, err := set.RemoveEndGenerating(); err != nil {
			slog.Debug("end generating junction kept", "record", path, "error", err)
		}
	}
	return set, nil
}

func init() {
	overlapCmd.Flags().Float64("box-width", 26, "box width in pixels")
	overlapCmd.Flags().Float64("box-height", 26, "box height in pixels")
	overlapCmd.Flags().IntSlice("sizes", nil, "square box sizes to compare (overrides --box-width/--box-height)")
	overlapCmd.Flags().Float64("percentage", 20, "shared area in percent of one box from which boxes overlap")
	overlapCmd.Flags().Bool("keep-end-generating", false, "keep the end generating junction of the main axis")
	overlapCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	overlapCmd.Flags().StringSlice("include", nil, "include patterns (e.g. '*.yaml')")
	overlapCmd.Flags().StringSlice("exclude", nil, "exclude patterns")
	overlapCmd.Flags().StringP("format", "f", "text", "output format: text, json or csv")

	rootCmd.AddCommand(overlapCmd)
}
