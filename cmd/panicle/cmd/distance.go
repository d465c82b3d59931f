package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/panicle/internal/batch"
	"github.com/MeKo-Tech/panicle/internal/evaluate"
	"github.com/MeKo-Tech/panicle/internal/geometry"
	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/spf13/cobra"
)

// distanceCmd summarizes the spacing of high-order junctions.
var distanceCmd = &cobra.Command{
	Use:   "distance [records or directories...]",
	Short: "Summarize nearest-neighbour distances between junctions",
	Long: `Pool the distance of every secondary, tertiary and quaternary junction to its
nearest neighbour of the same record, then print count, mean, standard
deviation and range together with the most populated histogram bin. Bins
follow the rice rule. Records with fewer than two such junctions are skipped.

Examples:
  panicle distance records/
  panicle distance records/ --histogram --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDistanceCommand,
}

func runDistanceCommand(cmd *cobra.Command, args []string) error {
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

	var pooled []float64
	for _, f := range files {
		set, err := loadJunctionSet(f, true)
		if err != nil {
			return err
		}
		points := set.Collect(junction.Secondary, junction.Tertiary, junction.Quaternary)
		if len(points) < 2 {
			slog.Debug("record skipped", "record", f, "junctions", len(points))
			continue
		}
		d, err := geometry.NearestNeighborDistances(points)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		pooled = append(pooled, d...)
	}
	if len(pooled) == 0 {
		return fmt.Errorf("no record has two or more high-order junctions")
	}

	stats, err := evaluate.SummarizeDistances(pooled)
	if err != nil {
		return err
	}
	showHist, _ := cmd.Flags().GetBool("histogram")

	out := cmd.OutOrStdout()
	switch cfg.Output.Format {
	case "json":
		if !showHist {
			stats.Histogram = evaluate.Histogram{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case "csv":
		_, _ = fmt.Fprintln(out, "count,mean,std_dev,min,max")
		_, _ = fmt.Fprintf(out, "%d,%.4f,%.4f,%.4f,%.4f\n", stats.Count, stats.Mean, stats.StdDev, stats.Min, stats.Max)
		if showHist {
			_, _ = fmt.Fprintln(out, "bin_start,bin_end,count")
			for i, c := range stats.Histogram.Counts {
				_, _ = fmt.Fprintf(out, "%.4f,%.4f,%g\n", stats.Histogram.Dividers[i], stats.Histogram.Dividers[i+1], c)
			}
		}
	default:
		_, _ = fmt.Fprintf(out, "distances: %d\n", stats.Count)
		_, _ = fmt.Fprintf(out, "mean: %.2f px (std %.2f)\n", stats.Mean, stats.StdDev)
		_, _ = fmt.Fprintf(out, "range: %.2f - %.2f px\n", stats.Min, stats.Max)
		if i, lo, hi := stats.Histogram.Tallest(); i >= 0 {
			_, _ = fmt.Fprintf(out, "most common: %.2f - %.2f px (%g junctions)\n", lo, hi, stats.Histogram.Counts[i])
		}
		if showHist {
			for i, c := range stats.Histogram.Counts {
				_, _ = fmt.Fprintf(out, "  [%.2f, %.2f): %g\n", stats.Histogram.Dividers[i], stats.Histogram.Dividers[i+1], c)
			}
		}
	}
	return nil
}

func init() {
	distanceCmd.Flags().Bool("histogram", false, "print every histogram bin")
	distanceCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	distanceCmd.Flags().StringSlice("include", nil, "include patterns (e.g. '*.yaml')")
	distanceCmd.Flags().StringSlice("exclude", nil, "exclude patterns")
	distanceCmd.Flags().StringP("format", "f", "text", "output format: text, json or csv")

	rootCmd.AddCommand(distanceCmd)
}
