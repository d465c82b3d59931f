package cmd

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/panicle/internal/benchmark"
	"github.com/MeKo-Tech/panicle/internal/common"
	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/MeKo-Tech/panicle/internal/utils"
	"github.com/spf13/cobra"
)

// benchmarkCmd times the label stages on one record.
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark <record> [mask]",
	Short: "Time the label stages on one record",
	Long: `Run every stage of label synthesis on one junction record a number of times
and report the time and allocations per run. With a mask the skeleton stages
are timed as well. Box and skeleton flags apply as for the labels command.

Examples:
  panicle benchmark records/p1.yaml
  panicle benchmark records/p1.yaml masks/p1.png --iterations 50 --format csv
  panicle benchmark records/p1.yaml masks/p1.png --stage skeleton/thin`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBenchmarkCommand,
}

func runBenchmarkCommand(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	pcfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}
	iterations, _ := cmd.Flags().GetInt("iterations")
	if iterations < 1 {
		return fmt.Errorf("invalid options: iterations must be at least 1, got %d", iterations)
	}

	rec, err := junction.LoadRecord(args[0])
	if err != nil {
		return err
	}
	var mask image.Image
	if len(args) == 2 {
		if mask, _, err = utils.LoadImage(args[1]); err != nil {
			return err
		}
	}

	suite, err := benchmark.NewPipelineSuite(rec, mask, pcfg)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	stages, _ := cmd.Flags().GetStringSlice("stage")
	if len(stages) == 0 {
		return benchmark.WriteResults(cmd.OutOrStdout(), suite.RunAll(iterations), cfg.Output.Format)
	}
	results := make([]common.Measurement, 0, len(stages))
	for _, s := range stages {
		r := suite.Run(s, iterations)
		if r.Error != nil {
			return r.Error
		}
		results = append(results, r)
	}
	return benchmark.WriteResults(cmd.OutOrStdout(), results, cfg.Output.Format)
}

func init() {
	addBoxFlags(benchmarkCmd)
	addSkeletonFlags(benchmarkCmd)
	benchmarkCmd.Flags().IntP("iterations", "n", 10, "runs per stage")
	benchmarkCmd.Flags().StringSlice("stage", nil, "only time these stages (e.g. labels/oriented)")
	benchmarkCmd.Flags().StringP("format", "f", "text", "output format: text, json or csv")

	rootCmd.AddCommand(benchmarkCmd)
}
