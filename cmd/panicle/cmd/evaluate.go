package cmd

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/panicle/internal/batch"
	"github.com/spf13/cobra"
)

// evaluateCmd scores predicted label files against ground truth.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <predictions-dir> <ground-truth-dir>",
	Short: "Score predicted labels against ground-truth labels",
	Long: `Match every label file in the predictions directory against the file with
the same relative path in the ground-truth directory. Matching is greedy: a
prediction and a ground-truth box pair up when each is the other's best IoU
and the IoU exceeds --iou-threshold. Corner-form labels are compared as
polygons.

Per-file precision, recall and F1 are printed; files without predictions or
without ground truth have no defined score and are left out of the summary.
With --history the scores are also written as CSV (filename,f1,precision,recall).

Examples:
  panicle evaluate predictions/ labels/
  panicle evaluate predictions/ labels/ --iou-threshold 0.5 --format json
  panicle evaluate predictions/ labels/ --history scores.csv`,
	Args: cobra.ExactArgs(2),
	RunE: runEvaluateCommand,
}

func runEvaluateCommand(cmd *cobra.Command, args []string) error {
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

	res, err := batch.RunEvaluate(cmd.Context(), args[0], args[1], bc)
	if err != nil {
		return err
	}
	if err := res.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("history"); path != "" {
		if err := writeHistory(res, path); err != nil {
			return err
		}
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		res.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d label files failed", res.Failed, len(res.Items))
	}
	return nil
}

func writeHistory(res *batch.EvaluateResult, path string) error {
	f, err := os.Create(path) //nolint:gosec // G304: output path from CLI flag
	if err != nil {
		return fmt.Errorf("failed to create score history: %w", err)
	}
	if err := res.History.WriteCSV(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write score history: %w", err)
	}
	return f.Close()
}

func init() {
	addBatchFlags(evaluateCmd)
	addOutputFlags(evaluateCmd)
	evaluateCmd.Flags().Float64("iou-threshold", 0.1, "IoU a pair must exceed to match")
	evaluateCmd.Flags().String("image-dir", "", "directory with the images, used for their pixel size")
	evaluateCmd.Flags().String("record-dir", "", "directory with junction records, used for the image size")
	evaluateCmd.Flags().String("history", "", "also write the per-file scores as CSV to this file")

	rootCmd.AddCommand(evaluateCmd)
}
