package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/panicle/internal/evaluate"
	"github.com/MeKo-Tech/panicle/internal/pipeline"
	"github.com/MeKo-Tech/panicle/internal/render"
)

// Config holds all configuration for batch runs.
type Config struct {
	Pipeline pipeline.Config

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Companion files are looked up by stem. An empty MaskDir means next to
	// the record. ImageDir supplies overlay backgrounds for labels runs and
	// image sizes for evaluate runs.
	MaskDir   string
	ImageDir  string
	RecordDir string

	// Output settings
	OutputDir  string
	OverlayDir string
	Overlay    render.Overlay
	Format     string
	OutputFile string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
	ProgressWriter   io.Writer
}

// DefaultConfig returns a configuration with one worker per CPU.
func DefaultConfig() *Config {
	return &Config{
		Pipeline:         pipeline.DefaultConfig(),
		Workers:          pipeline.DefaultParallelConfig().MaxWorkers,
		Overlay:          render.DefaultOverlay(),
		Format:           "text",
		ProgressInterval: 100 * time.Millisecond,
	}
}

func (c *Config) parallel(progress pipeline.ProgressCallback) pipeline.ParallelConfig {
	return pipeline.ParallelConfig{
		MaxWorkers:       c.Workers,
		ContinueOnError:  c.ContinueOnError,
		ProgressCallback: progress,
	}
}

func (c *Config) progress(prefix string) pipeline.ProgressCallback {
	if !c.ShowProgress || c.Quiet {
		return nil
	}
	w := c.ProgressWriter
	if w == nil {
		w = os.Stderr
	}
	return pipeline.NewConsoleProgressCallback(w, prefix).WithUpdateInterval(c.ProgressInterval)
}

// LabelItem is the outcome of one junction record.
type LabelItem struct {
	Name        string                `json:"name"`
	RecordPath  string                `json:"record"`
	LabelPath   string                `json:"label_file,omitempty"`
	OverlayPath string                `json:"overlay,omitempty"`
	Result      *pipeline.LabelResult `json:"result,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// LabelsResult holds the result of a labels batch.
type LabelsResult struct {
	Items       []LabelItem
	Duration    time.Duration
	WorkerCount int
	Failed      int
}

// Stats summarises the run.
func (r *LabelsResult) Stats() pipeline.ParallelStats {
	return pipeline.CalculateParallelStats(len(r.Items), r.Failed, r.Duration, r.WorkerCount)
}

// FormatResults formats the batch results in the specified format.
func (r *LabelsResult) FormatResults(format string) (string, error) {
	return formatLabels(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *LabelsResult) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	return writeOutput(w, output, outputFile, quiet)
}

// PrintStats prints processing statistics.
func (r *LabelsResult) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	printStats(w, r.Stats(), "records")
}

// EvaluateItem is the outcome of one prediction file.
type EvaluateItem struct {
	Name      string                   `json:"name"`
	PredPath  string                   `json:"predictions"`
	TruthPath string                   `json:"ground_truth"`
	Result    *pipeline.EvaluateResult `json:"result,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// EvaluateResult holds the result of an evaluate batch. History only has
// the images whose score is defined.
type EvaluateResult struct {
	Items       []EvaluateItem
	History     *evaluate.History
	Duration    time.Duration
	WorkerCount int
	Failed      int
}

// Stats summarises the run.
func (r *EvaluateResult) Stats() pipeline.ParallelStats {
	return pipeline.CalculateParallelStats(len(r.Items), r.Failed, r.Duration, r.WorkerCount)
}

// FormatResults formats the batch results in the specified format.
func (r *EvaluateResult) FormatResults(format string) (string, error) {
	return formatEvaluation(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *EvaluateResult) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	return writeOutput(w, output, outputFile, quiet)
}

// PrintStats prints processing statistics.
func (r *EvaluateResult) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	printStats(w, r.Stats(), "label files")
}

func writeOutput(w io.Writer, output, outputFile string, quiet bool) error {
	if outputFile == "" {
		_, err := fmt.Fprint(w, output)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if !quiet {
		_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
	}
	return nil
}

func printStats(w io.Writer, stats pipeline.ParallelStats, unit string) {
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total %s: %d\n", unit, stats.TotalItems)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", stats.ProcessedItems)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.FailedItems)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per item: %v\n", stats.AveragePerItem.Round(time.Microsecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f items/sec\n", stats.ThroughputPerSec)
}
