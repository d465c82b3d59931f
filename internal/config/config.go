//nolint:lll
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/panicle/internal/boxes"
	"github.com/MeKo-Tech/panicle/internal/evaluate"
	"github.com/MeKo-Tech/panicle/internal/pipeline"
	"github.com/MeKo-Tech/panicle/internal/render"
	"github.com/MeKo-Tech/panicle/internal/skeleton"
)

// Config is the complete configuration of the panicle command line tool. It
// is loaded from a config file, PANICLE_* environment variables and flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Boxes    BoxesConfig    `mapstructure:"boxes" yaml:"boxes" json:"boxes"`
	Skeleton SkeletonConfig `mapstructure:"skeleton" yaml:"skeleton" json:"skeleton"`
	Evaluate EvaluateConfig `mapstructure:"evaluate" yaml:"evaluate" json:"evaluate"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// BoxesConfig controls label synthesis.
type BoxesConfig struct {
	Source            string  `mapstructure:"source" yaml:"source" json:"source"`
	Width             float64 `mapstructure:"width" yaml:"width" json:"width"`
	Height            float64 `mapstructure:"height" yaml:"height" json:"height"`
	Oriented          bool    `mapstructure:"oriented" yaml:"oriented" json:"oriented"`
	AngleMethod       string  `mapstructure:"angle_method" yaml:"angle_method" json:"angle_method"`
	ClassIndex        int     `mapstructure:"class_index" yaml:"class_index" json:"class_index"`
	KeepEndGenerating bool    `mapstructure:"keep_end_generating" yaml:"keep_end_generating" json:"keep_end_generating"`
}

// SkeletonConfig controls junction extraction from masks.
type SkeletonConfig struct {
	Threshold      int     `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	WorkingSize    int     `mapstructure:"working_size" yaml:"working_size" json:"working_size"`
	MarginBefore   int     `mapstructure:"margin_before" yaml:"margin_before" json:"margin_before"`
	MarginAfter    int     `mapstructure:"margin_after" yaml:"margin_after" json:"margin_after"`
	ClusterRadius  float64 `mapstructure:"cluster_radius" yaml:"cluster_radius" json:"cluster_radius"`
	MinClusterSize int     `mapstructure:"min_cluster_size" yaml:"min_cluster_size" json:"min_cluster_size"`
}

// EvaluateConfig controls detection scoring.
type EvaluateConfig struct {
	IoUThreshold float64 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`

	// OverlapPercentage is the shared area, in percent of one box, from
	// which two neighbouring boxes count as overlapping.
	OverlapPercentage float64 `mapstructure:"overlap_percentage" yaml:"overlap_percentage" json:"overlap_percentage"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Recursive       bool `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format        string `mapstructure:"format" yaml:"format" json:"format"`
	File          string `mapstructure:"file" yaml:"file" json:"file"`
	Dir           string `mapstructure:"dir" yaml:"dir" json:"dir"`
	OverlayDir    string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	BoxColor      string `mapstructure:"box_color" yaml:"box_color" json:"box_color"`
	JunctionColor string `mapstructure:"junction_color" yaml:"junction_color" json:"junction_color"`
}

// MetricsConfig controls the Prometheus endpoint of batch runs.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	sk := skeleton.DefaultConfig()
	return Config{
		LogLevel: "info",
		Boxes: BoxesConfig{
			Source:      string(pipeline.SourceJunctions),
			Width:       26,
			Height:      26,
			AngleMethod: boxes.MidlineOnLine.String(),
		},
		Skeleton: SkeletonConfig{
			Threshold:      int(sk.Threshold),
			WorkingSize:    sk.WorkingSize,
			MarginBefore:   sk.MarginBefore,
			MarginAfter:    sk.MarginAfter,
			ClusterRadius:  sk.ClusterRadius,
			MinClusterSize: sk.MinClusterSize,
		},
		Evaluate: EvaluateConfig{
			IoUThreshold:      evaluate.DefaultIoUThreshold,
			OverlapPercentage: 20,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			Format:        "text",
			BoxColor:      "#FF0000",
			JunctionColor: "#00FF00",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if _, err := pipeline.ParseSource(c.Boxes.Source); err != nil {
		return fmt.Errorf("invalid boxes.source: %w", err)
	}
	if _, err := boxes.ParseAngleMethod(c.Boxes.AngleMethod); err != nil {
		return fmt.Errorf("invalid boxes.angle_method: %w", err)
	}
	if c.Boxes.Width <= 0 || c.Boxes.Height <= 0 {
		return fmt.Errorf("invalid box size: %gx%g (must be positive)", c.Boxes.Width, c.Boxes.Height)
	}
	if c.Boxes.ClassIndex < 0 {
		return fmt.Errorf("invalid class index: %d (must not be negative)", c.Boxes.ClassIndex)
	}

	if c.Skeleton.Threshold < 0 || c.Skeleton.Threshold > 255 {
		return fmt.Errorf("invalid skeleton.threshold: %d (must be between 0 and 255)", c.Skeleton.Threshold)
	}
	if err := c.ToSkeletonConfig().Validate(); err != nil {
		return fmt.Errorf("invalid skeleton config: %w", err)
	}

	if err := validateThreshold(c.Evaluate.IoUThreshold, "evaluate.iou_threshold"); err != nil {
		return err
	}
	if p := c.Evaluate.OverlapPercentage; p < 0 || p > 100 {
		return fmt.Errorf("invalid evaluate.overlap_percentage: %g (must be between 0 and 100)", p)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	colors := [][2]string{{"output.box_color", c.Output.BoxColor}, {"output.junction_color", c.Output.JunctionColor}}
	for _, kv := range colors {
		if kv[1] == "" {
			continue
		}
		if _, err := render.ParseHexColor(kv[1]); err != nil {
			return fmt.Errorf("invalid %s: %w", kv[0], err)
		}
	}
	return nil
}

// ToSkeletonConfig converts to skeleton.Config.
func (c *Config) ToSkeletonConfig() skeleton.Config {
	return skeleton.Config{
		Threshold:      uint8(min(max(c.Skeleton.Threshold, 0), 255)), //nolint:gosec // G115: clamped above
		WorkingSize:    c.Skeleton.WorkingSize,
		MarginBefore:   c.Skeleton.MarginBefore,
		MarginAfter:    c.Skeleton.MarginAfter,
		ClusterRadius:  c.Skeleton.ClusterRadius,
		MinClusterSize: c.Skeleton.MinClusterSize,
	}
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	src, err := pipeline.ParseSource(c.Boxes.Source)
	if err != nil {
		return pipeline.Config{}, err
	}
	method, err := boxes.ParseAngleMethod(c.Boxes.AngleMethod)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Source:            src,
		Oriented:          c.Boxes.Oriented,
		BoxWidth:          c.Boxes.Width,
		BoxHeight:         c.Boxes.Height,
		AngleMethod:       method,
		ClassIndex:        c.Boxes.ClassIndex,
		KeepEndGenerating: c.Boxes.KeepEndGenerating,
		Skeleton:          c.ToSkeletonConfig(),
		IoUThreshold:      c.Evaluate.IoUThreshold,
		Parallel: pipeline.ParallelConfig{
			MaxWorkers:      c.Batch.Workers,
			ContinueOnError: c.Batch.ContinueOnError,
		},
	}, nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
