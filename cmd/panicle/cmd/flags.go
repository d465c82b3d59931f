package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/panicle/internal/batch"
	"github.com/MeKo-Tech/panicle/internal/config"
	"github.com/MeKo-Tech/panicle/internal/metrics"
	"github.com/MeKo-Tech/panicle/internal/pipeline"
	"github.com/MeKo-Tech/panicle/internal/render"
	"github.com/spf13/cobra"
)

func addBoxFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "junctions", "label source: junctions, skeleton or grains")
	cmd.Flags().Float64("box-width", 26, "box width in pixels")
	cmd.Flags().Float64("box-height", 26, "box height in pixels")
	cmd.Flags().Bool("oriented", false, "emit oriented boxes aligned with the nearest junction")
	cmd.Flags().String("angle-method", "midline-on-line", "oriented box angle: vertex-on-line or midline-on-line")
	cmd.Flags().Int("class", 0, "class index written to every label")
	cmd.Flags().Bool("keep-end-generating", false, "keep the end generating junction of the main axis")
}

func addSkeletonFlags(cmd *cobra.Command) {
	cmd.Flags().Int("threshold", 127, "mask binarization threshold (0-255)")
	cmd.Flags().Int("working-size", 512, "side length masks are resized to before thinning")
	cmd.Flags().Float64("cluster-radius", 7, "DBSCAN radius for merging high-order junctions")
	cmd.Flags().Int("min-cluster-size", 2, "DBSCAN minimum cluster size")
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("workers", "w", 4, "number of parallel workers")
	cmd.Flags().Bool("continue-on-error", false, "keep going when an item fails")
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringSlice("include", nil, "include patterns (e.g. '*.yaml')")
	cmd.Flags().StringSlice("exclude", nil, "exclude patterns")
	cmd.Flags().Bool("progress", false, "show a progress line on stderr")
	cmd.Flags().BoolP("quiet", "q", false, "suppress progress and status messages")
	cmd.Flags().Bool("stats", false, "print processing statistics on stderr")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format: text, json or csv")
	cmd.Flags().StringP("output", "o", "", "write results to this file instead of stdout")
}

func overrideString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func overrideFloat(cmd *cobra.Command, name string, dst *float64) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetFloat64(name)
	}
}

func overrideInt(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func overrideBool(cmd *cobra.Command, name string, dst *bool) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}

// commandConfig applies the flags the user set on cmd on top of the loaded
// configuration. Flags left at their defaults never override file or
// environment values.
func commandConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := GetConfig()

	overrideString(cmd, "source", &cfg.Boxes.Source)
	overrideFloat(cmd, "box-width", &cfg.Boxes.Width)
	overrideFloat(cmd, "box-height", &cfg.Boxes.Height)
	overrideBool(cmd, "oriented", &cfg.Boxes.Oriented)
	overrideString(cmd, "angle-method", &cfg.Boxes.AngleMethod)
	overrideInt(cmd, "class", &cfg.Boxes.ClassIndex)
	overrideBool(cmd, "keep-end-generating", &cfg.Boxes.KeepEndGenerating)

	overrideInt(cmd, "threshold", &cfg.Skeleton.Threshold)
	overrideInt(cmd, "working-size", &cfg.Skeleton.WorkingSize)
	overrideFloat(cmd, "cluster-radius", &cfg.Skeleton.ClusterRadius)
	overrideInt(cmd, "min-cluster-size", &cfg.Skeleton.MinClusterSize)

	overrideFloat(cmd, "iou-threshold", &cfg.Evaluate.IoUThreshold)
	overrideFloat(cmd, "percentage", &cfg.Evaluate.OverlapPercentage)

	overrideInt(cmd, "workers", &cfg.Batch.Workers)
	overrideBool(cmd, "continue-on-error", &cfg.Batch.ContinueOnError)
	overrideBool(cmd, "recursive", &cfg.Batch.Recursive)

	overrideString(cmd, "format", &cfg.Output.Format)
	overrideString(cmd, "output", &cfg.Output.File)
	overrideString(cmd, "output-dir", &cfg.Output.Dir)
	overrideString(cmd, "overlay-dir", &cfg.Output.OverlayDir)
	overrideString(cmd, "box-color", &cfg.Output.BoxColor)
	overrideString(cmd, "junction-color", &cfg.Output.JunctionColor)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

// batchConfig maps the resolved configuration and the batch-only flags to
// batch.Config.
func batchConfig(cmd *cobra.Command, cfg *config.Config) (*batch.Config, error) {
	pcfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	overlay, err := render.NewOverlay(cfg.Output.BoxColor, cfg.Output.JunctionColor)
	if err != nil {
		return nil, err
	}

	bc := batch.DefaultConfig()
	bc.Pipeline = pcfg
	bc.Workers = cfg.Batch.Workers
	bc.ContinueOnError = cfg.Batch.ContinueOnError
	bc.Recursive = cfg.Batch.Recursive
	bc.OutputDir = cfg.Output.Dir
	bc.OverlayDir = cfg.Output.OverlayDir
	bc.Overlay = overlay
	bc.Format = cfg.Output.Format
	bc.OutputFile = cfg.Output.File

	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	bc.MaskDir, _ = cmd.Flags().GetString("mask-dir")
	bc.ImageDir, _ = cmd.Flags().GetString("image-dir")
	bc.RecordDir, _ = cmd.Flags().GetString("record-dir")
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ProgressWriter = cmd.ErrOrStderr()
	return bc, nil
}

// startMetrics serves /metrics when an address is configured. The returned
// function stops the server.
func startMetrics(addr string) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	srv, err := metrics.Start(addr)
	if err != nil {
		return nil, err
	}
	slog.Info("metrics server started", "addr", srv.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown failed", "error", err)
		}
	}, nil
}

// pipelineFor builds a single-image pipeline from the resolved configuration.
func pipelineFor(cfg *config.Config) (*pipeline.Pipeline, error) {
	pcfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	return pipeline.NewBuilder().WithConfig(pcfg).Build()
}
