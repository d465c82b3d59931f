// Package batch runs the label and evaluation pipelines over directories of
// junction records and label files.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/MeKo-Tech/panicle/internal/boxes"
	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/MeKo-Tech/panicle/internal/metrics"
	"github.com/MeKo-Tech/panicle/internal/pipeline"
	"github.com/MeKo-Tech/panicle/internal/render"
	"github.com/MeKo-Tech/panicle/internal/utils"
	"github.com/disintegration/imaging"
)

// ErrNoFiles is returned when discovery finds nothing to process.
var ErrNoFiles = errors.New("no input files found")

// RunLabels builds label files for every junction record found below paths.
func RunLabels(ctx context.Context, paths []string, config *Config) (*LabelsResult, error) {
	files, err := DiscoverRecords(paths, config)
	if err != nil {
		return nil, err
	}

	pl, err := pipeline.NewBuilder().WithConfig(config.Pipeline).Build()
	if err != nil {
		return nil, err
	}

	items := make([]pipeline.Item[string], len(files))
	for i, f := range files {
		items[i] = pipeline.Item[string]{Name: stem(f), Value: f}
	}

	slog.Info("labels batch started", "records", len(files), "source", config.Pipeline.Source, "workers", config.Workers)
	start := time.Now()
	out, runErr := pipeline.RunParallel(ctx, items, config.parallel(config.progress("Labels: ")),
		func(ctx context.Context, it pipeline.Item[string]) (*LabelItem, error) {
			t := time.Now()
			li, err := processRecord(ctx, pl, config, it)
			metrics.ObserveImage("labels", time.Since(t), err)
			if err == nil {
				metrics.ObserveJunctions(string(config.Pipeline.Source), len(li.Result.Junctions))
			}
			return li, err
		})
	failures, err := itemFailures(runErr, config.ContinueOnError)
	if err != nil {
		return nil, fmt.Errorf("labels batch failed: %w", err)
	}

	res := &LabelsResult{
		Items:       make([]LabelItem, len(items)),
		Duration:    time.Since(start),
		WorkerCount: effectiveWorkers(config.Workers, len(items)),
		Failed:      len(failures),
	}
	for i, it := range items {
		if e, ok := failures[i]; ok {
			res.Items[i] = LabelItem{Name: it.Name, RecordPath: it.Value, Error: e.Error()}
			continue
		}
		res.Items[i] = *out[i]
	}
	slog.Info("labels batch completed", "records", len(items), "failed", res.Failed, "duration", res.Duration)
	return res, nil
}

func processRecord(ctx context.Context, pl *pipeline.Pipeline, config *Config, it pipeline.Item[string]) (*LabelItem, error) {
	rec, err := junction.LoadRecord(it.Value)
	if err != nil {
		return nil, pipeline.Stage("load", err)
	}

	req := pipeline.LabelRequest{Name: it.Name, Record: rec}
	if config.Pipeline.Source == pipeline.SourceSkeleton || config.OverlayDir != "" {
		req.Mask, err = loadMask(config, it)
		if err != nil {
			return nil, err
		}
	}

	res, err := pl.Labels(ctx, req)
	if err != nil {
		return nil, err
	}
	li := &LabelItem{Name: it.Name, RecordPath: it.Value, Result: res}

	dir := config.OutputDir
	if dir == "" {
		dir = filepath.Dir(it.Value)
	}
	li.LabelPath = filepath.Join(dir, it.Name+".txt")
	if err := WriteLabelFile(li.LabelPath, res.Labels); err != nil {
		return nil, pipeline.Stage("write", err)
	}

	if config.OverlayDir != "" {
		li.OverlayPath = filepath.Join(config.OverlayDir, it.Name+"_overlay.png")
		if err := saveOverlay(config, it.Name, req.Mask, res, li.OverlayPath); err != nil {
			return nil, pipeline.Stage("overlay", err)
		}
	}
	return li, nil
}

// loadMask finds the mask next to the record or in MaskDir. A missing mask
// is only an error when the skeleton source needs it.
func loadMask(config *Config, it pipeline.Item[string]) (image.Image, error) {
	dir := config.MaskDir
	if dir == "" {
		dir = filepath.Dir(it.Value)
	}
	path := findImage(dir, it.Name)
	if path == "" {
		if config.Pipeline.Source != pipeline.SourceSkeleton {
			return nil, nil
		}
		return nil, pipeline.Stage("mask", fmt.Errorf("no mask for %s in %s", it.Name, dir))
	}
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, pipeline.Stage("mask", err)
	}
	return img, nil
}

// saveOverlay draws the boxes on the source image, the mask, or a black
// canvas of the record's size, in that order of preference.
func saveOverlay(config *Config, name string, mask image.Image, res *pipeline.LabelResult, path string) error {
	var bg image.Image
	if config.ImageDir != "" {
		if p := findImage(config.ImageDir, name); p != "" {
			img, _, err := utils.LoadImage(p)
			if err != nil {
				return err
			}
			bg = img
		}
	}
	if bg == nil && mask != nil {
		bg = mask
	}
	if bg == nil {
		bg = imaging.New(res.Width, res.Height, color.Black)
	}
	if b := bg.Bounds(); b.Dx() != res.Width || b.Dy() != res.Height {
		bg = imaging.Resize(bg, res.Width, res.Height, imaging.NearestNeighbor)
	}
	return config.Overlay.Save(bg, render.Scene{HBB: res.HBB, OBB: res.OBB, Junctions: res.Junctions}, path)
}

// WriteLabelFile writes labels to path, creating the directory.
func WriteLabelFile(path string, labels []boxes.Label) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path derived from CLI flags
	if err != nil {
		return err
	}
	if err := boxes.WriteLabels(f, labels); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadLabelFile parses a label file.
func ReadLabelFile(path string) ([]boxes.Label, error) {
	f, err := os.Open(path) //nolint:gosec // G304: label path is user supplied
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	labels, err := boxes.ParseLabels(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return labels, nil
}

// itemFailures splits the error of a parallel run into per-item failures.
// Anything that is not an item failure, and any failure when the run stops
// on error, is returned as is.
func itemFailures(err error, continueOnError bool) (map[int]*pipeline.ItemError, error) {
	failures := make(map[int]*pipeline.ItemError)
	if err == nil {
		return failures, nil
	}
	if !continueOnError {
		return nil, err
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		var ie *pipeline.ItemError
		if !errors.As(e, &ie) {
			return nil, err
		}
		failures[ie.Index] = ie
	}
	return failures, nil
}

func effectiveWorkers(workers, items int) int {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return min(workers, items)
}
