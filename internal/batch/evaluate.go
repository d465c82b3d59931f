package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/panicle/internal/evaluate"
	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/MeKo-Tech/panicle/internal/metrics"
	"github.com/MeKo-Tech/panicle/internal/pipeline"
	"github.com/MeKo-Tech/panicle/internal/utils"
)

type labelPair struct {
	pred, truth string
}

// RunEvaluate scores every label file below predDir against the file with
// the same relative path below truthDir.
//
// IoU does not change when both axes are scaled independently, so images
// without a known size are compared in normalized coordinates.
func RunEvaluate(ctx context.Context, predDir, truthDir string, config *Config) (*EvaluateResult, error) {
	include := config.IncludePatterns
	if len(include) == 0 {
		include = LabelPatterns
	}
	files, err := discoverFiles([]string{predDir}, config.Recursive, include, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover predictions: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no prediction files in %s", ErrNoFiles, predDir)
	}

	pl, err := pipeline.NewBuilder().WithConfig(config.Pipeline).Build()
	if err != nil {
		return nil, err
	}

	items := make([]pipeline.Item[labelPair], len(files))
	for i, f := range files {
		rel, err := filepath.Rel(predDir, f)
		if err != nil {
			rel = filepath.Base(f)
		}
		items[i] = pipeline.Item[labelPair]{
			Name:  filepath.ToSlash(rel),
			Value: labelPair{pred: f, truth: filepath.Join(truthDir, rel)},
		}
	}

	slog.Info("evaluate batch started", "files", len(items), "iou_threshold", config.Pipeline.IoUThreshold)
	start := time.Now()
	out, runErr := pipeline.RunParallel(ctx, items, config.parallel(config.progress("Evaluate: ")),
		func(ctx context.Context, it pipeline.Item[labelPair]) (*pipeline.EvaluateResult, error) {
			t := time.Now()
			er, err := evaluatePair(ctx, pl, config, it)
			metrics.ObserveImage("evaluate", time.Since(t), err)
			if err == nil {
				metrics.ObserveMatch(er.Result.TP, er.Result.FP, er.Result.FN, er.Score.F1, er.Defined)
			}
			return er, err
		})
	failures, err := itemFailures(runErr, config.ContinueOnError)
	if err != nil {
		return nil, fmt.Errorf("evaluate batch failed: %w", err)
	}

	res := &EvaluateResult{
		Items:       make([]EvaluateItem, len(items)),
		History:     evaluate.NewHistory(),
		Duration:    time.Since(start),
		WorkerCount: effectiveWorkers(config.Workers, len(items)),
		Failed:      len(failures),
	}
	for i, it := range items {
		item := EvaluateItem{Name: it.Name, PredPath: it.Value.pred, TruthPath: it.Value.truth}
		if e, ok := failures[i]; ok {
			item.Error = e.Error()
		} else {
			item.Result = out[i]
			if out[i].Defined {
				res.History.Add(it.Name, out[i].Score)
			}
		}
		res.Items[i] = item
	}
	slog.Info("evaluate batch completed",
		"files", len(items),
		"failed", res.Failed,
		"scored", res.History.Len(),
		"mean_f1", res.History.Summary().Mean.F1,
		"duration", res.Duration)
	return res, nil
}

func evaluatePair(ctx context.Context, pl *pipeline.Pipeline, config *Config,
	it pipeline.Item[labelPair],
) (*pipeline.EvaluateResult, error) {
	pred, err := ReadLabelFile(it.Value.pred)
	if err != nil {
		return nil, pipeline.Stage("read predictions", err)
	}
	truth, err := ReadLabelFile(it.Value.truth)
	if err != nil {
		return nil, pipeline.Stage("read ground truth", err)
	}
	w, h, err := labelImageSize(config, stem(it.Value.pred))
	if err != nil {
		return nil, pipeline.Stage("image size", err)
	}
	return pl.Evaluate(ctx, pipeline.EvaluateRequest{
		Name:   it.Name,
		Width:  w,
		Height: h,
		Pred:   pred,
		Truth:  truth,
	})
}

// labelImageSize resolves the pixel size behind a label file from an image
// in ImageDir or a record in RecordDir. It falls back to a unit square.
func labelImageSize(config *Config, name string) (int, int, error) {
	if config.ImageDir != "" {
		if p := findImage(config.ImageDir, name); p != "" {
			return utils.ImageSize(p)
		}
	}
	if config.RecordDir != "" {
		for _, pattern := range RecordPatterns {
			p := filepath.Join(config.RecordDir, name+filepath.Ext(pattern))
			if !fileExists(p) {
				continue
			}
			rec, err := junction.LoadRecord(p)
			if err != nil {
				return 0, 0, err
			}
			if rec.Image.Width > 0 && rec.Image.Height > 0 {
				return rec.Image.Width, rec.Image.Height, nil
			}
		}
	}
	return 1, 1, nil
}
