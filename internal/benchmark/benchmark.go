// Package benchmark times the stages of label synthesis on one record so
// box, skeleton and matching settings can be compared on real data.
package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/MeKo-Tech/panicle/internal/common"
	"github.com/MeKo-Tech/panicle/internal/evaluate"
	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/MeKo-Tech/panicle/internal/pipeline"
	"github.com/MeKo-Tech/panicle/internal/skeleton"
)

// Benchmark is one named stage.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite runs stages in the order they were added.
type Suite struct {
	benchmarks []Benchmark
	results    []common.Measurement
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add appends a stage.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Names lists the stages in run order.
func (s *Suite) Names() []string {
	names := make([]string, len(s.benchmarks))
	for i, b := range s.benchmarks {
		names[i] = b.Name
	}
	return names
}

// Run measures a single stage.
func (s *Suite) Run(name string, iterations int) common.Measurement {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return common.Measure(b.Name, iterations, b.Func)
		}
	}
	err := fmt.Errorf("benchmark '%s' not found", name)
	return common.Measurement{Name: name, Error: err, Err: err.Error()}
}

// RunAll measures every stage and keeps the results.
func (s *Suite) RunAll(iterations int) []common.Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]common.Measurement, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, common.Measure(b.Name, iterations, b.Func))
	}
	return s.results
}

// Results returns the last RunAll results.
func (s *Suite) Results() []common.Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// WriteResults prints results as text, json or csv.
func WriteResults(w io.Writer, results []common.Measurement, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "csv":
		if _, err := fmt.Fprintln(w, "name,iterations,ns_per_op,bytes_per_op,allocs_per_op,error"); err != nil {
			return err
		}
		for _, r := range results {
			if _, err := fmt.Fprintf(w, "%s,%d,%d,%d,%d,%q\n",
				r.Name, r.Iterations, r.PerOp().Nanoseconds(), r.BytesPerOp, r.AllocsPerOp, r.Err); err != nil {
				return err
			}
		}
		return nil
	case "", "text":
		for _, r := range results {
			if _, err := fmt.Fprintln(w, r.String()); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported format: %s", format)
}

// Stage names registered by NewPipelineSuite.
const (
	StageBuild      = "record/build"
	StageHorizontal = "labels/horizontal"
	StageOriented   = "labels/oriented"
	StageGrains     = "labels/grains"
	StageOverlap    = "stats/overlap"
	StageMatch      = "evaluate/match"
	StageThin       = "skeleton/thin"
	StageExtract    = "skeleton/extract"
)

// overlapPercentage is the area share above which two boxes overlap.
const overlapPercentage = 20

// NewPipelineSuite registers every label stage for rec using cfg for box
// and skeleton settings. The skeleton stages need mask; they are left out
// when it is nil.
func NewPipelineSuite(rec *junction.Record, mask image.Image, cfg pipeline.Config) (*Suite, error) {
	if rec == nil {
		return nil, errors.New("benchmark needs a junction record")
	}
	set, _, err := rec.Build()
	if err != nil {
		return nil, err
	}
	w, h := rec.Image.Width, rec.Image.Height
	if (w <= 0 || h <= 0) && mask != nil {
		w, h = mask.Bounds().Dx(), mask.Bounds().Dy()
	}

	horizontal, err := pipeline.NewBuilder().WithConfig(cfg).WithSource(pipeline.SourceJunctions).
		WithOriented(false, cfg.AngleMethod).Build()
	if err != nil {
		return nil, err
	}
	oriented, err := pipeline.NewBuilder().WithConfig(cfg).WithSource(pipeline.SourceJunctions).
		WithOriented(true, cfg.AngleMethod).Build()
	if err != nil {
		return nil, err
	}
	grains, err := pipeline.NewBuilder().WithConfig(cfg).WithSource(pipeline.SourceGrains).Build()
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	req := pipeline.LabelRequest{Name: "benchmark", Record: rec, Mask: mask}
	truth, err := horizontal.Labels(ctx, req)
	if err != nil {
		return nil, err
	}

	s := NewSuite()
	s.Add(StageBuild, func() error {
		_, _, err := rec.Build()
		return err
	})
	s.Add(StageHorizontal, labelStage(ctx, horizontal, req))
	s.Add(StageOriented, labelStage(ctx, oriented, req))
	s.Add(StageGrains, labelStage(ctx, grains, req))
	s.Add(StageOverlap, func() error {
		_, err := evaluate.OverlapDegree(set.Branching(), int(cfg.BoxWidth), int(cfg.BoxHeight), overlapPercentage)
		return err
	})
	s.Add(StageMatch, func() error {
		_, err := horizontal.Evaluate(ctx, pipeline.EvaluateRequest{
			Name: "benchmark", Width: truth.Width, Height: truth.Height,
			Pred: truth.Labels, Truth: truth.Labels,
		})
		return err
	})

	if mask == nil {
		return s, nil
	}
	ex, err := skeleton.NewExtractor(cfg.Skeleton)
	if err != nil {
		return nil, err
	}
	axis := set.MainAxis()
	if !cfg.KeepEndGenerating {
		if _, err := set.RemoveEndGenerating(); err == nil {
			axis = set.MainAxis()
		}
	}
	s.Add(StageThin, func() error {
		grid := skeleton.Binarize(skeleton.FitMask(mask, cfg.Skeleton.WorkingSize), cfg.Skeleton.Threshold)
		skel := skeleton.Thin(grid)
		grid.Release()
		skel.Release()
		return nil
	})
	s.Add(StageExtract, func() error {
		_, err := ex.Run(mask, w, h, axis)
		return err
	})
	return s, nil
}

func labelStage(ctx context.Context, p *pipeline.Pipeline, req pipeline.LabelRequest) func() error {
	return func() error {
		_, err := p.Labels(ctx, req)
		return err
	}
}
