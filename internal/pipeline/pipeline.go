// Package pipeline turns junction records and masks into label files and
// scores predicted labels, one image per call or many on a worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/panicle/internal/boxes"
	"github.com/MeKo-Tech/panicle/internal/evaluate"
	"github.com/MeKo-Tech/panicle/internal/geometry"
	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/MeKo-Tech/panicle/internal/skeleton"
)

// Config holds configuration for label synthesis and evaluation.
type Config struct {
	Source            Source
	Oriented          bool
	BoxWidth          float64
	BoxHeight         float64
	AngleMethod       boxes.AngleMethod
	ClassIndex        int
	KeepEndGenerating bool
	Skeleton          skeleton.Config
	IoUThreshold      float64

	Parallel ParallelConfig
}

// DefaultConfig returns horizontal 26x26 boxes on curated junctions.
func DefaultConfig() Config {
	return Config{
		Source:       SourceJunctions,
		BoxWidth:     26,
		BoxHeight:    26,
		AngleMethod:  boxes.MidlineOnLine,
		Skeleton:     skeleton.DefaultConfig(),
		IoUThreshold: evaluate.DefaultIoUThreshold,
		Parallel:     DefaultParallelConfig(),
	}
}

// Validate checks the settings that do not depend on the input.
func (c Config) Validate() error {
	if _, err := ParseSource(string(c.Source)); err != nil {
		return err
	}
	if c.ClassIndex < 0 {
		return fmt.Errorf("class index must be >= 0, got %d", c.ClassIndex)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("iou threshold must be in [0,1], got %g", c.IoUThreshold)
	}
	s := boxes.Synthesizer{Width: c.BoxWidth, Height: c.BoxHeight, Method: c.AngleMethod}
	if err := s.Validate(); err != nil {
		return err
	}
	if c.Source == SourceSkeleton {
		return c.Skeleton.Validate()
	}
	return nil
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithSource selects where boxes come from.
func (b *Builder) WithSource(src Source) *Builder {
	b.cfg.Source = src
	return b
}

// WithBoxSize sets the fixed junction box size in pixels.
func (b *Builder) WithBoxSize(w, h float64) *Builder {
	b.cfg.BoxWidth, b.cfg.BoxHeight = w, h
	return b
}

// WithOriented switches junction boxes to rotated boxes using method.
func (b *Builder) WithOriented(oriented bool, method boxes.AngleMethod) *Builder {
	b.cfg.Oriented = oriented
	if method != 0 {
		b.cfg.AngleMethod = method
	}
	return b
}

// WithClassIndex sets the class written in front of every label.
func (b *Builder) WithClassIndex(class int) *Builder {
	b.cfg.ClassIndex = class
	return b
}

// WithKeepEndGenerating keeps the end generating junction in the output.
func (b *Builder) WithKeepEndGenerating(keep bool) *Builder {
	b.cfg.KeepEndGenerating = keep
	return b
}

// WithSkeleton sets the skeleton extraction settings.
func (b *Builder) WithSkeleton(cfg skeleton.Config) *Builder {
	b.cfg.Skeleton = cfg
	return b
}

// WithIoUThreshold sets the minimum IoU of a true positive.
func (b *Builder) WithIoUThreshold(t float64) *Builder {
	b.cfg.IoUThreshold = t
	return b
}

// WithParallel sets the worker pool settings used by batch callers.
func (b *Builder) WithParallel(p ParallelConfig) *Builder {
	b.cfg.Parallel = p
	return b
}

// Config returns the current builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and returns a pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	p := &Pipeline{
		cfg: b.cfg,
		synth: boxes.Synthesizer{
			Width:  b.cfg.BoxWidth,
			Height: b.cfg.BoxHeight,
			Method: b.cfg.AngleMethod,
		},
	}
	if b.cfg.Source == SourceSkeleton {
		ex, err := skeleton.NewExtractor(b.cfg.Skeleton)
		if err != nil {
			return nil, fmt.Errorf("invalid pipeline config: %w", err)
		}
		p.extractor = ex
	}
	return p, nil
}

// Pipeline holds validated settings. It keeps no per-image state and is
// safe for concurrent use.
type Pipeline struct {
	cfg       Config
	synth     boxes.Synthesizer
	extractor *skeleton.Extractor
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Labels builds the boxes and label lines of one image.
func (p *Pipeline) Labels(ctx context.Context, req LabelRequest) (*LabelResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Record == nil {
		return nil, Stage("load", errors.New("missing junction record"))
	}

	set, edges, err := req.Record.Build()
	if err != nil {
		return nil, Stage("record", err)
	}
	width, height := imageSize(req)
	if width <= 0 || height <= 0 {
		return nil, Stage("record", fmt.Errorf("%w: image size %dx%d", geometry.ErrInvalidBox, width, height))
	}
	if !p.cfg.KeepEndGenerating && p.cfg.Source != SourceGrains {
		removeEndGenerating(req.Name, set)
	}

	res := &LabelResult{Name: req.Name, Source: p.cfg.Source, Width: width, Height: height}
	enc := boxes.Encoder{ClassIndex: p.cfg.ClassIndex, ImageWidth: width, ImageHeight: height}

	switch p.cfg.Source {
	case SourceGrains:
		grains := junction.Grains(set, edges)
		res.HBB, err = boxes.GrainBoxes(grains)
		if err != nil {
			return nil, Stage("grains", err)
		}
		for _, g := range grains {
			res.Junctions = append(res.Junctions, g.To())
		}
		res.Labels, err = enc.EncodeAxisAligned(res.HBB)
		if err != nil {
			return nil, Stage("encode", err)
		}
	default:
		points, err := p.junctions(req, set, width, height)
		if err != nil {
			return nil, err
		}
		res.Junctions = points
		if err := p.junctionBoxes(res, enc); err != nil {
			return nil, err
		}
	}

	res.Processing = time.Since(start)
	slog.Debug("labels built",
		"name", req.Name,
		"source", p.cfg.Source,
		"junctions", len(res.Junctions),
		"labels", len(res.Labels),
		"duration", res.Processing)
	return res, nil
}

func (p *Pipeline) junctions(req LabelRequest, set *junction.Set, width, height int) ([]geometry.Point, error) {
	if p.cfg.Source != SourceSkeleton {
		return set.Branching(), nil
	}
	if req.Mask == nil {
		return nil, Stage("skeleton", fmt.Errorf("%w: nil mask", skeleton.ErrInvalidSkeletonInput))
	}
	points, err := p.extractor.Extract(req.Mask, width, height, set.MainAxis())
	if err != nil {
		return nil, Stage("skeleton", err)
	}
	return points, nil
}

func (p *Pipeline) junctionBoxes(res *LabelResult, enc boxes.Encoder) error {
	var err error
	if p.cfg.Oriented {
		res.OBB, err = p.synth.Oriented(res.Junctions)
		if err != nil {
			return Stage("boxes", err)
		}
		res.Labels, err = enc.EncodeOriented(res.OBB)
		if err != nil {
			return Stage("encode", err)
		}
		return nil
	}
	res.HBB, err = p.synth.Horizontal(res.Junctions)
	if err != nil {
		return Stage("boxes", err)
	}
	res.Labels, err = enc.EncodeAxisAligned(res.HBB)
	if err != nil {
		return Stage("encode", err)
	}
	return nil
}

// removeEndGenerating drops the end generating point when the record has
// both generating points. Records with a single generating point are left
// as they are.
func removeEndGenerating(name string, set *junction.Set) {
	removed, err := set.RemoveEndGenerating()
	if err != nil {
		slog.Debug("end generating junction kept", "name", name, "error", err)
		return
	}
	slog.Debug("end generating junction removed", "name", name, "x", removed.X, "y", removed.Y)
}

func imageSize(req LabelRequest) (int, int) {
	w, h := req.Record.Image.Width, req.Record.Image.Height
	if (w <= 0 || h <= 0) && req.Mask != nil {
		b := req.Mask.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	return w, h
}

// Evaluate matches predicted labels against ground truth. Corner-form labels
// on either side switch the comparison to polygon IoU.
func (p *Pipeline) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Width <= 0 || req.Height <= 0 {
		return nil, Stage("evaluate", fmt.Errorf("%w: image size %dx%d", geometry.ErrInvalidBox, req.Width, req.Height))
	}

	var res evaluate.Result
	if allCenterForm(req.Pred) && allCenterForm(req.Truth) {
		pred, err := axisAligned(req.Pred, req.Width, req.Height)
		if err != nil {
			return nil, Stage("predictions", err)
		}
		truth, err := axisAligned(req.Truth, req.Width, req.Height)
		if err != nil {
			return nil, Stage("ground truth", err)
		}
		res = evaluate.MatchAxisAligned(pred, truth, p.cfg.IoUThreshold)
	} else {
		pred, err := polygons(req.Pred, req.Width, req.Height)
		if err != nil {
			return nil, Stage("predictions", err)
		}
		truth, err := polygons(req.Truth, req.Width, req.Height)
		if err != nil {
			return nil, Stage("ground truth", err)
		}
		res = evaluate.MatchPolygons(pred, truth, p.cfg.IoUThreshold)
	}

	out := &EvaluateResult{Name: req.Name, Result: res}
	score, err := res.Score()
	switch {
	case err == nil:
		out.Score, out.Defined = score, true
	case errors.Is(err, evaluate.ErrUndefinedMetric):
		slog.Warn("score undefined", "name", req.Name, "tp", res.TP, "fp", res.FP, "fn", res.FN, "reason", err)
	default:
		return nil, Stage("score", err)
	}
	return out, nil
}

func allCenterForm(labels []boxes.Label) bool {
	for _, l := range labels {
		if len(l.Values) != 4 {
			return false
		}
	}
	return true
}

func axisAligned(labels []boxes.Label, w, h int) ([]geometry.AxisAlignedBox, error) {
	out := make([]geometry.AxisAlignedBox, len(labels))
	for i, l := range labels {
		b, err := l.AxisAligned(w, h)
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

func polygons(labels []boxes.Label, w, h int) ([][]geometry.Point, error) {
	out := make([][]geometry.Point, len(labels))
	for i, l := range labels {
		poly, err := l.Polygon(w, h)
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", i, err)
		}
		out[i] = poly
	}
	return out, nil
}
