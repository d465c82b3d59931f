package pipeline

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/MeKo-Tech/panicle/internal/boxes"
	"github.com/MeKo-Tech/panicle/internal/evaluate"
	"github.com/MeKo-Tech/panicle/internal/geometry"
	"github.com/MeKo-Tech/panicle/internal/junction"
)

// Source selects where label boxes come from.
type Source string

const (
	// SourceJunctions places a box on every curated branching junction.
	SourceJunctions Source = "junctions"
	// SourceSkeleton places a box on every junction found in the mask.
	SourceSkeleton Source = "skeleton"
	// SourceGrains spans a box over every edge ending at a grain.
	SourceGrains Source = "grains"
)

// ParseSource accepts a source name in any case.
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceJunctions, SourceSkeleton, SourceGrains:
		return src, nil
	}
	return "", fmt.Errorf("unknown label source %q (use junctions, skeleton or grains)", s)
}

// LabelRequest is the input for one image.
type LabelRequest struct {
	Name   string
	Record *junction.Record
	// Mask is the segmentation mask, required for SourceSkeleton.
	Mask image.Image
}

// LabelResult holds the boxes and encoded labels for one image.
type LabelResult struct {
	Name       string                    `json:"name"`
	Source     Source                    `json:"source"`
	Width      int                       `json:"width"`
	Height     int                       `json:"height"`
	Junctions  []geometry.Point          `json:"junctions"`
	HBB        []geometry.AxisAlignedBox `json:"hbb,omitempty"`
	OBB        []geometry.OrientedBox    `json:"obb,omitempty"`
	Labels     []boxes.Label             `json:"-"`
	Processing time.Duration             `json:"processing_ns"`
}

// EvaluateRequest pairs predicted and ground-truth labels of one image.
type EvaluateRequest struct {
	Name   string
	Width  int
	Height int
	Pred   []boxes.Label
	Truth  []boxes.Label
}

// EvaluateResult is the match outcome of one image. Defined is false when
// precision or recall has no denominator; Score is zero then.
type EvaluateResult struct {
	Name    string          `json:"name"`
	Result  evaluate.Result `json:"result"`
	Score   evaluate.Score  `json:"score"`
	Defined bool            `json:"defined"`
}
