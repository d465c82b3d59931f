package skeleton

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/panicle/internal/geometry"
)

// ErrInvalidSkeletonInput is returned for a missing or empty mask, an empty
// main axis or a non-positive original image size.
var ErrInvalidSkeletonInput = errors.New("invalid skeleton input")

// Config holds the extraction parameters.
type Config struct {
	Threshold      uint8   `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	WorkingSize    int     `mapstructure:"working_size" yaml:"working_size" json:"working_size"`
	MarginBefore   int     `mapstructure:"margin_before" yaml:"margin_before" json:"margin_before"`
	MarginAfter    int     `mapstructure:"margin_after" yaml:"margin_after" json:"margin_after"`
	ClusterRadius  float64 `mapstructure:"cluster_radius" yaml:"cluster_radius" json:"cluster_radius"`
	MinClusterSize int     `mapstructure:"min_cluster_size" yaml:"min_cluster_size" json:"min_cluster_size"`
}

// DefaultConfig returns the parameters the segmentation masks are made for.
func DefaultConfig() Config {
	return Config{
		Threshold:      127,
		WorkingSize:    512,
		MarginBefore:   4,
		MarginAfter:    5,
		ClusterRadius:  7,
		MinClusterSize: 2,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WorkingSize <= 0 {
		return fmt.Errorf("working size must be positive, got %d", c.WorkingSize)
	}
	if c.MarginBefore < 0 || c.MarginAfter < 0 {
		return fmt.Errorf("margins must be non-negative, got %d/%d", c.MarginBefore, c.MarginAfter)
	}
	if !(c.ClusterRadius > 0) {
		return fmt.Errorf("cluster radius must be positive, got %g", c.ClusterRadius)
	}
	if c.MinClusterSize < 1 {
		return fmt.Errorf("min cluster size must be at least 1, got %d", c.MinClusterSize)
	}
	return nil
}

// ResizePoints scales points from a src-sized image to a dst-sized one,
// each axis independently, rounding half away from zero to whole pixels.
func ResizePoints(points []geometry.Point, src, dst image.Point) []geometry.Point {
	out := make([]geometry.Point, len(points))
	for i, p := range points {
		out[i] = geometry.Pt(
			math.Round(p.X/float64(src.X)*float64(dst.X)),
			math.Round(p.Y/float64(src.Y)*float64(dst.Y)),
		)
	}
	return out
}

// MainAxisMask returns a copy of g with everything outside the bounding
// rectangle of mainAxis zeroed. The rectangle is grown by before pixels
// towards the origin and keeps after-1 extra pixels beyond the maximum.
func MainAxisMask(g *Grid, mainAxis []geometry.Point, before, after int) *Grid {
	out := g.Clone()
	if len(mainAxis) == 0 {
		return out
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range mainAxis {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	rowLo, rowHi := int(math.Round(minY))-before, int(math.Round(maxY))+after
	colLo, colHi := int(math.Round(minX))-before, int(math.Round(maxX))+after

	for row := 0; row < out.Height; row++ {
		for col := 0; col < out.Width; col++ {
			if row < rowLo || row >= rowHi || col < colLo || col >= colHi {
				out.Pix[row*out.Width+col] = 0
			}
		}
	}
	return out
}

// Result is the outcome of one extraction.
type Result struct {
	// Junctions in original image coordinates: main-axis junctions first,
	// then merged high-order ones.
	Junctions []geometry.Point
	MainAxis  int
	HighOrder int
	// Detected counts every skeleton junction before the main-axis split
	// and merging.
	Detected int
	Skeleton *Grid
}

// Extractor finds junctions in segmentation masks. It keeps no state
// between calls and is safe for concurrent use.
type Extractor struct {
	cfg Config
}

// NewExtractor validates cfg and returns an extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{cfg: cfg}, nil
}

// Config returns the extractor settings.
func (e *Extractor) Config() Config { return e.cfg }

// Extract returns the junctions of mask in the coordinates of the original
// origW x origH image. mainAxis holds the main-axis junctions in the same
// coordinates, without the end generating point.
func (e *Extractor) Extract(mask image.Image, origW, origH int, mainAxis []geometry.Point) ([]geometry.Point, error) {
	res, err := e.Run(mask, origW, origH, mainAxis)
	if err != nil {
		return nil, err
	}
	return res.Junctions, nil
}

// Run is Extract with the intermediate counts and the skeleton.
func (e *Extractor) Run(mask image.Image, origW, origH int, mainAxis []geometry.Point) (*Result, error) {
	if mask == nil {
		return nil, fmt.Errorf("%w: nil mask", ErrInvalidSkeletonInput)
	}
	if len(mainAxis) == 0 {
		return nil, fmt.Errorf("%w: empty main axis", ErrInvalidSkeletonInput)
	}
	if origW <= 0 || origH <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrInvalidSkeletonInput, origW, origH)
	}

	size := e.cfg.WorkingSize
	grid := Binarize(FitMask(mask, size), e.cfg.Threshold)
	if grid.Count() == 0 {
		return nil, fmt.Errorf("%w: mask has no foreground", ErrInvalidSkeletonInput)
	}

	skel := Thin(grid)
	grid.Release()
	all := DetectJunctions(skel)

	orig := image.Pt(origW, origH)
	working := image.Pt(size, size)
	axis := ResizePoints(mainAxis, orig, working)
	axisGrid := MainAxisMask(skel, axis, e.cfg.MarginBefore, e.cfg.MarginAfter)
	mainCells := DetectJunctions(axisGrid)
	axisGrid.Release()

	onAxis := make(map[Cell]struct{}, len(mainCells))
	for _, c := range mainCells {
		onAxis[c] = struct{}{}
	}
	var high []Cell
	for _, c := range all {
		if _, ok := onAxis[c]; !ok {
			high = append(high, c)
		}
	}
	merged := MergeHighOrder(high, e.cfg.ClusterRadius, e.cfg.MinClusterSize)

	cells := append(append([]Cell(nil), mainCells...), merged...)
	pts := make([]geometry.Point, len(cells))
	for i, c := range cells {
		pts[i] = geometry.Pt(float64(c.Col), float64(c.Row))
	}

	slog.Debug("Skeleton junctions extracted",
		"skeleton_pixels", skel.Count(),
		"detected", len(all),
		"main_axis", len(mainCells),
		"high_order", len(high),
		"merged", len(merged))

	return &Result{
		Junctions: ResizePoints(pts, working, orig),
		MainAxis:  len(mainCells),
		HighOrder: len(merged),
		Detected:  len(all),
		Skeleton:  skel,
	}, nil
}
