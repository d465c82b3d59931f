package evaluate

import (
	"fmt"
	"math"
	"sort"

	"github.com/MeKo-Tech/panicle/internal/geometry"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Overlap counts how many fixed-size boxes overlap their nearest neighbour.
type Overlap struct {
	Boxes       int `json:"boxes"`
	Overlapping int `json:"overlapping"`
}

// Add accumulates another image's counts.
func (o Overlap) Add(other Overlap) Overlap {
	return Overlap{Boxes: o.Boxes + other.Boxes, Overlapping: o.Overlapping + other.Overlapping}
}

// Degree returns the overlapping share in percent, or 0 without boxes.
func (o Overlap) Degree() float64 {
	if o.Boxes == 0 {
		return 0
	}
	return float64(o.Overlapping) / float64(o.Boxes) * 100
}

// OverlapDegree checks every w x h box centered on centers against the box
// of its nearest neighbour and counts it as overlapping when the shared area
// is at least percentage (0-100) of one box area. Box half-sizes use integer
// division as pixel boxes do.
func OverlapDegree(centers []geometry.Point, w, h int, percentage float64) (Overlap, error) {
	if w <= 0 || h <= 0 {
		return Overlap{}, fmt.Errorf("%w: box size %dx%d", geometry.ErrInvalidBox, w, h)
	}
	if percentage < 0 || percentage > 100 {
		return Overlap{}, fmt.Errorf("percentage must be within [0, 100], got %g", percentage)
	}
	res := Overlap{Boxes: len(centers)}
	hw, hh := float64(w/2), float64(h/2)
	area := float64(w * h)
	for _, c := range centers {
		_, n, err := geometry.NearestNeighbor(c, centers)
		if err != nil {
			continue
		}
		x1, y1 := math.Max(c.X-hw, n.X-hw), math.Max(c.Y-hh, n.Y-hh)
		x2, y2 := math.Min(c.X+hw, n.X+hw), math.Min(c.Y+hh, n.Y+hh)
		if x1 >= x2 || y1 >= y2 {
			continue
		}
		if (x2-x1)*(y2-y1)/area*100 >= percentage {
			res.Overlapping++
		}
	}
	return res, nil
}

// Histogram is an equal-width histogram of a sample.
type Histogram struct {
	// Dividers has one more entry than Counts; bin i covers
	// [Dividers[i], Dividers[i+1]).
	Dividers []float64 `json:"dividers"`
	Counts   []float64 `json:"counts"`
}

// RiceBins returns the rice-rule bin count for n samples.
func RiceBins(n int) int {
	if n <= 0 {
		return 0
	}
	return int(2 * math.Cbrt(float64(n)))
}

// NewHistogram bins values into bins equal-width bins spanning their range.
// The maximum falls into the last bin. A constant sample is centered in a
// unit-wide range.
func NewHistogram(values []float64, bins int) (Histogram, error) {
	if len(values) == 0 {
		return Histogram{}, fmt.Errorf("%w: no values to bin", geometry.ErrEmptySet)
	}
	if bins <= 0 {
		return Histogram{}, fmt.Errorf("bin count must be positive, got %d", bins)
	}
	x := append([]float64(nil), values...)
	sort.Float64s(x)

	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, x, nil)
	return Histogram{Dividers: dividers, Counts: counts}, nil
}

// Tallest returns the index and range of the most populated bin. Ties keep
// the first bin.
func (h Histogram) Tallest() (int, float64, float64) {
	if len(h.Counts) == 0 {
		return -1, 0, 0
	}
	i := floats.MaxIdx(h.Counts)
	return i, h.Dividers[i], h.Dividers[i+1]
}

// DistanceStats summarizes nearest-neighbour distances between junctions.
type DistanceStats struct {
	Count     int       `json:"count"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Histogram Histogram `json:"histogram"`
}

// JunctionDistances computes the nearest-neighbour distance of every point
// and bins them with the rice rule.
func JunctionDistances(points []geometry.Point) (DistanceStats, error) {
	d, err := geometry.NearestNeighborDistances(points)
	if err != nil {
		return DistanceStats{}, err
	}
	return SummarizeDistances(d)
}

// SummarizeDistances aggregates distances pooled from several images.
func SummarizeDistances(d []float64) (DistanceStats, error) {
	hist, err := NewHistogram(d, RiceBins(len(d)))
	if err != nil {
		return DistanceStats{}, err
	}
	mean, std := stat.MeanStdDev(d, nil)
	if len(d) < 2 {
		std = 0
	}
	return DistanceStats{
		Count:     len(d),
		Mean:      mean,
		StdDev:    std,
		Min:       floats.Min(d),
		Max:       floats.Max(d),
		Histogram: hist,
	}, nil
}
