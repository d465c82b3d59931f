// Package geometry is the numerical kernel shared by junction extraction,
// box synthesis and detection matching: distances, nearest-neighbour search,
// axis-aligned and rotated IoU, and rectangle corner extraction.
//
// Everything here works in image space (origin top-left, y increasing
// downward) and is free of shared state, so it is safe to call from any
// number of goroutines.
package geometry

import (
	"errors"
	"math"
)

var (
	// ErrEmptySet is returned when a search has no candidate to choose from.
	ErrEmptySet = errors.New("empty candidate set")

	// ErrInvalidBox is returned for non-positive box extents or malformed corner tuples.
	ErrInvalidBox = errors.New("invalid box")
)

// Point is a pixel coordinate in image space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance between p1 and p2.
func Distance(p1, p2 Point) float64 {
	return math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
}

// NearestNeighbor scans candidates linearly and returns the closest one to p
// together with its distance. Candidates equal to p are skipped. When several
// candidates share the minimal distance the first one encountered wins, so the
// result only depends on the candidate order.
func NearestNeighbor(p Point, candidates []Point) (float64, Point, error) {
	best := math.Inf(1)
	var neighbor Point
	found := false
	for _, c := range candidates {
		if c == p {
			continue
		}
		if d := Distance(p, c); d < best {
			best = d
			neighbor = c
			found = true
		}
	}
	if !found {
		return 0, Point{}, ErrEmptySet
	}
	return best, neighbor, nil
}

// NearestNeighborDistances returns, for every point, the distance to its
// nearest distinct neighbour in the same set.
func NearestNeighborDistances(points []Point) ([]float64, error) {
	out := make([]float64, len(points))
	for i, p := range points {
		d, _, err := NearestNeighbor(p, points)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}
