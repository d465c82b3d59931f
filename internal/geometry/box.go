package geometry

import (
	"fmt"
	"math"
)

// AxisAlignedBox is a horizontal box stored as center and extent.
type AxisAlignedBox struct {
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
	W  float64 `json:"w"`
	H  float64 `json:"h"`
}

// NewAxisAlignedBox builds a box from its center and extent.
func NewAxisAlignedBox(cx, cy, w, h float64) (AxisAlignedBox, error) {
	b := AxisAlignedBox{CX: cx, CY: cy, W: w, H: h}
	if err := b.Validate(); err != nil {
		return AxisAlignedBox{}, err
	}
	return b, nil
}

// BoxFromCorners builds a box from two opposite raw corners. The corners are
// normalized with min/max, so their order does not matter.
func BoxFromCorners(x1, y1, x2, y2 float64) (AxisAlignedBox, error) {
	minX, maxX := math.Min(x1, x2), math.Max(x1, x2)
	minY, maxY := math.Min(y1, y2), math.Max(y1, y2)
	return NewAxisAlignedBox((minX+maxX)/2, (minY+maxY)/2, maxX-minX, maxY-minY)
}

// Validate reports ErrInvalidBox unless both extents are finite and positive.
func (b AxisAlignedBox) Validate() error {
	if !(b.W > 0) || !(b.H > 0) || math.IsInf(b.W, 0) || math.IsInf(b.H, 0) {
		return fmt.Errorf("%w: extent %gx%g", ErrInvalidBox, b.W, b.H)
	}
	if math.IsNaN(b.CX) || math.IsNaN(b.CY) {
		return fmt.Errorf("%w: center is not a number", ErrInvalidBox)
	}
	return nil
}

// Corners returns the top-left and bottom-right corners, the form used for
// rendering.
func (b AxisAlignedBox) Corners() (Point, Point) {
	return Point{X: b.CX - b.W/2, Y: b.CY - b.H/2}, Point{X: b.CX + b.W/2, Y: b.CY + b.H/2}
}

// Area returns the area spanned by the corners.
func (b AxisAlignedBox) Area() float64 {
	p1, p2 := b.Corners()
	return (p2.X - p1.X) * (p2.Y - p1.Y)
}

// Polygon returns the four corners clockwise in image space starting top-left.
func (b AxisAlignedBox) Polygon() []Point {
	p1, p2 := b.Corners()
	return []Point{p1, {X: p2.X, Y: p1.Y}, p2, {X: p1.X, Y: p2.Y}}
}

// intersectionArea returns the overlap area of a and b, zero when disjoint.
func intersectionArea(a, b AxisAlignedBox) float64 {
	a1, a2 := a.Corners()
	b1, b2 := b.Corners()
	iw := math.Min(a2.X, b2.X) - math.Max(a1.X, b1.X)
	ih := math.Min(a2.Y, b2.Y) - math.Max(a1.Y, b1.Y)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	return iw * ih
}

// AxisAlignedIoU returns the intersection over union of two horizontal boxes.
// Disjoint or touching boxes yield 0 without dividing.
func AxisAlignedIoU(a, b AxisAlignedBox) float64 {
	inter := intersectionArea(a, b)
	if inter == 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return clamp01(inter / union)
}

// OverlapRatio returns the overlap of a and b relative to the area of a.
func OverlapRatio(a, b AxisAlignedBox) float64 {
	area := a.Area()
	if area <= 0 {
		return 0
	}
	return intersectionArea(a, b) / area
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
