package geometry

import (
	"fmt"
	"math"
)

// tieEpsilon absorbs rounding noise when comparing corner coordinates.
const tieEpsilon = 1e-9

// OrientedBox is a rotated rectangle. Angle is in degrees in image
// coordinates, so a positive angle turns the box visually clockwise.
type OrientedBox struct {
	Center Point   `json:"center"`
	W      float64 `json:"w"`
	H      float64 `json:"h"`
	Angle  float64 `json:"angle"`
}

// Validate reports ErrInvalidBox unless both extents are finite and positive.
func (b OrientedBox) Validate() error {
	if !(b.W > 0) || !(b.H > 0) || math.IsInf(b.W, 0) || math.IsInf(b.H, 0) {
		return fmt.Errorf("%w: extent %gx%g", ErrInvalidBox, b.W, b.H)
	}
	if math.IsNaN(b.Angle) || math.IsInf(b.Angle, 0) {
		return fmt.Errorf("%w: angle %g", ErrInvalidBox, b.Angle)
	}
	return nil
}

// corners returns the rotated corners in clockwise image order, starting
// from the corner that is top-left before rotation.
func (b OrientedBox) corners() [4]Point {
	rad := b.Angle * math.Pi / 180
	sin, cos := math.Sincos(rad)
	hw, hh := b.W/2, b.H/2
	local := [4]Point{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	var out [4]Point
	for i, l := range local {
		out[i] = Point{
			X: b.Center.X + l.X*cos - l.Y*sin,
			Y: b.Center.Y + l.X*sin + l.Y*cos,
		}
	}
	return out
}

// RectCorners returns the four corners of box clockwise in image space in a
// fixed order: P1 is the topmost corner (smallest y, ties broken by smallest x)
// and P0 its counter-clockwise predecessor, which is the leftmost corner.
// P2 and P3 follow clockwise (rightmost, then bottommost).
func RectCorners(box OrientedBox) [4]Point {
	c := box.corners()
	top := 0
	for i := 1; i < 4; i++ {
		dy := c[i].Y - c[top].Y
		if dy < -tieEpsilon || (math.Abs(dy) <= tieEpsilon && c[i].X < c[top].X) {
			top = i
		}
	}
	var out [4]Point
	for i := range out {
		out[i] = c[(top+3+i)%4]
	}
	return out
}

// Polygon returns the corners of b in the RectCorners order.
func (b OrientedBox) Polygon() []Point {
	c := RectCorners(b)
	return c[:]
}

// Area returns the rectangle area.
func (b OrientedBox) Area() float64 {
	return b.W * b.H
}

// OrientedIoU returns the intersection over union of two rotated boxes using
// exact convex polygon clipping. Degenerate boxes yield 0.
func OrientedIoU(a, b OrientedBox) float64 {
	if a.Validate() != nil || b.Validate() != nil {
		return 0
	}
	if a == b {
		return 1
	}
	// Clip in a canonical order so the result is exactly symmetric.
	if lessOriented(b, a) {
		a, b = b, a
	}
	return PolygonIoU(a.Polygon(), b.Polygon())
}

func lessOriented(a, b OrientedBox) bool {
	ka := [5]float64{a.Center.X, a.Center.Y, a.W, a.H, a.Angle}
	kb := [5]float64{b.Center.X, b.Center.Y, b.W, b.H, b.Angle}
	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return false
}
