// Package boxes turns junction points into fixed-size detection boxes and
// encodes them as normalized label records.
package boxes

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MeKo-Tech/panicle/internal/geometry"
)

// ErrInsufficientJunctions is returned when an orientation needs a neighbour
// and the point set has fewer than two distinct points.
var ErrInsufficientJunctions = errors.New("insufficient junctions")

// AngleMethod selects how an oriented box is rotated towards the nearest
// neighbouring junction.
type AngleMethod int

const (
	// VertexOnLine puts a box corner on the line to the neighbour.
	VertexOnLine AngleMethod = iota + 1
	// MidlineOnLine makes the box's horizontal midline collinear with the
	// line to the neighbour.
	MidlineOnLine
)

// diagonalOffset is the angle between a square's edge and its diagonal.
const diagonalOffset = 45.0

func (m AngleMethod) String() string {
	switch m {
	case VertexOnLine:
		return "vertex-on-line"
	case MidlineOnLine:
		return "midline-on-line"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseAngleMethod accepts the method names and their historical numbers.
func ParseAngleMethod(s string) (AngleMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vertex-on-line", "vertex", "1":
		return VertexOnLine, nil
	case "midline-on-line", "midline", "2":
		return MidlineOnLine, nil
	}
	return 0, fmt.Errorf("unknown angle method %q (use vertex-on-line or midline-on-line)", s)
}

// Synthesizer builds fixed-size boxes around junction points. It holds no
// state besides its settings and is safe for concurrent use.
type Synthesizer struct {
	Width  float64
	Height float64
	Method AngleMethod
}

// Validate checks the box size and method.
func (s Synthesizer) Validate() error {
	if !(s.Width > 0) || !(s.Height > 0) {
		return fmt.Errorf("%w: box size %gx%g", geometry.ErrInvalidBox, s.Width, s.Height)
	}
	if s.Method != 0 && s.Method != VertexOnLine && s.Method != MidlineOnLine {
		return fmt.Errorf("unknown angle method %d", int(s.Method))
	}
	return nil
}

// Horizontal returns one axis-aligned box centered on each point.
func (s Synthesizer) Horizontal(points []geometry.Point) ([]geometry.AxisAlignedBox, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := make([]geometry.AxisAlignedBox, len(points))
	for i, p := range points {
		out[i] = geometry.AxisAlignedBox{CX: p.X, CY: p.Y, W: s.Width, H: s.Height}
	}
	return out, nil
}

// Oriented returns one rotated box centered on each point, turned towards the
// point's nearest neighbour according to the configured method.
func (s Synthesizer) Oriented(points []geometry.Point) ([]geometry.OrientedBox, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	method := s.Method
	if method == 0 {
		method = MidlineOnLine
	}

	out := make([]geometry.OrientedBox, len(points))
	for i, p := range points {
		_, neighbor, err := geometry.NearestNeighbor(p, points)
		if err != nil {
			return nil, fmt.Errorf("%w: junction %d at (%g, %g) has no neighbour: %w",
				ErrInsufficientJunctions, i, p.X, p.Y, err)
		}
		theta := DirectionAngle(p, neighbor)
		if method == VertexOnLine {
			theta -= diagonalOffset
		}
		out[i] = geometry.OrientedBox{Center: p, W: s.Width, H: s.Height, Angle: theta}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no junctions", ErrInsufficientJunctions)
	}
	return out, nil
}

// DirectionAngle returns the undirected angle of the line from p to q in
// degrees, in [0, 180). Angles grow clockwise on screen.
func DirectionAngle(p, q geometry.Point) float64 {
	deg := math.Atan2(q.Y-p.Y, q.X-p.X) * 180 / math.Pi
	if deg < 0 {
		deg += 180
	}
	if deg >= 180 {
		deg -= 180
	}
	return deg
}
