package boxes

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/panicle/internal/geometry"
	"github.com/MeKo-Tech/panicle/internal/junction"
)

// Grain boxes span the edge leading to a terminal junction. Nearly flat
// extents are padded so the box is not a sliver.
const (
	grainNarrowLimit = 10
	grainShortLimit  = 25
	grainNarrowPad   = 25
	grainShortPad    = 10
)

// grainPad returns the padding applied on each side of an extent.
func grainPad(extent float64) float64 {
	switch {
	case extent <= grainNarrowLimit:
		return grainNarrowPad
	case extent < grainShortLimit:
		return grainShortPad
	default:
		return 0
	}
}

// GrainBox returns the box spanned by a grain edge. The vertical extent is
// padded first; only edges tall enough to need no vertical padding get
// horizontal padding.
func GrainBox(e junction.Edge) (geometry.AxisAlignedBox, error) {
	minX, maxX := math.Min(e.X1, e.X2), math.Max(e.X1, e.X2)
	minY, maxY := math.Min(e.Y1, e.Y2), math.Max(e.Y1, e.Y2)

	if pad := grainPad(maxY - minY); pad > 0 {
		minY, maxY = minY-pad, maxY+pad
	} else if pad := grainPad(maxX - minX); pad > 0 {
		minX, maxX = minX-pad, maxX+pad
	}
	return geometry.BoxFromCorners(minX, minY, maxX, maxY)
}

// GrainBoxes converts every grain edge into a box.
func GrainBoxes(edges []junction.Edge) ([]geometry.AxisAlignedBox, error) {
	out := make([]geometry.AxisAlignedBox, 0, len(edges))
	for i, e := range edges {
		b, err := GrainBox(e)
		if err != nil {
			return nil, fmt.Errorf("grain %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}
