// Package render draws junction boxes on top of panicle images for visual
// checks of generated labels.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/panicle/internal/geometry"
	"github.com/MeKo-Tech/panicle/internal/utils"
	"github.com/disintegration/imaging"
)

// Scene is everything drawn on one image.
type Scene struct {
	HBB       []geometry.AxisAlignedBox
	OBB       []geometry.OrientedBox
	Junctions []geometry.Point
}

// Overlay holds the drawing style.
type Overlay struct {
	BoxColor      color.Color
	JunctionColor color.Color
	Thickness     int
	MarkerSize    int
}

// DefaultOverlay draws red boxes and green junction markers.
func DefaultOverlay() Overlay {
	return Overlay{
		BoxColor:      color.NRGBA{R: 255, A: 255},
		JunctionColor: color.NRGBA{G: 255, A: 255},
		Thickness:     1,
		MarkerSize:    3,
	}
}

// NewOverlay builds an overlay from hex colors; empty strings keep the
// defaults.
func NewOverlay(boxColor, junctionColor string) (Overlay, error) {
	o := DefaultOverlay()
	if boxColor != "" {
		c, err := ParseHexColor(boxColor)
		if err != nil {
			return Overlay{}, err
		}
		o.BoxColor = c
	}
	if junctionColor != "" {
		c, err := ParseHexColor(junctionColor)
		if err != nil {
			return Overlay{}, err
		}
		o.JunctionColor = c
	}
	return o, nil
}

// Draw returns a copy of img, moved to the origin, with the scene on top.
// Coordinates are taken relative to img's top-left corner.
func (o Overlay) Draw(img image.Image, s Scene) *image.NRGBA {
	dst := imaging.Clone(img)
	for _, b := range s.HBB {
		p1, p2 := b.Corners()
		rect := image.Rect(
			int(math.Round(p1.X)), int(math.Round(p1.Y)),
			int(math.Round(p2.X)), int(math.Round(p2.Y)),
		)
		DrawRect(dst, rect, o.BoxColor, o.Thickness)
	}
	for _, b := range s.OBB {
		DrawPolygon(dst, b.Polygon(), o.BoxColor, o.Thickness)
	}
	for _, p := range s.Junctions {
		DrawMarker(dst, p, o.JunctionColor, o.MarkerSize)
	}
	return dst
}

// Save draws the scene and writes the result to path.
func (o Overlay) Save(img image.Image, s Scene, path string) error {
	return utils.SaveImage(path, o.Draw(img, s))
}
