package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/panicle/internal/geometry"
)

// ParseHexColor parses colors like "#RRGGBB" or "RRGGBB".
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("color %q: expected #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: expected #RRGGBB", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil //nolint:gosec // G115: masked to 8 bits
}

// DrawRect draws an axis-aligned rectangle outline. Parts outside dst are
// clipped.
func DrawRect(dst draw.Image, rect image.Rectangle, col color.Color, thickness int) {
	thickness = max(thickness, 1)
	rect = rect.Canon()
	if rect.Intersect(dst.Bounds()).Empty() {
		return
	}
	for t := range thickness {
		yTop, yBot := rect.Min.Y+t, rect.Max.Y-1-t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			setClipped(dst, x, yTop, col)
			setClipped(dst, x, yBot, col)
		}
		xLeft, xRight := rect.Min.X+t, rect.Max.X-1-t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			setClipped(dst, xLeft, y, col)
			setClipped(dst, xRight, y, col)
		}
	}
}

// DrawPolygon draws connected line segments and closes the polygon.
func DrawPolygon(dst draw.Image, pts []geometry.Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	ip := make([]image.Point, len(pts))
	for i, p := range pts {
		ip[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	for i := range ip {
		drawLine(dst, ip[i], ip[(i+1)%len(ip)], col, thickness)
	}
}

// DrawMarker draws a filled square of the given size centered on p.
func DrawMarker(dst draw.Image, p geometry.Point, col color.Color, size int) {
	drawThickPoint(dst, int(math.Round(p.X)), int(math.Round(p.Y)), col, size)
}

// drawLine is Bresenham with a square pen.
func drawLine(dst draw.Image, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	dx := abs(b.X - x0)
	dy := -abs(b.Y - y0)
	sx, sy := sign(b.X-x0), sign(b.Y-y0)
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == b.X && y0 == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst draw.Image, x, y int, col color.Color, thickness int) {
	r := (max(thickness, 1) - 1) / 2
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			setClipped(dst, xx, yy, col)
		}
	}
}

func setClipped(dst draw.Image, x, y int, col color.Color) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.Set(x, y, col)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	if v < 0 {
		return -1
	}
	return 1
}
