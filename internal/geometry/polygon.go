package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// PolygonArea returns the unsigned area of a simple polygon.
func PolygonArea(poly []Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	return math.Abs(planar.Area(toRing(poly)))
}

// PolygonIoU returns the intersection over union of two convex polygons. The
// vertex winding of either input does not matter. Polygons with fewer than
// three vertices or zero area yield 0.
func PolygonIoU(p, q []Point) float64 {
	areaP, areaQ := PolygonArea(p), PolygonArea(q)
	if areaP == 0 || areaQ == 0 {
		return 0
	}
	inter := PolygonArea(IntersectConvex(p, q))
	if inter == 0 {
		return 0
	}
	union := areaP + areaQ - inter
	if union <= 0 {
		return 0
	}
	return clamp01(inter / union)
}

// IntersectConvex clips subject by the convex polygon clip with the
// Sutherland-Hodgman algorithm. It returns nil when nothing is left.
func IntersectConvex(subject, clip []Point) []Point {
	if len(subject) < 3 || len(clip) < 3 {
		return nil
	}
	clip = positiveWinding(clip)

	output := append([]Point(nil), subject...)
	for i := range clip {
		if len(output) == 0 {
			return nil
		}
		output = clipByEdge(output, clip[i], clip[(i+1)%len(clip)])
	}
	if len(output) < 3 {
		return nil
	}
	return output
}

func clipByEdge(poly []Point, e1, e2 Point) []Point {
	var clipped []Point
	for i := range poly {
		cur := poly[i]
		next := poly[(i+1)%len(poly)]
		curIn := insideEdge(cur, e1, e2)
		nextIn := insideEdge(next, e1, e2)
		switch {
		case curIn && nextIn:
			clipped = append(clipped, cur)
		case curIn:
			clipped = append(clipped, cur)
			if p, ok := lineIntersection(cur, next, e1, e2); ok {
				clipped = append(clipped, p)
			}
		case nextIn:
			if p, ok := lineIntersection(cur, next, e1, e2); ok {
				clipped = append(clipped, p)
			}
		}
	}
	return clipped
}

func insideEdge(p, e1, e2 Point) bool {
	return (e2.X-e1.X)*(p.Y-e1.Y)-(e2.Y-e1.Y)*(p.X-e1.X) >= 0
}

func lineIntersection(p1, p2, e1, e2 Point) (Point, bool) {
	denom := (p1.X-p2.X)*(e1.Y-e2.Y) - (p1.Y-p2.Y)*(e1.X-e2.X)
	if math.Abs(denom) < 1e-12 {
		return Point{}, false
	}
	t := ((p1.X-e1.X)*(e1.Y-e2.Y) - (p1.Y-e1.Y)*(e1.X-e2.X)) / denom
	return Point{X: p1.X + t*(p2.X-p1.X), Y: p1.Y + t*(p2.Y-p1.Y)}, true
}

// positiveWinding returns poly with a positive shoelace sum, reversing it if
// needed, so that insideEdge holds for interior points.
func positiveWinding(poly []Point) []Point {
	if planar.Area(toRing(poly)) >= 0 {
		return poly
	}
	out := make([]Point, len(poly))
	for i, p := range poly {
		out[len(poly)-1-i] = p
	}
	return out
}

func toRing(poly []Point) orb.Ring {
	ring := make(orb.Ring, 0, len(poly)+1)
	for _, p := range poly {
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	if len(poly) > 0 && poly[0] != poly[len(poly)-1] {
		ring = append(ring, orb.Point{poly[0].X, poly[0].Y})
	}
	return ring
}
