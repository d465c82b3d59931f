package geometry

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genAxisAlignedBox() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-200, 200),
		gen.Float64Range(-200, 200),
		gen.Float64Range(1, 80),
		gen.Float64Range(1, 80),
	).Map(func(vals []interface{}) AxisAlignedBox {
		return AxisAlignedBox{
			CX: vals[0].(float64),
			CY: vals[1].(float64),
			W:  vals[2].(float64),
			H:  vals[3].(float64),
		}
	})
}

func genOrientedBox() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
		gen.Float64Range(1, 60),
		gen.Float64Range(1, 60),
		gen.Float64Range(-180, 180),
	).Map(func(vals []interface{}) OrientedBox {
		return OrientedBox{
			Center: Pt(vals[0].(float64), vals[1].(float64)),
			W:      vals[2].(float64),
			H:      vals[3].(float64),
			Angle:  vals[4].(float64),
		}
	})
}

func TestAxisAlignedIoU_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("symmetric", prop.ForAll(
		func(a, b AxisAlignedBox) bool {
			return AxisAlignedIoU(a, b) == AxisAlignedIoU(b, a)
		},
		genAxisAlignedBox(), genAxisAlignedBox(),
	))

	properties.Property("bounded by [0,1]", prop.ForAll(
		func(a, b AxisAlignedBox) bool {
			iou := AxisAlignedIoU(a, b)
			return iou >= 0 && iou <= 1
		},
		genAxisAlignedBox(), genAxisAlignedBox(),
	))

	properties.Property("identity is 1", prop.ForAll(
		func(a AxisAlignedBox) bool {
			return AxisAlignedIoU(a, a) == 1
		},
		genAxisAlignedBox(),
	))

	properties.Property("disjoint boxes yield 0", prop.ForAll(
		func(a AxisAlignedBox, gap float64) bool {
			b := a
			b.CX += a.W + gap
			return AxisAlignedIoU(a, b) == 0
		},
		genAxisAlignedBox(), gen.Float64Range(0.5, 100),
	))

	properties.TestingRun(t)
}

func TestOrientedIoU_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("symmetric", prop.ForAll(
		func(a, b OrientedBox) bool {
			return OrientedIoU(a, b) == OrientedIoU(b, a)
		},
		genOrientedBox(), genOrientedBox(),
	))

	properties.Property("bounded by [0,1]", prop.ForAll(
		func(a, b OrientedBox) bool {
			iou := OrientedIoU(a, b)
			return iou >= 0 && iou <= 1
		},
		genOrientedBox(), genOrientedBox(),
	))

	properties.Property("identity is 1", prop.ForAll(
		func(a OrientedBox) bool {
			return OrientedIoU(a, a) == 1
		},
		genOrientedBox(),
	))

	properties.Property("boxes further apart than their diagonals yield 0", prop.ForAll(
		func(a OrientedBox, gap float64) bool {
			b := a
			b.Angle += 30
			b.Center.X += a.W + a.H + gap
			return OrientedIoU(a, b) == 0
		},
		genOrientedBox(), gen.Float64Range(0.5, 100),
	))

	properties.Property("corners enclose the box area", prop.ForAll(
		func(a OrientedBox) bool {
			c := RectCorners(a)
			area := PolygonArea(c[:])
			diff := area - a.Area()
			return diff < 1e-6*a.Area() && diff > -1e-6*a.Area()
		},
		genOrientedBox(),
	))

	properties.TestingRun(t)
}
