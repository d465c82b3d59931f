package skeleton

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func randomGrid(seed int64, w, h int, density float64) *Grid {
	rng := rand.New(rand.NewSource(seed))
	g := NewGrid(w, h)
	for i := range g.Pix {
		if rng.Float64() < density {
			g.Pix[i] = 1
		}
	}
	return g
}

// TestThin_Properties checks that thinning only removes pixels and is stable.
func TestThin_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("thinning yields a stable subset of the input", prop.ForAll(
		func(seed int64, w, h int, density float64) bool {
			g := randomGrid(seed, w, h, density)
			thin := Thin(g)
			for i, v := range thin.Pix {
				if v == 1 && g.Pix[i] == 0 {
					return false
				}
			}
			again := Thin(thin)
			for i := range again.Pix {
				if again.Pix[i] != thin.Pix[i] {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(3, 40),
		gen.IntRange(3, 40),
		gen.Float64Range(0.1, 0.9),
	))

	properties.TestingRun(t)
}

// TestMergeHighOrder_Properties checks that merging never adds junctions and
// keeps centroids inside the input's bounding box.
func TestMergeHighOrder_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("merged cells stay within the input extent", prop.ForAll(
		func(seed int64, n int) bool {
			rng := rand.New(rand.NewSource(seed))
			cells := make([]Cell, n)
			minR, minC, maxR, maxC := 1<<30, 1<<30, -1, -1
			for i := range cells {
				cells[i] = Cell{Row: rng.Intn(100), Col: rng.Intn(100)}
				minR, maxR = min(minR, cells[i].Row), max(maxR, cells[i].Row)
				minC, maxC = min(minC, cells[i].Col), max(maxC, cells[i].Col)
			}
			merged := MergeHighOrder(cells, 7, 2)
			if len(merged) > len(cells) {
				return false
			}
			for _, c := range merged {
				if c.Row < minR || c.Row > maxR || c.Col < minC || c.Col > maxC {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}
