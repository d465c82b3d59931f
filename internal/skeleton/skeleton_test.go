package skeleton

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/panicle/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridFromRows(rows ...string) *Grid {
	g := NewGrid(len(rows[0]), len(rows))
	for r, line := range rows {
		for c, ch := range line {
			if ch == '#' {
				g.Set(r, c, 1)
			}
		}
	}
	return g
}

func drawLine(img *image.Gray, x0, y0, x1, y1 int) {
	for y := min(y0, y1); y <= max(y0, y1); y++ {
		for x := min(x0, x1); x <= max(x0, x1); x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
}

func TestCrossingNumber(t *testing.T) {
	tests := []struct {
		name string
		grid *Grid
		cn   int
	}{
		{"straight line", gridFromRows(
			".....",
			".....",
			"#####",
			".....",
			".....",
		), 2},
		{"line end", gridFromRows(
			".....",
			".....",
			"..###",
			".....",
			".....",
		), 1},
		{"T junction", gridFromRows(
			".....",
			".....",
			"#####",
			"..#..",
			"..#..",
		), 3},
		{"cross", gridFromRows(
			"..#..",
			"..#..",
			"#####",
			"..#..",
			"..#..",
		), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cn, ok := CrossingNumber(tt.grid, 2, 2)
			require.True(t, ok)
			assert.Equal(t, tt.cn, cn)
		})
	}
}

func TestCrossingNumber_Bounds(t *testing.T) {
	g := NewGrid(5, 5)
	for _, c := range []Cell{{0, 0}, {0, 2}, {4, 2}, {2, 4}, {-1, 2}, {2, 7}} {
		_, ok := CrossingNumber(g, c.Row, c.Col)
		assert.False(t, ok, "cell %v", c)
	}
}

func TestDetectJunctions(t *testing.T) {
	g := gridFromRows(
		".......",
		".......",
		"#######",
		"...#...",
		"...#...",
		"...#...",
		".......",
	)
	assert.Equal(t, []Cell{{Row: 2, Col: 3}}, DetectJunctions(g))

	// Junction-like pixels on the border are skipped.
	border := gridFromRows(
		"#####",
		"..#..",
		".....",
	)
	assert.Empty(t, DetectJunctions(border))
}

func TestThin(t *testing.T) {
	t.Run("one pixel lines are kept", func(t *testing.T) {
		g := gridFromRows(
			"..........",
			".########.",
			"....#.....",
			"....#.....",
			"..........",
		)
		assert.Equal(t, g.Pix, Thin(g).Pix)
	})

	t.Run("thick bar shrinks to a subset", func(t *testing.T) {
		g := NewGrid(50, 20)
		for r := 8; r <= 12; r++ {
			for c := 5; c <= 44; c++ {
				g.Set(r, c, 1)
			}
		}
		thin := Thin(g)
		assert.Greater(t, thin.Count(), 0)
		assert.Less(t, thin.Count(), g.Count())
		for i, v := range thin.Pix {
			if v == 1 {
				assert.Equal(t, uint8(1), g.Pix[i])
			}
		}
		// Interior columns keep a single pixel.
		for c := 15; c <= 35; c++ {
			n := 0
			for r := 0; r < thin.Height; r++ {
				n += int(thin.At(r, c))
			}
			assert.Equal(t, 1, n, "column %d", c)
		}
	})

	t.Run("input is not modified", func(t *testing.T) {
		g := NewGrid(6, 6)
		for i := range g.Pix {
			g.Pix[i] = 1
		}
		Thin(g)
		assert.Equal(t, 36, g.Count())
	})
}

func TestBinarize(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	img.Pix = []uint8{127, 128, 255}
	g := Binarize(img, 127)
	assert.Equal(t, []uint8{0, 1, 1}, g.Pix)

	rgb := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	rgb.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	rgb.Set(1, 0, color.NRGBA{A: 255})
	assert.Equal(t, []uint8{1, 0}, Binarize(rgb, 127).Pix)
}

func TestFitMask(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	assert.Same(t, img, FitMask(img, 8))

	img.SetGray(0, 0, color.Gray{Y: 255})
	out := FitMask(img, 16)
	assert.Equal(t, 16, out.Bounds().Dx())
	assert.Equal(t, 16, out.Bounds().Dy())

	// Nearest-neighbour sampling keeps the mask binary.
	g := Binarize(out, 127)
	assert.Equal(t, 4, g.Count())
}

func TestGridImage(t *testing.T) {
	g := gridFromRows("#.", ".#")
	img := g.Image()
	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pix)
	assert.Equal(t, g.Pix, Binarize(img, 127).Pix)
}

func TestResizePoints(t *testing.T) {
	pts := []geometry.Point{geometry.Pt(10, 20), geometry.Pt(1, 1)}
	out := ResizePoints(pts, image.Pt(100, 200), image.Pt(512, 512))
	assert.Equal(t, geometry.Pt(51, 51), out[0])
	assert.Equal(t, geometry.Pt(5, 3), out[1])

	half := ResizePoints([]geometry.Point{geometry.Pt(1, 3)}, image.Pt(4, 4), image.Pt(2, 2))
	assert.Equal(t, geometry.Pt(1, 2), half[0], "halves round away from zero")
}

func TestMainAxisMask(t *testing.T) {
	full := NewGrid(20, 20)
	for i := range full.Pix {
		full.Pix[i] = 1
	}

	masked := MainAxisMask(full, []geometry.Point{geometry.Pt(10, 5), geometry.Pt(10, 12)}, 4, 5)
	assert.Equal(t, 16*9, masked.Count())
	assert.Equal(t, uint8(1), masked.At(1, 6))
	assert.Equal(t, uint8(0), masked.At(0, 6))
	assert.Equal(t, uint8(1), masked.At(16, 14))
	assert.Equal(t, uint8(0), masked.At(17, 14))
	assert.Equal(t, uint8(0), masked.At(10, 15))
	assert.Equal(t, 400, full.Count(), "input is not modified")

	corner := MainAxisMask(full, []geometry.Point{geometry.Pt(1, 1)}, 4, 5)
	assert.Equal(t, 36, corner.Count())
}

func TestMergeHighOrder(t *testing.T) {
	cells := []Cell{{10, 10}, {50, 50}, {10, 14}, {100, 100}, {13, 10}, {100, 105}}
	merged := MergeHighOrder(cells, 7, 2)
	assert.Equal(t, []Cell{{50, 50}, {11, 11}, {100, 103}}, merged)

	assert.Nil(t, MergeHighOrder(nil, 7, 2))
}

func TestMergeHighOrder_RadiusInclusive(t *testing.T) {
	assert.Equal(t, []Cell{{0, 4}}, MergeHighOrder([]Cell{{0, 0}, {0, 7}}, 7, 2))
	assert.Equal(t, []Cell{{0, 0}, {0, 8}}, MergeHighOrder([]Cell{{0, 0}, {0, 8}}, 7, 2))
}

func TestMergeHighOrder_Chain(t *testing.T) {
	// Density reachability joins a chain even when its ends are far apart.
	cells := []Cell{{0, 0}, {0, 6}, {0, 12}, {0, 18}}
	assert.Equal(t, []Cell{{0, 9}}, MergeHighOrder(cells, 7, 2))

	// With a higher density requirement the ends become border points.
	assert.Equal(t, []Cell{{0, 9}}, MergeHighOrder(cells, 7, 3))
	assert.Equal(t, cells, MergeHighOrder(cells, 7, 4))
}

func panicleMask(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	drawLine(img, 32, 5, 32, 58)  // main axis
	drawLine(img, 32, 20, 55, 20) // primary branch to the right
	drawLine(img, 10, 40, 32, 40) // primary branch to the left
	drawLine(img, 48, 20, 48, 30) // secondary branch
	return img
}

func TestExtractor_Extract(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkingSize = 64
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	axis := []geometry.Point{geometry.Pt(64, 10), geometry.Pt(64, 116)}
	res, err := e.Run(panicleMask(64), 128, 128, axis)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Detected)
	assert.Equal(t, 2, res.MainAxis)
	assert.Equal(t, 1, res.HighOrder)
	assert.Equal(t, []geometry.Point{
		geometry.Pt(64, 40),
		geometry.Pt(64, 80),
		geometry.Pt(96, 40),
	}, res.Junctions)

	pts, err := e.Extract(panicleMask(64), 128, 128, axis)
	require.NoError(t, err)
	assert.Equal(t, res.Junctions, pts, "extraction is deterministic")
}

func TestExtractor_ResizesMask(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkingSize = 64
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	// A 128px mask with 2px lines samples down to the same 1px skeleton.
	big := image.NewGray(image.Rect(0, 0, 128, 128))
	small := panicleMask(64)
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			big.SetGray(x, y, small.GrayAt(x/2, y/2))
		}
	}
	axis := []geometry.Point{geometry.Pt(64, 10), geometry.Pt(64, 116)}
	pts, err := e.Extract(big, 128, 128, axis)
	require.NoError(t, err)
	assert.Len(t, pts, 3)
}

func TestExtractor_InvalidInput(t *testing.T) {
	e, err := NewExtractor(DefaultConfig())
	require.NoError(t, err)
	axis := []geometry.Point{geometry.Pt(10, 10)}

	_, err = e.Extract(nil, 100, 100, axis)
	require.ErrorIs(t, err, ErrInvalidSkeletonInput)

	_, err = e.Extract(image.NewGray(image.Rect(0, 0, 512, 512)), 100, 100, axis)
	require.ErrorIs(t, err, ErrInvalidSkeletonInput)

	_, err = e.Extract(panicleMask(512), 100, 100, nil)
	require.ErrorIs(t, err, ErrInvalidSkeletonInput)

	_, err = e.Extract(panicleMask(512), 0, 100, axis)
	require.ErrorIs(t, err, ErrInvalidSkeletonInput)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	for _, mutate := range []func(*Config){
		func(c *Config) { c.WorkingSize = 0 },
		func(c *Config) { c.MarginBefore = -1 },
		func(c *Config) { c.ClusterRadius = 0 },
		func(c *Config) { c.MinClusterSize = 0 },
	} {
		cfg := DefaultConfig()
		mutate(&cfg)
		_, err := NewExtractor(cfg)
		require.Error(t, err)
	}
}
