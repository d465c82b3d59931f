package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// DrawLine sets a one pixel wide horizontal or vertical segment to white.
// Both endpoints are included.
func DrawLine(img *image.Gray, x0, y0, x1, y1 int) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
}

// PanicleMask draws the skeleton of PanicleRecord at size x size. Line
// positions assume size 64, the record scaled by one half.
func PanicleMask(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	DrawLine(img, 32, 5, 32, 58)
	DrawLine(img, 32, 20, 55, 20)
	DrawLine(img, 10, 40, 32, 40)
	DrawLine(img, 48, 20, 48, 30)
	return img
}

// CreateTestImage returns a width x height image filled with c.
func CreateTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// SaveImage encodes img by the extension of path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path))
}

// LoadImage decodes the image at path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	require.NoError(t, err, "open %s", path)
	return img
}
