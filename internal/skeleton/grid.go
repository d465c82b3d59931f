// Package skeleton extracts junction points from a binary segmentation mask
// by thinning it to a one-pixel skeleton and classifying skeleton pixels by
// their crossing number.
package skeleton

import (
	"image"

	"github.com/MeKo-Tech/panicle/internal/mempool"
	"github.com/disintegration/imaging"
)

// Cell addresses one grid pixel by row and column.
type Cell struct {
	Row int
	Col int
}

// Grid is a binary image stored row-major with values 0 or 1.
type Grid struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewGrid returns an all-zero grid. Its pixels come from a shared pool;
// call Release once a scratch grid is no longer referenced.
func NewGrid(width, height int) *Grid {
	return &Grid{Width: width, Height: height, Pix: mempool.GetBytes(width * height)}
}

// Release hands the pixel buffer back to the pool. The grid must not be
// used afterwards.
func (g *Grid) Release() {
	mempool.PutBytes(g.Pix)
	g.Pix = nil
}

// In reports whether the cell lies inside the grid.
func (g *Grid) In(row, col int) bool {
	return row >= 0 && row < g.Height && col >= 0 && col < g.Width
}

// At returns the cell value, or 0 outside the grid.
func (g *Grid) At(row, col int) uint8 {
	if !g.In(row, col) {
		return 0
	}
	return g.Pix[row*g.Width+col]
}

// Set stores v (normalized to 0 or 1). Cells outside the grid are ignored.
func (g *Grid) Set(row, col int, v uint8) {
	if !g.In(row, col) {
		return
	}
	if v != 0 {
		v = 1
	}
	g.Pix[row*g.Width+col] = v
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{Width: g.Width, Height: g.Height, Pix: mempool.GetBytes(len(g.Pix))}
	copy(out.Pix, g.Pix)
	return out
}

// Count returns the number of foreground cells.
func (g *Grid) Count() int {
	n := 0
	for _, v := range g.Pix {
		n += int(v)
	}
	return n
}

// Image renders the grid as white foreground on black.
func (g *Grid) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for i, v := range g.Pix {
		if v != 0 {
			img.Pix[(i/g.Width)*img.Stride+i%g.Width] = 255
		}
	}
	return img
}

// Binarize converts img to gray and marks every pixel strictly brighter
// than threshold as foreground.
func Binarize(img image.Image, threshold uint8) *Grid {
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	gray := imaging.Grayscale(img)
	for row := 0; row < g.Height; row++ {
		off := row * gray.Stride
		for col := 0; col < g.Width; col++ {
			if gray.Pix[off+col*4] > threshold {
				g.Pix[row*g.Width+col] = 1
			}
		}
	}
	return g
}

// FitMask resizes img to size x size with nearest-neighbour sampling so the
// mask stays binary. Images already at that size are returned unchanged.
func FitMask(img image.Image, size int) image.Image {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return img
	}
	return imaging.Resize(img, size, size, imaging.NearestNeighbor)
}
