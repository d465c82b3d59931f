package skeleton

import "github.com/MeKo-Tech/panicle/internal/mempool"

// Thin reduces the foreground of g to a one-pixel wide skeleton with the
// Zhang-Suen algorithm and returns a new grid. Pixels outside the grid count
// as background. The two sub-iterations repeat until nothing changes.
func Thin(g *Grid) *Grid {
	out := g.Clone()
	marked := mempool.GetInts(out.Count())
	defer func() { mempool.PutInts(marked) }()
	for {
		changed := false
		for step := 0; step < 2; step++ {
			marked = marked[:0]
			for row := 0; row < out.Height; row++ {
				for col := 0; col < out.Width; col++ {
					if out.Pix[row*out.Width+col] == 0 {
						continue
					}
					if removable(out, row, col, step) {
						marked = append(marked, row*out.Width+col)
					}
				}
			}
			for _, idx := range marked {
				out.Pix[idx] = 0
			}
			if len(marked) > 0 {
				changed = true
			}
		}
		if !changed {
			return out
		}
	}
}

// removable applies the Zhang-Suen deletion test. Neighbours are named
// clockwise from north: p2 N, p3 NE, p4 E, p5 SE, p6 S, p7 SW, p8 W, p9 NW.
func removable(g *Grid, row, col, step int) bool {
	n := [8]uint8{
		g.At(row-1, col),
		g.At(row-1, col+1),
		g.At(row, col+1),
		g.At(row+1, col+1),
		g.At(row+1, col),
		g.At(row+1, col-1),
		g.At(row, col-1),
		g.At(row-1, col-1),
	}

	b := 0
	a := 0
	for i := range n {
		b += int(n[i])
		if n[i] == 0 && n[(i+1)%8] == 1 {
			a++
		}
	}
	if b < 2 || b > 6 || a != 1 {
		return false
	}

	p2, p4, p6, p8 := n[0], n[2], n[4], n[6]
	if step == 0 {
		return p2*p4*p6 == 0 && p4*p6*p8 == 0
	}
	return p2*p4*p8 == 0 && p2*p6*p8 == 0
}
