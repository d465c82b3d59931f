package skeleton

// CrossingNumber returns half the number of 0/1 transitions around the
// 8-neighbourhood of (row, col), walked counter-clockwise from east. ok is
// false for cells on the border or outside the grid, where the
// neighbourhood is incomplete.
func CrossingNumber(g *Grid, row, col int) (cn int, ok bool) {
	if row < 1 || col < 1 || row >= g.Height-1 || col >= g.Width-1 {
		return 0, false
	}
	p := [8]int{
		int(g.At(row, col+1)),
		int(g.At(row-1, col+1)),
		int(g.At(row-1, col)),
		int(g.At(row-1, col-1)),
		int(g.At(row, col-1)),
		int(g.At(row+1, col-1)),
		int(g.At(row+1, col)),
		int(g.At(row+1, col+1)),
	}
	sum := 0
	for i := range p {
		d := p[(i+1)%8] - p[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / 2, true
}

// IsJunction reports whether a crossing number marks a branching point.
func IsJunction(cn int) bool {
	return cn == 3 || cn == 4
}

// DetectJunctions returns every foreground cell whose crossing number is 3
// or 4, in row-major order. Border cells are skipped.
func DetectJunctions(g *Grid) []Cell {
	var out []Cell
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if g.Pix[row*g.Width+col] == 0 {
				continue
			}
			cn, ok := CrossingNumber(g, row, col)
			if ok && IsJunction(cn) {
				out = append(out, Cell{Row: row, Col: col})
			}
		}
	}
	return out
}
