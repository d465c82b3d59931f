package skeleton

import (
	"math"
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
)

const (
	unvisited = -2
	noise     = -1
)

// MergeHighOrder clusters nearby junction cells with DBSCAN (neighbourhood
// radius inclusive, minPts counting the cell itself) and replaces each
// cluster by its centroid rounded to the nearest pixel. Noise cells are
// returned first in input order, followed by one centroid per cluster in
// discovery order.
func MergeHighOrder(cells []Cell, radius float64, minPts int) []Cell {
	if len(cells) == 0 {
		return nil
	}
	labels := dbscan(cells, radius, minPts)

	var out []Cell
	clusters := 0
	for i, l := range labels {
		if l == noise {
			out = append(out, cells[i])
		}
		if l+1 > clusters {
			clusters = l + 1
		}
	}

	sumRow := make([]float64, clusters)
	sumCol := make([]float64, clusters)
	count := make([]float64, clusters)
	for i, l := range labels {
		if l < 0 {
			continue
		}
		sumRow[l] += float64(cells[i].Row)
		sumCol[l] += float64(cells[i].Col)
		count[l]++
	}
	for c := 0; c < clusters; c++ {
		out = append(out, Cell{
			Row: int(math.Round(sumRow[c] / count[c])),
			Col: int(math.Round(sumCol[c] / count[c])),
		})
	}
	return out
}

// dbscan labels every cell with its cluster index or noise. Neighbour
// candidates come from a flatbush index over the cell coordinates and are
// filtered by exact distance.
func dbscan(cells []Cell, radius float64, minPts int) []int {
	fb := flatbush.NewFlatbush[float64]()
	fb.Reserve(len(cells))
	for _, c := range cells {
		x, y := float64(c.Col), float64(c.Row)
		fb.Add(x, y, x, y)
	}
	fb.Finish()

	var buf []int
	neighbours := func(i int) []int {
		x, y := float64(cells[i].Col), float64(cells[i].Row)
		buf = fb.SearchFast(x-radius, y-radius, x+radius, y+radius, buf)
		out := make([]int, 0, len(buf))
		for _, j := range buf {
			if math.Hypot(float64(cells[j].Col)-x, float64(cells[j].Row)-y) <= radius {
				out = append(out, j)
			}
		}
		sort.Ints(out)
		return out
	}

	labels := make([]int, len(cells))
	for i := range labels {
		labels[i] = unvisited
	}

	cluster := 0
	for i := range cells {
		if labels[i] != unvisited {
			continue
		}
		seeds := neighbours(i)
		if len(seeds) < minPts {
			labels[i] = noise
			continue
		}
		labels[i] = cluster
		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if labels[j] == noise {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			if more := neighbours(j); len(more) >= minPts {
				seeds = append(seeds, more...)
			}
		}
		cluster++
	}
	return labels
}
