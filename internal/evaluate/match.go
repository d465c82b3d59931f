// Package evaluate scores detections against ground-truth boxes with a
// mutual-best greedy matching over the IoU matrix.
package evaluate

import (
	"github.com/MeKo-Tech/panicle/internal/geometry"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultIoUThreshold is the overlap below which a pair is never matched.
const DefaultIoUThreshold = 0.1

// Pair is one confirmed prediction/ground-truth match.
type Pair struct {
	Pred  int     `json:"pred"`
	Truth int     `json:"truth"`
	IoU   float64 `json:"iou"`
}

// Result holds the counts of one matching run.
type Result struct {
	TP    int    `json:"tp"`
	FP    int    `json:"fp"`
	FN    int    `json:"fn"`
	Pairs []Pair `json:"pairs,omitempty"`
}

// IoUMatrix builds the nPred x nTrue matrix with iou(i, j) at row i, column
// j. It returns nil when either count is zero.
func IoUMatrix(nPred, nTrue int, iou func(i, j int) float64) *mat.Dense {
	if nPred <= 0 || nTrue <= 0 {
		return nil
	}
	m := mat.NewDense(nPred, nTrue, nil)
	for i := 0; i < nPred; i++ {
		for j := 0; j < nTrue; j++ {
			m.Set(i, j, iou(i, j))
		}
	}
	return m
}

// Match runs the mutual-best greedy matching on a copy of m; m itself is not
// modified. Rows are predictions, columns ground truth.
//
// Each row in index order first drops entries below threshold, then tries
// its best remaining column. The pair is confirmed when the row is also the
// column's best (ties resolve to the lowest index); matched rows and
// columns are then set to -1. Otherwise that single entry is zeroed and the
// row tries again until no positive entry is left.
//
// This is a greedy approximation: an optimal bipartite assignment can find
// more pairs on some inputs.
func Match(m *mat.Dense, threshold float64) Result {
	if m == nil || m.IsEmpty() {
		return Result{}
	}
	nPred, nTrue := m.Dims()
	work := mat.DenseCopyOf(m)
	col := make([]float64, nPred)

	var res Result
	for i := 0; i < nPred; i++ {
		row := work.RawRowView(i)
		for j, v := range row {
			if v < threshold {
				row[j] = 0
			}
		}
		for {
			j := floats.MaxIdx(row)
			if row[j] <= 0 {
				break
			}
			mat.Col(col, j, work)
			if floats.MaxIdx(col) == i {
				res.Pairs = append(res.Pairs, Pair{Pred: i, Truth: j, IoU: m.At(i, j)})
				for k := range row {
					row[k] = -1
				}
				for k := 0; k < nPred; k++ {
					work.Set(k, j, -1)
				}
				break
			}
			row[j] = 0
		}
	}

	res.TP = len(res.Pairs)
	res.FP = nPred - res.TP
	res.FN = nTrue - res.TP
	return res
}

// matchCounts handles the empty cases Match cannot see from a nil matrix.
func matchCounts(nPred, nTrue int, threshold float64, iou func(i, j int) float64) Result {
	m := IoUMatrix(nPred, nTrue, iou)
	if m == nil {
		return Result{FP: max(nPred, 0), FN: max(nTrue, 0)}
	}
	return Match(m, threshold)
}

// MatchAxisAligned matches horizontal boxes.
func MatchAxisAligned(pred, truth []geometry.AxisAlignedBox, threshold float64) Result {
	return matchCounts(len(pred), len(truth), threshold, func(i, j int) float64 {
		return geometry.AxisAlignedIoU(pred[i], truth[j])
	})
}

// MatchOriented matches rotated boxes.
func MatchOriented(pred, truth []geometry.OrientedBox, threshold float64) Result {
	return matchCounts(len(pred), len(truth), threshold, func(i, j int) float64 {
		return geometry.OrientedIoU(pred[i], truth[j])
	})
}

// MatchPolygons matches convex quadrilaterals such as decoded corner-form
// labels.
func MatchPolygons(pred, truth [][]geometry.Point, threshold float64) Result {
	return matchCounts(len(pred), len(truth), threshold, func(i, j int) float64 {
		return geometry.PolygonIoU(pred[i], truth[j])
	})
}
