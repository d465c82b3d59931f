package evaluate

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/MeKo-Tech/panicle/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		cols      int
		data      []float64
		threshold float64
		tp        int
		pairs     []Pair
	}{
		{
			name: "contested column falls back to the second choice",
			rows: 2, cols: 2,
			data:      []float64{0.5, 0.4, 0.6, 0},
			threshold: 0.1,
			tp:        2,
			pairs:     []Pair{{Pred: 0, Truth: 1, IoU: 0.4}, {Pred: 1, Truth: 0, IoU: 0.6}},
		},
		{
			name: "below threshold",
			rows: 1, cols: 1,
			data:      []float64{0.05},
			threshold: 0.1,
			tp:        0,
		},
		{
			name: "ties go to the lowest row",
			rows: 2, cols: 1,
			data:      []float64{0.5, 0.5},
			threshold: 0.1,
			tp:        1,
			pairs:     []Pair{{Pred: 0, Truth: 0, IoU: 0.5}},
		},
		{
			name: "greedy is not optimal",
			rows: 2, cols: 2,
			data:      []float64{0.9, 0.8, 0.85, 0},
			threshold: 0.1,
			tp:        1,
			pairs:     []Pair{{Pred: 0, Truth: 0, IoU: 0.9}},
		},
		{
			name: "independent pairs",
			rows: 2, cols: 2,
			data:      []float64{0.3, 0.2, 0.05, 0.9},
			threshold: 0.1,
			tp:        2,
			pairs:     []Pair{{Pred: 0, Truth: 0, IoU: 0.3}, {Pred: 1, Truth: 1, IoU: 0.9}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mat.NewDense(tt.rows, tt.cols, tt.data)
			before := mat.DenseCopyOf(m)

			res := Match(m, tt.threshold)
			assert.Equal(t, tt.tp, res.TP)
			assert.Equal(t, tt.rows-tt.tp, res.FP)
			assert.Equal(t, tt.cols-tt.tp, res.FN)
			assert.Equal(t, tt.pairs, res.Pairs)
			assert.True(t, mat.Equal(before, m), "input matrix must not change")
		})
	}
}

func TestMatch_Empty(t *testing.T) {
	assert.Equal(t, Result{}, Match(nil, 0.1))
	assert.Nil(t, IoUMatrix(0, 3, nil))
}

func TestMatchAxisAligned(t *testing.T) {
	truth := []geometry.AxisAlignedBox{
		{CX: 60, CY: 50, W: 26, H: 26},
		{CX: 200, CY: 100, W: 26, H: 26},
		{CX: 300, CY: 100, W: 26, H: 26},
	}

	t.Run("exact overlap", func(t *testing.T) {
		res := MatchAxisAligned(truth, truth, DefaultIoUThreshold)
		assert.Equal(t, 3, res.TP)
		s, err := res.Score()
		require.NoError(t, err)
		assert.Equal(t, Score{F1: 1, Precision: 1, Recall: 1}, s)
	})

	t.Run("no overlap", func(t *testing.T) {
		far := []geometry.AxisAlignedBox{{CX: 1000, CY: 1000, W: 26, H: 26}}
		res := MatchAxisAligned(far, truth, DefaultIoUThreshold)
		assert.Equal(t, Result{TP: 0, FP: 1, FN: 3}, res)
		s, err := res.Score()
		require.NoError(t, err)
		assert.Equal(t, Score{}, s)
	})

	t.Run("no predictions", func(t *testing.T) {
		res := MatchAxisAligned(nil, truth, DefaultIoUThreshold)
		assert.Equal(t, Result{FN: 3}, res)
		_, err := res.Score()
		require.ErrorIs(t, err, ErrUndefinedMetric)
	})

	t.Run("no ground truth", func(t *testing.T) {
		res := MatchAxisAligned(truth[:2], nil, DefaultIoUThreshold)
		assert.Equal(t, Result{FP: 2}, res)
		_, err := res.Score()
		require.ErrorIs(t, err, ErrUndefinedMetric)
	})

	t.Run("duplicate detections", func(t *testing.T) {
		pred := []geometry.AxisAlignedBox{truth[0], truth[0], {CX: 62, CY: 50, W: 26, H: 26}}
		res := MatchAxisAligned(pred, truth, DefaultIoUThreshold)
		assert.Equal(t, 1, res.TP)
		assert.Equal(t, 2, res.FP)
		assert.Equal(t, 2, res.FN)
	})
}

func TestMatchOriented(t *testing.T) {
	truth := []geometry.OrientedBox{
		{Center: geometry.Pt(100, 100), W: 26, H: 26, Angle: 10},
		{Center: geometry.Pt(200, 100), W: 26, H: 26, Angle: 80},
	}
	pred := []geometry.OrientedBox{
		{Center: geometry.Pt(202, 101), W: 26, H: 26, Angle: 75},
		{Center: geometry.Pt(101, 99), W: 26, H: 26, Angle: 12},
		{Center: geometry.Pt(400, 400), W: 26, H: 26},
	}
	res := MatchOriented(pred, truth, 0.5)
	assert.Equal(t, 2, res.TP)
	assert.Equal(t, 1, res.FP)
	assert.Equal(t, 0, res.FN)

	s, err := res.Score()
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, s.Precision, 1e-12)
	assert.InDelta(t, 1.0, s.Recall, 1e-12)
	assert.InDelta(t, 0.8, s.F1, 1e-12)
}

func TestMatchPolygons(t *testing.T) {
	square := []geometry.Point{geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(10, 10), geometry.Pt(0, 10)}
	shifted := []geometry.Point{geometry.Pt(5, 0), geometry.Pt(15, 0), geometry.Pt(15, 10), geometry.Pt(5, 10)}

	res := MatchPolygons([][]geometry.Point{shifted}, [][]geometry.Point{square}, 0.3)
	assert.Equal(t, 1, res.TP)
	assert.InDelta(t, 1.0/3.0, res.Pairs[0].IoU, 1e-12)

	res = MatchPolygons([][]geometry.Point{shifted}, [][]geometry.Point{square}, 0.5)
	assert.Equal(t, 0, res.TP)
}

func TestHistory(t *testing.T) {
	h := NewHistory()
	h.Add("b.jpg", Score{F1: 0.5, Precision: 0.5, Recall: 0.5})
	h.Add("a.jpg", Score{F1: 1, Precision: 1, Recall: 1})

	other := NewHistory()
	other.Add("c.jpg", Score{F1: 0, Precision: 0, Recall: 0})
	h.Merge(other)
	h.Merge(h)

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, h.Names())

	sum := h.Summary()
	assert.Equal(t, 3, sum.Count)
	assert.InDelta(t, 0.5, sum.Mean.F1, 1e-12)
	assert.Equal(t, 0.0, sum.Min.Recall)
	assert.Equal(t, 1.0, sum.Max.Precision)

	assert.Equal(t, Summary{}, NewHistory().Summary())
}

func TestHistory_CSV(t *testing.T) {
	h := NewHistory()
	h.Add("b.jpg", Score{F1: 0.8, Precision: 2.0 / 3.0, Recall: 1})
	h.Add("a.jpg", Score{F1: 1, Precision: 1, Recall: 1})

	var buf bytes.Buffer
	require.NoError(t, h.WriteCSV(&buf))
	assert.Equal(t,
		"filename,f1,precision,recall\n"+
			"a.jpg,1.000000,1.000000,1.000000\n"+
			"b.jpg,0.800000,0.666667,1.000000\n",
		buf.String())

	loaded := NewHistory()
	require.NoError(t, loaded.ReadCSV(strings.NewReader(buf.String())))
	assert.Equal(t, 2, loaded.Len())
	s, ok := loaded.Get("b.jpg")
	require.True(t, ok)
	assert.InDelta(t, 0.666667, s.Precision, 1e-9)

	require.Error(t, loaded.ReadCSV(strings.NewReader("x.jpg,1,1\n")))
	require.Error(t, loaded.ReadCSV(strings.NewReader("x.jpg,1,one,1\n")))
}

func TestHistory_JSON(t *testing.T) {
	h := NewHistory()
	h.Add("a.jpg", Score{F1: 1, Precision: 1, Recall: 1})

	var buf bytes.Buffer
	require.NoError(t, h.WriteJSON(&buf))

	var doc struct {
		Scores  map[string]Score `json:"scores"`
		Summary Summary          `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, Score{F1: 1, Precision: 1, Recall: 1}, doc.Scores["a.jpg"])
	assert.Equal(t, 1, doc.Summary.Count)
}

func TestOverlapDegree(t *testing.T) {
	centers := []geometry.Point{geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(100, 100)}

	o, err := OverlapDegree(centers, 26, 26, 20)
	require.NoError(t, err)
	assert.Equal(t, Overlap{Boxes: 3, Overlapping: 2}, o)
	assert.InDelta(t, 200.0/3.0, o.Degree(), 1e-12)

	o, err = OverlapDegree(centers, 26, 26, 70)
	require.NoError(t, err)
	assert.Equal(t, 0, o.Overlapping)

	total := Overlap{Boxes: 3, Overlapping: 2}.Add(Overlap{Boxes: 1})
	assert.Equal(t, 50.0, total.Degree())
	assert.Zero(t, Overlap{}.Degree())

	_, err = OverlapDegree(centers, 0, 26, 20)
	require.ErrorIs(t, err, geometry.ErrInvalidBox)
	_, err = OverlapDegree(centers, 26, 26, 120)
	require.Error(t, err)
}

func TestHistogram(t *testing.T) {
	h, err := NewHistogram([]float64{10, 2, 1, 3, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0, 1}, h.Counts)
	i, lo, hi := h.Tallest()
	assert.Equal(t, 0, i)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 4.0, hi)

	constant, err := NewHistogram([]float64{5, 5}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2}, constant.Counts)

	_, err = NewHistogram(nil, 3)
	require.ErrorIs(t, err, geometry.ErrEmptySet)
}

func TestRiceBins(t *testing.T) {
	assert.Equal(t, 0, RiceBins(0))
	assert.Equal(t, 2, RiceBins(2))
	assert.Equal(t, 4, RiceBins(10))
	assert.Equal(t, 9, RiceBins(100))
}

func TestJunctionDistances(t *testing.T) {
	d, err := JunctionDistances([]geometry.Point{geometry.Pt(0, 0), geometry.Pt(0, 2), geometry.Pt(0, 7)})
	require.NoError(t, err)
	assert.Equal(t, 3, d.Count)
	assert.InDelta(t, 3.0, d.Mean, 1e-12)
	assert.Equal(t, 2.0, d.Min)
	assert.Equal(t, 5.0, d.Max)
	assert.Equal(t, []float64{2, 1}, d.Histogram.Counts)
	assert.False(t, math.IsNaN(d.StdDev))

	_, err = JunctionDistances([]geometry.Point{geometry.Pt(1, 1)})
	require.ErrorIs(t, err, geometry.ErrEmptySet)
}
