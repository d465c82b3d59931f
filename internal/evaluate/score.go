package evaluate

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrUndefinedMetric is returned when precision or recall would divide by
// zero.
var ErrUndefinedMetric = errors.New("undefined metric")

// Score is the per-image triple.
type Score struct {
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Score derives precision, recall and F1. With no predictions or no ground
// truth the corresponding ratio is undefined. When both ratios are defined
// and zero, F1 is zero.
func (r Result) Score() (Score, error) {
	if r.TP+r.FP == 0 {
		return Score{}, fmt.Errorf("%w: precision with no predictions", ErrUndefinedMetric)
	}
	if r.TP+r.FN == 0 {
		return Score{}, fmt.Errorf("%w: recall with no ground truth", ErrUndefinedMetric)
	}
	p := float64(r.TP) / float64(r.TP+r.FP)
	rc := float64(r.TP) / float64(r.TP+r.FN)
	var f1 float64
	if p+rc > 0 {
		f1 = 2 * p * rc / (p + rc)
	}
	return Score{F1: f1, Precision: p, Recall: rc}, nil
}

// History collects scores by file name. Adding the same name twice keeps the
// latest score. It is safe for concurrent use.
type History struct {
	mu     sync.RWMutex
	scores map[string]Score
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{scores: make(map[string]Score)}
}

// Add records the score of one file.
func (h *History) Add(name string, s Score) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scores[name] = s
}

// Merge adds every entry of other.
func (h *History) Merge(other *History) {
	if other == nil || other == h {
		return
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, v := range other.scores {
		h.scores[k] = v
	}
}

// Get returns the score of one file.
func (h *History) Get(name string) (Score, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.scores[name]
	return s, ok
}

// Len returns the number of files.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scores)
}

// Names returns the file names in sorted order.
func (h *History) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.scores))
	for k := range h.scores {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Summary aggregates every field of the recorded scores.
type Summary struct {
	Count int   `json:"count"`
	Mean  Score `json:"mean"`
	Min   Score `json:"min"`
	Max   Score `json:"max"`
}

// Summary returns the mean, minimum and maximum of each metric. An empty
// history yields a zero summary.
func (h *History) Summary() Summary {
	names := h.Names()
	if len(names) == 0 {
		return Summary{}
	}
	f1 := make([]float64, len(names))
	p := make([]float64, len(names))
	r := make([]float64, len(names))
	h.mu.RLock()
	for i, n := range names {
		s := h.scores[n]
		f1[i], p[i], r[i] = s.F1, s.Precision, s.Recall
	}
	h.mu.RUnlock()

	return Summary{
		Count: len(names),
		Mean:  Score{F1: stat.Mean(f1, nil), Precision: stat.Mean(p, nil), Recall: stat.Mean(r, nil)},
		Min:   Score{F1: floats.Min(f1), Precision: floats.Min(p), Recall: floats.Min(r)},
		Max:   Score{F1: floats.Max(f1), Precision: floats.Max(p), Recall: floats.Max(r)},
	}
}

var csvHeader = []string{"filename", "f1", "precision", "recall"}

// WriteCSV writes one row per file in name order after a header row.
func (h *History) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, n := range h.Names() {
		s, _ := h.Get(n)
		row := []string{n, formatMetric(s.F1), formatMetric(s.Precision), formatMetric(s.Recall)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV adds the rows of a file written by WriteCSV.
func (h *History) ReadCSV(r io.Reader) error {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read score history: %w", err)
	}
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		if len(row) != len(csvHeader) {
			return fmt.Errorf("score history row %d: expected %d fields, got %d", i+1, len(csvHeader), len(row))
		}
		var vals [3]float64
		for k := range vals {
			v, err := strconv.ParseFloat(row[k+1], 64)
			if err != nil {
				return fmt.Errorf("score history row %d: %w", i+1, err)
			}
			vals[k] = v
		}
		h.Add(row[0], Score{F1: vals[0], Precision: vals[1], Recall: vals[2]})
	}
	return nil
}

type historyJSON struct {
	Scores  map[string]Score `json:"scores"`
	Summary Summary          `json:"summary"`
}

// WriteJSON writes the scores and their summary as an indented document.
func (h *History) WriteJSON(w io.Writer) error {
	h.mu.RLock()
	scores := make(map[string]Score, len(h.scores))
	for k, v := range h.scores {
		scores[k] = v
	}
	h.mu.RUnlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(historyJSON{Scores: scores, Summary: h.Summary()})
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
