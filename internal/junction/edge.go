package junction

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/panicle/internal/geometry"
)

// ErrInvalidEdge is returned for edges that break the endpoint convention.
var ErrInvalidEdge = errors.New("invalid edge")

// Edge connects (X1,Y1) to (X2,Y2). Only the second endpoint may be a terminal.
type Edge struct {
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
	X2 float64 `json:"x2" yaml:"x2"`
	Y2 float64 `json:"y2" yaml:"y2"`
}

// From returns the first endpoint.
func (e Edge) From() geometry.Point { return geometry.Pt(e.X1, e.Y1) }

// To returns the second endpoint.
func (e Edge) To() geometry.Point { return geometry.Pt(e.X2, e.Y2) }

// EdgeSet is an ordered collection of edges.
type EdgeSet struct {
	entries []Edge
	count   int
}

// NewEdgeSet returns an empty edge set.
func NewEdgeSet() *EdgeSet {
	return &EdgeSet{}
}

// Add appends edges in order. Each must have exactly four coordinates.
func (es *EdgeSet) Add(tuples ...[]float64) error {
	for i, t := range tuples {
		if len(t) != 4 {
			return fmt.Errorf("%w: edge %d has %d coordinates", ErrInvalidEdge, i, len(t))
		}
		es.entries = append(es.entries, Edge{X1: t[0], Y1: t[1], X2: t[2], Y2: t[3]})
		es.count++
	}
	if es.count != len(es.entries) {
		return fmt.Errorf("%w: counter %d, entries %d", ErrInconsistentSet, es.count, len(es.entries))
	}
	return nil
}

// Len returns the number of edges.
func (es *EdgeSet) Len() int {
	return es.count
}

// At returns the i-th edge.
func (es *EdgeSet) At(i int) Edge {
	return es.entries[i]
}

// Edges returns a copy of all edges.
func (es *EdgeSet) Edges() []Edge {
	return append([]Edge(nil), es.entries...)
}

// Validate checks the edge set against its junctions: the first endpoint of
// an edge must not be a terminal.
func (es *EdgeSet) Validate(junctions *Set) error {
	if es.count != len(es.entries) {
		return fmt.Errorf("%w: counter %d, entries %d", ErrInconsistentSet, es.count, len(es.entries))
	}
	for i, e := range es.entries {
		if l, ok := junctions.LevelOf(e.From()); ok && l == Terminal {
			return fmt.Errorf("%w: edge %d starts at terminal (%g, %g)", ErrInvalidEdge, i, e.X1, e.Y1)
		}
	}
	return nil
}

// Grains returns the edges that end at a terminal junction, one per grain.
func Grains(junctions *Set, edges *EdgeSet) []Edge {
	var out []Edge
	for _, e := range edges.entries {
		if l, ok := junctions.LevelOf(e.To()); ok && l == Terminal {
			out = append(out, e)
		}
	}
	return out
}
