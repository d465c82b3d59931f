package junction

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/panicle/internal/geometry"
)

var (
	// ErrGeneratingCount is returned when the end generating junction cannot be
	// identified because the set does not hold exactly two generating points.
	ErrGeneratingCount = errors.New("expected exactly two generating junctions")

	// ErrDuplicateJunction is returned when a point is added twice.
	ErrDuplicateJunction = errors.New("junction already present")

	// ErrInconsistentSet is returned by Validate when the bookkeeping drifted.
	ErrInconsistentSet = errors.New("inconsistent junction set")
)

// Junction is a point tagged with its level.
type Junction struct {
	Level Level          `json:"level" yaml:"level"`
	Point geometry.Point `json:"point" yaml:"point"`
}

// Set is an ordered collection of junctions partitioned by level. A point
// belongs to exactly one level. The zero value is ready to use.
type Set struct {
	entries [len(levelNames)][]geometry.Point
	count   int
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// Add appends p to level.
func (s *Set) Add(level Level, p geometry.Point) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, int(level))
	}
	if existing, ok := s.LevelOf(p); ok {
		return fmt.Errorf("%w: (%g, %g) is %s", ErrDuplicateJunction, p.X, p.Y, existing)
	}
	s.entries[level] = append(s.entries[level], p)
	s.count++
	return s.Validate()
}

// LevelOf returns the level p belongs to.
func (s *Set) LevelOf(p geometry.Point) (Level, bool) {
	for l := range s.entries {
		for _, q := range s.entries[l] {
			if q == p {
				return Level(l), true
			}
		}
	}
	return 0, false
}

// Len returns the number of junctions in the set.
func (s *Set) Len() int {
	return s.count
}

// Points returns a copy of the points of one level in insertion order.
func (s *Set) Points(level Level) []geometry.Point {
	if !level.Valid() {
		return nil
	}
	return append([]geometry.Point(nil), s.entries[level]...)
}

// Collect concatenates the points of the given levels in the order given.
func (s *Set) Collect(levels ...Level) []geometry.Point {
	var out []geometry.Point
	for _, l := range levels {
		out = append(out, s.Points(l)...)
	}
	return out
}

// Branching returns every junction except terminals: generating, primary,
// secondary, tertiary and quaternary points, in that order.
func (s *Set) Branching() []geometry.Point {
	return s.Collect(Generating, Primary, Secondary, Tertiary, Quaternary)
}

// MainAxis returns the junctions lying on the main axis of the panicle, the
// generating and primary points.
func (s *Set) MainAxis() []geometry.Point {
	return s.Collect(Generating, Primary)
}

// All returns every junction grouped by level in canonical order.
func (s *Set) All() []Junction {
	out := make([]Junction, 0, s.count)
	for _, l := range Levels() {
		for _, p := range s.entries[l] {
			out = append(out, Junction{Level: l, Point: p})
		}
	}
	return out
}

// RemoveEndGenerating drops the end generating junction, the one with the
// smaller x of exactly two generating points; the first one wins an x tie.
// The removed point is returned.
func (s *Set) RemoveEndGenerating() (geometry.Point, error) {
	gen := s.entries[Generating]
	if len(gen) != 2 {
		return geometry.Point{}, fmt.Errorf("%w: have %d", ErrGeneratingCount, len(gen))
	}
	end := 0
	if gen[1].X < gen[0].X {
		end = 1
	}
	removed := gen[end]
	s.entries[Generating] = []geometry.Point{gen[1-end]}
	s.count--
	return removed, s.Validate()
}

// Validate recounts the set and checks that no point appears twice.
func (s *Set) Validate() error {
	seen := make(map[geometry.Point]Level, s.count)
	total := 0
	for l := range s.entries {
		for _, p := range s.entries[l] {
			if prev, dup := seen[p]; dup {
				return fmt.Errorf("%w: (%g, %g) in %s and %s", ErrInconsistentSet, p.X, p.Y, prev, Level(l))
			}
			seen[p] = Level(l)
			total++
		}
	}
	if total != s.count {
		return fmt.Errorf("%w: counter %d, entries %d", ErrInconsistentSet, s.count, total)
	}
	return nil
}
