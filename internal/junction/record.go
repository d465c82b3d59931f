package junction

import (
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/panicle/internal/geometry"
	"gopkg.in/yaml.v3"
)

// ImageSize is the pixel size of the image a record was annotated on.
type ImageSize struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// PointRecord is a single (level, x, y) entry of a junction record.
type PointRecord struct {
	Level string  `yaml:"level" json:"level"`
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
}

// Record is the on-disk form of a curated skeletal graph. Both YAML and JSON
// files decode into it.
type Record struct {
	Image     ImageSize     `yaml:"image" json:"image"`
	Junctions []PointRecord `yaml:"junctions" json:"junctions"`
	Edges     [][]float64   `yaml:"edges" json:"edges"`
}

// ReadRecord decodes a record from r.
func ReadRecord(r io.Reader) (*Record, error) {
	var rec Record
	if err := yaml.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode junction record: %w", err)
	}
	return &rec, nil
}

// LoadRecord reads a record file.
func LoadRecord(path string) (*Record, error) {
	f, err := os.Open(path) //nolint:gosec // G304: record path is user supplied
	if err != nil {
		return nil, fmt.Errorf("open junction record: %w", err)
	}
	defer func() { _ = f.Close() }()

	rec, err := ReadRecord(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Build converts the record into a validated junction set and edge set.
func (r *Record) Build() (*Set, *EdgeSet, error) {
	set := NewSet()
	for i, pr := range r.Junctions {
		level, err := ParseLevel(pr.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("junction %d: %w", i, err)
		}
		if err := set.Add(level, geometry.Pt(pr.X, pr.Y)); err != nil {
			return nil, nil, fmt.Errorf("junction %d: %w", i, err)
		}
	}

	edges := NewEdgeSet()
	if err := edges.Add(r.Edges...); err != nil {
		return nil, nil, err
	}
	if err := edges.Validate(set); err != nil {
		return nil, nil, err
	}
	return set, edges, nil
}
