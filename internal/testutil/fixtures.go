package testutil

import (
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// PanicleSize is the image size of the synthetic panicle.
const PanicleSize = 128

// PanicleRecord returns a small curated panicle on a 128x128 image: a
// vertical main axis at x=64, one branch to each side and a secondary
// branch on the right one. It matches PanicleMask.
func PanicleRecord() *junction.Record {
	return &junction.Record{
		Image: junction.ImageSize{Width: PanicleSize, Height: PanicleSize},
		Junctions: []junction.PointRecord{
			{Level: "generating", X: 64, Y: 116},
			{Level: "generating", X: 40, Y: 8},
			{Level: "primary", X: 64, Y: 80},
			{Level: "primary", X: 64, Y: 40},
			{Level: "secondary", X: 96, Y: 40},
			{Level: "end", X: 110, Y: 40},
			{Level: "end", X: 20, Y: 80},
			{Level: "end", X: 100, Y: 60},
		},
		Edges: [][]float64{
			{64, 116, 64, 80},
			{64, 80, 64, 40},
			{64, 40, 96, 40},
			{96, 40, 110, 40},
			{64, 80, 20, 80},
			{96, 40, 100, 60},
		},
	}
}

// WriteRecord stores rec as YAML below dir and returns the path.
func WriteRecord(t *testing.T, dir, name string, rec *junction.Record) string {
	t.Helper()
	data, err := yaml.Marshal(rec)
	require.NoError(t, err)
	return WriteFile(t, dir, name, data)
}

// WritePanicle writes the record and mask of the synthetic panicle as
// <stem>.yaml and <stem>.png below dir.
func WritePanicle(t *testing.T, dir, stem string) (recordPath, maskPath string) {
	t.Helper()
	recordPath = WriteRecord(t, dir, stem+".yaml", PanicleRecord())
	maskPath = filepath.Join(dir, stem+".png")
	SaveImage(t, PanicleMask(PanicleSize/2), maskPath)
	return recordPath, maskPath
}
