package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/panicle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelsResult(t *testing.T) *LabelsResult {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	testutil.WritePanicle(t, dir, "p1")
	testutil.WriteFile(t, dir, "bad.yaml", []byte("junctions: [{level: quinary, x: 1, y: 1}]\n"))

	cfg := testConfig()
	cfg.ContinueOnError = true
	res, err := RunLabels(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	return res
}

func TestFormatLabels_Text(t *testing.T) {
	res := labelsResult(t)
	out, err := res.FormatResults("text")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "bad.yaml: error: bad: record")
	assert.Contains(t, lines[1], "p1.yaml: 4 labels -> ")
}

func TestFormatLabels_JSON(t *testing.T) {
	res := labelsResult(t)
	out, err := res.FormatResults("json")
	require.NoError(t, err)

	var doc struct {
		Records []struct {
			Name   string `json:"name"`
			Error  string `json:"error"`
			Result *struct {
				Source    string `json:"source"`
				Width     int    `json:"width"`
				Junctions []struct {
					X, Y float64
				} `json:"junctions"`
			} `json:"result"`
		} `json:"records"`
		Failed int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 1, doc.Failed)
	require.Len(t, doc.Records, 2)
	assert.NotEmpty(t, doc.Records[0].Error)
	assert.Nil(t, doc.Records[0].Result)
	require.NotNil(t, doc.Records[1].Result)
	assert.Equal(t, "junctions", doc.Records[1].Result.Source)
	assert.Equal(t, 128, doc.Records[1].Result.Width)
	assert.Len(t, doc.Records[1].Result.Junctions, 4)
}

func TestFormatLabels_CSV(t *testing.T) {
	res := labelsResult(t)
	out, err := res.FormatResults("csv")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "record", rows[0][0])
	assert.NotEmpty(t, rows[1][7])
	assert.Equal(t, []string{"junctions", "128", "128", "4", "4", ""}, rows[2][2:])
}

func TestFormatLabels_Unsupported(t *testing.T) {
	_, err := (&LabelsResult{}).FormatResults("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestFormatEvaluation(t *testing.T) {
	predDir, truthDir := writeEvalDirs(t)
	res, err := RunEvaluate(context.Background(), predDir, truthDir, testConfig())
	require.NoError(t, err)

	t.Run("text", func(t *testing.T) {
		out, err := res.FormatResults("text")
		require.NoError(t, err)
		assert.Contains(t, out, "a.txt: f1=0.5000 precision=0.5000 recall=0.5000 tp=1 fp=1 fn=1\n")
		assert.Contains(t, out, "empty.txt: undefined tp=0 fp=0 fn=1\n")
		assert.Contains(t, out, "mean over 1 files: f1=0.5000")
	})

	t.Run("csv", func(t *testing.T) {
		out, err := res.FormatResults("csv")
		require.NoError(t, err)
		assert.Equal(t, "filename,f1,precision,recall\na.txt,0.500000,0.500000,0.500000\n", out)
	})

	t.Run("json", func(t *testing.T) {
		out, err := res.FormatResults("json")
		require.NoError(t, err)
		var doc struct {
			Files []struct {
				Name   string `json:"name"`
				Result struct {
					Defined bool `json:"defined"`
				} `json:"result"`
			} `json:"files"`
			Summary struct {
				Count int `json:"count"`
			} `json:"summary"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &doc))
		require.Len(t, doc.Files, 2)
		assert.True(t, doc.Files[0].Result.Defined)
		assert.False(t, doc.Files[1].Result.Defined)
		assert.Equal(t, 1, doc.Summary.Count)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := res.FormatResults("yaml")
		require.Error(t, err)
	})
}

func TestSaveResults(t *testing.T) {
	res := labelsResult(t)

	var buf bytes.Buffer
	require.NoError(t, res.SaveResults(&buf, "text", "", false))
	assert.Contains(t, buf.String(), "p1.yaml")

	buf.Reset()
	file := filepath.Join(testutil.CreateTempDir(t), "out.csv")
	require.NoError(t, res.SaveResults(&buf, "csv", file, false))
	assert.Equal(t, "Results written to "+file+"\n", buf.String())
	data, err := os.ReadFile(file) //nolint:gosec // test file
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "record,label_file"))

	buf.Reset()
	require.NoError(t, res.SaveResults(&buf, "csv", file, true))
	assert.Empty(t, buf.String())
}

func TestPrintStats(t *testing.T) {
	res := &EvaluateResult{Items: make([]EvaluateItem, 4), Failed: 1, WorkerCount: 2, Duration: 3 * time.Second}

	var buf bytes.Buffer
	res.PrintStats(&buf, false)
	out := buf.String()
	assert.Contains(t, out, "Total label files: 4")
	assert.Contains(t, out, "Processed: 3")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "Throughput: 1.0 items/sec")

	buf.Reset()
	res.PrintStats(&buf, true)
	assert.Empty(t, buf.String())
}
