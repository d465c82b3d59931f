package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/panicle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScoringDirs writes a perfect prediction, one whose box misses the
// ground truth and an empty one.
func writeScoringDirs(t *testing.T) (string, string) {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	pred := filepath.Join(dir, "pred")
	truth := filepath.Join(dir, "truth")

	testutil.WriteFile(t, pred, "hit.txt", []byte("0 0.5 0.5 0.2 0.2\n"))
	testutil.WriteFile(t, truth, "hit.txt", []byte("0 0.5 0.5 0.2 0.2\n"))
	testutil.WriteFile(t, pred, "miss.txt", []byte("0 0.1 0.1 0.1 0.1\n"))
	testutil.WriteFile(t, truth, "miss.txt", []byte("0 0.9 0.9 0.1 0.1\n"))
	testutil.WriteFile(t, pred, "empty.txt", nil)
	testutil.WriteFile(t, truth, "empty.txt", []byte("0 0.5 0.5 0.2 0.2\n"))
	return pred, truth
}

func TestEvaluateCommand(t *testing.T) {
	assert.Equal(t, "evaluate <predictions-dir> <ground-truth-dir>", evaluateCmd.Use)
	assert.NotNil(t, evaluateCmd.Flags().Lookup("iou-threshold"))
	assert.NotNil(t, evaluateCmd.Flags().Lookup("history"))
}

func TestEvaluateCommand_ExactArgs(t *testing.T) {
	_, _, err := execute(t, "evaluate", "only-one")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestEvaluateCommand_Text(t *testing.T) {
	pred, truth := writeScoringDirs(t)

	out, _, err := execute(t, "evaluate", pred, truth)
	require.NoError(t, err)
	assert.Contains(t, out, "hit.txt: f1=1.0000 precision=1.0000 recall=1.0000 tp=1 fp=0 fn=0")
	assert.Contains(t, out, "miss.txt: f1=0.0000 precision=0.0000 recall=0.0000 tp=0 fp=1 fn=1")
	assert.Contains(t, out, "empty.txt: undefined tp=0 fp=0 fn=1")
	assert.Contains(t, out, "mean over 2 files: f1=0.5000")
}

func TestEvaluateCommand_History(t *testing.T) {
	pred, truth := writeScoringDirs(t)
	history := filepath.Join(t.TempDir(), "scores.csv")

	_, _, err := execute(t, "evaluate", pred, truth, "--history", history, "--quiet")
	require.NoError(t, err)

	data, err := os.ReadFile(history) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Contains(t, string(data), "filename,f1,precision,recall")
	assert.Contains(t, string(data), "hit.txt,")
	assert.Contains(t, string(data), "miss.txt,0.000000")
	assert.NotContains(t, string(data), "empty.txt")
}

func TestEvaluateCommand_MissingGroundTruth(t *testing.T) {
	pred, truth := writeScoringDirs(t)
	testutil.WriteFile(t, pred, "orphan.txt", []byte("0 0.5 0.5 0.2 0.2\n"))

	_, _, err := execute(t, "evaluate", pred, truth)
	require.Error(t, err)

	out, _, err := execute(t, "evaluate", pred, truth, "--continue-on-error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 4 label files failed")
	assert.Contains(t, out, "orphan.txt: error:")
}

func TestEvaluateCommand_InvalidThreshold(t *testing.T) {
	pred, truth := writeScoringDirs(t)
	_, _, err := execute(t, "evaluate", pred, truth, "--iou-threshold", "1.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iou_threshold")
}
