package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/panicle/internal/pipeline"
	"github.com/MeKo-Tech/panicle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	return cfg
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test file
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestRunLabels_NoRecords(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	_, err := RunLabels(context.Background(), []string{dir}, testConfig())
	require.ErrorIs(t, err, ErrNoFiles)
}

func TestRunLabels_InvalidPath(t *testing.T) {
	_, err := RunLabels(context.Background(), []string{"/nonexistent/records"}, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestRunLabels_WritesLabelFiles(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WritePanicle(t, dir, "p2")
	testutil.WritePanicle(t, dir, "p1")

	cfg := testConfig()
	cfg.OutputDir = filepath.Join(dir, "labels")
	res, err := RunLabels(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, "p1", res.Items[0].Name)
	assert.Equal(t, "p2", res.Items[1].Name)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 2, res.WorkerCount)

	for _, it := range res.Items {
		assert.Equal(t, filepath.Join(dir, "labels", it.Name+".txt"), it.LabelPath)
		lines := readLines(t, it.LabelPath)
		require.Len(t, lines, 4)
		assert.Equal(t, "0 0.5 0.90625 0.203125 0.203125", lines[0])
		assert.Empty(t, it.OverlayPath)
	}
}

func TestRunLabels_DefaultOutputNextToRecord(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	rec, _ := testutil.WritePanicle(t, dir, "p1")

	res, err := RunLabels(context.Background(), []string{rec}, testConfig())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "p1.txt"), res.Items[0].LabelPath)
	assert.True(t, testutil.FileExists(res.Items[0].LabelPath))
}

func TestRunLabels_Overlay(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WritePanicle(t, dir, "p1")

	cfg := testConfig()
	cfg.OverlayDir = filepath.Join(dir, "overlays")
	res, err := RunLabels(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)

	path := res.Items[0].OverlayPath
	assert.Equal(t, filepath.Join(dir, "overlays", "p1_overlay.png"), path)
	img := testutil.LoadImage(t, path)
	// The 64px mask is scaled up to the 128px record size.
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())
	// Top-left corner of the first box at (64, 116) is drawn in red.
	r, g, b, _ := img.At(51, 103).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Zero(t, b)
}

func TestRunLabels_Grains(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WritePanicle(t, dir, "p1")

	cfg := testConfig()
	cfg.Pipeline.Source = pipeline.SourceGrains
	res, err := RunLabels(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Items[0].Result.HBB, 3)
	assert.Len(t, readLines(t, res.Items[0].LabelPath), 3)
}

func TestRunLabels_SkeletonNeedsMask(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WriteRecord(t, dir, "p1.yaml", testutil.PanicleRecord())

	cfg := testConfig()
	cfg.Pipeline.Source = pipeline.SourceSkeleton
	_, err := RunLabels(context.Background(), []string{dir}, cfg)
	require.Error(t, err)

	var ie *pipeline.ItemError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "p1", ie.Name)
	assert.Equal(t, "mask", ie.Stage)
}

func TestRunLabels_Skeleton(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WritePanicle(t, dir, "p1")

	cfg := testConfig()
	cfg.Pipeline.Source = pipeline.SourceSkeleton
	cfg.Pipeline.Skeleton.WorkingSize = 64
	res, err := RunLabels(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Items[0].Result.Junctions)
	assert.Len(t, readLines(t, res.Items[0].LabelPath), len(res.Items[0].Result.Junctions))
}

func TestRunLabels_BrokenRecord(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WritePanicle(t, dir, "p1")
	testutil.WriteFile(t, dir, "bad.yaml", []byte("junctions:\n  - {level: quinary, x: 1, y: 1}\n"))

	t.Run("stops on error", func(t *testing.T) {
		_, err := RunLabels(context.Background(), []string{dir}, testConfig())
		require.Error(t, err)
		var ie *pipeline.ItemError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "bad", ie.Name)
		assert.Equal(t, "record", ie.Stage)
	})

	t.Run("later records are not written", func(t *testing.T) {
		cfg := testConfig()
		cfg.Workers = 1
		cfg.OutputDir = filepath.Join(dir, "stopped")
		_, err := RunLabels(context.Background(), []string{dir}, cfg)
		require.Error(t, err)
		assert.False(t, testutil.FileExists(filepath.Join(cfg.OutputDir, "p1.txt")))
	})

	t.Run("continues on error", func(t *testing.T) {
		cfg := testConfig()
		cfg.ContinueOnError = true
		res, err := RunLabels(context.Background(), []string{dir}, cfg)
		require.NoError(t, err)
		require.Len(t, res.Items, 2)
		assert.Equal(t, 1, res.Failed)
		assert.Nil(t, res.Items[0].Result)
		assert.Contains(t, res.Items[0].Error, "bad: record")
		assert.NotNil(t, res.Items[1].Result)
	})
}

func TestRunLabels_Cancelled(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WritePanicle(t, dir, "p1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunLabels(ctx, []string{dir}, testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunLabels_Progress(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WritePanicle(t, dir, "p1")

	var buf bytes.Buffer
	cfg := testConfig()
	cfg.ShowProgress = true
	cfg.ProgressWriter = &buf
	_, err := RunLabels(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Labels: 0/1")
	assert.Contains(t, buf.String(), "Completed in")

	buf.Reset()
	cfg.Quiet = true
	_, err = RunLabels(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestWriteAndReadLabelFile(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := testutil.WriteFile(t, dir, "a.txt", []byte("0 0.5 0.5 0.2 0.2\n"))

	labels, err := ReadLabelFile(path)
	require.NoError(t, err)
	require.Len(t, labels, 1)

	out := filepath.Join(dir, "nested", "b.txt")
	require.NoError(t, WriteLabelFile(out, labels))
	assert.Equal(t, []string{"0 0.5 0.5 0.2 0.2"}, readLines(t, out))

	bad := testutil.WriteFile(t, dir, "bad.txt", []byte("0 0.5\n"))
	_, err = ReadLabelFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}
