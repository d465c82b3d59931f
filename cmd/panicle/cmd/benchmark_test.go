package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/MeKo-Tech/panicle/internal/benchmark"
	"github.com/MeKo-Tech/panicle/internal/common"
	"github.com/MeKo-Tech/panicle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchmarkCommand_AllStages(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	rec, mask := testutil.WritePanicle(t, dir, "p1")

	out, _, err := execute(t, "benchmark", rec, mask, "--working-size", "64", "-n", "2", "--format", "json")
	require.NoError(t, err)

	var results []common.Measurement
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 8)
	assert.Equal(t, benchmark.StageBuild, results[0].Name)
	assert.Equal(t, benchmark.StageExtract, results[7].Name)
	for _, r := range results {
		assert.Empty(t, r.Err, r.Name)
		assert.Equal(t, 2, r.Iterations, r.Name)
	}
}

func TestBenchmarkCommand_Stages(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	rec, _ := testutil.WritePanicle(t, dir, "p1")

	out, _, err := execute(t, "benchmark", rec, "--stage", "labels/oriented,stats/overlap", "-n", "1", "--format", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "labels/oriented,1,"))
	assert.True(t, strings.HasPrefix(lines[2], "stats/overlap,1,"))
}

func TestBenchmarkCommand_Errors(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	rec, _ := testutil.WritePanicle(t, dir, "p1")

	_, _, err := execute(t, "benchmark", rec, "-n", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iterations")

	_, _, err = execute(t, "benchmark", rec, "--stage", "skeleton/thin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, _, err = execute(t, "benchmark", dir+"/missing.yaml")
	require.Error(t, err)
}
