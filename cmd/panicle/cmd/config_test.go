package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/panicle/internal/config"
	"github.com/MeKo-Tech/panicle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "panicle.yaml")

	out, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to "+path)

	data, err := os.ReadFile(path) //nolint:gosec // test file
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, config.DefaultConfig(), cfg)

	_, _, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "config", "init", path, "--force")
	require.NoError(t, err)
}

func TestConfigShow_FileAndFlags(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := testutil.WriteFile(t, dir, "custom.yaml", []byte("boxes:\n  width: 32\nlog_level: warn\n"))

	out, _, err := execute(t, "config", "show", "--config", path, "--log-level", "debug")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# "+path+"\n"))

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.InDelta(t, 32.0, cfg.Boxes.Width, 1e-9)
	assert.InDelta(t, 26.0, cfg.Boxes.Height, 1e-9)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigShow_Environment(t *testing.T) {
	t.Setenv("PANICLE_BOXES_HEIGHT", "40")

	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.InDelta(t, 40.0, cfg.Boxes.Height, 1e-9)
}

func TestConfigShow_InvalidValuesStillShown(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := testutil.WriteFile(t, dir, "bad.yaml", []byte("batch:\n  workers: 0\n"))

	out, _, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "workers: 0")

	_, _, err = execute(t, "config", "path", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid batch workers")
}

func TestConfigPath(t *testing.T) {
	out, _, err := execute(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, config.GetConfigSearchPaths(), strings.Split(strings.TrimSpace(out), "\n"))
}

func TestConfigMissingFile(t *testing.T) {
	_, _, err := execute(t, "config", "path", "--config", "/nonexistent/panicle.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
