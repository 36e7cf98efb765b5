package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/librebrowser"
)

func TestConfigInitToStdout(t *testing.T) {
	out, err := run(t, "config", "init", "--type", "postgres")
	require.NoError(t, err)
	assert.Contains(t, out, "[store]")
	assert.Contains(t, out, "postgres://")
}

func TestConfigInitWritesLoadableFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "conf", "lb.toml")
	root := filepath.Join(dir, "data")

	out, err := run(t, "config", "init", "--out", p, "--root", root)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Config written: "+p))

	cfg, err := librebrowser.LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(root), cfg.Paths.Root)

	_, err = run(t, "config", "init", "--out", p)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "config", "init", "--out", p, "--force", "--type", "minimal")
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), "disabled = true")
}

func TestConfigInitUnknownType(t *testing.T) {
	_, err := run(t, "config", "init", "--type", "cron")
	assert.ErrorContains(t, err, "unknown template type")
}
