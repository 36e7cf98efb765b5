package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "librebrowser.toml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.Profile.CrashThreshold)
	assert.Equal(t, 200*time.Millisecond, c.Profile.MonitorInterval)
	assert.Equal(t, 3*time.Second, c.Profile.DiscoveryTimeout)
	assert.Equal(t, 2*time.Second, c.Profile.TerminateGrace)
	assert.Equal(t, "https://example.com", c.Profile.DefaultSurfaceURL)
	assert.Equal(t, "127.0.0.1:8420", c.Server.Listen)
	assert.Equal(t, "/api", c.Server.BasePath)
	assert.True(t, c.Log.Compress)
	assert.False(t, c.Metrics.Enabled)
}

func TestLoadFile(t *testing.T) {
	root := t.TempDir()
	p := writeConfig(t, `
[paths]
root = "`+filepath.ToSlash(root)+`"

[profile]
crash_threshold = "3s"
terminate_grace = "500ms"

[log]
level = "debug"
console = false

[server]
listen = ":9000"
base_path = "/rpc"

[metrics]
enabled = true

[store]
dsn = "postgres://u@db/ledger"
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.Profile.CrashThreshold)
	assert.Equal(t, 500*time.Millisecond, c.Profile.TerminateGrace)
	assert.Equal(t, 200*time.Millisecond, c.Profile.MonitorInterval, "unset keys keep defaults")
	assert.Equal(t, ":9000", c.Server.Listen)
	assert.Equal(t, "/rpc", c.Server.BasePath)
	assert.True(t, c.Metrics.Enabled)

	r := c.Resolver()
	assert.Equal(t, filepath.Clean(root), r.Root())
	lc := c.LoggerConfig(r)
	assert.Equal(t, filepath.Join(root, "logs"), lc.Dir)
	assert.Equal(t, "debug", lc.Level)
	assert.False(t, lc.Console)
	assert.Equal(t, "postgres://u@db/ledger", c.LedgerDSN(r))
}

func TestLedgerDSNDefaultsUnderRoot(t *testing.T) {
	root := t.TempDir()
	c, err := Load(writeConfig(t, "[paths]\nroot = \""+filepath.ToSlash(root)+"\"\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sessions.db"), c.LedgerDSN(c.Resolver()))

	c.Store.Disabled = true
	assert.Empty(t, c.LedgerDSN(c.Resolver()))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIBREBROWSER_SERVER_LISTEN", "0.0.0.0:7000")
	t.Setenv("LIBREBROWSER_PROFILE_CRASH_THRESHOLD", "10s")
	p := writeConfig(t, "[server]\nlisten = \":1\"\n")
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", c.Server.Listen)
	assert.Equal(t, 10*time.Second, c.Profile.CrashThreshold)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[profile]\ncrash_threshold = \"-1s\"\n"))
	assert.ErrorContains(t, err, "crash_threshold")

	_, err = Load(writeConfig(t, "[log]\nlevel = \"loud\"\n"))
	assert.ErrorContains(t, err, "log.level")

	_, err = Load(writeConfig(t, "[server]\nbase_path = \"api\"\n"))
	assert.ErrorContains(t, err, "base_path")

	_, err = Load(writeConfig(t, "this is = = not toml"))
	assert.Error(t, err)
}
