package librebrowser

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/librebrowser/internal/surface"
	"github.com/loykin/librebrowser/pkg/client"
)

type zipFetcher struct{ body []byte }

func (f zipFetcher) Fetch(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.body)), nil
}

func engineZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	hdr := &zip.FileHeader{Name: "chrome-linux64/chrome", Method: zip.Deflate}
	hdr.SetMode(0o755)
	w, err := zw.CreateHeader(hdr)
	require.NoError(t, err)
	_, err = w.Write([]byte("#!/bin/sh\nsleep 30\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Paths.Root = t.TempDir()
	cfg.Log.Console = false
	cfg.Server.Listen = "127.0.0.1:0"
	return cfg
}

func TestAppWiresLayout(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(cfg, WithFetcher(zipFetcher{body: engineZip(t)}))
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close()) }()

	assert.Equal(t, filepath.Clean(cfg.Paths.Root), app.Paths().Root())
	assert.FileExists(t, filepath.Join(cfg.Paths.Root, "logs", "current.log"))
	assert.FileExists(t, filepath.Join(cfg.Paths.Root, "sessions.db"))
	assert.Empty(t, app.Engines().List())
}

func TestAppServesAPI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
	cfg := testConfig(t)
	cfg.Profile.DefaultSurfaceURL = "https://intranet.example"
	surf := surface.NewRegistry()
	app, err := New(cfg, WithFetcher(zipFetcher{body: engineZip(t)}), WithSurface(surf))
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	c := client.New(client.Config{BaseURL: "http://" + ln.Addr().String() + "/api"})
	require.Eventually(t, func() bool { return c.IsReachable(context.Background()) }, 2*time.Second, 20*time.Millisecond)

	// nothing installed yet: the embedded surface shows the profile
	_, ok, err := c.Open(context.Background(), client.OpenRequest{Label: "web", URL: "https://example.org"})
	require.NoError(t, err)
	assert.False(t, ok)
	exists, err := c.Exists(context.Background(), "web")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, c.Close(context.Background(), "web"))
	assert.False(t, surf.Exists("web"))

	_, _, err = c.Open(context.Background(), client.OpenRequest{Label: "home"})
	require.NoError(t, err)
	home, _ := surf.URL("home")
	assert.Equal(t, "https://intranet.example", home)
	require.NoError(t, c.Close(context.Background(), "home"))

	dir, err := c.Install(context.Background(), client.InstallRequest{Version: "120.0.1", URL: "https://dl.example/chrome-linux64.zip"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Paths.Root, "engines", "120.0.1"), dir)

	engines, err := c.Engines(context.Background())
	require.NoError(t, err)
	require.Len(t, engines, 1)
	assert.Equal(t, "120.0.1", engines[0].Version)

	bin, found, err := c.Binary(context.Background(), "120.0.1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, filepath.Join(dir, "chrome-linux64", "chrome"), bin)

	lines, err := c.LogsTail(context.Background(), 50)
	require.NoError(t, err)
	assert.NotEmpty(t, lines)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
