package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeDaemon serves the daemon's wire format from an in-memory state.
func fakeDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	open := map[string]int{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/engines/install", func(w http.ResponseWriter, r *http.Request) {
		var req InstallRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Version == "bad" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid engine version"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"dir": "/e/" + req.Version})
	})
	mux.HandleFunc("POST /api/engines/archive", func(w http.ResponseWriter, r *http.Request) {
		var req InstallRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, map[string]string{"archive": "/e/" + req.Version + "/chrome.zip"})
	})
	mux.HandleFunc("POST /api/engines/extract", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, map[string]string{"dir": "/e/" + req["version"]})
	})
	mux.HandleFunc("GET /api/engines", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []Engine{{Version: "2.0", InstalledAt: "unknown"}, {Version: "1.0", InstalledAt: "2024-01-01 00:00:00"}})
	})
	mux.HandleFunc("GET /api/engines/binary", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("version") != "2.0" {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no engine binary"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"path": "/e/2.0/chrome"})
	})
	mux.HandleFunc("POST /api/profiles/open", func(w http.ResponseWriter, r *http.Request) {
		var req OpenRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Version == "" {
			writeJSON(w, http.StatusOK, map[string]any{"pid": nil})
			return
		}
		open[req.Label] = 4242
		writeJSON(w, http.StatusOK, map[string]any{"pid": 4242})
	})
	mux.HandleFunc("POST /api/profiles/close", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		delete(open, req["label"])
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	mux.HandleFunc("GET /api/profiles/exists", func(w http.ResponseWriter, r *http.Request) {
		_, ok := open[r.URL.Query().Get("label")]
		writeJSON(w, http.StatusOK, map[string]bool{"exists": ok})
	})
	mux.HandleFunc("GET /api/profiles/running", func(w http.ResponseWriter, r *http.Request) {
		if pid, ok := open[r.URL.Query().Get("label")]; ok {
			writeJSON(w, http.StatusOK, map[string]any{"pid": pid})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pid": nil})
	})
	mux.HandleFunc("GET /api/profiles", func(w http.ResponseWriter, _ *http.Request) {
		out := []Profile{}
		for l, pid := range open {
			out = append(out, Profile{Label: l, PID: pid, Running: true})
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET /api/logs/tail", func(w http.ResponseWriter, r *http.Request) {
		lines := []string{"a", "b", "c"}
		if r.URL.Query().Get("lines") == "2" {
			lines = lines[1:]
		}
		writeJSON(w, http.StatusOK, map[string][]string{"lines": lines})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *Client {
	srv := fakeDaemon(t)
	return New(Config{BaseURL: srv.URL + "/api/"})
}

func TestEngineCalls(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	dir, err := c.Install(ctx, InstallRequest{Version: "2.0", URL: "https://x/chrome.zip"})
	require.NoError(t, err)
	assert.Equal(t, "/e/2.0", dir)

	archive, err := c.InstallArchived(ctx, InstallRequest{Version: "3.0", URL: "https://x/chrome.zip"})
	require.NoError(t, err)
	assert.Equal(t, "/e/3.0/chrome.zip", archive)

	dir, err = c.ExtractArchived(ctx, "3.0")
	require.NoError(t, err)
	assert.Equal(t, "/e/3.0", dir)

	engines, err := c.Engines(ctx)
	require.NoError(t, err)
	require.Len(t, engines, 2)
	assert.Equal(t, "2.0", engines[0].Version)

	path, found, err := c.Binary(ctx, "2.0")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "/e/2.0/chrome", path)

	_, found, err = c.Binary(ctx, "9.0")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Install(context.Background(), InstallRequest{Version: "bad", URL: "https://x"})
	require.Error(t, err)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Contains(t, ae.Error(), "invalid engine version")
	assert.False(t, IsNotFound(err))
}

func TestProfileCalls(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.Open(ctx, OpenRequest{Label: "web"})
	require.NoError(t, err)
	assert.False(t, ok, "surface fallback has no pid")

	pid, ok, err := c.Open(ctx, OpenRequest{Label: "work", Version: "2.0"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4242, pid)

	exists, err := c.Exists(ctx, "work")
	require.NoError(t, err)
	assert.True(t, exists)

	pid, ok, err = c.Running(ctx, "work")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4242, pid)

	profiles, err := c.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "work", profiles[0].Label)

	require.NoError(t, c.Close(ctx, "work"))
	_, ok, err = c.Running(ctx, "work")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogsTail(t *testing.T) {
	c := newTestClient(t)
	lines, err := c.LogsTail(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, lines)
}

func TestReachability(t *testing.T) {
	c := newTestClient(t)
	assert.True(t, c.IsReachable(context.Background()))

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	assert.False(t, New(Config{BaseURL: srv.URL}).IsReachable(context.Background()))
}

func TestNonJSONErrorBody(t *testing.T) {
	defer gock.Off()
	hc := &http.Client{}
	gock.InterceptClient(hc)
	defer gock.RestoreClient(hc)

	gock.New("http://daemon.test").
		Get("/api/engines").
		Reply(http.StatusServiceUnavailable).
		BodyString("upstream down")

	c := New(Config{BaseURL: "http://daemon.test/api", HTTPClient: hc})
	_, err := c.Engines(context.Background())
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusServiceUnavailable, ae.StatusCode)
	assert.Equal(t, "HTTP 503", ae.Error())
	assert.True(t, gock.IsDone())
}
