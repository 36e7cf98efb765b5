package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/librebrowser/internal/fetch"
	"github.com/loykin/librebrowser/internal/paths"
)

type memFetcher struct {
	mu    sync.Mutex
	files map[string][]byte
	calls int
}

func (m *memFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	b, ok := m.files[url]
	if !ok {
		return nil, &fetch.StatusError{URL: url, StatusCode: 404, Status: "404 Not Found"}
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		hdr.SetMode(0o755)
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var fixedNow = time.Date(2024, 3, 1, 12, 30, 45, 0, time.Local)

func newTestStore(t *testing.T, f fetch.Fetcher, repaired *[]string) *Store {
	t.Helper()
	opts := Options{Fetcher: f, Now: func() time.Time { return fixedNow }}
	if repaired != nil {
		opts.Repairer = RepairFunc(func(_ context.Context, root string) { *repaired = append(*repaired, root) })
	}
	return NewStore(paths.NewAt(t.TempDir()), opts)
}

const chromiumRel = "chrome-mac/Chromium.app/Contents/MacOS/Chromium"

func TestInstallThenLocate(t *testing.T) {
	url := "https://dl.example.test/120.0.1.1/chrome-mac.zip"
	f := &memFetcher{files: map[string][]byte{url: zipBytes(t, map[string]string{chromiumRel: "#!/bin/sh\n"})}}
	var repaired []string
	s := newTestStore(t, f, &repaired)

	dir, err := s.Install(context.Background(), "120.0.1.1", url)
	require.NoError(t, err)
	assert.Equal(t, s.paths.VersionDir("120.0.1.1"), dir)
	assert.Equal(t, []string{dir}, repaired)

	p, ok := s.LocateBinary("120.0.1.1")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, filepath.FromSlash(chromiumRel)), p)

	p2, ok := s.LocateBinary("")
	require.True(t, ok)
	assert.Equal(t, p, p2)

	_, err = os.Stat(filepath.Join(s.paths.EnginesDir(), "120.0.1.1.tmp"))
	assert.True(t, os.IsNotExist(err), "temp download removed")

	cat := s.Catalog().Load()
	assert.Equal(t, fixedNow.Format(TimeLayout), cat["120.0.1.1"])
}

func TestLocateBinary_AbsentIsNotError(t *testing.T) {
	url := "https://dl.example.test/1.0/other.zip"
	f := &memFetcher{files: map[string][]byte{url: zipBytes(t, map[string]string{"readme.txt": "no engine here"})}}
	s := newTestStore(t, f, nil)
	_, err := s.Install(context.Background(), "1.0", url)
	require.NoError(t, err)

	_, ok := s.LocateBinary("1.0")
	assert.False(t, ok)
	_, ok = s.LocateBinary("9.9")
	assert.False(t, ok)
	_, ok = s.LocateBinary("../etc")
	assert.False(t, ok)
	_, ok = s.LocateBinary("")
	assert.False(t, ok)
}

func TestLocateBinary_LayoutsAndNewestFirst(t *testing.T) {
	s := newTestStore(t, &memFetcher{}, nil)
	mk := func(version, rel string) string {
		p := filepath.Join(s.paths.VersionDir(version), filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o755))
		return p
	}
	root := mk("100.0", "Google Chrome for Testing.app/Contents/MacOS/Google Chrome for Testing")
	nested := mk("110.0", "mac-arm64/chrome-mac-arm64/Google Chrome.app/Contents/MacOS/Google Chrome")
	linux := mk("9.0", "chrome-linux64/chrome")

	p, ok := s.LocateBinary("100.0")
	require.True(t, ok)
	assert.Equal(t, root, p)

	p, ok = s.LocateBinary("110.0")
	require.True(t, ok)
	assert.Equal(t, nested, p)

	p, ok = s.LocateBinary("9.0")
	require.True(t, ok)
	assert.Equal(t, linux, p)

	p, ok = s.LocateBinary("")
	require.True(t, ok)
	assert.Equal(t, nested, p, "newest version wins")

	// a directory at a candidate path does not count
	require.NoError(t, os.MkdirAll(filepath.Join(s.paths.VersionDir("200.0"), "chrome"), 0o755))
	p, ok = s.LocateBinary("")
	require.True(t, ok)
	assert.Equal(t, nested, p)
}

func TestInstallOverwritesRatherThanMerges(t *testing.T) {
	u1 := "https://dl.example.test/first.zip"
	u2 := "https://dl.example.test/second.zip"
	f := &memFetcher{files: map[string][]byte{
		u1: zipBytes(t, map[string]string{"a.txt": "first", "shared.txt": "one"}),
		u2: zipBytes(t, map[string]string{"b.txt": "second", "shared.txt": "two"}),
	}}
	s := newTestStore(t, f, nil)

	_, err := s.Install(context.Background(), "1.0", u1)
	require.NoError(t, err)
	dir, err := s.Install(context.Background(), "1.0", u2)
	require.NoError(t, err)

	var names []string
	require.NoError(t, filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(dir, p)
			names = append(names, rel)
		}
		return nil
	}))
	assert.ElementsMatch(t, []string{"b.txt", "shared.txt"}, names)
	b, err := os.ReadFile(filepath.Join(dir, "shared.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))
}

func TestInstall_NonArchiveKeptVerbatim(t *testing.T) {
	f := &memFetcher{files: map[string][]byte{
		"https://dl.example.test/bin/engine.dmg?token=1": []byte("raw"),
		"https://dl.example.test/":                       []byte("root"),
	}}
	s := newTestStore(t, f, nil)

	dir, err := s.Install(context.Background(), "2.0", "https://dl.example.test/bin/engine.dmg?token=1")
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir, "engine.dmg"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	dir, err = s.Install(context.Background(), "3.0", "https://dl.example.test/")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, DefaultFileName))
	assert.NoError(t, err)
}

func TestInstall_Errors(t *testing.T) {
	s := newTestStore(t, &memFetcher{files: map[string][]byte{
		"https://dl.example.test/corrupt.zip": []byte("not a zip"),
	}}, nil)

	_, err := s.Install(context.Background(), "../evil", "https://dl.example.test/x.zip")
	assert.ErrorIs(t, err, ErrInvalidVersion)

	_, err = s.Install(context.Background(), "1.0", "https://dl.example.test/missing.zip")
	var se *fetch.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 404, se.StatusCode)
	_, ok := s.Catalog().Load()["1.0"]
	assert.False(t, ok, "failed install is not cataloged")

	_, err = s.Install(context.Background(), "1.1", "https://dl.example.test/corrupt.zip")
	assert.Error(t, err)
}

func TestInstallArchivedThenExtract(t *testing.T) {
	url := "https://dl.example.test/chrome-mac.zip"
	f := &memFetcher{files: map[string][]byte{url: zipBytes(t, map[string]string{chromiumRel: "bin"})}}
	var repaired []string
	s := newTestStore(t, f, &repaired)

	_, err := s.ExtractArchived(context.Background(), "5.0")
	assert.ErrorIs(t, err, ErrArchiveNotFound)

	archivePath, err := s.InstallArchived(context.Background(), "5.0", url)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.paths.EnginesDir(), "5.0.zip"), archivePath)
	_, ok := s.LocateBinary("5.0")
	assert.False(t, ok, "download alone does not install")

	// stale content in the version dir is cleared
	require.NoError(t, os.MkdirAll(s.paths.VersionDir("5.0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.paths.VersionDir("5.0"), "stale"), []byte("x"), 0o644))

	dir, err := s.ExtractArchived(context.Background(), "5.0")
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, repaired)
	_, err = os.Stat(filepath.Join(dir, "stale"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(archivePath)
	assert.True(t, os.IsNotExist(err), "archive removed after extraction")
	_, ok = s.LocateBinary("5.0")
	assert.True(t, ok)
	assert.Contains(t, s.Catalog().Load(), "5.0")
}

func TestList_OrderAndTimestamps(t *testing.T) {
	s := newTestStore(t, &memFetcher{}, nil)
	for _, v := range []string{"9.0", "120.0.1.1", "10.1", "120.0.1"} {
		require.NoError(t, os.MkdirAll(s.paths.VersionDir(v), 0o755))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(s.paths.EnginesDir(), "not-a-version"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.paths.EnginesDir(), "7.0"), []byte("file"), 0o644))
	require.NoError(t, s.Catalog().Record("10.1", fixedNow))

	mtime := time.Date(2023, 1, 2, 3, 4, 5, 0, time.Local)
	require.NoError(t, os.Chtimes(s.paths.VersionDir("9.0"), mtime, mtime))

	list := s.List()
	var got []string
	for _, v := range list {
		got = append(got, v.Version)
	}
	assert.Equal(t, []string{"120.0.1.1", "120.0.1", "10.1", "9.0"}, got)
	assert.Equal(t, fixedNow.Format(TimeLayout), list[2].InstalledAt)
	assert.Equal(t, "2023-01-02 03:04:05", list[3].InstalledAt)
}

func TestList_CatalogLossFallsBackToMtime(t *testing.T) {
	s := newTestStore(t, &memFetcher{}, nil)
	require.NoError(t, os.MkdirAll(s.paths.VersionDir("1.0"), 0o755))
	require.NoError(t, os.WriteFile(s.paths.CatalogPath(), []byte("{garbage"), 0o644))

	list := s.List()
	require.Len(t, list, 1)
	_, err := time.ParseInLocation(TimeLayout, list[0].InstalledAt, time.Local)
	assert.NoError(t, err)
}

func TestList_NoEnginesDir(t *testing.T) {
	s := newTestStore(t, &memFetcher{}, nil)
	assert.Empty(t, s.List())
}

func TestCatalogRecordOverwrites(t *testing.T) {
	c := NewCatalog(filepath.Join(t.TempDir(), "engines", "metadata.json"))
	require.NoError(t, c.Record("1.0", fixedNow))
	require.NoError(t, c.Record("2.0", fixedNow.Add(time.Hour)))

	b, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	var m map[string]string
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, map[string]string{
		"1.0": "2024-03-01 12:30:45",
		"2.0": "2024-03-01 13:30:45",
	}, m)
}

func TestInstallOverHTTP(t *testing.T) {
	defer gock.Off()
	hf := fetch.New()
	gock.InterceptClient(hf.Client)
	defer gock.RestoreClient(hf.Client)

	body := zipBytes(t, map[string]string{"chrome-linux64/chrome": "elf"})
	gock.New("https://storage.example.test").
		Get("/chrome-for-testing/121.0.6167.85/linux64/chrome-linux64.zip").
		Reply(200).
		Body(bytes.NewReader(body))

	s := newTestStore(t, hf, nil)
	dir, err := s.Install(context.Background(), "121.0.6167.85",
		"https://storage.example.test/chrome-for-testing/121.0.6167.85/linux64/chrome-linux64.zip")
	require.NoError(t, err)
	p, ok := s.LocateBinary("121.0.6167.85")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "chrome-linux64", "chrome"), p)
	assert.True(t, gock.IsDone())
}
