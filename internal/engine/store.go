// Package engine installs, catalogs and locates versioned browser engines.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/loykin/librebrowser/internal/archive"
	"github.com/loykin/librebrowser/internal/fetch"
	"github.com/loykin/librebrowser/internal/metrics"
	"github.com/loykin/librebrowser/internal/paths"
)

var (
	ErrInvalidVersion  = errors.New("invalid engine version")
	ErrArchiveNotFound = errors.New("engine archive not found")
)

// DefaultFileName names a non-archive download whose URL has no usable
// last path segment.
const DefaultFileName = "download.bin"

// Repairer fixes permissions of a freshly extracted tree. Failures are the
// implementation's to log; they never fail an install.
type Repairer interface {
	RepairInstall(ctx context.Context, root string)
}

// RepairFunc adapts a function to Repairer.
type RepairFunc func(ctx context.Context, root string)

func (f RepairFunc) RepairInstall(ctx context.Context, root string) { f(ctx, root) }

// Version is one installed engine.
type Version struct {
	Version     string `json:"version"`
	Dir         string `json:"dir"`
	InstalledAt string `json:"installed_at"`
}

type Options struct {
	Fetcher  fetch.Fetcher
	Repairer Repairer
	Logger   *slog.Logger
	// Now stamps catalog entries; defaults to time.Now.
	Now func() time.Time
}

// Store manages engines/<version> directories below the data root.
type Store struct {
	paths   paths.Resolver
	catalog *Catalog
	fetcher fetch.Fetcher
	repair  Repairer
	logger  *slog.Logger
	now     func() time.Time
}

func NewStore(r paths.Resolver, opts Options) *Store {
	s := &Store{
		paths:   r,
		catalog: NewCatalog(r.CatalogPath()),
		fetcher: opts.Fetcher,
		repair:  opts.Repairer,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if s.fetcher == nil {
		s.fetcher = fetch.New()
	}
	if s.repair == nil {
		s.repair = RepairFunc(func(context.Context, string) {})
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Store) Catalog() *Catalog { return s.catalog }

// Install replaces engines/<version> with the package at rawURL. Archives
// (.zip, .tar.gz, .tgz) are extracted; anything else is stored verbatim
// under the URL's last path segment.
func (s *Store) Install(ctx context.Context, version, rawURL string) (dir string, err error) {
	if !IsProbablyVersion(version) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	start := time.Now()
	defer func() { s.observe(start, err) }()

	if err := os.MkdirAll(s.paths.EnginesDir(), 0o750); err != nil {
		return "", err
	}
	dir = s.paths.VersionDir(version)
	if err := resetDir(dir); err != nil {
		return "", err
	}

	tmp := filepath.Join(s.paths.EnginesDir(), version+".tmp")
	n, err := fetch.ToFile(ctx, s.fetcher, rawURL, tmp)
	if err != nil {
		return "", err
	}
	s.logger.Info("engine downloaded", "version", version, "bytes", n)

	if f := archive.DetectFormat(rawURL); f != archive.None {
		err = archive.Extract(tmp, dir, f)
		_ = os.Remove(tmp)
		if err != nil {
			return "", err
		}
		s.repair.RepairInstall(ctx, dir)
	} else if err := os.Rename(tmp, filepath.Join(dir, fileNameFromURL(rawURL))); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	s.record(version)
	s.logger.Info("engine installed", "version", version, "dir", dir)
	return dir, nil
}

// InstallArchived downloads rawURL to engines/<version>.zip without
// extracting it.
func (s *Store) InstallArchived(ctx context.Context, version, rawURL string) (string, error) {
	if !IsProbablyVersion(version) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	if err := os.MkdirAll(s.paths.EnginesDir(), 0o750); err != nil {
		return "", err
	}
	dst := s.archivePath(version)
	n, err := fetch.ToFile(ctx, s.fetcher, rawURL, dst)
	if err != nil {
		return "", err
	}
	s.logger.Info("engine archive downloaded", "version", version, "path", dst, "bytes", n)
	return dst, nil
}

// ExtractArchived unpacks a previously downloaded engines/<version>.zip into
// a cleared version directory and removes the archive.
func (s *Store) ExtractArchived(ctx context.Context, version string) (dir string, err error) {
	if !IsProbablyVersion(version) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	src := s.archivePath(version)
	if st, statErr := os.Stat(src); statErr != nil || !st.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrArchiveNotFound, src)
	}
	start := time.Now()
	defer func() { s.observe(start, err) }()

	dir = s.paths.VersionDir(version)
	if err := resetDir(dir); err != nil {
		return "", err
	}
	if err := archive.Extract(src, dir, archive.Zip); err != nil {
		return "", err
	}
	s.repair.RepairInstall(ctx, dir)
	if err := os.Remove(src); err != nil {
		s.logger.Warn("remove engine archive", "path", src, "error", err)
	}
	s.record(version)
	s.logger.Info("engine extracted", "version", version, "dir", dir)
	return dir, nil
}

// List returns installed versions, newest first. It never fails; unreadable
// entries are skipped.
func (s *Store) List() []Version {
	entries, err := os.ReadDir(s.paths.EnginesDir())
	if err != nil {
		return nil
	}
	cat := s.catalog.Load()
	out := make([]Version, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !IsProbablyVersion(e.Name()) {
			continue
		}
		v := Version{Version: e.Name(), Dir: s.paths.VersionDir(e.Name()), InstalledAt: UnknownTime}
		if ts, ok := cat[e.Name()]; ok && ts != "" {
			v.InstalledAt = ts
		} else if info, err := e.Info(); err == nil {
			v.InstalledAt = info.ModTime().Format(TimeLayout)
		}
		out = append(out, v)
	}
	slices.SortStableFunc(out, func(a, b Version) int { return CompareVersions(b.Version, a.Version) })
	return out
}

// LocateBinary finds the engine executable for version, or for the newest
// installed version that has one when version is empty.
func (s *Store) LocateBinary(version string) (string, bool) {
	if version != "" {
		if !IsProbablyVersion(version) {
			return "", false
		}
		return findBinary(s.paths.VersionDir(version))
	}
	for _, v := range s.List() {
		if p, ok := findBinary(v.Dir); ok {
			return p, true
		}
	}
	return "", false
}

func (s *Store) archivePath(version string) string {
	return filepath.Join(s.paths.EnginesDir(), version+".zip")
}

func (s *Store) record(version string) {
	if err := s.catalog.Record(version, s.now()); err != nil {
		s.logger.Warn("record engine install time", "version", version, "error", err)
	}
}

func (s *Store) observe(start time.Time, err error) {
	metrics.ObserveInstallDuration(time.Since(start).Seconds())
	if err != nil {
		metrics.IncInstall(metrics.ResultError)
		return
	}
	metrics.IncInstall(metrics.ResultOK)
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o750)
}

func fileNameFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	switch name {
	case "", ".", "..", "/":
		return DefaultFileName
	}
	return name
}
