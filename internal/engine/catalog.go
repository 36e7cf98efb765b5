package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimeLayout formats install timestamps in the catalog.
const TimeLayout = "2006-01-02 15:04:05"

// UnknownTime is reported when neither the catalog nor the filesystem can
// date an installed version.
const UnknownTime = "unknown"

// Catalog is the version -> install time map stored in metadata.json.
// A missing or unreadable file reads as empty.
type Catalog struct {
	path string
	mu   sync.Mutex
}

func NewCatalog(path string) *Catalog { return &Catalog{path: path} }

func (c *Catalog) Path() string { return c.path }

// Load returns the current entries.
func (c *Catalog) Load() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

func (c *Catalog) load() map[string]string {
	m := map[string]string{}
	b, err := os.ReadFile(filepath.Clean(c.path))
	if err != nil {
		return m
	}
	if err := json.Unmarshal(b, &m); err != nil || m == nil {
		return map[string]string{}
	}
	return m
}

// Record stamps version with t and rewrites the whole file.
func (c *Catalog) Record(version string, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.load()
	m[version] = t.Format(TimeLayout)
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
