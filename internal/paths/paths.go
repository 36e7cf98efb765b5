package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Identity names the application the storage roots belong to.
type Identity struct {
	Qualifier    string
	Organization string
	Application  string
}

// DefaultIdentity is the identity used by the librebrowser host.
var DefaultIdentity = Identity{Qualifier: "com", Organization: "chen", Application: "libre-browser"}

// File and directory names inside the data root.
const (
	EnginesDirName  = "engines"
	ProfilesDirName = "profiles"
	LogsDirName     = "logs"
	CatalogFileName = "metadata.json"
	PIDFileName     = "pid"
	CrashDirName    = "crashes"
	EngineLogName   = "chrome_debug.log"
	LedgerFileName  = "sessions.db"
)

// Resolver derives every on-disk location from a single data root.
type Resolver struct {
	root string
}

// New resolves the platform data-local directory for id. When the platform
// directory cannot be determined it falls back to $HOME/.<app>, and to
// ./.<app> when no home directory is known either.
func New(id Identity) Resolver {
	home, _ := os.UserHomeDir()
	if dir, ok := platformDataDir(runtime.GOOS, id, home, os.Getenv); ok {
		return Resolver{root: dir}
	}
	return Resolver{root: fallbackDir(id, home)}
}

// NewAt uses root verbatim.
func NewAt(root string) Resolver { return Resolver{root: filepath.Clean(root)} }

func platformDataDir(goos string, id Identity, home string, getenv func(string) string) (string, bool) {
	app := projectName(id.Application)
	if app == "" {
		return "", false
	}
	switch goos {
	case "darwin":
		if home == "" {
			return "", false
		}
		bundle := strings.Join([]string{id.Qualifier, id.Organization, app}, ".")
		return filepath.Join(home, "Library", "Application Support", bundle), true
	case "windows":
		base := getenv("LOCALAPPDATA")
		if base == "" {
			return "", false
		}
		return filepath.Join(base, id.Organization, app, "data"), true
	default:
		if xdg := getenv("XDG_DATA_HOME"); filepath.IsAbs(xdg) {
			return filepath.Join(xdg, app), true
		}
		if home == "" {
			return "", false
		}
		return filepath.Join(home, ".local", "share", app), true
	}
}

func fallbackDir(id Identity, home string) string {
	if home == "" {
		home = "."
	}
	return filepath.Join(home, "."+projectName(id.Application))
}

func projectName(app string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(app), " ", "-"))
}

func (r Resolver) Root() string        { return r.root }
func (r Resolver) EnginesDir() string  { return filepath.Join(r.root, EnginesDirName) }
func (r Resolver) CatalogPath() string { return filepath.Join(r.EnginesDir(), CatalogFileName) }
func (r Resolver) ProfilesDir() string { return filepath.Join(r.root, ProfilesDirName) }
func (r Resolver) LogsDir() string     { return filepath.Join(r.root, LogsDirName) }
func (r Resolver) LedgerPath() string  { return filepath.Join(r.root, LedgerFileName) }
func (r Resolver) VersionDir(v string) string {
	return filepath.Join(r.EnginesDir(), v)
}

func (r Resolver) ProfileDir(label string) string {
	return filepath.Join(r.ProfilesDir(), label)
}

func (r Resolver) PIDFile(label string) string {
	return filepath.Join(r.ProfileDir(label), PIDFileName)
}

func (r Resolver) CrashDir(label string) string {
	return filepath.Join(r.ProfileDir(label), CrashDirName)
}

// EngineLog is the log file the engine writes when started with --log-file.
func (r Resolver) EngineLog(label string) string {
	return filepath.Join(r.ProfileDir(label), EngineLogName)
}
