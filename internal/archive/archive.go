// Package archive unpacks downloaded engine packages.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupported is returned for files that are not a known archive format.
	ErrUnsupported = errors.New("unsupported archive format")
	// ErrUnsafePath is returned when an entry would be written outside dest.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// Format identifies an archive container.
type Format int

const (
	None Format = iota
	Zip
	TarGz
)

func (f Format) String() string {
	switch f {
	case Zip:
		return "zip"
	case TarGz:
		return "tar.gz"
	default:
		return "none"
	}
}

// DetectFormat inspects the path part of rawURL (query and fragment ignored,
// case-insensitive) and reports which container it names.
func DetectFormat(rawURL string) Format {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.ToLower(p)
	switch {
	case strings.HasSuffix(p, ".zip"):
		return Zip
	case strings.HasSuffix(p, ".tar.gz"), strings.HasSuffix(p, ".tgz"):
		return TarGz
	default:
		return None
	}
}

// Extract unpacks the archive at path into dest using format f. dest is
// created when missing. Entries that would land outside dest are rejected
// with ErrUnsafePath. A failed extraction may leave a partial tree behind.
func Extract(path, dest string, f Format) error {
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return err
	}
	var err error
	switch f {
	case Zip:
		err = extractZip(path, dest)
	case TarGz:
		err = extractTarGz(path, dest)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	if err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return nil
}

// safeJoin resolves name below dest, refusing absolute names and any
// traversal that leaves dest.
func safeJoin(dest, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return target, nil
}

// symlinkTarget validates that a link placed at linkPath pointing to target
// stays inside dest.
func symlinkTarget(dest, linkPath, target string) error {
	if filepath.IsAbs(target) {
		return fmt.Errorf("%w: link %q -> %q", ErrUnsafePath, linkPath, target)
	}
	resolved := filepath.Join(filepath.Dir(linkPath), target)
	rel, err := filepath.Rel(dest, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: link %q -> %q", ErrUnsafePath, linkPath, target)
	}
	return nil
}

// guard confines writes to dest as it exists on disk. Lexical checks alone
// miss links written by earlier entries, so every write is resolved through
// the links already present.
type guard struct {
	dest string
	root string
}

func newGuard(dest string) (*guard, error) {
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return nil, err
	}
	return &guard{dest: dest, root: root}, nil
}

func (g *guard) within(p string) bool {
	rel, err := filepath.Rel(g.root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolve reports where a write to p lands after following existing links.
// Components that do not exist yet are taken as plain names.
func (g *guard) resolve(p string) (string, error) {
	cur, rest := p, ""
	for {
		r, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(r, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			// exists but does not resolve: a dangling link
			return "", fmt.Errorf("%w: dangling link %q", ErrUnsafePath, cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

func (g *guard) check(target string) error {
	r, err := g.resolve(target)
	if err != nil {
		return err
	}
	if !g.within(r) {
		return fmt.Errorf("%w: %q resolves to %q", ErrUnsafePath, target, r)
	}
	return nil
}

// checkLink walks linkTo from the link's directory one component at a time,
// following links already on disk, and requires the result to stay in dest.
func (g *guard) checkLink(linkPath, linkTo string) error {
	if err := symlinkTarget(g.dest, linkPath, linkTo); err != nil {
		return err
	}
	cur, err := g.resolve(filepath.Dir(linkPath))
	if err != nil {
		return err
	}
	for _, part := range strings.Split(strings.ReplaceAll(linkTo, "\\", "/"), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
		default:
			cur = filepath.Join(cur, part)
			fi, err := os.Lstat(cur)
			if err != nil || fi.Mode()&fs.ModeSymlink == 0 {
				continue
			}
			if cur, err = filepath.EvalSymlinks(cur); err != nil {
				return fmt.Errorf("%w: link %q -> %q", ErrUnsafePath, linkPath, linkTo)
			}
		}
	}
	if !g.within(cur) {
		return fmt.Errorf("%w: link %q -> %q", ErrUnsafePath, linkPath, linkTo)
	}
	return nil
}

func (g *guard) mkdir(target string) error {
	if err := g.check(target); err != nil {
		return err
	}
	return os.MkdirAll(target, 0o750)
}

func (g *guard) writeFile(target string, r io.Reader, mode fs.FileMode) error {
	if err := g.check(target); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil { // #nosec G110 -- engine archives come from a configured source
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// umask may have stripped bits the archive recorded.
	return os.Chmod(target, perm)
}

func (g *guard) writeSymlink(target, linkTo string) error {
	if err := g.check(filepath.Dir(target)); err != nil {
		return err
	}
	if err := g.checkLink(target, linkTo); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	_ = os.Remove(target)
	return os.Symlink(linkTo, target)
}
