package platform

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// QuarantineAttr is the extended attribute the OS attaches to downloads.
const QuarantineAttr = "com.apple.quarantine"

// inBundleExecDir reports whether rel has a "Contents" component that is
// later followed by a "MacOS" component, which covers the main executable
// as well as nested helper apps and frameworks.
func inBundleExecDir(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	seenContents := false
	for _, p := range parts[:max(len(parts)-1, 0)] {
		switch p {
		case "Contents":
			seenContents = true
		case "MacOS":
			if seenContents {
				return true
			}
		}
	}
	return false
}

// RepairExecBits adds execute permission to every regular file inside a
// bundle executable directory below root. It returns the number of files
// changed; individual failures are logged and skipped.
func RepairExecBits(root string, logger *slog.Logger) int {
	changed := 0
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walk engine tree", "path", p, "error", err)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || !inBundleExecDir(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		mode := info.Mode().Perm()
		if mode&0o111 == 0o111 {
			return nil
		}
		if err := os.Chmod(p, mode|0o111); err != nil {
			logger.Warn("set exec bit", "path", p, "error", err)
			return nil
		}
		changed++
		return nil
	})
	return changed
}

// StripQuarantine removes the download quarantine marker recursively.
func StripQuarantine(ctx context.Context, c Commander, root string, logger *slog.Logger) {
	if err := c.Run(ctx, "xattr", "-dr", QuarantineAttr, root); err != nil {
		logger.Warn("remove quarantine attribute", "path", root, "error", err)
	}
}
