package engine

import (
	"os"
	"path/filepath"
)

// Relative executable locations checked in each searched directory.
var candidateBinaries = []string{
	filepath.Join("Google Chrome for Testing.app", "Contents", "MacOS", "Google Chrome for Testing"),
	filepath.Join("Chromium.app", "Contents", "MacOS", "Chromium"),
	filepath.Join("Google Chrome.app", "Contents", "MacOS", "Google Chrome"),
	"chrome",
	"chrome.exe",
}

// findBinary searches each child directory's children, then the child
// itself, and finally root.
func findBinary(root string) (string, bool) {
	children, err := os.ReadDir(root)
	if err == nil {
		for _, c := range children {
			if !c.IsDir() {
				continue
			}
			child := filepath.Join(root, c.Name())
			if grand, err := os.ReadDir(child); err == nil {
				for _, g := range grand {
					if !g.IsDir() {
						continue
					}
					if p, ok := matchCandidate(filepath.Join(child, g.Name())); ok {
						return p, true
					}
				}
			}
			if p, ok := matchCandidate(child); ok {
				return p, true
			}
		}
	}
	return matchCandidate(root)
}

func matchCandidate(dir string) (string, bool) {
	for _, rel := range candidateBinaries {
		p := filepath.Join(dir, rel)
		if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}
