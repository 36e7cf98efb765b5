package profile

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidLabel is returned for labels that cannot name a profile
// directory.
var ErrInvalidLabel = errors.New("invalid profile label")

// ErrInvalidURL is returned by Open for a start URL without a scheme.
var ErrInvalidURL = errors.New("invalid start url")

const maxLabelLen = 128

// ValidateLabel accepts any label that is usable as a single directory name:
// non-empty, at most 128 bytes, no path separators or control characters,
// and not "." or "..".
func ValidateLabel(label string) error {
	if label == "" || len(label) > maxLabelLen || label == "." || label == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	if strings.ContainsAny(label, `/\:`) {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
		}
	}
	return nil
}

// DefaultTitle is the window name used when the caller gives none.
func DefaultTitle(label string) string { return "Libre Browser - " + label }

// LaunchArgs describes one engine command line.
type LaunchArgs struct {
	ProfileDir string
	CrashDir   string
	LogFile    string
	// URL opens a new window; empty restores the last session.
	URL   string
	Title string
	// Extra holds platform specific flags.
	Extra []string
}

// Build returns the engine arguments in launch order.
func (a LaunchArgs) Build() []string {
	args := []string{
		"--user-data-dir=" + a.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
	}
	if a.URL == "" {
		args = append(args, "--restore-last-session")
	} else {
		args = append(args, "--new-window", a.URL)
	}
	args = append(args, a.Extra...)
	return append(args,
		"--test-type",
		"--disable-infobars",
		"--window-name="+a.Title,
		"--enable-logging=1",
		"--v=1",
		"--log-file="+a.LogFile,
		"--crash-dumps-dir="+a.CrashDir,
	)
}
