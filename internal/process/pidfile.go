package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrInvalidPID is returned for pid files that do not hold a positive integer.
var ErrInvalidPID = errors.New("invalid pid")

// WritePIDFile replaces path with the decimal pid. The record is written to a
// sibling temp file first so readers never observe a partial value.
func WritePIDFile(path string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadPIDFile returns the pid stored at path.
func ReadPIDFile(path string) (int, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, err
	}
	first, _, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, fmt.Errorf("%w in %s: %v", ErrInvalidPID, path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w in %s: %d", ErrInvalidPID, path, pid)
	}
	return pid, nil
}

// RemovePIDFile deletes path; a missing file is not an error.
func RemovePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
