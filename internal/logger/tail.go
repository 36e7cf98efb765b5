package logger

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TailFile returns the last maxLines lines found in the last maxBytes of the
// file at path. A missing file yields an error wrapping fs.ErrNotExist.
func TailFile(path string, maxLines, maxBytes int) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("tail: %w", fs.ErrNotExist)
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	if maxLines <= 0 {
		return []string{}, nil
	}
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if start := st.Size() - int64(maxBytes); maxBytes > 0 && start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return nil, err
		}
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(b), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{}, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines, nil
}
