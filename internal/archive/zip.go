package archive

import (
	"io"
	"io/fs"

	"github.com/klauspost/compress/zip"
)

func extractZip(path, dest string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer func() { _ = zr.Close() }()
	g, err := newGuard(dest)
	if err != nil {
		return err
	}

	for _, f := range zr.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := g.mkdir(target); err != nil {
				return err
			}
		case mode&fs.ModeSymlink != 0:
			linkTo, err := readZipEntry(f)
			if err != nil {
				return err
			}
			if err := g.writeSymlink(target, linkTo); err != nil {
				return err
			}
		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return err
			}
			err = g.writeFile(target, rc, mode)
			_ = rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// readZipEntry returns the body of a symlink entry, which is its target.
func readZipEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
