package archive

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

func extractTarGz(path, dest string) error {
	fh, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() { _ = fh.Close() }()

	gz, err := gzip.NewReader(fh)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()

	g, err := newGuard(dest)
	if err != nil {
		return err
	}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := g.mkdir(target); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := g.writeSymlink(target, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := g.writeFile(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		}
	}
}
