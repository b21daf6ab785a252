package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// ErrUnsupported is returned when the archive extension is not extractable.
var ErrUnsupported = errors.New("archive: unsupported extract format")

// Extracted describes one regular file materialized by an extraction.
// Size is always measured from the file on disk, never taken from the
// archive's stored or compressed size fields.
type Extracted struct {
	Name string
	Path string
	Size int64
}

// Extract unpacks the archive at archivePath into dir and returns one
// record per regular file found under dir afterwards. The dispatch is by
// filename extension; APK is treated as a ZIP container.
func Extract(ctx context.Context, archivePath, dir string) ([]Extracted, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("extract dir: %w", err)
	}

	lower := strings.ToLower(archivePath)
	var err error
	switch {
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".apk"):
		err = extractZip(archivePath, dir)
	case strings.HasSuffix(lower, ".7z"):
		err = extractSevenZip(archivePath, dir)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		err = extractTarGz(archivePath, dir)
	case strings.HasSuffix(lower, ".tar"):
		err = extractTar(archivePath, dir)
	default:
		return nil, ErrUnsupported
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return walkExtracted(dir)
}

// walkExtracted builds the result set from the materialized tree so sizes
// reflect what actually landed on disk.
func walkExtracted(dir string) ([]Extracted, error) {
	var files []Extracted
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, Extracted{
			Name: filepath.ToSlash(rel),
			Path: path,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk extracted: %w", err)
	}
	return files, nil
}

func extractZip(archivePath, dir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dest, err := securePath(dir, f.Name)
		if err != nil {
			return fmt.Errorf("zip member %s: %w", f.Name, err)
		}
		if err := writeMember(dest, f.Open); err != nil {
			return fmt.Errorf("zip member %s: %w", f.Name, err)
		}
	}
	return nil
}

// securePath joins a member name onto dir, rejecting names that would
// escape it.
func securePath(dir, name string) (string, error) {
	dest := filepath.Join(dir, filepath.FromSlash(name))
	if dest != dir && !strings.HasPrefix(dest, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("member name escapes extraction dir")
	}
	return dest, nil
}

func extractSevenZip(archivePath, dir string) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open 7z: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dest, err := securePath(dir, f.Name)
		if err != nil {
			return fmt.Errorf("7z member %s: %w", f.Name, err)
		}
		if err := writeMember(dest, f.Open); err != nil {
			return fmt.Errorf("7z member %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractTarGz(archivePath, dir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open tar.gz: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	return untar(gz, dir)
}

func extractTar(archivePath, dir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open tar: %w", err)
	}
	defer f.Close()

	return untar(f, dir)
}

func untar(src io.Reader, dir string) error {
	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		dest, err := securePath(dir, hdr.Name)
		if err != nil {
			return fmt.Errorf("tar member %s: %w", hdr.Name, err)
		}
		if err := writeMember(dest, func() (io.ReadCloser, error) {
			return io.NopCloser(tr), nil
		}); err != nil {
			return fmt.Errorf("tar member %s: %w", hdr.Name, err)
		}
	}
}

func writeMember(dest string, open func() (io.ReadCloser, error)) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return out.Close()
}
