package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Member is one file to be stored in an archive. Members are stored under
// the base of Name only; directory structure is flattened and colliding
// member names follow the underlying codec's last-write-wins semantics.
type Member struct {
	Name string
	Path string
}

// sevenZipBinaries are probed in order when compiling a 7z archive.
var sevenZipBinaries = []string{"7zz", "7z", "7za"}

// Compile writes all members into a new archive at outputPath using the
// given format. On error the partially written output is removed.
func Compile(ctx context.Context, members []Member, outputPath string, format Format) error {
	var err error
	switch format {
	case Zip:
		err = compileZip(members, outputPath)
	case SevenZip:
		err = compileSevenZip(ctx, members, outputPath)
	case Tar:
		err = compileTar(members, outputPath, false)
	case TarGz:
		err = compileTar(members, outputPath, true)
	default:
		err = fmt.Errorf("archive: unsupported format %q", format)
	}
	if err != nil {
		_ = os.Remove(outputPath)
		return err
	}
	return nil
}

func compileZip(members []Member, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, m := range members {
		hdr := &zip.FileHeader{
			Name:   filepath.Base(m.Name),
			Method: zip.Deflate,
		}
		if info, statErr := os.Stat(m.Path); statErr == nil {
			hdr.Modified = info.ModTime()
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip member %s: %w", m.Name, err)
		}
		if err := copyFile(w, m.Path); err != nil {
			return fmt.Errorf("zip member %s: %w", m.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return out.Close()
}

func compileTar(members []Member, outputPath string, compress bool) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create tar: %w", err)
	}
	defer out.Close()

	var dst io.Writer = out
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(out)
		dst = gz
	}

	tw := tar.NewWriter(dst)
	for _, m := range members {
		info, err := os.Stat(m.Path)
		if err != nil {
			return fmt.Errorf("tar member %s: %w", m.Name, err)
		}
		hdr := &tar.Header{
			Name:    filepath.Base(m.Name),
			Mode:    0o644,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("tar member %s: %w", m.Name, err)
		}
		if err := copyFile(tw, m.Path); err != nil {
			return fmt.Errorf("tar member %s: %w", m.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize tar: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("finalize gzip: %w", err)
		}
	}
	return out.Close()
}

// compileSevenZip shells out to the 7-Zip CLI: there is no maintained
// pure-Go 7z writer. Members are staged into a scratch directory under
// their flattened names so the CLI picks up the intended member set.
func compileSevenZip(ctx context.Context, members []Member, outputPath string) error {
	bin, err := lookupSevenZip()
	if err != nil {
		return err
	}

	stage, err := os.MkdirTemp(filepath.Dir(outputPath), "7z-stage-")
	if err != nil {
		return fmt.Errorf("stage 7z: %w", err)
	}
	defer os.RemoveAll(stage)

	for _, m := range members {
		dst := filepath.Join(stage, filepath.Base(m.Name))
		if err := os.Link(m.Path, dst); err != nil {
			if err := copyToPath(dst, m.Path); err != nil {
				return fmt.Errorf("stage 7z member %s: %w", m.Name, err)
			}
		}
	}

	absOut, err := filepath.Abs(outputPath)
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, "a", "-y", absOut, ".")
	cmd.Dir = stage
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("7z compile: %w: %s", err, out)
	}
	return nil
}

func lookupSevenZip() (string, error) {
	for _, candidate := range sevenZipBinaries {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("archive: no 7z binary found in PATH (tried %v)", sevenZipBinaries)
}

func copyFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}

func copyToPath(dst, src string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := copyFile(out, src); err != nil {
		return err
	}
	return out.Close()
}
