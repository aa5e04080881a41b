package installer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extract unpacks the zip archive at src into dest. Entries that would land
// outside dest are rejected before anything is written for them.
func Extract(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrExtraction, src, err)
	}
	defer func(r *zip.ReadCloser) {
		_ = r.Close()
	}(r)

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	root := filepath.Clean(dest) + string(os.PathSeparator)
	for _, f := range r.File {
		fpath := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(fpath, root) {
			return fmt.Errorf("%w: illegal file path: %s", ErrExtraction, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0o755); err != nil {
				return fmt.Errorf("%w: %v", ErrExtraction, err)
			}
			continue
		}
		if f.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: symlink entries are not supported: %s", ErrExtraction, f.Name)
		}

		if err := extractFile(f, fpath); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrExtraction, f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, fpath string) error {
	if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
		return err
	}

	mode := f.Mode().Perm() | 0o600
	//nolint:gosec // G304: fpath is checked against the extraction root
	out, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(out)

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func(rc io.ReadCloser) {
		_ = rc.Close()
	}(rc)

	//nolint:gosec // G110: package size is bounded by the verified download
	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return out.Close()
}

// contentRoot returns the directory holding the package payload. Archives
// built by zipping a folder wrap everything in a single top-level directory;
// that directory is the payload root.
func contentRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}
