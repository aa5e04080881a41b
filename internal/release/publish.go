package release

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// Publish copies the artifacts into root following layout, including the
// legacy root-level latest.json. It returns the keys written.
func Publish(a *Artifacts, root string, layout Layout) ([]string, error) {
	name := filepath.Base(a.Package)
	copies := []struct {
		src string
		key string
	}{
		{a.Package, layout.PackageKey(name)},
		{a.ChecksumFile, layout.ChecksumKey(name)},
		{a.ManifestFile, layout.ManifestKey(a.Manifest.Version)},
		{a.LatestFile, layout.LatestKey()},
	}
	if legacy := layout.LegacyLatestKey(); legacy != layout.LatestKey() {
		copies = append(copies, struct {
			src string
			key string
		}{a.LatestFile, legacy})
	}

	var (
		written []string
		result  *multierror.Error
	)
	for _, c := range copies {
		dst := filepath.Join(root, filepath.FromSlash(c.key))
		if err := copyFile(c.src, dst); err != nil {
			result = multierror.Append(result, fmt.Errorf("publish %s: %w", c.key, err))
			continue
		}
		log.Debugf("published %s", c.key)
		written = append(written, c.key)
	}

	return written, result.ErrorOrNil()
}

// copyFile writes src to dst through a temporary file so a reader never sees
// a half-written manifest.
func copyFile(src, dst string) (err error) {
	//nolint:gosec // G304: artifacts produced by Create
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
