package release

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/upkeep/internal/update"
)

// ErrSourceDir is returned when the directory to package is unusable.
var ErrSourceDir = errors.New("invalid source directory")

// Options describes a release to package.
type Options struct {
	App          string
	Version      string
	ReleaseNotes []string
	MinVersion   string
	ForceUpdate  bool
	// BaseURL is the update host root; the manifest's downloadUrl points below it.
	BaseURL string
	Layout  Layout
	// Now stamps the release date. Defaults to time.Now.
	Now func() time.Time
}

// Artifacts lists the files Create wrote.
type Artifacts struct {
	Dir          string           `json:"dir" yaml:"dir"`
	Package      string           `json:"package" yaml:"package"`
	ChecksumFile string           `json:"checksumFile" yaml:"checksumFile"`
	ManifestFile string           `json:"manifestFile" yaml:"manifestFile"`
	LatestFile   string           `json:"latestFile" yaml:"latestFile"`
	Manifest     *update.Manifest `json:"manifest" yaml:"manifest"`
}

// Create zips sourceDir into outDir and writes its checksum, the per-version
// manifest and latest.json next to it.
func Create(sourceDir, outDir string, opts Options) (*Artifacts, error) {
	if _, err := update.ParseVersion(opts.Version); err != nil {
		return nil, fmt.Errorf("release version: %w", err)
	}
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceDir, sourceDir)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.App == "" {
		opts.App = "app"
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	name := PackageName(opts.App, opts.Version)
	a := &Artifacts{
		Dir:          outDir,
		Package:      filepath.Join(outDir, name),
		ChecksumFile: filepath.Join(outDir, name+checksumSuffix),
		ManifestFile: filepath.Join(outDir, fmt.Sprintf("v%s.json", opts.Version)),
		LatestFile:   filepath.Join(outDir, latestFile),
	}

	if err := compressDir(sourceDir, a.Package); err != nil {
		return nil, fmt.Errorf("compress %s: %w", sourceDir, err)
	}

	sum, err := update.FileChecksum(a.Package)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(a.ChecksumFile, []byte(sum), 0o644); err != nil {
		return nil, fmt.Errorf("write checksum: %w", err)
	}

	st, err := os.Stat(a.Package)
	if err != nil {
		return nil, err
	}

	a.Manifest = &update.Manifest{
		Version:      opts.Version,
		ReleaseDate:  update.Timestamp{Time: opts.Now()},
		DownloadURL:  strings.TrimRight(opts.BaseURL, "/") + "/" + opts.Layout.PackageKey(name),
		FileSize:     st.Size(),
		Checksum:     sum,
		ReleaseNotes: opts.ReleaseNotes,
		MinVersion:   opts.MinVersion,
		ForceUpdate:  opts.ForceUpdate,
	}
	if a.Manifest.ReleaseNotes == nil {
		a.Manifest.ReleaseNotes = []string{}
	}

	data, err := json.MarshalIndent(a.Manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	for _, p := range []string{a.ManifestFile, a.LatestFile} {
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", filepath.Base(p), err)
		}
	}

	log.WithFields(log.Fields{
		"version":  opts.Version,
		"package":  a.Package,
		"checksum": sum,
	}).Info("release package created")

	return a, nil
}

// compressDir writes every regular file below srcDir into destZip using
// forward-slash relative names.
func compressDir(srcDir, destZip string) (err error) {
	zipFile, err := os.Create(destZip)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := zipFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	writer := zip.NewWriter(zipFile)
	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	absDest, _ := filepath.Abs(destZip)
	return filepath.Walk(srcDir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if abs, _ := filepath.Abs(p); abs == absDest {
			return nil
		}
		if !info.Mode().IsRegular() {
			log.Debugf("skipping non-regular file %s", p)
			return nil
		}

		relPath, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = path.Clean(filepath.ToSlash(relPath))
		header.Method = zip.Deflate

		w, err := writer.CreateHeader(header)
		if err != nil {
			return err
		}

		//nolint:gosec // G304: walking the directory being released
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		_, err = io.Copy(w, f)
		return err
	})
}
