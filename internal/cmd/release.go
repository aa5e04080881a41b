package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/upkeep/internal/output"
	"github.com/adamancini/upkeep/internal/release"
)

type releaseFlags struct {
	notes      string
	minVersion string
	force      bool
	outDir     string
	app        string
	prefix     string
	publishDir string
}

func newReleaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Package a release for the update host",
	}
	cmd.AddCommand(newReleaseCreateCmd())
	return cmd
}

func newReleaseCreateCmd() *cobra.Command {
	var f releaseFlags

	cmd := &cobra.Command{
		Use:   "create <source_dir> <version>",
		Short: "Create a release package and manifests",
		Long: `Create zips source_dir and writes the package checksum, the per-version
manifest and latest.json. With --publish the files are also arranged in the
directory layout the update host serves:

  <prefix>/versions/v<version>.json
  <prefix>/versions/latest.json
  <prefix>/packages/<app>_v<version>.zip
  <prefix>/checksums/<app>_v<version>.zip.sha256
  versions/latest.json    (copy for clients without a prefix)

Examples:
  upkeep release create ./build 1.2.3 --notes "Faster sync;Bug fixes"
  upkeep release create ./build 2.0.0 --min-version 1.5.0 --force --publish ./site`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			if f.app == "" {
				f.app = s.cfg.App.Name
			}
			if f.outDir == "" {
				f.outDir = filepath.Join(os.TempDir(), f.app, "releases", args[1])
			}
			return runReleaseCreate(cmd.OutOrStdout(), args[0], args[1], s.cfg.Update.BaseURL, f, time.Now)
		},
	}

	cmd.Flags().StringVar(&f.notes, "notes", "", "Release notes, separated by ';'")
	cmd.Flags().StringVar(&f.minVersion, "min-version", "", "Oldest version that may apply this update")
	cmd.Flags().BoolVar(&f.force, "force", false, "Mark the update as required")
	cmd.Flags().StringVar(&f.outDir, "output-dir", "", "Directory for the package and manifests")
	cmd.Flags().StringVar(&f.app, "app", "", "Application name used in the package file name (default app.name)")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "Product prefix in the published layout")
	cmd.Flags().StringVar(&f.publishDir, "publish", "", "Also arrange the artifacts under this directory")

	return cmd
}

func runReleaseCreate(out io.Writer, sourceDir, version, base string, f releaseFlags, now func() time.Time) error {
	layout := release.Layout{Prefix: f.prefix}
	a, err := release.Create(sourceDir, f.outDir, release.Options{
		App:          f.app,
		Version:      version,
		ReleaseNotes: splitNotes(f.notes),
		MinVersion:   f.minVersion,
		ForceUpdate:  f.force,
		BaseURL:      base,
		Layout:       layout,
		Now:          now,
	})
	if err != nil {
		return err
	}

	reportPath := filepath.Join(f.outDir, fmt.Sprintf("release_report_v%s.txt", version))
	if err := os.WriteFile(reportPath, []byte(release.Report(a, sourceDir, now())), 0o644); err != nil {
		return fmt.Errorf("write release report: %w", err)
	}

	var published []string
	if f.publishDir != "" {
		if published, err = release.Publish(a, f.publishDir, layout); err != nil {
			return err
		}
	}

	w, err := outputWriter(out)
	if err != nil {
		return err
	}
	if w.Format() != output.FormatText {
		return w.Write(a)
	}

	_, _ = fmt.Fprintf(out, "Created release %s\n", version)
	_, _ = fmt.Fprintf(out, "  Package:  %s (%s)\n", a.Package, a.Manifest.FormattedSize())
	_, _ = fmt.Fprintf(out, "  Checksum: %s\n", a.Manifest.Checksum)
	_, _ = fmt.Fprintf(out, "  Manifest: %s\n", a.ManifestFile)
	_, _ = fmt.Fprintf(out, "  Report:   %s\n", reportPath)
	if len(published) > 0 {
		_, _ = fmt.Fprintf(out, "\nPublished to %s:\n", f.publishDir)
		for _, k := range published {
			_, _ = fmt.Fprintf(out, "  %s\n", k)
		}
	}
	return nil
}

func splitNotes(s string) []string {
	notes := []string{}
	for _, n := range strings.Split(s, ";") {
		if n = strings.TrimSpace(n); n != "" {
			notes = append(notes, n)
		}
	}
	return notes
}
