package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/upkeep/internal/update"
)

// CheckResult reports what the update host offers without installing anything.
type CheckResult struct {
	CurrentVersion string           `json:"currentVersion" yaml:"currentVersion"`
	LatestVersion  string           `json:"latestVersion,omitempty" yaml:"latestVersion,omitempty"`
	Available      bool             `json:"available" yaml:"available"`
	Compatible     bool             `json:"compatible" yaml:"compatible"`
	Skipped        bool             `json:"skipped" yaml:"skipped"`
	Manifest       *update.Manifest `json:"manifest,omitempty" yaml:"manifest,omitempty"`
}

// Text renders the result for a terminal.
func (r CheckResult) Text() string {
	if r.Manifest == nil {
		return fmt.Sprintf("Current version: %s\nNo release has been published.", r.CurrentVersion)
	}
	if !r.Available {
		return fmt.Sprintf("Current version: %s\nAlready running the latest version.", r.CurrentVersion)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current version: %s\n", r.CurrentVersion)
	fmt.Fprintf(&b, "Latest version:  %s", r.LatestVersion)
	if !r.Manifest.ReleaseDate.IsZero() {
		fmt.Fprintf(&b, " (released %s)", r.Manifest.ReleaseDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "\nPackage size:    %s\n", r.Manifest.FormattedSize())
	if r.Manifest.ForceUpdate {
		b.WriteString("This update is required.\n")
	}
	if r.Skipped {
		b.WriteString("This version was skipped; scheduled checks will not offer it.\n")
	}
	if !r.Compatible {
		fmt.Fprintf(&b, "Version %s or later is required to update; reinstall manually.\n", r.Manifest.MinVersion)
	}
	if len(r.Manifest.ReleaseNotes) > 0 {
		b.WriteString("\nRelease notes:\n")
		for _, note := range r.Manifest.ReleaseNotes {
			fmt.Fprintf(&b, "  - %s\n", note)
		}
	}
	if r.Compatible {
		b.WriteString("\nRun 'upkeep update' to install.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check whether a newer version is available",
		Long: `Check fetches the release manifest from the update host and compares it with
the running version. Nothing is downloaded.

Examples:
  upkeep check
  upkeep check -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			w, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			skipped := ""
			if st, err := s.store.Load(); err == nil {
				skipped = st.SkippedVersion
			}

			result, err := runCheck(cmd.Context(), s.manifestClient(), s.currentVersion(), skipped)
			if err != nil {
				return err
			}
			return w.Write(result)
		},
	}
}

func runCheck(ctx context.Context, source update.ManifestSource, current, skipped string) (*CheckResult, error) {
	m, err := source.FetchLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}

	result := &CheckResult{CurrentVersion: current, Compatible: true, Manifest: m}
	if m == nil {
		return result, nil
	}

	result.LatestVersion = m.Version
	result.Available = update.IsUpdateAvailable(current, m.Version)
	result.Compatible = update.IsCompatible(current, m.MinVersion)
	result.Skipped = skipped != "" && update.NormalizeVersion(skipped) == update.NormalizeVersion(m.Version)
	return result, nil
}
