package release

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Report renders a plain-text summary of a created release.
func Report(a *Artifacts, sourceDir string, now time.Time) string {
	m := a.Manifest
	var sb strings.Builder
	fmt.Fprintf(&sb, "Release report for v%s\n", m.Version)
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&sb, "Generated at: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Source directory: %s\n", sourceDir)
	fmt.Fprintf(&sb, "Package: %s\n", path.Base(m.DownloadURL))
	fmt.Fprintf(&sb, "Size: %s (%d bytes)\n", m.FormattedSize(), m.FileSize)
	fmt.Fprintf(&sb, "Checksum (SHA-256): %s\n", m.Checksum)
	sb.WriteString("\nRelease notes:\n")
	for _, note := range m.ReleaseNotes {
		fmt.Fprintf(&sb, "- %s\n", note)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Download URL: %s\n", m.DownloadURL)
	fmt.Fprintf(&sb, "Force update: %t\n", m.ForceUpdate)
	fmt.Fprintf(&sb, "Min version: %s\n", m.MinVersion)
	return sb.String()
}
