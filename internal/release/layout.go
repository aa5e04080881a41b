// Package release builds update packages and arranges them in the layout
// the update host serves.
package release

import (
	"fmt"
	"path"
)

// Published directory names under the product prefix.
const (
	VersionsDir  = "versions"
	PackagesDir  = "packages"
	ChecksumsDir = "checksums"

	latestFile     = "latest.json"
	checksumSuffix = ".sha256"
)

// Layout maps release artifacts to object keys below an optional product prefix.
type Layout struct {
	Prefix string
}

func (l Layout) key(parts ...string) string {
	if l.Prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{l.Prefix}, parts...)...)
}

// ManifestKey is the per-version manifest, versions/v{version}.json.
func (l Layout) ManifestKey(version string) string {
	return l.key(VersionsDir, fmt.Sprintf("v%s.json", version))
}

// LatestKey is the rolling pointer to the newest manifest.
func (l Layout) LatestKey() string {
	return l.key(VersionsDir, latestFile)
}

// LegacyLatestKey is the root-level copy read by clients that predate the
// product prefix.
func (l Layout) LegacyLatestKey() string {
	return path.Join(VersionsDir, latestFile)
}

// PackageKey is where the archive named name is published.
func (l Layout) PackageKey(name string) string {
	return l.key(PackagesDir, name)
}

// ChecksumKey is where the hex digest of the archive named name is published.
func (l Layout) ChecksumKey(name string) string {
	return l.key(ChecksumsDir, name+checksumSuffix)
}

// PackageName returns the archive file name for app at version.
func PackageName(app, version string) string {
	return fmt.Sprintf("%s_v%s.zip", app, version)
}
