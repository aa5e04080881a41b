// Package backup names and enumerates the install-directory snapshots taken
// by the installer helper before it overwrites an installation.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// TimestampLayout is the suffix format of a backup directory (yyyyMMddHHmmss).
const TimestampLayout = "20060102150405"

const marker = ".backup."

// Info describes one backup directory found next to the installation.
type Info struct {
	Name      string    `json:"name" yaml:"name"`
	Path      string    `json:"path" yaml:"path"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Manager enumerates and prunes backups of a single install directory.
type Manager struct {
	installDir string
	parentDir  string
	pattern    *regexp.Regexp
}

// NewManager creates a backup manager for installDir. Backups live in the
// same parent directory as the installation.
func NewManager(installDir string) *Manager {
	dir := TrimDir(installDir)
	base := filepath.Base(dir)
	return &Manager{
		installDir: dir,
		parentDir:  filepath.Dir(dir),
		pattern:    regexp.MustCompile("^" + regexp.QuoteMeta(base+marker) + `(\d{14})$`),
	}
}

// TrimDir strips trailing path separators so the directory can be quoted in
// a helper script without the closing quote being escaped.
func TrimDir(dir string) string {
	trimmed := strings.TrimRight(dir, `/\`)
	if trimmed == "" {
		return dir
	}
	return trimmed
}

// Name returns the backup path for installDir taken at t:
// "<installDir>.backup.<yyyyMMddHHmmss>".
func Name(installDir string, t time.Time) string {
	return TrimDir(installDir) + marker + t.Format(TimestampLayout)
}

// InstallDir returns the directory whose backups this manager handles.
func (m *Manager) InstallDir() string {
	return m.installDir
}

// List returns all backups sorted by creation time (newest first).
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.parentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []Info{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		match := m.pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}

		created, err := time.ParseInLocation(TimestampLayout, match[1], time.Local)
		if err != nil {
			continue
		}

		backups = append(backups, Info{
			Name:      entry.Name(),
			Path:      filepath.Join(m.parentDir, entry.Name()),
			CreatedAt: created,
		})
	}

	// Sort by creation time, newest first
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Latest returns the newest backup, or nil if none exist.
func (m *Manager) Latest() (*Info, error) {
	backups, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return nil, nil
	}
	return &backups[0], nil
}
