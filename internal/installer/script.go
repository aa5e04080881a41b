package installer

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/adamancini/upkeep/internal/backup"
	"github.com/adamancini/upkeep/internal/templates"
	"github.com/adamancini/upkeep/internal/update"
)

// PostUpdateArg is passed to the relaunched application.
const PostUpdateArg = "--post-update"

// Params parameterize the installer helper script.
type Params struct {
	TargetDir string
	// SourceDir holds the new files. It may be a child of ExtractDir when the
	// package wraps its content in a single top-level directory.
	SourceDir string
	// ExtractDir is removed by the helper once it is done. Defaults to SourceDir.
	ExtractDir  string
	BackupDir   string
	Executable  string
	ProcessName string
	// HostPID is the process the helper waits for and then kills. Zero skips it.
	HostPID       int
	WaitSeconds   int
	ReadyFile     string
	PostUpdateArg string
}

func (p Params) validate(platform update.Platform) error {
	fields := map[string]string{
		"target dir":   p.TargetDir,
		"source dir":   p.SourceDir,
		"extract dir":  p.ExtractDir,
		"backup dir":   p.BackupDir,
		"executable":   p.Executable,
		"process name": p.ProcessName,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is empty", ErrScript, name)
		}
		if strings.ContainsAny(value, "\r\n") {
			return fmt.Errorf("%w: %s contains a line break", ErrScript, name)
		}
		if platform.IsWindows() && strings.Contains(value, `"`) {
			return fmt.Errorf("%w: %s contains a quote", ErrScript, name)
		}
	}
	if strings.ContainsAny(p.ReadyFile, "\r\n") {
		return fmt.Errorf("%w: ready file contains a line break", ErrScript)
	}
	if p.WaitSeconds < 0 {
		return fmt.Errorf("%w: negative wait", ErrScript)
	}
	if p.HostPID < 0 {
		return fmt.Errorf("%w: negative host pid", ErrScript)
	}
	return nil
}

// RenderScript produces the helper script for platform: a batch file on
// Windows and a POSIX sh script elsewhere. Directories are trimmed of
// trailing separators before rendering, and the templates never append one
// before a closing quote.
func RenderScript(platform update.Platform, p Params) (string, error) {
	p.TargetDir = backup.TrimDir(p.TargetDir)
	p.SourceDir = backup.TrimDir(p.SourceDir)
	p.BackupDir = backup.TrimDir(p.BackupDir)
	if p.ExtractDir == "" {
		p.ExtractDir = p.SourceDir
	}
	p.ExtractDir = backup.TrimDir(p.ExtractDir)
	if p.PostUpdateArg == "" {
		p.PostUpdateArg = PostUpdateArg
	}

	if err := p.validate(platform); err != nil {
		return "", err
	}

	name := "update.sh"
	if platform.IsWindows() {
		name = "update.bat"
	}
	tmpl, err := templates.Parse(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrScript, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrScript, err)
	}

	script := buf.String()
	if platform.IsWindows() {
		script = strings.ReplaceAll(script, "\n", "\r\n")
	}
	return script, nil
}

// writeScript renders the helper and writes it to path with execute permission.
func writeScript(path string, platform update.Platform, p Params) error {
	script, err := RenderScript(platform, p)
	if err != nil {
		return err
	}
	//nolint:gosec // G306: the helper must be executable
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrScript, path, err)
	}
	return nil
}
