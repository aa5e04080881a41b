package update

import (
	"runtime"
	"strings"
)

// Platform describes the current system platform
type Platform struct {
	OS   string // Operating system (windows, darwin, linux)
	Arch string // Architecture (amd64, arm64)
}

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// IsWindows reports whether helper scripts must be batch files.
func (p Platform) IsWindows() bool {
	return p.OS == "windows"
}

// ScriptExt returns the file extension of the installer helper script.
func (p Platform) ScriptExt() string {
	if p.IsWindows() {
		return ".bat"
	}
	return ".sh"
}

// ExecutableName appends ".exe" on Windows when name has no extension.
func (p Platform) ExecutableName(name string) string {
	if p.IsWindows() && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// IsSupported returns true if self-update is supported on this platform
func (p Platform) IsSupported() bool {
	supportedPlatforms := map[string][]string{
		"windows": {"amd64", "arm64", "386"},
		"darwin":  {"amd64", "arm64"},
		"linux":   {"amd64", "arm64"},
	}

	archs, ok := supportedPlatforms[p.OS]
	if !ok {
		return false
	}

	for _, arch := range archs {
		if p.Arch == arch {
			return true
		}
	}

	return false
}
