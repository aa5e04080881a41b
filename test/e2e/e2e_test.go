package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	binaryName = "upkeep"
	appExe     = "notes-e2e"
)

var binaryPath string

// TestMain builds the binary before running tests
func TestMain(m *testing.M) {
	name := binaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	cmd := exec.Command("go", "build", "-o", name, "../../cmd/upkeep")
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("failed to build binary: " + err.Error() + "\n" + string(out))
	}

	binaryPath, _ = filepath.Abs(name)

	code := m.Run()

	os.Remove(name)

	os.Exit(code)
}

// env is an isolated update host plus installation.
type env struct {
	root       string
	installDir string
	site       string
	marker     string
	config     string
	server     *httptest.Server
}

func setupEnv(t *testing.T) *env {
	t.Helper()

	root := t.TempDir()
	e := &env{
		root:       root,
		installDir: filepath.Join(root, "apps", "notes"),
		site:       filepath.Join(root, "site"),
		marker:     filepath.Join(root, "relaunched"),
		config:     filepath.Join(root, "upkeep.yaml"),
	}
	if err := os.MkdirAll(e.site, 0o755); err != nil {
		t.Fatal(err)
	}
	e.server = httptest.NewServer(http.FileServer(http.Dir(e.site)))
	t.Cleanup(e.server.Close)

	writeApp(t, e.installDir, "1.0.0")

	cfg := fmt.Sprintf(`app:
  name: notes
  executable: %s
  install_dir: %s
  version: "1.0.0"
update:
  base_url: %s
  manifest_path: notes/versions/latest.json
  helper_wait: 1s
  handoff_delay: 5s
  elevate: false
  cache_dir: %s
state:
  path: %s
log:
  file: %s
  level: debug
`, appExe, e.installDir, e.server.URL,
		filepath.Join(root, "cache"), filepath.Join(root, "state.toml"), filepath.Join(root, "upkeep.log"))
	if err := os.WriteFile(e.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return e
}

// writeApp creates a fake application whose launcher records its arguments.
func writeApp(t *testing.T, dir, version string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	script := fmt.Sprintf("#!/bin/sh\necho \"%s $*\" > \"$UPKEEP_E2E_MARKER\"\n", version)
	if err := os.WriteFile(filepath.Join(dir, appExe), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "VERSION"), []byte(version), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, append([]string{"--config", e.config}, args...)...)
	cmd.Env = append(os.Environ(),
		"HOME="+e.root,
		"XDG_CONFIG_HOME="+filepath.Join(e.root, ".config"),
		"UPKEEP_E2E_MARKER="+e.marker,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// publish packages a new release into the served site.
func (e *env) publish(t *testing.T, version string, extra ...string) {
	t.Helper()
	src := filepath.Join(e.root, "build-"+version)
	writeApp(t, src, version)

	args := append([]string{
		"release", "create", src, version,
		"--app", "notes",
		"--prefix", "notes",
		"--notes", "Faster sync;Bug fixes",
		"--output-dir", filepath.Join(e.root, "dist-"+version),
		"--publish", e.site,
	}, extra...)
	if out, err := e.run(t, args...); err != nil {
		t.Fatalf("release create failed: %v\n%s", err, out)
	}
}

func TestVersion(t *testing.T) {
	e := setupEnv(t)

	out, err := e.run(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "upkeep version") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestCheckNothingPublished(t *testing.T) {
	e := setupEnv(t)

	out, err := e.run(t, "check")
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No release has been published") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestCheckJSON(t *testing.T) {
	e := setupEnv(t)
	e.publish(t, "1.1.0")

	out, err := e.run(t, "check", "-o", "json")
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, out)
	}

	var result struct {
		CurrentVersion string `json:"currentVersion"`
		LatestVersion  string `json:"latestVersion"`
		Available      bool   `json:"available"`
		Compatible     bool   `json:"compatible"`
		Manifest       struct {
			Checksum     string   `json:"checksum"`
			ReleaseNotes []string `json:"releaseNotes"`
		} `json:"manifest"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if result.CurrentVersion != "1.0.0" || result.LatestVersion != "1.1.0" {
		t.Errorf("versions = %s -> %s", result.CurrentVersion, result.LatestVersion)
	}
	if !result.Available || !result.Compatible {
		t.Errorf("expected a compatible update, got %+v", result)
	}
	if len(result.Manifest.Checksum) != 64 {
		t.Errorf("checksum = %q", result.Manifest.Checksum)
	}
	if len(result.Manifest.ReleaseNotes) != 2 {
		t.Errorf("release notes = %v", result.Manifest.ReleaseNotes)
	}
}

func TestCheckYAMLNotSupported(t *testing.T) {
	e := setupEnv(t)
	e.publish(t, "2.0.0", "--min-version", "1.5.0")

	out, err := e.run(t, "check", "-o", "yaml")
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, out)
	}

	var result map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid YAML output: %v\n%s", err, out)
	}
	if result["compatible"] != false {
		t.Errorf("compatible = %v, want false", result["compatible"])
	}
}

func TestUpdateVersionNotSupported(t *testing.T) {
	e := setupEnv(t)
	e.publish(t, "2.0.0", "--min-version", "1.5.0")

	out, err := e.run(t, "update", "--silent")
	if err == nil {
		t.Fatalf("expected failure exit, got success:\n%s", out)
	}
	assertUntouched(t, e, "1.0.0")
}

func TestUpdateUnreachable(t *testing.T) {
	e := setupEnv(t)
	e.server.Close()

	out, err := e.run(t, "update", "--silent")
	if err == nil {
		t.Fatalf("expected failure exit, got success:\n%s", out)
	}
	if !strings.Contains(out, "network-error") {
		t.Errorf("output should name the outcome: %s", out)
	}
	assertUntouched(t, e, "1.0.0")
}

func TestUpdateInstalls(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("helper script is a POSIX shell script in this test")
	}
	e := setupEnv(t)
	e.publish(t, "1.1.0")

	out, err := e.run(t, "update", "--silent")
	if err != nil {
		t.Fatalf("update failed: %v\n%s", err, out)
	}

	// the helper finishes after upkeep exits
	deadline := time.Now().Add(20 * time.Second)
	var relaunch []byte
	for time.Now().Before(deadline) {
		if relaunch, err = os.ReadFile(e.marker); err == nil && len(relaunch) > 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if got := strings.TrimSpace(string(relaunch)); got != "1.1.0 --post-update" {
		t.Fatalf("relaunch marker = %q", got)
	}

	version, err := os.ReadFile(filepath.Join(e.installDir, "VERSION"))
	if err != nil || string(version) != "1.1.0" {
		t.Errorf("installed VERSION = %q, %v", version, err)
	}

	backups, _ := filepath.Glob(e.installDir + ".backup.*")
	if len(backups) != 1 {
		t.Fatalf("backups = %v", backups)
	}
	old, err := os.ReadFile(filepath.Join(backups[0], "VERSION"))
	if err != nil || string(old) != "1.0.0" {
		t.Errorf("backup VERSION = %q, %v", old, err)
	}

	state, err := os.ReadFile(filepath.Join(e.root, "state.toml"))
	if err != nil || !strings.Contains(string(state), "1.1.0") {
		t.Errorf("state = %q, %v", state, err)
	}
}

func TestBackupListAndPrune(t *testing.T) {
	e := setupEnv(t)
	for _, stamp := range []string{"20260101120000", "20260201120000", "20260301120000"} {
		if err := os.MkdirAll(e.installDir+".backup."+stamp, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	out, err := e.run(t, "backup", "list")
	if err != nil {
		t.Fatalf("backup list failed: %v\n%s", err, out)
	}
	if strings.Index(out, "20260301120000") > strings.Index(out, "20260101120000") {
		t.Errorf("backups should be listed newest first:\n%s", out)
	}

	out, err = e.run(t, "--post-update")
	if err != nil {
		t.Fatalf("post-update failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Update completed. You are now running version 1.0.0.") {
		t.Errorf("unexpected output: %s", out)
	}

	remaining, _ := filepath.Glob(e.installDir + ".backup.*")
	if len(remaining) != 1 || !strings.HasSuffix(remaining[0], "20260301120000") {
		t.Errorf("remaining backups = %v", remaining)
	}
}

func assertUntouched(t *testing.T, e *env, version string) {
	t.Helper()
	got, err := os.ReadFile(filepath.Join(e.installDir, "VERSION"))
	if err != nil || string(got) != version {
		t.Errorf("install dir changed: VERSION = %q, %v", got, err)
	}
	if backups, _ := filepath.Glob(e.installDir + ".backup.*"); len(backups) != 0 {
		t.Errorf("unexpected backups: %v", backups)
	}
	if _, err := os.Stat(e.marker); err == nil {
		t.Error("application was relaunched")
	}
}
