package backup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManager_Prune(t *testing.T) {
	root := t.TempDir()
	installDir := filepath.Join(root, "app")

	names := []string{
		installDir + ".backup.20240101000000",
		installDir + ".backup.20240102000000",
		installDir + ".backup.20240103000000",
		installDir + ".backup.20240104000000",
		installDir + ".backup.20240105000000",
	}
	mkdirs(t, append([]string{installDir}, names...)...)
	if err := os.WriteFile(filepath.Join(names[0], "app.exe"), []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(installDir)

	// Prune to keep only 2
	result, err := manager.Prune(2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}

	if result.Kept != 2 {
		t.Errorf("Prune() Kept = %v, want 2", result.Kept)
	}
	if len(result.Deleted) != 3 {
		t.Errorf("Prune() Deleted count = %v, want 3", len(result.Deleted))
	}

	// Verify remaining backups are the newest two
	backups, err := manager.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("List() after prune = %v, want 2", len(backups))
	}
	if backups[0].Path != names[4] || backups[1].Path != names[3] {
		t.Errorf("List() after prune = %v, %v", backups[0].Path, backups[1].Path)
	}

	// The installation itself is never touched
	if _, err := os.Stat(installDir); err != nil {
		t.Errorf("install dir removed: %v", err)
	}
}

func TestManager_PruneDefaultKeepsOne(t *testing.T) {
	root := t.TempDir()
	installDir := filepath.Join(root, "app")
	mkdirs(t,
		installDir+".backup.20240101000000",
		installDir+".backup.20240102000000",
	)

	manager := NewManager(installDir)
	result, err := manager.Prune(DefaultKeepCount)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if result.Kept != 1 || len(result.Deleted) != 1 {
		t.Errorf("Prune() = %+v, want Kept=1 Deleted=1", result)
	}
	if _, err := os.Stat(installDir + ".backup.20240102000000"); err != nil {
		t.Errorf("newest backup removed: %v", err)
	}
}

func TestManager_PruneNoOp(t *testing.T) {
	root := t.TempDir()
	installDir := filepath.Join(root, "app")
	mkdirs(t,
		installDir+".backup.20240101000000",
		installDir+".backup.20240102000000",
	)

	manager := NewManager(installDir)

	// Prune with keep=5 (more than we have)
	result, err := manager.Prune(5)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}

	if result.Kept != 2 {
		t.Errorf("Prune() Kept = %v, want 2", result.Kept)
	}
	if len(result.Deleted) != 0 {
		t.Errorf("Prune() Deleted count = %v, want 0", len(result.Deleted))
	}
}

func TestManager_PruneNegative(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "app"))

	if _, err := manager.Prune(-1); err == nil {
		t.Error("Prune(-1) should return error")
	}
}
