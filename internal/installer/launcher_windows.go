//go:build windows

package installer

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// Launch runs the batch script through cmd.exe, detached from this console.
// With Elevate set the script is started through ShellExecute "runas" so the
// helper can write into Program Files and kill the host.
func (l DetachedLauncher) Launch(scriptPath string) error {
	if l.Elevate {
		return shellExecuteRunAs(scriptPath)
	}

	cmd := exec.Command("cmd.exe", "/C", scriptPath)
	cmd.Dir = filepath.Dir(scriptPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	log.Infof("installer helper started with PID %d", cmd.Process.Pid)

	if err := cmd.Process.Release(); err != nil {
		log.Warnf("failed to release installer helper: %v", err)
	}
	return nil
}

func shellExecuteRunAs(scriptPath string) error {
	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	file, err := windows.UTF16PtrFromString("cmd.exe")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	args, err := windows.UTF16PtrFromString(`/C "` + scriptPath + `"`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	cwd, err := windows.UTF16PtrFromString(filepath.Dir(scriptPath))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	if err := windows.ShellExecute(0, verb, file, args, cwd, windows.SW_HIDE); err != nil {
		return fmt.Errorf("%w: runas: %v", ErrSpawn, err)
	}

	log.Info("installer helper started elevated")
	return nil
}
