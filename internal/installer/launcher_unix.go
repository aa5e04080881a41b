//go:build !windows

package installer

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// Launch runs the script with /bin/sh in a new session so it survives the
// host being killed. Elevate is ignored; the helper inherits this user.
func (l DetachedLauncher) Launch(scriptPath string) error {
	cmd := exec.Command("/bin/sh", scriptPath)
	cmd.Dir = filepath.Dir(scriptPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	log.Infof("installer helper started with PID %d", cmd.Process.Pid)

	// Release the process so the OS can fully detach it
	if err := cmd.Process.Release(); err != nil {
		log.Warnf("failed to release installer helper: %v", err)
	}
	return nil
}
