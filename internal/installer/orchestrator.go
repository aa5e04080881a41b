// Package installer hands an extracted release over to an out-of-process
// helper that replaces the installation after this process exits.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/adamancini/upkeep/internal/backup"
	"github.com/adamancini/upkeep/internal/update"
)

// Error variables for specific error conditions.
var (
	ErrExtraction = errors.New("package extraction failed")
	ErrScript     = errors.New("installer script generation failed")
	ErrSpawn      = errors.New("installer helper could not be started")
)

// Default timings.
const (
	DefaultHelperWait   = 3 * time.Second
	DefaultHandoffDelay = time.Second
)

// Terminator asks the host application to exit.
type Terminator func()

// Config holds what the orchestrator needs to know about the installation.
type Config struct {
	// WorkDir receives extraction directories, helper scripts and ready markers.
	WorkDir string
	// Executable is the file name relaunched from the install directory.
	Executable string
	// ProcessName is the image name the helper force-kills. Defaults to Executable.
	ProcessName string
	// HelperWait is how long the helper sleeps before killing the host.
	HelperWait time.Duration
	// HandoffDelay bounds how long Install waits for the helper to start.
	HandoffDelay time.Duration
}

// Orchestrator performs the handoff: extract, render helper, spawn, terminate.
type Orchestrator struct {
	cfg       Config
	platform  update.Platform
	launcher  Launcher
	terminate Terminator
	now       func() time.Time
	hostPID   int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLauncher replaces the detached process launcher.
func WithLauncher(l Launcher) Option {
	return func(o *Orchestrator) {
		o.launcher = l
	}
}

// WithTerminator sets the function called once the helper is running.
func WithTerminator(t Terminator) Option {
	return func(o *Orchestrator) {
		o.terminate = t
	}
}

// WithPlatform overrides the detected platform.
func WithPlatform(p update.Platform) Option {
	return func(o *Orchestrator) {
		o.platform = p
	}
}

// WithClock overrides the clock used for backup names.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithHostPID sets the process the helper waits for and kills before copying.
// It defaults to the current process; zero leaves only the name-based kill.
func WithHostPID(pid int) Option {
	return func(o *Orchestrator) {
		o.hostPID = pid
	}
}

// New creates an orchestrator. Without options it launches helpers detached
// and does not terminate anything.
func New(cfg Config, opts ...Option) *Orchestrator {
	if cfg.ProcessName == "" {
		cfg.ProcessName = cfg.Executable
	}
	if cfg.HelperWait <= 0 {
		cfg.HelperWait = DefaultHelperWait
	}
	if cfg.HandoffDelay < 0 {
		cfg.HandoffDelay = 0
	}
	o := &Orchestrator{
		cfg:      cfg,
		platform: update.Detect(),
		launcher: DetachedLauncher{},
		now:      time.Now,
		hostPID:  os.Getpid(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Install extracts archivePath and hands installDir over to a detached helper
// that backs it up, copies the new files in and relaunches the application.
//
// A nil error means the helper was started and termination was requested; it
// does not mean the files were copied. Any error is returned before the
// installation directory has been touched.
func (o *Orchestrator) Install(ctx context.Context, archivePath, newVersion, installDir string) (err error) {
	installDir = backup.TrimDir(installDir)
	id := uuid.NewString()

	logger := log.WithFields(log.Fields{
		"version": newVersion,
		"target":  installDir,
	})

	if err := os.MkdirAll(o.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("%w: create work dir: %v", ErrExtraction, err)
	}

	extractDir := filepath.Join(o.cfg.WorkDir, "extract-"+id)
	scriptPath := filepath.Join(o.cfg.WorkDir, "update-"+id+o.platform.ScriptExt())
	readyFile := filepath.Join(o.cfg.WorkDir, "ready-"+id)

	defer func() {
		if err == nil {
			return
		}
		if rerr := os.RemoveAll(extractDir); rerr != nil {
			logger.Warnf("failed to remove extraction dir: %v", rerr)
		}
		if rerr := os.Remove(scriptPath); rerr != nil && !os.IsNotExist(rerr) {
			logger.Warnf("failed to remove helper script: %v", rerr)
		}
	}()

	logger.Infof("extracting %s", archivePath)
	if err := Extract(archivePath, extractDir); err != nil {
		return err
	}

	sourceDir, err := contentRoot(extractDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	executable := o.platform.ExecutableName(o.cfg.Executable)
	if !fileExists(filepath.Join(sourceDir, executable)) {
		return fmt.Errorf("%w: package does not contain %s", ErrExtraction, executable)
	}

	params := Params{
		TargetDir:     installDir,
		SourceDir:     sourceDir,
		ExtractDir:    extractDir,
		BackupDir:     backup.Name(installDir, o.now()),
		Executable:    executable,
		ProcessName:   o.platform.ExecutableName(o.cfg.ProcessName),
		HostPID:       o.hostPID,
		WaitSeconds:   int(o.cfg.HelperWait.Round(time.Second) / time.Second),
		ReadyFile:     readyFile,
		PostUpdateArg: PostUpdateArg,
	}
	if !o.platform.IsWindows() {
		params.ProcessName = strings.TrimSuffix(o.cfg.ProcessName, ".exe")
	}

	if err := writeScript(scriptPath, o.platform, params); err != nil {
		return err
	}
	logger.WithField("script", scriptPath).Debug("installer helper written")

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	if err := o.launcher.Launch(scriptPath); err != nil {
		if errors.Is(err, ErrSpawn) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	// the helper removes its ready marker when it exits
	if waitForReady(ctx, readyFile, o.cfg.HandoffDelay) {
		logger.Debug("installer helper confirmed")
	} else {
		logger.Debug("no confirmation from installer helper, terminating anyway")
	}

	logger.WithField("backup", params.BackupDir).Info("handed off to installer helper")

	if o.terminate != nil {
		o.terminate()
	}
	return nil
}
