package installer

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// waitForReady blocks until readyFile appears, timeout elapses, or ctx is
// done. It reports whether the helper confirmed it is running.
func waitForReady(ctx context.Context, readyFile string, timeout time.Duration) bool {
	if readyFile == "" {
		sleepCtx(ctx, timeout)
		return false
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Debugf("ready watcher unavailable: %v", err)
		sleepCtx(ctx, timeout)
		return fileExists(readyFile)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(readyFile)); err != nil {
		log.Debugf("watch %s: %v", filepath.Dir(readyFile), err)
		sleepCtx(ctx, timeout)
		return fileExists(readyFile)
	}

	// the helper may have been faster than the watch
	if fileExists(readyFile) {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return fileExists(readyFile)
			}
			if filepath.Clean(event.Name) != filepath.Clean(readyFile) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				return true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fileExists(readyFile)
			}
			log.Debugf("ready watcher: %v", err)
		case <-timer.C:
			return fileExists(readyFile)
		case <-ctx.Done():
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
