// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console selects stderr instead of a log file.
const Console = "console"

// Rotation limits for the log file.
const (
	maxSizeMB  = 5
	maxBackups = 10
	maxAgeDays = 30
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init parses level and routes output to a rotating file at path, or to stderr
// when path is empty or "console". The returned closer flushes the file.
func Init(level, path string) (io.Closer, error) {
	return initLogger(log.StandardLogger(), level, path)
}

func initLogger(logger *log.Logger, level, path string) (io.Closer, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Errorf("failed parsing log-level %s: %s", level, err)
		return nil, err
	}

	var closer io.Closer = nopCloser{}
	if path != "" && path != Console {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		rotating := &lumberjack.Logger{
			// Log file absolute path, os agnostic
			Filename:   filepath.ToSlash(path),
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		logger.SetOutput(rotating)
		closer = rotating
	} else {
		logger.SetOutput(os.Stderr)
	}

	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	logger.SetLevel(lvl)
	return closer, nil
}
