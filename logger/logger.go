// Package logger configures the process-wide log output with file rotation.
package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"socialchat/config"
)

// Setup routes the standard logger to stdout and a rotating log file.
// It returns the writer so callers can close or flush it on shutdown.
func Setup(cfg config.LogConfig) (io.WriteCloser, error) {
	if err := os.MkdirAll(cfg.Directory, 0o700); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, "socialchat.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	return rotator, nil
}
