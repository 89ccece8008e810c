package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"kiro-console/internal/config"

	log "github.com/sirupsen/logrus"
)

var (
	logMux        sync.Mutex
	logFileHandle *os.File
)

// Setup configures the global logrus logger. Debug switches to a text
// formatter at debug level; otherwise JSON at info. Calling it again, as a
// config reload does, replaces the previous output.
func Setup(cfg config.LoggingConfig) error {
	logMux.Lock()
	defer logMux.Unlock()

	var formatter log.Formatter = &log.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	level := log.InfoLevel
	if cfg.Debug {
		formatter = &log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339Nano}
		level = log.DebugLevel
	}

	writers := []io.Writer{os.Stdout}
	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	log.SetFormatter(formatter)
	log.SetLevel(level)
	log.SetOutput(io.MultiWriter(writers...))

	if logFileHandle != nil {
		_ = logFileHandle.Close()
	}
	logFileHandle = file
	return nil
}
