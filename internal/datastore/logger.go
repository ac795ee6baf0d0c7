// Package datastore logging setup. Follows the project-wide convention of
// a "logs/" directory with one rotating file per service.
package datastore

import (
	"io"
	"log/slog"
	"sync"

	"github.com/scribe-notes/scribe/internal/errors"
	"github.com/scribe-notes/scribe/internal/logging"
)

var (
	datastoreLogger   *slog.Logger
	datastoreLevelVar = new(slog.LevelVar)
	loggerCloseFunc   func() error
	loggerOnce        sync.Once
	loggerMu          sync.RWMutex

	defaultLogPath = "logs/datastore.log"
)

// InitializeLogger initializes the datastore logger with the specified log
// file path. Safe to call multiple times, initialization happens once.
func InitializeLogger(logFilePath string) error {
	var initErr error

	loggerOnce.Do(func() {
		if logFilePath == "" {
			logFilePath = defaultLogPath
		}
		datastoreLevelVar.Set(slog.LevelInfo)

		var err error
		loggerMu.Lock()
		datastoreLogger, loggerCloseFunc, err = logging.NewFileLogger(logFilePath, "datastore", datastoreLevelVar)
		loggerMu.Unlock()
		if err != nil {
			// Fall back to a disabled logger rather than failing startup
			loggerMu.Lock()
			datastoreLogger = slog.New(slog.NewJSONHandler(io.Discard, nil)).With("service", "datastore")
			loggerCloseFunc = func() error { return nil }
			loggerMu.Unlock()

			initErr = errors.Newf("datastore: failed to initialize file logger: %v", err).
				Component("datastore").
				Category(errors.CategoryConfig).
				Context("log_file", logFilePath).
				Build()
		}
	})

	return initErr
}

// getLogger returns the datastore logger, initializing with defaults when
// InitializeLogger was never called.
func getLogger() *slog.Logger {
	loggerMu.RLock()
	logger := datastoreLogger
	loggerMu.RUnlock()
	if logger != nil {
		return logger
	}
	_ = InitializeLogger("")
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return datastoreLogger
}

// CloseLogger releases the log file writer.
func CloseLogger() error {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if loggerCloseFunc != nil {
		return loggerCloseFunc()
	}
	return nil
}

// SetLogLevel adjusts datastore log verbosity at runtime.
func SetLogLevel(level slog.Level) {
	datastoreLevelVar.Set(level)
}
