// Package runlog writes the per-session debug log.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// pkgLogger is the session logger used by components without their own.
var pkgLogger *Logger
var pkgLoggerMu sync.RWMutex

// SetDefault sets the package-level logger.
func SetDefault(l *Logger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// Logf writes a message using the package-level logger.
func Logf(format string, args ...interface{}) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()

	if l != nil {
		l.Log(format, args...)
	}
}

// Logger is a mutex-guarded, append-only file logger.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a logger writing to path, creating parent directories.
// An empty path returns a no-op logger.
func New(path string) (*Logger, error) {
	if path == "" {
		return &Logger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{file: f}
	l.Log("=== replica session log started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// ForSession creates a logger at <sessionDir>/logs/run.log.
// Returns a no-op logger if the file cannot be created.
func ForSession(sessionDir string) *Logger {
	l, err := New(filepath.Join(sessionDir, "logs", "run.log"))
	if err != nil {
		return &Logger{}
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{}
}

// Log writes a timestamped line. No-op on a nil logger or one without a file.
func (l *Logger) Log(format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.file, "[%s] %s\n", timestamp, msg)
	l.file.Sync()
}

// Stage writes a line tagged with the iteration index and stage name, so a
// failure can be traced back to the matching iteration artifacts.
func (l *Logger) Stage(iteration int, stage string, format string, args ...interface{}) {
	l.Log("[iter %d][%s] %s", iteration, stage, fmt.Sprintf(format, args...))
}

// Path returns the log file path, or "" for a no-op logger.
func (l *Logger) Path() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Close closes the log file. Safe on nil or no-op loggers.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}
