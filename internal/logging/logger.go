package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/qc-desk/internal/config"
)

// Logger appends timestamped lines to .qcdesk/logs/qcdesk.log so headless
// commands (stub, export) leave a trail next to the TUI journey log. An
// optional mirror receives the same lines, usually stderr.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	mirror io.Writer
}

// New creates (or reuses) the log file for the current project directory.
func New(projectDir string) (*Logger, error) {
	logDir := filepath.Join(projectDir, config.QCDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, "qcdesk.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{file: f}, nil
}

// Mirror copies every subsequent line to w as well.
func (l *Logger) Mirror(w io.Writer) *Logger {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	l.mirror = w
	l.mu.Unlock()
	return l
}

// Path returns the backing file name.
func (l *Logger) Path() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Printf writes a single timestamped line to the log file.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	line = strings.TrimRight(line, "\n")
	timestamp := time.Now().Format(time.RFC3339)
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "[%s] %s\n", timestamp, line)
	if l.mirror != nil {
		fmt.Fprintf(l.mirror, "%s\n", line)
	}
}
