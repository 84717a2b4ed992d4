package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RotatingLogger writes log lines into one file per ISO week under logDir
// and removes files older than the retention window.
type RotatingLogger struct {
	logDir      string
	retention   time.Duration
	mu          sync.Mutex
	currentFile *os.File
	currentWeek string
	lastCleanup time.Time
}

// NewRotatingLogger creates a rotating logger keeping retentionWeeks weeks
// of files.
func NewRotatingLogger(logDir string, retentionWeeks int) *RotatingLogger {
	return &RotatingLogger{
		logDir:    logDir,
		retention: time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
	}
}

// getWeekKey returns the week key in YYYY-Www format (ISO week)
func getWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Write implements io.Writer, rotating to a new weekly file when the ISO
// week changes.
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := getWeekKey(time.Now())
	if rl.currentFile == nil || week != rl.currentWeek {
		if err := rl.rotate(week); err != nil {
			return 0, err
		}
	}

	// Opportunistic cleanup, at most once a day.
	if time.Since(rl.lastCleanup) > 24*time.Hour {
		rl.lastCleanup = time.Now()
		if err := rl.cleanupOldLogs(); err != nil {
			slog.Warn("Failed to clean up old log files", "error", err)
		}
	}

	return rl.currentFile.Write(p)
}

// Close closes the current log file.
func (rl *RotatingLogger) Close() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.currentFile == nil {
		return nil
	}
	err := rl.currentFile.Close()
	rl.currentFile = nil
	return err
}

func (rl *RotatingLogger) rotate(week string) error {
	if rl.currentFile != nil {
		if err := rl.currentFile.Close(); err != nil {
			slog.Warn("Failed to close log file during rotation", "error", err)
		}
	}
	if err := os.MkdirAll(rl.logDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(rl.logDir, fmt.Sprintf("dossier-%s.log", week))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	rl.currentFile = file
	rl.currentWeek = week
	return nil
}

func (rl *RotatingLogger) cleanupOldLogs() error {
	matches, err := filepath.Glob(filepath.Join(rl.logDir, "dossier-*.log"))
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-rl.retention)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				slog.Warn("Failed to remove old log file", "file", path, "error", err)
			}
		}
	}
	return nil
}

// SetupLogger builds a logger writing JSON lines to the rotating file and
// text to stderr.
func SetupLogger(logDir string, retentionWeeks int) *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if logDir == "" {
		return slog.New(console)
	}

	rotating := NewRotatingLogger(logDir, retentionWeeks)
	file := slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: level})
	return slog.New(&multiHandler{handlers: []slog.Handler{console, file}})
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// multiHandler fans a record out to every underlying handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
