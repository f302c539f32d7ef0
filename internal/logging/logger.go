package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ParseLevel maps a level name to slog. Unknown names fall back to info and
// report ok=false so callers can warn about it.
func ParseLevel(s string) (slog.Level, bool) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LogLevelDebug:
		return slog.LevelDebug, true
	case LogLevelInfo, "":
		return slog.LevelInfo, true
	case LogLevelWarn, "warning":
		return slog.LevelWarn, true
	case LogLevelError:
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// dailyRotatingWriter opens <name>-YYYY-MM-DD.log and switches files when
// the local date changes.
type dailyRotatingWriter struct {
	logDir      string
	filename    string
	now         func() time.Time
	currentFile *os.File
	currentDate string
	mu          sync.Mutex
}

func newDailyRotatingWriter(logDir, filename string) *dailyRotatingWriter {
	return &dailyRotatingWriter{logDir: logDir, filename: filename, now: time.Now}
}

func (w *dailyRotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().Format("2006-01-02")
	if w.currentFile == nil || w.currentDate != date {
		if err := w.rotate(date); err != nil {
			return 0, err
		}
	}
	return w.currentFile.Write(p)
}

func (w *dailyRotatingWriter) rotate(date string) error {
	if w.currentFile != nil {
		_ = w.currentFile.Close()
		w.currentFile = nil
	}
	p := filepath.Join(w.logDir, fmt.Sprintf("%s-%s.log", w.filename, date))
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.currentFile = f
	w.currentDate = date
	return nil
}

func (w *dailyRotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	return err
}

// New returns a text logger writing to w.
func New(w io.Writer, level slog.Level) Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// CreateLogger logs JSON lines to daily files under logDir, or text to
// stderr when logDir is empty or cannot be created. The returned closer
// releases the current log file.
func CreateLogger(level LogLevel, logDir, fileName string) (Logger, io.Closer) {
	lvl, _ := ParseLevel(string(level))
	if logDir == "" {
		return New(os.Stderr, lvl), io.NopCloser(nil)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		l := New(os.Stderr, lvl)
		l.Warn("log directory unavailable, logging to stderr", "dir", logDir, "error", err)
		return l, io.NopCloser(nil)
	}
	w := newDailyRotatingWriter(logDir, fileName)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), w
}

// Logf adapts l to the printf-style progress hook used by the conversion
// usecase. Lines are logged at debug level.
func Logf(l Logger) func(format string, args ...any) {
	return func(format string, args ...any) {
		l.Debug(fmt.Sprintf(format, args...))
	}
}

type nopLogger struct{}

// NopLogger discards everything.
var NopLogger Logger = nopLogger{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Debug(string, ...any) {}
