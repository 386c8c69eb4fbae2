package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Logger writes structured logs: text to stdout and, when a log file is
// configured, JSON to that file.
type Logger struct {
	*slog.Logger
	closeFn func() error
}

// New creates a Logger at the given level. If file is non-empty, records are
// also written there as JSON. A file that cannot be opened is reported on
// stdout and skipped.
func New(level, file string) *Logger {
	lvl := ParseLevel(level)
	stdout := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	if file == "" {
		return &Logger{Logger: slog.New(stdout), closeFn: func() error { return nil }}
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l := slog.New(stdout)
		l.Error("failed to open log file, using stdout only", "file", file, "error", err)
		return &Logger{Logger: l, closeFn: func() error { return nil }}
	}

	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: lvl})
	return &Logger{
		Logger:  slog.New(slogmulti.Fanout(stdout, fileHandler)),
		closeFn: f.Close,
	}
}

// NewWithWriters builds a fan-out Logger over arbitrary writers (for tests).
func NewWithWriters(text, json io.Writer, level string) *Logger {
	lvl := ParseLevel(level)
	return &Logger{
		Logger: slog.New(slogmulti.Fanout(
			slog.NewTextHandler(text, &slog.HandlerOptions{Level: lvl}),
			slog.NewJSONHandler(json, &slog.HandlerOptions{Level: lvl}),
		)),
		closeFn: func() error { return nil },
	}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	return l.closeFn()
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
