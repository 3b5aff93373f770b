package logging

import (
	"io"
	"log/slog"
	"os"
)

// Init installs the default slog logger. The level comes from LOG_LEVEL and
// defaults to errors only so diagnostics never bleed into the room view.
func Init() {
	level, _ := ParseLevel(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(New(os.Stderr, level))
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		}),
	)
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values report
// false and fall back to slog.LevelError.
func ParseLevel(s string) (slog.Level, bool) {
	switch s {
	case "dev", "development", "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "production", "prod":
		return slog.LevelError, true
	}
	return slog.LevelError, false
}
