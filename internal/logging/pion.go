package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// levelTrace sits below slog.LevelDebug so pion's trace output stays hidden
// unless a handler explicitly asks for it.
const levelTrace = slog.LevelDebug - 4

// PionFactory routes pion's scoped loggers into slog.
type PionFactory struct {
	Logger *slog.Logger
}

// NewPionFactory returns a factory writing to l, or to slog.Default when l is nil.
func NewPionFactory(l *slog.Logger) *PionFactory {
	return &PionFactory{Logger: l}
}

func (f *PionFactory) NewLogger(scope string) logging.LeveledLogger {
	l := f.Logger
	if l == nil {
		l = slog.Default()
	}
	return &pionLogger{l: l.With("component", "pion", "scope", scope)}
}

type pionLogger struct {
	l *slog.Logger
}

func (p *pionLogger) log(level slog.Level, msg string) {
	p.l.Log(context.Background(), level, msg)
}

func (p *pionLogger) logf(level slog.Level, format string, args ...any) {
	if !p.l.Enabled(context.Background(), level) {
		return
	}
	p.l.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (p *pionLogger) Trace(msg string)                  { p.log(levelTrace, msg) }
func (p *pionLogger) Tracef(format string, args ...any) { p.logf(levelTrace, format, args...) }
func (p *pionLogger) Debug(msg string)                  { p.log(slog.LevelDebug, msg) }
func (p *pionLogger) Debugf(format string, args ...any) { p.logf(slog.LevelDebug, format, args...) }
func (p *pionLogger) Info(msg string)                   { p.log(slog.LevelInfo, msg) }
func (p *pionLogger) Infof(format string, args ...any)  { p.logf(slog.LevelInfo, format, args...) }
func (p *pionLogger) Warn(msg string)                   { p.log(slog.LevelWarn, msg) }
func (p *pionLogger) Warnf(format string, args ...any)  { p.logf(slog.LevelWarn, format, args...) }
func (p *pionLogger) Error(msg string)                  { p.log(slog.LevelError, msg) }
func (p *pionLogger) Errorf(format string, args ...any) { p.logf(slog.LevelError, format, args...) }
