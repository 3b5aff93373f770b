package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  slog.Level
		known bool
	}{
		{"debug", slog.LevelDebug, true},
		{"dev", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"prod", slog.LevelError, true},
		{"", slog.LevelError, false},
		{"loud", slog.LevelError, false},
	}
	for _, tt := range tests {
		got, known := ParseLevel(tt.in)
		if got != tt.want || known != tt.known {
			t.Errorf("ParseLevel(%q) = %v,%v, want %v,%v", tt.in, got, known, tt.want, tt.known)
		}
	}
}

func TestPionFactoryScopesAndLevels(t *testing.T) {
	var buf bytes.Buffer
	f := NewPionFactory(New(&buf, slog.LevelInfo))

	l := f.NewLogger("ice")
	l.Debugf("hidden %d", 1)
	l.Warnf("gathering took %dms", 40)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
	if !strings.Contains(out, "gathering took 40ms") {
		t.Fatalf("warn line missing: %q", out)
	}
	if !strings.Contains(out, "scope=ice") {
		t.Fatalf("scope attribute missing: %q", out)
	}
}
