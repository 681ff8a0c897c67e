package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		log := New(Config{Level: "info", Format: format}, "test")
		if log == nil || log.Logger == nil {
			t.Errorf("New(format=%q) returned nil logger", format)
		}
	}
}

func TestLogger_With(t *testing.T) {
	log := Discard()
	child := log.With("engine", "postgres")
	if child == nil || child.Logger == nil {
		t.Fatal("With() returned nil logger")
	}
	if child == log {
		t.Error("With() should return a new Logger")
	}
}

func TestDiscard_DropsEverything(t *testing.T) {
	log := Discard()
	// Must not panic and must be usable as a default.
	log.Debug("dropped")
	log.Info("dropped", "key", "value")
	log.Error("dropped")
}
