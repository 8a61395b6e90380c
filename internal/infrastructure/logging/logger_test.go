package logging

import (
	"log/slog"
	"testing"

	"github.com/lumina-home/lumina-core/internal/infrastructure/config"
)

func TestNew_JSONFormat(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "test")

	if logger == nil || logger.Logger == nil {
		t.Fatal("New() returned nil logger")
	}
}

func TestNew_TextFormat(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}, "test")

	if logger == nil || logger.Logger == nil {
		t.Fatal("New() returned nil logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWith_ReturnsNewLogger(t *testing.T) {
	base := Default()
	child := base.With("component", "test")

	if child == base {
		t.Error("With() should return a new logger")
	}
	if child.Logger == nil {
		t.Error("With() returned logger with nil slog.Logger")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil || logger.Logger == nil {
		t.Fatal("Default() returned nil logger")
	}
}
