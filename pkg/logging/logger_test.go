package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("default level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default pretty should be false")
	}
}

func TestSetup_WritesToOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelDebug, Output: buf})

	logger.Debug().Str("key", "stock_data:abc").Msg("cache hit")

	output := buf.String()
	if !strings.Contains(output, "cache hit") {
		t.Errorf("output missing message: %q", output)
	}
	if !strings.Contains(output, "stock_data:abc") {
		t.Errorf("output missing field: %q", output)
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("test")
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()
	for _, filtered := range []string{"debug message", "info message"} {
		if strings.Contains(output, filtered) {
			t.Errorf("%q should be filtered out at warn level", filtered)
		}
	}
	for _, kept := range []string{"warn message", "error message"} {
		if !strings.Contains(output, kept) {
			t.Errorf("%q should be present at warn level", kept)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("sweeper")
	logger.Info().Msg("started")

	output := buf.String()
	if !strings.Contains(output, "sweeper") {
		t.Errorf("output missing component field: %q", output)
	}
}
