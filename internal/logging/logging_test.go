package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/foldr/foldr-go/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandlerText(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, config.LogConfig{Level: "debug", Format: "text"}))

	l.Debug("pulled", "trips", 3)

	out := buf.String()
	for _, want := range []string{"level=DEBUG", "msg=pulled", "trips=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestNewHandlerJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, config.LogConfig{Level: "warn", Format: "json"}))

	l.Info("hidden")
	l.WarnContext(context.Background(), "shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered:\n%s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("expected JSON warn record:\n%s", out)
	}
}

func TestOutput(t *testing.T) {
	if Output(config.LogConfig{}) != os.Stdout {
		t.Error("empty File should log to stdout")
	}

	path := filepath.Join(t.TempDir(), "foldr.log")
	w := Output(config.LogConfig{File: path, MaxSizeMB: 1})
	lj, ok := w.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("Output() = %T, want *lumberjack.Logger", w)
	}
	defer lj.Close()

	if _, err := lj.Write([]byte("line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
