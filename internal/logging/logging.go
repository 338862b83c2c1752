// Package logging builds the slog logger shared by the server and the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/foldr/foldr-go/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger configured by cfg. When cfg.File is set, output goes
// to a size-rotated file instead of stdout.
func New(cfg config.LogConfig) *slog.Logger {
	return slog.New(NewHandler(Output(cfg), cfg))
}

// NewHandler builds a JSON or text handler writing to w.
func NewHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// Output picks the writer for cfg.
func Output(cfg config.LogConfig) io.Writer {
	if cfg.File == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
}

// ParseLevel maps a level name to slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
