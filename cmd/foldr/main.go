package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/foldr/foldr-go/internal/client/cli"
	"github.com/foldr/foldr-go/internal/config"
	"github.com/foldr/foldr-go/internal/logging"
)

func main() {
	// A missing .env is normal for the CLI.
	_ = godotenv.Load()

	cfg := config.LoadClient()

	fs := flag.NewFlagSet("foldr", flag.ExitOnError)
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "server base URL")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "local data directory")
	fs.StringVar(&cfg.CacheVersion, "cache-version", cfg.CacheVersion, "offline cache version")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "network timeout")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	fs.Parse(os.Args[1:])

	if cfg.Log.File == "" {
		// Keep stdout for command output.
		cfg.Log.Format = "text"
		slog.SetDefault(slog.New(logging.NewHandler(os.Stderr, cfg.Log)))
	} else {
		slog.SetDefault(logging.New(cfg.Log))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := cli.New(cfg, os.Stdin, os.Stdout)
	err := app.Run(ctx, fs.Args())
	stop()
	if cerr := app.Close(); cerr != nil {
		slog.Warn("closing local store", "error", cerr)
	}

	if err != nil {
		// Run has already printed the usage text for a bare ErrUsage.
		if err != cli.ErrUsage {
			fmt.Fprintln(os.Stderr, "foldr:", err)
		}
		os.Exit(1)
	}
}
