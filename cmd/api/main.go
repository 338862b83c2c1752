package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/foldr/foldr-go/internal/config"
	"github.com/foldr/foldr-go/internal/handler"
	"github.com/foldr/foldr-go/internal/logging"
	"github.com/foldr/foldr-go/internal/repository"
	"github.com/foldr/foldr-go/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := config.Load()
	slog.SetDefault(logging.New(cfg.Log))

	routes := handler.RouterConfig{
		AuthRateLimitRPS:   cfg.AuthRateLimitRPS,
		AuthRateLimitBurst: cfg.AuthRateLimitBurst,
	}

	// Without a database the server still starts; API routes report it.
	db, err := repository.NewDB(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		slog.Warn("database connection failed, API routes disabled", "driver", cfg.DBDriver, "error", err)
	} else if err := repository.Migrate(context.Background(), db); err != nil {
		slog.Error("database migration failed, API routes disabled", "error", err)
		db.Close()
		db = nil
	}

	if db != nil {
		defer db.Close()
		routes.Auth = service.NewAuthService(
			repository.NewUserRepository(db),
			repository.NewTokenRepository(db),
			cfg.InviteCode,
		)
		routes.Sync = service.NewSyncService(repository.NewRecordRepository(db))
	}

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.NewRouter(appCtx, routes),
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "database", db != nil)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
