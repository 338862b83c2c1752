package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/foldr/foldr-go/internal/middleware"
	"github.com/foldr/foldr-go/internal/service"
)

// RouterConfig collects what NewRouter mounts. When Auth or Sync is nil the
// corresponding routes answer with Unavailable.
type RouterConfig struct {
	Auth               *service.AuthService
	Sync               *service.SyncService
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int
}

// NewRouter builds the HTTP API. Background work started by the middleware
// stops when ctx is done.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)

	// /api/health bypasses client caches, the offline proxy polls it.
	r.Get("/health", health)
	r.Get("/api/health", health)

	if cfg.Auth == nil || cfg.Sync == nil {
		r.HandleFunc("/api/auth/*", Unavailable)
		r.HandleFunc("/api/sync/*", Unavailable)
		return r
	}

	authHandler := NewAuthHandler(cfg.Auth)
	syncHandler := NewSyncHandler(cfg.Sync)

	r.Route("/api/auth", func(r chi.Router) {
		if cfg.AuthRateLimitRPS > 0 {
			r.Use(middleware.RateLimit(ctx, cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst))
		}
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/change-password", authHandler.HandleChangePassword)
		r.Post("/reset-password", authHandler.HandleResetPassword)
	})

	r.Route("/api/sync", func(r chi.Router) {
		r.Use(middleware.TokenAuth(cfg.Auth))
		r.Get("/pull", syncHandler.HandlePull)
		r.Post("/push", syncHandler.HandlePush)
		r.Post("/delete", syncHandler.HandleDelete)
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
