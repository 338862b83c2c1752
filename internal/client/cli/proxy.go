package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/foldr/foldr-go/internal/client/api"
	"github.com/foldr/foldr-go/internal/client/netstatus"
	"github.com/foldr/foldr-go/internal/client/syncer"
	"github.com/foldr/foldr-go/internal/middleware"
	"github.com/foldr/foldr-go/internal/offline"
)

const proxyShutdownTimeout = 5 * time.Second

func (a *App) proxy(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("proxy", flag.ContinueOnError)
	fs.SetOutput(a.out)
	addr := fs.String("addr", a.cfg.ProxyAddr, "listen address")
	manifest := fs.String("manifest", "", "comma separated paths to precache")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return err
	}
	return a.serveProxy(ctx, ln, splitList(*manifest))
}

// serveProxy runs the offline worker in front of the server on ln until ctx
// is done. Regained connectivity triggers a full sync.
func (a *App) serveProxy(ctx context.Context, ln net.Listener, manifest []string) error {
	upstream, err := url.Parse(a.cfg.ServerURL)
	if err != nil {
		ln.Close()
		return fmt.Errorf("invalid server url: %w", err)
	}
	st, err := a.store.Get()
	if err != nil {
		ln.Close()
		return fmt.Errorf("opening local store: %w", err)
	}

	detector := netstatus.New()
	w, err := offline.New(offline.Options{
		Origin:   upstream,
		Version:  a.cfg.CacheVersion,
		Manifest: manifest,
		Timeout:  a.cfg.Timeout,
		Storage:  st.CacheStorage(),
		Status:   detector,
	})
	if err != nil {
		ln.Close()
		return err
	}

	if err := w.Install(ctx); err != nil {
		slog.Warn("precache failed, serving the previous cache generation until the next install", "error", err)
	} else if err := w.Activate(ctx); err != nil {
		ln.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go w.Watch(ctx, detector)
	go a.pollHealth(ctx, w, upstream)

	s := syncer.New(api.New(a.cfg.ServerURL, api.WithTransport(w)), st)
	msgs, unsubscribe := w.Subscribe()
	defer unsubscribe()
	go func() {
		for msg := range msgs {
			if msg.Type != offline.SyncNow {
				continue
			}
			result, err := s.SyncNow(ctx)
			if err != nil {
				slog.Warn("sync after reconnect failed", "error", err)
				continue
			}
			slog.Info("synced after reconnect", "applied", len(result.Applied), "skipped", len(result.Skipped))
		}
	}()

	srv := &http.Server{
		Handler:           middleware.Logger(w.Handler(upstream)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	fmt.Fprintf(a.out, "Serving %s on http://%s\n", upstream, ln.Addr())

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), proxyShutdownTimeout)
	defer done()
	err = srv.Shutdown(shutdownCtx)
	w.Wait()
	return err
}

// pollHealth polls the server health endpoint through the worker so the detector
// notices a reconnect even when nothing else is making requests.
func (a *App) pollHealth(ctx context.Context, w *offline.Worker, upstream *url.URL) {
	if a.cfg.HealthInterval <= 0 {
		return
	}
	target := upstream.ResolveReference(&url.URL{Path: "/api/health"}).String()
	client := &http.Client{Transport: w}

	ticker := time.NewTicker(a.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
