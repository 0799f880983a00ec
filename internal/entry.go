// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/flare/internal/api"
	"github.com/starford/flare/internal/flareservice"
	"github.com/starford/flare/internal/mcpserver"
	"github.com/starford/flare/internal/seed"
	"github.com/starford/flare/internal/sse"
	"github.com/starford/flare/internal/storage"
	"github.com/starford/flare/internal/store"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger initializes the structured JSON logger and sets it as default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openBackends opens the photo storage and the SQLite store.
func openBackends(cfg *Config) (*storage.FS, *store.DB, error) {
	if err := os.MkdirAll(cfg.Photos.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create photos dir: %w", err)
	}
	photos, err := storage.NewFS(cfg.Photos.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init photo storage: %w", err)
	}
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	return photos, db, nil
}

// syncSeed runs the initial seed sync. A broken seed file is logged, not fatal.
func syncSeed(ctx context.Context, cfg *Config, db *store.DB, logger *slog.Logger) *seed.Syncer {
	if !cfg.Seed.Enabled() {
		return nil
	}
	syncer := seed.NewSyncer(db, cfg.Seed.Path, logger)
	if _, err := syncer.Sync(ctx); err != nil {
		logger.Warn("initial seed sync failed", slog.String("path", cfg.Seed.Path), slog.String("error", err.Error()))
	}
	return syncer
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("photos_path", cfg.Photos.Path),
		slog.String("seed_path", cfg.Seed.Path),
		slog.Float64("match_threshold_m", cfg.Matching.ThresholdMeters),
		slog.Float64("default_radius_m", cfg.Matching.DefaultRadiusMeters),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	photos, db, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	syncer := syncSeed(ctx, cfg, db, logger)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build flare service and API router.
	svc := flareservice.NewService(db, photos, cfg.Matching.Settings(), flareEvents(broker))
	apiRouter := api.NewRouter(svc, photos, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Re-sync known places when the seed file changes.
	if syncer != nil && cfg.Seed.Watch {
		g.Go(func() error {
			if err := syncer.Watch(gCtx, broker.PublishPlacesSynced); err != nil {
				logger.Error("seed watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context once shutdown begins so the
// remaining goroutines (seed watcher) stop too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs must not go to stdout in
// this mode; pass WithLogOutput(os.Stderr).
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	photos, db, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	syncSeed(ctx, cfg, db, logger)

	svc := flareservice.NewService(db, photos, cfg.Matching.Settings(), nil)
	logger.Info("MCP server starting on stdio", slog.String("sqlite_path", cfg.SQLite.Path))
	if err := mcpserver.New(svc).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// flareEvents forwards service events to the SSE broker.
func flareEvents(b *sse.Broker) flareservice.EventFunc {
	return func(e flareservice.Event) {
		b.PublishFlareChange(sse.FlareChange{Kind: e.Kind, ID: e.FlareID, KnownPlaceID: e.KnownPlaceID})
	}
}
