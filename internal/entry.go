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

	"github.com/starford/onto/internal/api"
	"github.com/starford/onto/internal/index"
	"github.com/starford/onto/internal/loader"
	"github.com/starford/onto/internal/mcpserver"
	"github.com/starford/onto/internal/service"
	"github.com/starford/onto/internal/sse"
	"github.com/starford/onto/internal/storage"
	"github.com/starford/onto/internal/validator"
	"github.com/starford/onto/internal/watcher"
)

var errConfigRequired = errors.New("config is required")

// OpenStore opens the configured store directory with its ignore globs.
func OpenStore(cfg *Config) (*storage.FS, error) {
	store, err := storage.NewFS(cfg.Store.Path, storage.WithIgnore(cfg.Store.Ignore...))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

// Run starts the HTTP server, the store watcher and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("strict", cfg.Validation.Strict),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure store directory exists.
	if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	store, err := OpenStore(cfg)
	if err != nil {
		return err
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := service.New(store,
		service.WithIndex(db),
		service.WithLogger(logger),
		service.WithStrict(cfg.Validation.Strict),
		service.WithReloadHook(func(snap *loader.Snapshot, report *validator.Report) {
			broker.PublishReload(map[string]int{
				"files":     len(snap.Files),
				"instances": len(snap.Graph.Instances),
				"edges":     len(snap.Graph.Edges),
			})
			broker.PublishValidation(report)
		}),
	)

	// Initial load; an invalid store is still served so it can be repaired.
	if err := svc.Reload(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	if report, passed, _ := svc.Validate(ctx, cfg.Validation.Strict); !passed {
		logger.Warn("store does not validate",
			slog.Int("errors", len(report.Errors)),
			slog.Int("warnings", len(report.Warnings)))
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, api.GraphLimits{
		DefaultDepth: cfg.Graph.DefaultDepth,
		MaxDepth:     cfg.Graph.MaxDepth,
	})

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.Graph(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	w := watcher.New(store.Root(), svc.Reload,
		watcher.WithLogger(logger),
		watcher.WithIgnore(store.Ignored),
		watcher.WithEventCallback(broker.PublishFileEvent),
	)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(gCtx)
	})

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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they
// never mix with the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))

	store, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	svc := service.New(store,
		service.WithIndex(db),
		service.WithLogger(logger),
		service.WithStrict(cfg.Validation.Strict))
	if err := svc.Reload(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	logger.Info("mcp: serving on stdio", slog.String("store_path", cfg.Store.Path))
	return mcpserver.New(svc, app.version, cfg.Graph.MaxDepth).ServeStdio()
}
