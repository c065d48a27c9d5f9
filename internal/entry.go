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

	"github.com/starford/studytrack/internal/api"
	"github.com/starford/studytrack/internal/app"
	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/gateway/rest"
	"github.com/starford/studytrack/internal/gateway/sqlite"
	"github.com/starford/studytrack/internal/inbox"
	"github.com/starford/studytrack/internal/market"
	"github.com/starford/studytrack/internal/mcpserver"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/storage"
	"github.com/starford/studytrack/internal/weather"
)

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	a, logger, err := setup(ctx, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("backend", cfg.Backend.Driver),
		slog.String("base_path", cfg.App.BasePath),
		slog.Bool("inbox", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           NewHTTPHandler(a.App),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	// Start the note inbox watcher.
	if a.Inbox != nil {
		g.Go(func() error {
			err := inbox.Watch(gCtx, a.Inbox, logger, func(path string, rec models.StudyRecord) {
				logger.Info("inbox note imported", slog.String("path", path), slog.Int64("record_id", rec.ID))
			})
			if err != nil {
				logger.Error("inbox watcher stopped", slog.String("error", err.Error()))
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
		// Stops the watcher as well.
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr unless
// another output is set, since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	a, logger, err := setup(ctx, append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("MCP server starting", slog.String("backend", a.config.Backend.Driver))
	return mcpserver.New(a.App).ServeStdio()
}

// NewHTTPHandler builds the root router: access middleware, health checks,
// the JSON API under /api and the guarded pages under the base path.
func NewHTTPHandler(a *app.App) http.Handler {
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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !a.Session.Snapshot().Initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"initializing"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(a))

	// Pages, behind the navigation guard.
	r.Mount(api.MountPath(a.Routes.Base()), api.NewPages(a))

	return r
}

// running is an App together with the configuration it was built from.
type running struct {
	*app.App
	config *Config
}

// setup applies opts, installs the JSON logger, opens the backend and builds
// and starts the application context.
func setup(ctx context.Context, opts ...Option) (*running, *slog.Logger, error) {
	o := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	if o.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := o.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(o.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	gw := o.gateway
	if gw == nil {
		var err error
		if gw, err = openGateway(cfg.Backend, logger); err != nil {
			return nil, nil, err
		}
	}

	appOpts, err := appOptions(cfg, logger)
	if err != nil {
		_ = gw.Close()
		return nil, nil, err
	}
	a := app.New(gw, appOpts...)
	if err := a.Start(ctx); err != nil {
		logger.Warn("session initialization failed", slog.String("error", err.Error()))
	}
	return &running{App: a, config: cfg}, logger, nil
}

func openGateway(cfg BackendConfig, logger *slog.Logger) (gateway.Gateway, error) {
	switch cfg.Driver {
	case BackendREST:
		c, err := rest.New(cfg.URL, cfg.AnonKey, rest.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("init backend: %w", err)
		}
		return c, nil
	default:
		db, err := sqlite.Open(cfg.SQLite.Path, sqlite.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("init backend: %w", err)
		}
		return db, nil
	}
}

func appOptions(cfg *Config, logger *slog.Logger) ([]app.Option, error) {
	loc, err := cfg.Weather.Location()
	if err != nil {
		return nil, fmt.Errorf("weather timezone: %w", err)
	}

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithBasePath(cfg.App.BasePath),
		app.WithTrustCachedSession(cfg.Router.TrustCachedSession),
		app.WithLocation(loc),
		app.WithWeather(weather.New(cfg.Weather.BaseURL, cfg.Weather.APIKey,
			weather.WithLogger(logger),
			weather.WithLocation(loc),
			weather.WithDefaultCity(cfg.Weather.City),
		)),
		app.WithMarket(market.NewClient(cfg.Tushare.URL, cfg.Tushare.Token, market.WithLogger(logger))),
	}

	if cfg.Inbox.Enabled {
		// Ensure inbox directory exists.
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create inbox dir: %w", err)
		}
		files, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return nil, fmt.Errorf("init inbox: %w", err)
		}
		opts = append(opts, app.WithInbox(files))
	}
	return opts, nil
}
