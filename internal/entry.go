// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultgraph/internal/api"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/index"
	"github.com/starford/vaultgraph/internal/mcpserver"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/sse"
	"github.com/starford/vaultgraph/internal/storage"
)

// ErrUnresolved is returned by Scan when unresolved references were found
// and the caller asked to fail on them.
var ErrUnresolved = errors.New("unresolved references found")

// Report formats accepted by Scan.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// components bundles what every command shares.
type components struct {
	logger *slog.Logger
	db     *index.DB
	svc    *graph.Service
	ignore []string
}

func newApplication(opts []Option) (*application, error) {
	app := &application{output: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup opens storage and the index and builds the graph service. The
// caller must close the returned db.
func (a *application) setup() (*components, error) {
	cfg := a.config

	logger := slog.New(slog.NewJSONHandler(a.output, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	scanOpts := cfg.Vault.ScanOptions()
	scanOpts.Ignore = indexIgnore(cfg.Vault.Path, cfg.SQLite.Path, scanOpts.Ignore)
	scanOpts.Logger = logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ignore", strings.Join(scanOpts.Ignore, ",")),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	return &components{
		logger: logger,
		db:     db,
		svc:    graph.NewService(scanOpts, db, store, logger),
		ignore: scanOpts.Ignore,
	}, nil
}

// indexIgnore adds the SQLite file and its sidecars to ignore when the
// database lives inside the vault, so index writes never look like vault
// changes.
func indexIgnore(vaultPath, dbPath string, ignore []string) []string {
	vault, err1 := filepath.Abs(vaultPath)
	db, err2 := filepath.Abs(dbPath)
	if err1 != nil || err2 != nil {
		return ignore
	}
	rel, err := filepath.Rel(vault, db)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ignore
	}
	base := filepath.Base(db)
	out := append([]string(nil), ignore...)
	for _, name := range []string{base, base + "-wal", base + "-shm", base + "-journal"} {
		if !contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Run starts the HTTP server and the vault watcher with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// A missing vault fails here instead of serving an empty graph.
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.db.Close()
	logger := rt.logger
	svc := rt.svc

	// SSE broker announces every completed rescan.
	broker := sse.NewBroker(2*time.Second, sse.WithLogger(logger))
	defer broker.Close()
	svc.OnRescan(func(r graph.Report) {
		broker.PublishRescan(r, r.Changed)
	})

	// Run initial scan.
	if _, err := svc.Rescan(ctx); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", readyHandler(svc))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Rescan the whole vault after every burst of file changes.
	if cfg.Watch.Enabled {
		g.Go(func() error {
			err := index.Watch(gCtx, index.WatchOptions{
				Root:     cfg.Vault.Path,
				Ignore:   rt.ignore,
				Debounce: cfg.Watch.Debounce,
				Logger:   logger,
			}, func(ctx context.Context) {
				if _, err := svc.Rescan(ctx); err != nil && ctx.Err() == nil {
					logger.Warn("watcher: rescan failed", slog.String("error", err.Error()))
				}
			})
			if err != nil {
				return fmt.Errorf("watcher error: %w", err)
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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

func readyHandler(svc *graph.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !svc.Scanned() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"scanning"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ScanOptions configures a one-shot scan.
type ScanOptions struct {
	// Format is FormatText or FormatJSON.
	Format string
	// IncludeExternal also reports unresolved external URLs.
	IncludeExternal bool
	// FailOnUnresolved makes Scan return ErrUnresolved when anything is reported.
	FailOnUnresolved bool
}

type scanReport struct {
	graph.Report
	UnresolvedReferences []models.Reference `json:"unresolved_references"`
}

// Scan rescans the vault once, stores the result and writes a report of
// unresolved references to w.
func Scan(ctx context.Context, w io.Writer, so ScanOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.db.Close()

	report, err := rt.svc.Rescan(ctx)
	if err != nil {
		return err
	}
	refs, err := rt.svc.Unresolved(ctx, so.IncludeExternal, 0)
	if err != nil {
		return err
	}

	if err := writeScanReport(w, so.Format, scanReport{Report: report, UnresolvedReferences: refs}); err != nil {
		return err
	}
	if so.FailOnUnresolved && len(refs) > 0 {
		return fmt.Errorf("%w: %d", ErrUnresolved, len(refs))
	}
	return nil
}

func writeScanReport(w io.Writer, format string, r scanReport) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatText, "":
		if _, err := fmt.Fprintf(w, "%d notes, %d assets, %d references, %d links, %d unresolved\n",
			r.Notes, r.Assets, r.References, r.Links, r.Unresolved); err != nil {
			return err
		}
		for _, ref := range r.UnresolvedReferences {
			if _, err := fmt.Fprintf(w, "%s:%d-%d: unresolved %s %q\n",
				ref.Path, ref.Range.Start, ref.Range.End, ref.Kind, ref.Dest); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// RunMCP scans the vault and serves graph tools over stdio until the
// client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.db.Close()

	if _, err := rt.svc.Rescan(ctx); err != nil {
		rt.logger.Warn("initial scan failed", slog.String("error", err.Error()))
	}

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc, app.version).ServeStdio()
}
