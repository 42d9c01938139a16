package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/brandkit/api"
	"github.com/use-agent/brandkit/cache"
	"github.com/use-agent/brandkit/config"
	"github.com/use-agent/brandkit/pipeline"
	"github.com/use-agent/brandkit/scraper"
	"github.com/use-agent/brandkit/search"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	// ── 3. Browser manager (launches lazily on first page) ──────────
	sc := scraper.NewScraper(cfg.Browser)
	defer sc.Close()

	// ── 4. Ingestion pipeline ───────────────────────────────────────
	pl := newPipeline(cfg, sc)

	// One-shot mode: brandkit ingest <url>
	if len(os.Args) == 3 && os.Args[1] == "ingest" {
		os.Exit(ingestOnce(pl, cfg.Ingest.Budget, os.Args[2]))
	}

	slog.Info("brandkit starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"budget", cfg.Ingest.Budget,
		"search", cfg.Search.Enabled,
	)

	// ── 5. Profile cache ────────────────────────────────────────────
	var pc *cache.Cache
	if cfg.Cache.Enabled {
		pc = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(pl, sc, cfg, pc, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// In-flight ingestions finish within one budget.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Ingest.Budget+2*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// sc.Close() runs via defer and kills Chrome.
	slog.Info("brandkit stopped")
}

func newPipeline(cfg *config.Config, sc *scraper.Scraper) *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithObserver(pipeline.NewSlogObserver(slog.Default())),
	}
	if cfg.Search.Enabled {
		fetchOpts := []scraper.FetcherOption{scraper.WithTimeout(cfg.Search.Timeout)}
		if cfg.Search.Proxy != "" {
			fetchOpts = append(fetchOpts, scraper.WithProxy(cfg.Search.Proxy))
		}
		enhancer := search.NewEnhancer(scraper.NewHTTPFetcher(fetchOpts...), cfg.Search)
		opts = append(opts, pipeline.WithEnhancer(enhancer))
	}
	return pipeline.New(sc, cfg.Ingest, opts...)
}

// ingestOnce prints the profile of rawURL as JSON. Ingest never fails, so
// the exit code is non-zero only when the output cannot be written.
func ingestOnce(pl *pipeline.Pipeline, budget time.Duration, rawURL string) int {
	ctx, cancel := context.WithTimeout(context.Background(), budget+time.Second)
	defer cancel()

	profile := pl.Ingest(ctx, rawURL)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(profile); err != nil {
		slog.Error("failed to write profile", "error", err)
		return 1
	}
	return 0
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	// Logs go to stderr so one-shot mode keeps stdout for JSON.
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
