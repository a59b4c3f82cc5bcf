// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hokuto-m/enrichd/internal/api"
	"github.com/hokuto-m/enrichd/internal/config"
	"github.com/hokuto-m/enrichd/internal/dedup"
	"github.com/hokuto-m/enrichd/internal/enrich"
	"github.com/hokuto-m/enrichd/internal/health"
	applog "github.com/hokuto-m/enrichd/internal/log"
	"github.com/hokuto-m/enrichd/internal/notion"
	"github.com/hokuto-m/enrichd/internal/research"
	"github.com/hokuto-m/enrichd/internal/statusfile"
	"github.com/hokuto-m/enrichd/internal/store"
	"github.com/hokuto-m/enrichd/internal/telemetry"
	"github.com/hokuto-m/enrichd/internal/version"
	"github.com/rs/zerolog"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	applog.Configure(applog.Config{
		Level:   "info",
		Service: "enrichd",
		Version: version.Version,
	})
	logger := applog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit via --config, otherwise ${ENRICHD_DATA}/config.yaml
	// when it exists (so file-managed config persists across restarts).
	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("ENRICHD_DATA", "/tmp/enrichd"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	cfg, err := config.Load(effectiveConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.load_error").Msg("failed to load configuration")
	}
	applog.SetLevel(cfg.LogLevel)

	if err := run(ctx, cfg, effectiveConfigPath, logger); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.fatal").Msg("daemon exited with error")
	}
}

func run(ctx context.Context, cfg config.Snapshot, configPath string, logger zerolog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTLPEndpoint != "",
		ServiceName:    "enrichd",
		ServiceVersion: version.Version,
		Endpoint:       cfg.OTLPEndpoint,
		SamplingRate:   cfg.TraceSample,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if terr := tp.Shutdown(context.Background()); terr != nil {
			logger.Error().Err(terr).Str("event", "telemetry.shutdown_error").Msg("failed to shut down tracer provider")
		}
	}()

	dedupStore, err := dedup.Open(filepath.Join(cfg.DataDir, "dedup"), cfg.DedupTTL)
	if err != nil {
		return fmt.Errorf("open dedup store: %w", err)
	}
	defer closeQuiet(logger, "dedup", dedupStore.Close)

	history, err := store.Open(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer closeQuiet(logger, "history", history.Close)

	notionClient := notion.New(cfg.NotionBase, cfg.NotionAPIKey, cfg.NotionVersion)
	researcher := research.New(cfg.OpenAIBase, cfg.OpenAIAPIKey, cfg.OpenAIModel)

	statusPath := filepath.Join(cfg.DataDir, "status.json")
	onStatus := func(st enrich.Status) {
		if werr := statusfile.Write(statusPath, st); werr != nil {
			logger.Error().Err(werr).Str("event", "status.write_error").Str("path", statusPath).Msg("failed to write status file")
		}
	}

	pipeline := enrich.NewPipeline(enrich.Options{
		TitleProp:   cfg.TitleProp,
		WebsiteProp: cfg.WebsiteProp,
		OutputProp:  cfg.OutputProp,
		SummaryMax:  cfg.SummaryMax,
	}, researcher, notionClient, history, dedupStore, onStatus)

	var pool *enrich.Pool
	if !cfg.Sync {
		pool = enrich.NewPool(pipeline, cfg.Workers, cfg.QueueSize)
		pool.Start()
	}

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewPingChecker("dedup", func(context.Context) error { return dedupStore.Ping() }))
	hm.RegisterChecker(health.NewPingChecker("history", history.Ping))
	hm.RegisterChecker(health.NewLastRunChecker(pipeline.Tracker().LastRun))
	if pool != nil {
		hm.RegisterChecker(health.NewQueueChecker(pool.Depth, pool.Capacity))
	}

	server := api.New(cfg, pipeline, pool, dedupStore, history, hm)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// webhook processing in sync mode can hold the request for minutes
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	if configPath != "" {
		go func() {
			if werr := config.Watch(ctx, configPath, nil); werr != nil {
				logger.Warn().Err(werr).Str("event", "config.watch_failed").Msg("config hot reload unavailable")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("event", "daemon.listening").
			Str("addr", cfg.Listen).
			Bool("sync", cfg.Sync).
			Msg("daemon started")
		if serr := httpServer.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
		}
	}()

	select {
	case serr := <-errCh:
		return serr
	case <-ctx.Done():
	}

	logger.Info().Str("event", "daemon.shutdown").Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Error().Err(serr).Str("event", "daemon.http_shutdown_error").Msg("http server shutdown failed")
	}

	if pool != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer drainCancel()
		if perr := pool.Shutdown(drainCtx); perr != nil {
			logger.Error().Err(perr).Str("event", "daemon.drain_error").Msg("worker pool did not drain cleanly")
		}
	}

	return nil
}

func closeQuiet(logger zerolog.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logger.Error().Err(err).Str("event", "daemon.close_error").Str("component", name).Msg("failed to close " + name)
	}
}
