package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"stockgraphv1/config"
	"stockgraphv1/internal/api"
	"stockgraphv1/internal/cache"
	"stockgraphv1/internal/clock"
	"stockgraphv1/internal/eod"
	"stockgraphv1/internal/logger"
	"stockgraphv1/internal/metrics"
	"stockgraphv1/internal/provider"
	"stockgraphv1/internal/report"
	"stockgraphv1/internal/tickers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.Init("stockgraph-api", parseLogLevel(cfg.LogLevel))
	log.Info("starting", "api_addr", cfg.APIAddr, "metrics_addr", cfg.MetricsAddr)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Ticker symbol table ----
	os.MkdirAll(filepath.Dir(cfg.TickerDBPath), 0o755)
	tickerStore, err := tickers.New(cfg.TickerDBPath)
	if err != nil {
		log.Error("ticker store init failed", "err", err)
		os.Exit(1)
	}
	defer tickerStore.Close()
	if cfg.TickerSeedPath != "" {
		n, err := tickerStore.SeedFromJSON(cfg.TickerSeedPath)
		if err != nil {
			log.Error("ticker seed failed", "path", cfg.TickerSeedPath, "err", err)
			os.Exit(1)
		}
		log.Info("ticker table seeded", "path", cfg.TickerSeedPath, "count", n)
	}
	health.StartLivenessChecker(ctx, tickerStore.DB(), 10*time.Second)

	// ---- Upstream provider ----
	src := provider.New(provider.Config{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  cfg.ProviderAPIKey,
		Timeout: cfg.ProviderTimeout,
	})

	// ---- Caches ----
	clk := clock.System{}
	dayStore := cache.NewDayStore(clk, cfg.CacheTTL)
	dayStore.Cache().StartSweeper(ctx, cfg.CacheSweep)

	// ---- Domain services ----
	eodSvc := eod.New(dayStore, src, prom, health, log)
	reportSvc := report.New(eodSvc, clk, cfg.ReportTTL, prom, log)
	reportSvc.HistoricalCache().Cache().StartSweeper(ctx, cfg.CacheSweep)
	reportSvc.AlertCache().Cache().StartSweeper(ctx, cfg.CacheSweep)

	// ---- HTTP API ----
	handler := api.NewHandler(eodSvc, reportSvc, tickerStore, log)
	srv := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      api.NewRouter(handler, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("api server listening", "addr", cfg.APIAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("api server error", "err", err)
			sigCh <- syscall.SIGTERM
		}
	}()

	// ---- Wait for shutdown signal ----
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Info("shutdown complete")
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
