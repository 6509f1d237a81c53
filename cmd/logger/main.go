package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto_dash/internal/app"
	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/service"

	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.String("config", infra.DefaultConfigPath, "path to the YAML config")
	source := pflag.String("source", "", "market source: coingecko | coinmarketcap_scrape")
	perPage := pflag.Int("per_page", 0, "coins per snapshot (1-250)")
	everyMinutes := pflag.Int("every_minutes", 0, "minutes between snapshots")
	once := pflag.Bool("once", false, "log a single snapshot and exit")
	pflag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 2. Flags override config
	cfg := bootstrap.Config
	if *source != "" {
		cfg.Source.Kind = domain.SourceKind(*source)
	}
	if *perPage > 0 {
		cfg.Source.PageSize = *perPage
	}
	if *everyMinutes > 0 {
		cfg.Logger.IntervalMinutes = *everyMinutes
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid flags", slog.Any("error", err))
		os.Exit(2)
	}

	src, err := app.NewMarketSource(cfg, cfg.Source.Kind)
	if err != nil {
		slog.Error("Failed to create market source", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := bootstrap.OpenStorage()
	if err != nil {
		slog.Error("Failed to open storage", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := service.NewSnapshotLogger(src, store, cfg.Source.PageSize)

	if *once {
		if _, err := logger.RunOnce(ctx, time.Now()); err != nil {
			slog.Error("Snapshot run failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := logger.Run(ctx, time.Duration(cfg.Logger.IntervalMinutes)*time.Minute); err != nil {
		slog.Error("Snapshot logger failed", slog.Any("error", err))
		os.Exit(1)
	}

	m := infra.GlobalMetrics.Snapshot()
	slog.Info("Shutting down gracefully",
		slog.Uint64("fetches", m.FetchesTotal),
		slog.Uint64("fetch_errors", m.FetchErrors),
		slog.Uint64("rows_logged", m.RowsLogged),
	)
}
