package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"crypto_dash/internal/cache"
	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/infra/cmc"
	"crypto_dash/internal/infra/coingecko"
	"crypto_dash/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Icons   *infra.IconDownloader
	Store   cache.Store
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration from configPath and installs the default
// logger. Storage and cache are opened on demand by each binary.
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	slog.Info("Bootstrapping crypto dashboard",
		slog.String("version", cfg.App.Version),
		slog.String("source", string(cfg.Source.Kind)),
	)
	return nil
}

// OpenStorage opens the snapshot database.
func (b *Bootstrap) OpenStorage() (*storage.Storage, error) {
	store, err := storage.NewStorage(b.Config.Storage.Path)
	if err != nil {
		return nil, err
	}
	b.Storage = store
	slog.Info("Database initialized", slog.String("path", b.Config.Storage.Path))
	return store, nil
}

// OpenCacheStore returns the configured snapshot store backend.
func (b *Bootstrap) OpenCacheStore(ctx context.Context) (cache.Store, error) {
	switch b.Config.Cache.Backend {
	case "redis":
		r := b.Config.Cache.Redis
		store, err := cache.NewRedisStore(ctx, r.Addr, r.Password, r.DB)
		if err != nil {
			return nil, err
		}
		b.Store = store
		slog.Info("Redis snapshot cache ready", slog.String("addr", r.Addr))
	default:
		b.Store = cache.NewMemoryStore()
	}
	return b.Store, nil
}

// OpenIcons prepares the icon cache directory.
func (b *Bootstrap) OpenIcons() (*infra.IconDownloader, error) {
	downloader, err := infra.NewIconDownloader(b.Config.Dashboard.IconsDir)
	if err != nil {
		return nil, err
	}
	b.Icons = downloader
	return downloader, nil
}

// SourceResolver adapts NewMarketSource for the snapshot cache.
func (b *Bootstrap) SourceResolver() cache.SourceResolver {
	return func(kind domain.SourceKind) (domain.MarketSource, error) {
		return NewMarketSource(b.Config, kind)
	}
}

// NewMarketSource builds the ingestion adapter for kind.
func NewMarketSource(cfg *infra.Config, kind domain.SourceKind) (domain.MarketSource, error) {
	timeout := time.Duration(cfg.Source.TimeoutSec) * time.Second
	switch kind {
	case domain.SourceCoinGecko:
		return coingecko.NewClient(
			coingecko.WithURL(cfg.Source.CoinGeckoURL),
			coingecko.WithVsCurrency(cfg.Source.VsCurrency),
			coingecko.WithTimeout(timeout),
		), nil
	case domain.SourceCoinMarketCap:
		return cmc.NewScraper(cfg.Source.CMCURL, timeout), nil
	default:
		return nil, &domain.ConfigError{Field: "source.kind", Err: fmt.Errorf("%w: %q", domain.ErrUnknownSource, kind)}
	}
}

// SyncIcons downloads icons for the snapshot rows in the background of a
// dashboard session.
func (b *Bootstrap) SyncIcons(ctx context.Context, snap domain.MarketSnapshot) {
	if b.Icons == nil {
		return
	}
	slog.Info("Starting icon synchronization", slog.Int("rows", snap.Len()))
	n := b.Icons.SyncIcons(ctx, snap.Rows())
	slog.Info("Icon synchronization completed", slog.Int("cached", n))
}

// Close releases opened resources.
func (b *Bootstrap) Close() {
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close storage", slog.Any("error", err))
		}
	}
	if rs, ok := b.Store.(*cache.RedisStore); ok {
		rs.Close()
	}
}
