package infra

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"crypto_dash/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Source.Kind != domain.SourceCoinGecko {
		t.Errorf("Expected default source coingecko, got %s", cfg.Source.Kind)
	}
	if cfg.Source.PageSize != 200 {
		t.Errorf("Expected default page size 200, got %d", cfg.Source.PageSize)
	}
	if cfg.Cache.TTLSec != 120 {
		t.Errorf("Expected default cache TTL 120, got %d", cfg.Cache.TTLSec)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: coinmarketcap_scrape
  page_size: 50
logger:
  interval_minutes: 5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Source.Kind != domain.SourceCoinMarketCap {
		t.Errorf("Expected coinmarketcap_scrape, got %s", cfg.Source.Kind)
	}
	if cfg.Source.PageSize != 50 {
		t.Errorf("Expected page size 50, got %d", cfg.Source.PageSize)
	}
	if cfg.Logger.IntervalMinutes != 5 {
		t.Errorf("Expected interval 5, got %d", cfg.Logger.IntervalMinutes)
	}
	// untouched keys keep defaults
	if cfg.Source.VsCurrency != "usd" {
		t.Errorf("Expected vs_currency usd, got %s", cfg.Source.VsCurrency)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("CRYPTO_PAGE_SIZE", "75")
	t.Setenv("CRYPTO_DB_PATH", "/tmp/override.db")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Source.PageSize != 75 {
		t.Errorf("Expected page size 75, got %d", cfg.Source.PageSize)
	}
	if cfg.Storage.Path != "/tmp/override.db" {
		t.Errorf("Expected db path override, got %s", cfg.Storage.Path)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("unknown source", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "source:\n  kind: binance\n"))
		if !errors.Is(err, domain.ErrUnknownSource) {
			t.Errorf("Expected ErrUnknownSource, got %v", err)
		}
	})

	t.Run("bad work hours", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "dashboard:\n  work_start_hour: 18\n  work_end_hour: 9\n"))
		var ce *domain.ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("Expected ConfigError, got %v", err)
		}
		if ce.Field != "dashboard.work_hours" {
			t.Errorf("Expected field dashboard.work_hours, got %s", ce.Field)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "source: [unclosed"))
		if err == nil {
			t.Error("Expected parse error")
		}
	})
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug {
		t.Error("debug should map to LevelDebug")
	}
	if ParseLevel("nonsense") != slog.LevelInfo {
		t.Error("unknown level should default to info")
	}
}
