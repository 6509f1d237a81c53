package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"crypto_dash/internal/domain"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (CryptoDashboard; Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultConfigPath is where binaries look for the YAML config.
	DefaultConfigPath = "configs/config.yaml"
)

// Config holds every application setting.
// After LoadConfig reads the YAML file, environment variables override it.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Source struct {
		Kind         domain.SourceKind `yaml:"kind"`
		PageSize     int               `yaml:"page_size"`
		VsCurrency   string            `yaml:"vs_currency"`
		TimeoutSec   int               `yaml:"timeout_sec"`
		CoinGeckoURL string            `yaml:"coingecko_url"`
		CMCURL       string            `yaml:"cmc_url"`
	} `yaml:"source"`

	Cache struct {
		TTLSec  int    `yaml:"ttl_sec"`
		Backend string `yaml:"backend"` // "memory" or "redis"
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Storage struct {
		Path        string `yaml:"path"`
		RecentLimit int    `yaml:"recent_limit"`
	} `yaml:"storage"`

	Logger struct {
		IntervalMinutes int `yaml:"interval_minutes"`
	} `yaml:"logger"`

	Dashboard struct {
		WorkStartHour int    `yaml:"work_start_hour"`
		WorkEndHour   int    `yaml:"work_end_hour"`
		ExportDir     string `yaml:"export_dir"`
		IconsDir      string `yaml:"icons_dir"`
	} `yaml:"dashboard"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "crypto-dash"
	cfg.App.Version = "dev"
	cfg.Source.Kind = domain.SourceCoinGecko
	cfg.Source.PageSize = 200
	cfg.Source.VsCurrency = "usd"
	cfg.Source.TimeoutSec = 30
	cfg.Source.CoinGeckoURL = "https://api.coingecko.com/api/v3/coins/markets"
	cfg.Source.CMCURL = "https://coinmarketcap.com/"
	cfg.Cache.TTLSec = 120
	cfg.Cache.Backend = "memory"
	cfg.Cache.Redis.Addr = "localhost:6379"
	cfg.Storage.Path = "data/crypto.db"
	cfg.Storage.RecentLimit = 2000
	cfg.Logger.IntervalMinutes = 15
	cfg.Dashboard.WorkStartHour = 9
	cfg.Dashboard.WorkEndHour = 17
	cfg.Dashboard.ExportDir = "exports"
	cfg.Dashboard.IconsDir = "assets/icons"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig reads and parses the config file on top of DefaultConfig.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &domain.ConfigError{Field: path, Err: err}
		}
	}

	// Secrets and deployment knobs come from the environment (.env included).
	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case domain.SourceCoinGecko, domain.SourceCoinMarketCap:
	default:
		return &domain.ConfigError{Field: "source.kind", Err: fmt.Errorf("%w: %q", domain.ErrUnknownSource, c.Source.Kind)}
	}
	if c.Source.PageSize <= 0 || c.Source.PageSize > 250 {
		return &domain.ConfigError{Field: "source.page_size", Err: fmt.Errorf("must be within 1..250, got %d", c.Source.PageSize)}
	}
	if !hasHTTPScheme(c.Source.CoinGeckoURL) {
		return &domain.ConfigError{Field: "source.coingecko_url", Err: fmt.Errorf("invalid URL: %s", c.Source.CoinGeckoURL)}
	}
	if !hasHTTPScheme(c.Source.CMCURL) {
		return &domain.ConfigError{Field: "source.cmc_url", Err: fmt.Errorf("invalid URL: %s", c.Source.CMCURL)}
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return &domain.ConfigError{Field: "cache.backend", Err: fmt.Errorf("unsupported backend %q", c.Cache.Backend)}
	}
	if c.Logger.IntervalMinutes <= 0 {
		return &domain.ConfigError{Field: "logger.interval_minutes", Err: errors.New("must be positive")}
	}
	if c.Dashboard.WorkStartHour < 0 || c.Dashboard.WorkEndHour > 24 || c.Dashboard.WorkStartHour >= c.Dashboard.WorkEndHour {
		return &domain.ConfigError{Field: "dashboard.work_hours", Err: fmt.Errorf("invalid window %d-%d", c.Dashboard.WorkStartHour, c.Dashboard.WorkEndHour)}
	}
	if c.Storage.Path == "" {
		return &domain.ConfigError{Field: "storage.path", Err: errors.New("required")}
	}
	return nil
}

func hasHTTPScheme(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// envOverrides maps CRYPTO_* variables onto Config. Zero values leave the
// file settings untouched.
type envOverrides struct {
	Source        string `envconfig:"SOURCE"`
	PageSize      int    `envconfig:"PAGE_SIZE"`
	CoinGeckoURL  string `envconfig:"COINGECKO_URL"`
	CacheBackend  string `envconfig:"CACHE_BACKEND"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	DBPath        string `envconfig:"DB_PATH"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
}

// overrideWithEnv overrides settings when the environment defines them.
func overrideWithEnv(cfg *Config) error {
	// .env is optional; deployments usually set real variables.
	_ = godotenv.Load()

	var env envOverrides
	if err := envconfig.Process("CRYPTO", &env); err != nil {
		return &domain.ConfigError{Field: "env", Err: err}
	}

	if env.Source != "" {
		cfg.Source.Kind = domain.SourceKind(env.Source)
	}
	if env.PageSize > 0 {
		cfg.Source.PageSize = env.PageSize
	}
	if env.CoinGeckoURL != "" {
		cfg.Source.CoinGeckoURL = env.CoinGeckoURL
	}
	if env.CacheBackend != "" {
		cfg.Cache.Backend = env.CacheBackend
	}
	if env.RedisAddr != "" {
		cfg.Cache.Redis.Addr = env.RedisAddr
	}
	if env.RedisPassword != "" {
		cfg.Cache.Redis.Password = env.RedisPassword
	}
	if env.DBPath != "" {
		cfg.Storage.Path = env.DBPath
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	return nil
}
