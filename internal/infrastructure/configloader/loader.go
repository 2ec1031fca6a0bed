package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"portfolio_aggregator/internal/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server configuration. Timeouts are in seconds.
type ServerConfig struct {
	Port            string   `yaml:"port"`
	ReadTimeout     int      `yaml:"readTimeout"`
	WriteTimeout    int      `yaml:"writeTimeout"`
	IdleTimeout     int      `yaml:"idleTimeout"`
	ShutdownTimeout int      `yaml:"shutdownTimeout"`
	EnablePprof     bool     `yaml:"enablePprof"`
	AllowOrigins    []string `yaml:"allowOrigins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// CovalentConfig holds upstream API configuration.
type CovalentConfig struct {
	BaseURL              string  `yaml:"baseURL"`
	APIKey               string  `yaml:"apiKey"`
	RequestTimeoutMillis int64   `yaml:"requestTimeoutMillis"`
	RequestsPerSecond    float64 `yaml:"requestsPerSecond"`
	Burst                int     `yaml:"burst"`
	UserAgent            string  `yaml:"userAgent"`
}

// CacheConfig holds refresh cache configuration.
type CacheConfig struct {
	FreshForSeconds        int `yaml:"freshForSeconds"`
	EvictAfterMinutes      int `yaml:"evictAfterMinutes"`
	CleanupIntervalMinutes int `yaml:"cleanupIntervalMinutes"`
	MaxEntries             int `yaml:"maxEntries"`
	RefreshTimeoutSeconds  int `yaml:"refreshTimeoutSeconds"`
}

// AggregatorConfig holds aggregation configuration.
type AggregatorConfig struct {
	ExcludeTypes []string `yaml:"excludeTypes"`
}

// SwaggerConfig holds configuration for Swagger UI.
type SwaggerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	SpecFile string `yaml:"specFile"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Covalent   CovalentConfig   `yaml:"covalent"`
	Cache      CacheConfig      `yaml:"cache"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Swagger    SwaggerConfig    `yaml:"swagger"`
}

// RequestTimeout returns the per-call upstream timeout.
func (c CovalentConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

// FreshFor returns the freshness window.
func (c CacheConfig) FreshFor() time.Duration {
	return time.Duration(c.FreshForSeconds) * time.Second
}

// EvictAfter returns the hard expiry.
func (c CacheConfig) EvictAfter() time.Duration {
	return time.Duration(c.EvictAfterMinutes) * time.Minute
}

// CleanupInterval returns the janitor interval.
func (c CacheConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// RefreshTimeout returns the bound of every cache-initiated fetch.
func (c CacheConfig) RefreshTimeout() time.Duration {
	return time.Duration(c.RefreshTimeoutSeconds) * time.Second
}

// Load reads an optional .env file, the YAML file at path (skipped when path is empty),
// applies environment overrides and then defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	var cfg Config
	if path != "" {
		logrus.Infof("Loading configuration from path: %s", path)
		data, err := os.ReadFile(path)
		if err != nil {
			logrus.Errorf("Failed to read config file %s: %v", path, err)
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
	} else {
		logrus.Info("No config file given, using defaults and environment")
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Covalent.APIKey = utils.GetEnv("COVALENT_API_KEY", cfg.Covalent.APIKey)
	cfg.Covalent.BaseURL = utils.GetEnv("COVALENT_BASE_URL", cfg.Covalent.BaseURL)
	cfg.Server.Port = utils.GetEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Logging.Level = utils.GetEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Cache.FreshForSeconds = utils.GetEnvInt("CACHE_FRESH_FOR_SECONDS", cfg.Cache.FreshForSeconds)
	cfg.Cache.MaxEntries = utils.GetEnvInt("CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if !strings.Contains(cfg.Server.Port, ":") {
		cfg.Server.Port = ":" + cfg.Server.Port
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout <= 0 {
		// a cold miss waits for the slowest upstream call
		cfg.Server.WriteTimeout = 60
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = []string{"*"}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Covalent.BaseURL == "" {
		cfg.Covalent.BaseURL = "https://api.covalenthq.com"
		logrus.Infof("Covalent.BaseURL not set, defaulting to %s", cfg.Covalent.BaseURL)
	}
	if cfg.Covalent.RequestTimeoutMillis <= 0 {
		cfg.Covalent.RequestTimeoutMillis = 30000
		logrus.Infof("Covalent.RequestTimeoutMillis not set, defaulting to %d ms", cfg.Covalent.RequestTimeoutMillis)
	}
	if cfg.Covalent.Burst <= 0 {
		cfg.Covalent.Burst = 3
	}

	if cfg.Cache.FreshForSeconds <= 0 {
		cfg.Cache.FreshForSeconds = 90
		logrus.Infof("Cache.FreshForSeconds not set, defaulting to %d s", cfg.Cache.FreshForSeconds)
	}
	if cfg.Cache.EvictAfterMinutes <= 0 {
		cfg.Cache.EvictAfterMinutes = 30
	}
	if cfg.Cache.CleanupIntervalMinutes <= 0 {
		cfg.Cache.CleanupIntervalMinutes = 5
	}
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 10000
	}
	if cfg.Cache.RefreshTimeoutSeconds <= 0 {
		cfg.Cache.RefreshTimeoutSeconds = 60
	}

	if len(cfg.Aggregator.ExcludeTypes) == 0 {
		cfg.Aggregator.ExcludeTypes = []string{"nft"}
	}

	if cfg.Swagger.Path == "" {
		cfg.Swagger.Path = "/swagger"
	}
	if cfg.Swagger.SpecFile == "" {
		cfg.Swagger.SpecFile = "docs/swagger.yaml"
	}
}

func validate(cfg *Config) error {
	if cfg.Cache.EvictAfter() < cfg.Cache.FreshFor() {
		return fmt.Errorf("cache.evictAfterMinutes (%d) must cover cache.freshForSeconds (%d)",
			cfg.Cache.EvictAfterMinutes, cfg.Cache.FreshForSeconds)
	}
	if cfg.Covalent.APIKey == "" {
		logrus.Warn("Covalent API key is empty; the upstream will answer 401 to every call")
	}
	return nil
}
