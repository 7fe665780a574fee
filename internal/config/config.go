// Package config loads patentscout settings from a YAML file, PATENTSCOUT_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/FranksOps/patentscout/internal/fingerprint"
	"github.com/FranksOps/patentscout/internal/scraper"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PATENTSCOUT"

// Config holds all patentscout settings.
type Config struct {
	// APIKey is the SerpAPI key. Read from api_key, PATENTSCOUT_API_KEY or API.
	APIKey  string        `mapstructure:"api_key"`
	Search  SearchConfig  `mapstructure:"search"`
	Enrich  EnrichConfig  `mapstructure:"enrich"`
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
}

// SearchConfig configures the SerpAPI dispatcher.
type SearchConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	DefaultNum int           `mapstructure:"default_num"`
}

// EnrichConfig configures patent page enrichment.
type EnrichConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Concurrency       int           `mapstructure:"concurrency"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Jitter            float64       `mapstructure:"jitter"`
	Fingerprint       string        `mapstructure:"fingerprint"`
	UserAgents        []string      `mapstructure:"user_agents"`
	RandomUserAgent   bool          `mapstructure:"random_user_agent"`
	ProxiesFile       string        `mapstructure:"proxies_file"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	CookieJar         bool          `mapstructure:"cookie_jar"`
}

// StorageConfig selects the report history backend.
type StorageConfig struct {
	// Type is one of none, sqlite, postgres, json, csv.
	Type string `mapstructure:"type"`
	// DSN is a file path for sqlite, json and csv, or a connection string
	// for postgres.
	DSN string `mapstructure:"dsn"`
}

// ServerConfig configures the web UI.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// MetricsAddr serves /metrics on a separate listener when set.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageTypes lists the accepted storage.type values.
var StorageTypes = []string{"none", "sqlite", "postgres", "json", "csv"}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("api_key", "")
	v.SetDefault("search.endpoint", "https://serpapi.com/search")
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.default_num", 11)

	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.concurrency", scraper.DefaultConcurrency)
	v.SetDefault("enrich.timeout", scraper.DefaultEnrichTimeout)
	v.SetDefault("enrich.requests_per_second", 0)
	v.SetDefault("enrich.jitter", 0)
	v.SetDefault("enrich.fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("enrich.user_agents", []string{})
	v.SetDefault("enrich.random_user_agent", false)
	v.SetDefault("enrich.proxies_file", "")
	v.SetDefault("enrich.respect_robots", false)
	v.SetDefault("enrich.cookie_jar", false)

	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.dsn", "patentscout.db")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// API is the variable older deployments export the key under.
	_ = v.BindEnv("api_key", EnvPrefix+"_API_KEY", "API")

	return v
}

// LoadDotEnv exports the variables of a .env file, keeping any already set
// in the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads the config file at path, or patentscout.yaml from the working
// directory or ~/.config/patentscout when path is empty. A missing default
// file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("patentscout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "patentscout"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. A missing API key is not an error here;
// searches report it.
func (c *Config) Validate() error {
	var errs []error

	if c.Search.DefaultNum < 1 || c.Search.DefaultNum > 100 {
		errs = append(errs, fmt.Errorf("search.default_num must be in [1, 100], got %d", c.Search.DefaultNum))
	}
	if c.Enrich.Concurrency < 1 || c.Enrich.Concurrency > scraper.MaxConcurrency {
		errs = append(errs, fmt.Errorf("enrich.concurrency must be in [1, %d], got %d", scraper.MaxConcurrency, c.Enrich.Concurrency))
	}
	if c.Enrich.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("enrich.requests_per_second must not be negative"))
	}
	if c.Enrich.Jitter < 0 || c.Enrich.Jitter > 1 {
		errs = append(errs, fmt.Errorf("enrich.jitter must be in [0, 1], got %g", c.Enrich.Jitter))
	}
	if _, err := fingerprint.Parse(c.Enrich.Fingerprint); err != nil {
		errs = append(errs, fmt.Errorf("enrich.fingerprint: %w", err))
	}
	if !slices.Contains(StorageTypes, c.Storage.Type) {
		errs = append(errs, fmt.Errorf("storage.type must be one of %s, got %q", strings.Join(StorageTypes, ", "), c.Storage.Type))
	} else if c.Storage.Type != "none" && c.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("storage.dsn is required for %s", c.Storage.Type))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
