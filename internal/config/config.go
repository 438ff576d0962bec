// Package config loads prims settings from defaults, an optional YAML file,
// a .env file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/noface-00/prims/internal/model"
)

const maxMarketLimit = 200

// Config holds all application configuration
type Config struct {
	Ebay      EbayConfig      `yaml:"ebay"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

type EbayConfig struct {
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	Token          string        `yaml:"token"` // static token, used when no client credentials are set
	BaseURL        string        `yaml:"base_url"`
	TokenURL       string        `yaml:"token_url"`
	Marketplace    string        `yaml:"marketplace"`
	ProfileURL     string        `yaml:"profile_url"`
	Timeout        time.Duration `yaml:"timeout"`
	RequestsPerSec float64       `yaml:"requests_per_sec"`
}

// DatabaseConfig selects the MySQL store. An empty DSN keeps everything in
// memory.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type TimeoutsConfig struct {
	Product time.Duration `yaml:"product"`
	Price   time.Duration `yaml:"price"`
	Coupon  time.Duration `yaml:"coupon"`
	Seller  time.Duration `yaml:"seller"`
	History time.Duration `yaml:"history"`
	Market  time.Duration `yaml:"market"`
	Image   time.Duration `yaml:"image"`
}

type AnalysisConfig struct {
	Workers      int            `yaml:"workers"`
	MarketLimit  int            `yaml:"market_limit"`
	DefaultImage string         `yaml:"default_image"`
	HistoryFile  string         `yaml:"history_file"` // JSON price history when no database is configured
	Timeouts     TimeoutsConfig `yaml:"timeouts"`
}

// SchedulerConfig drives watch mode.
type SchedulerConfig struct {
	Spec         string   `yaml:"spec"`
	SweepSpec    string   `yaml:"sweep_spec"`
	Products     []string `yaml:"products"`
	ThresholdPct float64  `yaml:"threshold_pct"`
	ThresholdUSD float64  `yaml:"threshold_usd"`
	SnapshotDir  string   `yaml:"snapshot_dir"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Ebay: EbayConfig{
			Marketplace:    "EBAY_US",
			Timeout:        15 * time.Second,
			RequestsPerSec: 5,
		},
		Database: DatabaseConfig{
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Prefix: "prims:",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Analysis: AnalysisConfig{
			Workers:      4,
			MarketLimit:  100,
			DefaultImage: "/recursos/img/no-image.png",
			HistoryFile:  "data/price_history.json",
			Timeouts: TimeoutsConfig{
				Product: 5 * time.Second,
				Price:   5 * time.Second,
				Coupon:  3 * time.Second,
				Seller:  5 * time.Second,
				History: 5 * time.Second,
				Market:  10 * time.Second,
				Image:   3 * time.Second,
			},
		},
		Scheduler: SchedulerConfig{
			Spec:         "@every 1h",
			SweepSpec:    "@every 10m",
			ThresholdPct: 10,
			ThresholdUSD: 5,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. An explicit path must exist; without one
// config.yaml and config.yml are tried in the working directory and next to
// the executable.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
		return nil
	}

	for _, candidate := range searchPaths() {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing config %s: %w", candidate, err)
		}
		return nil
	}
	return nil
}

func searchPaths() []string {
	paths := []string{"config.yaml", "config.yml"}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		paths = append(paths, filepath.Join(dir, "config.yaml"), filepath.Join(dir, "config.yml"))
	}
	return paths
}

// applyEnv overrides settings from environment variables.
func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("EBAY_CLIENT_ID", &c.Ebay.ClientID)
	str("EBAY_CLIENT_SECRET", &c.Ebay.ClientSecret)
	str("EBAY_TOKEN", &c.Ebay.Token)
	str("PRIMS_EBAY_BASE_URL", &c.Ebay.BaseURL)
	str("MYSQL_DSN", &c.Database.DSN)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)

	dur("PRIMS_CACHE_TTL", &c.Cache.TTL)
	num("PRIMS_WORKERS", &c.Analysis.Workers)
	num("PRIMS_MARKET_LIMIT", &c.Analysis.MarketLimit)
	str("PRIMS_HISTORY_FILE", &c.Analysis.HistoryFile)
	str("PRIMS_SCHEDULE", &c.Scheduler.Spec)
	str("PRIMS_SNAPSHOT_DIR", &c.Scheduler.SnapshotDir)
	str("PRIMS_SERVER_ADDR", &c.Server.Addr)
	str("PRIMS_LOG_LEVEL", &c.Log.Level)

	if v := getenv("PRIMS_WATCH_PRODUCTS"); v != "" {
		var ids []string
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		c.Scheduler.Products = ids
	}
	if v := getenv("PRIMS_LOG_PRETTY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Log.Pretty = b
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(field, msg string) error {
		return &model.ValidationError{Field: field, Message: msg}
	}

	if c.Analysis.Workers < 1 {
		return invalid("analysis.workers", "must be at least 1")
	}
	if c.Analysis.MarketLimit < 1 || c.Analysis.MarketLimit > maxMarketLimit {
		return invalid("analysis.market_limit", fmt.Sprintf("must be between 1 and %d", maxMarketLimit))
	}
	t := c.Analysis.Timeouts
	for name, d := range map[string]time.Duration{
		"product": t.Product, "price": t.Price, "coupon": t.Coupon, "seller": t.Seller,
		"history": t.History, "market": t.Market, "image": t.Image,
	} {
		if d <= 0 {
			return invalid("analysis.timeouts."+name, "must be positive")
		}
	}
	if c.Cache.TTL <= 0 {
		return invalid("cache.ttl", "must be positive")
	}
	if c.Ebay.RequestsPerSec < 0 {
		return invalid("ebay.requests_per_sec", "must not be negative")
	}
	if (c.Ebay.ClientID == "") != (c.Ebay.ClientSecret == "") {
		return invalid("ebay.client_secret", "client id and secret must be set together")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return invalid("server.addr", "must not be empty")
	}
	if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
		return invalid("scheduler.spec", err.Error())
	}
	if c.Scheduler.SweepSpec != "" {
		if _, err := cron.ParseStandard(c.Scheduler.SweepSpec); err != nil {
			return invalid("scheduler.sweep_spec", err.Error())
		}
	}
	if c.Scheduler.ThresholdPct < 0 || c.Scheduler.ThresholdUSD < 0 {
		return invalid("scheduler.threshold", "must not be negative")
	}
	return nil
}

// HasEbayCredentials reports whether the marketplace can be queried.
func (c *Config) HasEbayCredentials() bool {
	return c.Ebay.Token != "" || (c.Ebay.ClientID != "" && c.Ebay.ClientSecret != "")
}
