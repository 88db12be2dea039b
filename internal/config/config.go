package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Source struct {
	URL         string        `yaml:"url"`
	ContainerID string        `yaml:"container_id"`
	DateColumn  string        `yaml:"date_column"`
	PriceColumn string        `yaml:"price_column"`
	LoadTimeout time.Duration `yaml:"load_timeout"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	Attempts    int           `yaml:"attempts"`
	BackoffMin  time.Duration `yaml:"backoff_min"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
	DelayMin    time.Duration `yaml:"delay_min"`
	DelayMax    time.Duration `yaml:"delay_max"`
	Headless    bool          `yaml:"headless"`
	ChromePath  string        `yaml:"chrome_path"`
	UserAgents  []string      `yaml:"user_agents"`
}

type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl"`
}

type Cache struct {
	// Backend is "file", "redis" or "none".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Redis   Redis  `yaml:"redis"`
}

type Currency struct {
	Native string `yaml:"native"`
	Target string `yaml:"target"`
}

type Provider struct {
	Enabled              bool          `yaml:"enabled"`
	BaseURL              string        `yaml:"base_url"`
	APIKey               string        `yaml:"api_key"`
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute"`
	Burst                int           `yaml:"burst"`
	MinRequestInterval   time.Duration `yaml:"min_request_interval"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	CacheMaxItems        int           `yaml:"cache_max_items"`
}

type CurrencyLayer struct {
	Provider `yaml:",inline"`
	// Live enables the live endpoint as the last, same-day-only fallback.
	Live bool `yaml:"live"`
}

type Providers struct {
	Timeout       time.Duration `yaml:"timeout"`
	Frankfurter   Provider      `yaml:"frankfurter"`
	CurrencyLayer CurrencyLayer `yaml:"currencylayer"`
}

type Database struct {
	// Driver is "postgres" or "sqlite".
	Driver       string        `yaml:"driver"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Name         string        `yaml:"name"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	SSLMode      string        `yaml:"sslmode"`
	Schema       string        `yaml:"schema"`
	Table        string        `yaml:"table"`
	MinConns     int           `yaml:"min_conns"`
	MaxConns     int           `yaml:"max_conns"`
	SQLitePath   string        `yaml:"sqlite_path"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type Schedule struct {
	// Cron uses the six-field form with seconds.
	Cron string `yaml:"cron"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Server struct {
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// WindowDays is the default range served when a request names none.
	WindowDays int `yaml:"window_days"`
}

type Config struct {
	Timezone  string    `yaml:"timezone"`
	Source    Source    `yaml:"source"`
	Cache     Cache     `yaml:"cache"`
	Currency  Currency  `yaml:"currency"`
	Providers Providers `yaml:"providers"`
	Database  Database  `yaml:"database"`
	Schedule  Schedule  `yaml:"schedule"`
	Logging   Logging   `yaml:"logging"`
	Server    Server    `yaml:"server"`
}

// Load reads YAML config from path. If path is empty, ./config.yaml is used
// when present; a missing file yields defaults. Environment variables
// override file values, then the result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
