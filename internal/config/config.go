// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Host      string `yaml:"host"`
		Port      string `yaml:"port"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`

	Upstream struct {
		BaseURL   string `yaml:"base_url"`
		Email     string `yaml:"email"`
		Password  string `yaml:"password"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"upstream"`

	Exchange struct {
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"exchange"`

	Tracking struct {
		Indices []int `yaml:"indices"`
	} `yaml:"tracking"`

	FX struct {
		Target string             `yaml:"target"`
		Rates  map[string]float64 `yaml:"rates"`
	} `yaml:"fx"`

	Cache struct {
		SnapshotTTLSeconds int `yaml:"snapshot_ttl_seconds"`
		HistoryTTLSeconds  int `yaml:"history_ttl_seconds"`
	} `yaml:"cache"`

	Auth struct {
		MinLoginIntervalSeconds int `yaml:"min_login_interval_seconds"`
		ShortBackoffSeconds     int `yaml:"short_backoff_seconds"`
		LongBackoffSeconds      int `yaml:"long_backoff_seconds"`
	} `yaml:"auth"`

	Schedule struct {
		TickCron  string `yaml:"tick_cron"`
		PruneCron string `yaml:"prune_cron"`
	} `yaml:"schedule"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Secrets struct {
		EncryptionSecret string `yaml:"encryption_secret"`
	} `yaml:"secrets"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = v
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("UPSTREAM_EMAIL"); v != "" {
		cfg.Upstream.Email = v
	}
	if v := os.Getenv("UPSTREAM_PASSWORD"); v != "" {
		cfg.Upstream.Password = v
	}
	if v := os.Getenv("EXCHANGE_BASE_URL"); v != "" {
		cfg.Exchange.BaseURL = v
	}
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("TRACKED_INDICES"); v != "" {
		indices, err := parseIndices(v)
		if err != nil {
			return nil, fmt.Errorf("parse TRACKED_INDICES: %w", err)
		}
		cfg.Tracking.Indices = indices
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ENCRYPTION_SECRET"); v != "" {
		cfg.Secrets.EncryptionSecret = v
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://" + c.Address()
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = "equity-monitor/1.0"
	}
	if len(c.Tracking.Indices) == 0 {
		c.Tracking.Indices = []int{2, 4}
	}
	if c.FX.Target == "" {
		c.FX.Target = "CHF"
	}
	if c.Cache.SnapshotTTLSeconds == 0 {
		c.Cache.SnapshotTTLSeconds = 30
	}
	if c.Cache.HistoryTTLSeconds == 0 {
		c.Cache.HistoryTTLSeconds = 300
	}
	if c.Auth.MinLoginIntervalSeconds == 0 {
		c.Auth.MinLoginIntervalSeconds = 60
	}
	if c.Auth.ShortBackoffSeconds == 0 {
		c.Auth.ShortBackoffSeconds = 300 // 5 minutes
	}
	if c.Auth.LongBackoffSeconds == 0 {
		c.Auth.LongBackoffSeconds = 3600 // 1 hour
	}
	if c.Schedule.TickCron == "" {
		c.Schedule.TickCron = "*/5 * * * * *"
	}
	if c.Schedule.PruneCron == "" {
		c.Schedule.PruneCron = "0 0 3 * * *"
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join("data", "equity_monitor.db")
	}
	if c.Secrets.EncryptionSecret == "" {
		c.Secrets.EncryptionSecret = "change-me-in-production-32chars!"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Upstream.Email == "" || c.Upstream.Password == "" {
		return fmt.Errorf("upstream.email and upstream.password are required")
	}
	if len(c.FX.Rates) == 0 {
		return fmt.Errorf("fx.rates must contain at least one currency rate")
	}
	if len(c.Secrets.EncryptionSecret) < 32 {
		return fmt.Errorf("secrets.encryption_secret must be at least 32 characters")
	}
	for _, idx := range c.Tracking.Indices {
		if idx < 0 {
			return fmt.Errorf("tracking.indices must be non-negative, got %d", idx)
		}
	}
	if c.Exchange.BaseURL != "" && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("exchange.api_key and exchange.api_secret are required when exchange.base_url is set")
	}
	return nil
}

// Address returns the full address to bind the server to.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// SnapshotTTL returns the account snapshot cache time-to-live.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.Cache.SnapshotTTLSeconds) * time.Second
}

// HistoryTTL returns the per-account history cache time-to-live.
func (c *Config) HistoryTTL() time.Duration {
	return time.Duration(c.Cache.HistoryTTLSeconds) * time.Second
}

// MinLoginInterval returns the minimum interval between login attempts.
func (c *Config) MinLoginInterval() time.Duration {
	return time.Duration(c.Auth.MinLoginIntervalSeconds) * time.Second
}

// ShortBackoff returns the backoff applied after generic upstream failures.
func (c *Config) ShortBackoff() time.Duration {
	return time.Duration(c.Auth.ShortBackoffSeconds) * time.Second
}

// LongBackoff returns the backoff applied after forbidden/rate-limit responses.
func (c *Config) LongBackoff() time.Duration {
	return time.Duration(c.Auth.LongBackoffSeconds) * time.Second
}

// parseIndices parses a comma-separated index list like "1,2,4".
func parseIndices(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	indices := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", p)
		}
		indices = append(indices, n)
	}
	return indices, nil
}
