package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ligustah/rangeview/internal/progress"
	"gopkg.in/yaml.v3"
)

// Config defines configuration for the rangeview CLI.
type Config struct {
	URL                 string        `yaml:"url"`
	Accept              string        `yaml:"accept"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	ChunkSize           int64         `yaml:"chunk_size"`
	RangeCacheEntries   int           `yaml:"range_cache_entries"`
	LogLevel            string        `yaml:"log_level"`
	MetricsAddr         string        `yaml:"metrics_addr"`
	Bucket              string        `yaml:"bucket"`
	Prefix              string        `yaml:"prefix"`
	Progress            bool          `yaml:"progress"`
	Force               bool          `yaml:"force"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Accept:              "application/pdf",
		MaxIdleConnsPerHost: 16,
		ChunkSize:           64 * 1024, // 64KiB
		LogLevel:            "info",
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	URL                 string `yaml:"url"`
	Accept              string `yaml:"accept"`
	Timeout             string `yaml:"timeout"`
	MaxIdleConnsPerHost int    `yaml:"max_idle_conns_per_host"`
	ChunkSize           string `yaml:"chunk_size"`
	RangeCacheEntries   int    `yaml:"range_cache_entries"`
	LogLevel            string `yaml:"log_level"`
	MetricsAddr         string `yaml:"metrics_addr"`
	Bucket              string `yaml:"bucket"`
	Prefix              string `yaml:"prefix"`
	Progress            bool   `yaml:"progress"`
	Force               bool   `yaml:"force"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.URL != "" {
		cfg.URL = yc.URL
	}
	if yc.Accept != "" {
		cfg.Accept = yc.Accept
	}
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.MaxIdleConnsPerHost != 0 {
		cfg.MaxIdleConnsPerHost = yc.MaxIdleConnsPerHost
	}
	if yc.ChunkSize != "" {
		size, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	cfg.RangeCacheEntries = yc.RangeCacheEntries
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	cfg.MetricsAddr = yc.MetricsAddr
	cfg.Bucket = yc.Bucket
	cfg.Prefix = yc.Prefix
	cfg.Progress = yc.Progress
	cfg.Force = yc.Force

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the RANGEVIEW_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("RANGEVIEW_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("RANGEVIEW_ACCEPT"); v != "" {
		c.Accept = v
	}
	if v := os.Getenv("RANGEVIEW_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse RANGEVIEW_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("RANGEVIEW_MAX_IDLE_CONNS_PER_HOST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse RANGEVIEW_MAX_IDLE_CONNS_PER_HOST: %w", err)
		}
		c.MaxIdleConnsPerHost = n
	}
	if v := os.Getenv("RANGEVIEW_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse RANGEVIEW_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = size
	}
	if v := os.Getenv("RANGEVIEW_RANGE_CACHE_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse RANGEVIEW_RANGE_CACHE_ENTRIES: %w", err)
		}
		c.RangeCacheEntries = n
	}
	if v := os.Getenv("RANGEVIEW_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("RANGEVIEW_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("RANGEVIEW_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("RANGEVIEW_PREFIX"); v != "" {
		c.Prefix = v
	}
	if v := os.Getenv("RANGEVIEW_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("RANGEVIEW_FORCE"); v != "" {
		c.Force = v == "true" || v == "1"
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.RangeCacheEntries < 0 {
		return errors.New("config: range_cache_entries must not be negative")
	}
	if c.MaxIdleConnsPerHost < 0 {
		return errors.New("config: max_idle_conns_per_host must not be negative")
	}
	if c.Timeout < 0 {
		return errors.New("config: timeout must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel. An empty level is info.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return level, nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.URL != "" {
		c.URL = override.URL
	}
	if override.Accept != "" {
		c.Accept = override.Accept
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.MaxIdleConnsPerHost != 0 {
		c.MaxIdleConnsPerHost = override.MaxIdleConnsPerHost
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.RangeCacheEntries != 0 {
		c.RangeCacheEntries = override.RangeCacheEntries
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.MetricsAddr != "" {
		c.MetricsAddr = override.MetricsAddr
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Prefix != "" {
		c.Prefix = override.Prefix
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Force {
		c.Force = override.Force
	}
	return c
}
