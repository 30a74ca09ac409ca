// Package config loads memoryhub's configuration from a YAML file (or
// defaults, if none is found), validates it, and exposes it to the rest
// of the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the complete configuration memoryhub needs to run.
type Config struct {
	Profile string        `mapstructure:"profile"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig configures the on-disk layout and tuning knobs of the
// memory store.
type StoreConfig struct {
	// Path is the root directory holding memory.db, app_logs.jsonl,
	// archive.jsonl, and their sidecar indexes.
	Path string `mapstructure:"path"`
	// FlushThreshold is the number of distinct pending ids a log tier
	// buffers before it flushes recall-count updates to disk.
	FlushThreshold int `mapstructure:"flush_threshold"`
	// CacheSize bounds each log tier's in-memory query result cache.
	CacheSize int `mapstructure:"cache_size"`
	// DefaultRecallLimit is used by recall/recall_by_tags when the
	// caller does not specify a limit.
	DefaultRecallLimit int `mapstructure:"default_recall_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// DefaultConfig returns configuration with memoryhub's default values.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	storeDir := filepath.Join(homeDir, ".memoryhub")

	return &Config{
		Profile: "default",
		Store: StoreConfig{
			Path:               storeDir,
			FlushThreshold:     10,
			CacheSize:          500,
			DefaultRecallLimit: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from an optional config.yaml under storeRoot,
// falling back to defaults when absent. An empty storeRoot defaults to
// ~/.memoryhub.
func Load(storeRoot string) (*Config, error) {
	if storeRoot == "" {
		homeDir, _ := os.UserHomeDir()
		storeRoot = filepath.Join(homeDir, ".memoryhub")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(storeRoot)

	setDefaults(v, storeRoot)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := DefaultConfig()
			cfg.Store.Path = storeRoot
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, storeRoot string) {
	v.SetDefault("profile", "default")
	v.SetDefault("store.path", storeRoot)
	v.SetDefault("store.flush_threshold", 10)
	v.SetDefault("store.cache_size", 500)
	v.SetDefault("store.default_recall_limit", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.FlushThreshold <= 0 {
		return fmt.Errorf("store.flush_threshold must be > 0")
	}
	if c.Store.CacheSize <= 0 {
		return fmt.Errorf("store.cache_size must be > 0")
	}
	if c.Store.DefaultRecallLimit <= 0 {
		return fmt.Errorf("store.default_recall_limit must be > 0")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}
	return nil
}

// EnsureStoreDir creates the store's root directory if it doesn't exist.
func (c *Config) EnsureStoreDir() error {
	if err := os.MkdirAll(c.Store.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

// ConfigPath returns the path to memoryhub's configuration directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".memoryhub")
}

// CoreDBPath returns the default path to the core tier's SQLite database
// under the given store root.
func CoreDBPath(storeRoot string) string {
	return filepath.Join(storeRoot, "memory.db")
}

// ApplicationLogPath returns the default path to the application tier's
// JSONL log under the given store root.
func ApplicationLogPath(storeRoot string) string {
	return filepath.Join(storeRoot, "app_logs.jsonl")
}

// ArchiveLogPath returns the default path to the archive tier's JSONL
// log under the given store root.
func ArchiveLogPath(storeRoot string) string {
	return filepath.Join(storeRoot, "archive.jsonl")
}
