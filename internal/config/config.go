// Package config resolves service settings from defaults, an optional config
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHTTPAddr     = ":8080"
	DefaultRedisAddr    = "127.0.0.1:6379"
	DefaultRedisDB      = 0
	DefaultWindowSize   = 50
	DefaultThreshold    = 2.0
	DefaultHistoryLimit = 1000
	DefaultQueueSize    = 1024
)

type Config struct {
	HTTPAddr      string  `toml:"http_addr" yaml:"http_addr"`
	RedisAddr     string  `toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword string  `toml:"redis_password" yaml:"redis_password"`
	RedisDB       int     `toml:"redis_db" yaml:"redis_db"`
	WindowSize    int     `toml:"window" yaml:"window"`
	Threshold     float64 `toml:"threshold" yaml:"threshold"`
	HistoryLimit  int     `toml:"history_limit" yaml:"history_limit"`
	QueueSize     int     `toml:"queue_size" yaml:"queue_size"`
}

func Default() Config {
	return Config{
		HTTPAddr:     DefaultHTTPAddr,
		RedisAddr:    DefaultRedisAddr,
		RedisDB:      DefaultRedisDB,
		WindowSize:   DefaultWindowSize,
		Threshold:    DefaultThreshold,
		HistoryLimit: DefaultHistoryLimit,
		QueueSize:    DefaultQueueSize,
	}
}

// Resolve builds the effective configuration: defaults, then the file named by
// CONFIG_FILE if set, then individual environment variables.
func Resolve() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile overlays the keys present in a TOML or YAML file onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.WindowSize <= 0 {
		errs = append(errs, fmt.Errorf("window must be positive, got %d", c.WindowSize))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("queue_size must be positive, got %d", c.QueueSize))
	}
	if c.Threshold < 0 {
		errs = append(errs, fmt.Errorf("threshold must not be negative, got %g", c.Threshold))
	}
	return errors.Join(errs...)
}
