package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gnana997/cjs2esm/pkg/converter"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
	"github.com/gnana997/cjs2esm/pkg/util"
	"github.com/gnana997/cjs2esm/pkg/workspace"
)

// defaultConfigPath is read when --config is not given.
const defaultConfigPath = ".cjs2esm/config.yaml"

// Config holds the contents of .cjs2esm/config.yaml.
type Config struct {
	Mode        string   `yaml:"mode"`
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
	OutDir      string   `yaml:"out_dir"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
	DebounceMs  int      `yaml:"debounce_ms"`
	CacheSize   int      `yaml:"cache_size"`
	Workers     int      `yaml:"workers"`
	MetricsAddr string   `yaml:"metrics_addr"`
}

func defaultConfig() *Config {
	return &Config{
		Mode:       rewrite.BestEffort.String(),
		LogLevel:   string(util.LevelInfo),
		LogFormat:  string(util.FormatText),
		DebounceMs: int(workspace.DefaultDebounce / time.Millisecond),
		CacheSize:  converter.DefaultCacheSize,
	}
}

// loadConfig resolves the configuration. Later sources override earlier
// ones:
//  1. built-in defaults
//  2. CJS2ESM_* environment variables, including those from ./.env
//  3. the config file: path when set, otherwise .cjs2esm/config.yaml if it
//     exists
//
// Command-line flags are applied on top by each command.
func loadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CJS2ESM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CJS2ESM_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("CJS2ESM_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("CJS2ESM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CJS2ESM_WORKERS: %w", err)
		}
		c.Workers = n
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := rewrite.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := util.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := util.ParseLogFormat(c.LogFormat); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must not be negative")
	}
	return nil
}

// RewriteMode returns the configured mode, or FailFast when failFast is set.
func (c *Config) RewriteMode(failFast bool) rewrite.Mode {
	if failFast {
		return rewrite.FailFast
	}
	mode, _ := rewrite.ParseMode(c.Mode)
	return mode
}

// Debounce returns the watch debounce interval.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Logger builds the CLI logger. --verbose forces debug and --quiet error.
func (c *Config) Logger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level, _ := util.ParseLogLevel(c.LogLevel)
	format, _ := util.ParseLogFormat(c.LogFormat)
	switch {
	case quiet:
		level = util.LevelError
	case verbose:
		level = util.LevelDebug
	}
	return util.NewLogger(util.LoggerConfig{Level: level, Format: format, Output: w})
}
