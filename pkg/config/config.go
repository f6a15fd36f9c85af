package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for fcsync
type Config struct {
	// Remote session
	Session SessionConfig `yaml:"session" json:"session"`

	// Where posts are materialized
	Output OutputConfig `yaml:"output" json:"output"`

	// Fixed delays between feed pages and content downloads
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry policy for metadata and feed requests
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Feed crawling
	Feed FeedConfig `yaml:"feed" json:"feed"`

	// Checkpoint persistence
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SessionConfig holds the cookie-based identity used against the remote service
type SessionConfig struct {
	SessionID string        `yaml:"session_id" json:"session_id"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// RateLimitConfig holds the minimum intervals between rate-limited requests
type RateLimitConfig struct {
	PageDelay     time.Duration `yaml:"page_delay" json:"page_delay"`
	DownloadDelay time.Duration `yaml:"download_delay" json:"download_delay"`
}

// RetryConfig holds retry behaviour for non-content requests
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// FeedConfig controls how channel feeds are read
type FeedConfig struct {
	// Source is "html" (rendered feed pages) or "api" (structured endpoint)
	Source string `yaml:"source" json:"source"`
	// MaxPages bounds pagination per channel, 0 means unlimited
	MaxPages int `yaml:"max_pages" json:"max_pages"`
	// Channels restricts the run to these channel ids when non-empty
	Channels []int64 `yaml:"channels" json:"channels"`
}

// CheckpointConfig holds checkpoint file configuration
type CheckpointConfig struct {
	// File is the checkpoint JSON path, empty means the platform data directory
	File   string `yaml:"file" json:"file"`
	Backup bool   `yaml:"backup" json:"backup"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	JSON  bool   `yaml:"json" json:"json"`
}

const (
	FeedSourceHTML = "html"
	FeedSourceAPI  = "api"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_16_0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/78.0.3904.97 Safari/537.36",
			BaseURL:   "https://fantia.jp",
			Timeout:   60 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory: ".",
		},
		RateLimit: RateLimitConfig{
			PageDelay:     time.Second,
			DownloadDelay: 500 * time.Millisecond,
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		Feed: FeedConfig{
			Source:   FeedSourceHTML,
			MaxPages: 0,
		},
		Checkpoint: CheckpointConfig{
			Backup: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// envPrefix is prepended to every environment variable name
const envPrefix = "FCSYNC_"

// envOverrides mirrors the settings that may come from the environment.
// Unset variables leave their field nil.
type envOverrides struct {
	SessionID      *string        `env:"SESSION_ID"`
	UserAgent      *string        `env:"USER_AGENT"`
	BaseURL        *string        `env:"BASE_URL"`
	OutputDir      *string        `env:"OUTPUT_DIR"`
	CheckpointFile *string        `env:"CHECKPOINT_FILE"`
	FeedSource     *string        `env:"FEED_SOURCE"`
	MaxPages       *int           `env:"MAX_PAGES"`
	Channels       []int64        `env:"CHANNELS"`
	PageDelay      *time.Duration `env:"PAGE_DELAY"`
	DownloadDelay  *time.Duration `env:"DOWNLOAD_DELAY"`
	LogLevel       *string        `env:"LOG_LEVEL"`
}

// LoadFromEnv applies FCSYNC_* environment variables. Nothing is applied
// when any variable fails to parse.
func (c *Config) LoadFromEnv() error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: envPrefix}); err != nil {
		return err
	}

	setString(&c.Session.SessionID, o.SessionID)
	setString(&c.Session.UserAgent, o.UserAgent)
	setString(&c.Session.BaseURL, o.BaseURL)
	setString(&c.Output.BaseDirectory, o.OutputDir)
	setString(&c.Checkpoint.File, o.CheckpointFile)
	setString(&c.Logging.Level, o.LogLevel)
	if o.FeedSource != nil && *o.FeedSource != "" {
		c.Feed.Source = strings.ToLower(*o.FeedSource)
	}
	if o.MaxPages != nil {
		c.Feed.MaxPages = *o.MaxPages
	}
	if len(o.Channels) > 0 {
		c.Feed.Channels = o.Channels
	}
	if o.PageDelay != nil {
		c.RateLimit.PageDelay = *o.PageDelay
	}
	if o.DownloadDelay != nil {
		c.RateLimit.DownloadDelay = *o.DownloadDelay
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in the standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"fcsync.yaml",
		"fcsync.yml",
		".fcsync.yaml",
		filepath.Join(home, ".config", "fcsync", "config.yaml"),
		filepath.Join(home, ".config", "fcsync", "config.yml"),
		filepath.Join(home, ".fcsync.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Session.BaseURL == "" {
		errs = append(errs, errors.New("session base URL is required"))
	}
	if c.Session.Timeout <= 0 {
		errs = append(errs, errors.New("session timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.RateLimit.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}
	if c.RateLimit.DownloadDelay < 0 {
		errs = append(errs, errors.New("download delay cannot be negative"))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}
	if c.Retry.Enabled && c.Retry.BaseDelay > c.Retry.MaxDelay {
		errs = append(errs, errors.New("retry base delay cannot exceed max delay"))
	}

	switch strings.ToLower(c.Feed.Source) {
	case FeedSourceHTML, FeedSourceAPI:
	default:
		errs = append(errs, fmt.Errorf("invalid feed source %q (want html or api)", c.Feed.Source))
	}
	if c.Feed.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["session-id"].(string); ok && v != "" {
		c.Session.SessionID = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["checkpoint-file"].(string); ok && v != "" {
		c.Checkpoint.File = v
	}
	if v, ok := flags["feed-source"].(string); ok && v != "" {
		c.Feed.Source = strings.ToLower(v)
	}
	if v, ok := flags["max-pages"].(int); ok && v >= 0 {
		c.Feed.MaxPages = v
	}
	if v, ok := flags["channels"].([]int64); ok && len(v) > 0 {
		c.Feed.Channels = v
	}
	if v, ok := flags["page-delay"].(time.Duration); ok && v >= 0 {
		c.RateLimit.PageDelay = v
	}
	if v, ok := flags["download-delay"].(time.Duration); ok && v >= 0 {
		c.RateLimit.DownloadDelay = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".fcsync.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
