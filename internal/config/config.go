package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoostHazelzet/download-hf-repo/internal/progress"
)

// Config defines configuration for the hfget CLI.
type Config struct {
	Endpoint  string          `yaml:"endpoint"`
	BasePath  string          `yaml:"base_path"`
	Token     string          `yaml:"token"`
	Progress  bool            `yaml:"progress"`
	Force     bool            `yaml:"force"`
	RateLimit int64           `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	Integrity IntegrityConfig `yaml:"integrity"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// IntegrityConfig tunes the corruption heuristics. None of these numbers
// are backed by ground truth, so they are configuration rather than
// constants.
type IntegrityConfig struct {
	// CheckThreshold is the minimum file size for pre-flight integrity
	// checks. Size equality alone is trusted below it.
	CheckThreshold int64 `yaml:"check_threshold"`

	// SampleSize is the window size read at the start, middle and end of
	// a file by the statistical fallback.
	SampleSize int64 `yaml:"sample_size"`

	// ZeroFraction is the sampled zero-byte fraction above which a file
	// is flagged suspicious.
	ZeroFraction float64 `yaml:"zero_fraction"`

	// TrailingZeroLimit is the contiguous trailing-zero run above which
	// a file is flagged suspicious.
	TrailingZeroLimit int64 `yaml:"trailing_zero_limit"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Endpoint: "https://huggingface.co",
		Retry: RetryConfig{
			Attempts:   5,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
		Integrity: IntegrityConfig{
			CheckThreshold:    10 * 1024 * 1024,
			SampleSize:        1024 * 1024,
			ZeroFraction:      0.20,
			TrailingZeroLimit: 10 * 1024 * 1024,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with human-readable sizes.
type yamlConfig struct {
	Endpoint  string              `yaml:"endpoint"`
	BasePath  string              `yaml:"base_path"`
	Token     string              `yaml:"token"`
	Progress  bool                `yaml:"progress"`
	Force     bool                `yaml:"force"`
	RateLimit string              `yaml:"rate_limit"`
	Retry     yamlRetryConfig     `yaml:"retry"`
	Integrity yamlIntegrityConfig `yaml:"integrity"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

type yamlIntegrityConfig struct {
	CheckThreshold    string  `yaml:"check_threshold"`
	SampleSize        string  `yaml:"sample_size"`
	ZeroFraction      float64 `yaml:"zero_fraction"`
	TrailingZeroLimit string  `yaml:"trailing_zero_limit"`
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

	if yc.Endpoint != "" {
		cfg.Endpoint = yc.Endpoint
	}
	if yc.BasePath != "" {
		cfg.BasePath = yc.BasePath
	}
	if yc.Token != "" {
		cfg.Token = yc.Token
	}
	cfg.Progress = yc.Progress
	cfg.Force = yc.Force
	if yc.RateLimit != "" {
		limit, err := progress.ParseBytes(yc.RateLimit)
		if err != nil {
			return Config{}, fmt.Errorf("parse rate_limit: %w", err)
		}
		cfg.RateLimit = limit
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}
	if yc.Integrity.CheckThreshold != "" {
		size, err := progress.ParseBytes(yc.Integrity.CheckThreshold)
		if err != nil {
			return Config{}, fmt.Errorf("parse integrity.check_threshold: %w", err)
		}
		cfg.Integrity.CheckThreshold = size
	}
	if yc.Integrity.SampleSize != "" {
		size, err := progress.ParseBytes(yc.Integrity.SampleSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse integrity.sample_size: %w", err)
		}
		cfg.Integrity.SampleSize = size
	}
	if yc.Integrity.ZeroFraction != 0 {
		cfg.Integrity.ZeroFraction = yc.Integrity.ZeroFraction
	}
	if yc.Integrity.TrailingZeroLimit != "" {
		size, err := progress.ParseBytes(yc.Integrity.TrailingZeroLimit)
		if err != nil {
			return Config{}, fmt.Errorf("parse integrity.trailing_zero_limit: %w", err)
		}
		cfg.Integrity.TrailingZeroLimit = size
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Variables use the HFGET_ prefix; HF_HOME and HF_TOKEN are honored as
// fallbacks for compatibility with the wider HuggingFace tooling.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("HFGET_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("HFGET_PATH"); v != "" {
		c.BasePath = v
	} else if v := os.Getenv("HF_HOME"); v != "" && c.BasePath == "" {
		c.BasePath = v
	}
	if v := os.Getenv("HFGET_TOKEN"); v != "" {
		c.Token = v
	} else if v := os.Getenv("HF_TOKEN"); v != "" && c.Token == "" {
		c.Token = v
	}
	if v := os.Getenv("HFGET_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("HFGET_FORCE"); v != "" {
		c.Force = v == "true" || v == "1"
	}
	if v := os.Getenv("HFGET_RATE_LIMIT"); v != "" {
		limit, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse HFGET_RATE_LIMIT: %w", err)
		}
		c.RateLimit = limit
	}
	if v := os.Getenv("HFGET_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HFGET_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("HFGET_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HFGET_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("HFGET_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HFGET_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("config: endpoint is required")
	}
	if c.Retry.Attempts < 0 {
		return errors.New("config: retry attempts must not be negative")
	}
	if c.Integrity.SampleSize <= 0 {
		return errors.New("config: integrity sample size must be positive")
	}
	if c.Integrity.ZeroFraction <= 0 || c.Integrity.ZeroFraction > 1 {
		return errors.New("config: integrity zero fraction must be in (0, 1]")
	}
	if c.Integrity.CheckThreshold < 0 {
		return errors.New("config: integrity check threshold must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("config: rate limit must not be negative")
	}
	return nil
}

// ResolveBasePath applies the documented precedence for the download root:
// explicit value > configured/env value > current directory. It is called
// once before any component runs.
func (c *Config) ResolveBasePath(explicit string) string {
	if explicit != "" {
		c.BasePath = explicit
	}
	if c.BasePath == "" {
		c.BasePath = "."
	}
	return c.BasePath
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Endpoint != "" {
		c.Endpoint = override.Endpoint
	}
	if override.BasePath != "" {
		c.BasePath = override.BasePath
	}
	if override.Token != "" {
		c.Token = override.Token
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Force {
		c.Force = override.Force
	}
	if override.RateLimit != 0 {
		c.RateLimit = override.RateLimit
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	if override.Integrity.CheckThreshold != 0 {
		c.Integrity.CheckThreshold = override.Integrity.CheckThreshold
	}
	if override.Integrity.SampleSize != 0 {
		c.Integrity.SampleSize = override.Integrity.SampleSize
	}
	if override.Integrity.ZeroFraction != 0 {
		c.Integrity.ZeroFraction = override.Integrity.ZeroFraction
	}
	if override.Integrity.TrailingZeroLimit != 0 {
		c.Integrity.TrailingZeroLimit = override.Integrity.TrailingZeroLimit
	}
	return c
}
