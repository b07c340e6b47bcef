// Package config loads the agent configuration: a YAML manifest listing the
// data directory and the sync jobs to run, with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the manifest looked up when no -config flag is given.
const DefaultPath = "slotdb.yaml"

// Config is the agent configuration.
type Config struct {
	// DataDir is the slot directory, one file per table.
	DataDir string `yaml:"data_dir" env:"SLOTDB_DATA_DIR"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"SLOTDB_LOG_LEVEL"`
	// RateLimit caps outbound requests per second. 0 means unlimited.
	RateLimit float64 `yaml:"rate_limit" env:"SLOTDB_RATE_LIMIT"`
	// Jobs are the sync loops to start at boot.
	Jobs []Job `yaml:"jobs"`
}

// Job configures one sync loop.
type Job struct {
	// Kind is "pull" or "push".
	Kind     string            `yaml:"kind"`
	Table    string            `yaml:"table"`
	URL      string            `yaml:"url"`
	Interval Duration          `yaml:"interval"`
	// Method applies to push jobs only: POST (default) or PUT.
	Method   string            `yaml:"method,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

// Duration parses YAML durations written as Go duration strings ("30s", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used when no manifest exists.
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: "info",
	}
}

// Load reads the manifest at path, applies environment overrides, and
// validates the result. A missing manifest at the default path is not an
// error: the agent then runs with defaults and no jobs.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // User-specified manifest path
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration. Errors name the offending job.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}
	if c.RateLimit < 0 {
		return errors.New("rate_limit must be non-negative")
	}
	for i, j := range c.Jobs {
		if err := j.validate(); err != nil {
			return fmt.Errorf("job %d (%s): %w", i+1, j.describe(), err)
		}
	}
	return nil
}

func (j *Job) validate() error {
	switch j.Kind {
	case "pull":
		if j.Method != "" {
			return errors.New("method applies to push jobs only")
		}
	case "push":
		switch j.Method {
		case "", "POST", "PUT":
		default:
			return fmt.Errorf("method must be POST or PUT, got %q", j.Method)
		}
	default:
		return fmt.Errorf("kind must be pull or push, got %q", j.Kind)
	}
	if j.Table == "" {
		return errors.New("table is required")
	}
	if j.URL == "" {
		return errors.New("url is required")
	}
	if j.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	return nil
}

// describe identifies a job in error messages by whatever it has set.
func (j *Job) describe() string {
	switch {
	case j.Table != "":
		return j.Table
	case j.URL != "":
		return j.URL
	default:
		return j.Kind
	}
}
