package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultKettleURL delays its response by the boiling time.
	DefaultKettleURL       = "https://httpbin.org/delay/3"
	DefaultKettleTimeout   = 10 * time.Second
	DefaultFallbackDelay   = 3000 * time.Millisecond
	DefaultBackgroundDelay = 20000 * time.Millisecond
	DefaultScrapeTop       = 10
	DefaultScrapeWorkers   = 4
)

// Config represents the teatime configuration file
type Config struct {
	Kettle struct {
		URL     string        `yaml:"url"`
		Token   string        `yaml:"token,omitempty"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"kettle"`
	Brew struct {
		FallbackDelay   time.Duration `yaml:"fallback_delay"`
		BackgroundDelay time.Duration `yaml:"background_delay"`
	} `yaml:"brew"`
	Scrape struct {
		URLs              []string `yaml:"urls"`
		Top               int      `yaml:"top"`
		Concurrency       int      `yaml:"concurrency"`
		RequestsPerSecond float64  `yaml:"requests_per_second"`
	} `yaml:"scrape"`
	Telemetry struct {
		Enabled      bool   `yaml:"enabled"`
		TraceStdout  bool   `yaml:"trace_stdout"`
		OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	} `yaml:"telemetry"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var cfg Config
	cfg.Kettle.URL = DefaultKettleURL
	cfg.Kettle.Timeout = DefaultKettleTimeout
	cfg.Brew.FallbackDelay = DefaultFallbackDelay
	cfg.Brew.BackgroundDelay = DefaultBackgroundDelay
	cfg.Scrape.URLs = []string{
		"https://www.example.com",
		"https://www.iana.org/domains/reserved",
		"https://httpbin.org/html",
	}
	cfg.Scrape.Top = DefaultScrapeTop
	cfg.Scrape.Concurrency = DefaultScrapeWorkers
	cfg.Scrape.RequestsPerSecond = 10
	cfg.Telemetry.Enabled = true
	return cfg
}

// ConfigDir resolves $XDG_CONFIG_HOME/teatime or ~/.config/teatime.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "teatime")
}

// DefaultConfigPath is the file LoadConfig reads when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadConfig reads YAML configuration from a path. If path is empty, it resolves
// $XDG_CONFIG_HOME/teatime/config.yaml or ~/.config/teatime/config.yaml and
// falls back to DefaultConfig when that file does not exist. Values from
// teatime.env and the process environment are applied last.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return cfg, fmt.Errorf("open config: %w", err)
	}

	// Merge overrides from teatime.env so tokens stay out of the YAML
	env, _ := LoadEnvFile("")
	for _, key := range []string{"TEATIME_KETTLE_URL", "TEATIME_KETTLE_TOKEN", "TEATIME_OTLP_ENDPOINT"} {
		if v := os.Getenv(key); v != "" {
			env[key] = v
		}
	}
	if v := env["TEATIME_KETTLE_URL"]; v != "" {
		cfg.Kettle.URL = v
	}
	if v := env["TEATIME_KETTLE_TOKEN"]; v != "" {
		cfg.Kettle.Token = v
	}
	if v := env["TEATIME_OTLP_ENDPOINT"]; v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WriteConfig marshals cfg to path, creating parent directories. An existing
// file is left untouched unless overwrite is set.
func WriteConfig(path string, cfg Config, overwrite bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
