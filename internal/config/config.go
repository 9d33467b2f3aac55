// Package config provides configuration loading and management for joingroup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/joingroup/internal/records"
	"github.com/stacklok/joingroup/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of environment variables overriding joingroup settings
	EnvPrefix = "JOINGROUP"

	// DefaultAddress is the address the backend listens on
	DefaultAddress = ":4567"

	// DefaultBaseURL is the backend URL clients talk to
	DefaultBaseURL = "http://localhost:4567"

	// DefaultClientTimeout is the per-request timeout of the backend client
	DefaultClientTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of attempts per backend request
	DefaultMaxRetries = 3

	// DefaultWaitTimeout bounds how long a blocking batch waits
	DefaultWaitTimeout = 10 * time.Second

	// DefaultMaxInFlight caps concurrent fetches
	DefaultMaxInFlight = 8
)

// DefaultReportDir is where batch reports are written, under the user's XDG data directory
var DefaultReportDir = filepath.Join(xdg.DataHome, "joingroup", "reports")

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Backend   *BackendConfig    `yaml:"backend,omitempty"`
	Client    *ClientConfig     `yaml:"client,omitempty"`
	Batch     *BatchConfig      `yaml:"batch,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// BackendConfig defines the mock backend served by "joingroup serve"
type BackendConfig struct {
	// Address is the listen address, ":4567" by default
	Address string `yaml:"address,omitempty"`

	// Latency delays every record response (e.g. "250ms")
	Latency string `yaml:"latency,omitempty"`

	// Catalog adds records on top of the stock data
	Catalog []CatalogEntry `yaml:"catalog,omitempty"`
}

// CatalogEntry is one extra backend record
type CatalogEntry struct {
	Kind  string `yaml:"kind"`
	ID    string `yaml:"id"`
	Value string `yaml:"value"`
}

// ClientConfig defines how commands reach the backend
type ClientConfig struct {
	// BaseURL is the backend root, without trailing path
	BaseURL string `yaml:"baseURL,omitempty"`

	// Timeout is the per-request timeout (e.g. "10s")
	Timeout string `yaml:"timeout,omitempty"`

	// MaxRetries is the number of attempts per request
	MaxRetries int `yaml:"maxRetries,omitempty"`
}

// BatchConfig defines fetch batch behaviour
type BatchConfig struct {
	// WaitTimeout bounds blocking waits and must be positive
	WaitTimeout string `yaml:"waitTimeout,omitempty"`

	// MaxInFlight caps concurrent fetches; 0 means DefaultMaxInFlight
	MaxInFlight int `yaml:"maxInFlight,omitempty"`

	// ReportDir is where batch reports are persisted
	ReportDir string `yaml:"reportDir,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{}
}

// LoadConfig loads and parses configuration from a YAML file. Without WithConfigPath
// it returns the defaults.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return Default(), nil
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetAddress returns the backend listen address
func (c *Config) GetAddress() string {
	if c.Backend == nil || c.Backend.Address == "" {
		return DefaultAddress
	}
	return c.Backend.Address
}

// GetLatency returns the artificial backend latency
func (c *Config) GetLatency() time.Duration {
	if c.Backend == nil {
		return 0
	}
	return parseDurationOr(c.Backend.Latency, 0)
}

// GetCatalog returns the extra backend records
func (c *Config) GetCatalog() []records.Record {
	if c.Backend == nil {
		return nil
	}
	out := make([]records.Record, 0, len(c.Backend.Catalog))
	for _, e := range c.Backend.Catalog {
		out = append(out, records.Record{Kind: records.Kind(e.Kind), ID: e.ID, Value: e.Value})
	}
	return out
}

// GetBaseURL returns the backend URL
func (c *Config) GetBaseURL() string {
	if c.Client == nil || c.Client.BaseURL == "" {
		return DefaultBaseURL
	}
	return c.Client.BaseURL
}

// GetClientTimeout returns the per-request timeout
func (c *Config) GetClientTimeout() time.Duration {
	if c.Client == nil {
		return DefaultClientTimeout
	}
	return parseDurationOr(c.Client.Timeout, DefaultClientTimeout)
}

// GetMaxRetries returns the number of attempts per request
func (c *Config) GetMaxRetries() int {
	if c.Client == nil || c.Client.MaxRetries == 0 {
		return DefaultMaxRetries
	}
	return c.Client.MaxRetries
}

// GetWaitTimeout returns the blocking wait bound
func (c *Config) GetWaitTimeout() time.Duration {
	if c.Batch == nil {
		return DefaultWaitTimeout
	}
	return parseDurationOr(c.Batch.WaitTimeout, DefaultWaitTimeout)
}

// GetMaxInFlight returns the concurrent fetch cap
func (c *Config) GetMaxInFlight() int {
	if c.Batch == nil || c.Batch.MaxInFlight == 0 {
		return DefaultMaxInFlight
	}
	return c.Batch.MaxInFlight
}

// GetReportDir returns the report directory
func (c *Config) GetReportDir() string {
	if c.Batch == nil || c.Batch.ReportDir == "" {
		return DefaultReportDir
	}
	return c.Batch.ReportDir
}

// parseDurationOr parses s, returning fallback when s is empty. validate rejects bad values
// before a getter ever sees them.
func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error
	if c.Backend != nil {
		errs = append(errs, c.Backend.validate())
	}
	if c.Client != nil {
		errs = append(errs, c.Client.validate())
	}
	if c.Batch != nil {
		errs = append(errs, c.Batch.validate())
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (b *BackendConfig) validate() error {
	var errs []error
	if err := validateDuration(b.Latency, "backend.latency"); err != nil {
		errs = append(errs, err)
	}
	for i, e := range b.Catalog {
		kind, err := records.ParseKind(e.Kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("backend.catalog[%d]: %w", i, err))
			continue
		}
		b.Catalog[i].Kind = string(kind)
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("backend.catalog[%d]: id is required", i))
		}
	}
	return errors.Join(errs...)
}

func (c *ClientConfig) validate() error {
	var errs []error
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("client.baseURL must be an absolute http(s) URL, got %q", c.BaseURL))
		}
	}
	if err := validateDuration(c.Timeout, "client.timeout"); err != nil {
		errs = append(errs, err)
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("client.maxRetries must not be negative, got %d", c.MaxRetries))
	}
	return errors.Join(errs...)
}

func (b *BatchConfig) validate() error {
	var errs []error
	if err := validateDuration(b.WaitTimeout, "batch.waitTimeout"); err != nil {
		errs = append(errs, err)
	} else if b.WaitTimeout != "" && parseDurationOr(b.WaitTimeout, 0) == 0 {
		errs = append(errs, fmt.Errorf("batch.waitTimeout must be positive, got %s", b.WaitTimeout))
	}
	if b.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("batch.maxInFlight must not be negative, got %d", b.MaxInFlight))
	}
	return errors.Join(errs...)
}

func validateDuration(s, field string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '500ms', '10s'): %w", field, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative, got %s", field, s)
	}
	return nil
}
