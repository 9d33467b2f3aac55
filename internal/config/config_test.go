package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/joingroup/internal/records"
	"github.com/stacklok/joingroup/internal/telemetry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		yamlContent   string
		wantConfig    *Config
		errorContains string
	}{
		{
			name: "full_config",
			yamlContent: `backend:
  address: ":8080"
  latency: "250ms"
  catalog:
    - kind: Game
      id: "4"
      value: Galaga
client:
  baseURL: http://localhost:8080
  timeout: 2s
  maxRetries: 5
batch:
  waitTimeout: 3s
  maxInFlight: 4
  reportDir: /tmp/reports
telemetry:
  enabled: true
  metrics:
    enabled: true
    exporter: prometheus`,
			wantConfig: &Config{
				Backend: &BackendConfig{
					Address: ":8080",
					Latency: "250ms",
					Catalog: []CatalogEntry{{Kind: "game", ID: "4", Value: "Galaga"}},
				},
				Client: &ClientConfig{
					BaseURL:    "http://localhost:8080",
					Timeout:    "2s",
					MaxRetries: 5,
				},
				Batch: &BatchConfig{
					WaitTimeout: "3s",
					MaxInFlight: 4,
					ReportDir:   "/tmp/reports",
				},
				Telemetry: &telemetry.Config{
					Enabled: true,
					Metrics: &telemetry.MetricsConfig{Enabled: true, Exporter: "prometheus"},
				},
			},
		},
		{
			name:        "empty_file",
			yamlContent: ``,
			wantConfig:  &Config{},
		},
		{
			name:          "invalid_yaml",
			yamlContent:   "backend: [",
			errorContains: "failed to parse YAML config",
		},
		{
			name: "invalid_latency",
			yamlContent: `backend:
  latency: soon`,
			errorContains: "backend.latency must be a valid duration",
		},
		{
			name: "negative_wait_timeout",
			yamlContent: `batch:
  waitTimeout: -1s`,
			errorContains: "batch.waitTimeout must not be negative",
		},
		{
			name: "zero_wait_timeout",
			yamlContent: `batch:
  waitTimeout: 0s`,
			errorContains: "batch.waitTimeout must be positive",
		},
		{
			name: "unknown_catalog_kind",
			yamlContent: `backend:
  catalog:
    - kind: console
      id: "1"`,
			errorContains: "backend.catalog[0]",
		},
		{
			name: "relative_base_url",
			yamlContent: `client:
  baseURL: localhost:4567`,
			errorContains: "client.baseURL must be an absolute http(s) URL",
		},
		{
			name: "multiple_errors_are_joined",
			yamlContent: `client:
  maxRetries: -1
batch:
  maxInFlight: -2`,
			errorContains: "batch.maxInFlight must not be negative",
		},
		{
			name: "invalid_telemetry",
			yamlContent: `telemetry:
  enabled: true
  metrics:
    enabled: true
    exporter: statsd`,
			errorContains: "telemetry: metrics:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tt.yamlContent)
			cfg, err := LoadConfig(WithConfigPath(path))
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, cfg)
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultAddress, cfg.GetAddress())
	assert.Equal(t, time.Duration(0), cfg.GetLatency())
	assert.Empty(t, cfg.GetCatalog())
	assert.Equal(t, DefaultBaseURL, cfg.GetBaseURL())
	assert.Equal(t, DefaultClientTimeout, cfg.GetClientTimeout())
	assert.Equal(t, DefaultMaxRetries, cfg.GetMaxRetries())
	assert.Equal(t, DefaultWaitTimeout, cfg.GetWaitTimeout())
	assert.Equal(t, DefaultMaxInFlight, cfg.GetMaxInFlight())
	assert.Equal(t, DefaultReportDir, cfg.GetReportDir())
}

func TestConfig_Getters(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Backend: &BackendConfig{
			Address: ":9999",
			Latency: "1s",
			Catalog: []CatalogEntry{{Kind: "preference", ID: "2", Value: "bike"}},
		},
		Client: &ClientConfig{Timeout: "3s"},
		Batch:  &BatchConfig{WaitTimeout: "250ms"},
	}

	assert.Equal(t, ":9999", cfg.GetAddress())
	assert.Equal(t, time.Second, cfg.GetLatency())
	assert.Equal(t, []records.Record{{Kind: records.KindPreference, ID: "2", Value: "bike"}}, cfg.GetCatalog())
	assert.Equal(t, 3*time.Second, cfg.GetClientTimeout())
	assert.Equal(t, DefaultMaxRetries, cfg.GetMaxRetries())
	assert.Equal(t, 250*time.Millisecond, cfg.GetWaitTimeout())
	assert.Equal(t, DefaultMaxInFlight, cfg.GetMaxInFlight())
}

func TestWithConfigPath(t *testing.T) {
	t.Parallel()

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(WithConfigPath(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path is required")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to evaluate symlinks")
	})

	t.Run("symlink is resolved", func(t *testing.T) {
		t.Parallel()

		target := writeConfig(t, "backend:\n  address: \":7000\"\n")
		link := filepath.Join(t.TempDir(), "link.yaml")
		require.NoError(t, os.Symlink(target, link))

		cfg, err := LoadConfig(WithConfigPath(link))
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.GetAddress())
	})
}

func TestDefaultReportDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join(xdg.DataHome, "joingroup", "reports"), DefaultReportDir)
}
