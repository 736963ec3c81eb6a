package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault tests the shipped defaults
func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 100000, cfg.Queue.MaxMemorySize)
	assert.Equal(t, "disk", cfg.Queue.OverflowStrategy)
	assert.Equal(t, 8, cfg.Processor.NumWorkers)
	assert.Equal(t, 100, cfg.Processor.BatchSize)
	assert.Equal(t, 5, cfg.Processor.BatchTimeoutSeconds)
	assert.Equal(t, 3, cfg.Processor.MaxRetries)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 7, cfg.Storage.HotRetentionDays)
	assert.Equal(t, 30, cfg.Storage.WarmRetentionDays)
	assert.Equal(t, 90, cfg.Storage.ColdRetentionDays)
	assert.Equal(t, "snappy", cfg.Storage.HotCompression)
	assert.Equal(t, "gzip", cfg.Storage.ColdCompression)
	assert.Equal(t, 60, cfg.Storage.LifecycleIntervalMinutes)

	require.NoError(t, cfg.Validate())
}

// TestLoadOverridesDefaults tests that a YAML file overlays the defaults
// without clearing unrelated settings
func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
server:
  listen_addr: ":9090"
  api_keys:
    - key-1
    - key-2
queue:
  max_memory_size: 500
processor:
  num_workers: 2
storage:
  backend: s3
  bucket: vanguard-events
  endpoint: http://localhost:9000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"key-1", "key-2"}, cfg.Server.APIKeys)
	assert.Equal(t, 500, cfg.Queue.MaxMemorySize)
	assert.Equal(t, 2, cfg.Processor.NumWorkers)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "vanguard-events", cfg.Storage.Bucket)

	// Unset fields keep their defaults
	assert.Equal(t, "disk", cfg.Queue.OverflowStrategy)
	assert.Equal(t, 100, cfg.Processor.BatchSize)
	assert.Equal(t, 7, cfg.Storage.HotRetentionDays)
}

// TestLoadEmptyPath tests that no file means pure defaults
func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestLoadMissingFile tests the error path
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// TestValidate tests option validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad overflow strategy", func(c *Config) { c.Queue.OverflowStrategy = "tape" }},
		{"bad storage backend", func(c *Config) { c.Storage.Backend = "ftp" }},
		{"zero queue size", func(c *Config) { c.Queue.MaxMemorySize = 0 }},
		{"zero workers", func(c *Config) { c.Processor.NumWorkers = 0 }},
		{"zero batch size", func(c *Config) { c.Processor.BatchSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
