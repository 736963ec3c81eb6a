package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface of a Vanguard process.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Queue     QueueConfig     `yaml:"queue"`
	Processor ProcessorConfig `yaml:"processor"`
	Enricher  EnricherConfig  `yaml:"enricher"`
	Storage   StorageConfig   `yaml:"storage"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ServerConfig controls the HTTP ingest edge.
type ServerConfig struct {
	ListenAddr         string   `yaml:"listen_addr"`
	APIKeys            []string `yaml:"api_keys"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	MaxBatchSize       int      `yaml:"max_batch_size"`
}

// QueueConfig controls the hybrid queue.
type QueueConfig struct {
	MaxMemorySize    int    `yaml:"max_memory_size"`
	DiskBufferPath   string `yaml:"disk_buffer_path"`
	OverflowStrategy string `yaml:"overflow_strategy"`
}

// ProcessorConfig controls the worker pool and batching policy.
type ProcessorConfig struct {
	NumWorkers          int `yaml:"num_workers"`
	BatchSize           int `yaml:"batch_size"`
	BatchTimeoutSeconds int `yaml:"batch_timeout_seconds"`
	MaxRetries          int `yaml:"max_retries"`
}

// EnricherConfig controls the enrichment stage.
type EnricherConfig struct {
	EntityCacheTTLSeconds int      `yaml:"entity_cache_ttl"`
	GeoTablePath          string   `yaml:"geo_table_path"`
	SensitivityRulesPath  string   `yaml:"sensitivity_rules_path"`
	AnonymizeFields       []string `yaml:"anonymize_fields"`
}

// StorageConfig controls the tiered columnar store.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "local" or "s3"
	Path    string `yaml:"path"`    // local root directory

	// S3-compatible backend settings
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	HotRetentionDays  int `yaml:"hot_retention_days"`
	WarmRetentionDays int `yaml:"warm_retention_days"`
	ColdRetentionDays int `yaml:"cold_retention_days"`

	HotCompression  string `yaml:"hot_compression"`
	WarmCompression string `yaml:"warm_compression"`
	ColdCompression string `yaml:"cold_compression"`

	// LifecycleIntervalMinutes sets how often the server process runs a tier
	// migration and expiry pass.
	LifecycleIntervalMinutes int `yaml:"lifecycle_interval_minutes"`
}

// Default returns a configuration with working defaults for a single-node
// deployment.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
			JSON:  true,
		},
		Server: ServerConfig{
			ListenAddr:         ":8080",
			RateLimitPerMinute: 10000,
			MaxBatchSize:       1000,
		},
		Queue: QueueConfig{
			MaxMemorySize:    100000,
			DiskBufferPath:   "data/queue_overflow.db",
			OverflowStrategy: "disk",
		},
		Processor: ProcessorConfig{
			NumWorkers:          8,
			BatchSize:           100,
			BatchTimeoutSeconds: 5,
			MaxRetries:          3,
		},
		Enricher: EnricherConfig{
			EntityCacheTTLSeconds: 3600,
		},
		Storage: StorageConfig{
			Backend:                  "local",
			Path:                     "data/events",
			Region:                   "us-east-1",
			HotRetentionDays:         7,
			WarmRetentionDays:        30,
			ColdRetentionDays:        90,
			HotCompression:           "snappy",
			WarmCompression:          "snappy",
			ColdCompression:          "gzip",
			LifecycleIntervalMinutes: 60,
		},
	}
}

// Load reads a YAML configuration file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects option values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Queue.OverflowStrategy != "disk" && c.Queue.OverflowStrategy != "drop" {
		return fmt.Errorf("invalid overflow_strategy: %q (want disk or drop)", c.Queue.OverflowStrategy)
	}
	if c.Storage.Backend != "local" && c.Storage.Backend != "s3" {
		return fmt.Errorf("invalid storage backend: %q (want local or s3)", c.Storage.Backend)
	}
	if c.Queue.MaxMemorySize <= 0 {
		return fmt.Errorf("max_memory_size must be positive")
	}
	if c.Processor.NumWorkers <= 0 {
		return fmt.Errorf("num_workers must be positive")
	}
	if c.Processor.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	return nil
}
