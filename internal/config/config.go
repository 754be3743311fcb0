// Package config handles configuration loading for the NIDS console.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"nids-console/internal/batch"
	"nids-console/internal/cache"
	"nids-console/internal/poller"
	"nids-console/internal/secrets"
	"nids-console/internal/storage/s3"
	"nids-console/internal/watch"
)

// DefaultPath is read when NIDS_CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

// Config holds the complete application configuration.
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	Polling    PollingConfig  `yaml:"polling"`
	Batch      BatchConfig    `yaml:"batch"`
	Export     ExportConfig   `yaml:"export"`
	Archive    s3.Config      `yaml:"archive"`
	Cache      cache.Config   `yaml:"cache"`
	Watch      watch.Config   `yaml:"watch"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Logging    LoggingConfig  `yaml:"logging"`
	Secrets    secrets.Config `yaml:"secrets"`
	Production bool           `yaml:"production"`
}

// ServerConfig points at the remote classifier service.
type ServerConfig struct {
	URL            string        `yaml:"url" validate:"required,url"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`

	// Timezone interprets zone-less attack timestamps. Empty means local.
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone.
func (s ServerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || strings.EqualFold(s.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// PollingConfig holds attack log polling settings.
type PollingConfig struct {
	Schedule string `yaml:"schedule"`
}

// BatchConfig holds batch submission settings.
type BatchConfig struct {
	Progress      batch.ProgressConfig `yaml:"progress"`
	SubmitTimeout time.Duration        `yaml:"submit_timeout" validate:"gte=0"`
	PreviewRows   int                  `yaml:"preview_rows" validate:"gt=0"`
}

// ExportConfig holds report export settings.
type ExportConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// ListenAddr serves /metrics when set, e.g. ":9464".
	ListenAddr string `yaml:"listen_addr" validate:"omitempty,hostname_port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`

	// File receives log output for the dashboard. Empty discards it.
	File string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            "http://localhost:8000",
			RequestTimeout: 10 * time.Second,
		},
		Polling: PollingConfig{
			Schedule: poller.DefaultSchedule,
		},
		Batch: BatchConfig{
			Progress:    batch.DefaultProgressConfig(),
			PreviewRows: 20,
		},
		Export: ExportConfig{
			Dir: "exports",
		},
		Archive: s3.DefaultConfig(),
		Cache:   cache.DefaultConfig(),
		Watch:   watch.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Secrets: secrets.DefaultConfig(),
	}
}

// Load loads configuration from a file or returns defaults. Environment
// overrides apply in both cases.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("NIDS_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultPath
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("NIDS_SERVER_URL"); url != "" {
		c.Server.URL = url
	}

	if level := os.Getenv("NIDS_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}

	if format := os.Getenv("NIDS_LOG_FORMAT"); format != "" {
		c.Logging.Format = strings.ToLower(format)
	}

	if schedule := os.Getenv("NIDS_POLL_SCHEDULE"); schedule != "" {
		c.Polling.Schedule = schedule
	}

	if dir := os.Getenv("NIDS_EXPORT_DIR"); dir != "" {
		c.Export.Dir = dir
	}

	if addr := os.Getenv("NIDS_REDIS_ADDR"); addr != "" {
		c.Cache.Addr = addr
		c.Cache.Enabled = true
	}

	if addr := os.Getenv("NIDS_METRICS_ADDR"); addr != "" {
		c.Metrics.ListenAddr = addr
	}

	if bucket := os.Getenv("NIDS_S3_BUCKET"); bucket != "" {
		c.Archive.Bucket = bucket
		c.Archive.Enabled = true
	}

	if prod := os.Getenv("NIDS_PRODUCTION"); prod != "" {
		if v, err := strconv.ParseBool(prod); err == nil {
			c.Production = v
		}
	}
}

// ResolveSecrets replaces "env:" and "file:" references in credential
// fields with the values they point at.
func (c *Config) ResolveSecrets(ctx context.Context) error {
	m := secrets.NewManager(c.Secrets)
	return m.ResolveAll(ctx,
		&c.Cache.Password,
		&c.Archive.AccessKeyID,
		&c.Archive.SecretAccessKey,
	)
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := poller.ParseSchedule(c.Polling.Schedule); err != nil {
		return err
	}

	if _, err := c.Server.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Server.Timezone, err)
	}

	if err := c.Archive.Validate(); err != nil {
		return err
	}

	return nil
}
