// Package config loads and validates the server's YAML configuration
// document, in the same LoadConfig/Validate shape the teacher's
// internal/core/config.go uses.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/streamcast/internal/catalog"
)

// Config is the top-level document spec.md §6's configuration table
// describes.
type Config struct {
	Port    int    `yaml:"port"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	Channel []string `yaml:"-"`
	Ch      map[string]catalog.Config `yaml:"-"`

	MaxBufferS   float64 `yaml:"max_buffer_s"`
	MaxInFlightS float64 `yaml:"max_inflight_s"`
	MaxWSFrameB  int     `yaml:"max_ws_frame_b"`
	MaxWSQueueB  int     `yaml:"max_ws_queue_b"`

	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Admin   AdminConfig   `yaml:"admin"`
}

// LoggingConfig mirrors the teacher's pkg/logger options: zap level
// plus lumberjack rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AdminConfig controls the gin-based admin/health HTTP surface.
type AdminConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads and validates the configuration document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// The per-channel sub-documents live at the top level, keyed by
	// channel name, alongside the server-wide keys — decode twice so
	// yaml.v3's strict struct tags don't have to model that dynamic
	// shape directly.
	var top struct {
		Port         int      `yaml:"port"`
		TLSCert      string   `yaml:"tls_cert"`
		TLSKey       string   `yaml:"tls_key"`
		Channel      []string `yaml:"channel"`
		MaxBufferS   float64  `yaml:"max_buffer_s"`
		MaxInFlightS float64  `yaml:"max_inflight_s"`
		MaxWSFrameB  int      `yaml:"max_ws_frame_b"`
		MaxWSQueueB  int      `yaml:"max_ws_queue_b"`
		Logging      LoggingConfig `yaml:"logging"`
		Metrics      MetricsConfig `yaml:"metrics"`
		Admin        AdminConfig   `yaml:"admin"`
	}
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	var channels map[string]catalog.Config
	if err := yaml.Unmarshal(data, &channels); err != nil {
		return nil, fmt.Errorf("config: parse channel sections of %s: %w", path, err)
	}
	perChannel := make(map[string]catalog.Config, len(top.Channel))
	for _, name := range top.Channel {
		cfg, ok := channels[name]
		if !ok {
			return nil, fmt.Errorf("config: channel %q listed but has no configuration section", name)
		}
		perChannel[name] = cfg
	}

	cfg := &Config{
		Port:         top.Port,
		TLSCert:      top.TLSCert,
		TLSKey:       top.TLSKey,
		Channel:      top.Channel,
		Ch:           perChannel,
		MaxBufferS:   top.MaxBufferS,
		MaxInFlightS: top.MaxInFlightS,
		MaxWSFrameB:  top.MaxWSFrameB,
		MaxWSQueueB:  top.MaxWSQueueB,
		Logging:      top.Logging,
		Metrics:      top.Metrics,
		Admin:        top.Admin,
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxBufferS <= 0 {
		c.MaxBufferS = 60
	}
	if c.MaxInFlightS <= 0 {
		c.MaxInFlightS = 5
	}
	if c.MaxWSFrameB <= 0 {
		c.MaxWSFrameB = 100000
	}
	if c.MaxWSQueueB <= 0 {
		c.MaxWSQueueB = c.MaxWSFrameB
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the document for the invariants spec.md §6 implies:
// a listening port, a non-empty channel list, and a configuration
// section for every listed channel.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key must both be set or both be empty")
	}
	if len(c.Channel) == 0 {
		return fmt.Errorf("channel list must be non-empty")
	}
	for _, name := range c.Channel {
		cfg, ok := c.Ch[name]
		if !ok {
			return fmt.Errorf("channel %q has no configuration section", name)
		}
		if err := cfg.Validate(name); err != nil {
			return err
		}
	}
	if c.MaxBufferS <= 0 || c.MaxInFlightS <= 0 {
		return fmt.Errorf("max_buffer_s and max_inflight_s must be positive")
	}
	if c.MaxWSFrameB <= 0 || c.MaxWSQueueB <= 0 {
		return fmt.Errorf("max_ws_frame_b and max_ws_queue_b must be positive")
	}
	return nil
}
